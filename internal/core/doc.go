// Package core provides schema reconciliation and type inference for CSV imports.
//
// This package holds all domain logic independent of any UI or transport
// layer. It is used by the web workspace, the csv-search CLI, and tests
// without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Dataset: the unified table. Rows carry a stable id and the file they
//     came from; Types assigns text or number to every header.
//   - Workspace: owns one Dataset and turns a parsed batch into a commit, a
//     staged type review, a reconciliation, or an error.
//   - Unifier: the editable mapping of an appended batch's columns onto the
//     existing ones.
//   - ProfileCache: remembers confirmed types per schema signature so a
//     known layout skips review.
//
// # Import Flow
//
//	ws := core.NewWorkspace(profiles)
//	res := ws.Import(ctx, core.ModeAppend, files)
//	switch res.Status {
//	case core.StatusReview:
//	    ws.SetStagedType("amount", core.TypeNumber)
//	    ws.ConfirmStaged(ctx)
//	case core.StatusUnify:
//	    ws.EditUnify(func(u *core.Unifier) error {
//	        return u.SetMappingTarget("email_address", &email)
//	    })
//	    ws.ConfirmUnify(ctx)
//	}
//
// Replace batches, and the first batch into an empty workspace, must share
// one schema. Append batches whose schema equals the dataset's are appended
// directly; any other append goes through a Unifier.
//
// # Type Inference
//
// A column is a number when at least 80% of its sampled non-blank values are
// numeric-like ("1,234.5" counts). Headers such as "amount" or "Order Total"
// lower the bar to 50%. Confirmed or cached types always win over inference.
//
// # Column Matching
//
// [FindBestMatch] prefers an exact name, then a case-insensitive one, then
// the best fuzzy score at or above the minimum confidence (0.6 by default).
//
// # Error Handling
//
// Import failures come back inside [ImportResult] as an [ImportError]. Other
// errors are mapped to user-friendly messages using [MapError]:
//
//   - IMP001-IMP006: Import errors (headers, schema, pending state, edits, busy)
//   - FILE001-FILE005: File errors (size, format, missing, count)
//   - REQ001-REQ003: Malformed requests
//   - PRF001: Profile store errors
package core

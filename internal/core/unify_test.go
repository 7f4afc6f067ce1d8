package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// sequentialIDs returns an id generator yielding prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func strPtr(s string) *string { return &s }

func equalStrings(a, b []string) bool { return SameSchema(a, b) }

func nameEmailDataset() *Dataset {
	return &Dataset{
		Headers: []string{"Name", "Email"},
		Rows: []Row{
			{ID: "r1", FileID: "f0", FileName: "people.csv", Cells: Record{"Name": "Ann", "Email": "ann@example.com"}},
		},
		Files: []SourceFile{{ID: "f0", Name: "people.csv"}},
		Types: TypeMap{"Name": TypeText, "Email": TypeText},
	}
}

func TestUnifier_NameEmailScenario(t *testing.T) {
	ds := nameEmailDataset()
	files := []ParsedFile{{
		Name:    "more.csv",
		Headers: []string{"name", "email_address"},
		Rows:    []Record{{"name": "Bo", "email_address": "bo@example.com"}},
	}}

	u := NewUnifier(ds.Headers, ds.Types, files, UnifyOptions{})
	mappings := u.Mappings()
	if len(mappings) != 2 {
		t.Fatalf("len(Mappings) = %d, want 2", len(mappings))
	}

	want := map[string]string{"name": "Name", "email_address": "Email"}
	for _, m := range mappings {
		if m.TargetColumn == nil {
			t.Fatalf("%s is unmapped", m.SourceColumn)
		}
		if *m.TargetColumn != want[m.SourceColumn] {
			t.Errorf("%s -> %s, want %s", m.SourceColumn, *m.TargetColumn, want[m.SourceColumn])
		}
		if m.Confidence < DefaultMinConfidence {
			t.Errorf("%s confidence = %v, want >= 0.6", m.SourceColumn, m.Confidence)
		}
	}

	next := u.Commit(ds, sequentialIDs("id"), time.Unix(0, 0))
	if !equalStrings(next.Headers, []string{"Name", "Email"}) {
		t.Errorf("Headers = %v, want [Name Email]", next.Headers)
	}
	if len(next.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(next.Rows))
	}
	added := next.Rows[1]
	if added.Get("Name") != "Bo" || added.Get("Email") != "bo@example.com" {
		t.Errorf("added row cells = %v", added.Cells)
	}
	if added.FileName != "more.csv" || added.FileID == "" {
		t.Errorf("added row provenance = %q/%q", added.FileID, added.FileName)
	}
	if len(next.Files) != 2 {
		t.Errorf("len(Files) = %d, want 2", len(next.Files))
	}
	if len(ds.Rows) != 1 {
		t.Error("Commit modified the input dataset")
	}
}

func TestUnifier_DefaultOrder(t *testing.T) {
	existing := []string{"A", "B", "C"}
	files := []ParsedFile{
		{Name: "1.csv", Headers: []string{"c", "new1"}},
		{Name: "2.csv", Headers: []string{"new2", "a"}},
	}
	u := NewUnifier(existing, nil, files, UnifyOptions{})

	want := []string{"A", "C", "B", "new1", "new2"}
	if got := u.FinalColumnOrder(); !equalStrings(got, want) {
		t.Errorf("FinalColumnOrder = %v, want %v", got, want)
	}

	stats := u.Stats()
	if stats.TotalNewColumns != 4 || stats.MappedToExisting != 2 || stats.NewColumnsCreated != 2 || stats.FinalColumnCount != 5 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestUnifier_SetMappingTarget(t *testing.T) {
	files := []ParsedFile{{
		Name:    "in.csv",
		Headers: []string{"name", "score"},
		Rows:    []Record{{"name": "x", "score": "1"}, {"name": "y", "score": "2"}},
	}}
	u := NewUnifier([]string{"Name", "Notes"}, nil, files, UnifyOptions{})

	if err := u.SetMappingTarget("score", strPtr("Notes")); err != nil {
		t.Fatalf("SetMappingTarget: %v", err)
	}
	m := u.Mappings()[1]
	if m.MatchKind != MatchManual {
		t.Errorf("MatchKind = %q, want manual", m.MatchKind)
	}
	if got := u.FinalColumnOrder(); !equalStrings(got, []string{"Name", "Notes"}) {
		t.Errorf("order after mapping = %v", got)
	}

	if err := u.SetMappingTarget("name", nil); err != nil {
		t.Fatalf("SetMappingTarget new column: %v", err)
	}
	if got := u.FinalColumnOrder(); !equalStrings(got, []string{"Notes", "Name", "name"}) {
		t.Errorf("order after unmapping = %v", got)
	}

	if err := u.SetMappingTarget("missing", nil); err == nil {
		t.Error("unknown source accepted")
	}
	if err := u.SetMappingTarget("name", strPtr("Nope")); err == nil {
		t.Error("unknown target accepted")
	}
}

func TestUnifier_NameParts(t *testing.T) {
	ds := &Dataset{
		Headers: []string{"Name"},
		Rows:    []Row{{ID: "r1", FileID: "f0", FileName: "people.csv", Cells: Record{"Name": "Ann"}}},
		Files:   []SourceFile{{ID: "f0", Name: "people.csv"}},
		Types:   TypeMap{"Name": TypeText},
	}
	files := []ParsedFile{{
		Name:    "split.csv",
		Headers: []string{"first_name", "last_name"},
		Rows:    []Record{{"first_name": "Bob", "last_name": "Smith"}},
	}}

	u := NewUnifier(ds.Headers, ds.Types, files, UnifyOptions{})
	for _, m := range u.Mappings() {
		if m.TargetColumn != nil {
			t.Errorf("%s -> %s, want new column", m.SourceColumn, *m.TargetColumn)
		}
	}

	next := u.Commit(ds, sequentialIDs("id"), time.Unix(0, 0))
	if !equalStrings(next.Headers, []string{"Name", "first_name", "last_name"}) {
		t.Errorf("Headers = %v", next.Headers)
	}
	added := next.Rows[1]
	if added.Get("first_name") != "Bob" || added.Get("last_name") != "Smith" {
		t.Errorf("added row cells = %v", added.Cells)
	}
}

func TestUnifier_OneSourcePerTarget(t *testing.T) {
	files := []ParsedFile{{
		Name:    "in.csv",
		Headers: []string{"amount usd", "Amount"},
		Rows:    []Record{{"amount usd": "5", "Amount": "7"}},
	}}
	u := NewUnifier([]string{"amount"}, nil, files, UnifyOptions{})

	// "Amount" matches case-insensitively (0.95) and outranks the fuzzy "amount usd".
	mappings := u.Mappings()
	if mappings[0].TargetColumn != nil {
		t.Errorf("amount usd -> %s, want new column", *mappings[0].TargetColumn)
	}
	if mappings[1].TargetColumn == nil || *mappings[1].TargetColumn != "amount" {
		t.Errorf("Amount mapping = %+v, want amount", mappings[1])
	}

	err := u.SetMappingTarget("amount usd", strPtr("amount"))
	if !errors.Is(err, ErrInvalidColumnEdit) {
		t.Errorf("shared target err = %v, want ErrInvalidColumnEdit", err)
	}

	// Freeing the target first makes the move legal.
	if err := u.SetMappingTarget("Amount", nil); err != nil {
		t.Fatalf("SetMappingTarget new column: %v", err)
	}
	if err := u.SetMappingTarget("amount usd", strPtr("amount")); err != nil {
		t.Fatalf("SetMappingTarget: %v", err)
	}

	next := u.Commit(NewDataset(), sequentialIDs("id"), time.Unix(0, 0))
	row := next.Rows[0]
	if row.Get("amount") != "5" || row.Get("Amount") != "7" {
		t.Errorf("row cells = %v", row.Cells)
	}
}

func TestUnifier_NewColumnCannotShadowExisting(t *testing.T) {
	files := []ParsedFile{{Name: "in.csv", Headers: []string{"Name"}}}
	u := NewUnifier([]string{"Name"}, nil, files, UnifyOptions{})
	if err := u.SetMappingTarget("Name", nil); err == nil {
		t.Error("new column with an existing name accepted")
	}
}

func TestUnifier_PinnedOrderSurvivesMappingEdits(t *testing.T) {
	files := []ParsedFile{{Name: "in.csv", Headers: []string{"a", "extra"}}}
	u := NewUnifier([]string{"a", "b"}, nil, files, UnifyOptions{})

	if err := u.SetFinalColumnOrder([]string{"extra", "b", "a"}); err != nil {
		t.Fatalf("SetFinalColumnOrder: %v", err)
	}
	if err := u.SetMappingTarget("extra", strPtr("b")); err != nil {
		t.Fatalf("SetMappingTarget: %v", err)
	}
	if got := u.FinalColumnOrder(); !equalStrings(got, []string{"b", "a"}) {
		t.Errorf("pinned order after mapping = %v, want [b a]", got)
	}

	u.Reset()
	if got := u.FinalColumnOrder(); !equalStrings(got, []string{"a", "b", "extra"}) {
		t.Errorf("order after Reset = %v", got)
	}
	for _, m := range u.Mappings() {
		if m.MatchKind == MatchManual {
			t.Errorf("%s still manual after Reset", m.SourceColumn)
		}
	}
}

func TestUnifier_SetFinalColumnOrderValidates(t *testing.T) {
	files := []ParsedFile{{Name: "in.csv", Headers: []string{"x"}}}
	u := NewUnifier([]string{"a"}, nil, files, UnifyOptions{})

	bad := [][]string{
		{"a"},
		{"a", "a"},
		{"a", "y"},
	}
	for _, order := range bad {
		if err := u.SetFinalColumnOrder(order); err == nil {
			t.Errorf("SetFinalColumnOrder(%v) accepted", order)
		}
	}
}

func TestUnifier_Types(t *testing.T) {
	files := []ParsedFile{{
		Name:    "in.csv",
		Headers: []string{"qty", "label"},
		Rows: []Record{
			{"qty": "1", "label": "a"},
			{"qty": "2", "label": "b"},
		},
	}}
	u := NewUnifier([]string{"Quantity", "Price"}, TypeMap{"Price": TypeNumber}, files, UnifyOptions{})

	types := u.FinalColumnTypes()
	if types["qty"] != TypeNumber {
		t.Errorf("qty = %q, want number", types["qty"])
	}
	if types["label"] != TypeText {
		t.Errorf("label = %q, want text", types["label"])
	}
	if types["Price"] != TypeNumber {
		t.Errorf("unmapped existing Price = %q, want its previous number", types["Price"])
	}

	if err := u.SetColumnType("label", TypeNumber); err != nil {
		t.Fatalf("SetColumnType: %v", err)
	}
	for _, m := range u.Mappings() {
		if m.SourceColumn == "label" && m.TargetType != TypeNumber {
			t.Errorf("label mapping type = %q, want number", m.TargetType)
		}
	}
	if err := u.SetColumnType("nope", TypeText); err == nil {
		t.Error("SetColumnType accepted unknown column")
	}
}

func TestUnifier_CommitPadsAndRekeys(t *testing.T) {
	ds := &Dataset{
		Headers: []string{"id"},
		Rows:    []Row{{ID: "r1", FileID: "f0", Cells: Record{"id": "1"}}},
		Types:   TypeMap{"id": TypeNumber},
	}
	files := []ParsedFile{
		{Name: "a.csv", Headers: []string{"ID", "city"}, Rows: []Record{{"ID": "2", "city": "Oslo"}}},
		{Name: "b.csv", Headers: []string{"city"}, Rows: []Record{{"city": "Rome"}}},
	}
	u := NewUnifier(ds.Headers, ds.Types, files, UnifyOptions{})
	next := u.Commit(ds, sequentialIDs("x"), time.Unix(100, 0))

	if !equalStrings(next.Headers, []string{"id", "city"}) {
		t.Fatalf("Headers = %v", next.Headers)
	}
	wantCells := []Record{
		{"id": "1", "city": ""},
		{"id": "2", "city": "Oslo"},
		{"id": "", "city": "Rome"},
	}
	if len(next.Rows) != len(wantCells) {
		t.Fatalf("len(Rows) = %d, want %d", len(next.Rows), len(wantCells))
	}
	for i, want := range wantCells {
		for k, v := range want {
			if got, ok := next.Rows[i].Cells[k]; !ok || got != v {
				t.Errorf("row %d %s = %q (present %v), want %q", i, k, got, ok, v)
			}
		}
	}
	if next.Rows[0].ID != "r1" {
		t.Errorf("existing row id changed to %q", next.Rows[0].ID)
	}
	if next.Rows[1].FileID == next.Rows[2].FileID {
		t.Error("rows from different files share a file id")
	}
	if !next.Files[1].AppendedAt.Equal(time.Unix(100, 0)) {
		t.Errorf("AppendedAt = %v", next.Files[1].AppendedAt)
	}
}

func TestUnifier_NoOpMatchesFastPath(t *testing.T) {
	headers := []string{"id", "amount", "name"}
	fileA := ParsedFile{Name: "a.csv", Headers: headers, Rows: []Record{
		{"id": "1", "amount": "10.5", "name": "Ann"},
		{"id": "2", "amount": "1,200", "name": "Bo"},
	}}
	fileB := ParsedFile{Name: "b.csv", Headers: headers, Rows: []Record{
		{"id": "3", "amount": "7", "name": "Cy"},
	}}

	u := NewUnifier(nil, nil, []ParsedFile{fileA, fileB}, UnifyOptions{})
	unified := u.Commit(NewDataset(), sequentialIDs("u"), time.Unix(0, 0))

	w := NewWorkspace(nil, WithIDGenerator(sequentialIDs("w")))
	res := w.Import(context.Background(), ModeReplace, []ParsedFile{fileA, fileB})
	if res.Status != StatusReview {
		t.Fatalf("Status = %q, want review", res.Status)
	}
	if _, err := w.ConfirmStaged(context.Background()); err != nil {
		t.Fatalf("ConfirmStaged: %v", err)
	}
	fast := w.Dataset()

	if !equalStrings(unified.Headers, fast.Headers) {
		t.Errorf("unified headers %v != fast headers %v", unified.Headers, fast.Headers)
	}
	for _, h := range headers {
		if unified.Types[h] != fast.Types[h] {
			t.Errorf("%s: unified %q != fast %q", h, unified.Types[h], fast.Types[h])
		}
	}
}

// Error codes reference.
//
// Import failures are reported as structured results carrying a code, a title
// and a detail message. Other errors that reach a user are mapped to a
// UserMessage through the pattern table below so support staff can look them
// up by code.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - No valid CSV headers: no file in the batch yielded a header row
//	         Action: Check that the files are comma-separated with a header line
//	         Patterns: "no valid headers"
//
//	IMP002 - Schema mismatch: files in a replace batch disagree on their columns
//	         Action: Upload files with identical headers, or switch to append mode
//	         Patterns: "schema mismatch"
//
//	IMP003 - Nothing pending: no staged review or unification to act on
//	         Action: Upload files first
//	         Patterns: "nothing pending"
//
//	IMP004 - Unknown column: an edit referenced a column that does not exist
//	         Action: Refresh and try again
//	         Patterns: "unknown column"
//
//	IMP005 - Invalid column edit: duplicate, empty, or missing column names
//	         Action: Give every column a unique, non-empty name
//	         Patterns: "invalid column edit"
//
//	IMP006 - Import busy: another batch is being processed
//	         Action: Wait for the current import to finish
//	         Patterns: "import in progress"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large          Patterns: "file too large", "request body too large"
//	FILE002 - Invalid CSV             Patterns: "parse error", "invalid csv"
//	FILE003 - No file                 Patterns: "no file provided"
//	FILE004 - File not found          Patterns: "file not found"
//	FILE005 - Too many files          Patterns: "too many files"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid column type      Patterns: "invalid column type"
//	REQ002 - Invalid import mode      Patterns: "invalid import mode"
//	REQ003 - Malformed request body   Patterns: "invalid request body"
//
// # Profile Store Errors (PRF001-PRF099)
//
//	PRF001 - Profile store unavailable  Patterns: "profile store", "connection refused"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the server logs for the
// technical error.

package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoPending         = errors.New("nothing pending to confirm")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrInvalidColumnEdit = errors.New("invalid column edit")
	ErrImportBusy        = errors.New("import in progress, please try again later")
	ErrFileNotFound      = errors.New("file not found")
)

// Import error codes.
const (
	CodeNoValidHeaders    = "IMP001"
	CodeSchemaMismatch    = "IMP002"
	CodeNothingPending    = "IMP003"
	CodeUnknownColumn     = "IMP004"
	CodeInvalidColumnEdit = "IMP005"
	CodeImportBusy        = "IMP006"
)

// ImportError is a fatal outcome of one import attempt. The dataset is
// unchanged when one is returned.
type ImportError struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *ImportError) Error() string {
	if e.Detail == "" {
		return e.Title
	}
	return e.Title + ": " + e.Detail
}

func noValidHeadersError(warnings []string) *ImportError {
	return &ImportError{
		Code:   CodeNoValidHeaders,
		Title:  "No valid CSV headers",
		Detail: strings.Join(warnings, "\n"),
	}
}

func schemaMismatchError(label string, expected, got []string) *ImportError {
	return &ImportError{
		Code:   CodeSchemaMismatch,
		Title:  "Schema mismatch",
		Detail: fmt.Sprintf("%s: %s\nGot: %s", label, strings.Join(expected, ", "), strings.Join(got, ", ")),
	}
}

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is matched case-insensitively with strings.Contains.
// The first match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{"no valid headers", UserMessage{"No valid CSV headers", "Check that the files are comma-separated with a header line", CodeNoValidHeaders}},
	{"no valid csv headers", UserMessage{"No valid CSV headers", "Check that the files are comma-separated with a header line", CodeNoValidHeaders}},
	{"schema mismatch", UserMessage{"Schema mismatch", "Upload files with identical headers, or switch to append mode", CodeSchemaMismatch}},
	{"nothing pending", UserMessage{"Nothing to confirm", "Upload files first", CodeNothingPending}},
	{"unknown column", UserMessage{"Column does not exist", "Refresh and try again", CodeUnknownColumn}},
	{"invalid column edit", UserMessage{"Invalid column edit", "Give every column a unique, non-empty name", CodeInvalidColumnEdit}},
	{"import in progress", UserMessage{"Another import is in progress", "Wait for the current import to finish", CodeImportBusy}},

	{"file too large", UserMessage{"File exceeds maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"request body too large", UserMessage{"File exceeds maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"parse error", UserMessage{"File is not a valid CSV", "Ensure file is comma-separated with consistent columns", "FILE002"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure file is comma-separated with consistent columns", "FILE002"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV file to upload", "FILE003"}},
	{"file not found", UserMessage{"File not found", "Refresh the file list and try again", "FILE004"}},
	{"too many files", UserMessage{"Too many files in one import", "Upload fewer files per batch", "FILE005"}},

	{"invalid column type", UserMessage{"Invalid column type", "Choose text or number", "REQ001"}},
	{"invalid import mode", UserMessage{"Invalid import mode", "Choose replace or append", "REQ002"}},
	{"invalid request body", UserMessage{"The request could not be read", "Send a valid JSON body", "REQ003"}},

	{"profile store", UserMessage{"Type profiles are unavailable", "Types will be inferred; try again later to save them", "PRF001"}},
	{"connection refused", UserMessage{"Type profiles are unavailable", "Types will be inferred; try again later to save them", "PRF001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// An *ImportError maps by its own code and title.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ie *ImportError
	if errors.As(err, &ie) {
		for _, ep := range errorPatterns {
			if ep.msg.Code == ie.Code {
				return UserMessage{Message: ie.Title, Action: ep.msg.Action, Code: ie.Code}
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a known code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

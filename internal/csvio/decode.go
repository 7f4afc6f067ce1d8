// Package csvio decodes uploaded spreadsheets into core.ParsedFile values and
// encodes datasets back to CSV.
//
// Decoding never fails outright: a file that cannot be read comes back with
// no headers and a warning, so one bad file never aborts its batch.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/csvutils/internal/core"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decode parses r by the extension of name: .xlsx as a workbook, anything
// else as CSV.
func Decode(name string, r io.Reader) core.ParsedFile {
	if IsWorkbook(name) {
		return DecodeXLSX(name, r)
	}
	return DecodeCSV(name, r)
}

// IsWorkbook reports whether name has an .xlsx extension.
func IsWorkbook(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

// DecodeCSV reads a header row followed by data rows. A UTF-8 byte order mark
// is dropped and invalid UTF-8 is replaced with U+FFFD. Blank lines are
// ignored. Rows with more fields than headers are returned in SkippedRows;
// rows with fewer fields keep only the cells they have.
func DecodeCSV(name string, r io.Reader) core.ParsedFile {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return parseFailure(name, err)
		}
		if isEmptyRow(rec) {
			continue
		}
		records = append(records, rec)
	}
	return fromRecords(name, records)
}

// fromRecords turns the raw grid of a file into a ParsedFile. The first row is
// the header.
func fromRecords(name string, records [][]string) core.ParsedFile {
	pf := core.ParsedFile{Name: name}
	if len(records) == 0 || isEmptyRow(records[0]) {
		pf.Warnings = append(pf.Warnings, fmt.Sprintf("Warning: could not read header from: %s", name))
		return pf
	}

	headers, renamed := uniqueHeaders(records[0])
	pf.Headers = headers
	for _, r := range renamed {
		pf.Warnings = append(pf.Warnings, fmt.Sprintf("Warning: duplicate header %q in %s renamed to %q", r[0], name, r[1]))
	}

	for _, rec := range records[1:] {
		row := make(core.Record, min(len(rec), len(headers)))
		for i, v := range rec {
			if i < len(headers) {
				row[headers[i]] = v
			} else {
				row[extraKey(i)] = v
			}
		}
		if len(rec) > len(headers) {
			pf.SkippedRows = append(pf.SkippedRows, row)
			continue
		}
		pf.Rows = append(pf.Rows, row)
	}
	return pf
}

// uniqueHeaders suffixes repeated header names with _1, _2, ... and returns
// each [original, renamed] pair.
func uniqueHeaders(raw []string) ([]string, [][2]string) {
	seen := make(map[string]bool, len(raw))
	for _, h := range raw {
		seen[h] = true
	}

	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	var renamed [][2]string
	for i, h := range raw {
		if !used[h] {
			used[h] = true
			out[i] = h
			continue
		}
		n := 1
		candidate := fmt.Sprintf("%s_%d", h, n)
		for used[candidate] || seen[candidate] {
			n++
			candidate = fmt.Sprintf("%s_%d", h, n)
		}
		used[candidate] = true
		out[i] = candidate
		renamed = append(renamed, [2]string{h, candidate})
	}
	return out, renamed
}

// extraKey names a cell beyond the last header by its 1-based position.
func extraKey(i int) string {
	return fmt.Sprintf("column_%d", i+1)
}

func parseFailure(name string, err error) core.ParsedFile {
	return core.ParsedFile{
		Name:     name,
		Warnings: []string{fmt.Sprintf("Error parsing %s: %v", name, err)},
	}
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

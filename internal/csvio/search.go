package csvio

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/JonMunkholm/csvutils/internal/core"
)

// SearchResult is the merged outcome of searching several files.
type SearchResult struct {
	Headers  []string
	Rows     []core.Record
	Warnings []string
}

// SearchFiles keeps the rows of every file whose column contains keyword.
// Headers are the union of all readable files' headers in first-appearance
// order. Unreadable files and files without the column only add warnings.
func SearchFiles(ctx context.Context, paths []string, column, keyword string, caseInsensitive bool) (SearchResult, error) {
	sources := make([]Source, len(paths))
	for i, p := range paths {
		name := p
		if abs, err := filepath.Abs(p); err == nil {
			name = abs
		}
		src := FileSource(p)
		src.Name = name
		sources[i] = src
	}

	files, err := ParseBatch(ctx, sources)
	if err != nil {
		return SearchResult{}, err
	}

	var res SearchResult
	for _, f := range files {
		res.Warnings = append(res.Warnings, f.Warnings...)
		if len(f.Headers) == 0 {
			continue
		}
		for _, h := range f.Headers {
			if !slices.Contains(res.Headers, h) {
				res.Headers = append(res.Headers, h)
			}
		}
		if !slices.Contains(f.Headers, column) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Warning: column %q not found in file: %s", column, f.Name))
			continue
		}
		res.Rows = append(res.Rows, core.FilterRowsByColumn(f.Rows, column, keyword, caseInsensitive)...)
	}
	return res, nil
}

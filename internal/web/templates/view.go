// Package templates renders the workspace's HTML as templ components.
//
// Components are authored in the .templ files; the _templ.go files are
// produced by `templ generate`.
package templates

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/csvutils/internal/core"
)

// DatasetView is everything the dataset page shows.
type DatasetView struct {
	Dataset *core.Dataset
	Rows    []core.Row
	Totals  map[string]float64
	Query   string
	Pending core.PendingState
	Now     time.Time
}

func comma(n int) string {
	return humanize.Comma(int64(n))
}

func fileSize(f core.SourceFile) string {
	return humanize.Bytes(uint64(max(f.Size, 0)))
}

func addedAgo(f core.SourceFile, now time.Time) string {
	return humanize.RelTime(f.AppendedAt, now, "ago", "from now")
}

func rowCountLabel(v DatasetView) string {
	return fmt.Sprintf("%s of %s rows", comma(len(v.Rows)), comma(len(v.Dataset.Rows)))
}

// pendingRows counts the rows waiting in a reconciliation.
func pendingRows(u *core.UnifyView) int {
	var n int
	for _, f := range u.Files {
		n += f.RowCount
	}
	return n
}

// totalCell formats the footer total of col, or "" for non-number columns.
func totalCell(totals map[string]float64, col string) string {
	t, ok := totals[col]
	if !ok {
		return ""
	}
	return humanize.CommafWithDigits(t, 2)
}

package csvio

import (
	"errors"
	"io"

	"github.com/JonMunkholm/csvutils/internal/core"
	"github.com/xuri/excelize/v2"
)

// DecodeXLSX reads the first sheet of a workbook. The first non-blank row is
// the header; cells are taken as formatted text.
func DecodeXLSX(name string, r io.Reader) core.ParsedFile {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return parseFailure(name, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return parseFailure(name, errors.New("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return parseFailure(name, err)
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		records = append(records, row)
	}
	return fromRecords(name, records)
}

package csvio

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/JonMunkholm/csvutils/internal/core"
)

// WriteCSV writes headers and then one line per record in header order.
// Missing cells are written empty. Fields holding quotes, commas or line
// breaks are quoted.
func WriteCSV(w io.Writer, headers []string, records []core.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	line := make([]string, len(headers))
	for i, rec := range records {
		for j, h := range headers {
			line[j] = rec[h]
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

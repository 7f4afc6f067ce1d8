package core

import (
	"regexp"
	"strings"
)

// DefaultInferSampleRows is how many leading rows type inference looks at.
const DefaultInferSampleRows = 100

const (
	// numericRatio is the share of numeric-like values that makes a column a number.
	numericRatio = 0.8

	// hintedNumericRatio applies instead when the header looks like a numeric field.
	hintedNumericRatio = 0.5
)

// numericNameHint matches header names that usually hold numbers.
var numericNameHint = regexp.MustCompile(`(?i)\b(id|count|qty|quantity|amount|total|price|num|number|rate|score|age|year|sum|balance|cost)\b`)

// Inferrer decides a ColumnType per header from sampled rows.
type Inferrer struct {
	// SampleRows caps the rows examined. Zero means DefaultInferSampleRows.
	SampleRows int
}

// InferColumnTypes runs the default Inferrer.
func InferColumnTypes(headers []string, rows []Record, overrides TypeMap) TypeMap {
	return Inferrer{}.Infer(headers, rows, overrides)
}

// Infer returns a type for every header. A type in overrides wins unconditionally;
// otherwise the column is a number when at least 80% of its non-blank sampled
// values are numeric-like, or 50% when the header name hints at a numeric field.
func (in Inferrer) Infer(headers []string, rows []Record, overrides TypeMap) TypeMap {
	limit := in.SampleRows
	if limit <= 0 {
		limit = DefaultInferSampleRows
	}
	sample := rows
	if len(sample) > limit {
		sample = sample[:limit]
	}

	result := make(TypeMap, len(headers))
	for _, h := range headers {
		if t, ok := overrides[h]; ok && t != "" {
			result[h] = t
			continue
		}
		result[h] = inferColumn(h, sample)
	}
	return result
}

func inferColumn(header string, sample []Record) ColumnType {
	var nonEmpty, numeric int
	for _, r := range sample {
		v := r[header]
		if strings.TrimSpace(v) == "" {
			continue
		}
		nonEmpty++
		if IsNumericLike(v) {
			numeric++
		}
	}
	if nonEmpty == 0 {
		return TypeText
	}

	ratio := float64(numeric) / float64(nonEmpty)
	switch {
	case ratio >= numericRatio:
		return TypeNumber
	case ratio >= hintedNumericRatio && numericNameHint.MatchString(header):
		return TypeNumber
	default:
		return TypeText
	}
}

// Cells extracts the cell maps of rows, in order, for inference.
func Cells(rows []Row) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r.Cells
	}
	return out
}

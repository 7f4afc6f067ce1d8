package core

import (
	"math"
	"strconv"
	"strings"
)

// normalizeNumeric trims surrounding whitespace and drops grouping commas.
func normalizeNumeric(value string) string {
	return strings.ReplaceAll(strings.TrimSpace(value), ",", "")
}

// ParseNumeric parses a cell the way IsNumericLike classifies it.
// Column totals use it so that summing and inference agree on what a number is.
func ParseNumeric(value string) (float64, bool) {
	s := normalizeNumeric(value)
	if s == "" || strings.ContainsAny(s, "_xX") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsNumericLike reports whether value is a finite real number once
// whitespace and thousands separators are removed. Blank values are not numeric.
func IsNumericLike(value string) bool {
	_, ok := ParseNumeric(value)
	return ok
}

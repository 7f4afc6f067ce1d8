package core

import "strings"

// ValueMatchesKeyword reports whether value contains keyword.
func ValueMatchesKeyword(value, keyword string, caseInsensitive bool) bool {
	if caseInsensitive {
		return strings.Contains(strings.ToLower(value), strings.ToLower(keyword))
	}
	return strings.Contains(value, keyword)
}

// FilterRowsByColumn returns the records whose column contains keyword.
// Records without the column never match.
func FilterRowsByColumn(rows []Record, column, keyword string, caseInsensitive bool) []Record {
	var out []Record
	for _, r := range rows {
		v, ok := r[column]
		if !ok {
			continue
		}
		if ValueMatchesKeyword(v, keyword, caseInsensitive) {
			out = append(out, r)
		}
	}
	return out
}

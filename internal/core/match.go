package core

// match.go suggests which existing column a newly uploaded column belongs to.
//
// Precedence per existing column:
//  1. Exact: identical names, confidence 1.0, ends the scan immediately.
//  2. Case-insensitive: equal when lowercased, confidence 0.95. The first one
//     found is kept; later fuzzy candidates never replace it, but a later
//     exact match still wins.
//  3. Fuzzy: the best of normalized Levenshtein similarity on stripped names,
//     on lowercased names, and leading-token containment ("email" at the
//     start of "email_address"). Kept when it reaches minConfidence and
//     beats the current fuzzy best.

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// DefaultMinConfidence is the lowest fuzzy score suggested as a mapping.
const DefaultMinConfidence = 0.6

// caseInsensitiveConfidence is the score of a match that differs only in case.
const caseInsensitiveConfidence = 0.95

// MatchKind records how a column mapping was decided.
type MatchKind string

const (
	MatchExact           MatchKind = "exact"
	MatchCaseInsensitive MatchKind = "case-insensitive"
	MatchFuzzy           MatchKind = "fuzzy"
	MatchManual          MatchKind = "manual"
)

// ColumnMatch is a suggested existing column for a new column.
type ColumnMatch struct {
	Column     string    `json:"column"`
	Confidence float64   `json:"confidence"`
	Kind       MatchKind `json:"matchType"`
}

// FindBestMatch returns the existing column that best matches newColumn.
// The second result is false when nothing reaches minConfidence and there is
// no exact or case-insensitive match.
func FindBestMatch(newColumn string, existing []string, minConfidence float64) (ColumnMatch, bool) {
	var best ColumnMatch
	found := false

	lowerNew := strings.ToLower(newColumn)
	strippedNew := stripColumnName(newColumn)
	tokensNew := columnTokens(newColumn)

	for _, col := range existing {
		if newColumn == col {
			return ColumnMatch{Column: col, Confidence: 1.0, Kind: MatchExact}, true
		}
		if found && best.Kind == MatchCaseInsensitive {
			continue
		}

		lowerCol := strings.ToLower(col)
		if lowerNew == lowerCol {
			best = ColumnMatch{Column: col, Confidence: caseInsensitiveConfidence, Kind: MatchCaseInsensitive}
			found = true
			continue
		}

		score := Similarity(lowerNew, lowerCol)
		if strippedCol := stripColumnName(col); strippedNew != "" && strippedCol != "" {
			score = math.Max(score, Similarity(strippedNew, strippedCol))
		}
		score = math.Max(score, tokenContainment(tokensNew, columnTokens(col)))

		if score >= minConfidence && (!found || score > best.Confidence) {
			best = ColumnMatch{Column: col, Confidence: score, Kind: MatchFuzzy}
			found = true
		}
	}

	return best, found
}

// GenerateMappingSuggestions runs FindBestMatch for every new column.
// Columns without a suggestion map to nil.
func GenerateMappingSuggestions(newColumns, existing []string, minConfidence float64) map[string]*ColumnMatch {
	out := make(map[string]*ColumnMatch, len(newColumns))
	for _, c := range newColumns {
		if m, ok := FindBestMatch(c, existing, minConfidence); ok {
			m := m
			out[c] = &m
		} else {
			out[c] = nil
		}
	}
	return out
}

// FormatConfidence renders a confidence as a whole percentage, e.g. "87%".
func FormatConfidence(confidence float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(confidence*100)))
}

// Similarity is (maxLen - levenshtein(a, b)) / maxLen over runes.
// Two empty strings are fully similar.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	return float64(longest-levenshtein(a, b)) / float64(longest)
}

// levenshtein computes edit distance with two rolling rows.
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ca := range ar {
		curr[0] = i + 1
		for j, cb := range br {
			cost := 1
			if ca == cb {
				cost = 0
			}
			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

// stripColumnName lowercases name and drops everything but letters and digits,
// so "Customer ID", "customer_id" and "customer-id" all become "customerid".
func stripColumnName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// columnTokens splits a lowercased name on anything that is not a letter or digit.
func columnTokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containmentFloor is the score a leading-token match must exceed to count.
const containmentFloor = 0.6

// tokenContainment scores names where the shorter one's tokens are the
// leading tokens of a longer, multi-token name: "email" against
// "email_address", but not "name" against "first_name". The score grows with
// how much of the longer name is covered and is 0 unless it exceeds
// containmentFloor.
func tokenContainment(a, b []string) float64 {
	short, long := a, b
	if len(short) > len(long) || (len(short) == len(long) && joinedLen(short) > joinedLen(long)) {
		short, long = long, short
	}
	if len(short) == 0 || len(long) <= len(short) {
		return 0
	}
	for i, t := range short {
		if long[i] != t {
			return 0
		}
	}

	score := 0.5 + 0.5*float64(joinedLen(short))/float64(joinedLen(long))
	if score <= containmentFloor {
		return 0
	}
	return score
}

func joinedLen(tokens []string) int {
	n := 0
	for _, t := range tokens {
		n += len([]rune(t))
	}
	return n
}

package core

import "encoding/json"

// SignatureOf returns a stable identity for an ordered header list.
// The encoding is the JSON array of the headers: order, case and whitespace
// all matter, and distinct lists never share a signature.
func SignatureOf(headers []string) string {
	if headers == nil {
		headers = []string{}
	}
	b, _ := json.Marshal(headers)
	return string(b)
}

// SameSchema reports whether a and b hold the same headers in the same order.
func SameSchema(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// firstMismatch returns the first file whose headers differ from want.
func firstMismatch(files []ParsedFile, want []string) (ParsedFile, bool) {
	for _, f := range files {
		if !SameSchema(f.Headers, want) {
			return f, true
		}
	}
	return ParsedFile{}, false
}

// unionHeaders returns every header across files in order of first appearance.
func unionHeaders(files []ParsedFile) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range files {
		for _, h := range f.Headers {
			if seen[h] {
				continue
			}
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

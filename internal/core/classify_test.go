package core

import "testing"

func TestIsNumericLike(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1,234.5", true},
		{"1,000,000", true},
		{"-42", true},
		{"  3.14  ", true},
		{"1e3", true},
		{".5", true},
		{"", false},
		{"   ", false},
		{"abc", false},
		{"12abc", false},
		{"NaN", false},
		{"Infinity", false},
		{"1_000", false},
		{"0x1p4", false},
		{"$5", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := IsNumericLike(tt.value); got != tt.want {
				t.Errorf("IsNumericLike(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseNumeric(t *testing.T) {
	got, ok := ParseNumeric(" 1,234.5 ")
	if !ok {
		t.Fatal("ParseNumeric returned ok = false")
	}
	if got != 1234.5 {
		t.Errorf("ParseNumeric = %v, want 1234.5", got)
	}

	if _, ok := ParseNumeric("n/a"); ok {
		t.Error("ParseNumeric(\"n/a\") ok = true, want false")
	}
}

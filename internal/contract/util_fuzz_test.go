package contract

import (
	"testing"
	"unicode/utf8"
)

// FuzzTruncateText checks that truncation never exceeds the width or breaks runes.
func FuzzTruncateText(f *testing.F) {
	seeds := []struct {
		text  string
		width int
	}{
		{"source unavailable", 10},
		{"", 5},
		{"héllo wörld", 6},
		{"abc", 1},
	}
	for _, seed := range seeds {
		f.Add(seed.text, seed.width)
	}

	f.Fuzz(func(t *testing.T, text string, width int) {
		if !utf8.ValidString(text) {
			return
		}
		got := TruncateText(text, width)
		if width > 3 && utf8.RuneCountInString(got) > width {
			t.Fatalf("TruncateText(%q, %d) = %q exceeds width", text, width, got)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("TruncateText(%q, %d) produced invalid UTF-8", text, width)
		}
	})
}

// FuzzParseBoolString ensures parsing never panics and accepted values round-trip.
func FuzzParseBoolString(f *testing.F) {
	for _, seed := range []string{"yes", "no", "TRUE", "0", "", "nope"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		v, err := ParseBoolString(s)
		if err != nil && v {
			t.Fatalf("ParseBoolString(%q) returned true with error", s)
		}
	})
}

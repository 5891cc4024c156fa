package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"passthrough clean text", "baseline 2026 run", "baseline 2026 run"},
		{"strip null bytes", "base\x00line", "baseline"},
		{"strip control characters", "a\x01b\x02c\x07", "abc"},
		{"newlines become spaces", "first line\nsecond\tline", "first line second line"},
		{"collapse whitespace", "  lots   of\n\n\nspace  ", "lots of space"},
		{"strip html tags", "<b>bold</b> label", "bold label"},
		{"strip script tags", "<script>alert(1)</script>x", "alert(1)x"},
		{"strip ansi colour", "\x1b[31mred\x1b[0m label", "red label"},
		{"strip osc title", "\x1b]0;pwned\x07label", "label"},
		{"strip zero-width", "tar\u200bgeted", "targeted"},
		{"invalid utf8 dropped", "ok\xffay", "okay"},
		{"keeps unicode letters", "PrEP für Männer", "PrEP für Männer"},
		{"keeps comparison text", "a < b and c > d", "a < b and c > d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.input); got != tt.want {
				t.Errorf("Label(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLabel_Truncates(t *testing.T) {
	got := Label(strings.Repeat("é", MaxLabelLength+20))
	if n := utf8.RuneCountInString(got); n != MaxLabelLength {
		t.Errorf("rune count = %d, want %d", n, MaxLabelLength)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
}

func TestLabel_TruncationTrimsTrailingSpace(t *testing.T) {
	input := strings.Repeat("a", MaxLabelLength-1) + " tail"
	got := Label(input)
	if strings.HasSuffix(got, " ") {
		t.Errorf("trailing space kept: %q", got)
	}
	if len(got) != MaxLabelLength-1 {
		t.Errorf("len = %d, want %d", len(got), MaxLabelLength-1)
	}
}

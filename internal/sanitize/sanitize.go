// Package sanitize cleans user-supplied text, such as experiment labels,
// before it is stored and later printed in terminal tables.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLabelLength is the maximum allowed length of a label, in runes.
const MaxLabelLength = 80

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reANSI matches terminal escape sequences (CSI and OSC).
	reANSI = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

	reSpaces = regexp.MustCompile(`\s+`)
)

// Label returns s as a single printable line: escape sequences, tags and
// control characters are removed, runs of whitespace collapse to one
// space, and the result is trimmed and truncated to MaxLabelLength runes.
func Label(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, "")
	s = reANSI.ReplaceAllString(s, "")
	s = reXMLTag.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))

	if utf8.RuneCountInString(s) > MaxLabelLength {
		s = strings.TrimSpace(string([]rune(s)[:MaxLabelLength]))
	}
	return s
}

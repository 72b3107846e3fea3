package quiz

import (
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	blankLines   = regexp.MustCompile(`\n\s*\n`)
)

// Sanitize strips control characters (keeping newlines and tabs),
// normalizes line endings and collapses blank lines. Scanner output can
// carry raw response evidence; none of it should be able to smuggle
// instructions or garbage bytes into the prompt.
func Sanitize(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = blankLines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

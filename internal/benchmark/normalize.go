package benchmark

import "strings"

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Normalize strips a single sentence-final period unless it follows another
// period or whitespace, so ellipses and "x. ." survive and
// Normalize(Normalize(s)) == Normalize(s). Before that, newlines become
// spaces and the text is lowercased and trimmed.
func Normalize(raw string) string {
	s := strings.TrimSpace(strings.ToLower(newlines.Replace(raw)))
	if n := len(s); n > 0 && s[n-1] == '.' {
		if n == 1 {
			return ""
		}
		if prev := s[n-2]; prev != '.' && prev != ' ' && prev != '\t' {
			s = s[:n-1]
		}
	}
	return s
}

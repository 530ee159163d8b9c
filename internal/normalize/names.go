package normalize

import (
	"strings"
	"unicode"
)

// FormatName turns "Last, First" into "First Last" in title case. It
// reports false when raw carries no comma.
func FormatName(raw string) (string, bool) {
	if !strings.Contains(raw, ",") {
		return "", false
	}
	parts := strings.Split(raw, ",")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	name := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if name == "" {
		return "", false
	}
	return titleCase(name), true
}

// titleCase upper-cases every letter that follows a non-letter and
// lower-cases the rest, so "o'NEIL" reads "O'Neil".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

package authority

import (
	"regexp"
	"strings"
)

// smallWords stay lowercase in title-casing unless they open or close the
// string, per spec.md §4.6.
var smallWords = map[string]bool{
	"of": true, "and": true, "in": true, "on": true,
	"for": true, "to": true, "the": true, "a": true, "an": true,
}

var whitespacePattern = regexp.MustCompile(`\s+`)
var subjectSeparators = regexp.MustCompile(`[,;|]+`)

// cleanSubject strips, collapses whitespace, and replaces list separators
// with a single space, the first step of NormalizeSubject.
func cleanSubject(raw string) string {
	s := subjectSeparators.ReplaceAllString(raw, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// titleCaseSmallWords title-cases s, keeping smallWords lowercase unless
// they are the first or last token.
func titleCaseSmallWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		lower := strings.ToLower(w)
		if smallWords[lower] && i != 0 && i != len(words)-1 {
			words[i] = lower
			continue
		}
		words[i] = capitalizeWord(w)
	}
	return strings.Join(words, " ")
}

func capitalizeWord(w string) string {
	if w == "" {
		return w
	}
	lower := strings.ToLower(w)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// isAcronym reports whether w is an all-caps token of 4 letters or fewer,
// the exception NormalizeCreator/Publisher preserves verbatim.
func isAcronym(w string) bool {
	if len(w) == 0 || len(w) > 4 {
		return false
	}
	for _, r := range w {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// NormalizeCreatorPublisher implements §4.6's NormalizeCreator/Publisher:
// trim/collapse whitespace, flip "Last, First" to "First Last", then
// token-by-token smart-title-case, leaving short all-caps acronyms as-is.
func NormalizeCreatorPublisher(raw string) string {
	s := whitespacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
	if s == "" {
		return ""
	}
	if idx := strings.Index(s, ","); idx >= 0 && idx < len(s)-1 {
		last := strings.TrimSpace(s[:idx])
		first := strings.TrimSpace(s[idx+1:])
		if last != "" && first != "" && !strings.Contains(first, ",") {
			s = first + " " + last
		}
	}

	words := strings.Fields(s)
	for i, w := range words {
		if isAcronym(w) {
			continue
		}
		words[i] = capitalizeWord(w)
	}
	return strings.Join(words, " ")
}

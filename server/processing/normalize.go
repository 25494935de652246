package processing

import "strings"

// Normalize strips the formatting artifacts models wrap around JSON answers:
// surrounding whitespace, Markdown code fences and stray backticks, and the
// fence language tag "json" left at the front once the fence is gone.
//
// It does no JSON repair. Broken JSON stays broken for the validator to
// reject. Normalize is idempotent.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "`", "")
	s = strings.TrimSpace(s)

	// a JSON document cannot start with "json", so stripping repeatedly is safe
	for len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = strings.TrimSpace(s[4:])
	}
	return s
}

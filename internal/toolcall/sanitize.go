package toolcall

import "strings"

// Sanitize strips every tool_code and json block from a reply and trims the
// result. Removal repeats until nothing matches, so Sanitize is idempotent.
func Sanitize(text string) string {
	for {
		cleaned := text
		for _, token := range []string{tokenToolCode, tokenJSON} {
			cleaned = blockPatterns[token].ReplaceAllString(cleaned, "")
		}
		if cleaned == text {
			break
		}
		text = cleaned
	}
	return strings.TrimSpace(text)
}

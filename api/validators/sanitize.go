package validators

import "strings"

// SanitizeString trims surrounding whitespace and truncates to maxLen runes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	runes := []rune(trimmed)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return trimmed
}

// OptionalString returns nil for blank input.
func OptionalString(input string, maxLen int) *string {
	cleaned := SanitizeString(input, maxLen)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

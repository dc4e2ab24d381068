// Package logging holds helpers for writing user data into logs safely.
package logging

import "strings"

const maxLoggedLen = 24

// MaskValue renders a sampled data value for log output. Everything past
// the first and last character is masked, and long values are truncated.
// Sampled values routinely contain PII; they never appear verbatim above
// Debug level.
func MaskValue(s string) string {
	if s == "" {
		return ""
	}
	if len(s) > maxLoggedLen {
		s = s[:maxLoggedLen]
	}
	if len(s) <= 2 {
		return strings.Repeat("*", len(s))
	}
	return s[:1] + strings.Repeat("*", len(s)-2) + s[len(s)-1:]
}

// MaskValues masks a slice of sampled values for log output.
func MaskValues(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = MaskValue(v)
	}
	return out
}

// RedactKey hides an API key, keeping only a short prefix for recognition.
func RedactKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-2:]
}

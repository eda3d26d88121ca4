// Package logging holds helpers for keeping credentials and raw data values
// out of log output.
package logging

import (
	"regexp"
	"unicode/utf8"
)

const (
	// MaxValueLogLength bounds how much of a raw data value is logged.
	MaxValueLogLength = 64
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx in key/value and ADO-style DSNs
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in URL-style DSNs (postgres://, sqlserver://)
	userInfoPattern = regexp.MustCompile(`://[^:/@\s]+:\S*@`)
)

// SanitizeConnectionString removes credentials from a storage DSN.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return userInfoPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// SanitizeError removes credentials from driver error messages, which
// sometimes echo the DSN back.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeConnectionString(err.Error())
}

// TruncateValue shortens a raw cell or record for logging without splitting
// a multi-byte character.
func TruncateValue(s string) string {
	return TruncateString(s, MaxValueLogLength)
}

// TruncateString truncates s to maxLen runes and adds an ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

package logging

import (
	"regexp"
)

const (
	// MaxPreviewLength is the maximum length of generator output included in logs
	MaxPreviewLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in URL-style connection strings
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// Provider API keys (OpenAI "sk-...", Anthropic "sk-ant-...") and bearer tokens
	apiKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9_-]{16,}`)
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
)

// SanitizeConnectionString removes credentials from a postgres connection string.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeError strips credentials and API keys from an error message.
// Generator clients sometimes echo request headers or URLs in their errors.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := SanitizeConnectionString(err.Error())
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	return sanitized
}

// Preview truncates generator output for inclusion in log fields.
func Preview(s string) string {
	if len(s) <= MaxPreviewLength {
		return s
	}
	return s[:MaxPreviewLength] + "..."
}

// Package safety scrubs credentials from text before it reaches the log file
// or the audit record.
package safety

import "regexp"

type redactionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

const secretWords = `token|secret|password|passwd|api[_-]?key|access[_-]?key`

var secretRedactionRules = []redactionRule{
	{
		// Google API keys, as carried in embedding and live-query errors.
		pattern:     regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`),
		replacement: `<redacted>`,
	},
	{
		pattern:     regexp.MustCompile(`(?i)([?&](?:key|api_key|access_token)=)[^&\s"']+`),
		replacement: `$1<redacted>`,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(x-goog-api-key\s*:)\s*([^\s"']+)`),
		replacement: `$1 <redacted>`,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b([a-z0-9_]*(?:` + secretWords + `)[a-z0-9_]*)\s*=\s*([^\s"']+|"[^"]*"|'[^']*')`),
		replacement: `$1=<redacted>`,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b([a-z0-9_]*(?:` + secretWords + `)[a-z0-9_]*)\s*:\s*([^\s"']+|"[^"]*"|'[^']*')`),
		replacement: `$1=<redacted>`,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(authorization\s*:\s*bearer)\s+([^\s"']+)`),
		replacement: `$1 <redacted>`,
	},
	{
		pattern:     regexp.MustCompile(`(?i)(--[a-z0-9_-]*(?:` + secretWords + `|authorization)[a-z0-9_-]*)\s*=\s*([^\s"']+|"[^"]*"|'[^']*')`),
		replacement: `$1=<redacted>`,
	},
	{
		pattern:     regexp.MustCompile(`(?i)(--[a-z0-9_-]*(?:` + secretWords + `|authorization)[a-z0-9_-]*)\s+([^\s"']+|"[^"]*"|'[^']*')`),
		replacement: `$1 <redacted>`,
	},
	{
		// Spoken form: "my password is hunter2".
		pattern:     regexp.MustCompile(`(?i)\b((?:` + secretWords + `)(?:\s+is)?)\s+([^\s"']+|"[^"]*"|'[^']*')`),
		replacement: `$1 <redacted>`,
	},
}

// RedactText scrubs API keys, tokens and passwords from free-form text.
func RedactText(input string) string {
	redacted := input
	for _, rule := range secretRedactionRules {
		redacted = rule.pattern.ReplaceAllString(redacted, rule.replacement)
	}
	return redacted
}

// RedactError returns the redacted message of err, or "" for nil.
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return RedactText(err.Error())
}

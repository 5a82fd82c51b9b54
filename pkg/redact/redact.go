// Package redact scrubs PII from text before it leaves the service.
package redact

import "regexp"

var (
	emailRE = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\-\s().]{7,}\d`)
)

// MaxChars caps redacted text so that upstream prompts stay short. The cap
// counts characters, not bytes, so truncation never splits a rune.
const MaxChars = 200

// PII replaces email addresses and phone numbers with redaction markers and
// truncates the result to MaxChars characters.
func PII(text string) string {
	scrubbed := emailRE.ReplaceAllString(text, "[REDACTED_EMAIL]")
	scrubbed = phoneRE.ReplaceAllString(scrubbed, "[REDACTED_PHONE]")
	if runes := []rune(scrubbed); len(runes) > MaxChars {
		scrubbed = string(runes[:MaxChars])
	}
	return scrubbed
}

// BucketAmount maps a compensation value onto a coarse band so raw figures
// never land in logs.
func BucketAmount(v float64) string {
	switch {
	case v < 50_000:
		return "<50k"
	case v < 100_000:
		return "50k-100k"
	case v < 200_000:
		return "100k-200k"
	case v < 300_000:
		return "200k-300k"
	default:
		return "300k+"
	}
}

package logging

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRe   = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe   = regexp.MustCompile(`\+?\d[\d .\-()]{7,}\d`)
	curpRe    = regexp.MustCompile(`\b[A-Z]{4}\d{6}[HM][A-Z]{5}[A-Z0-9]\d\b`)
	cpfRe     = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)
	keyHexRe  = regexp.MustCompile(`(?i)(key\s*[:=]\s*)[0-9a-f]{16,}`)
	bearerRe  = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._\-+/=]+`)
	longNumRe = regexp.MustCompile(`\b\d{9,}\b`)
)

// Scrub strips identifier-shaped fragments and credentials from a free-form
// string. It is shape-based and conservative: ordinary words pass through
// untouched, anything matching an email, phone, national ID, long digit run,
// key material, or bearer token is replaced with a class marker.
func Scrub(s string) string {
	if s == "" {
		return s
	}
	out := s
	out = bearerRe.ReplaceAllString(out, "${1}[SCRUBBED]")
	out = keyHexRe.ReplaceAllString(out, "${1}[SCRUBBED]")
	out = curpRe.ReplaceAllString(out, "[SCRUBBED_ID]")
	out = cpfRe.ReplaceAllString(out, "[SCRUBBED_ID]")
	out = emailRe.ReplaceAllString(out, "[SCRUBBED_EMAIL]")
	out = phoneRe.ReplaceAllString(out, "[SCRUBBED_NUMBER]")
	out = longNumRe.ReplaceAllString(out, "[SCRUBBED_NUMBER]")
	for strings.Contains(out, "[SCRUBBED_NUMBER][SCRUBBED_NUMBER]") {
		out = strings.ReplaceAll(out, "[SCRUBBED_NUMBER][SCRUBBED_NUMBER]", "[SCRUBBED_NUMBER]")
	}
	return out
}

// Scrubf formats like fmt.Sprintf and scrubs the result.
func Scrubf(format string, args ...any) string {
	return Scrub(fmt.Sprintf(format, args...))
}

// ScrubErr renders an error through Scrub; safe on nil.
func ScrubErr(err error) string {
	if err == nil {
		return ""
	}
	return Scrub(err.Error())
}

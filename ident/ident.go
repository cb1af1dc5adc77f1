// Package ident defines the identifier schemes used to join a shipping label
// to its spreadsheet row. Two mutually exclusive schemes exist in the wild:
// carrier tracking numbers (BR...BR) and marketplace order numbers. A run
// picks one scheme and applies it to both the spreadsheet and the PDF.
package ident

import (
	"regexp"
	"strings"
)

// Scheme selects the identifier format for a run.
type Scheme string

const (
	// SchemeTracking matches carrier tracking numbers: a BR prefix, 9-15
	// alphanumerics, optionally suffixed by BR again. Case-insensitive,
	// normalized to uppercase.
	SchemeTracking Scheme = "tracking"
	// SchemeOrder matches marketplace order numbers: 6 digits, one uppercase
	// letter, then 5-11 alphanumerics, word-bounded. Case is preserved.
	SchemeOrder Scheme = "order"
)

var (
	trackingPattern = regexp.MustCompile(`(?i)BR[A-Z0-9]{9,15}BR|BR[A-Z0-9]{9,15}`)
	orderPattern    = regexp.MustCompile(`\b[0-9]{6}[A-Z][A-Z0-9]{5,11}\b`)
)

// Valid reports whether s names a known scheme.
func (s Scheme) Valid() bool { return s == SchemeTracking || s == SchemeOrder }

// Pattern returns the compiled identifier pattern for the scheme.
func (s Scheme) Pattern() *regexp.Regexp {
	if s == SchemeOrder {
		return orderPattern
	}
	return trackingPattern
}

// Normalize canonicalizes a raw identifier for index keys and lookups.
func (s Scheme) Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if s == SchemeOrder {
		return raw
	}
	return strings.ToUpper(raw)
}

// Matches reports whether value contains an identifier under the scheme.
func (s Scheme) Matches(value string) bool {
	return s.Pattern().MatchString(value)
}

// ExtractFirst returns the first identifier found in text, normalized, using
// order-preserving de-duplication over all matches. Ok is false when the
// text contains no identifier.
func (s Scheme) ExtractFirst(text string) (id string, ok bool) {
	matches := s.Pattern().FindAllString(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		n := s.Normalize(m)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if id == "" {
			id = n
		}
	}
	return id, true
}

// Charset returns the characters an identifier may contain, used as an OCR
// recognition whitelist.
func (s Scheme) Charset() string {
	return "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
}

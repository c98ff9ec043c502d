// Package normalize deterministically cleans raw feed text before it is
// persisted and handed to the extraction prompt renderer.
package normalize

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Leading hype markers: repeated asterisks, warning/siren emoji, and
	// bracketed or plain urgency prefixes, case-insensitively.
	leadingMarkerRe = regexp.MustCompile(`(?i)^(?:\*+|⚠️|🚨|\[breaking\]|breaking:|alert:|urgent:|\s)+`)

	// Wire-style datelines: "LONDON (Reuters) — " or similar.
	datelineRe = regexp.MustCompile(`^[A-Z][A-Z .'-]{1,40}\s*\((?:AP|REUTERS|AFP|BLOOMBERG)\)\s*[—:-]\s*`)

	// Trailing source attributions: "... - AP", "... - Reuters".
	sourceSuffixRe = regexp.MustCompile(`(?i)\s*-\s*(AP|REUTERS|AFP|AXIOS|BLOOMBERG)\s*$`)

	// Repeated punctuation: "!!!", "??", "...." collapsed to one char.
	punctRepeatRe = regexp.MustCompile(`([!?.,:;])\1+`)
)

// Text applies the normalization pipeline deterministically, repeating it
// until a pass changes nothing: the same input always produces the same
// output, and running the result back through Text again is a no-op.
func Text(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		prev := s
		s = collapseWhitespace(s)
		s = leadingMarkerRe.ReplaceAllString(s, "")
		s = datelineRe.ReplaceAllString(s, "")
		s = sourceSuffixRe.ReplaceAllString(s, "")
		s = punctRepeatRe.ReplaceAllString(s, "$1")
		s = collapseWhitespace(s)
		s = strings.TrimSpace(s)
		if s == prev {
			return s
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

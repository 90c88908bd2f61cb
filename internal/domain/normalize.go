package domain

import (
	"regexp"
	"strings"
)

var (
	quoteReplacer = strings.NewReplacer(
		"‘", "'", "’", "'",
		"“", `"`, "”", `"`,
		"–", "-",
	)
	lumaPrefix = regexp.MustCompile(`https?://(www\.)?lu\.ma/`)
)

// NormalizeTitle canonicalizes an event title for fingerprinting:
//   - lowercase, trimmed, whitespace runs collapsed to one space
//   - curly quotes become straight quotes, en-dash becomes hyphen
//   - trailing '!', '?' and '.' are stripped
func NormalizeTitle(title string) string {
	s := collapseSpaces(strings.ToLower(title))
	if s == "" {
		return ""
	}
	s = quoteReplacer.Replace(s)
	return strings.TrimRight(s, "!?.")
}

// NormalizeLocation canonicalizes a location for fingerprinting. Hosted
// lu.ma event pages normalize to "luma/<slug>" regardless of scheme or www.
func NormalizeLocation(location string) string {
	s := collapseSpaces(strings.ToLower(location))
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, ", ", ",")
	s = lumaPrefix.ReplaceAllString(s, "luma/")
	return strings.TrimRight(s, "/")
}

// collapseSpaces trims and compresses every whitespace run into one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Package normalize cleans up holiday titles coming out of the source
// feeds and documents: bracketed annotations are removed, part-day
// designations are promoted to full-day holidays, and a couple of known
// source misspellings are fixed.
package normalize

import (
	"regexp"
	"strings"
)

var (
	// Sources annotate holidays in several bracket styles, e.g.
	// "Adelaide Cup (Regional Holiday)" or "Easter Sunday [Not Statewide]".
	parens  = regexp.MustCompile(`\s*\([^)]*\)`)
	squares = regexp.MustCompile(`\s*\[[^\]]*\]`)
	curlies = regexp.MustCompile(`\s*\{[^}]*\}`)
	angles  = regexp.MustCompile(`\s*<[^>]*>`)

	multiSpace = regexp.MustCompile(`\s{2,}`)
	spacePunct = regexp.MustCompile(`\s+([.,;:!?])`)
	partDay    = regexp.MustCompile(`(?i)(part|half)[\s-]?day public holiday`)
	kingsBday  = regexp.MustCompile(`(?i)king.?s?\s+birthday`)
)

// Clean removes every bracketed segment (including the brackets) from a
// title and tidies the whitespace left behind. Titles without brackets are
// returned unchanged apart from surrounding whitespace.
func Clean(raw string) string {
	s := parens.ReplaceAllString(raw, "")
	s = squares.ReplaceAllString(s, "")
	s = curlies.ReplaceAllString(s, "")
	s = angles.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	s = spacePunct.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// AdjustPartDay rewrites part-day/half-day holiday designations as ordinary
// public holidays. The published calendars treat every holiday as a full
// day, so "Christmas Eve Part-day public holiday" becomes
// "Christmas Eve Public Holiday".
func AdjustPartDay(title string) string {
	return partDay.ReplaceAllString(title, "Public Holiday")
}

// FixKingsBirthday canonicalizes the various source spellings of the June
// holiday ("Kings Birthday", "King's birthday", ...) to "King's Birthday".
func FixKingsBirthday(title string) string {
	if kingsBday.MatchString(title) {
		return "King's Birthday"
	}
	return title
}

// CleanTitle applies the full cleanup used for extracted holiday rows.
func CleanTitle(raw string) string {
	return FixKingsBirthday(AdjustPartDay(Clean(raw)))
}

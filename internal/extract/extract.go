// Package extract turns fetched source content (ICS feeds, PDF text,
// listing pages) into normalized event rows. The ICS- and PDF-backed
// extractors are interchangeable behind the Source interface, isolating the
// layout-coupled parsing to one swappable implementation per source.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNoData means the source was fetched successfully but yielded no
	// usable events (or an implausible number of them). Distinct from a
	// fetch failure: the resource is reachable, the parsing rules are stale.
	ErrNoData = errors.New("no events extracted")

	// ErrMalformed means the content could not be parsed at all.
	ErrMalformed = errors.New("malformed source content")
)

// Row is one raw (date, title) pair as read from a source, before title
// normalization.
type Row struct {
	Date  time.Time
	Title string
}

// Source produces raw event rows from already-fetched content.
type Source interface {
	Events() ([]Row, error)
}

var (
	weekdayPrefix = regexp.MustCompile(`(?i)^(?:mon|tues|wednes|thurs|fri|satur|sun)day,?\s+`)
	ordinalSuffix = regexp.MustCompile(`(\d{1,2})(?:st|nd|rd|th)\b`)
)

// auDateLayouts are tried in order for Australian-style date strings.
var auDateLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"2/1/2006",
	"2-1-2006",
}

// ParseAUDate parses a date string as it appears in the SA sources:
// "Wednesday 1 January 2025", "1 January", "1 Jan 2025" or "01/01/2025".
// year supplies the year when the string carries none (table column
// headers hold it in the PDF layout).
func ParseAUDate(s string, year int) (time.Time, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "–", "-") // en-dash
	s = weekdayPrefix.ReplaceAllString(s, "")
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date: %w", ErrMalformed)
	}

	candidates := []string{s}
	if year > 0 && !strings.Contains(s, fmt.Sprint(year)) {
		candidates = append(candidates, fmt.Sprintf("%s %d", s, year))
	}
	for _, c := range candidates {
		for _, layout := range auDateLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q: %w", s, ErrMalformed)
}

// CheckBounds enforces the plausibility window on an extracted event count.
// An out-of-range count is a hard failure; guessing which rows are spurious
// would silently publish a wrong calendar.
func CheckBounds(count, min, max int) error {
	if count == 0 {
		return ErrNoData
	}
	if min > 0 && count < min {
		return fmt.Errorf("extracted %d events, below minimum %d: %w", count, min, ErrNoData)
	}
	if max > 0 && count > max {
		return fmt.Errorf("extracted %d events, above maximum %d: %w", count, max, ErrNoData)
	}
	return nil
}

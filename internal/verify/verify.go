// Package verify re-reads a generated calendar file and checks the
// generator's structural invariants. It is a regression check on the just
// written output, not a gate: violations are reported prominently but the
// file has already been written.
package verify

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// Invariant names reported on violation.
const (
	InvariantEventCount = "event_count"
	InvariantNoBrackets = "no_brackets"
	InvariantAllDay     = "all_day"
	InvariantYearRange  = "year_range"
	InvariantTermGaps   = "term_gap_pairs"
)

// Options bounds the checks for one calendar.
type Options struct {
	MinEvents int
	MaxEvents int
	MinYear   int
	MaxYear   int

	// SchoolCalendar enables the term/holiday pairing check.
	SchoolCalendar bool
}

// Violation is one broken invariant.
type Violation struct {
	Invariant string
	Detail    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Invariant, v.Detail)
}

// Report is the outcome of verifying one file.
type Report struct {
	Path       string
	EventCount int
	Violations []Violation
}

func (r Report) OK() bool { return len(r.Violations) == 0 }

// Summary renders the report human-readably, one line per invariant.
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "verification of %s: %d events\n", r.Path, r.EventCount)
	if r.OK() {
		b.WriteString("  all invariants hold\n")
		return b.String()
	}
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "  FAIL %s\n", v)
	}
	return b.String()
}

var bracketed = regexp.MustCompile(`[(\[{<].*?[)\]}>]`)

var termTitle = regexp.MustCompile(`^Term (\d) (Begins|Ends)$`)
var gapTitle = regexp.MustCompile(`^School Holidays - Term (\d)$`)

// File parses the calendar at path and checks every invariant.
func File(path string, opts Options) (Report, error) {
	report := Report{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return report, fmt.Errorf("reading %s: %w", path, err)
	}
	cal, err := ics.ParseCalendar(strings.NewReader(string(data)))
	if err != nil {
		return report, fmt.Errorf("parsing %s: %w", path, err)
	}

	events := cal.Events()
	report.EventCount = len(events)

	if opts.MinEvents > 0 && len(events) < opts.MinEvents ||
		opts.MaxEvents > 0 && len(events) > opts.MaxEvents {
		report.fail(InvariantEventCount,
			fmt.Sprintf("%d events outside [%d, %d]", len(events), opts.MinEvents, opts.MaxEvents))
	}

	// Keyed per (year, term) so a following year's Term 1 never masks the
	// current year's pairing.
	type termKey struct {
		year   int
		number int
	}
	termEnds := map[termKey]time.Time{}
	gapCounts := map[termKey]int{}
	var latestBegin time.Time

	for _, ve := range events {
		summary := propValue(ve, ics.ComponentPropertySummary)

		if bracketed.MatchString(summary) {
			report.fail(InvariantNoBrackets, fmt.Sprintf("title %q contains brackets", summary))
		}

		dtStart := ve.GetProperty(ics.ComponentPropertyDtStart)
		if dtStart == nil {
			report.fail(InvariantAllDay, fmt.Sprintf("event %q has no DTSTART", summary))
			continue
		}
		if !isAllDay(dtStart) {
			report.fail(InvariantAllDay, fmt.Sprintf("event %q is not all-day", summary))
		}

		date, err := parseDate(dtStart.Value)
		if err != nil {
			report.fail(InvariantYearRange, fmt.Sprintf("event %q has unparseable date %q", summary, dtStart.Value))
			continue
		}
		if opts.MinYear > 0 && date.Year() < opts.MinYear ||
			opts.MaxYear > 0 && date.Year() > opts.MaxYear {
			report.fail(InvariantYearRange,
				fmt.Sprintf("event %q dated %s outside years [%d, %d]",
					summary, date.Format("2006-01-02"), opts.MinYear, opts.MaxYear))
		}

		if m := termTitle.FindStringSubmatch(summary); m != nil {
			k := termKey{date.Year(), int(m[1][0] - '0')}
			if m[2] == "Ends" {
				if cur, ok := termEnds[k]; !ok || date.After(cur) {
					termEnds[k] = date
				}
			} else if date.After(latestBegin) {
				latestBegin = date
			}
		}
		if m := gapTitle.FindStringSubmatch(summary); m != nil {
			gapCounts[termKey{date.Year(), int(m[1][0] - '0')}]++
		}
	}

	if opts.SchoolCalendar {
		// Every term whose end precedes a later term begin must be
		// followed by exactly one holiday gap.
		for k, end := range termEnds {
			if !end.Before(latestBegin) {
				continue
			}
			if got := gapCounts[k]; got != 1 {
				report.fail(InvariantTermGaps,
					fmt.Sprintf("term %d of %d has %d holiday gaps, want exactly 1",
						k.number, k.year, got))
			}
		}
	}

	return report, nil
}

func (r *Report) fail(invariant, detail string) {
	r.Violations = append(r.Violations, Violation{Invariant: invariant, Detail: detail})
}

func propValue(ve *ics.VEvent, name ics.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

func isAllDay(p *ics.IANAProperty) bool {
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

func parseDate(v string) (time.Time, error) {
	layouts := []string{"20060102", "20060102T150405Z", "20060102T150405"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", v)
}

package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "sacal/internal/log"
	"sacal/internal/model"
	"sacal/internal/normalize"
)

// Cap on expanded occurrences per recurring feed event. Feeds publishing a
// rule that explodes past this are stale or broken.
const maxOccurrencesPerEvent = 500

// ICSFeed extracts public-holiday events from an ICS subscription feed.
//
// The cleaned feed preserves every property of a kept VEVENT unchanged
// except SUMMARY, whose value passes through the normalizer; downstream
// calendar apps keep matching on the feed's own UIDs that way. Events
// outside the year window are dropped entirely.
type ICSFeed struct {
	Body []byte

	// MinYear/MaxYear bound recurrence expansion and event retention.
	MinYear int
	MaxYear int
}

// Cleaned returns the feed body ready for publishing: every SUMMARY value
// normalized, every other property byte-for-byte intact, and VEVENT blocks
// dated outside [MinYear, MaxYear] removed, so the published file carries
// exactly the events extraction accepted. Recurring events are kept whole;
// subscribers expand the rule themselves.
func (f *ICSFeed) Cleaned() []byte {
	lines := splitLines(f.Body)
	out := make([]string, 0, len(lines))
	var block []string
	inEvent := false
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "BEGIN:VEVENT"):
			inEvent = true
			block = append(block[:0], line)
		case inEvent:
			block = append(block, cleanSummaryLine(line))
			if strings.HasPrefix(line, "END:VEVENT") {
				inEvent = false
				if f.keepBlock(block) {
					out = append(out, block...)
				}
			}
		default:
			out = append(out, line)
		}
	}
	return []byte(strings.Join(out, "\n"))
}

func cleanSummaryLine(line string) string {
	if strings.HasPrefix(line, "SUMMARY") {
		if p := strings.Index(line, ":"); p >= 0 {
			return line[:p+1] + normalize.Clean(line[p+1:])
		}
	}
	return line
}

// keepBlock reports whether a VEVENT block belongs in the published file:
// recurring events always, single events only when their DTSTART falls in
// the supported window. Blocks without a parseable DTSTART are dropped,
// matching the parser's skip of the same events.
func (f *ICSFeed) keepBlock(block []string) bool {
	var start string
	for _, line := range block {
		if strings.HasPrefix(line, "RRULE") {
			return true
		}
		if strings.HasPrefix(line, "DTSTART") {
			if p := strings.LastIndex(line, ":"); p >= 0 {
				start = line[p+1:]
			}
		}
	}
	date, err := parseICSDate(start)
	if err != nil {
		return false
	}
	return f.inRange(date)
}

// Events parses the feed's VEVENTs into rows, expanding any RRULE into
// per-occurrence rows within [MinYear, MaxYear].
func (f *ICSFeed) Events() ([]Row, error) {
	if len(f.Body) == 0 {
		return nil, fmt.Errorf("empty ICS body: %w", ErrMalformed)
	}

	cal, err := ics.ParseCalendar(bytes.NewReader(f.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing ICS: %v: %w", err, ErrMalformed)
	}

	rows := make([]Row, 0)
	for _, ve := range cal.Events() {
		evRows, perr := f.eventRows(ve)
		if perr != nil {
			// Skip the bad VEVENT but keep parsing the rest.
			appLog.Error("skipping unparseable VEVENT", perr, "uid", safeUID(ve))
			continue
		}
		rows = append(rows, evRows...)
	}

	if len(rows) == 0 {
		return nil, ErrNoData
	}
	return rows, nil
}

func (f *ICSFeed) eventRows(ve *ics.VEvent) ([]Row, error) {
	summary := ""
	if p := ve.GetProperty(ics.ComponentPropertySummary); p != nil {
		summary = p.Value
	}
	if summary == "" {
		return nil, fmt.Errorf("VEVENT without SUMMARY: %w", ErrMalformed)
	}

	dtStart := ve.GetProperty(ics.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return nil, fmt.Errorf("VEVENT without DTSTART: %w", ErrMalformed)
	}
	start, err := parseICSDate(dtStart.Value)
	if err != nil {
		return nil, err
	}

	rruleProp := ve.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		if !f.inRange(start) {
			return nil, nil
		}
		return []Row{{Date: start, Title: summary}}, nil
	}

	// Recurring holiday (some feeds publish yearly rules): expand within
	// the supported window.
	r, err := rrule.StrToRRule(rruleProp.Value)
	if err != nil {
		return nil, fmt.Errorf("parsing RRULE %q: %v: %w", rruleProp.Value, err, ErrMalformed)
	}
	r.DTStart(start)

	after := model.Date(f.MinYear, time.January, 1)
	before := model.Date(f.MaxYear, time.December, 31)
	occurrences := r.Between(after, before, true)
	if len(occurrences) > maxOccurrencesPerEvent {
		appLog.Warn("truncating recurrence expansion",
			"summary", summary, "count", len(occurrences), "cap", maxOccurrencesPerEvent)
		occurrences = occurrences[:maxOccurrencesPerEvent]
	}

	rows := make([]Row, 0, len(occurrences))
	for _, occ := range occurrences {
		rows = append(rows, Row{
			Date:  model.Date(occ.Year(), occ.Month(), occ.Day()),
			Title: summary,
		})
	}
	return rows, nil
}

func (f *ICSFeed) inRange(t time.Time) bool {
	if f.MinYear > 0 && t.Year() < f.MinYear {
		return false
	}
	if f.MaxYear > 0 && t.Year() > f.MaxYear {
		return false
	}
	return true
}

// HolidayEvents converts feed rows into categorized events with cleaned
// titles, keeping the raw title for diagnostics.
func (f *ICSFeed) HolidayEvents() ([]model.HolidayEvent, error) {
	rows, err := f.Events()
	if err != nil {
		return nil, err
	}
	events := make([]model.HolidayEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, model.HolidayEvent{
			Date:     row.Date,
			Title:    normalize.CleanTitle(row.Title),
			Category: model.CategoryPublicHoliday,
			RawTitle: row.Title,
		})
	}
	return events, nil
}

var termNumber = regexp.MustCompile(`Term\s+(\d)`)

// TermRows extracts "Term N" periods from the official school-terms feed.
// DTEND is exclusive in iCalendar, so the stored end date is one day back.
func TermRows(body []byte) ([]model.TermPeriod, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty ICS body: %w", ErrMalformed)
	}
	cal, err := ics.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing term ICS: %v: %w", err, ErrMalformed)
	}

	terms := make([]model.TermPeriod, 0, 4)
	for _, ve := range cal.Events() {
		sumProp := ve.GetProperty(ics.ComponentPropertySummary)
		if sumProp == nil {
			continue
		}
		m := termNumber.FindStringSubmatch(sumProp.Value)
		if m == nil {
			continue
		}
		startProp := ve.GetProperty(ics.ComponentPropertyDtStart)
		endProp := ve.GetProperty(ics.ComponentPropertyDtEnd)
		if startProp == nil || endProp == nil {
			continue
		}
		begin, err := parseICSDate(startProp.Value)
		if err != nil {
			continue
		}
		end, err := parseICSDate(endProp.Value)
		if err != nil {
			continue
		}
		terms = append(terms, model.TermPeriod{
			Year:   begin.Year(),
			Number: int(m[1][0] - '0'),
			Begin:  begin,
			End:    end.AddDate(0, 0, -1),
		})
	}

	if len(terms) == 0 {
		return nil, ErrNoData
	}
	return terms, nil
}

// parseICSDate parses a DTSTART/DTEND value to a midnight-UTC date,
// accepting date-only and date-time forms.
func parseICSDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	layouts := []string{"20060102", "20060102T150405Z", "20060102T150405"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return model.Date(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable ICS date %q: %w", v, ErrMalformed)
}

func splitLines(body []byte) []string {
	s := strings.ReplaceAll(string(body), "\r\n", "\n")
	return strings.Split(s, "\n")
}

func safeUID(ve *ics.VEvent) string {
	if p := ve.GetProperty(ics.ComponentPropertyUniqueId); p != nil {
		return p.Value
	}
	return "(no uid)"
}

package model

import (
	"fmt"
	"time"
)

// Category classifies a calendar event. The string values are what end up in
// the CATEGORIES property of the generated files, so they are part of the
// published calendar contract.
type Category string

const (
	CategoryPublicHoliday Category = "Public Holiday"
	CategorySchoolTerm    Category = "School Term"
	CategorySchoolHoliday Category = "School Holiday"
)

// HolidayEvent is a single all-day calendar entry after extraction and title
// cleanup. Date carries no time-of-day component (midnight UTC).
type HolidayEvent struct {
	Date     time.Time
	Title    string
	Category Category

	// RawTitle is the title as it appeared in the source, kept for
	// diagnostics only; it never reaches the generated file.
	RawTitle string
}

// TermPeriod is one school term with fixed begin/end dates.
type TermPeriod struct {
	Year   int
	Number int // 1..4
	Begin  time.Time
	End    time.Time
}

func (t TermPeriod) String() string {
	return fmt.Sprintf("Term %d %d (%s to %s)",
		t.Number, t.Year, t.Begin.Format("2006-01-02"), t.End.Format("2006-01-02"))
}

// HolidayPeriod is a school holiday gap between two terms, recomputed on
// every run from the term configuration.
type HolidayPeriod struct {
	Start time.Time
	End   time.Time // inclusive

	// AfterTerm is the term number this gap follows (1..4).
	AfterTerm int
	Year      int

	// Special marks a one-off ad-hoc holiday (e.g. a pupil-free day)
	// inserted from configuration rather than derived from a gap.
	Special bool
}

// Outcome summarizes a whole run.
type Outcome string

const (
	OutcomeSuccess        Outcome = "Success"
	OutcomePartialSuccess Outcome = "PartialSuccess"
	OutcomeFailure        Outcome = "Failure"
)

// CalendarResult is the per-calendar result of one run.
type CalendarResult struct {
	Name     string // "public_holidays" or "school_terms"
	Err      error  // terminal error for this calendar, nil on success
	Written  bool   // true if the output file changed on disk
	Verified bool   // true if post-write verification passed
	Notes    []string
}

func (r CalendarResult) OK() bool { return r.Err == nil }

// RunReport aggregates both calendars into an overall outcome.
type RunReport struct {
	PublicHolidays CalendarResult
	SchoolTerms    CalendarResult
}

func (r RunReport) Outcome() Outcome {
	switch {
	case r.PublicHolidays.OK() && r.SchoolTerms.OK():
		return OutcomeSuccess
	case r.PublicHolidays.OK() || r.SchoolTerms.OK():
		return OutcomePartialSuccess
	default:
		return OutcomeFailure
	}
}

// Date builds a civil date at midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Package ical serializes event lists into the published calendar files.
// Output is deterministic: events are sorted, DTSTAMP is pinned and UIDs
// are derived from event content, so regenerating from unchanged sources
// produces byte-identical files and the commit-only-if-changed step
// upstream stays meaningful.
package ical

import (
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"sacal/internal/model"
)

// dtStamp is fixed so regeneration never rewrites files that carry the
// same events.
var dtStamp = time.Date(2025, time.April, 6, 0, 0, 0, 0, time.UTC)

// Header holds the per-calendar identity properties.
type Header struct {
	ProdID   string
	Name     string
	Desc     string
	Timezone string
}

// PublicHolidaysHeader is used when the public-holidays calendar is built
// from extracted rows (PDF fallback path).
func PublicHolidaysHeader(timezone string) Header {
	return Header{
		ProdID:   "-//South Australia//Public Holidays//EN",
		Name:     "South Australia Public Holidays and School Terms",
		Desc:     "Public Holidays and School Terms for South Australia",
		Timezone: timezone,
	}
}

// SchoolTermsHeader identifies the school terms and holidays calendar.
func SchoolTermsHeader(timezone string) Header {
	return Header{
		ProdID:   "-//South Australia School Terms and Holidays//EN",
		Name:     "South Australia School Terms and Holidays",
		Desc:     "School terms and holiday periods in South Australia",
		Timezone: timezone,
	}
}

// EventUID derives the stable UID for an event.
//
// This is a published contract, not an implementation detail: subscribed
// calendar apps deduplicate and update on UID, so the derivation must never
// change for an unchanged event. The format is
//
//	YYYYMMDD-<slug>@southaustralia.<domain>
//
// where slug is the lowercased title with spaces and apostrophes removed,
// and domain is "holidays" for public holidays and "education" for school
// term and school holiday events.
func EventUID(date time.Time, category model.Category, title string) string {
	domain := "holidays"
	if category == model.CategorySchoolTerm || category == model.CategorySchoolHoliday {
		domain = "education"
	}
	return fmt.Sprintf("%s-%s@southaustralia.%s", date.Format("20060102"), slug(title), domain)
}

func slug(title string) string {
	s := strings.ToLower(title)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

func newCalendar(h Header) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetVersion("2.0")
	cal.SetProductId(h.ProdID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(h.Name)
	cal.SetXWRCalDesc(h.Desc)
	cal.SetXWRTimezone(h.Timezone)
	return cal
}

func addAllDay(cal *ics.Calendar, uid string, start, endExclusive time.Time, summary, description string, category model.Category) {
	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(dtStamp)
	ev.SetAllDayStartAt(start)
	ev.SetAllDayEndAt(endExclusive)
	ev.SetSummary(summary)
	if description != "" {
		ev.SetDescription(description)
	}
	ev.SetProperty(ics.ComponentPropertyCategories, string(category))
	ev.SetTimeTransparency(ics.TransparencyTransparent)
}

// BuildHolidayCalendar serializes public-holiday events. Events are sorted
// by date, then category, then title so equal inputs always serialize
// identically.
func BuildHolidayCalendar(events []model.HolidayEvent, h Header) []byte {
	sorted := make([]model.HolidayEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Title < b.Title
	})

	cal := newCalendar(h)
	for _, ev := range sorted {
		addAllDay(cal,
			EventUID(ev.Date, ev.Category, ev.Title),
			ev.Date, ev.Date.AddDate(0, 0, 1),
			ev.Title, "", ev.Category)
	}
	return []byte(cal.Serialize())
}

// BuildSchoolCalendar serializes term begin/end markers and holiday-gap
// periods into the school calendar. Term begin events carry the full term
// range in their DESCRIPTION; holiday periods span their whole range as one
// multi-day all-day event (DTEND exclusive).
func BuildSchoolCalendar(terms []model.TermPeriod, holidays []model.HolidayPeriod, h Header) []byte {
	sortedTerms := make([]model.TermPeriod, len(terms))
	copy(sortedTerms, terms)
	sort.Slice(sortedTerms, func(i, j int) bool {
		return sortedTerms[i].Begin.Before(sortedTerms[j].Begin)
	})
	sortedHols := make([]model.HolidayPeriod, len(holidays))
	copy(sortedHols, holidays)
	sort.Slice(sortedHols, func(i, j int) bool {
		return sortedHols[i].Start.Before(sortedHols[j].Start)
	})

	cal := newCalendar(h)

	for _, t := range sortedTerms {
		beginTitle := fmt.Sprintf("Term %d Begins", t.Number)
		addAllDay(cal,
			fmt.Sprintf("%s-term%dbegins@southaustralia.education", t.Begin.Format("20060102"), t.Number),
			t.Begin, t.Begin.AddDate(0, 0, 1),
			beginTitle,
			fmt.Sprintf("School Term %d: %s to %s",
				t.Number, t.Begin.Format("2 January"), t.End.Format("2 January 2006")),
			model.CategorySchoolTerm)

		endTitle := fmt.Sprintf("Term %d Ends", t.Number)
		addAllDay(cal,
			fmt.Sprintf("%s-term%dends@southaustralia.education", t.End.Format("20060102"), t.Number),
			t.End, t.End.AddDate(0, 0, 1),
			endTitle,
			fmt.Sprintf("Last day of School Term %d", t.Number),
			model.CategorySchoolTerm)
	}

	for _, hp := range sortedHols {
		title := fmt.Sprintf("School Holidays - Term %d", hp.AfterTerm)
		uidPart := fmt.Sprintf("schoolholiday%d", hp.AfterTerm)
		desc := "School holiday period between terms."
		if hp.Special {
			title = fmt.Sprintf("School Holidays - Additional Term %d", hp.AfterTerm)
			uidPart = fmt.Sprintf("schoolholidayAdditional%d", hp.AfterTerm)
			desc = "Additional one-off school holiday."
		}
		addAllDay(cal,
			fmt.Sprintf("%s-%s@southaustralia.education", hp.Start.Format("20060102"), uidPart),
			hp.Start, hp.End.AddDate(0, 0, 1),
			title, desc,
			model.CategorySchoolHoliday)
	}

	return []byte(cal.Serialize())
}

package extract

import (
	"errors"
	"strings"
	"testing"
	"time"

	"sacal/internal/model"
)

func feedBody(events ...string) []byte {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//officeholidays.com//test//EN\r\n")
	for _, ev := range events {
		b.WriteString(ev)
	}
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}

func vevent(uid, date, summary string, extra ...string) string {
	var b strings.Builder
	b.WriteString("BEGIN:VEVENT\r\n")
	b.WriteString("UID:" + uid + "\r\n")
	b.WriteString("DTSTAMP:20250101T000000Z\r\n")
	b.WriteString("DTSTART;VALUE=DATE:" + date + "\r\n")
	b.WriteString("SUMMARY:" + summary + "\r\n")
	for _, line := range extra {
		b.WriteString(line + "\r\n")
	}
	b.WriteString("END:VEVENT\r\n")
	return b.String()
}

func TestICSFeedCleaned(t *testing.T) {
	t.Parallel()

	t.Run("summary values normalized, everything else intact", func(t *testing.T) {
		t.Parallel()
		body := feedBody(
			vevent("cup@officeholidays.com", "20250310", "Adelaide Cup (Regional Holiday)"),
			vevent("ny@officeholidays.com", "20250101", "New Year's Day"),
		)
		cleaned := string((&ICSFeed{Body: body}).Cleaned())

		if !strings.Contains(cleaned, "SUMMARY:Adelaide Cup\n") &&
			!strings.Contains(cleaned, "SUMMARY:Adelaide Cup\r") {
			t.Error("bracketed region not stripped from SUMMARY")
		}
		if strings.Contains(cleaned, "(Regional Holiday)") {
			t.Error("cleaned feed still contains the bracketed region")
		}
		// Everything except SUMMARY lines is untouched.
		for _, want := range []string{
			"UID:cup@officeholidays.com",
			"DTSTART;VALUE=DATE:20250310",
			"SUMMARY:New Year's Day",
			"BEGIN:VCALENDAR",
			"END:VCALENDAR",
		} {
			if !strings.Contains(cleaned, want) {
				t.Errorf("cleaned feed missing %q", want)
			}
		}
	})

	t.Run("out-of-window events dropped, recurring ones kept", func(t *testing.T) {
		t.Parallel()
		body := feedBody(
			vevent("old@officeholidays.com", "20200101", "New Year's Day"),
			vevent("cup@officeholidays.com", "20250310", "Adelaide Cup"),
			vevent("rec@officeholidays.com", "20240101", "New Year's Day", "RRULE:FREQ=YEARLY"),
		)
		cleaned := string((&ICSFeed{Body: body, MinYear: 2025, MaxYear: 2026}).Cleaned())

		if strings.Contains(cleaned, "old@officeholidays.com") ||
			strings.Contains(cleaned, "DTSTART;VALUE=DATE:20200101") {
			t.Error("out-of-window event survived cleaning")
		}
		for _, want := range []string{
			"UID:cup@officeholidays.com",
			"UID:rec@officeholidays.com",
			"RRULE:FREQ=YEARLY",
			"BEGIN:VCALENDAR",
			"END:VCALENDAR",
		} {
			if !strings.Contains(cleaned, want) {
				t.Errorf("cleaned feed missing %q", want)
			}
		}
	})
}

func TestICSFeedEvents(t *testing.T) {
	t.Parallel()

	t.Run("plain events within window", func(t *testing.T) {
		t.Parallel()
		f := &ICSFeed{
			Body: feedBody(
				vevent("a@x", "20250101", "New Year's Day"),
				vevent("b@x", "20250310", "Adelaide Cup"),
				vevent("c@x", "20300101", "Far Future Day"),
			),
			MinYear: 2025,
			MaxYear: 2026,
		}
		rows, err := f.Events()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows (out-of-window event dropped), got %d", len(rows))
		}
		if !rows[0].Date.Equal(model.Date(2025, time.January, 1)) || rows[0].Title != "New Year's Day" {
			t.Errorf("row 0 = %+v", rows[0])
		}
	})

	t.Run("recurring event expands within window", func(t *testing.T) {
		t.Parallel()
		f := &ICSFeed{
			Body: feedBody(
				vevent("r@x", "20240101", "New Year's Day", "RRULE:FREQ=YEARLY;COUNT=10"),
			),
			MinYear: 2025,
			MaxYear: 2026,
		}
		rows, err := f.Events()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 expanded occurrences, got %d", len(rows))
		}
		if !rows[0].Date.Equal(model.Date(2025, time.January, 1)) {
			t.Errorf("first occurrence = %v, want 2025-01-01", rows[0].Date)
		}
		if !rows[1].Date.Equal(model.Date(2026, time.January, 1)) {
			t.Errorf("second occurrence = %v, want 2026-01-01", rows[1].Date)
		}
	})

	t.Run("bad VEVENT is skipped, rest survive", func(t *testing.T) {
		t.Parallel()
		noSummary := "BEGIN:VEVENT\r\nUID:bad@x\r\nDTSTAMP:20250101T000000Z\r\n" +
			"DTSTART;VALUE=DATE:20250101\r\nEND:VEVENT\r\n"
		f := &ICSFeed{
			Body:    feedBody(noSummary, vevent("ok@x", "20250310", "Adelaide Cup")),
			MinYear: 2025,
			MaxYear: 2026,
		}
		rows, err := f.Events()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rows) != 1 || rows[0].Title != "Adelaide Cup" {
			t.Fatalf("expected only the valid event, got %+v", rows)
		}
	})

	t.Run("empty body is malformed", func(t *testing.T) {
		t.Parallel()
		_, err := (&ICSFeed{}).Events()
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("no usable events", func(t *testing.T) {
		t.Parallel()
		f := &ICSFeed{Body: feedBody(), MinYear: 2025, MaxYear: 2026}
		_, err := f.Events()
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	})
}

func TestICSFeedHolidayEvents(t *testing.T) {
	t.Parallel()

	f := &ICSFeed{
		Body: feedBody(
			vevent("a@x", "20250310", "Adelaide Cup (Regional Holiday)"),
			vevent("b@x", "20250609", "Kings Birthday"),
		),
		MinYear: 2025,
		MaxYear: 2026,
	}
	events, err := f.HolidayEvents()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Title != "Adelaide Cup" {
		t.Errorf("title = %q, want cleaned %q", events[0].Title, "Adelaide Cup")
	}
	if events[0].RawTitle != "Adelaide Cup (Regional Holiday)" {
		t.Errorf("raw title = %q, want the original", events[0].RawTitle)
	}
	if events[1].Title != "King's Birthday" {
		t.Errorf("title = %q, want %q", events[1].Title, "King's Birthday")
	}
	if events[0].Category != model.CategoryPublicHoliday {
		t.Errorf("category = %q", events[0].Category)
	}
}

func TestTermRows(t *testing.T) {
	t.Parallel()

	termEvent := func(uid, summary, start, endExclusive string) string {
		return "BEGIN:VEVENT\r\nUID:" + uid + "\r\nDTSTAMP:20250101T000000Z\r\n" +
			"DTSTART;VALUE=DATE:" + start + "\r\n" +
			"DTEND;VALUE=DATE:" + endExclusive + "\r\n" +
			"SUMMARY:" + summary + "\r\nEND:VEVENT\r\n"
	}

	body := feedBody(
		termEvent("t1@edu", "Term 1", "20250128", "20250412"),
		termEvent("t2@edu", "Term 2", "20250428", "20250705"),
		vevent("noise@edu", "20250601", "Pupil free day"),
	)

	terms, err := TermRows(body)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(terms))
	}
	if terms[0].Number != 1 || terms[1].Number != 2 {
		t.Errorf("term numbers = %d, %d", terms[0].Number, terms[1].Number)
	}
	// DTEND is exclusive, stored end is the last day of term.
	if !terms[0].End.Equal(model.Date(2025, time.April, 11)) {
		t.Errorf("term 1 end = %v, want 2025-04-11", terms[0].End)
	}
	if terms[0].Year != 2025 {
		t.Errorf("term 1 year = %d, want 2025", terms[0].Year)
	}

	if _, err := TermRows(feedBody(vevent("x@edu", "20250101", "Assembly"))); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData for a feed without terms, got %v", err)
	}
}

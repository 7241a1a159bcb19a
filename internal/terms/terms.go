// Package terms turns the configured school term dates into ordered
// TermPeriod values and derives the holiday gaps between them.
package terms

import (
	"errors"
	"fmt"
	"sort"

	"sacal/internal/config"
	"sacal/internal/model"
)

var (
	// ErrMissingTermYear means no term dates are configured for a
	// requested year. Reported, never silently skipped: emitting an empty
	// school calendar would look like a successful update.
	ErrMissingTermYear = errors.New("no term dates configured for year")

	// ErrBadTermOrder means the configured terms overlap or are out of
	// order.
	ErrBadTermOrder = errors.New("term dates out of order")
)

// ForYear builds the four ordered TermPeriods for a configured year.
func ForYear(cfg *config.Config, year int) ([]model.TermPeriod, error) {
	td, ok := cfg.Terms[year]
	if !ok {
		return nil, fmt.Errorf("year %d: %w", year, ErrMissingTermYear)
	}

	pairs := [][2]string{
		{td.Term1Begin, td.Term1End},
		{td.Term2Begin, td.Term2End},
		{td.Term3Begin, td.Term3End},
		{td.Term4Begin, td.Term4End},
	}

	out := make([]model.TermPeriod, 0, 4)
	for i, p := range pairs {
		begin, err := config.ParseDate(p[0])
		if err != nil {
			return nil, fmt.Errorf("year %d term %d begin: %w", year, i+1, err)
		}
		end, err := config.ParseDate(p[1])
		if err != nil {
			return nil, fmt.Errorf("year %d term %d end: %w", year, i+1, err)
		}
		out = append(out, model.TermPeriod{Year: year, Number: i + 1, Begin: begin, End: end})
	}

	if err := checkOrder(out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkOrder(terms []model.TermPeriod) error {
	for i, t := range terms {
		if !t.Begin.Before(t.End) {
			return fmt.Errorf("%s begins on or after its end: %w", t, ErrBadTermOrder)
		}
		if i > 0 && !terms[i-1].End.Before(t.Begin) {
			return fmt.Errorf("%s starts before %s ends: %w", t, terms[i-1], ErrBadTermOrder)
		}
	}
	return nil
}

// Gaps derives one HolidayPeriod per gap between consecutive terms:
// term N end + 1 day through term N+1 begin - 1 day. When the slice carries
// the following year's Term 1, the Term 4 gap spans the year boundary.
func Gaps(terms []model.TermPeriod) []model.HolidayPeriod {
	sorted := make([]model.TermPeriod, len(terms))
	copy(sorted, terms)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Begin.Before(sorted[j].Begin) })

	gaps := make([]model.HolidayPeriod, 0, len(sorted))
	for i := 0; i+1 < len(sorted); i++ {
		a, b := sorted[i], sorted[i+1]
		if !b.Begin.After(a.End.AddDate(0, 0, 1)) {
			continue // back-to-back terms, no gap
		}
		gaps = append(gaps, model.HolidayPeriod{
			Start:     a.End.AddDate(0, 0, 1),
			End:       b.Begin.AddDate(0, 0, -1),
			AfterTerm: a.Number,
			Year:      a.Year,
		})
	}
	return gaps
}

// SpecialHoliday returns the configured one-off holiday for a year as a
// one-day period, or nil when none is configured. It is published under the
// term it falls inside, or the nearest term before it when the day lands in
// a gap; a day before term 1 is a configuration error.
func SpecialHoliday(cfg *config.Config, year int) (*model.HolidayPeriod, error) {
	td, ok := cfg.Terms[year]
	if !ok || td.SpecialHoliday == "" {
		return nil, nil
	}
	day, err := config.ParseDate(td.SpecialHoliday)
	if err != nil {
		return nil, fmt.Errorf("year %d special holiday: %w", year, err)
	}
	ts, err := ForYear(cfg, year)
	if err != nil {
		return nil, err
	}
	after := 0
	for _, t := range ts {
		if !day.Before(t.Begin) && !day.After(t.End) {
			after = t.Number
			break
		}
		if day.After(t.End) {
			after = t.Number
		}
	}
	if after == 0 {
		return nil, fmt.Errorf("year %d special holiday %s precedes term 1: %w",
			year, td.SpecialHoliday, ErrBadTermOrder)
	}
	return &model.HolidayPeriod{
		Start:     day,
		End:       day,
		AfterTerm: after,
		Year:      year,
		Special:   true,
	}, nil
}

// Holidays derives the holiday periods for a resolved term sequence: one
// gap per break between consecutive terms plus any configured special
// holiday for the year, in start order. This is the composition the
// pipeline publishes, whichever source the terms came from.
func Holidays(cfg *config.Config, year int, termList []model.TermPeriod) ([]model.HolidayPeriod, error) {
	holidays := Gaps(termList)

	special, err := SpecialHoliday(cfg, year)
	if err != nil {
		return nil, err
	}
	if special != nil {
		holidays = append(holidays, *special)
		sort.Slice(holidays, func(i, j int) bool {
			return holidays[i].Start.Before(holidays[j].Start)
		})
	}
	return holidays, nil
}

// NextYearKnown reports whether term dates for the year after the given one
// are configured; when they are not, the pipeline tries the fallback page
// for the future Term 1.
func NextYearKnown(cfg *config.Config, year int) bool {
	_, ok := cfg.Terms[year+1]
	return ok
}

// WithFutureTerm1 appends a scraped future Term 1 unless the sequence
// already covers that year's first term.
func WithFutureTerm1(terms []model.TermPeriod, fut model.TermPeriod) []model.TermPeriod {
	for _, t := range terms {
		if t.Year == fut.Year && t.Number == 1 {
			return terms
		}
	}
	return append(terms, fut)
}

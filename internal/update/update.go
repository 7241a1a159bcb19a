// Package update runs the two calendar pipelines. Each calendar is
// processed independently: a failure in one never aborts the other, and the
// run reports Success, PartialSuccess or Failure accordingly.
package update

import (
	"context"
	"fmt"

	"sacal/internal/config"
	"sacal/internal/extract"
	"sacal/internal/fetch"
	"sacal/internal/ical"
	appLog "sacal/internal/log"
	"sacal/internal/model"
	"sacal/internal/normalize"
	"sacal/internal/terms"
	"sacal/internal/verify"
)

// Getter is the fetching capability the pipelines need; satisfied by
// *fetch.Fetcher and by test fakes.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Deps carries the injectable collaborators for one run.
type Deps struct {
	PublicFetcher Getter
	SchoolFetcher Getter
	PublicWriter  *ical.Writer
	SchoolWriter  *ical.Writer
}

// DefaultDeps wires real fetchers and writers, honoring any simulated
// failure in cfg.
func DefaultDeps(cfg *config.Config) Deps {
	sim := cfg.Simulate
	return Deps{
		PublicFetcher: fetch.New(config.TargetPublicHolidays, sim),
		SchoolFetcher: fetch.New(config.TargetSchoolTerms, sim),
		PublicWriter: &ical.Writer{
			SimulatePermission: sim.Active(config.TargetPublicHolidays, config.SimPermission),
		},
		SchoolWriter: &ical.Writer{
			SimulatePermission: sim.Active(config.TargetSchoolTerms, config.SimPermission),
		},
	}
}

// Run executes both pipelines and returns the aggregated report.
func Run(ctx context.Context, cfg *config.Config, deps Deps) model.RunReport {
	report := model.RunReport{
		PublicHolidays: runPublicHolidays(ctx, cfg, deps.PublicFetcher, deps.PublicWriter),
		SchoolTerms:    runSchoolTerms(ctx, cfg, deps.SchoolFetcher, deps.SchoolWriter),
	}

	appLog.Info("run complete",
		"outcome", report.Outcome(),
		"public_holidays_ok", report.PublicHolidays.OK(),
		"school_terms_ok", report.SchoolTerms.OK(),
	)
	return report
}

// yearWindow is the supported year span for extracted events, taken from
// the configured term years.
func yearWindow(cfg *config.Config) (int, int) {
	years := cfg.TermYears()
	if len(years) == 0 {
		return cfg.TermsYear, cfg.TermsYear + 2
	}
	return years[0], years[len(years)-1]
}

func runPublicHolidays(ctx context.Context, cfg *config.Config, f Getter, w *ical.Writer) model.CalendarResult {
	res := model.CalendarResult{Name: config.TargetPublicHolidays}
	minYear, maxYear := yearWindow(cfg)

	data, feedErr := publicHolidaysFromFeed(ctx, cfg, f, minYear, maxYear)
	if feedErr != nil {
		appLog.Warn("public holidays feed failed, trying PDF fallback", "reason", feedErr)
		res.Notes = append(res.Notes, fmt.Sprintf("feed failed (%v), used PDF fallback", feedErr))

		var pdfErr error
		data, pdfErr = publicHolidaysFromPDF(ctx, cfg, f)
		if pdfErr != nil {
			res.Err = fmt.Errorf("feed: %v; pdf fallback: %w", feedErr, pdfErr)
			appLog.Error("public holidays update failed", res.Err)
			return res
		}
	}

	written, err := w.WriteIfChanged(cfg.Output.PublicHolidays, data)
	if err != nil {
		res.Err = err
		appLog.Error("public holidays write failed", err)
		return res
	}
	res.Written = written

	res.Verified = verifyFile(cfg.Output.PublicHolidays, verify.Options{
		MinEvents: cfg.MinEvents,
		MaxEvents: cfg.MaxEvents,
		MinYear:   minYear,
		MaxYear:   maxYear + 1,
	}, &res)
	return res
}

// publicHolidaysFromFeed fetches the subscription feed, validates its event
// content and returns the cleaned feed bytes.
func publicHolidaysFromFeed(ctx context.Context, cfg *config.Config, f Getter, minYear, maxYear int) ([]byte, error) {
	body, err := f.Get(ctx, cfg.Sources.PublicHolidaysICS)
	if err != nil {
		return nil, err
	}

	feed := &extract.ICSFeed{Body: body, MinYear: minYear, MaxYear: maxYear}
	events, err := feed.HolidayEvents()
	if err != nil {
		return nil, err
	}
	if err := extract.CheckBounds(len(events), cfg.MinEvents, cfg.MaxEvents); err != nil {
		return nil, err
	}

	appLog.Info("public holidays extracted from feed", "events", len(events))
	return feed.Cleaned(), nil
}

// publicHolidaysFromPDF walks the fallback chain: listing page -> PDF link
// -> PDF table rows -> built calendar.
func publicHolidaysFromPDF(ctx context.Context, cfg *config.Config, f Getter) ([]byte, error) {
	page, err := f.Get(ctx, cfg.Sources.HolidaysPage)
	if err != nil {
		return nil, err
	}
	link, err := extract.FindPDFLink(page, cfg.Sources.HolidaysPage)
	if err != nil {
		return nil, err
	}
	pdfBody, err := f.Get(ctx, link)
	if err != nil {
		return nil, err
	}

	table := &extract.PDFTable{Data: pdfBody, Year: cfg.TermsYear}
	rows, err := table.Events()
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
	if err := extract.CheckBounds(len(events), cfg.MinEvents, cfg.MaxEvents); err != nil {
		return nil, err
	}

	appLog.Info("public holidays extracted from PDF", "events", len(events))
	return ical.BuildHolidayCalendar(events, ical.PublicHolidaysHeader(cfg.Timezone)), nil
}

func runSchoolTerms(ctx context.Context, cfg *config.Config, f Getter, w *ical.Writer) model.CalendarResult {
	res := model.CalendarResult{Name: config.TargetSchoolTerms}
	year := cfg.TermsYear

	eff := effectiveConfig(cfg)

	termList, err := terms.ForYear(eff, year)
	if err != nil {
		res.Err = err
		appLog.Error("school terms update failed", err, "year", year)
		return res
	}

	// The official feed, when reachable, overrides the configured dates
	// for the publishing year. Unreachable is not an error: the config
	// table is the canonical source.
	if eff.Sources.SchoolTermsICS != "" {
		if official, ferr := officialTerms(ctx, eff, f, year); ferr != nil {
			appLog.Warn("official term feed unavailable, using configured dates", "reason", ferr)
			res.Notes = append(res.Notes, fmt.Sprintf("official term feed unavailable (%v)", ferr))
		} else {
			termList = official
			appLog.Info("school terms taken from official feed", "year", year)
		}
	}

	// Resolve the following year's Term 1 for the cross-year gap:
	// configured dates win, the fallback page fills in, and failure to
	// resolve is a note rather than an error.
	if terms.NextYearKnown(eff, year) {
		if next, nerr := terms.ForYear(eff, year+1); nerr == nil {
			termList = terms.WithFutureTerm1(termList, next[0])
		}
	} else if eff.Simulate.Active(config.TargetSchoolTerms, config.SimFutureTerm) {
		res.Notes = append(res.Notes, "could not fetch future Term 1 dates (simulated)")
	} else if fut, ferr := futureTerm1(ctx, eff, f, year+1); ferr != nil {
		appLog.Warn("future Term 1 unavailable, year-end gap omitted", "reason", ferr)
		res.Notes = append(res.Notes, fmt.Sprintf("could not fetch future Term 1 dates (%v)", ferr))
	} else {
		termList = terms.WithFutureTerm1(termList, fut)
	}

	holidays, err := terms.Holidays(eff, year, termList)
	if err != nil {
		res.Err = err
		appLog.Error("school terms update failed", err, "year", year)
		return res
	}

	data := ical.BuildSchoolCalendar(termList, holidays, ical.SchoolTermsHeader(eff.Timezone))

	written, err := w.WriteIfChanged(eff.Output.SchoolTerms, data)
	if err != nil {
		res.Err = err
		appLog.Error("school terms write failed", err)
		return res
	}
	res.Written = written

	minYear, maxYear := yearWindow(eff)
	res.Verified = verifyFile(eff.Output.SchoolTerms, verify.Options{
		MinEvents:      4,
		MaxEvents:      eff.MaxEvents,
		MinYear:        minYear,
		MaxYear:        maxYear + 1,
		SchoolCalendar: true,
	}, &res)
	return res
}

// effectiveConfig applies config-level simulations that act before any
// network access (no_terms removes the publishing year from the table).
func effectiveConfig(cfg *config.Config) *config.Config {
	if !cfg.Simulate.Active(config.TargetSchoolTerms, config.SimNoTerms) {
		return cfg
	}
	eff := *cfg
	eff.Terms = make(map[int]config.TermDates, len(cfg.Terms))
	for y, td := range cfg.Terms {
		if y != cfg.TermsYear {
			eff.Terms[y] = td
		}
	}
	return &eff
}

func officialTerms(ctx context.Context, cfg *config.Config, f Getter, year int) ([]model.TermPeriod, error) {
	body, err := f.Get(ctx, cfg.Sources.SchoolTermsICS)
	if err != nil {
		return nil, err
	}
	parsed, err := extract.TermRows(body)
	if err != nil {
		return nil, err
	}
	filtered := parsed[:0]
	for _, t := range parsed {
		if t.Year == year {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) != 4 {
		return nil, fmt.Errorf("official feed has %d terms for %d, want 4: %w",
			len(filtered), year, extract.ErrNoData)
	}
	return filtered, nil
}

func futureTerm1(ctx context.Context, cfg *config.Config, f Getter, year int) (model.TermPeriod, error) {
	body, err := f.Get(ctx, cfg.Sources.TermsFallbackPage)
	if err != nil {
		return model.TermPeriod{}, err
	}
	return extract.FutureTerm1(body, year)
}

// verifyFile runs post-write verification and surfaces the report. A
// verification failure never blocks (the file is already written) but is
// logged prominently and noted in the result.
func verifyFile(path string, opts verify.Options, res *model.CalendarResult) bool {
	report, err := verify.File(path, opts)
	if err != nil {
		appLog.Error("verification could not run", err, "path", path)
		res.Notes = append(res.Notes, fmt.Sprintf("verification did not run: %v", err))
		return false
	}
	if !report.OK() {
		appLog.Error("verification failed", fmt.Errorf("%d invariant(s) broken", len(report.Violations)),
			"path", path)
		for _, v := range report.Violations {
			appLog.Error("invariant broken", fmt.Errorf("%s", v.Detail), "invariant", v.Invariant, "path", path)
		}
		res.Notes = append(res.Notes, fmt.Sprintf("verification failed: %s", report.Violations[0]))
		return false
	}
	appLog.Info("verification passed", "path", path, "events", report.EventCount)
	return true
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sacal/internal/config"
	appLog "sacal/internal/log"
	"sacal/internal/model"
	"sacal/internal/notify"
	"sacal/internal/update"
	"sacal/internal/verify"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	simulate   string
	verifyOnly bool

	updateTerms    bool
	year           int
	termBegins     [4]string
	termEnds       [4]string
	specialHoliday string
}

func main() {
	appLog.Info("sacal starting", "version", "1.0.0")

	flags := parseFlags()

	if flags.updateTerms {
		if err := runUpdateTerms(flags); err != nil {
			appLog.Error("failed to update term dates", err)
			os.Exit(1)
		}
		appLog.Info("term dates updated", "year", flags.year, "config_path", flags.configPath)
		return
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.simulate != "" {
		sim, err := parseSimulate(flags.simulate)
		if err != nil {
			appLog.Error("bad -simulate value", err, "value", flags.simulate)
			os.Exit(1)
		}
		conf.Simulate = sim
	}

	appLog.Info("effective config",
		"terms_year", conf.TermsYear,
		"public_holidays_out", conf.Output.PublicHolidays,
		"school_terms_out", conf.Output.SchoolTerms,
		"simulate_target", conf.Simulate.Target,
		"simulate_kind", conf.Simulate.Kind,
	)

	if flags.verifyOnly {
		os.Exit(runVerifyOnly(conf))
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, canceling run", "signal", sig.String())
		cancel()
	}()

	report := update.Run(ctx, conf, update.DefaultDeps(conf))

	notifier := notify.New(
		envOr("PUSHOVER_API_TOKEN", conf.Pushover.APIToken),
		envOr("PUSHOVER_USER_KEY", conf.Pushover.UserKey),
		conf.UpdateCron,
	)
	notifier.Report(ctx, report)

	appLog.Info("sacal exiting", "outcome", report.Outcome())
	if report.Outcome() != model.OutcomeSuccess {
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.simulate, "simulate", "", "Simulated failure as target:kind, e.g. public_holidays:404")
	flag.BoolVar(&cfg.verifyOnly, "verify-only", false, "Verify existing output files and exit")

	flag.BoolVar(&cfg.updateTerms, "update-terms", false, "Update term dates in the config and exit")
	flag.IntVar(&cfg.year, "year", 0, "Year to update (with -update-terms)")
	flag.StringVar(&cfg.termBegins[0], "term1-begin", "", "Term 1 begin date (YYYYMMDD)")
	flag.StringVar(&cfg.termEnds[0], "term1-end", "", "Term 1 end date (YYYYMMDD)")
	flag.StringVar(&cfg.termBegins[1], "term2-begin", "", "Term 2 begin date (YYYYMMDD)")
	flag.StringVar(&cfg.termEnds[1], "term2-end", "", "Term 2 end date (YYYYMMDD)")
	flag.StringVar(&cfg.termBegins[2], "term3-begin", "", "Term 3 begin date (YYYYMMDD)")
	flag.StringVar(&cfg.termEnds[2], "term3-end", "", "Term 3 end date (YYYYMMDD)")
	flag.StringVar(&cfg.termBegins[3], "term4-begin", "", "Term 4 begin date (YYYYMMDD)")
	flag.StringVar(&cfg.termEnds[3], "term4-end", "", "Term 4 end date (YYYYMMDD)")
	flag.StringVar(&cfg.specialHoliday, "special-holiday", "", "Optional one-off holiday date (YYYYMMDD)")

	flag.Parse()
	return cfg
}

func parseSimulate(s string) (config.Simulate, error) {
	target, kind, ok := strings.Cut(s, ":")
	if !ok {
		return config.Simulate{}, fmt.Errorf("want target:kind, got %q", s)
	}
	sim := config.Simulate{Target: target, Kind: kind}
	if err := sim.Validate(); err != nil {
		return config.Simulate{}, err
	}
	return sim, nil
}

// runUpdateTerms validates the eight dates together and rewrites the
// config atomically, so the stored term table is never half-updated.
func runUpdateTerms(flags flagConfig) error {
	if flags.year == 0 {
		return fmt.Errorf("-year is required with -update-terms")
	}
	for i := 0; i < 4; i++ {
		if flags.termBegins[i] == "" || flags.termEnds[i] == "" {
			return fmt.Errorf("term %d dates missing: all four begin/end pairs are required", i+1)
		}
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	td := config.TermDates{
		Term1Begin: flags.termBegins[0], Term1End: flags.termEnds[0],
		Term2Begin: flags.termBegins[1], Term2End: flags.termEnds[1],
		Term3Begin: flags.termBegins[2], Term3End: flags.termEnds[2],
		Term4Begin: flags.termBegins[3], Term4End: flags.termEnds[3],
		SpecialHoliday: flags.specialHoliday,
	}
	if err := conf.SetTermYear(flags.year, td); err != nil {
		return err
	}
	return conf.Save(flags.configPath)
}

func runVerifyOnly(conf *config.Config) int {
	years := conf.TermYears()
	minYear, maxYear := conf.TermsYear, conf.TermsYear+2
	if len(years) > 0 {
		minYear, maxYear = years[0], years[len(years)-1]
	}

	exit := 0
	checks := []struct {
		path string
		opts verify.Options
	}{
		{conf.Output.PublicHolidays, verify.Options{
			MinEvents: conf.MinEvents, MaxEvents: conf.MaxEvents,
			MinYear: minYear, MaxYear: maxYear + 1,
		}},
		{conf.Output.SchoolTerms, verify.Options{
			MinEvents: 4, MaxEvents: conf.MaxEvents,
			MinYear: minYear, MaxYear: maxYear + 1,
			SchoolCalendar: true,
		}},
	}
	for _, c := range checks {
		report, err := verify.File(c.path, c.opts)
		if err != nil {
			appLog.Error("verification could not run", err, "path", c.path)
			exit = 1
			continue
		}
		fmt.Print(report.Summary())
		if !report.OK() {
			exit = 1
		}
	}
	return exit
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

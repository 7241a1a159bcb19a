package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Date layout used for all dates in the config file and on the CLI.
const DateLayout = "20060102"

// SourcesConfig holds the remote endpoints the generator pulls from.
type SourcesConfig struct {
	// PublicHolidaysICS is the ICS subscription feed for SA public holidays.
	PublicHolidaysICS string `yaml:"public_holidays_ics"`
	// HolidaysPage is the government listing page that links the public
	// holiday dates PDF; used as the fallback when the ICS feed fails.
	HolidaysPage string `yaml:"holidays_page"`
	// SchoolTermsICS is the official school term dates feed. Optional;
	// when it cannot be fetched the configured term table is used.
	SchoolTermsICS string `yaml:"school_terms_ics"`
	// TermsFallbackPage is a scrapeable listing of SA term dates, used for
	// the following year's Term 1 when it is not configured yet.
	TermsFallbackPage string `yaml:"terms_fallback_page"`
}

// OutputConfig names the generated files.
type OutputConfig struct {
	PublicHolidays string `yaml:"public_holidays"`
	SchoolTerms    string `yaml:"school_terms"`
}

// TermDates is the four begin/end pairs for one school year, in YYYYMMDD
// form as they appear in the config file.
type TermDates struct {
	Term1Begin string `yaml:"term1_begin"`
	Term1End   string `yaml:"term1_end"`
	Term2Begin string `yaml:"term2_begin"`
	Term2End   string `yaml:"term2_end"`
	Term3Begin string `yaml:"term3_begin"`
	Term3End   string `yaml:"term3_end"`
	Term4Begin string `yaml:"term4_begin"`
	Term4End   string `yaml:"term4_end"`

	// SpecialHoliday is an optional one-off pupil-free day (YYYYMMDD)
	// published as an extra one-day school holiday.
	SpecialHoliday string `yaml:"special_holiday,omitempty"`
}

// PushoverConfig holds the notification credentials. Both values are also
// read from PUSHOVER_API_TOKEN / PUSHOVER_USER_KEY which take precedence.
type PushoverConfig struct {
	APIToken string `yaml:"api_token,omitempty"`
	UserKey  string `yaml:"user_key,omitempty"`
}

// Simulation targets.
const (
	TargetNone           = ""
	TargetPublicHolidays = "public_holidays"
	TargetSchoolTerms    = "school_terms"
	TargetBoth           = "both"
)

// Simulation kinds.
const (
	SimNone       = "none"
	SimConnection = "connection"
	SimNotFound   = "404"
	SimPermission = "permission"
	SimNoTerms    = "no_terms"
	SimFutureTerm = "future_term"
)

// Simulate selects a failure to inject, replacing the global test-mode
// toggles of earlier iterations. It is threaded explicitly through the
// pipeline so tests stay deterministic and can run in parallel.
type Simulate struct {
	Target string `yaml:"target,omitempty"` // public_holidays | school_terms | both
	Kind   string `yaml:"kind,omitempty"`   // connection | 404 | permission | no_terms | future_term | none
}

// Active reports whether a simulated failure of the given kind applies to
// the named calendar target.
func (s Simulate) Active(target, kind string) bool {
	if s.Kind != kind || s.Kind == SimNone || s.Kind == "" {
		return false
	}
	return s.Target == target || s.Target == TargetBoth
}

func (s Simulate) Validate() error {
	switch s.Kind {
	case "", SimNone, SimConnection, SimNotFound, SimPermission, SimNoTerms, SimFutureTerm:
	default:
		return fmt.Errorf("unknown simulation kind %q", s.Kind)
	}
	switch s.Target {
	case TargetNone, TargetPublicHolidays, TargetSchoolTerms, TargetBoth:
	default:
		return fmt.Errorf("unknown simulation target %q", s.Target)
	}
	if s.Kind != "" && s.Kind != SimNone && s.Target == TargetNone {
		return errors.New("simulation kind set without a target")
	}
	return nil
}

// Config is the top-level application configuration.
type Config struct {
	Sources SourcesConfig `yaml:"sources"`
	Output  OutputConfig  `yaml:"output"`

	// Timezone is the calendar display timezone written into the
	// X-WR-TIMEZONE header.
	Timezone string `yaml:"timezone"`

	// TermsYear is the school year whose terms are published.
	TermsYear int `yaml:"terms_year"`

	// Terms maps year -> term dates. Hand-updated via the -update-terms
	// command as each year's dates are announced.
	Terms map[int]TermDates `yaml:"terms"`

	// MinEvents/MaxEvents bound the plausible extracted event count; a
	// count outside the range is treated as a hard extraction failure.
	MinEvents int `yaml:"min_events"`
	MaxEvents int `yaml:"max_events"`

	// UpdateCron is the quarterly schedule the external runner uses; it is
	// only evaluated here to report the next update in notifications.
	UpdateCron string `yaml:"update_cron"`

	Pushover PushoverConfig `yaml:"pushover,omitempty"`
	Simulate Simulate       `yaml:"simulate,omitempty"`
}

// DefaultConfig returns the shipped configuration: the SA sources and the
// currently announced term dates.
func DefaultConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			PublicHolidaysICS: "https://www.officeholidays.com/ics-all/australia/south-australia",
			HolidaysPage:      "https://www.safework.sa.gov.au/resources/public-holidays",
			SchoolTermsICS:    "https://www.education.sa.gov.au/docs/sper/communications/term-calendar/ical-School-term-dates-calendar-2025.ics",
			TermsFallbackPage: "https://holidayswithkids.com.au/sa-school-holidays/",
		},
		Output: OutputConfig{
			PublicHolidays: "SA-Public-Holidays.ics",
			SchoolTerms:    "SA-School-Terms-Holidays.ics",
		},
		Timezone:  "Australia/Adelaide",
		TermsYear: 2025,
		Terms: map[int]TermDates{
			2025: {
				Term1Begin: "20250128", Term1End: "20250411",
				Term2Begin: "20250428", Term2End: "20250704",
				Term3Begin: "20250721", Term3End: "20250926",
				Term4Begin: "20251013", Term4End: "20251212",
				SpecialHoliday: "20250601",
			},
			2026: {
				Term1Begin: "20260127", Term1End: "20260410",
				Term2Begin: "20260427", Term2End: "20260703",
				Term3Begin: "20260720", Term3End: "20260925",
				Term4Begin: "20261012", Term4End: "20261211",
			},
			2027: {
				Term1Begin: "20270126", Term1End: "20270326",
				Term2Begin: "20270412", Term2End: "20270702",
				Term3Begin: "20270719", Term3End: "20270924",
				Term4Begin: "20271011", Term4End: "20271210",
			},
		},
		MinEvents:  8,
		MaxEvents:  200,
		UpdateCron: "30 10 1 */3 *",
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Sources.PublicHolidaysICS == "" {
		c.Sources.PublicHolidaysICS = def.Sources.PublicHolidaysICS
	}
	if c.Sources.HolidaysPage == "" {
		c.Sources.HolidaysPage = def.Sources.HolidaysPage
	}
	if c.Sources.TermsFallbackPage == "" {
		c.Sources.TermsFallbackPage = def.Sources.TermsFallbackPage
	}
	if c.Output.PublicHolidays == "" {
		c.Output.PublicHolidays = def.Output.PublicHolidays
	}
	if c.Output.SchoolTerms == "" {
		c.Output.SchoolTerms = def.Output.SchoolTerms
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.TermsYear == 0 {
		c.TermsYear = def.TermsYear
	}
	if c.Terms == nil {
		c.Terms = map[int]TermDates{}
	}
	if c.MinEvents <= 0 {
		c.MinEvents = def.MinEvents
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = def.MaxEvents
	}
	if c.UpdateCron == "" {
		c.UpdateCron = def.UpdateCron
	}
}

// TermYears returns the configured years in ascending order.
func (c *Config) TermYears() []int {
	years := make([]int, 0, len(c.Terms))
	for y := range c.Terms {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// SetTermYear validates and installs the term dates for one year. All eight
// dates must parse and each term must begin before it ends; this is the
// single write path used by the -update-terms command so the stored table
// can never hold a half-updated year.
func (c *Config) SetTermYear(year int, td TermDates) error {
	if year < 2024 || year > 2100 {
		return fmt.Errorf("year %d out of range (2024-2100)", year)
	}
	pairs := [][2]string{
		{td.Term1Begin, td.Term1End},
		{td.Term2Begin, td.Term2End},
		{td.Term3Begin, td.Term3End},
		{td.Term4Begin, td.Term4End},
	}
	var prevEnd time.Time
	for i, p := range pairs {
		begin, err := ParseDate(p[0])
		if err != nil {
			return fmt.Errorf("term %d begin: %w", i+1, err)
		}
		end, err := ParseDate(p[1])
		if err != nil {
			return fmt.Errorf("term %d end: %w", i+1, err)
		}
		if !begin.Before(end) {
			return fmt.Errorf("term %d begins %s on or after its end %s", i+1, p[0], p[1])
		}
		if i > 0 && !prevEnd.Before(begin) {
			return fmt.Errorf("term %d begins %s before term %d ends", i+1, p[0], i)
		}
		prevEnd = end
	}
	if td.SpecialHoliday != "" {
		if _, err := ParseDate(td.SpecialHoliday); err != nil {
			return fmt.Errorf("special holiday: %w", err)
		}
	}
	if c.Terms == nil {
		c.Terms = map[int]TermDates{}
	}
	c.Terms[year] = td
	return nil
}

// ParseDate parses a YYYYMMDD config date into a midnight-UTC time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYYMMDD: %w", s, err)
	}
	return t, nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (0600,
// parent directory created) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Simulate.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sacal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

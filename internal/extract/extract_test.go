package extract

import (
	"errors"
	"testing"
	"time"

	"sacal/internal/model"
)

func TestParseAUDate(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		in   string
		year int
		want time.Time
	}{
		{"full date", "1 January 2025", 0, model.Date(2025, time.January, 1)},
		{"weekday prefix", "Wednesday 1 January 2025", 0, model.Date(2025, time.January, 1)},
		{"weekday with comma", "Monday, 10 March 2025", 0, model.Date(2025, time.March, 10)},
		{"ordinal suffix", "1st January 2025", 0, model.Date(2025, time.January, 1)},
		{"abbreviated month", "25 Dec 2025", 0, model.Date(2025, time.December, 25)},
		{"slash form", "25/12/2025", 0, model.Date(2025, time.December, 25)},
		{"year supplied", "6 October", 2025, model.Date(2025, time.October, 6)},
		{"en-dash form", "25–12–2025", 0, model.Date(2025, time.December, 25)},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAUDate(tc.in, tc.year)
			if err != nil {
				t.Fatalf("ParseAUDate(%q, %d): %v", tc.in, tc.year, err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("ParseAUDate(%q, %d) = %v, want %v", tc.in, tc.year, got, tc.want)
			}
		})
	}

	t.Run("failures", func(t *testing.T) {
		t.Parallel()
		for _, in := range []string{"", "   ", "Someday", "99 Nonmonth 2025"} {
			if _, err := ParseAUDate(in, 2025); !errors.Is(err, ErrMalformed) {
				t.Errorf("ParseAUDate(%q) = %v, want ErrMalformed", in, err)
			}
		}
	})
}

func TestCheckBounds(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name    string
		count   int
		min     int
		max     int
		wantErr bool
	}{
		{"within range", 14, 8, 200, false},
		{"at minimum", 8, 8, 200, false},
		{"at maximum", 200, 8, 200, false},
		{"zero is always an error", 0, 0, 0, true},
		{"below minimum", 3, 8, 200, true},
		{"above maximum", 500, 8, 200, true},
		{"unbounded when limits unset", 1000, 0, 0, false},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := CheckBounds(tc.count, tc.min, tc.max)
			if tc.wantErr {
				if !errors.Is(err, ErrNoData) {
					t.Fatalf("CheckBounds(%d, %d, %d) = %v, want ErrNoData", tc.count, tc.min, tc.max, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckBounds(%d, %d, %d) = %v, want nil", tc.count, tc.min, tc.max, err)
			}
		})
	}
}

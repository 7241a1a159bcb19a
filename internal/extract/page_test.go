package extract

import (
	"errors"
	"testing"
	"time"

	"sacal/internal/model"
)

func TestFindPDFLink(t *testing.T) {
	t.Parallel()

	t.Run("relative link resolves against the page URL", func(t *testing.T) {
		t.Parallel()
		html := `<html><body>
			<a href="/about">About us</a>
			<a href="/__data/assets/pdf_file/0003/public-holiday-dates-2025.pdf">
				Public holiday dates 2025 (PDF)
			</a>
		</body></html>`

		got, err := FindPDFLink([]byte(html), "https://www.safework.sa.gov.au/resources/public-holidays")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := "https://www.safework.sa.gov.au/__data/assets/pdf_file/0003/public-holiday-dates-2025.pdf"
		if got != want {
			t.Errorf("link = %q, want %q", got, want)
		}
	})

	t.Run("absolute link passes through", func(t *testing.T) {
		t.Parallel()
		html := `<a href="https://cdn.example.net/ph.pdf">Public holiday dates</a>`
		got, err := FindPDFLink([]byte(html), "https://www.safework.sa.gov.au/resources")
		if err != nil {
			t.Fatal(err)
		}
		if got != "https://cdn.example.net/ph.pdf" {
			t.Errorf("link = %q", got)
		}
	})

	t.Run("missing link", func(t *testing.T) {
		t.Parallel()
		_, err := FindPDFLink([]byte(`<a href="/x">Unrelated</a>`), "https://example.net/")
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	})
}

func TestTermsFromPage(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h2>SA school holidays 2025</h2>
		<p>Term 1: 28 January to 11 April</p>
		<p>Term 2: 28 April to 4 July</p>
		<p>Term 3: 21 July to 26 September</p>
		<p>Term 4: 13 October to 12 December</p>
		<h2>SA school holidays 2026</h2>
		<p>Term 1: 27 January to 10 April</p>
		<p>Term 2: 27 April to 3 July</p>
		<p>Term 3: 20 July to 25 September</p>
		<p>Term 4: 12 October to 11 December</p>
	</body></html>`

	t.Run("picks the requested year's section", func(t *testing.T) {
		t.Parallel()
		terms, err := TermsFromPage([]byte(html), 2025)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(terms) != 4 {
			t.Fatalf("expected 4 terms, got %d", len(terms))
		}
		if !terms[0].Begin.Equal(model.Date(2025, time.January, 28)) {
			t.Errorf("term 1 begin = %v, want 2025-01-28", terms[0].Begin)
		}
		if !terms[3].End.Equal(model.Date(2025, time.December, 12)) {
			t.Errorf("term 4 end = %v, want 2025-12-12", terms[3].End)
		}

		terms, err = TermsFromPage([]byte(html), 2026)
		if err != nil {
			t.Fatal(err)
		}
		if !terms[0].Begin.Equal(model.Date(2026, time.January, 27)) {
			t.Errorf("2026 term 1 begin = %v, want 2026-01-27", terms[0].Begin)
		}
	})

	t.Run("year not listed", func(t *testing.T) {
		t.Parallel()
		_, err := TermsFromPage([]byte(html), 2031)
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	})

	t.Run("incomplete section", func(t *testing.T) {
		t.Parallel()
		partial := `<h2>2027</h2><p>Term 1: 26 January to 26 March</p>`
		_, err := TermsFromPage([]byte(partial), 2027)
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	})
}

func TestFutureTerm1(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h2>Future term dates</h2>
		<table>
			<tr><th>Year</th><th>Term 1</th></tr>
			<tr><td>2026</td><td>27 January to 10 April</td></tr>
			<tr><td>2027</td><td>26 January to 26 March</td></tr>
		</table>
	</body></html>`

	t.Run("finds the requested year row", func(t *testing.T) {
		t.Parallel()
		term, err := FutureTerm1([]byte(html), 2026)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if term.Number != 1 || term.Year != 2026 {
			t.Errorf("term = %+v", term)
		}
		if !term.Begin.Equal(model.Date(2026, time.January, 27)) {
			t.Errorf("begin = %v, want 2026-01-27", term.Begin)
		}
		if !term.End.Equal(model.Date(2026, time.April, 10)) {
			t.Errorf("end = %v, want 2026-04-10", term.End)
		}
	})

	t.Run("en-dash range separator", func(t *testing.T) {
		t.Parallel()
		dash := `<h2>Future term dates</h2><table>
			<tr><td>2026</td><td>27 January ` + "–" + ` 10 April</td></tr>
		</table>`
		term, err := FutureTerm1([]byte(dash), 2026)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !term.Begin.Equal(model.Date(2026, time.January, 27)) {
			t.Errorf("begin = %v, want 2026-01-27", term.Begin)
		}
	})

	t.Run("missing heading", func(t *testing.T) {
		t.Parallel()
		_, err := FutureTerm1([]byte(`<h2>Term dates</h2>`), 2026)
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	})

	t.Run("year without a row", func(t *testing.T) {
		t.Parallel()
		_, err := FutureTerm1([]byte(html), 2031)
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	})
}

package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sacal/internal/model"
)

// FindPDFLink locates the "public holiday dates" PDF link on the government
// listing page and resolves it against base.
func FindPDFLink(html []byte, base string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing holidays page: %v: %w", err, ErrMalformed)
	}

	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if strings.Contains(text, "public holiday dates") {
			href, _ = s.Attr("href")
			return false
		}
		return true
	})
	if href == "" {
		return "", fmt.Errorf("no public holiday dates link on page: %w", ErrNoData)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("bad base URL %q: %w", base, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("bad link %q: %w", href, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

var termRangePattern = func(n int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(
		`(?i)Term\s*%d\s*[:\-]?\s*(\d{1,2}\s+\w+)\s*(?:to|\x{2013}|-)\s*(\d{1,2}\s+\w+)`, n))
}

// TermsFromPage scrapes the four term date ranges for one year from the
// fallback listing site. The site groups each year under a heading followed
// by "Term N: <d month> to <d month>" lines.
func TermsFromPage(html []byte, year int) ([]model.TermPeriod, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing terms page: %v: %w", err, ErrMalformed)
	}

	section := yearSectionText(doc, year)
	if section == "" {
		return nil, fmt.Errorf("no section for year %d: %w", year, ErrNoData)
	}

	terms := make([]model.TermPeriod, 0, 4)
	for n := 1; n <= 4; n++ {
		m := termRangePattern(n).FindStringSubmatch(section)
		if m == nil {
			return nil, fmt.Errorf("no Term %d range in year %d section: %w", n, year, ErrNoData)
		}
		begin, err := ParseAUDate(m[1], year)
		if err != nil {
			return nil, err
		}
		end, err := ParseAUDate(m[2], year)
		if err != nil {
			return nil, err
		}
		terms = append(terms, model.TermPeriod{Year: year, Number: n, Begin: begin, End: end})
	}
	return terms, nil
}

// yearSectionText finds the heading containing the year and gathers the
// text of everything up to the next heading.
func yearSectionText(doc *goquery.Document, year int) string {
	var section string
	doc.Find("h2,h3,h4").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), fmt.Sprint(year)) {
			return true
		}
		var chunk strings.Builder
		s.NextUntil("h2,h3,h4").Each(func(_ int, sib *goquery.Selection) {
			chunk.WriteString(sib.Text())
			chunk.WriteString(" ")
		})
		section = chunk.String()
		return false
	})
	return section
}

var toSeparator = regexp.MustCompile(`\bto\b|\x{2013}|-`)

// FutureTerm1 reads the following year's Term 1 range from the "future term
// dates" table on the fallback site. The published school calendar needs it
// for the Term 4 cross-year holiday gap.
func FutureTerm1(html []byte, year int) (model.TermPeriod, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return model.TermPeriod{}, fmt.Errorf("parsing terms page: %v: %w", err, ErrMalformed)
	}

	var heading *goquery.Selection
	doc.Find("h2,h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), "future term dates") {
			heading = s
			return false
		}
		return true
	})
	if heading == nil {
		return model.TermPeriod{}, fmt.Errorf("no future term dates heading: %w", ErrNoData)
	}

	table := heading.NextAllFiltered("table").First()
	if table.Length() == 0 {
		table = heading.NextAll().Find("table").First()
	}
	if table.Length() == 0 {
		return model.TermPeriod{}, fmt.Errorf("no table after future term dates heading: %w", ErrNoData)
	}

	var term model.TermPeriod
	var rowErr error
	found := false
	table.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		cells := tr.Find("td,th").Map(func(_ int, c *goquery.Selection) string {
			return strings.TrimSpace(c.Text())
		})
		if len(cells) < 2 || !strings.Contains(cells[0], fmt.Sprint(year)) {
			return true
		}
		parts := toSeparator.Split(cells[1], 2)
		if len(parts) != 2 {
			rowErr = fmt.Errorf("unexpected Term 1 format %q: %w", cells[1], ErrMalformed)
			return false
		}
		begin, err := ParseAUDate(parts[0], year)
		if err != nil {
			rowErr = err
			return false
		}
		end, err := ParseAUDate(parts[1], year)
		if err != nil {
			rowErr = err
			return false
		}
		term = model.TermPeriod{Year: year, Number: 1, Begin: begin, End: end}
		found = true
		return false
	})
	if rowErr != nil {
		return model.TermPeriod{}, rowErr
	}
	if !found {
		return model.TermPeriod{}, fmt.Errorf("no future term row for year %d: %w", year, ErrNoData)
	}
	return term, nil
}

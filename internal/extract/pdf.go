package extract

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	appLog "sacal/internal/log"
)

// PDFTable extracts public-holiday rows from the government PDF.
//
// The PDF lays holidays out as a table: one row per holiday, one column per
// year. Plain-text extraction flattens that table, so the parser anchors on
// "holiday name ... date" row patterns. This is inherently coupled to the
// document's unversioned layout; when the government reshuffles the table
// the row regex goes stale and extraction fails loudly (ErrNoData) rather
// than guessing.
type PDFTable struct {
	Data []byte

	// Year resolves cells that omit the year ("1 January" under a year
	// column header).
	Year int
}

// holidayRow anchors one table row flattened to text: a holiday name
// followed by a recognizable date.
var holidayRow = regexp.MustCompile(
	`(?m)^\s*([A-Z][A-Za-z'&\-. ]{2,60}?)\s+` +
		`((?:(?:Mon|Tues|Wednes|Thurs|Fri|Satur|Sun)day,?\s+)?\d{1,2}(?:st|nd|rd|th)?\s+[A-Za-z]+(?:\s+\d{4})?` +
		`|\d{1,2}[/-]\d{1,2}[/-]\d{4})\s*$`)

// Events extracts (date, title) rows from the PDF text.
func (p *PDFTable) Events() ([]Row, error) {
	text, err := p.plainText()
	if err != nil {
		return nil, err
	}

	rows := RowsFromText(text, p.Year)
	if len(rows) == 0 {
		return nil, fmt.Errorf("no holiday rows matched in PDF text: %w", ErrNoData)
	}
	return rows, nil
}

// RowsFromText runs the row grammar over already-extracted text. Split out
// so the grammar is testable without a real PDF.
func RowsFromText(text string, year int) []Row {
	rows := make([]Row, 0)
	for _, m := range holidayRow.FindAllStringSubmatch(text, -1) {
		title := strings.TrimSpace(m[1])
		date, err := ParseAUDate(m[2], year)
		if err != nil {
			appLog.Warn("skipping row with unparseable date", "title", title, "cell", m[2])
			continue
		}
		rows = append(rows, Row{Date: date, Title: title})
	}
	return rows
}

func (p *PDFTable) plainText() (string, error) {
	if len(p.Data) == 0 {
		return "", fmt.Errorf("empty PDF body: %w", ErrMalformed)
	}
	r, err := pdf.NewReader(bytes.NewReader(p.Data), int64(len(p.Data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %v: %w", err, ErrMalformed)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting PDF text: %v: %w", err, ErrMalformed)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", fmt.Errorf("reading PDF text: %v: %w", err, ErrMalformed)
	}
	return buf.String(), nil
}

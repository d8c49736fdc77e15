package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/oaklyn/bankfeed/internal/normalize"
)

var ErrNoTextLayer = errors.New("pdf: no extractable text layer")

// Candidate transaction lines start with a date token and end with an
// amount token; everything between is the description.
var (
	pdfDateRe = regexp.MustCompile(`(?i)^(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4})\b`)
	// a money token has an explicit two-digit decimal part, which keeps
	// cheque numbers and page numbers from being read as amounts
	moneyTokenRe = regexp.MustCompile(`^\(?-?[$£€]?\d[\d.,]*[.,]\d{2}\)?$`)
)

// ParsePDF extracts the text layer of a PDF statement and scans it line by
// line for transactions. Each candidate line is normalized independently: a
// bad line is recorded and skipped, never failing the whole document.
func ParsePDF(data []byte, opts normalize.Options) (Result, error) {
	lines, err := extractPDFLines(data)
	if err != nil {
		return Result{}, err
	}
	return parseStatementLines(lines, opts), nil
}

// extractPDFLines reads each page row by row. The pdf library panics on some
// malformed files, so extraction recovers and reports an error instead.
func extractPDFLines(data []byte) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: extraction failed: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf: open: %w", err)
	}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	if len(lines) == 0 {
		return nil, ErrNoTextLayer
	}
	return lines, nil
}

// parseStatementLines applies the line heuristics to already-extracted text.
func parseStatementLines(lines []string, opts normalize.Options) Result {
	var res Result
	for i, line := range lines {
		raw, ok := splitStatementLine(line)
		if !ok {
			continue
		}
		res.RowCount++
		tx, err := normalize.Normalize(raw, opts)
		if err != nil {
			res.RowErrors = append(res.RowErrors, RowError{Line: i + 1, Err: err})
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res
}

// splitStatementLine extracts (date, description, amount) from a statement
// line. Lines without a leading date and a trailing money token are headers,
// footers or summary rows and are ignored. When a line ends with two money
// tokens the last one is a running balance and the one before it is the
// amount.
func splitStatementLine(line string) (normalize.RawTransaction, bool) {
	line = strings.TrimSpace(line)
	dateMatch := pdfDateRe.FindString(line)
	if dateMatch == "" {
		return normalize.RawTransaction{}, false
	}
	fields := strings.Fields(strings.TrimSpace(line[len(dateMatch):]))

	tail := 0
	for i := len(fields) - 1; i >= 0 && tail < 2; i-- {
		if !moneyTokenRe.MatchString(fields[i]) {
			break
		}
		tail++
	}
	if tail == 0 {
		return normalize.RawTransaction{}, false
	}
	amtIdx := len(fields) - tail
	desc := strings.Join(fields[:amtIdx], " ")
	if desc == "" {
		return normalize.RawTransaction{}, false
	}
	return normalize.RawTransaction{
		Date:        dateMatch,
		Description: desc,
		Amount:      fields[amtIdx],
	}, true
}

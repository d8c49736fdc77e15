package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oaklyn/bankfeed/internal/normalize"
)

// Mapping assigns statement fields to CSV column indexes. -1 means the field
// is absent. A suggested mapping is only a starting point: header vocabulary
// collides across banks, so the user confirms or overrides it before any
// full-file parse.
type Mapping struct {
	Date        int
	Description int
	Amount      int
	Reference   int
}

var ErrNoHeader = errors.New("csv has no header row")

// Valid reports whether the mapping covers the three required fields.
func (m Mapping) Valid() bool {
	return m.Date >= 0 && m.Description >= 0 && m.Amount >= 0
}

// column vocabulary for auto-suggestion, matched case-insensitively as
// substrings. Spanish aliases included since Spanish-locale exports are a
// detected format.
var (
	dateWords   = []string{"date", "fecha"}
	descWords   = []string{"desc", "detail", "payee", "concepto"}
	amountWords = []string{"amount", "monto", "importe"}
	refWords    = []string{"ref", "num", "cheque", "check"}
)

// SuggestMapping proposes a column mapping from header tokens. First
// matching column wins per field; columns already claimed by an earlier
// field are skipped so "Posted Date" is not also offered as a reference.
func SuggestMapping(header []string) Mapping {
	m := Mapping{Date: -1, Description: -1, Amount: -1, Reference: -1}
	claimed := make([]bool, len(header))

	assign := func(words []string) int {
		for i, col := range header {
			if claimed[i] {
				continue
			}
			lower := strings.ToLower(strings.TrimSpace(col))
			for _, w := range words {
				if strings.Contains(lower, w) {
					claimed[i] = true
					return i
				}
			}
		}
		return -1
	}

	m.Date = assign(dateWords)
	m.Description = assign(descWords)
	m.Amount = assign(amountWords)
	m.Reference = assign(refWords)
	return m
}

// ReadHeader returns the header row and up to sampleRows data rows, for the
// mapping step's preview.
func ReadHeader(data []byte, delim rune, sampleRows int) (header []string, sample [][]string, err error) {
	r := newCSVReader(data, delim)
	header, err = r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoHeader, err)
	}
	for len(sample) < sampleRows {
		rec, err := r.Read()
		if err != nil {
			break
		}
		sample = append(sample, rec)
	}
	return header, sample, nil
}

// ParseCSV parses the whole file under a confirmed mapping. The first row is
// the header and is skipped. Rows that fail normalization are collected in
// RowErrors; the rest of the file still parses.
func ParseCSV(data []byte, delim rune, m Mapping, opts normalize.Options) (Result, error) {
	if !m.Valid() {
		return Result{}, errors.New("column mapping incomplete: date, description and amount are required")
	}
	r := newCSVReader(data, delim)
	if _, err := r.Read(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNoHeader, err)
	}

	var res Result
	line := 1 // header was line 1
	for {
		line++
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.RowErrors = append(res.RowErrors, RowError{Line: line, Err: err})
			continue
		}
		res.RowCount++
		raw := normalize.RawTransaction{
			Date:        field(rec, m.Date),
			Description: field(rec, m.Description),
			Amount:      field(rec, m.Amount),
			Reference:   field(rec, m.Reference),
		}
		tx, err := normalize.Normalize(raw, opts)
		if err != nil {
			res.RowErrors = append(res.RowErrors, RowError{Line: line, Err: err})
			continue
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res, nil
}

func newCSVReader(data []byte, delim rune) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	if delim != 0 {
		r.Comma = delim
	}
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	return r
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

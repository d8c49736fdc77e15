// Package normalize converts loosely-typed raw statement values into
// canonical transactions: ISO dates, integer minor-unit amounts, sanitized
// descriptions. Every failure is an explicit error; a malformed amount is
// never coerced to zero and a non-finite amount is never produced.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RawTransaction is the quadruple every parser produces. No invariants; any
// field may be empty or malformed.
type RawTransaction struct {
	Date        string
	Description string
	Amount      string
	Reference   string
}

// Options controls normalization behaviour.
type Options struct {
	// Strict rejects rows whose description is empty after sanitization.
	Strict bool
	// NegativeParens treats "(123.45)" as -123.45, the accounting convention.
	NegativeParens bool
}

// Transaction is a canonical transaction. Immutable once produced.
type Transaction struct {
	Date             string // ISO-8601 yyyy-MM-dd
	Description      string // trimmed, whitespace-collapsed, uppercased
	AmountMinorUnits int64  // signed cents
	Reference        string // alphanumeric and hyphen only, may be empty
}

var (
	ErrEmptyDate        = errors.New("empty date")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
)

// Normalize converts one raw quadruple into a canonical transaction.
func Normalize(raw RawTransaction, opts Options) (Transaction, error) {
	date, err := Date(raw.Date)
	if err != nil {
		return Transaction{}, err
	}
	desc := Description(raw.Description)
	if desc == "" && opts.Strict {
		return Transaction{}, ErrEmptyDescription
	}
	amount, err := Amount(raw.Amount, opts.NegativeParens)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		Date:             date,
		Description:      desc,
		AmountMinorUnits: amount,
		Reference:        Reference(raw.Reference),
	}, nil
}

// dateLayouts in attempt order: ISO first, then US, EU, dashed US, compact
// numeric (OFX date-times included), then English month names. Padded and
// unpadded variants are both listed because time.Parse is strict about
// zero-padded numeric fields.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006", "1/2/2006",
	"02/01/2006", "2/1/2006",
	"01-02-2006", "1-2-2006",
	"20060102",
	"20060102150405",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// lastResortLayouts are tried only after every ordered attempt fails.
var lastResortLayouts = []string{
	"2006/01/02",
	"02.01.2006",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var spanishMonths = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"setiembre": time.September, "octubre": time.October,
	"noviembre": time.November, "diciembre": time.December,
}

// Date parses a raw date string into ISO-8601 yyyy-MM-dd. Years must be
// strictly between 1900 and 2100, which guards against two-digit-year
// misparses and numeric garbage.
func Date(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil && yearInBounds(t) {
			return t.Format("2006-01-02"), nil
		}
	}
	if iso, ok := parseSpanishDate(s); ok {
		return iso, nil
	}
	for _, layout := range lastResortLayouts {
		if t, err := time.Parse(layout, s); err == nil && yearInBounds(t) {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

func yearInBounds(t time.Time) bool {
	y := t.Year()
	return y > 1900 && y < 2100
}

// parseSpanishDate handles "15 Enero 2024" and the connector form
// "15 de Enero de 2024" (the "de" is stripped before parsing).
func parseSpanishDate(s string) (string, bool) {
	fields := strings.Fields(strings.ToLower(s))
	trimmed := fields[:0]
	for _, f := range fields {
		if f == "de" || f == "del" {
			continue
		}
		trimmed = append(trimmed, strings.Trim(f, ","))
	}
	if len(trimmed) != 3 {
		return "", false
	}
	day, err := strconv.Atoi(trimmed[0])
	if err != nil || day < 1 || day > 31 {
		return "", false
	}
	month, ok := spanishMonths[trimmed[1]]
	if !ok {
		return "", false
	}
	year, err := strconv.Atoi(trimmed[2])
	if err != nil {
		return "", false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if !yearInBounds(t) || t.Day() != day || t.Month() != month {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// maxCents is the largest amount magnitude accepted, in minor units.
const maxCents = 1 << 53

var currencyStripper = strings.NewReplacer(
	"$", "", "£", "", "€", "", "¥", "",
	" ", "", "\t", "", " ", "",
)

// Amount parses a raw amount string into signed integer minor units (cents).
//
// Separator policy: when both a dot and a comma are present and the comma
// follows the last dot, the value is read EU-style (dot = thousands, comma =
// decimal). In every other case commas are thousands separators and are
// stripped, so "1,234" means 1234.00. That reading is ambiguous for European
// amounts lacking a decimal dot, and it is a deliberate, documented policy
// rather than a per-locale guess.
func Amount(raw string, negativeParens bool) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	neg := false
	if negativeParens && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = currencyStripper.Replace(s)

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	if lastDot >= 0 && lastComma > lastDot {
		// EU style: 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	// Rounding here is mandatory: 19.90*100 is 1989.9999... in float64.
	v := math.Round(f * 100)
	// Beyond 2^53 cents float64 no longer holds integers exactly and the
	// int64 conversion overflows, so such magnitudes are rejected outright.
	if v > maxCents || v < -maxCents {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	cents := int64(v)
	if neg {
		cents = -cents
	}
	return cents, nil
}

// Description collapses all whitespace runs to single spaces, trims, and
// uppercases. Idempotent.
func Description(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), " "))
}

var referenceStripper = regexp.MustCompile(`[^A-Za-z0-9-]+`)

// Reference strips every character that is not alphanumeric or hyphen.
// Absent input yields an empty string, not an error.
func Reference(raw string) string {
	return referenceStripper.ReplaceAllString(raw, "")
}

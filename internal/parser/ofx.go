package parser

import (
	"errors"
	"regexp"
	"strings"

	"github.com/oaklyn/bankfeed/internal/normalize"
)

// Statement holds OFX statement metadata alongside the parsed transactions.
// An OFX file describes one account per statement block.
type Statement struct {
	Currency     string
	AccountID    string
	BalanceMinor int64 // ledger balance in minor units
	HasBalance   bool
	StartDate    string // ISO, empty if absent
	EndDate      string
	Result       Result
}

var ErrNoTransactions = errors.New("ofx: no transaction block found")

// tagRe reads <TAG>value pairs. OFX 1.x SGML omits closing tags on leaf
// elements, so a value runs to the next tag or line break; XML closing tags
// just yield empty values that are discarded.
var tagRe = regexp.MustCompile(`(?is)<([A-Z0-9._]+)>([^<\r\n]*)`)

// stmtTrnSplit splits the payload on <STMTTRN> openers regardless of case.
var stmtTrnSplit = regexp.MustCompile(`(?i)<STMTTRN>`)

// ParseOFX parses OFX 1.x (SGML) and 2.x (XML) statements. Each transaction
// carries a provider-assigned FITID; when present it is preferred as the
// reference number since it is the most reliable de-duplication key a bank
// provides.
func ParseOFX(data []byte, opts normalize.Options) (Statement, error) {
	text := string(data)
	stmt := Statement{}

	header := extractTags(text)
	stmt.Currency = strings.ToUpper(header["CURDEF"])
	stmt.AccountID = header["ACCTID"]
	if v, err := normalize.Date(ofxDate(header["DTSTART"])); err == nil {
		stmt.StartDate = v
	}
	if v, err := normalize.Date(ofxDate(header["DTEND"])); err == nil {
		stmt.EndDate = v
	}
	if v, err := normalize.Amount(header["BALAMT"], false); err == nil {
		stmt.BalanceMinor = v
		stmt.HasBalance = true
	}

	chunks := stmtTrnSplit.Split(text, -1)
	if len(chunks) < 2 {
		return stmt, ErrNoTransactions
	}

	for i, chunk := range chunks[1:] {
		// SGML blocks have no closing tag; stop at the next structural close.
		for _, end := range []string{"</STMTTRN>", "</BANKTRANLIST>"} {
			if idx := indexFold(chunk, end); idx >= 0 {
				chunk = chunk[:idx]
			}
		}
		stmt.Result.RowCount++
		fields := extractTags(chunk)

		desc := fields["NAME"]
		if memo := fields["MEMO"]; memo != "" {
			if desc == "" {
				desc = memo
			} else if !strings.EqualFold(desc, memo) {
				desc = desc + " " + memo
			}
		}
		ref := fields["FITID"]
		if ref == "" {
			ref = fields["CHECKNUM"]
		}

		raw := normalize.RawTransaction{
			Date:        ofxDate(fields["DTPOSTED"]),
			Description: desc,
			Amount:      fields["TRNAMT"],
			Reference:   ref,
		}
		tx, err := normalize.Normalize(raw, opts)
		if err != nil {
			stmt.Result.RowErrors = append(stmt.Result.RowErrors, RowError{Line: i + 1, Err: err})
			continue
		}
		stmt.Result.Transactions = append(stmt.Result.Transactions, tx)
	}
	if stmt.Result.RowCount == 0 {
		return stmt, ErrNoTransactions
	}
	return stmt, nil
}

// ofxDate trims fractional seconds and timezone suffixes from OFX datetime
// values like "20230115120000.000[-5:EST]".
func ofxDate(s string) string {
	if idx := strings.IndexAny(s, ".["); idx >= 0 {
		s = s[:idx]
	}
	return s
}

func extractTags(fragment string) map[string]string {
	out := make(map[string]string)
	for _, m := range tagRe.FindAllStringSubmatch(fragment, -1) {
		key := strings.ToUpper(m[1])
		val := strings.TrimSpace(m[2])
		if val == "" {
			continue
		}
		if _, exists := out[key]; !exists {
			out[key] = val
		}
	}
	return out
}

func indexFold(s, substr string) int {
	return strings.Index(strings.ToUpper(s), strings.ToUpper(substr))
}

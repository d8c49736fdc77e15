// Package parser turns statement files of known formats into normalized
// transactions. Each parser is best-effort: malformed rows are reported per
// line and never abort the file.
package parser

import (
	"fmt"

	"github.com/oaklyn/bankfeed/internal/normalize"
)

// RowError records a single row that failed normalization, with the reason
// retained for diagnostics.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Result is what every parser produces: the rows that normalized cleanly,
// the rows that did not, and the total row count seen (so callers can report
// progress even on partial failure).
type Result struct {
	Transactions []normalize.Transaction
	RowErrors    []RowError
	RowCount     int
}

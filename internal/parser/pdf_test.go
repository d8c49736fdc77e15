package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oaklyn/bankfeed/internal/normalize"
)

func TestSplitStatementLine(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		line string
		want normalize.RawTransaction
		ok   bool
	}{
		{
			name: "amount and balance columns",
			line: "01/05/2023 CARD PAYMENT TESCO STORES 42.50 1,207.50",
			want: normalize.RawTransaction{Date: "01/05/2023", Description: "CARD PAYMENT TESCO STORES", Amount: "42.50"},
			ok:   true,
		},
		{
			name: "amount only",
			line: "2023-01-06 DIRECT DEBIT ENERGY CO -84.20",
			want: normalize.RawTransaction{Date: "2023-01-06", Description: "DIRECT DEBIT ENERGY CO", Amount: "-84.20"},
			ok:   true,
		},
		{
			name: "textual month date",
			line: "15 Jan 2024 STANDING ORDER RENT 950.00",
			want: normalize.RawTransaction{Date: "15 Jan 2024", Description: "STANDING ORDER RENT", Amount: "950.00"},
			ok:   true,
		},
		{
			name: "cheque number is not an amount",
			line: "01/07/2023 CHEQUE 000123 150.00",
			want: normalize.RawTransaction{Date: "01/07/2023", Description: "CHEQUE 000123", Amount: "150.00"},
			ok:   true,
		},
		{name: "header line", line: "Date Description Amount Balance", ok: false},
		{name: "footer line", line: "Page 3 of 7", ok: false},
		{name: "date but no amount", line: "01/05/2023 BALANCE BROUGHT FORWARD", ok: false},
		{name: "empty", line: "", ok: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := splitStatementLine(tc.line)
			require.Equal(t, tc.ok, ok)
			if ok {
				require.Equal(t, tc.want, got)
			}
		})
	}
}

func TestParseStatementLines(t *testing.T) {
	t.Parallel()

	lines := []string{
		"MEGABANK PLC",
		"Statement Period 01/01/2023 - 31/01/2023",
		"Date Description Amount Balance",
		"01/05/2023 CARD PAYMENT COFFEE 4.50 995.50",
		"01/06/2023 PAYROLL ACME 2,000.00 2,995.50",
		"99/99/9999 IMPOSSIBLE DATE 1.00 1.00",
		"End of statement",
	}
	res := parseStatementLines(lines, normalize.Options{Strict: true})
	require.Equal(t, 3, res.RowCount)
	require.Len(t, res.Transactions, 2)
	require.Len(t, res.RowErrors, 1)

	require.Equal(t, "2023-01-05", res.Transactions[0].Date)
	require.Equal(t, "CARD PAYMENT COFFEE", res.Transactions[0].Description)
	require.Equal(t, int64(450), res.Transactions[0].AmountMinorUnits)
	require.Equal(t, int64(200000), res.Transactions[1].AmountMinorUnits)
}

func TestParsePDFRejectsNonPDF(t *testing.T) {
	t.Parallel()

	_, err := ParsePDF([]byte("not a pdf at all"), normalize.Options{})
	require.Error(t, err)
}

package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDateFormats(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"2023-01-31", "2023-01-31"},
		{"01/31/2023", "2023-01-31"},
		{"1/31/2023", "2023-01-31"},
		{"15/01/2024", "2024-01-15"},
		{"01-31-2023", "2023-01-31"},
		{"20230131", "2023-01-31"},
		{"20240115093000", "2024-01-15"},
		{"January 31, 2023", "2023-01-31"},
		{"31 January 2023", "2023-01-31"},
		{"Jan 31, 2023", "2023-01-31"},
		{"15 Enero 2024", "2024-01-15"},
		{"15 de Enero de 2024", "2024-01-15"},
		{"3 de Septiembre de 2023", "2023-09-03"},
		{"2023/01/31", "2023-01-31"},
	}
	for _, tc := range cases {
		got, err := Date(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestDateRejections(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"   ",
		"not a date",
		"31/31/2023",
		"01/31/1899", // below the year floor
		"01/31/2101", // above the year ceiling
		"15 Smarch 2024",
		"00000000",
	}
	for _, in := range cases {
		_, err := Date(in)
		require.Error(t, err, "input %q", in)
	}
	_, err := Date("")
	require.ErrorIs(t, err, ErrEmptyDate)
	_, err = Date("garbage")
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestAmountMinorUnits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		parens bool
		want   int64
	}{
		{"1000.50", false, 100050},
		{"100.00", false, 10000},
		{"-42.07", false, -4207},
		{"$1,234.56", false, 123456},
		{"1.234,56", false, 123456},  // EU separators
		{"€1.234,56", false, 123456}, // EU with currency symbol
		{"1,234", false, 123400},     // comma-only reads as US thousands, by policy
		{"(1,500.00)", true, -150000},
		{"( 25.00 )", true, -2500},
		{"(10.00)", false, 0}, // parens detection disabled: handled below
		{"0.1", false, 10},
		{"19.90", false, 1990}, // would drift without rounding
		{"£99", false, 9900},
	}
	for _, tc := range cases {
		if tc.in == "(10.00)" {
			_, err := Amount(tc.in, false)
			require.Error(t, err, "parens without detection must not parse")
			continue
		}
		got, err := Amount(tc.in, tc.parens)
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestAmountRejections(t *testing.T) {
	t.Parallel()

	cases := []string{"", "  ", "abc", "12.3.4,5,6", "NaN", "Inf", "+Inf", "-Inf"}
	for _, in := range cases {
		_, err := Amount(in, true)
		require.ErrorIs(t, err, ErrInvalidAmount, "input %q", in)
	}
}

func TestAmountOverflowRejected(t *testing.T) {
	t.Parallel()

	// huge-but-finite values would wrap the int64 conversion; they must
	// fail loudly, never come back as a wrapped-around negative amount
	cases := []string{"9e30", "1e300", "92233720368547758.08", "-9e30"}
	for _, in := range cases {
		cents, err := Amount(in, true)
		require.ErrorIs(t, err, ErrInvalidAmount, "input %q", in)
		require.Zero(t, cents, "input %q", in)
	}
}

func TestDescriptionSanitizeIdempotent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"  payment   thankyou  ", "PAYMENT THANKYOU"},
		{"multi\nline\tdesc", "MULTI LINE DESC"},
		{"ALREADY CLEAN", "ALREADY CLEAN"},
		{"", ""},
		{"   \t\n  ", ""},
	}
	for _, tc := range cases {
		got := Description(tc.in)
		require.Equal(t, tc.want, got)
		require.Equal(t, got, Description(got), "sanitize must be idempotent for %q", tc.in)
	}
}

func TestReferenceSanitize(t *testing.T) {
	t.Parallel()

	require.Equal(t, "CHK-1042", Reference(" CHK-1042 "))
	require.Equal(t, "FIT20230101", Reference("FIT#2023.01.01"))
	require.Equal(t, "", Reference(""))
	require.Equal(t, "", Reference("***"))
}

func TestNormalizeWholeRow(t *testing.T) {
	t.Parallel()

	tx, err := Normalize(RawTransaction{
		Date:        "01/01/2023",
		Description: "PAYMENT",
		Amount:      "100.00",
	}, Options{Strict: true, NegativeParens: true})
	require.NoError(t, err)
	require.Equal(t, Transaction{
		Date:             "2023-01-01",
		Description:      "PAYMENT",
		AmountMinorUnits: 10000,
	}, tx)
}

func TestNormalizeNeverSucceedsOnGarbage(t *testing.T) {
	t.Parallel()

	opts := Options{Strict: true, NegativeParens: true}
	bad := []RawTransaction{
		{Date: "", Description: "X", Amount: "1.00"},
		{Date: "01/01/2023", Description: "X", Amount: ""},
		{Date: "01/01/2023", Description: "X", Amount: "zero"},
		{Date: "01/01/2023", Description: "   ", Amount: "1.00"},
		{Date: "bogus", Description: "X", Amount: "1.00"},
	}
	for i, raw := range bad {
		_, err := Normalize(raw, opts)
		require.Error(t, err, "case %d", i)
	}

	// a bad amount must never silently become zero
	_, err := Normalize(RawTransaction{Date: "01/01/2023", Description: "X", Amount: "n/a"}, opts)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNormalizeLenientDescription(t *testing.T) {
	t.Parallel()

	tx, err := Normalize(RawTransaction{Date: "2023-05-05", Description: "  ", Amount: "5.00"},
		Options{Strict: false})
	require.NoError(t, err)
	require.Equal(t, "", tx.Description)
	require.Equal(t, int64(500), tx.AmountMinorUnits)
}

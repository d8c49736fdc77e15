package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oaklyn/bankfeed/internal/normalize"
)

const ofxSGML = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII

<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>021000021
<ACCTID>9876543210
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20230101
<DTEND>20230131
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20230105120000.000[-5:EST]
<TRNAMT>-42.50
<FITID>20230105-001
<NAME>GROCERY STORE
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20230110
<TRNAMT>1500.00
<FITID>20230110-002
<NAME>PAYROLL
<MEMO>ACME CORP DIRECT DEP
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>2457.50
<DTASOF>20230131
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

const ofxXML = `<?xml version="1.0" encoding="UTF-8"?>
<?OFX OFXHEADER="200" VERSION="211" SECURITY="NONE"?>
<OFX>
  <BANKMSGSRSV1>
    <STMTTRNRS>
      <STMTRS>
        <CURDEF>EUR</CURDEF>
        <BANKACCTFROM>
          <ACCTID>ES9121000418450200051332</ACCTID>
        </BANKACCTFROM>
        <BANKTRANLIST>
          <DTSTART>20240201</DTSTART>
          <DTEND>20240229</DTEND>
          <STMTTRN>
            <TRNTYPE>DEBIT</TRNTYPE>
            <DTPOSTED>20240203</DTPOSTED>
            <TRNAMT>-15.00</TRNAMT>
            <FITID>F-778812</FITID>
            <NAME>CAFETERIA CENTRAL</NAME>
          </STMTTRN>
        </BANKTRANLIST>
      </STMTRS>
    </STMTTRNRS>
  </BANKMSGSRSV1>
</OFX>
`

func TestParseOFXSGML(t *testing.T) {
	t.Parallel()

	stmt, err := ParseOFX([]byte(ofxSGML), normalize.Options{Strict: true})
	require.NoError(t, err)

	require.Equal(t, "USD", stmt.Currency)
	require.Equal(t, "9876543210", stmt.AccountID)
	require.Equal(t, "2023-01-01", stmt.StartDate)
	require.Equal(t, "2023-01-31", stmt.EndDate)
	require.True(t, stmt.HasBalance)
	require.Equal(t, int64(245750), stmt.BalanceMinor)

	require.Equal(t, 2, stmt.Result.RowCount)
	require.Empty(t, stmt.Result.RowErrors)
	require.Len(t, stmt.Result.Transactions, 2)

	first := stmt.Result.Transactions[0]
	require.Equal(t, "2023-01-05", first.Date)
	require.Equal(t, "GROCERY STORE", first.Description)
	require.Equal(t, int64(-4250), first.AmountMinorUnits)
	require.Equal(t, "20230105-001", first.Reference) // FITID preferred

	second := stmt.Result.Transactions[1]
	require.Equal(t, "PAYROLL ACME CORP DIRECT DEP", second.Description)
	require.Equal(t, int64(150000), second.AmountMinorUnits)
}

func TestParseOFXXML(t *testing.T) {
	t.Parallel()

	stmt, err := ParseOFX([]byte(ofxXML), normalize.Options{Strict: true})
	require.NoError(t, err)

	require.Equal(t, "EUR", stmt.Currency)
	require.Equal(t, "ES9121000418450200051332", stmt.AccountID)
	require.Len(t, stmt.Result.Transactions, 1)
	tx := stmt.Result.Transactions[0]
	require.Equal(t, "2024-02-03", tx.Date)
	require.Equal(t, "CAFETERIA CENTRAL", tx.Description)
	require.Equal(t, int64(-1500), tx.AmountMinorUnits)
	require.Equal(t, "F-778812", tx.Reference)
}

func TestParseOFXNoTransactions(t *testing.T) {
	t.Parallel()

	_, err := ParseOFX([]byte("<OFX><BANKMSGSRSV1></BANKMSGSRSV1></OFX>"), normalize.Options{})
	require.ErrorIs(t, err, ErrNoTransactions)
}

func TestParseOFXBadRowDoesNotAbort(t *testing.T) {
	t.Parallel()

	body := `<OFX><BANKTRANLIST>
<STMTTRN>
<DTPOSTED>garbage
<TRNAMT>-1.00
<NAME>BROKEN
</STMTTRN>
<STMTTRN>
<DTPOSTED>20230301
<TRNAMT>-2.00
<NAME>FINE
</STMTTRN>
</BANKTRANLIST></OFX>`
	stmt, err := ParseOFX([]byte(body), normalize.Options{Strict: true})
	require.NoError(t, err)
	require.Equal(t, 2, stmt.Result.RowCount)
	require.Len(t, stmt.Result.Transactions, 1)
	require.Len(t, stmt.Result.RowErrors, 1)
	require.Equal(t, "FINE", stmt.Result.Transactions[0].Description)
}

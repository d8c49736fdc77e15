package repository

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction statuses. A transaction is created pending and only the
// matcher moves it to matched (and back).
const (
	StatusPending = "pending"
	StatusMatched = "matched"
)

// BankAccount represents a bank account row. Accounts are administered
// outside the import core; the repository only upserts and lists them.
type BankAccount struct {
	ID          string
	Name        string
	Institution string
	AccountType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BankTransaction represents an imported transaction row. Amount is in major
// currency units (dollars, not cents); the conversion from the pipeline's
// integer minor units happens only inside this package, at scan and insert.
type BankTransaction struct {
	ID            string
	AccountID     string
	DateISO       string
	Amount        decimal.Decimal
	Description   string
	Reference     string
	Status        string
	LedgerEntryID *string
	SourceHash    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LedgerEntry represents a journal entry row available for reconciliation.
type LedgerEntry struct {
	ID         string
	DateISO    string
	Amount     decimal.Decimal
	Memo       string
	Reconciled bool
	CreatedAt  time.Time
}

// centsToAmount converts stored integer cents to a major-unit decimal.
func centsToAmount(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// amountToCents converts a major-unit decimal to integer cents for storage.
func amountToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// DeterministicAccountID derives a stable id from an account name so
// repeated imports against the same named account converge.
func DeterministicAccountID(name string) string {
	key := strings.ToLower(strings.TrimSpace(filepath.Base(name)))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("acct:"+key)).String()
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"github.com/oaklyn/bankfeed/internal/database/repository"
)

// MatchCandidate is one ledger entry proposed for a bank transaction,
// scored and explained for review.
type MatchCandidate struct {
	Entry      repository.LedgerEntry
	Confidence float64
	Type       string
	Reason     string
}

const (
	MatchExact = "exact"
	MatchClose = "close"
)

// Matcher proposes ledger matches for pending bank transactions. The
// candidate list is a derived view: computing it never mutates anything,
// so it can be recomputed at any time.
type Matcher struct {
	Transactions *repository.TransactionRepo
	Ledger       *repository.LedgerRepo
	WindowDays   int
	Log          zerolog.Logger
}

// FindPotentialMatches returns unreconciled ledger entries whose amount
// equals the transaction's and whose date falls within the matcher window,
// best candidate first.
func (m *Matcher) FindPotentialMatches(ctx context.Context, txID string) ([]MatchCandidate, error) {
	tx, err := m.Transactions.Get(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction %s not found", txID)
	}
	txDate, err := time.Parse("2006-01-02", tx.DateISO)
	if err != nil {
		return nil, fmt.Errorf("transaction %s has malformed date %q", txID, tx.DateISO)
	}

	start := txDate.AddDate(0, 0, -m.WindowDays).Format("2006-01-02")
	end := txDate.AddDate(0, 0, m.WindowDays).Format("2006-01-02")
	entries, err := m.Ledger.UnreconciledBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load ledger window: %w", err)
	}

	var out []MatchCandidate
	for _, e := range entries {
		if !e.Amount.Equal(tx.Amount) {
			continue
		}
		entryDate, err := time.Parse("2006-01-02", e.DateISO)
		if err != nil {
			continue
		}
		days := int(txDate.Sub(entryDate).Hours() / 24)
		if days < 0 {
			days = -days
		}
		out = append(out, m.score(tx, e, days))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	m.Log.Debug().Str("tx", txID).Int("candidates", len(out)).Msg("matched")
	return out, nil
}

func (m *Matcher) score(tx *repository.BankTransaction, e repository.LedgerEntry, days int) MatchCandidate {
	c := MatchCandidate{Entry: e}

	// equal amount is a precondition; the date distance drives the base
	// score and memo similarity nudges it
	base := 0.9
	if m.WindowDays > 0 {
		base = 0.9 - 0.4*float64(days)/float64(m.WindowDays)
	}
	if similarMemo(tx.Description, e.Memo) {
		base += 0.1
	}
	if base > 1 {
		base = 1
	}
	c.Confidence = base

	if days == 0 {
		c.Type = MatchExact
		c.Reason = fmt.Sprintf("same amount %s on the same day", tx.Amount.StringFixed(2))
	} else {
		c.Type = MatchClose
		c.Reason = fmt.Sprintf("same amount %s, %d day(s) apart", tx.Amount.StringFixed(2), days)
	}
	return c
}

func similarMemo(desc, memo string) bool {
	a := strings.ToUpper(strings.Join(strings.Fields(desc), " "))
	b := strings.ToUpper(strings.Join(strings.Fields(memo), " "))
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return float64(levenshtein.ComputeDistance(a, b))/float64(longest) < 0.3
}

// ConfirmMatch links a pending transaction to a ledger entry: the
// transaction becomes matched and the entry reconciled.
func (m *Matcher) ConfirmMatch(ctx context.Context, txID, entryID string) error {
	if err := m.Transactions.MarkMatched(ctx, txID, entryID); err != nil {
		return err
	}
	if err := m.Ledger.SetReconciled(ctx, entryID, true); err != nil {
		return fmt.Errorf("reconcile ledger entry: %w", err)
	}
	m.Log.Info().Str("tx", txID).Str("entry", entryID).Msg("match confirmed")
	return nil
}

// Unmatch reverses a confirmed match, returning the transaction to pending
// and the ledger entry to unreconciled.
func (m *Matcher) Unmatch(ctx context.Context, txID string) error {
	tx, err := m.Transactions.Get(ctx, txID)
	if err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("transaction %s not found", txID)
	}
	if tx.LedgerEntryID == nil {
		return fmt.Errorf("transaction %s is not matched", txID)
	}
	entryID := *tx.LedgerEntryID
	if err := m.Transactions.Unmatch(ctx, txID); err != nil {
		return err
	}
	if err := m.Ledger.SetReconciled(ctx, entryID, false); err != nil {
		return fmt.Errorf("unreconcile ledger entry: %w", err)
	}
	m.Log.Info().Str("tx", txID).Str("entry", entryID).Msg("match reversed")
	return nil
}

package repository

import (
	"context"
	"database/sql"
)

// LedgerRepo reads journal entries for reconciliation. Entries are created by
// the bookkeeping side of the application; this core only flips the
// reconciled flag when a match is confirmed or undone.
type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

const ledgerColumns = `id, date_iso, amount_cents, memo, reconciled, created_at`

func (r *LedgerRepo) Insert(ctx context.Context, e LedgerEntry) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO ledger_entries(id, date_iso, amount_cents, memo, reconciled, created_at)
	VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP);
	`, e.ID, e.DateISO, amountToCents(e.Amount), e.Memo, boolToInt(e.Reconciled))
	return err
}

// UnreconciledBetween returns unreconciled entries with dates inside
// [startISO, endISO] inclusive. ISO dates sort lexicographically, so the
// window is a plain string range.
func (r *LedgerRepo) UnreconciledBetween(ctx context.Context, startISO, endISO string) ([]LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT `+ledgerColumns+` FROM ledger_entries
	WHERE reconciled = 0 AND date_iso >= ? AND date_iso <= ?
	ORDER BY date_iso`, startISO, endISO)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *LedgerRepo) Get(ctx context.Context, id string) (*LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = ?`, id)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *LedgerRepo) SetReconciled(ctx context.Context, id string, reconciled bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE ledger_entries SET reconciled = ? WHERE id = ?`, boolToInt(reconciled), id)
	return err
}

func scanLedgerEntry(row rowScanner) (LedgerEntry, error) {
	var e LedgerEntry
	var cents int64
	var rec int
	err := row.Scan(&e.ID, &e.DateISO, &cents, &e.Memo, &rec, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	e.Amount = centsToAmount(cents)
	e.Reconciled = rec == 1
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

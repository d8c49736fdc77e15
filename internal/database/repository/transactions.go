package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertReport summarises a batch insert.
type InsertReport struct {
	Imported int
	Skipped  int // unique source_hash collisions
}

// TransactionRepo handles bank transactions.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const txColumns = `id, account_id, date_iso, amount_cents, description, reference, status, ledger_entry_id, source_hash, created_at, updated_at`

// InsertBatch writes the whole selected set inside a single sql transaction.
// This is the one persistence step of an import session: either every row in
// the batch lands or none do, so a cancelled or failed import never leaves
// partial state behind. Rows whose source_hash already exists are skipped.
func (r *TransactionRepo) InsertBatch(ctx context.Context, txs []BankTransaction) (InsertReport, error) {
	var rep InsertReport
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return rep, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO bank_transactions(`+txColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(source_hash) DO NOTHING;
	`)
	if err != nil {
		return rep, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		res, err := stmt.ExecContext(ctx,
			t.ID, t.AccountID, t.DateISO, amountToCents(t.Amount), t.Description,
			t.Reference, t.Status, t.LedgerEntryID, t.SourceHash)
		if err != nil {
			return rep, fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return rep, err
		}
		if n == 0 {
			rep.Skipped++
			continue
		}
		rep.Imported++
	}
	if err := tx.Commit(); err != nil {
		return rep, fmt.Errorf("commit batch: %w", err)
	}
	return rep, nil
}

// ListByAccount returns all transactions for an account, newest first.
func (r *TransactionRepo) ListByAccount(ctx context.Context, accountID string) ([]BankTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+txColumns+` FROM bank_transactions WHERE account_id = ? ORDER BY date_iso DESC, created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BankTransaction
	for rows.Next() {
		t, err := scanBankTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListPending returns transactions still awaiting a ledger match.
func (r *TransactionRepo) ListPending(ctx context.Context, accountID string) ([]BankTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+txColumns+` FROM bank_transactions WHERE account_id = ? AND status = ? ORDER BY date_iso DESC`, accountID, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BankTransaction
	for rows.Next() {
		t, err := scanBankTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (*BankTransaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM bank_transactions WHERE id = ?`, id)
	t, err := scanBankTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// MarkMatched links a transaction to a ledger entry and moves it to matched.
func (r *TransactionRepo) MarkMatched(ctx context.Context, id, ledgerEntryID string) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE bank_transactions
	SET status = ?, ledger_entry_id = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND status = ?`,
		StatusMatched, ledgerEntryID, id, StatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	return nil
}

// Unmatch clears the ledger link and returns the transaction to pending.
func (r *TransactionRepo) Unmatch(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE bank_transactions
	SET status = ?, ledger_entry_id = NULL, updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND status = ?`,
		StatusPending, id, StatusMatched)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %s is not matched", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBankTransaction(row rowScanner) (BankTransaction, error) {
	var t BankTransaction
	var cents int64
	err := row.Scan(&t.ID, &t.AccountID, &t.DateISO, &cents, &t.Description,
		&t.Reference, &t.Status, &t.LedgerEntryID, &t.SourceHash, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.Amount = centsToAmount(cents)
	return t, nil
}

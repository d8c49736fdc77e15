package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/oaklyn/bankfeed/internal/database/repository"
)

func openMigrated(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("migrations")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(dbPath, migrations))
	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSeedDefaultsIdempotent(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db := openMigrated(t)
	require.NoError(t, SeedDefaults(ctx, db))
	require.NoError(t, SeedDefaults(ctx, db))

	accts, err := repository.NewAccountRepo(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, accts, 2)

	// seeded ids are stable across databases
	require.Equal(t, repository.DeterministicAccountID("Checking"), accts[0].ID)
}

func TestInsertBatchSkipsStoredHashes(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db := openMigrated(t)
	require.NoError(t, SeedDefaults(ctx, db))
	acct := repository.DeterministicAccountID("Checking")
	repo := repository.NewTransactionRepo(db)

	row := func(hash string) repository.BankTransaction {
		return repository.BankTransaction{
			ID:          uuid.NewString(),
			AccountID:   acct,
			DateISO:     "2024-02-01",
			Amount:      decimal.New(-4599, -2),
			Description: "COFFEE",
			Status:      repository.StatusPending,
			SourceHash:  hash,
		}
	}

	rep, err := repo.InsertBatch(ctx, []repository.BankTransaction{row("h1"), row("h2")})
	require.NoError(t, err)
	require.Equal(t, 2, rep.Imported)
	require.Equal(t, 0, rep.Skipped)

	rep, err = repo.InsertBatch(ctx, []repository.BankTransaction{row("h2"), row("h3")})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Imported)
	require.Equal(t, 1, rep.Skipped)

	txs, err := repo.ListByAccount(ctx, acct)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.Equal(t, "-45.99", txs[0].Amount.StringFixed(2), "cents survive the decimal round trip")
}

func TestLedgerWindowIsInclusive(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db := openMigrated(t)
	repo := repository.NewLedgerRepo(db)

	insert := func(date string, reconciled bool) {
		require.NoError(t, repo.Insert(ctx, repository.LedgerEntry{
			ID:         uuid.NewString(),
			DateISO:    date,
			Amount:     decimal.New(10000, -2),
			Memo:       "entry " + date,
			Reconciled: reconciled,
		}))
	}
	insert("2024-02-01", false)
	insert("2024-02-03", false)
	insert("2024-02-05", false)
	insert("2024-02-03", true)

	entries, err := repo.UnreconciledBetween(ctx, "2024-02-01", "2024-02-03")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "2024-02-01", entries[0].DateISO)
	require.Equal(t, "2024-02-03", entries[1].DateISO)
}

func TestStatusTransitionsGuarded(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db := openMigrated(t)
	require.NoError(t, SeedDefaults(ctx, db))
	acct := repository.DeterministicAccountID("Checking")
	txRepo := repository.NewTransactionRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)

	entryID := uuid.NewString()
	require.NoError(t, ledgerRepo.Insert(ctx, repository.LedgerEntry{
		ID: entryID, DateISO: "2024-02-01", Amount: decimal.New(-5000, -2), Memo: "rent",
	}))

	txID := uuid.NewString()
	_, err := txRepo.InsertBatch(ctx, []repository.BankTransaction{{
		ID:          txID,
		AccountID:   acct,
		DateISO:     "2024-02-01",
		Amount:      decimal.New(-5000, -2),
		Description: "RENT",
		Status:      repository.StatusPending,
		SourceHash:  "hash-guarded",
	}})
	require.NoError(t, err)

	require.Error(t, txRepo.Unmatch(ctx, txID), "pending transaction cannot be unmatched")
	require.NoError(t, txRepo.MarkMatched(ctx, txID, entryID))
	require.Error(t, txRepo.MarkMatched(ctx, txID, entryID), "matched transaction cannot be matched twice")

	tx, err := txRepo.Get(ctx, txID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusMatched, tx.Status)
	require.NotNil(t, tx.LedgerEntryID)

	require.NoError(t, txRepo.Unmatch(ctx, txID))
	tx, err = txRepo.Get(ctx, txID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusPending, tx.Status)
	require.Nil(t, tx.LedgerEntryID)
}

package database

import (
	"context"
	"database/sql"

	"github.com/oaklyn/bankfeed/internal/database/repository"
)

// SeedDefaults ensures a baseline bank account exists for new databases so
// the import wizard always has a target to offer. It is idempotent and safe
// to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	acctRepo := repository.NewAccountRepo(db)
	existing, err := acctRepo.List(ctx)
	if err == nil && len(existing) > 0 {
		return nil
	}
	defaults := []repository.BankAccount{
		{Name: "Checking", AccountType: "checking"},
		{Name: "Savings", AccountType: "savings"},
	}
	for _, a := range defaults {
		a.ID = repository.DeterministicAccountID(a.Name)
		if err := acctRepo.Upsert(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

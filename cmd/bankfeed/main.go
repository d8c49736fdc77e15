package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oaklyn/bankfeed/internal/config"
	"github.com/oaklyn/bankfeed/internal/database"
	"github.com/oaklyn/bankfeed/internal/database/repository"
	"github.com/oaklyn/bankfeed/internal/logger"
	"github.com/oaklyn/bankfeed/internal/normalize"
	"github.com/oaklyn/bankfeed/internal/service"
	"github.com/oaklyn/bankfeed/internal/tui"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatal().Err(err).Msg("mkdir db dir")
	}

	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	if err := database.SeedDefaults(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("seed defaults")
	}

	// repositories
	txRepo := repository.NewTransactionRepo(db)
	acctRepo := repository.NewAccountRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)

	// the TUI owns the terminal; service logs go to a file next to the db
	svcLog := logger.Nop()
	logPath := cfg.Database.Path + ".log"
	if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
		defer f.Close()
		svcLog = logger.NewWithWriter(f)
	}

	importer := &service.Importer{
		Transactions: txRepo,
		Accounts:     acctRepo,
		Opts: normalize.Options{
			Strict:         cfg.Normalize.Strict,
			NegativeParens: cfg.Normalize.NegativeParens,
		},
		Duplicates: service.DuplicateConfig{
			DateWindowDays:   cfg.Duplicate.DateWindowDays,
			MaxDistanceRatio: cfg.Duplicate.MaxDistanceRatio,
		},
		Log: svcLog,
	}
	matcher := &service.Matcher{
		Transactions: txRepo,
		Ledger:       ledgerRepo,
		WindowDays:   cfg.Matcher.DateWindowDays,
		Log:          svcLog,
	}

	p := tea.NewProgram(tui.New(ctx,
		tui.Repos{Transactions: txRepo, Accounts: acctRepo, Ledger: ledgerRepo},
		tui.Services{Importer: importer, Matcher: matcher},
	), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

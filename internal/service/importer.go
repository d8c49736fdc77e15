package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/oaklyn/bankfeed/internal/database/repository"
	"github.com/oaklyn/bankfeed/internal/detect"
	"github.com/oaklyn/bankfeed/internal/normalize"
	"github.com/oaklyn/bankfeed/internal/parser"
)

// Stage names the states of an import session.
type Stage string

const (
	StageUpload  Stage = "upload"
	StageMapping Stage = "mapping"
	StagePreview Stage = "preview"
	StageResult  Stage = "result"
)

// File is one uploaded statement file, already read into memory.
type File struct {
	Name string
	Data []byte
}

// FileError attributes a failure to one file of a batch.
type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Name, e.Err) }

// ErrNothingImported is the hard failure of a batch where no file produced
// any transaction.
var ErrNothingImported = errors.New("no file in the batch produced transactions")

type pendingCSV struct {
	file File
	meta detect.CSVMetadata
}

// Session carries one import batch through upload → (mapping)? → preview →
// result. All state is in memory until Commit; Cancel at any point simply
// discards the session.
type Session struct {
	stage Stage

	transactions []normalize.Transaction
	rowErrors    []parser.RowError
	fileErrors   []FileError
	pendingCSVs  []pendingCSV

	// mapping stage, populated from the first pending CSV
	MappingHeader []string
	MappingSample [][]string
	Suggested     parser.Mapping

	selected  []bool
	accountID string

	partition *Partition
	report    *Report
}

// Report is the terminal result of a session.
type Report struct {
	Imported   int
	Skipped    int
	Duplicates int
	RowErrors  int
	FileErrors []FileError
}

// Importer orchestrates multi-file statement imports.
type Importer struct {
	Transactions *repository.TransactionRepo
	Accounts     *repository.AccountRepo
	Opts         normalize.Options
	Duplicates   DuplicateConfig
	Log          zerolog.Logger
}

// NewSession starts an empty session in the upload stage.
func (s *Importer) NewSession() *Session {
	return &Session{stage: StageUpload}
}

func (sess *Session) Stage() Stage { return sess.stage }

// Transactions returns the accumulated normalized transactions.
func (sess *Session) Transactions() []normalize.Transaction { return sess.transactions }

// FileErrors returns per-file failures collected so far.
func (sess *Session) FileErrors() []FileError { return sess.fileErrors }

// AddFiles ingests a batch of files. Detection and parsing run sequentially
// per file so memory stays bounded and errors attribute cleanly. OFX and PDF
// files are parsed immediately; CSV files are deferred, because their column
// semantics are resolved once by the user and then applied uniformly to
// every CSV in the batch. One bad file never aborts the batch: only a batch
// where zero files produce transactions is a hard failure.
func (s *Importer) AddFiles(sess *Session, files []File) error {
	if sess.stage != StageUpload {
		return fmt.Errorf("cannot add files in stage %s", sess.stage)
	}
	for _, f := range files {
		res := detect.Detect(f.Name, f.Data)
		s.Log.Debug().Str("file", f.Name).Str("format", string(res.Format)).
			Int("confidence", res.Confidence).Msg("detected")

		switch res.Parser {
		case detect.ParserCSV:
			meta, _ := res.Metadata.(detect.CSVMetadata)
			sess.pendingCSVs = append(sess.pendingCSVs, pendingCSV{file: f, meta: meta})
		case detect.ParserOFX:
			stmt, err := parser.ParseOFX(f.Data, s.Opts)
			if err != nil {
				sess.fileErrors = append(sess.fileErrors, FileError{Name: f.Name, Err: err})
				continue
			}
			sess.absorb(f.Name, stmt.Result, s.Log)
		case detect.ParserPDF:
			parsed, err := parser.ParsePDF(f.Data, s.Opts)
			if err != nil {
				sess.fileErrors = append(sess.fileErrors, FileError{Name: f.Name, Err: err})
				continue
			}
			sess.absorb(f.Name, parsed, s.Log)
		default:
			sess.fileErrors = append(sess.fileErrors, FileError{Name: f.Name, Err: errors.New("unrecognized format")})
		}
	}

	// surface the first readable CSV's header and sample so the user can
	// confirm one mapping for the whole batch
	for len(sess.pendingCSVs) > 0 {
		first := sess.pendingCSVs[0]
		header, sample, err := parser.ReadHeader(first.file.Data, first.meta.Delimiter, 3)
		if err != nil {
			sess.fileErrors = append(sess.fileErrors, FileError{Name: first.file.Name, Err: err})
			sess.pendingCSVs = sess.pendingCSVs[1:]
			continue
		}
		sess.MappingHeader = header
		sess.MappingSample = sample
		sess.Suggested = parser.SuggestMapping(header)
		sess.stage = StageMapping
		return nil
	}

	if len(sess.transactions) == 0 && len(sess.fileErrors) > 0 {
		return ErrNothingImported
	}
	sess.enterPreview()
	return nil
}

// ConfirmMapping re-parses every pending CSV under the one confirmed
// mapping. The parses are independent pure computations over in-memory
// bytes, so they run concurrently and join before merging.
func (s *Importer) ConfirmMapping(sess *Session, m parser.Mapping) error {
	if sess.stage != StageMapping {
		return fmt.Errorf("cannot confirm mapping in stage %s", sess.stage)
	}
	if !m.Valid() {
		return errors.New("mapping must assign date, description and amount columns")
	}

	type outcome struct {
		name string
		res  parser.Result
		err  error
	}
	outcomes := make([]outcome, len(sess.pendingCSVs))
	var wg sync.WaitGroup
	for i, p := range sess.pendingCSVs {
		wg.Add(1)
		go func(i int, p pendingCSV) {
			defer wg.Done()
			res, err := parser.ParseCSV(p.file.Data, p.meta.Delimiter, m, s.Opts)
			outcomes[i] = outcome{name: p.file.Name, res: res, err: err}
		}(i, p)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			sess.fileErrors = append(sess.fileErrors, FileError{Name: o.name, Err: o.err})
			continue
		}
		sess.absorb(o.name, o.res, s.Log)
	}
	sess.pendingCSVs = nil

	if len(sess.transactions) == 0 && len(sess.fileErrors) > 0 {
		return ErrNothingImported
	}
	sess.enterPreview()
	return nil
}

func (sess *Session) absorb(name string, res parser.Result, log zerolog.Logger) {
	sess.transactions = append(sess.transactions, res.Transactions...)
	sess.rowErrors = append(sess.rowErrors, res.RowErrors...)
	log.Info().Str("file", name).Int("rows", res.RowCount).
		Int("ok", len(res.Transactions)).Int("failed", len(res.RowErrors)).Msg("parsed")
}

func (sess *Session) enterPreview() {
	sess.selected = make([]bool, len(sess.transactions))
	for i := range sess.selected {
		sess.selected[i] = true // default: everything selected
	}
	sess.stage = StagePreview
}

// ToggleRow flips one preview row's selection and invalidates any cached
// duplicate partition.
func (sess *Session) ToggleRow(i int) {
	if sess.stage == StagePreview && i >= 0 && i < len(sess.selected) {
		sess.selected[i] = !sess.selected[i]
		sess.partition = nil
	}
}

// SetSelectAll selects or deselects every preview row.
func (sess *Session) SetSelectAll(selected bool) {
	for i := range sess.selected {
		sess.selected[i] = selected
	}
	sess.partition = nil
}

// Selected reports a row's selection state.
func (sess *Session) Selected(i int) bool {
	return i >= 0 && i < len(sess.selected) && sess.selected[i]
}

// SetAccount picks the target bank account. Required before commit.
func (sess *Session) SetAccount(accountID string) {
	sess.accountID = accountID
	sess.partition = nil
}

// AccountID returns the chosen target account.
func (sess *Session) AccountID() string { return sess.accountID }

// Cancel discards all in-memory state and returns to upload. Nothing has
// been persisted before Commit, so there is nothing to unwind.
func (sess *Session) Cancel() {
	*sess = Session{stage: StageUpload}
}

// Validate runs the duplicate gate over the selected rows against the
// target account's persisted transactions. It caches the partition on the
// session for the following Commit.
func (s *Importer) Validate(ctx context.Context, sess *Session) (*Partition, error) {
	if sess.stage != StagePreview {
		return nil, fmt.Errorf("cannot validate in stage %s", sess.stage)
	}
	if sess.accountID == "" {
		return nil, errors.New("select a target account before import")
	}
	acct, err := s.Accounts.Get(ctx, sess.accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		return nil, fmt.Errorf("account %s does not exist", sess.accountID)
	}
	existing, err := s.Transactions.ListByAccount(ctx, sess.accountID)
	if err != nil {
		return nil, fmt.Errorf("load existing transactions: %w", err)
	}
	var picked []normalize.Transaction
	for i, tx := range sess.transactions {
		if sess.selected[i] {
			picked = append(picked, tx)
		}
	}
	p := PartitionDuplicates(picked, existing, s.Duplicates)
	sess.partition = &p
	return &p, nil
}

// Commit persists the validated safe subset as one batch insert and moves
// the session to the result stage. Duplicates are reported, never written.
func (s *Importer) Commit(ctx context.Context, sess *Session) (*Report, error) {
	if sess.stage != StagePreview {
		return nil, fmt.Errorf("cannot commit in stage %s", sess.stage)
	}
	if sess.partition == nil {
		if _, err := s.Validate(ctx, sess); err != nil {
			return nil, err
		}
	}

	rows := make([]repository.BankTransaction, 0, len(sess.partition.Safe))
	for _, tx := range sess.partition.Safe {
		rows = append(rows, repository.BankTransaction{
			ID:          uuid.NewString(),
			AccountID:   sess.accountID,
			DateISO:     tx.Date,
			Amount:      decimal.New(tx.AmountMinorUnits, -2),
			Description: tx.Description,
			Reference:   tx.Reference,
			Status:      repository.StatusPending,
			SourceHash:  sourceHash(sess.accountID, tx),
		})
	}

	rep, err := s.Transactions.InsertBatch(ctx, rows)
	if err != nil {
		sess.report = &Report{FileErrors: sess.fileErrors}
		sess.stage = StageResult
		return sess.report, fmt.Errorf("persist batch: %w", err)
	}

	sess.report = &Report{
		Imported:   rep.Imported,
		Skipped:    rep.Skipped,
		Duplicates: len(sess.partition.Duplicates),
		RowErrors:  len(sess.rowErrors),
		FileErrors: sess.fileErrors,
	}
	sess.stage = StageResult
	s.Log.Info().Str("account", sess.accountID).Int("imported", rep.Imported).
		Int("duplicates", len(sess.partition.Duplicates)).Msg("import committed")
	return sess.report, nil
}

// Report returns the terminal report, nil before the result stage.
func (sess *Session) Report() *Report { return sess.report }

// Reset begins a fresh batch ("import more") after a result.
func (sess *Session) Reset() {
	*sess = Session{stage: StageUpload}
}

// sourceHash fingerprints a transaction for the unique index that backs the
// duplicate gate at the storage layer.
func sourceHash(accountID string, tx normalize.Transaction) string {
	joined := strings.Join([]string{
		accountID, tx.Date, strconv.FormatInt(tx.AmountMinorUnits, 10), tx.Description,
	}, "|")
	sum := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%x", sum[:])
}

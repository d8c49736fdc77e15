package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/oaklyn/bankfeed/internal/database/repository"
	"github.com/oaklyn/bankfeed/internal/parser"
	"github.com/oaklyn/bankfeed/internal/service"
)

// App ties together views.
type App struct {
	ctx      context.Context
	repos    Repos
	services Services
	state    appState

	accounts   []repository.BankAccount
	acctCursor int

	// import wizard
	sess       *service.Session
	pathInput  string
	mapping    parser.Mapping
	mapCursor  int
	prevCursor int
	partition  *service.Partition
	report     *service.Report

	// transactions view
	transactions []repository.BankTransaction
	txCursor     int

	// match view
	matchTxID  string
	candidates []service.MatchCandidate
	candCursor int

	status string
}

type Repos struct {
	Transactions *repository.TransactionRepo
	Accounts     *repository.AccountRepo
	Ledger       *repository.LedgerRepo
}

type Services struct {
	Importer *service.Importer
	Matcher  *service.Matcher
}

type appState string

const (
	viewTransactions appState = "transactions"
	viewImport       appState = "import"
	viewMatch        appState = "match"
)

func New(ctx context.Context, repos Repos, services Services) *App {
	return &App{
		ctx:      ctx,
		repos:    repos,
		services: services,
		state:    viewTransactions,
		sess:     services.Importer.NewSession(),
	}
}

func (a *App) Init() tea.Cmd {
	return a.loadAccounts()
}

func (a *App) loadAccounts() tea.Cmd {
	return func() tea.Msg {
		accts, err := a.repos.Accounts.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return accountsMsg(accts)
	}
}

func (a *App) loadTransactions() tea.Cmd {
	return func() tea.Msg {
		if len(a.accounts) == 0 {
			return transactionsMsg(nil)
		}
		txs, err := a.repos.Transactions.ListByAccount(a.ctx, a.accounts[a.acctCursor].ID)
		if err != nil {
			return errMsg{err}
		}
		return transactionsMsg(txs)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		switch a.state {
		case viewImport:
			return a.handleImportKey(m)
		case viewMatch:
			return a.handleMatchKey(m)
		default:
			return a.handleTransactionsKey(m)
		}
	case accountsMsg:
		a.accounts = []repository.BankAccount(m)
		if a.acctCursor >= len(a.accounts) {
			a.acctCursor = 0
		}
		return a, a.loadTransactions()
	case transactionsMsg:
		a.transactions = []repository.BankTransaction(m)
		if a.txCursor >= len(a.transactions) {
			a.txCursor = 0
		}
	case candidatesMsg:
		a.candidates = []service.MatchCandidate(m)
		a.candCursor = 0
	case stageMsg:
		a.syncWizard()
	case validatedMsg:
		a.partition = m.partition
		a.status = fmt.Sprintf("%d safe, %d duplicates", len(m.partition.Safe), len(m.partition.Duplicates))
	case committedMsg:
		a.report = m.report
		a.partition = nil
		a.status = ""
		return a, a.loadTransactions()
	case statusMsg:
		a.status = string(m)
	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

// syncWizard refreshes wizard-local state after the session changed stage.
func (a *App) syncWizard() {
	switch a.sess.Stage() {
	case service.StageMapping:
		a.mapping = a.sess.Suggested
		a.mapCursor = 0
	case service.StagePreview:
		a.prevCursor = 0
		a.partition = nil
	}
}

func (a *App) View() string {
	var body string
	switch a.state {
	case viewImport:
		body = a.renderImport()
	case viewMatch:
		body = a.renderMatch()
	default:
		body = a.renderTransactions()
	}
	return body
}

// commands

func (a *App) addFilesCmd(paths []string) tea.Cmd {
	return func() tea.Msg {
		var files []service.File
		for _, p := range paths {
			data, err := os.ReadFile(p)
			if err != nil {
				return errMsg{fmt.Errorf("read %s: %w", p, err)}
			}
			files = append(files, service.File{Name: filepath.Base(p), Data: data})
		}
		if err := a.services.Importer.AddFiles(a.sess, files); err != nil {
			return errMsg{err}
		}
		return stageMsg{}
	}
}

func (a *App) confirmMappingCmd(m parser.Mapping) tea.Cmd {
	return func() tea.Msg {
		if err := a.services.Importer.ConfirmMapping(a.sess, m); err != nil {
			return errMsg{err}
		}
		return stageMsg{}
	}
}

func (a *App) validateCmd() tea.Cmd {
	return func() tea.Msg {
		p, err := a.services.Importer.Validate(a.ctx, a.sess)
		if err != nil {
			return errMsg{err}
		}
		return validatedMsg{partition: p}
	}
}

func (a *App) commitCmd() tea.Cmd {
	return func() tea.Msg {
		rep, err := a.services.Importer.Commit(a.ctx, a.sess)
		if err != nil {
			return errMsg{err}
		}
		return committedMsg{report: rep}
	}
}

func (a *App) findMatchesCmd(txID string) tea.Cmd {
	return func() tea.Msg {
		cands, err := a.services.Matcher.FindPotentialMatches(a.ctx, txID)
		if err != nil {
			return errMsg{err}
		}
		return candidatesMsg(cands)
	}
}

func (a *App) confirmMatchCmd(txID, entryID string) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			if err := a.services.Matcher.ConfirmMatch(a.ctx, txID, entryID); err != nil {
				return errMsg{err}
			}
			return statusMsg("matched")
		},
		a.loadTransactions(),
	)
}

func (a *App) unmatchCmd(txID string) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			if err := a.services.Matcher.Unmatch(a.ctx, txID); err != nil {
				return errMsg{err}
			}
			return statusMsg("unmatched")
		},
		a.loadTransactions(),
	)
}

// key handling

func (a *App) handleTransactionsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "i":
		a.state = viewImport
		a.status = ""
	case "tab":
		if len(a.accounts) > 1 {
			a.acctCursor = (a.acctCursor + 1) % len(a.accounts)
			return a, a.loadTransactions()
		}
	case "up", "k":
		if a.txCursor > 0 {
			a.txCursor--
		}
	case "down", "j":
		if a.txCursor < len(a.transactions)-1 {
			a.txCursor++
		}
	case "m":
		if len(a.transactions) > 0 {
			tx := a.transactions[a.txCursor]
			if tx.Status != repository.StatusPending {
				a.status = "already matched"
				return a, nil
			}
			a.matchTxID = tx.ID
			a.state = viewMatch
			a.status = ""
			return a, a.findMatchesCmd(tx.ID)
		}
	case "u":
		if len(a.transactions) > 0 {
			tx := a.transactions[a.txCursor]
			if tx.Status != repository.StatusMatched {
				a.status = "not matched"
				return a, nil
			}
			return a, a.unmatchCmd(tx.ID)
		}
	}
	return a, nil
}

func (a *App) handleImportKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.String() == "ctrl+c" {
		return a, tea.Quit
	}
	switch a.sess.Stage() {
	case service.StageUpload:
		return a.handleUploadKey(m)
	case service.StageMapping:
		return a.handleMappingKey(m)
	case service.StagePreview:
		return a.handlePreviewKey(m)
	default:
		return a.handleResultKey(m)
	}
}

func (a *App) handleUploadKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.Type {
	case tea.KeyEsc:
		a.state = viewTransactions
		a.status = ""
	case tea.KeyEnter:
		input := strings.TrimSpace(a.pathInput)
		if input == "" {
			a.status = "enter one or more statement paths"
			return a, nil
		}
		a.status = "reading files..."
		return a, a.addFilesCmd(strings.Fields(input))
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		if len(a.pathInput) > 0 {
			a.pathInput = a.pathInput[:len(a.pathInput)-1]
		}
	case tea.KeySpace:
		a.pathInput += " "
	case tea.KeyRunes:
		a.pathInput += string(m.Runes)
	}
	return a, nil
}

// the four mappable fields, in cursor order
var mappingFields = []string{"date", "description", "amount", "reference"}

func (a *App) handleMappingKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.sess.Cancel()
		a.state = viewTransactions
		a.status = ""
	case "up", "k":
		if a.mapCursor > 0 {
			a.mapCursor--
		}
	case "down", "j":
		if a.mapCursor < len(mappingFields)-1 {
			a.mapCursor++
		}
	case "left", "h":
		a.adjustMapping(-1)
	case "right", "l":
		a.adjustMapping(1)
	case "enter":
		a.status = ""
		return a, a.confirmMappingCmd(a.mapping)
	}
	return a, nil
}

func (a *App) adjustMapping(delta int) {
	max := len(a.sess.MappingHeader) - 1
	field := mappingFields[a.mapCursor]
	get, set := a.mappingField(field)
	v := get() + delta
	// reference may be absent (-1); the required three stay in range
	low := 0
	if field == "reference" {
		low = -1
	}
	if v < low {
		v = low
	}
	if v > max {
		v = max
	}
	set(v)
}

func (a *App) mappingField(name string) (func() int, func(int)) {
	switch name {
	case "date":
		return func() int { return a.mapping.Date }, func(v int) { a.mapping.Date = v }
	case "description":
		return func() int { return a.mapping.Description }, func(v int) { a.mapping.Description = v }
	case "amount":
		return func() int { return a.mapping.Amount }, func(v int) { a.mapping.Amount = v }
	default:
		return func() int { return a.mapping.Reference }, func(v int) { a.mapping.Reference = v }
	}
}

func (a *App) handlePreviewKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.sess.Cancel()
		a.state = viewTransactions
		a.status = ""
	case "up", "k":
		if a.prevCursor > 0 {
			a.prevCursor--
		}
	case "down", "j":
		if a.prevCursor < len(a.sess.Transactions())-1 {
			a.prevCursor++
		}
	case " ":
		a.sess.ToggleRow(a.prevCursor)
		a.partition = nil
	case "a":
		a.sess.SetSelectAll(true)
		a.partition = nil
	case "n":
		a.sess.SetSelectAll(false)
		a.partition = nil
	case "tab":
		if len(a.accounts) > 0 {
			a.acctCursor = (a.acctCursor + 1) % len(a.accounts)
			a.sess.SetAccount(a.accounts[a.acctCursor].ID)
			a.partition = nil
		}
	case "v":
		a.ensureAccount()
		return a, a.validateCmd()
	case "enter":
		a.ensureAccount()
		a.status = "importing..."
		return a, a.commitCmd()
	}
	return a, nil
}

func (a *App) ensureAccount() {
	if a.sess.AccountID() == "" && len(a.accounts) > 0 {
		a.sess.SetAccount(a.accounts[a.acctCursor].ID)
	}
}

func (a *App) handleResultKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "enter", "i":
		a.sess.Reset()
		a.pathInput = ""
		a.report = nil
		a.status = ""
	case "esc", "t", "q":
		a.sess.Reset()
		a.pathInput = ""
		a.report = nil
		a.state = viewTransactions
		a.status = ""
	}
	return a, nil
}

func (a *App) handleMatchKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.state = viewTransactions
		a.candidates = nil
		a.status = ""
	case "up", "k":
		if a.candCursor > 0 {
			a.candCursor--
		}
	case "down", "j":
		if a.candCursor < len(a.candidates)-1 {
			a.candCursor++
		}
	case "y", "enter":
		if len(a.candidates) > 0 {
			entryID := a.candidates[a.candCursor].Entry.ID
			txID := a.matchTxID
			a.state = viewTransactions
			a.candidates = nil
			return a, a.confirmMatchCmd(txID, entryID)
		}
	}
	return a, nil
}

// messages
type accountsMsg []repository.BankAccount

type transactionsMsg []repository.BankTransaction

type candidatesMsg []service.MatchCandidate

type stageMsg struct{}

type validatedMsg struct{ partition *service.Partition }

type committedMsg struct{ report *service.Report }

type statusMsg string

type errMsg struct{ error }

// styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dupStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func (a *App) renderTransactions() string {
	acctName := "(no accounts)"
	if len(a.accounts) > 0 {
		acctName = a.accounts[a.acctCursor].Name
	}
	title := titleStyle.Render("Bank Transactions - " + acctName)
	out := title + "\n"
	if len(a.transactions) == 0 {
		out += "No transactions yet. Press [i] to import statements.\n"
	}
	for i, t := range a.transactions {
		marker := " "
		if i == a.txCursor {
			marker = "▶"
		}
		status := " "
		if t.Status == repository.StatusMatched {
			status = "✓"
		}
		ref := ""
		if t.Reference != "" {
			ref = "  #" + t.Reference
		}
		out += fmt.Sprintf("%s %s %s  %-40s %10s%s\n", marker, status, t.DateISO, t.Description, t.Amount.StringFixed(2), ref)
	}
	out += "[i] Import  [m] Match  [u] Unmatch  [tab] Account  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderImport() string {
	switch a.sess.Stage() {
	case service.StageUpload:
		return a.renderUpload()
	case service.StageMapping:
		return a.renderMapping()
	case service.StagePreview:
		return a.renderPreview()
	default:
		return a.renderResult()
	}
}

func (a *App) renderUpload() string {
	title := titleStyle.Render("Import Statements")
	body := fmt.Sprintf("Paths: %s\nType one or more statement paths (CSV, OFX, QFX or PDF) separated by spaces.\n[enter] Load  [esc] Back", a.pathInput)
	for _, fe := range a.sess.FileErrors() {
		body += "\n" + dupStyle.Render(fe.Error())
	}
	if a.status != "" {
		body += "\n" + a.status
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderMapping() string {
	title := titleStyle.Render("Map CSV Columns")
	out := title + "\n"
	out += "Columns: " + strings.Join(a.sess.MappingHeader, " | ") + "\n"
	for _, row := range a.sess.MappingSample {
		out += "         " + strings.Join(row, " | ") + "\n"
	}
	out += "\n"
	for i, field := range mappingFields {
		marker := " "
		if i == a.mapCursor {
			marker = "▶"
		}
		get, _ := a.mappingField(field)
		col := get()
		label := "(none)"
		if col >= 0 && col < len(a.sess.MappingHeader) {
			label = a.sess.MappingHeader[col]
		}
		out += fmt.Sprintf("%s %-12s -> %s\n", marker, field, label)
	}
	out += "[↑/↓] Field  [←/→] Column  [enter] Confirm  [esc] Cancel"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderPreview() string {
	acctName := "(none)"
	if a.sess.AccountID() != "" {
		for _, acct := range a.accounts {
			if acct.ID == a.sess.AccountID() {
				acctName = acct.Name
			}
		}
	} else if len(a.accounts) > 0 {
		acctName = a.accounts[a.acctCursor].Name
	}
	title := titleStyle.Render("Preview Import - " + acctName)
	out := title + "\n"

	dup := map[int]string{}
	if a.partition != nil {
		// index duplicates by position among selected rows for display
		for _, h := range a.partition.Duplicates {
			for i, tx := range a.sess.Transactions() {
				if tx == h.Incoming {
					dup[i] = h.Reason
				}
			}
		}
	}

	for i, tx := range a.sess.Transactions() {
		marker := " "
		if i == a.prevCursor {
			marker = "▶"
		}
		check := "[ ]"
		if a.sess.Selected(i) {
			check = "[x]"
		}
		line := fmt.Sprintf("%s %s %s  %-40s %10.2f", marker, check, tx.Date, tx.Description, float64(tx.AmountMinorUnits)/100)
		if reason, ok := dup[i]; ok {
			line = dupStyle.Render(line + "  dup: " + reason)
		}
		out += line + "\n"
	}
	for _, fe := range a.sess.FileErrors() {
		out += dupStyle.Render("file error: "+fe.Error()) + "\n"
	}
	out += "[space] Toggle  [a] All  [n] None  [tab] Account  [v] Check duplicates  [enter] Import  [esc] Cancel"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderResult() string {
	title := titleStyle.Render("Import Complete")
	out := title + "\n"
	if a.report != nil {
		out += fmt.Sprintf("Imported: %d\nSkipped (already stored): %d\nDuplicates held back: %d\nRows that failed parsing: %d\n",
			a.report.Imported, a.report.Skipped, a.report.Duplicates, a.report.RowErrors)
		for _, fe := range a.report.FileErrors {
			out += dupStyle.Render("file error: "+fe.Error()) + "\n"
		}
	}
	out += "[enter] Import more  [esc] Transactions"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderMatch() string {
	title := titleStyle.Render("Match Against Ledger")
	out := title + "\n"
	if len(a.candidates) == 0 {
		out += "No candidate ledger entries in the date window.\n[esc] Back"
		if a.status != "" {
			out += "\n" + a.status
		}
		return out
	}
	for i, c := range a.candidates {
		marker := " "
		if i == a.candCursor {
			marker = "▶"
		}
		out += fmt.Sprintf("%s %s  %-40s %10s  %.0f%% %s\n", marker, c.Entry.DateISO, c.Entry.Memo,
			c.Entry.Amount.StringFixed(2), c.Confidence*100, c.Reason)
	}
	out += "[y] Confirm  [esc] Back"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/jask/ledgerview/internal/api"
	"github.com/jask/ledgerview/internal/cache"
	"github.com/jask/ledgerview/internal/format"
	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/notify"
	"github.com/jask/ledgerview/internal/prefs"
	"github.com/jask/ledgerview/internal/service"
	"github.com/jask/ledgerview/internal/session"
	"github.com/jask/ledgerview/internal/validate"
)

// Deps are the components the terminal UI drives.
type Deps struct {
	Session      *session.Manager
	Accounts     *cache.Accounts
	Balances     *cache.Balance
	Transactions *cache.Transactions
	Ledger       *service.LedgerService
	Notify       *notify.Queue
	Logger       *slog.Logger
	PrefsPath    string
	DateFormat   string
	Mock         bool
}

// App ties together views. It also serves as the transport's router.
type App struct {
	ctx  context.Context
	deps Deps

	keys         *KeyRegistry
	state        appState
	modal        modalState
	form         *form
	modalForm    *form
	modalAccount string
	cursor       int
	width        int

	routeMu sync.Mutex
	route   string
	expired chan struct{}
}

type appState string

const (
	viewChecking     appState = "checking"
	viewLogin        appState = "login"
	viewRegister     appState = "register"
	viewDashboard    appState = "dashboard"
	viewAccount      appState = "account"
	viewTransactions appState = "transactions"
)

type modalState string

const (
	modalNone     modalState = ""
	modalDeposit  modalState = "deposit"
	modalWithdraw modalState = "withdraw"
	modalTransfer modalState = "transfer"
	modalCreate   modalState = "create"
	modalFilters  modalState = "filters"
)

const (
	routeRoot      = "/"
	routeRegister  = "/auth/register"
	routeDashboard = "/dashboard"
)

var _ api.Router = (*App)(nil)

func New(ctx context.Context, deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &App{
		ctx:     ctx,
		deps:    deps,
		keys:    NewKeyRegistry(DefaultKeyBindings()),
		state:   viewChecking,
		route:   routeRoot,
		expired: make(chan struct{}, 1),
	}
}

// Route reports the current location; safe from any goroutine.
func (a *App) Route() string {
	a.routeMu.Lock()
	defer a.routeMu.Unlock()
	return a.route
}

// RedirectToLogin is called by the transport after a purge. The view switch
// happens on the UI goroutine when expiredMsg arrives.
func (a *App) RedirectToLogin() {
	a.routeMu.Lock()
	a.route = api.LoginRoute
	a.routeMu.Unlock()
	select {
	case a.expired <- struct{}{}:
	default:
	}
}

func (a *App) setView(s appState, accountID string) {
	a.state = s
	r := routeRoot
	switch s {
	case viewLogin:
		r = api.LoginRoute
	case viewRegister:
		r = routeRegister
	case viewDashboard:
		r = routeDashboard
	case viewAccount:
		r = "/accounts/" + accountID
	case viewTransactions:
		r = "/accounts/" + accountID + "/transactions"
	}
	a.routeMu.Lock()
	a.route = r
	a.routeMu.Unlock()
}

// scope is the key scope of the current view.
func (a *App) scope() string {
	if a.modal != modalNone {
		return scopeModal
	}
	switch a.state {
	case viewLogin:
		return scopeLogin
	case viewRegister:
		return scopeRegister
	case viewAccount:
		return scopeAccount
	case viewTransactions:
		return scopeTransactions
	}
	return scopeDashboard
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.initSessionCmd(), a.waitNotify(), a.waitExpired())
}

func (a *App) initSessionCmd() tea.Cmd {
	return func() tea.Msg {
		return sessionReadyMsg{status: a.deps.Session.Init(a.ctx)}
	}
}

func (a *App) waitNotify() tea.Cmd {
	ch := a.deps.Notify.Changed()
	return func() tea.Msg {
		<-ch
		return notifyMsg{}
	}
}

func (a *App) waitExpired() tea.Cmd {
	return func() tea.Msg {
		<-a.expired
		return expiredMsg{}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
	case tea.KeyMsg:
		if m.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}
		if a.keys.IsAction(m, actDismiss, a.scope()) {
			a.deps.Notify.Clear()
			return a, nil
		}
		if a.modal != modalNone {
			return a, a.handleModalKey(m)
		}
		switch a.state {
		case viewLogin, viewRegister:
			return a, a.handleAuthKey(m)
		case viewDashboard:
			return a.handleDashboardKey(m)
		case viewAccount:
			return a.handleAccountKey(m)
		case viewTransactions:
			return a.handleTransactionsKey(m)
		}
		if m.String() == "q" {
			return a, tea.Quit
		}
	case sessionReadyMsg:
		if m.status == session.StatusAuthenticated {
			a.setView(viewDashboard, "")
			return a, a.loadAccountsCmd()
		}
		a.showLogin()
	case authDoneMsg:
		return a, a.authDone(m)
	case accountsMsg:
		if m.err != nil {
			a.deps.Notify.Error(ledger.Message(m.err, "Could not load accounts"))
		}
		a.clampCursor()
	case loadedMsg:
		if m.err != nil {
			a.deps.Notify.Error(ledger.Message(m.err, "Could not load "+m.what))
		}
	case mutationDoneMsg:
		if m.err != nil {
			a.deps.Notify.Error(ledger.Message(m.err, "The operation failed"))
			return a, nil
		}
		a.deps.Notify.Success(m.notice)
		if m.refreshErr != nil {
			a.deps.Notify.Warning("Saved, but the latest history could not be loaded: " + ledger.Message(m.refreshErr, "refresh failed"))
		}
		a.clampCursor()
	case loggedOutMsg:
		a.resetCaches()
		a.showLogin()
		a.deps.Notify.Info("You have been logged out")
	case expiredMsg:
		a.resetCaches()
		a.modal, a.modalForm = modalNone, nil
		a.showLogin()
		a.deps.Notify.Warning("Your session has expired. Please log in again.")
		return a, a.waitExpired()
	case notifyMsg:
		return a, a.waitNotify()
	case errMsg:
		a.deps.Logger.Warn("ui command failed", "err", m.error)
		a.deps.Notify.Error(ledger.Message(m.error, "Something went wrong"))
	}
	return a, nil
}

func (a *App) resetCaches() {
	a.deps.Accounts.Reset()
	a.deps.Balances.Reset()
	a.deps.Transactions.Reset()
	a.cursor = 0
}

func (a *App) showLogin() {
	a.form = newForm("Log in",
		field{label: "Email or user", hint: "demo accounts accept password \"password\""},
		field{label: "Password", secret: true},
	)
	a.setView(viewLogin, "")
}

func (a *App) showRegister() {
	a.form = newForm("Create your login",
		field{label: "Name"},
		field{label: "Email"},
		field{label: "Password", secret: true, hint: "8+ chars, upper, lower and a digit"},
	)
	a.setView(viewRegister, "")
}

// guardWait bounds how long a protected view waits for the session check.
// Views are only reachable after it settled, so the wait is normally zero.
const guardWait = 250 * time.Millisecond

// requireAuth sends the user to the login view unless the session is live.
func (a *App) requireAuth() bool {
	ctx, cancel := context.WithTimeout(a.ctx, guardWait)
	defer cancel()
	err := a.deps.Session.Guard(ctx)
	if err == nil {
		return true
	}
	a.deps.Logger.Debug("guard refused view", "err", err)
	a.showLogin()
	a.deps.Notify.Info(ledger.Message(err, "Please log in to continue"))
	return false
}

func (a *App) clampCursor() {
	n := len(a.deps.Accounts.List())
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a *App) selected() (ledger.Account, bool) {
	list := a.deps.Accounts.List()
	if a.cursor < 0 || a.cursor >= len(list) {
		return ledger.Account{}, false
	}
	return list[a.cursor], true
}

// auth

func (a *App) handleAuthKey(m tea.KeyMsg) tea.Cmd {
	switch a.keys.Action(m, a.scope()) {
	case actToggleAuth:
		if a.state == viewLogin {
			a.showRegister()
		} else {
			a.showLogin()
		}
		return nil
	case actBack:
		a.showLogin()
		return nil
	case actQuit:
		return tea.Quit
	}
	if !a.form.handleKey(m) {
		return nil
	}
	return a.submitAuth()
}

func (a *App) submitAuth() tea.Cmd {
	if a.state == viewRegister {
		reg := ledger.Registration{
			Username: strings.TrimSpace(a.form.value(0)),
			Email:    strings.TrimSpace(a.form.value(1)),
			Password: a.form.value(2),
		}
		if err := validate.Registration(reg); err != nil {
			a.deps.Notify.Error(ledger.Message(err, "Please check the form"))
			return nil
		}
		return func() tea.Msg {
			u, err := a.deps.Session.Register(a.ctx, reg)
			return authDoneMsg{user: u, err: err, register: true}
		}
	}
	creds := ledger.Credentials{Identifier: strings.TrimSpace(a.form.value(0)), Password: a.form.value(1)}
	return func() tea.Msg {
		u, err := a.deps.Session.Login(a.ctx, creds)
		return authDoneMsg{user: u, err: err}
	}
}

func (a *App) authDone(m authDoneMsg) tea.Cmd {
	if m.err != nil {
		a.deps.Notify.Error(ledger.Message(m.err, "Login failed"))
		if a.form != nil && !m.register {
			a.form.set(1, "")
		}
		return nil
	}
	if m.register {
		email := m.user.Email
		a.showLogin()
		a.form.set(0, email)
		a.form.cursor = 1
		a.deps.Notify.Success("Registration complete. Please log in.")
		return nil
	}
	a.form = nil
	a.cursor = 0
	a.setView(viewDashboard, "")
	a.deps.Notify.Success("Welcome, " + m.user.Name)
	return a.loadAccountsCmd()
}

// dashboard

func (a *App) handleDashboardKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !a.requireAuth() {
		return a, nil
	}
	n := len(a.deps.Accounts.List())
	switch a.keys.Action(m, scopeDashboard) {
	case actQuit:
		return a, tea.Quit
	case actUp:
		if a.cursor > 0 {
			a.cursor--
		}
	case actDown:
		if a.cursor < n-1 {
			a.cursor++
		}
	case actOpen:
		if acct, ok := a.selected(); ok {
			return a, a.openAccount(acct.ID)
		}
	case actTransactions:
		if acct, ok := a.selected(); ok {
			return a, a.openTransactions(acct.ID)
		}
	case actDeposit:
		a.openMutation(modalDeposit)
	case actWithdraw:
		a.openMutation(modalWithdraw)
	case actTransfer:
		a.openMutation(modalTransfer)
	case actCreate:
		a.openCreate()
	case actRefresh:
		return a, a.loadAccountsCmd()
	case actLogout:
		return a, a.logoutCmd()
	}
	return a, nil
}

func (a *App) openAccount(id string) tea.Cmd {
	a.setView(viewAccount, id)
	a.deps.Balances.SetScope(id)
	return tea.Batch(a.activateCmd(id), a.fetchBalanceCmd(id), a.fetchVersionsCmd(id))
}

func (a *App) openTransactions(id string) tea.Cmd {
	a.setView(viewTransactions, id)
	a.deps.Transactions.SetScope(id)
	return a.fetchTransactionsCmd(id)
}

// account detail

func (a *App) handleAccountKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !a.requireAuth() {
		return a, nil
	}
	id := a.deps.Balances.Scope()
	switch a.keys.Action(m, scopeAccount) {
	case actQuit:
		return a, tea.Quit
	case actBack:
		a.setView(viewDashboard, "")
	case actTransactions:
		return a, a.openTransactions(id)
	case actDeposit:
		a.openMutation(modalDeposit)
	case actWithdraw:
		a.openMutation(modalWithdraw)
	case actTransfer:
		a.openMutation(modalTransfer)
	case actRefresh:
		return a, tea.Batch(a.fetchBalanceCmd(id), a.fetchVersionsCmd(id))
	case actLogout:
		return a, a.logoutCmd()
	}
	return a, nil
}

// transactions

func (a *App) handleTransactionsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !a.requireAuth() {
		return a, nil
	}
	tx := a.deps.Transactions
	id := tx.Scope()
	switch a.keys.Action(m, scopeTransactions) {
	case actQuit:
		return a, tea.Quit
	case actBack:
		return a, a.openAccount(id)
	case actNextPage:
		if tx.NextPage() {
			return a, a.fetchTransactionsCmd(id)
		}
	case actPrevPage:
		if tx.PrevPage() {
			return a, a.fetchTransactionsCmd(id)
		}
	case actPageSize:
		if err := tx.SetPageSize(nextPageSize(tx.PageSize())); err != nil {
			a.deps.Notify.Error(ledger.Message(err, "Invalid page size"))
			return a, nil
		}
		return a, tea.Batch(a.fetchTransactionsCmd(id), a.savePrefsCmd())
	case actFilter:
		a.openFilters()
	case actClearFilter:
		tx.ClearFilters()
		return a, tea.Batch(a.fetchTransactionsCmd(id), a.savePrefsCmd())
	case actRefresh:
		return a, a.fetchTransactionsCmd(id)
	}
	return a, nil
}

func nextPageSize(cur int) int {
	for _, n := range ledger.PageSizeOptions {
		if n > cur {
			return n
		}
	}
	return ledger.PageSizeOptions[0]
}

// modals

func (a *App) openMutation(kind modalState) {
	target := a.deps.Balances.Scope()
	if a.state == viewDashboard || target == "" {
		acct, ok := a.selected()
		if !ok {
			a.deps.Notify.Info("Create an account first")
			return
		}
		target = acct.ID
	}
	a.modal, a.modalAccount = kind, target
	switch kind {
	case modalDeposit:
		a.modalForm = newForm("Deposit into "+target, field{label: "Amount"}, field{label: "Description", hint: "optional"})
	case modalWithdraw:
		a.modalForm = newForm("Withdraw from "+target, field{label: "Amount"}, field{label: "Description", hint: "optional"})
	case modalTransfer:
		a.modalForm = newForm("Transfer from "+target, field{label: "To account", hint: "id, id prefix or currency"}, field{label: "Amount"})
	}
}

func (a *App) openCreate() {
	a.modal = modalCreate
	a.modalForm = newForm("New account",
		field{label: "Currency", hint: "USD, EUR, GBP or JPY"},
		field{label: "Opening", hint: "optional, defaults to 0"},
	)
}

func (a *App) openFilters() {
	f := a.deps.Transactions.Filters()
	a.modal = modalFilters
	a.modalForm = newForm("Filter transactions",
		field{label: "Type", value: filterType(f.Type), hint: "deposit, withdrawal, transfer_in, transfer_out"},
		field{label: "From", value: filterDate(f.Start), hint: "YYYY-MM-DD"},
		field{label: "To", value: filterDate(f.End), hint: "YYYY-MM-DD"},
		field{label: "Actor"},
	)
	a.modalForm.set(3, f.Actor)
}

func (a *App) closeModal() {
	a.modal, a.modalForm, a.modalAccount = modalNone, nil, ""
}

func (a *App) handleModalKey(m tea.KeyMsg) tea.Cmd {
	if a.keys.IsAction(m, actBack, scopeModal) {
		a.closeModal()
		return nil
	}
	if !a.modalForm.handleKey(m) {
		return nil
	}
	cmd, err := a.submitModal()
	if err != nil {
		// keep the form open so the input can be corrected
		a.deps.Notify.Error(ledger.Message(err, "Please check the form"))
		return nil
	}
	a.closeModal()
	return cmd
}

func (a *App) submitModal() (tea.Cmd, error) {
	f := a.modalForm
	switch a.modal {
	case modalDeposit, modalWithdraw:
		amt, err := validate.ParseAmount(f.value(0))
		if err != nil {
			return nil, err
		}
		req := ledger.MutationRequest{AccountID: a.modalAccount, Amount: amt, Description: strings.TrimSpace(f.value(1))}
		if a.modal == modalDeposit {
			return a.depositCmd(req), nil
		}
		return a.withdrawCmd(req), nil
	case modalTransfer:
		to, err := a.deps.Accounts.Resolve(f.value(0))
		if err != nil {
			return nil, err
		}
		amt, err := validate.ParseAmount(f.value(1))
		if err != nil {
			return nil, err
		}
		return a.transferCmd(ledger.TransferRequest{FromAccountID: a.modalAccount, ToAccountID: to.ID, Amount: amt}), nil
	case modalCreate:
		cur := ledger.Currency(strings.ToUpper(strings.TrimSpace(f.value(0))))
		if err := validate.Currency(cur); err != nil {
			return nil, err
		}
		amt := decimal.Zero
		if initial := strings.TrimSpace(strings.ReplaceAll(f.value(1), ",", "")); initial != "" {
			d, err := decimal.NewFromString(initial)
			if err != nil {
				return nil, ledger.Validation("create account", "Please enter a valid opening balance")
			}
			amt = d
		}
		if err := validate.InitialBalance(amt); err != nil {
			return nil, err
		}
		return a.createCmd(cur, amt), nil
	case modalFilters:
		filters, err := parseFilters(f)
		if err != nil {
			return nil, err
		}
		a.deps.Transactions.SetFilters(filters)
		return tea.Batch(a.fetchTransactionsCmd(a.deps.Transactions.Scope()), a.savePrefsCmd()), nil
	}
	return nil, nil
}

// commands

func (a *App) loadAccountsCmd() tea.Cmd {
	return func() tea.Msg {
		_, err := a.deps.Accounts.FetchAccounts(a.ctx)
		return accountsMsg{err: err}
	}
}

func (a *App) activateCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.deps.Accounts.SetActive(a.ctx, id); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (a *App) fetchBalanceCmd(id string) tea.Cmd {
	return func() tea.Msg {
		_, err := a.deps.Balances.FetchBalance(a.ctx, id)
		return loadedMsg{what: "balance", err: err}
	}
}

func (a *App) fetchVersionsCmd(id string) tea.Cmd {
	return func() tea.Msg {
		_, err := a.deps.Balances.FetchVersions(a.ctx, id)
		return loadedMsg{what: "balance history", err: err}
	}
}

func (a *App) fetchTransactionsCmd(id string) tea.Cmd {
	return func() tea.Msg {
		_, err := a.deps.Transactions.FetchTransactions(a.ctx, id)
		return loadedMsg{what: "transactions", err: err}
	}
}

func (a *App) depositCmd(req ledger.MutationRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := a.deps.Ledger.Deposit(a.ctx, req)
		if err != nil {
			return mutationDoneMsg{err: err}
		}
		cur := a.currencyOf(req.AccountID)
		return mutationDoneMsg{
			notice:     fmt.Sprintf("Deposited %s. New balance %s", format.Money(req.Amount, cur), format.Money(res.NewBalance, cur)),
			refreshErr: res.RefreshErr,
		}
	}
}

func (a *App) withdrawCmd(req ledger.MutationRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := a.deps.Ledger.Withdraw(a.ctx, req)
		if err != nil {
			return mutationDoneMsg{err: err}
		}
		cur := a.currencyOf(req.AccountID)
		return mutationDoneMsg{
			notice:     fmt.Sprintf("Withdrew %s. New balance %s", format.Money(req.Amount, cur), format.Money(res.NewBalance, cur)),
			refreshErr: res.RefreshErr,
		}
	}
}

func (a *App) transferCmd(req ledger.TransferRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := a.deps.Ledger.Transfer(a.ctx, req)
		if err != nil {
			return mutationDoneMsg{err: err}
		}
		return mutationDoneMsg{
			notice:     fmt.Sprintf("Transferred %s to %s", format.Money(req.Amount, res.From.Currency), res.To.ID),
			refreshErr: res.RefreshErr,
		}
	}
}

func (a *App) createCmd(cur ledger.Currency, initial decimal.Decimal) tea.Cmd {
	return func() tea.Msg {
		acct, err := a.deps.Ledger.CreateAccount(a.ctx, cur, initial)
		if err != nil {
			return mutationDoneMsg{err: err}
		}
		return mutationDoneMsg{notice: fmt.Sprintf("Opened %s account %s", acct.Currency, acct.ID)}
	}
}

func (a *App) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		a.deps.Session.Logout(a.ctx)
		return loggedOutMsg{}
	}
}

func (a *App) savePrefsCmd() tea.Cmd {
	tx := a.deps.Transactions
	p := prefs.Prefs{PageSize: tx.PageSize(), Filters: prefs.FromFilters(tx.Filters())}
	path := a.deps.PrefsPath
	logger := a.deps.Logger
	return func() tea.Msg {
		if err := prefs.Save(path, p); err != nil {
			logger.Warn("save prefs", "err", err)
		}
		return nil
	}
}

func (a *App) currencyOf(id string) ledger.Currency {
	if acct, ok := a.deps.Accounts.Lookup(id); ok {
		return acct.Currency
	}
	return ledger.USD
}

// messages
type sessionReadyMsg struct{ status session.Status }

type authDoneMsg struct {
	user     ledger.User
	err      error
	register bool
}

type accountsMsg struct{ err error }

type loadedMsg struct {
	what string
	err  error
}

type mutationDoneMsg struct {
	notice     string
	refreshErr error
	err        error
}

type loggedOutMsg struct{}

type expiredMsg struct{}

type notifyMsg struct{}

type errMsg struct{ error }

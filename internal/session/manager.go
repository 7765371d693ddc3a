package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/validate"
)

// Status is the session lifecycle position.
type Status string

const (
	StatusUninitialized   Status = "uninitialized"
	StatusChecking        Status = "checking"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// Authenticator is the auth surface of the backend.
type Authenticator interface {
	Login(ctx context.Context, creds ledger.Credentials) (ledger.AuthResult, error)
	Register(ctx context.Context, reg ledger.Registration) (ledger.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (ledger.User, error)
}

// Manager drives the session state machine. Ready is closed exactly once,
// when the initial credential check has settled; guards wait on it instead of polling.
type Manager struct {
	state  *State
	auth   Authenticator
	logger *slog.Logger

	mu        sync.Mutex
	status    Status
	ready     chan struct{}
	readyOnce sync.Once
	initOnce  sync.Once
}

// NewManager returns a manager in the uninitialized state.
func NewManager(state *State, auth Authenticator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		state:  state,
		auth:   auth,
		logger: logger,
		status: StatusUninitialized,
		ready:  make(chan struct{}),
	}
}

// State returns the shared session context.
func (m *Manager) State() *State { return m.state }

// Status returns the current lifecycle position.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// Initialized reports whether the initial check has settled.
func (m *Manager) Initialized() bool {
	select {
	case <-m.ready:
		return true
	default:
		return false
	}
}

// Ready is closed once the initial check settles.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

func (m *Manager) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

// Init runs the start-up credential check once. Later calls return the
// current status without touching the network.
func (m *Manager) Init(ctx context.Context) Status {
	m.initOnce.Do(func() {
		defer m.markReady()
		if m.state.Token() == "" {
			m.setStatus(StatusUnauthenticated)
			return
		}
		m.setStatus(StatusChecking)
		if _, err := m.CurrentUser(ctx); err != nil {
			m.logger.Info("stored credential rejected", "err", err)
		}
	})
	return m.Status()
}

// Wait blocks until the initial check settles or ctx is done.
func (m *Manager) Wait(ctx context.Context) (Status, error) {
	select {
	case <-m.ready:
		return m.Status(), nil
	case <-ctx.Done():
		return m.Status(), ctx.Err()
	}
}

// Guard gates protected views: it waits for readiness and fails with an auth
// error unless the session is authenticated.
func (m *Manager) Guard(ctx context.Context) error {
	st, err := m.Wait(ctx)
	if err != nil {
		return &ledger.Error{Kind: ledger.KindAuth, Op: "guard", Message: "session check did not finish", Err: err}
	}
	if st != StatusAuthenticated || !m.state.Authenticated() {
		return &ledger.Error{Kind: ledger.KindAuth, Op: "guard", Message: "Please log in to continue"}
	}
	return nil
}

// Authenticated reports whether both a credential and a profile are present.
func (m *Manager) Authenticated() bool { return m.state.Authenticated() }

// Login exchanges credentials for a token, then resolves the profile. The
// session only becomes authenticated once the profile fetch succeeds.
func (m *Manager) Login(ctx context.Context, creds ledger.Credentials) (ledger.User, error) {
	creds.Identifier = strings.TrimSpace(creds.Identifier)
	if creds.Identifier == "" || creds.Password == "" {
		return ledger.User{}, ledger.Validation("login", "Email and password are required")
	}
	res, err := m.auth.Login(ctx, creds)
	if err != nil {
		return ledger.User{}, asAuth("login", err)
	}
	if res.Token == "" {
		return ledger.User{}, ledger.Errorf(ledger.KindAuth, "login", "server returned no token")
	}
	if err := m.state.SetToken(ctx, res.Token); err != nil {
		return ledger.User{}, err
	}
	u, err := m.CurrentUser(ctx)
	if err != nil {
		return ledger.User{}, err
	}
	m.markReady()
	return u, nil
}

// Register validates and submits a sign-up. It does not log in.
func (m *Manager) Register(ctx context.Context, reg ledger.Registration) (ledger.User, error) {
	if err := validate.Registration(reg); err != nil {
		return ledger.User{}, err
	}
	return m.auth.Register(ctx, reg)
}

// CurrentUser re-validates the credential by fetching the profile. A
// credential that cannot be resolved to a user is discarded.
func (m *Manager) CurrentUser(ctx context.Context) (ledger.User, error) {
	if m.state.Token() == "" {
		m.setStatus(StatusUnauthenticated)
		return ledger.User{}, ledger.Errorf(ledger.KindAuth, "current user", "Not authenticated")
	}
	u, err := m.auth.CurrentUser(ctx)
	if err != nil {
		m.state.Purge(ctx)
		m.setStatus(StatusUnauthenticated)
		return ledger.User{}, asAuth("current user", err)
	}
	m.state.setUser(&u)
	m.setStatus(StatusAuthenticated)
	return u, nil
}

// Logout clears the credential and profile. It is idempotent; the backend
// call is best effort.
func (m *Manager) Logout(ctx context.Context) {
	if m.state.Token() != "" {
		if err := m.auth.Logout(ctx); err != nil {
			m.logger.Warn("logout request failed", "err", err)
		}
	}
	if err := m.state.clearCredential(ctx); err != nil {
		m.logger.Warn("logout", "err", err)
	}
	m.setStatus(StatusUnauthenticated)
	m.markReady()
}

// asAuth keeps classified errors and reclassifies the rest as auth failures.
func asAuth(op string, err error) error {
	switch ledger.KindOf(err) {
	case ledger.KindUnknown, ledger.KindNotFound:
		return &ledger.Error{Kind: ledger.KindAuth, Op: op, Message: ledger.Message(err, "Authentication failed"), Err: err}
	}
	return err
}

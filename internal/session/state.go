// Package session owns the persisted credential, the active-account pointer
// and the authenticated profile. State is the injectable session context; it
// replaces ambient globals and is shared by the transport, caches and UI.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jask/ledgerview/internal/ledger"
)

// Persisted keys.
const (
	KeyAccessToken   = "access_token"
	KeyActiveAccount = "active_account_id"
)

// Store is a persisted key/value store that survives restarts.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// State is the process-wide session context.
type State struct {
	mu            sync.RWMutex
	store         Store
	logger        *slog.Logger
	token         string
	activeAccount string
	user          *ledger.User
}

// Open loads the persisted token and active-account pointer from store.
func Open(ctx context.Context, store Store, logger *slog.Logger) (*State, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &State{store: store, logger: logger}
	tok, _, err := store.Get(ctx, KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	acct, _, err := store.Get(ctx, KeyActiveAccount)
	if err != nil {
		return nil, fmt.Errorf("load active account: %w", err)
	}
	s.token, s.activeAccount = tok, acct
	return s, nil
}

// Token returns the current credential, empty when there is none.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken stores and persists tok.
func (s *State) SetToken(ctx context.Context, tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(ctx, KeyAccessToken, tok); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	s.token = tok
	return nil
}

// User returns a copy of the profile, or nil.
func (s *State) User() *ledger.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *State) setUser(u *ledger.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// Authenticated holds iff both a credential and a profile are present.
func (s *State) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// ActiveAccount returns the persisted active-account pointer.
func (s *State) ActiveAccount() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeAccount
}

// SetActiveAccount persists id as the active account.
func (s *State) SetActiveAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(ctx, KeyActiveAccount, id); err != nil {
		return fmt.Errorf("persist active account: %w", err)
	}
	s.activeAccount = id
	return nil
}

// ClearActiveAccount removes the active-account pointer.
func (s *State) ClearActiveAccount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, KeyActiveAccount); err != nil {
		return fmt.Errorf("clear active account: %w", err)
	}
	s.activeAccount = ""
	return nil
}

// Purge drops the credential, the active-account pointer and the profile.
// It reports whether a credential was present, so concurrent unauthorized
// responses purge exactly once.
func (s *State) Purge(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" && s.activeAccount == "" && s.user == nil {
		return false
	}
	had := s.token != ""
	for _, k := range []string{KeyAccessToken, KeyActiveAccount} {
		if err := s.store.Delete(ctx, k); err != nil {
			s.logger.Warn("session purge", "key", k, "err", err)
		}
	}
	s.token, s.activeAccount, s.user = "", "", nil
	return had
}

// clearCredential drops the token and profile but keeps the active-account pointer.
func (s *State) clearCredential(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", nil
	if err := s.store.Delete(ctx, KeyAccessToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

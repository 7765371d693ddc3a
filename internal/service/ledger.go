package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerview/internal/cache"
	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/validate"
)

// Mutator is the write side of the backend.
type Mutator interface {
	CreateAccount(ctx context.Context, currency ledger.Currency, initial decimal.Decimal) (ledger.Account, error)
	Deposit(ctx context.Context, req ledger.MutationRequest) (ledger.MutationResult, error)
	Withdraw(ctx context.Context, req ledger.MutationRequest) (ledger.MutationResult, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.TransferResult, error)
}

// LedgerService orchestrates mutations: validate, dispatch, then refresh the
// caches from server truth. It never computes a balance itself.
type LedgerService struct {
	Backend      Mutator
	Accounts     *cache.Accounts
	Balances     *cache.Balance
	Transactions *cache.Transactions
	Logger       *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	busy     int
}

func (s *LedgerService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Busy reports whether a mutation is in flight.
func (s *LedgerService) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy > 0
}

// acquire claims every account in ids or none of them.
func (s *LedgerService) acquire(op string, ids ...string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		s.inflight = map[string]struct{}{}
	}
	for _, id := range ids {
		if _, held := s.inflight[id]; held {
			return nil, ledger.Validation(op, "Another operation on this account is still in progress")
		}
	}
	for _, id := range ids {
		s.inflight[id] = struct{}{}
	}
	s.busy++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, id := range ids {
			delete(s.inflight, id)
		}
		s.busy--
	}, nil
}

// cachedBalance returns the freshest balance the client holds for id.
func (s *LedgerService) cachedBalance(id string) (decimal.Decimal, bool) {
	if s.Balances != nil && s.Balances.Scope() == id {
		if b, ok := s.Balances.Balance(); ok {
			return b, true
		}
	}
	if s.Accounts != nil {
		if a, ok := s.Accounts.Lookup(id); ok {
			return a.Balance, true
		}
	}
	return decimal.Zero, false
}

func (s *LedgerService) defaultActor(actor string) string {
	if actor != "" || s.Accounts == nil || s.Accounts.Session == nil {
		return actor
	}
	if u := s.Accounts.Session.User(); u != nil {
		return u.Name
	}
	return ""
}

// Deposit credits an account.
func (s *LedgerService) Deposit(ctx context.Context, req ledger.MutationRequest) (ledger.MutationResult, error) {
	if req.AccountID == "" {
		return ledger.MutationResult{}, ledger.Validation("deposit", "Please choose an account")
	}
	if err := validate.Amount(req.Amount); err != nil {
		return ledger.MutationResult{}, err
	}
	return s.mutate(ctx, "deposit", req, s.Backend.Deposit)
}

// Withdraw debits an account. Amounts above the cached balance are rejected
// before dispatch; the server's own rejection is returned as-is.
func (s *LedgerService) Withdraw(ctx context.Context, req ledger.MutationRequest) (ledger.MutationResult, error) {
	if req.AccountID == "" {
		return ledger.MutationResult{}, ledger.Validation("withdraw", "Please choose an account")
	}
	if err := validate.Amount(req.Amount); err != nil {
		return ledger.MutationResult{}, err
	}
	if bal, ok := s.cachedBalance(req.AccountID); ok {
		if err := validate.Withdrawal(req.Amount, bal); err != nil {
			return ledger.MutationResult{}, err
		}
	}
	return s.mutate(ctx, "withdraw", req, s.Backend.Withdraw)
}

type mutateFunc func(context.Context, ledger.MutationRequest) (ledger.MutationResult, error)

func (s *LedgerService) mutate(ctx context.Context, op string, req ledger.MutationRequest, call mutateFunc) (ledger.MutationResult, error) {
	release, err := s.acquire(op, req.AccountID)
	if err != nil {
		return ledger.MutationResult{}, err
	}
	defer release()

	req.Actor = s.defaultActor(req.Actor)
	res, err := call(ctx, req)
	if err != nil {
		s.logger().Warn(op+" rejected", "account", req.AccountID, "err", err)
		return ledger.MutationResult{}, err
	}
	s.logger().Info(op+" confirmed", "account", req.AccountID, "balance", res.NewBalance.String())

	var refresh []error
	if res.Account != nil {
		s.Accounts.Adopt(*res.Account)
	} else if _, err := s.Accounts.FetchAccount(ctx, req.AccountID); err != nil {
		refresh = append(refresh, err)
	}
	s.Balances.Adopt(req.AccountID, res.NewBalance)
	refresh = append(refresh, s.refresh(ctx, req.AccountID)...)
	res.RefreshErr = s.joinRefresh(op, refresh)
	return res, nil
}

// refresh re-fetches the version history and, when in scope, the transaction
// page of accountID. Versions are refetched unless the balance cache holds
// another account.
func (s *LedgerService) refresh(ctx context.Context, accountID string) []error {
	var errs []error
	if scope := s.Balances.Scope(); scope == "" || scope == accountID {
		if _, err := s.Balances.FetchVersions(ctx, accountID); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Transactions != nil && s.Transactions.Scope() == accountID {
		if _, err := s.Transactions.FetchTransactions(ctx, accountID); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *LedgerService) joinRefresh(op string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	err := errors.Join(errs...)
	s.logger().Warn(op+" confirmed but refresh failed", "err", err)
	return err
}

// Transfer moves funds between two accounts.
func (s *LedgerService) Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.TransferResult, error) {
	if req.FromAccountID == "" || req.ToAccountID == "" {
		return ledger.TransferResult{}, ledger.Validation("transfer", "Please choose both accounts")
	}
	if req.FromAccountID == req.ToAccountID {
		return ledger.TransferResult{}, ledger.Validation("transfer", "Cannot transfer to the same account")
	}
	if err := validate.Amount(req.Amount); err != nil {
		return ledger.TransferResult{}, err
	}
	if bal, ok := s.cachedBalance(req.FromAccountID); ok {
		if err := validate.Withdrawal(req.Amount, bal); err != nil {
			return ledger.TransferResult{}, err
		}
	}

	ids := []string{req.FromAccountID, req.ToAccountID}
	sort.Strings(ids)
	release, err := s.acquire("transfer", ids...)
	if err != nil {
		return ledger.TransferResult{}, err
	}
	defer release()

	res, err := s.Backend.Transfer(ctx, req)
	if err != nil {
		s.logger().Warn("transfer rejected", "from", req.FromAccountID, "to", req.ToAccountID, "err", err)
		return ledger.TransferResult{}, err
	}
	s.logger().Info("transfer confirmed", "from", res.From.ID, "to", res.To.ID)

	s.Accounts.Adopt(res.From, res.To)
	s.Balances.Adopt(res.From.ID, res.From.Balance)
	s.Balances.Adopt(res.To.ID, res.To.Balance)

	refreshed := res.From.ID
	if scope := s.Balances.Scope(); scope == res.To.ID {
		refreshed = scope
	}
	refresh := s.refresh(ctx, refreshed)
	// the transaction page may show the side the balance cache does not hold
	if s.Transactions != nil {
		if scope := s.Transactions.Scope(); scope != refreshed && (scope == res.From.ID || scope == res.To.ID) {
			if _, err := s.Transactions.FetchTransactions(ctx, scope); err != nil {
				refresh = append(refresh, err)
			}
		}
	}
	res.RefreshErr = s.joinRefresh("transfer", refresh)
	return res, nil
}

// CreateAccount opens an account and adds it to the read cache. The first
// account becomes active.
func (s *LedgerService) CreateAccount(ctx context.Context, currency ledger.Currency, initial decimal.Decimal) (ledger.Account, error) {
	if err := validate.Currency(currency); err != nil {
		return ledger.Account{}, err
	}
	if err := validate.InitialBalance(initial); err != nil {
		return ledger.Account{}, err
	}
	s.mu.Lock()
	s.busy++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy--
		s.mu.Unlock()
	}()

	a, err := s.Backend.CreateAccount(ctx, currency, initial)
	if err != nil {
		return ledger.Account{}, err
	}
	s.Accounts.Adopt(a)
	if _, ok := s.Accounts.Active(); !ok && s.Accounts.Session != nil {
		if err := s.Accounts.SetActive(ctx, a.ID); err != nil {
			s.logger().Warn("set active account", "err", err)
		}
	}
	return a, nil
}

package cache

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerview/internal/ledger"
)

// VersionSource is the backend surface used by Balance.
type VersionSource interface {
	Account(ctx context.Context, id string) (ledger.Account, error)
	Versions(ctx context.Context, accountID string) ([]ledger.BalanceVersion, error)
	Version(ctx context.Context, versionID string) (ledger.BalanceVersion, error)
}

// Balance holds the current balance and version history of one account.
// Switching to another account discards the previous account's data and
// supersedes its requests in flight.
type Balance struct {
	Source VersionSource

	mu         sync.Mutex
	accountID  string
	balance    decimal.Decimal
	hasBalance bool
	versions   []ledger.BalanceVersion
	bal        tracker
	ver        tracker
}

// NewBalance returns an unscoped cache.
func NewBalance(src VersionSource) *Balance {
	return &Balance{Source: src}
}

// Scope returns the account the cache currently holds.
func (c *Balance) Scope() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// SetScope switches to accountID, clearing data from any other account.
func (c *Balance) SetScope(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopeLocked(accountID)
}

func (c *Balance) scopeLocked(accountID string) {
	if c.accountID == accountID {
		return
	}
	c.accountID = accountID
	c.balance, c.hasBalance = decimal.Zero, false
	c.versions = nil
	c.bal.invalidate()
	c.ver.invalidate()
}

// FetchBalance loads the account and caches its balance.
func (c *Balance) FetchBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	c.mu.Lock()
	c.scopeLocked(accountID)
	gen := c.bal.begin()
	c.mu.Unlock()

	a, err := c.Source.Account(ctx, accountID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.bal.finish(gen, err) || err != nil {
		return a.Balance, err
	}
	c.balance, c.hasBalance = a.Balance, true
	return a.Balance, nil
}

// FetchVersions loads the version history in server order.
func (c *Balance) FetchVersions(ctx context.Context, accountID string) ([]ledger.BalanceVersion, error) {
	c.mu.Lock()
	c.scopeLocked(accountID)
	gen := c.ver.begin()
	c.mu.Unlock()

	list, err := c.Source.Versions(ctx, accountID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ver.finish(gen, err) || err != nil {
		return list, err
	}
	c.versions = append([]ledger.BalanceVersion(nil), list...)
	return list, nil
}

// VersionByID answers from the cached history first and asks the server
// only for versions it does not hold.
func (c *Balance) VersionByID(ctx context.Context, versionID string) (ledger.BalanceVersion, error) {
	c.mu.Lock()
	for _, v := range c.versions {
		if v.ID == versionID {
			c.mu.Unlock()
			return v, nil
		}
	}
	c.mu.Unlock()
	return c.Source.Version(ctx, versionID)
}

// CurrentVersion returns the cached version flagged current.
func (c *Balance) CurrentVersion() (ledger.BalanceVersion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.versions {
		if v.IsCurrent {
			return v, true
		}
	}
	return ledger.BalanceVersion{}, false
}

// Adopt records a server-confirmed balance for accountID. An empty cache
// takes accountID as its scope; a cache holding another account ignores it.
// Requests for the balance in flight are superseded, since they were issued
// before the confirmation.
func (c *Balance) Adopt(accountID string, balance decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accountID == "" {
		c.scopeLocked(accountID)
	}
	if c.accountID != accountID {
		return
	}
	c.bal.invalidate()
	c.balance, c.hasBalance = balance, true
}

// Balance returns the cached balance, if loaded.
func (c *Balance) Balance() (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance, c.hasBalance
}

// Versions returns a copy of the cached history.
func (c *Balance) Versions() []ledger.BalanceVersion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ledger.BalanceVersion(nil), c.versions...)
}

// Loading reports whether a balance or history fetch is in flight.
func (c *Balance) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bal.loading() || c.ver.loading()
}

// Err returns the last error of this scope.
func (c *Balance) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ver.err != "" {
		return c.ver.err
	}
	return c.bal.err
}

// Reset drops the scope entirely.
func (c *Balance) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopeLocked("")
	c.bal.invalidate()
	c.ver.invalidate()
}

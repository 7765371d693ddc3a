package cache

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/session"
)

// AccountSource is the read side of the backend used by Accounts.
type AccountSource interface {
	Accounts(ctx context.Context) ([]ledger.Account, error)
	Account(ctx context.Context, id string) (ledger.Account, error)
}

// Accounts is the ledger read cache: the user's accounts plus the persisted
// active-account pointer held in the session state.
type Accounts struct {
	Source  AccountSource
	Session *session.State

	mu       sync.Mutex
	accounts []ledger.Account
	list     tracker
	one      tracker
}

// NewAccounts returns an empty cache.
func NewAccounts(src AccountSource, state *session.State) *Accounts {
	return &Accounts{Source: src, Session: state}
}

// FetchAccounts replaces the cached list with the server's. When the active
// pointer is unset or names an account no longer listed, the first account
// becomes active. A failure leaves the cached list untouched.
func (c *Accounts) FetchAccounts(ctx context.Context) ([]ledger.Account, error) {
	c.mu.Lock()
	gen := c.list.begin()
	c.mu.Unlock()

	list, err := c.Source.Accounts(ctx)

	c.mu.Lock()
	if !c.list.finish(gen, err) {
		c.mu.Unlock()
		return list, err
	}
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.accounts = append([]ledger.Account(nil), list...)
	c.mu.Unlock()

	if err := c.defaultActive(ctx, list); err != nil {
		return list, err
	}
	return list, nil
}

func (c *Accounts) defaultActive(ctx context.Context, list []ledger.Account) error {
	if c.Session == nil {
		return nil
	}
	active := c.Session.ActiveAccount()
	for _, a := range list {
		if a.ID == active {
			return nil
		}
	}
	if len(list) == 0 {
		if active == "" {
			return nil
		}
		return c.Session.ClearActiveAccount(ctx)
	}
	return c.Session.SetActiveAccount(ctx, list[0].ID)
}

// FetchAccount loads one account and upserts it into the list.
func (c *Accounts) FetchAccount(ctx context.Context, id string) (ledger.Account, error) {
	c.mu.Lock()
	gen := c.one.begin()
	c.mu.Unlock()

	a, err := c.Source.Account(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.one.finish(gen, err) || err != nil {
		return a, err
	}
	c.upsert(a)
	return a, nil
}

// Adopt upserts server-returned accounts, replacing whole entries by id.
func (c *Accounts) Adopt(accts ...ledger.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range accts {
		c.upsert(a)
	}
}

func (c *Accounts) upsert(a ledger.Account) {
	for i := range c.accounts {
		if c.accounts[i].ID == a.ID {
			c.accounts[i] = a
			return
		}
	}
	c.accounts = append(c.accounts, a)
}

// List returns a copy of the cached accounts.
func (c *Accounts) List() []ledger.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ledger.Account(nil), c.accounts...)
}

// Lookup returns the cached account with id.
func (c *Accounts) Lookup(id string) (ledger.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return ledger.Account{}, false
}

// Active returns the cached account named by the active pointer.
func (c *Accounts) Active() (ledger.Account, bool) {
	if c.Session == nil {
		return ledger.Account{}, false
	}
	return c.Lookup(c.Session.ActiveAccount())
}

// SetActive persists id as the active account.
func (c *Accounts) SetActive(ctx context.Context, id string) error {
	return c.Session.SetActiveAccount(ctx, id)
}

// ClearActive removes the active pointer.
func (c *Accounts) ClearActive(ctx context.Context) error {
	return c.Session.ClearActiveAccount(ctx)
}

// Loading reports whether any account fetch is in flight.
func (c *Accounts) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.loading() || c.one.loading()
}

// Err returns the last error of this scope, empty after a success.
func (c *Accounts) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.list.err != "" {
		return c.list.err
	}
	return c.one.err
}

// Reset drops everything, used on logout.
func (c *Accounts) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts = nil
	c.list.invalidate()
	c.one.invalidate()
}

// maxSuggestDistance bounds "did you mean" suggestions.
const maxSuggestDistance = 3

// Resolve finds a cached account from a typed reference: an exact id, a
// unique id prefix, or a currency code held by exactly one account. Unknown
// references fail with a NotFound error that suggests the closest ids.
func (c *Accounts) Resolve(ref string) (ledger.Account, error) {
	ref = strings.TrimSpace(ref)
	list := c.List()
	if ref == "" {
		return ledger.Account{}, ledger.Validation("resolve account", "Please choose an account")
	}
	var prefix, byCurrency []ledger.Account
	for _, a := range list {
		if strings.EqualFold(a.ID, ref) {
			return a, nil
		}
		if strings.HasPrefix(strings.ToLower(a.ID), strings.ToLower(ref)) {
			prefix = append(prefix, a)
		}
		if strings.EqualFold(string(a.Currency), ref) {
			byCurrency = append(byCurrency, a)
		}
	}
	switch {
	case len(prefix) == 1:
		return prefix[0], nil
	case len(byCurrency) == 1:
		return byCurrency[0], nil
	}
	msg := "Account " + ref + " not found"
	if s := c.Suggest(ref); len(s) > 0 {
		msg += ". Did you mean " + strings.Join(s, " or ") + "?"
	}
	return ledger.Account{}, ledger.Errorf(ledger.KindNotFound, "resolve account", "%s", msg)
}

// Suggest returns up to two cached ids closest to ref by edit distance.
func (c *Accounts) Suggest(ref string) []string {
	type cand struct {
		id   string
		dist int
	}
	var cands []cand
	for _, a := range c.List() {
		d := levenshtein.ComputeDistance(strings.ToLower(ref), strings.ToLower(a.ID))
		if d <= maxSuggestDistance {
			cands = append(cands, cand{a.ID, d})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	out := make([]string, 0, 2)
	for i := 0; i < len(cands) && i < 2; i++ {
		out = append(out, cands[i].id)
	}
	return out
}

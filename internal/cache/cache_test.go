package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/session"
)

type fakeSource struct {
	mu       sync.Mutex
	accounts []ledger.Account
	versions map[string][]ledger.BalanceVersion
	txs      []ledger.Transaction
	fail     error
	calls    atomic.Int32

	// gate, when set, is consulted before answering Transactions.
	gate func(q ledger.TransactionQuery)
}

func (f *fakeSource) Accounts(context.Context) ([]ledger.Account, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	return append([]ledger.Account(nil), f.accounts...), nil
}

func (f *fakeSource) Account(_ context.Context, id string) (ledger.Account, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return ledger.Account{}, f.fail
	}
	for _, a := range f.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return ledger.Account{}, ledger.Errorf(ledger.KindNotFound, "account", "Account not found")
}

func (f *fakeSource) Versions(_ context.Context, id string) ([]ledger.BalanceVersion, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	return append([]ledger.BalanceVersion(nil), f.versions[id]...), nil
}

func (f *fakeSource) Version(_ context.Context, id string) (ledger.BalanceVersion, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, list := range f.versions {
		for _, v := range list {
			if v.ID == id {
				return v, nil
			}
		}
	}
	return ledger.BalanceVersion{}, ledger.Errorf(ledger.KindNotFound, "version", "Version not found")
}

func (f *fakeSource) Transactions(_ context.Context, id string, q ledger.TransactionQuery) (ledger.TransactionPage, error) {
	f.calls.Add(1)
	if f.gate != nil {
		f.gate(q)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return ledger.TransactionPage{}, f.fail
	}
	var all []ledger.Transaction
	for _, tx := range f.txs {
		if tx.AccountID == id && q.Filters.Match(tx) {
			all = append(all, tx)
		}
	}
	start := (q.Page - 1) * q.PageSize
	end := start + q.PageSize
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	return ledger.TransactionPage{Items: all[start:end], Total: len(all), Page: q.Page, PageSize: q.PageSize}, nil
}

func acct(id string, bal int64) ledger.Account {
	return ledger.Account{ID: id, OwnerID: "user-1", Currency: ledger.USD, Balance: decimal.NewFromInt(bal), Active: true}
}

func newState(t *testing.T, seed map[string]string) *session.State {
	t.Helper()
	st, err := session.Open(context.Background(), session.NewMemStore(seed), nil)
	require.NoError(t, err)
	return st
}

func TestFetchAccountsIsIdempotentAndDefaultsActive(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	src := &fakeSource{accounts: []ledger.Account{acct("acc-1", 100), acct("acc-2", 50)}}
	c := NewAccounts(src, newState(t, map[string]string{session.KeyActiveAccount: "acc-gone"}))

	first, err := c.FetchAccounts(ctx)
	require.NoError(t, err)
	cached := c.List()
	second, err := c.FetchAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, cached, c.List())

	active, ok := c.Active()
	require.True(t, ok)
	require.Equal(t, "acc-1", active.ID)

	require.NoError(t, c.SetActive(ctx, "acc-2"))
	_, err = c.FetchAccounts(ctx)
	require.NoError(t, err)
	active, _ = c.Active()
	require.Equal(t, "acc-2", active.ID)
}

func TestFetchAccountsFailureKeepsStaleList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := &fakeSource{accounts: []ledger.Account{acct("acc-1", 100)}}
	c := NewAccounts(src, newState(t, nil))

	_, err := c.FetchAccounts(ctx)
	require.NoError(t, err)

	src.fail = ledger.Errorf(ledger.KindTransport, "accounts", "Network error")
	_, err = c.FetchAccounts(ctx)
	require.ErrorIs(t, err, ledger.ErrTransport)
	require.Len(t, c.List(), 1)
	require.Equal(t, "Network error", c.Err())
	require.False(t, c.Loading())

	src.fail = nil
	_, err = c.FetchAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, c.Err())
}

func TestFetchAccountUpserts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := &fakeSource{accounts: []ledger.Account{acct("acc-1", 100)}}
	c := NewAccounts(src, newState(t, nil))
	_, err := c.FetchAccounts(ctx)
	require.NoError(t, err)

	src.accounts = []ledger.Account{acct("acc-1", 175), acct("acc-9", 1)}
	got, err := c.FetchAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, "175", got.Balance.String())
	_, err = c.FetchAccount(ctx, "acc-9")
	require.NoError(t, err)

	list := c.List()
	require.Len(t, list, 2)
	require.Equal(t, "acc-1", list[0].ID)
	require.Equal(t, "175", list[0].Balance.String())
}

func TestResolveSuggestsClosestAccount(t *testing.T) {
	t.Parallel()
	c := NewAccounts(&fakeSource{}, newState(t, nil))
	eur := acct("acc-2", 10)
	eur.Currency = ledger.EUR
	c.Adopt(acct("acc-1", 1), eur, acct("savings-7", 3))

	got, err := c.Resolve("ACC-1")
	require.NoError(t, err)
	require.Equal(t, "acc-1", got.ID)

	got, err = c.Resolve("sav")
	require.NoError(t, err)
	require.Equal(t, "savings-7", got.ID)

	got, err = c.Resolve("eur")
	require.NoError(t, err)
	require.Equal(t, "acc-2", got.ID)

	_, err = c.Resolve("acc-3")
	require.ErrorIs(t, err, ledger.ErrNotFound)
	require.Contains(t, err.Error(), "Did you mean acc-1 or acc-2?")
}

func TestBalanceScopeSwitchDiscardsData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := &fakeSource{
		accounts: []ledger.Account{acct("acc-1", 100), acct("acc-2", 7)},
		versions: map[string][]ledger.BalanceVersion{
			"acc-1": {{ID: "ver-2", AccountID: "acc-1", Version: 2, IsCurrent: true}, {ID: "ver-1", AccountID: "acc-1", Version: 1}},
		},
	}
	c := NewBalance(src)
	_, err := c.FetchBalance(ctx, "acc-1")
	require.NoError(t, err)
	_, err = c.FetchVersions(ctx, "acc-1")
	require.NoError(t, err)

	cur, ok := c.CurrentVersion()
	require.True(t, ok)
	require.Equal(t, 2, cur.Version)

	before := src.calls.Load()
	v, err := c.VersionByID(ctx, "ver-1")
	require.NoError(t, err)
	require.Equal(t, 1, v.Version)
	require.Equal(t, before, src.calls.Load())

	c.SetScope("acc-2")
	require.Empty(t, c.Versions())
	_, ok = c.Balance()
	require.False(t, ok)

	c.Adopt("acc-1", decimal.NewFromInt(999))
	_, ok = c.Balance()
	require.False(t, ok)

	_, err = c.VersionByID(ctx, "ver-404")
	require.ErrorIs(t, err, ledger.ErrNotFound)

	fresh := NewBalance(src)
	fresh.Adopt("acc-2", decimal.NewFromInt(12))
	require.Equal(t, "acc-2", fresh.Scope())
	bal, ok := fresh.Balance()
	require.True(t, ok)
	require.Equal(t, "12", bal.String())
}

func seedTransactions(accountID string, n int) []ledger.Transaction {
	base := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	out := make([]ledger.Transaction, 0, n)
	for i := 0; i < n; i++ {
		typ := ledger.Deposit
		if i%3 == 0 {
			typ = ledger.Withdrawal
		}
		out = append(out, ledger.Transaction{
			ID:        fmt.Sprintf("txn-%d", i),
			AccountID: accountID,
			Type:      typ,
			Amount:    decimal.NewFromInt(int64(i + 1)),
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}

func TestTransactionsPagination(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewTransactions(&fakeSource{txs: seedTransactions("acc-1", 25)}, 10)

	c.SetPage(3)
	page, err := c.FetchTransactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	require.Equal(t, 3, page.TotalPages)
	require.False(t, c.NextPage())
	require.True(t, c.PrevPage())
	require.Equal(t, 2, c.CurrentPage())

	require.Error(t, c.SetPageSize(4))
	require.NoError(t, c.SetPageSize(25))
	require.Equal(t, 1, c.CurrentPage())
	page, err = c.FetchTransactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, page.Items, 25)
	require.Equal(t, 1, page.TotalPages)
}

func TestChangingFiltersResetsPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := &fakeSource{txs: seedTransactions("acc-1", 45)}
	c := NewTransactions(src, 10)

	c.SetPage(4)
	_, err := c.FetchTransactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, 4, c.CurrentPage())

	var sent ledger.TransactionQuery
	src.gate = func(q ledger.TransactionQuery) { sent = q }
	c.SetFilters(ledger.TransactionFilters{Type: ledger.Withdrawal})
	require.Equal(t, 1, c.CurrentPage())
	page, err := c.FetchTransactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, 1, sent.Page)
	require.Equal(t, ledger.Withdrawal, sent.Filters.Type)
	require.Equal(t, 15, page.Total)
	require.Equal(t, 2, page.TotalPages)
}

func TestOverlappingFetchesLastIssuedWins(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	release := make(chan struct{})
	src := &fakeSource{txs: seedTransactions("acc-1", 30)}
	src.gate = func(q ledger.TransactionQuery) {
		if q.Page == 1 {
			<-release
		}
	}
	c := NewTransactions(src, 10)
	c.SetScope("acc-1")

	done := make(chan error, 1)
	go func() {
		_, err := c.FetchTransactions(ctx, "acc-1")
		done <- err
	}()
	require.Eventually(t, c.Loading, time.Second, 5*time.Millisecond)

	c.SetPage(2)
	page, err := c.FetchTransactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, 2, page.Page)

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, 2, c.Page().Page)
	require.Equal(t, "txn-10", c.Page().Items[0].ID)
	require.False(t, c.Loading())
}

func TestTransactionsFailureKeepsPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := &fakeSource{txs: seedTransactions("acc-1", 12)}
	c := NewTransactions(src, 10)
	_, err := c.FetchTransactions(ctx, "acc-1")
	require.NoError(t, err)

	src.mu.Lock()
	src.fail = errors.New("boom")
	src.mu.Unlock()
	_, err = c.FetchTransactions(ctx, "acc-1")
	require.Error(t, err)
	require.Len(t, c.Page().Items, 10)
	require.Equal(t, "boom", c.Err())
}

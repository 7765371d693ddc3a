package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerview/internal/cache"
	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/mock"
	"github.com/jask/ledgerview/internal/session"
)

// countingBackend serves the seeded mock ledger in process and counts calls.
type countingBackend struct {
	l     *mock.Ledger
	calls atomic.Int32

	versionsErr error
	// hold, when set, blocks Deposit until closed.
	hold chan struct{}
}

const owner = mock.DemoUserID

func (b *countingBackend) Accounts(context.Context) ([]ledger.Account, error) {
	b.calls.Add(1)
	return b.l.Accounts(owner), nil
}

func (b *countingBackend) Account(_ context.Context, id string) (ledger.Account, error) {
	b.calls.Add(1)
	return wrap(b.l.Account(owner, id))
}

func (b *countingBackend) Versions(_ context.Context, id string) ([]ledger.BalanceVersion, error) {
	b.calls.Add(1)
	if b.versionsErr != nil {
		return nil, b.versionsErr
	}
	return b.l.Versions(owner, id)
}

func (b *countingBackend) Version(_ context.Context, id string) (ledger.BalanceVersion, error) {
	b.calls.Add(1)
	return b.l.Version(owner, id)
}

func (b *countingBackend) Transactions(_ context.Context, id string, q ledger.TransactionQuery) (ledger.TransactionPage, error) {
	b.calls.Add(1)
	return b.l.Transactions(owner, id, q)
}

func (b *countingBackend) CreateAccount(_ context.Context, c ledger.Currency, initial decimal.Decimal) (ledger.Account, error) {
	b.calls.Add(1)
	return b.l.CreateAccount(owner, c, initial, "John Doe")
}

func (b *countingBackend) Deposit(_ context.Context, req ledger.MutationRequest) (ledger.MutationResult, error) {
	b.calls.Add(1)
	if b.hold != nil {
		<-b.hold
	}
	_, tx, err := b.l.Deposit(owner, req.AccountID, req.Amount, req.Actor, req.Description)
	if err != nil {
		return ledger.MutationResult{}, conflict(err)
	}
	return ledger.MutationResult{NewBalance: tx.BalanceAfter, Transaction: &tx}, nil
}

func (b *countingBackend) Withdraw(_ context.Context, req ledger.MutationRequest) (ledger.MutationResult, error) {
	b.calls.Add(1)
	a, _, err := b.l.Withdraw(owner, req.AccountID, req.Amount, req.Actor, req.Description)
	if err != nil {
		return ledger.MutationResult{}, conflict(err)
	}
	return ledger.MutationResult{NewBalance: a.Balance, Account: &a}, nil
}

func (b *countingBackend) Transfer(_ context.Context, req ledger.TransferRequest) (ledger.TransferResult, error) {
	b.calls.Add(1)
	from, to, err := b.l.Transfer(owner, req.FromAccountID, req.ToAccountID, req.Amount, "John Doe")
	if err != nil {
		return ledger.TransferResult{}, conflict(err)
	}
	return ledger.TransferResult{From: from, To: to}, nil
}

func wrap(a ledger.Account, err error) (ledger.Account, error) {
	if err != nil {
		return a, &ledger.Error{Kind: ledger.KindNotFound, Message: err.Error(), Err: err}
	}
	return a, nil
}

func conflict(err error) error {
	return &ledger.Error{Kind: ledger.KindConflict, Status: 400, Message: err.Error(), Err: err}
}

type fixture struct {
	backend *countingBackend
	svc     *LedgerService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st, err := session.Open(context.Background(), session.NewMemStore(nil), nil)
	require.NoError(t, err)
	b := &countingBackend{l: mock.NewSeeded(nil)}
	svc := &LedgerService{
		Backend:      b,
		Accounts:     cache.NewAccounts(b, st),
		Balances:     cache.NewBalance(b),
		Transactions: cache.NewTransactions(b, 10),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return fixture{backend: b, svc: svc}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWithdrawAboveCachedBalanceMakesNoCall(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	f := newFixture(t)

	a, err := f.svc.CreateAccount(ctx, ledger.USD, decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	_, err = f.svc.Balances.FetchBalance(ctx, a.ID)
	require.NoError(t, err)

	before := f.backend.calls.Load()
	_, err = f.svc.Withdraw(ctx, ledger.MutationRequest{AccountID: a.ID, Amount: decimal.RequireFromString("150.00")})
	require.ErrorIs(t, err, ledger.ErrValidation)
	require.Equal(t, before, f.backend.calls.Load())
	require.False(t, f.svc.Busy())
}

func TestNonPositiveDepositIsRejected(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	f := newFixture(t)

	for _, amt := range []string{"0", "-5", "0.001"} {
		_, err := f.svc.Deposit(ctx, ledger.MutationRequest{AccountID: "acc-1", Amount: decimal.RequireFromString(amt)})
		require.ErrorIs(t, err, ledger.ErrValidation, amt)
	}
	require.Zero(t, f.backend.calls.Load())
}

func TestDepositThenVersionsRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	f := newFixture(t)

	_, err := f.svc.Accounts.FetchAccounts(ctx)
	require.NoError(t, err)
	_, err = f.svc.Balances.FetchVersions(ctx, "acc-1")
	require.NoError(t, err)
	_, err = f.svc.Transactions.FetchTransactions(ctx, "acc-1")
	require.NoError(t, err)

	amt := decimal.RequireFromString("42.50")
	res, err := f.svc.Deposit(ctx, ledger.MutationRequest{AccountID: "acc-1", Amount: amt, Description: "refund"})
	require.NoError(t, err)
	require.NoError(t, res.RefreshErr)
	require.Equal(t, "15042.5", res.NewBalance.String())

	versions := f.svc.Balances.Versions()
	require.True(t, versions[0].ChangeAmount.Equal(amt))
	require.True(t, versions[0].Balance.Equal(res.NewBalance))

	cur, ok := f.svc.Balances.CurrentVersion()
	require.True(t, ok)
	top, currents := 0, 0
	for _, v := range versions {
		if v.Version > top {
			top = v.Version
		}
		if v.IsCurrent {
			currents++
		}
	}
	require.Equal(t, 1, currents)
	require.Equal(t, top, cur.Version)

	bal, ok := f.svc.Balances.Balance()
	require.True(t, ok)
	require.True(t, bal.Equal(res.NewBalance))

	cached, ok := f.svc.Accounts.Lookup("acc-1")
	require.True(t, ok)
	require.True(t, cached.Balance.Equal(res.NewBalance))

	page := f.svc.Transactions.Page()
	require.Equal(t, "refund", page.Items[0].Description)
	require.Equal(t, 5, page.Total)
}

func TestFirstDepositKeepsAdoptedBalance(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	f := newFixture(t)

	res, err := f.svc.Deposit(ctx, ledger.MutationRequest{AccountID: "acc-1", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.NoError(t, res.RefreshErr)

	require.Equal(t, "acc-1", f.svc.Balances.Scope())
	bal, ok := f.svc.Balances.Balance()
	require.True(t, ok)
	require.True(t, bal.Equal(res.NewBalance), bal.String())
	require.Len(t, f.svc.Balances.Versions(), 7)
}

func TestTransferRefreshesOtherSideTransactions(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	f := newFixture(t)

	_, err := f.svc.Balances.FetchVersions(ctx, "acc-1")
	require.NoError(t, err)
	before, err := f.svc.Transactions.FetchTransactions(ctx, "acc-2")
	require.NoError(t, err)

	res, err := f.svc.Transfer(ctx, ledger.TransferRequest{FromAccountID: "acc-1", ToAccountID: "acc-2", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.NoError(t, res.RefreshErr)

	page := f.svc.Transactions.Page()
	require.Equal(t, before.Total+1, page.Total)
	require.Equal(t, ledger.TransferIn, page.Items[0].Type)
	require.Equal(t, "acc-1", f.svc.Balances.Scope())
}

func TestServerRejectionLeavesCachesUntouched(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	f := newFixture(t)

	// No balance cached for acc-2, so the soft check cannot run.
	_, err := f.svc.Withdraw(ctx, ledger.MutationRequest{AccountID: "acc-2", Amount: decimal.NewFromInt(9000)})
	require.ErrorIs(t, err, ledger.ErrConflict)
	require.Equal(t, "Insufficient balance", err.Error())
	require.Empty(t, f.svc.Accounts.List())
	require.Empty(t, f.svc.Balances.Versions())
	require.False(t, f.svc.Busy())
}

func TestRefreshFailureIsReportedNotReturned(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	f := newFixture(t)

	_, err := f.svc.Balances.FetchVersions(ctx, "acc-3")
	require.NoError(t, err)
	before := f.svc.Balances.Versions()

	f.backend.versionsErr = errors.New("versions unavailable")
	res, err := f.svc.Deposit(ctx, ledger.MutationRequest{AccountID: "acc-3", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.Error(t, res.RefreshErr)
	require.Equal(t, "12760.25", res.NewBalance.String())
	require.Equal(t, before, f.svc.Balances.Versions())
	require.Equal(t, "versions unavailable", f.svc.Balances.Err())
}

func TestConcurrentMutationOnSameAccountIsRejected(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	f := newFixture(t)
	f.backend.hold = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Deposit(ctx, ledger.MutationRequest{AccountID: "acc-1", Amount: decimal.NewFromInt(1)})
		done <- err
	}()
	require.Eventually(t, f.svc.Busy, time.Second, 5*time.Millisecond)

	_, err := f.svc.Transfer(ctx, ledger.TransferRequest{FromAccountID: "acc-1", ToAccountID: "acc-2", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ledger.ErrValidation)

	close(f.backend.hold)
	require.NoError(t, <-done)
	require.False(t, f.svc.Busy())
}

func TestTransferAdoptsBothAccounts(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	f := newFixture(t)

	_, err := f.svc.Transfer(ctx, ledger.TransferRequest{FromAccountID: "acc-1", ToAccountID: "acc-1", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ledger.ErrValidation)

	usd, err := f.svc.CreateAccount(ctx, ledger.USD, decimal.Zero)
	require.NoError(t, err)
	_, err = f.svc.Accounts.FetchAccounts(ctx)
	require.NoError(t, err)
	_, err = f.svc.Balances.FetchVersions(ctx, usd.ID)
	require.NoError(t, err)

	res, err := f.svc.Transfer(ctx, ledger.TransferRequest{FromAccountID: "acc-1", ToAccountID: usd.ID, Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	require.NoError(t, res.RefreshErr)

	from, _ := f.svc.Accounts.Lookup("acc-1")
	to, _ := f.svc.Accounts.Lookup(usd.ID)
	require.Equal(t, "14500", from.Balance.String())
	require.Equal(t, "500", to.Balance.String())

	versions := f.svc.Balances.Versions()
	require.Len(t, versions, 1)
	require.True(t, versions[0].IsCurrent)

	_, err = f.svc.Transfer(ctx, ledger.TransferRequest{FromAccountID: usd.ID, ToAccountID: "acc-1", Amount: decimal.NewFromInt(501)})
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCreateAccountValidatesAndActivates(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	f := newFixture(t)

	_, err := f.svc.CreateAccount(ctx, ledger.Currency("BTC"), decimal.Zero)
	require.ErrorIs(t, err, ledger.ErrValidation)
	_, err = f.svc.CreateAccount(ctx, ledger.EUR, decimal.RequireFromString("-1"))
	require.ErrorIs(t, err, ledger.ErrValidation)
	require.Zero(t, f.backend.calls.Load())

	a, err := f.svc.CreateAccount(ctx, ledger.GBP, decimal.RequireFromString("12.34"))
	require.NoError(t, err)
	active, ok := f.svc.Accounts.Active()
	require.True(t, ok)
	require.Equal(t, a.ID, active.ID)
}

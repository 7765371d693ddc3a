package mock

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerview/internal/ledger"
)

func fixedClock() func() time.Time {
	t := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func currentVersions(t *testing.T, l *Ledger, accountID string) []ledger.BalanceVersion {
	t.Helper()
	list, err := l.Versions(DemoUserID, accountID)
	require.NoError(t, err)
	var cur []ledger.BalanceVersion
	for _, v := range list {
		if v.IsCurrent {
			cur = append(cur, v)
		}
	}
	return cur
}

func TestSeededBalancesMatchCurrentVersion(t *testing.T) {
	t.Parallel()
	l := NewSeeded(fixedClock())

	accts := l.Accounts(DemoUserID)
	require.Len(t, accts, 4)
	for _, a := range accts {
		cur := currentVersions(t, l, a.ID)
		require.Len(t, cur, 1, a.ID)
		require.True(t, cur[0].Balance.Equal(a.Balance), a.ID)
	}
}

func TestDepositAppendsVersionAndTransaction(t *testing.T) {
	t.Parallel()
	l := NewSeeded(fixedClock())

	a, tx, err := l.Deposit(DemoUserID, "acc-1", decimal.NewFromInt(250), "John Doe", "top up")
	require.NoError(t, err)
	require.Equal(t, "15250", a.Balance.String())
	require.Equal(t, "7", a.Version)
	require.Equal(t, ledger.Deposit, tx.Type)
	require.True(t, tx.BalanceAfter.Equal(a.Balance))

	versions, err := l.Versions(DemoUserID, "acc-1")
	require.NoError(t, err)
	require.Equal(t, 7, versions[0].Version)
	require.True(t, versions[0].IsCurrent)
	require.Equal(t, "250", versions[0].ChangeAmount.String())
	require.Len(t, currentVersions(t, l, "acc-1"), 1)

	page, err := l.Transactions(DemoUserID, "acc-1", ledger.TransactionQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, tx.ID, page.Items[0].ID)
	require.Equal(t, 5, page.Total)
}

func TestWithdrawRejectsOverdraft(t *testing.T) {
	t.Parallel()
	l := NewSeeded(fixedClock())

	_, _, err := l.Withdraw(DemoUserID, "acc-2", decimal.NewFromInt(9000), "John Doe", "")
	require.ErrorIs(t, err, ErrInsufficient)

	a, err := l.Account(DemoUserID, "acc-2")
	require.NoError(t, err)
	require.Equal(t, "8500.5", a.Balance.String())

	_, _, err = l.Deposit(DemoUserID, "acc-2", decimal.Zero, "John Doe", "")
	require.ErrorIs(t, err, ErrBadAmount)
}

func TestTransferMovesFunds(t *testing.T) {
	t.Parallel()
	l := NewSeeded(fixedClock())

	other, err := l.CreateAccount(DemoUserID, ledger.USD, decimal.Zero, "John Doe")
	require.NoError(t, err)
	require.Equal(t, "0", other.Version)

	from, to, err := l.Transfer(DemoUserID, "acc-1", other.ID, decimal.RequireFromString("100.25"), "John Doe")
	require.NoError(t, err)
	require.Equal(t, "14899.75", from.Balance.String())
	require.Equal(t, "100.25", to.Balance.String())

	in, err := l.Transactions(DemoUserID, other.ID, ledger.TransactionQuery{})
	require.NoError(t, err)
	require.Len(t, in.Items, 1)
	require.Equal(t, ledger.TransferIn, in.Items[0].Type)
	require.NotEmpty(t, in.Items[0].Reference)

	_, _, err = l.Transfer(DemoUserID, "acc-1", "acc-1", decimal.NewFromInt(1), "John Doe")
	require.ErrorIs(t, err, ErrSameAccount)
}

func TestTransferBetweenSeededAccounts(t *testing.T) {
	t.Parallel()
	l := NewSeeded(fixedClock())

	ids := []string{"acc-1", "acc-2", "acc-3", "acc-4"}
	for _, from := range ids {
		for _, to := range ids {
			if from == to {
				continue
			}
			_, _, err := l.Transfer(DemoUserID, from, to, decimal.NewFromInt(1), "John Doe")
			require.NoError(t, err, "%s -> %s", from, to)
		}
	}

	from, to, err := l.Transfer(DemoUserID, "acc-1", "acc-2", decimal.RequireFromString("10.50"), "John Doe")
	require.NoError(t, err)
	require.Equal(t, ledger.USD, from.Currency)
	require.Equal(t, ledger.EUR, to.Currency)
	for _, id := range ids {
		require.Len(t, currentVersions(t, l, id), 1, id)
	}
}

func TestTransactionsHugePagingIsEmpty(t *testing.T) {
	t.Parallel()
	l := NewSeeded(fixedClock())

	page, err := l.Transactions(DemoUserID, "acc-1", ledger.TransactionQuery{Page: math.MaxInt/10 + 2, PageSize: 10})
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.Equal(t, 4, page.Total)

	page, err = l.Transactions(DemoUserID, "acc-1", ledger.TransactionQuery{Page: 2, PageSize: math.MaxInt})
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.Equal(t, ledger.MaxPageSize, page.PageSize)

	page, err = l.Transactions(DemoUserID, "acc-1", ledger.TransactionQuery{Page: math.MaxInt, PageSize: math.MaxInt})
	require.NoError(t, err)
	require.Empty(t, page.Items)

	page, err = l.Transactions(DemoUserID, "acc-1", ledger.TransactionQuery{Page: 1, PageSize: math.MaxInt})
	require.NoError(t, err)
	require.Len(t, page.Items, 4)
	require.Equal(t, 1, page.TotalPages)
}

func TestTransactionsPaginateNewestFirst(t *testing.T) {
	t.Parallel()
	l := NewSeeded(fixedClock())
	for i := 0; i < 21; i++ {
		_, _, err := l.Deposit(DemoUserID, "acc-3", decimal.NewFromInt(1), "John Doe", "")
		require.NoError(t, err)
	}

	page, err := l.Transactions(DemoUserID, "acc-3", ledger.TransactionQuery{Page: 3, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 23, page.Total)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 3)
	require.Equal(t, "txn-8", page.Items[2].ID)

	filtered, err := l.Transactions(DemoUserID, "acc-3", ledger.TransactionQuery{Filters: ledger.TransactionFilters{Type: ledger.Withdrawal}})
	require.NoError(t, err)
	require.Equal(t, 1, filtered.Total)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	l := NewSeeded(fixedClock())

	u, err := l.Authenticate("anyone@example.com", "Demo123!")
	require.NoError(t, err)
	require.Equal(t, DemoUserID, u.ID)

	_, err = l.Authenticate("demo", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	reg, err := l.Register("Jane Roe", "jane@example.com", "s3cret-pass")
	require.NoError(t, err)
	got, err := l.Authenticate("JANE@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, reg.ID, got.ID)

	_, err = l.Register("Jane Again", "jane@example.com", "another-pass")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestOtherUsersCannotSeeAccounts(t *testing.T) {
	t.Parallel()
	l := NewSeeded(fixedClock())
	u, err := l.Register("Jane Roe", "jane@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = l.Account(u.ID, "acc-1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = l.Version(u.ID, "ver-1")
	require.ErrorIs(t, err, ErrVersionNotFound)
	require.Empty(t, l.Accounts(u.ID))
}

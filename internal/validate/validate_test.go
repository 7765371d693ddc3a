package validate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerview/internal/ledger"
)

func TestAmountRules(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"0":       false,
		"-5":      false,
		"0.001":   false,
		"10.123":  false,
		"0.01":    true,
		"150.00":  true,
		"1000000": true,
	}
	for in, ok := range cases {
		err := Amount(decimal.RequireFromString(in))
		if ok {
			require.NoError(t, err, in)
			continue
		}
		require.ErrorIs(t, err, ledger.ErrValidation, in)
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	d, err := ParseAmount(" 1,250.50 ")
	require.NoError(t, err)
	require.True(t, d.Equal(decimal.RequireFromString("1250.5")))

	_, err = ParseAmount("abc")
	require.ErrorIs(t, err, ledger.ErrValidation)
	_, err = ParseAmount("")
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestWithdrawalAgainstBalance(t *testing.T) {
	t.Parallel()

	bal := decimal.RequireFromString("100.00")
	require.NoError(t, Withdrawal(decimal.RequireFromString("100"), bal))
	err := Withdrawal(decimal.RequireFromString("150.00"), bal)
	require.ErrorIs(t, err, ledger.ErrValidation)
	require.Contains(t, err.Error(), "Insufficient")
}

func TestPasswordAndEmail(t *testing.T) {
	t.Parallel()

	require.NoError(t, Password("Demo1234"))
	require.Len(t, PasswordProblems("short"), 3)
	require.ErrorIs(t, Password("alllowercase1"), ledger.ErrValidation)

	require.NoError(t, Email("john.doe@example.com"))
	require.ErrorIs(t, Email("john@doe"), ledger.ErrValidation)
	require.ErrorIs(t, Registration(ledger.Registration{Email: "a@b.co", Password: "Demo1234"}), ledger.ErrValidation)
}

func TestPageSizeAndCurrency(t *testing.T) {
	t.Parallel()

	require.NoError(t, PageSize(5))
	require.NoError(t, PageSize(100))
	require.Error(t, PageSize(4))
	require.Error(t, PageSize(101))
	require.NoError(t, Currency(ledger.JPY))
	require.Error(t, Currency("CHF"))
	require.NoError(t, InitialBalance(decimal.Zero))
	require.Error(t, InitialBalance(decimal.RequireFromString("-1")))
}

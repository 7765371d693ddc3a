// Package validate holds the client-side precondition checks run before any
// request is dispatched. The server re-validates everything authoritatively.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerview/internal/ledger"
)

const (
	MaxAmountDecimals = 2
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// MinAmount is the smallest amount accepted for a mutation.
var MinAmount = decimal.New(1, -MaxAmountDecimals)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ParseAmount parses user input into a decimal amount and validates it.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero, ledger.Validation("amount", "Amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ledger.Validation("amount", "Please enter a valid amount")
	}
	return d, Amount(d)
}

// Amount checks that d is strictly positive with at most two decimal places.
func Amount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ledger.Validation("amount", "Amount must be greater than zero")
	}
	if d.LessThan(MinAmount) {
		return ledger.Validation("amount", fmt.Sprintf("Amount must be at least %s", MinAmount.StringFixed(MaxAmountDecimals)))
	}
	if !d.Equal(d.Truncate(MaxAmountDecimals)) {
		return ledger.Validation("amount", fmt.Sprintf("Amount can have at most %d decimal places", MaxAmountDecimals))
	}
	return nil
}

// Withdrawal checks amount against the cached balance. The check is advisory.
func Withdrawal(amount, balance decimal.Decimal) error {
	if err := Amount(amount); err != nil {
		return err
	}
	if amount.GreaterThan(balance) {
		return ledger.Validation("withdraw", "Insufficient balance for this transaction.")
	}
	return nil
}

// InitialBalance checks the opening balance of a new account; zero is allowed.
func InitialBalance(d decimal.Decimal) error {
	if d.IsNegative() {
		return ledger.Validation("initial balance", "Initial balance cannot be negative")
	}
	if !d.Equal(d.Truncate(MaxAmountDecimals)) {
		return ledger.Validation("initial balance", fmt.Sprintf("Initial balance can have at most %d decimal places", MaxAmountDecimals))
	}
	return nil
}

// Currency checks c against the supported set.
func Currency(c ledger.Currency) error {
	if !c.Valid() {
		return ledger.Validation("currency", fmt.Sprintf("Unsupported currency %q", string(c)))
	}
	return nil
}

// Email checks the address format.
func Email(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ledger.Validation("email", "Email is required")
	}
	if !emailRe.MatchString(email) {
		return ledger.Validation("email", "Please enter a valid email address")
	}
	return nil
}

// PasswordProblems lists every unmet password rule, empty when the password is acceptable.
func PasswordProblems(password string) []string {
	var out []string
	if len(password) < MinPasswordLength {
		out = append(out, fmt.Sprintf("at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		out = append(out, fmt.Sprintf("at most %d characters", MaxPasswordLength))
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		out = append(out, "one uppercase letter")
	}
	if !lower {
		out = append(out, "one lowercase letter")
	}
	if !digit {
		out = append(out, "one number")
	}
	return out
}

// Password checks password against the strength rules.
func Password(password string) error {
	if password == "" {
		return ledger.Validation("password", "Password is required")
	}
	if p := PasswordProblems(password); len(p) > 0 {
		return ledger.Validation("password", "Password must contain "+strings.Join(p, ", "))
	}
	return nil
}

// Registration validates every sign-up field.
func Registration(r ledger.Registration) error {
	if strings.TrimSpace(r.Username) == "" {
		return ledger.Validation("username", "Username is required")
	}
	if err := Email(r.Email); err != nil {
		return err
	}
	return Password(r.Password)
}

// PageSize checks n against the accepted range.
func PageSize(n int) error {
	if n < ledger.MinPageSize || n > ledger.MaxPageSize {
		return ledger.Validation("page size", fmt.Sprintf("Page size must be between %d and %d", ledger.MinPageSize, ledger.MaxPageSize))
	}
	return nil
}

// Package ledger holds the canonical client-side schema shared by every layer.
// Wire variants are converted into these shapes at the edge and never leak past it.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is one of the supported ISO codes.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
)

// Currencies lists the supported currencies in display order.
var Currencies = []Currency{USD, EUR, GBP, JPY}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	for _, k := range Currencies {
		if c == k {
			return true
		}
	}
	return false
}

// TxType classifies a transaction.
type TxType string

const (
	Deposit     TxType = "DEPOSIT"
	Withdrawal  TxType = "WITHDRAWAL"
	TransferIn  TxType = "TRANSFER_IN"
	TransferOut TxType = "TRANSFER_OUT"
)

// Label is the human readable name of t.
func (t TxType) Label() string {
	switch t {
	case Deposit:
		return "Deposit"
	case Withdrawal:
		return "Withdrawal"
	case TransferIn:
		return "Transfer in"
	case TransferOut:
		return "Transfer out"
	}
	return string(t)
}

// Credit reports whether t increases the balance.
func (t TxType) Credit() bool { return t == Deposit || t == TransferIn }

// User is the authenticated profile.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Account is the canonical account record. Balance is always the value last
// confirmed by the server.
type Account struct {
	ID        string
	OwnerID   string
	Currency  Currency
	Balance   decimal.Decimal
	Active    bool
	ChangedBy string
	ChangedAt time.Time
	Version   string
}

// BalanceVersion is one immutable snapshot in an account's balance history.
type BalanceVersion struct {
	ID           string
	AccountID    string
	Version      int
	Balance      decimal.Decimal
	ChangeAmount decimal.Decimal
	ChangedBy    string
	Timestamp    time.Time
	IsCurrent    bool
}

// Transaction is one balance-affecting event.
type Transaction struct {
	ID           string
	AccountID    string
	Type         TxType
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Actor        string
	CreatedAt    time.Time
	Description  string
	Reference    string
}

// Credentials are the login inputs. Identifier is an email or a username
// depending on the backend variant.
type Credentials struct {
	Identifier string
	Password   string
}

// Registration are the sign-up inputs.
type Registration struct {
	Username string
	Email    string
	Password string
}

// AuthResult is the login response. User is nil when the backend only returns a token.
type AuthResult struct {
	Token string
	User  *User
}

// TransactionFilters narrow a transaction listing. Zero values mean "no filter".
type TransactionFilters struct {
	Type  TxType
	Start time.Time
	End   time.Time
	Actor string
}

// IsZero reports whether no filter is set.
func (f TransactionFilters) IsZero() bool {
	return f.Type == "" && f.Start.IsZero() && f.End.IsZero() && f.Actor == ""
}

// Match reports whether tx passes f. End is inclusive.
func (f TransactionFilters) Match(tx Transaction) bool {
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if !f.Start.IsZero() && tx.CreatedAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && tx.CreatedAt.After(f.End) {
		return false
	}
	if f.Actor != "" && tx.Actor != f.Actor {
		return false
	}
	return true
}

// Pagination constants.
const (
	DefaultPageSize = 10
	MinPageSize     = 5
	MaxPageSize     = 100
)

// PageSizeOptions are the sizes offered in the UI.
var PageSizeOptions = []int{10, 25, 50, 100}

// TransactionQuery is a filtered page request.
type TransactionQuery struct {
	Filters  TransactionFilters
	Page     int
	PageSize int
}

// TransactionPage is one server-sliced window of transactions.
type TransactionPage struct {
	Items      []Transaction
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// TotalPages returns ceil(total/pageSize), or 0 for an empty or invalid page size.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// MutationRequest is a deposit or withdrawal.
type MutationRequest struct {
	AccountID   string
	Amount      decimal.Decimal
	Actor       string
	Description string
}

// MutationResult is the server-confirmed outcome of a deposit or withdrawal.
// Account is set when the backend returns the updated account, Transaction
// when it returns the created transaction.
type MutationResult struct {
	NewBalance  decimal.Decimal
	Account     *Account
	Transaction *Transaction
	// RefreshErr is set when the mutation was confirmed but a follow-up refresh failed.
	RefreshErr error
}

// TransferRequest moves Amount from one account to another.
type TransferRequest struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
}

// TransferResult carries both post-transfer accounts.
type TransferResult struct {
	From       Account
	To         Account
	RefreshErr error
}

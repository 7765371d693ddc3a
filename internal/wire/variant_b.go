package wire

import (
	"strings"

	"github.com/jask/ledgerview/internal/ledger"
)

// AccountB is a variant B account.
type AccountB struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Currency  string `json:"currency"`
	Balance   Amount `json:"balance"`
	Active    *bool  `json:"active,omitempty"`
	Version   string `json:"version,omitempty"`
	UpdatedBy string `json:"updatedBy,omitempty"`
	CreatedAt Time   `json:"createdAt"`
	UpdatedAt Time   `json:"updatedAt"`
}

// Canonical converts a to the internal schema. Accounts without an active
// flag are active.
func (a AccountB) Canonical() ledger.Account {
	active := true
	if a.Active != nil {
		active = *a.Active
	}
	return ledger.Account{
		ID:        a.ID,
		OwnerID:   a.UserID,
		Currency:  ledger.Currency(strings.ToUpper(a.Currency)),
		Balance:   a.Balance.Decimal,
		Active:    active,
		ChangedBy: a.UpdatedBy,
		ChangedAt: a.UpdatedAt.Time,
		Version:   a.Version,
	}
}

// AccountBFrom converts a canonical account to variant B.
func AccountBFrom(a ledger.Account, createdAt Time) AccountB {
	active := a.Active
	return AccountB{
		ID:        a.ID,
		UserID:    a.OwnerID,
		Currency:  string(a.Currency),
		Balance:   NewAmount(a.Balance),
		Active:    &active,
		Version:   a.Version,
		UpdatedBy: a.ChangedBy,
		CreatedAt: createdAt,
		UpdatedAt: NewTime(a.ChangedAt),
	}
}

// BalanceVersionB is a variant B balance version.
type BalanceVersionB struct {
	ID           string `json:"id"`
	AccountID    string `json:"accountId"`
	Version      int    `json:"version"`
	Balance      Amount `json:"balance"`
	ChangeAmount Amount `json:"changeAmount"`
	ChangedBy    string `json:"changedBy"`
	Timestamp    Time   `json:"timestamp"`
	IsCurrent    bool   `json:"isCurrent"`
}

// Canonical converts v to the internal schema.
func (v BalanceVersionB) Canonical() ledger.BalanceVersion {
	return ledger.BalanceVersion{
		ID:           v.ID,
		AccountID:    v.AccountID,
		Version:      v.Version,
		Balance:      v.Balance.Decimal,
		ChangeAmount: v.ChangeAmount.Decimal,
		ChangedBy:    v.ChangedBy,
		Timestamp:    v.Timestamp.Time,
		IsCurrent:    v.IsCurrent,
	}
}

// BalanceVersionBFrom converts a canonical version to variant B.
func BalanceVersionBFrom(v ledger.BalanceVersion) BalanceVersionB {
	return BalanceVersionB{
		ID:           v.ID,
		AccountID:    v.AccountID,
		Version:      v.Version,
		Balance:      NewAmount(v.Balance),
		ChangeAmount: NewAmount(v.ChangeAmount),
		ChangedBy:    v.ChangedBy,
		Timestamp:    NewTime(v.Timestamp),
		IsCurrent:    v.IsCurrent,
	}
}

var txTypeB = map[string]ledger.TxType{
	"DEPOSIT":      ledger.Deposit,
	"WITHDRAW":     ledger.Withdrawal,
	"WITHDRAWAL":   ledger.Withdrawal,
	"TRANSFER_IN":  ledger.TransferIn,
	"TRANSFER_OUT": ledger.TransferOut,
}

// TxTypeB returns the variant B spelling of t.
func TxTypeB(t ledger.TxType) string {
	if t == ledger.Withdrawal {
		return "WITHDRAW"
	}
	return string(t)
}

// TransactionB is a variant B transaction.
type TransactionB struct {
	ID           string `json:"id"`
	AccountID    string `json:"accountId"`
	Type         string `json:"type"`
	Amount       Amount `json:"amount"`
	BalanceAfter Amount `json:"balanceAfter"`
	Actor        string `json:"actor"`
	CreatedAt    Time   `json:"createdAt"`
	Description  string `json:"description,omitempty"`
	Reference    string `json:"reference,omitempty"`
}

// Canonical converts t to the internal schema.
func (t TransactionB) Canonical() ledger.Transaction {
	typ, ok := txTypeB[strings.ToUpper(t.Type)]
	if !ok {
		typ = ledger.TxType(strings.ToUpper(t.Type))
	}
	return ledger.Transaction{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Type:         typ,
		Amount:       t.Amount.Abs(),
		BalanceAfter: t.BalanceAfter.Decimal,
		Actor:        t.Actor,
		CreatedAt:    t.CreatedAt.Time,
		Description:  t.Description,
		Reference:    t.Reference,
	}
}

// TransactionBFrom converts a canonical transaction to variant B.
func TransactionBFrom(t ledger.Transaction) TransactionB {
	return TransactionB{
		ID:           t.ID,
		AccountID:    t.AccountID,
		Type:         TxTypeB(t.Type),
		Amount:       NewAmount(t.Amount),
		BalanceAfter: NewAmount(t.BalanceAfter),
		Actor:        t.Actor,
		CreatedAt:    NewTime(t.CreatedAt),
		Description:  t.Description,
		Reference:    t.Reference,
	}
}

// PageB is the variant B paginated envelope.
type PageB struct {
	Items      []TransactionB `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

// MutationRequestB is the variant B deposit/withdraw body.
type MutationRequestB struct {
	Amount      Amount `json:"amount"`
	Actor       string `json:"actor,omitempty"`
	Description string `json:"description,omitempty"`
}

// TransferRequestB is the variant B transfer body.
type TransferRequestB struct {
	FromAccountID string `json:"fromAccountId"`
	ToAccountID   string `json:"toAccountId"`
	Amount        Amount `json:"amount"`
}

// TransferB is the variant B transfer response.
type TransferB struct {
	FromAccount AccountB `json:"fromAccount"`
	ToAccount   AccountB `json:"toAccount"`
}

// UserB is the variant B profile.
type UserB struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt Time   `json:"createdAt"`
}

// Canonical converts u to the internal schema.
func (u UserB) Canonical() ledger.User {
	return ledger.User{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt.Time}
}

// UserBFrom converts a canonical user to variant B.
func UserBFrom(u ledger.User) UserB {
	return UserB{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: NewTime(u.CreatedAt)}
}

// LoginRequestB is the variant B login body.
type LoginRequestB struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthB is the variant B login and register response.
type AuthB struct {
	Token string `json:"token"`
	User  *UserB `json:"user,omitempty"`
}

// RegisterRequestB is the variant B sign-up body.
type RegisterRequestB struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

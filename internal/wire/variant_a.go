package wire

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerview/internal/ledger"
)

// AccountA is a variant A account. Version history is a list of these snapshots.
type AccountA struct {
	EntityID    string `json:"entity_id"`
	Version     string `json:"version"`
	OwnerID     string `json:"owner_id"`
	Balance     Amount `json:"balance"`
	Currency    string `json:"currency"`
	Active      bool   `json:"active"`
	ChangedByID string `json:"changed_by_id"`
	ChangedOn   Time   `json:"changed_on"`
}

// Canonical converts a to the internal schema.
func (a AccountA) Canonical() ledger.Account {
	return ledger.Account{
		ID:        a.EntityID,
		OwnerID:   a.OwnerID,
		Currency:  ledger.Currency(strings.ToUpper(a.Currency)),
		Balance:   a.Balance.Decimal,
		Active:    a.Active,
		ChangedBy: a.ChangedByID,
		ChangedAt: a.ChangedOn.Time,
		Version:   a.Version,
	}
}

// AccountAFrom converts a canonical account to variant A.
func AccountAFrom(a ledger.Account) AccountA {
	return AccountA{
		EntityID:    a.ID,
		Version:     a.Version,
		OwnerID:     a.OwnerID,
		Balance:     NewAmount(a.Balance),
		Currency:    string(a.Currency),
		Active:      a.Active,
		ChangedByID: a.ChangedBy,
		ChangedOn:   NewTime(a.ChangedAt),
	}
}

// TransferA is the variant A transfer response.
type TransferA struct {
	FromAccount AccountA `json:"from_account"`
	ToAccount   AccountA `json:"to_account"`
}

// TransferRequestA is the variant A transfer body.
type TransferRequestA struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        Amount `json:"amount"`
}

// MutationRequestA is the variant A deposit/withdraw body.
type MutationRequestA struct {
	Amount Amount `json:"amount"`
}

// CreateAccountRequest is shared by both variants.
type CreateAccountRequest struct {
	Currency       string `json:"currency"`
	InitialBalance Amount `json:"initial_balance"`
}

// VersionsFromSnapshots maps variant A account snapshots to balance versions,
// newest first. The delta of each snapshot is its balance minus the previous
// snapshot's; the highest version is current.
func VersionsFromSnapshots(snaps []AccountA) []ledger.BalanceVersion {
	type indexed struct {
		snap AccountA
		num  int
	}
	list := make([]indexed, 0, len(snaps))
	for i, s := range snaps {
		n, err := strconv.Atoi(strings.TrimSpace(s.Version))
		if err != nil {
			n = i + 1
		}
		list = append(list, indexed{snap: s, num: n})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].num < list[j].num })

	out := make([]ledger.BalanceVersion, 0, len(list))
	prev := decimal.Zero
	for i, it := range list {
		bal := it.snap.Balance.Decimal
		out = append(out, ledger.BalanceVersion{
			ID:           it.snap.EntityID + "@" + strconv.Itoa(it.num),
			AccountID:    it.snap.EntityID,
			Version:      it.num,
			Balance:      bal,
			ChangeAmount: bal.Sub(prev),
			ChangedBy:    it.snap.ChangedByID,
			Timestamp:    it.snap.ChangedOn.Time,
			IsCurrent:    i == len(list)-1,
		})
		prev = bal
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// SnapshotsFromVersions is the inverse used by the mock server.
func SnapshotsFromVersions(acct ledger.Account, versions []ledger.BalanceVersion) []AccountA {
	out := make([]AccountA, 0, len(versions))
	for _, v := range versions {
		out = append(out, AccountA{
			EntityID:    acct.ID,
			Version:     strconv.Itoa(v.Version),
			OwnerID:     acct.OwnerID,
			Balance:     NewAmount(v.Balance),
			Currency:    string(acct.Currency),
			Active:      acct.Active,
			ChangedByID: v.ChangedBy,
			ChangedOn:   NewTime(v.Timestamp),
		})
	}
	return out
}

var txTypeA = map[string]ledger.TxType{
	"deposit":      ledger.Deposit,
	"withdrawal":   ledger.Withdrawal,
	"withdraw":     ledger.Withdrawal,
	"transfer_in":  ledger.TransferIn,
	"transfer_out": ledger.TransferOut,
}

// TxTypeA returns the variant A spelling of t.
func TxTypeA(t ledger.TxType) string {
	switch t {
	case ledger.Deposit:
		return "deposit"
	case ledger.Withdrawal:
		return "withdrawal"
	case ledger.TransferIn:
		return "transfer_in"
	case ledger.TransferOut:
		return "transfer_out"
	}
	return ""
}

// TransactionA is a variant A transaction.
type TransactionA struct {
	EntityID        string `json:"entity_id"`
	AccountID       string `json:"account_id"`
	TransactionType string `json:"transaction_type"`
	Amount          Amount `json:"amount"`
	BalanceAfter    Amount `json:"balance_after"`
	ActorID         string `json:"actor_id"`
	CreatedOn       Time   `json:"created_on"`
	Description     string `json:"description,omitempty"`
	Reference       string `json:"reference,omitempty"`
}

// Canonical converts t to the internal schema. Amounts are stored unsigned.
func (t TransactionA) Canonical() ledger.Transaction {
	typ, ok := txTypeA[strings.ToLower(t.TransactionType)]
	if !ok {
		typ = ledger.TxType(strings.ToUpper(t.TransactionType))
	}
	return ledger.Transaction{
		ID:           t.EntityID,
		AccountID:    t.AccountID,
		Type:         typ,
		Amount:       t.Amount.Abs(),
		BalanceAfter: t.BalanceAfter.Decimal,
		Actor:        t.ActorID,
		CreatedAt:    t.CreatedOn.Time,
		Description:  t.Description,
		Reference:    t.Reference,
	}
}

// TransactionAFrom converts a canonical transaction to variant A.
func TransactionAFrom(t ledger.Transaction) TransactionA {
	return TransactionA{
		EntityID:        t.ID,
		AccountID:       t.AccountID,
		TransactionType: TxTypeA(t.Type),
		Amount:          NewAmount(t.Amount),
		BalanceAfter:    NewAmount(t.BalanceAfter),
		ActorID:         t.Actor,
		CreatedOn:       NewTime(t.CreatedAt),
		Description:     t.Description,
		Reference:       t.Reference,
	}
}

// PageA is the variant A paginated transaction envelope.
type PageA struct {
	Items      []TransactionA `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// LoginRequestA is the variant A login body.
type LoginRequestA struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenA is the variant A login response; it carries no profile.
type TokenA struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserA is the variant A profile.
type UserA struct {
	EntityID  string `json:"entity_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	CreatedOn Time   `json:"created_on"`
}

// Canonical converts u to the internal schema.
func (u UserA) Canonical() ledger.User {
	name := u.FullName
	if name == "" {
		name = u.Username
	}
	return ledger.User{ID: u.EntityID, Email: u.Email, Name: name, CreatedAt: u.CreatedOn.Time}
}

// UserAFrom converts a canonical user to variant A.
func UserAFrom(u ledger.User) UserA {
	return UserA{EntityID: u.ID, Username: u.Name, Email: u.Email, FullName: u.Name, CreatedOn: NewTime(u.CreatedAt)}
}

// RegisterRequestA is the variant A sign-up body.
type RegisterRequestA struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Package mock is an in-memory stand-in for the remote ledger API. It keeps
// the server-side invariants the client relies on: non-negative balances,
// one new balance version per confirmed mutation, exactly one current version
// per account, and newest-first transaction listings.
package mock

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/jask/ledgerview/internal/ledger"
)

var (
	ErrNotFound           = errors.New("Account not found")
	ErrVersionNotFound    = errors.New("Version not found")
	ErrUserNotFound       = errors.New("User not found")
	ErrBadAmount          = errors.New("Amount must be positive")
	ErrInsufficient       = errors.New("Insufficient balance")
	ErrSameAccount        = errors.New("Cannot transfer to the same account")
	ErrUnsupportedCur     = errors.New("Unsupported currency")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrMissingFields      = errors.New("Email and password are required")
	ErrEmailTaken         = errors.New("Email already registered")
	ErrWeakPassword       = errors.New("Password must be at least 6 characters")
	ErrRegistrationFields = errors.New("All fields are required")
)

// DemoPasswords log any identifier in as the demo user.
var DemoPasswords = []string{"password", "Demo123!"}

// DemoUserID is the seeded user.
const DemoUserID = "user-1"

type userRecord struct {
	user ledger.User
	hash []byte
}

// Ledger is the mock's state. All methods are safe for concurrent use.
type Ledger struct {
	mu           sync.Mutex
	now          func() time.Time
	users        map[string]*userRecord
	accounts     []*ledger.Account
	createdAt    map[string]time.Time
	versions     []ledger.BalanceVersion
	transactions []ledger.Transaction
}

// NewLedger returns an empty ledger. now may be nil.
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		now:       now,
		users:     map[string]*userRecord{},
		createdAt: map[string]time.Time{},
	}
}

// NewSeeded returns a ledger loaded with the demo data set.
func NewSeeded(now func() time.Time) *Ledger {
	l := NewLedger(now)
	l.seed()
	return l
}

func (l *Ledger) clock() time.Time { return l.now().UTC() }

func newID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Authenticate resolves identifier/password. Registered users must match
// their own password; any other identifier with a demo password is the demo user.
func (l *Ledger) Authenticate(identifier, password string) (ledger.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return ledger.User{}, ErrMissingFields
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.users {
		if rec.hash == nil || !strings.EqualFold(rec.user.Email, identifier) {
			continue
		}
		if bcrypt.CompareHashAndPassword(rec.hash, []byte(password)) != nil {
			return ledger.User{}, ErrInvalidCredentials
		}
		return rec.user, nil
	}
	for _, p := range DemoPasswords {
		if password == p {
			return l.users[DemoUserID].user, nil
		}
	}
	return ledger.User{}, ErrInvalidCredentials
}

// Register creates a user with a bcrypt-hashed password.
func (l *Ledger) Register(name, email, password string) (ledger.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" || strings.TrimSpace(name) == "" {
		return ledger.User{}, ErrRegistrationFields
	}
	if len(password) < 6 {
		return ledger.User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return ledger.User{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.users {
		if strings.EqualFold(rec.user.Email, email) {
			return ledger.User{}, ErrEmailTaken
		}
	}
	u := ledger.User{ID: newID("user"), Email: email, Name: strings.TrimSpace(name), CreatedAt: l.clock()}
	l.users[u.ID] = &userRecord{user: u, hash: hash}
	return u, nil
}

// User returns the profile for id.
func (l *Ledger) User(id string) (ledger.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.users[id]
	if !ok {
		return ledger.User{}, ErrUserNotFound
	}
	return rec.user, nil
}

// Accounts lists the accounts owned by ownerID in creation order.
func (l *Ledger) Accounts(ownerID string) []ledger.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ledger.Account
	for _, a := range l.accounts {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	return out
}

// Account returns id if ownerID owns it.
func (l *Ledger) Account(ownerID, id string) (ledger.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, err := l.owned(ownerID, id)
	if err != nil {
		return ledger.Account{}, err
	}
	return *a, nil
}

// CreatedAt returns when account id was opened.
func (l *Ledger) CreatedAt(id string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.createdAt[id]
}

func (l *Ledger) owned(ownerID, id string) (*ledger.Account, error) {
	for _, a := range l.accounts {
		if a.ID == id && a.OwnerID == ownerID {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

// CreateAccount opens an account. A positive initial balance records version 1.
func (l *Ledger) CreateAccount(ownerID string, currency ledger.Currency, initial decimal.Decimal, actor string) (ledger.Account, error) {
	if !currency.Valid() {
		return ledger.Account{}, ErrUnsupportedCur
	}
	if initial.IsNegative() {
		return ledger.Account{}, ErrBadAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	a := &ledger.Account{
		ID:        newID("acc"),
		OwnerID:   ownerID,
		Currency:  currency,
		Balance:   decimal.Zero,
		Active:    true,
		ChangedBy: actor,
		ChangedAt: now,
		Version:   "0",
	}
	l.accounts = append(l.accounts, a)
	l.createdAt[a.ID] = now
	if initial.IsPositive() {
		l.apply(a, initial, actor, now)
	}
	return *a, nil
}

// Deposit credits accountID and records the transaction and version.
func (l *Ledger) Deposit(ownerID, accountID string, amount decimal.Decimal, actor, description string) (ledger.Account, ledger.Transaction, error) {
	return l.post(ownerID, accountID, ledger.Deposit, amount, actor, description, "")
}

// Withdraw debits accountID; overdrafts are rejected.
func (l *Ledger) Withdraw(ownerID, accountID string, amount decimal.Decimal, actor, description string) (ledger.Account, ledger.Transaction, error) {
	return l.post(ownerID, accountID, ledger.Withdrawal, amount, actor, description, "")
}

func (l *Ledger) post(ownerID, accountID string, typ ledger.TxType, amount decimal.Decimal, actor, description, ref string) (ledger.Account, ledger.Transaction, error) {
	if !amount.IsPositive() {
		return ledger.Account{}, ledger.Transaction{}, ErrBadAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, err := l.owned(ownerID, accountID)
	if err != nil {
		return ledger.Account{}, ledger.Transaction{}, err
	}
	delta := amount
	if !typ.Credit() {
		if a.Balance.LessThan(amount) {
			return ledger.Account{}, ledger.Transaction{}, ErrInsufficient
		}
		delta = amount.Neg()
	}
	now := l.clock()
	l.apply(a, delta, actor, now)
	tx := l.record(a, typ, amount, actor, description, ref, now)
	return *a, tx, nil
}

// Transfer moves amount atomically between two accounts of ownerID. The
// amount is applied unconverted on both sides, whatever the currencies.
func (l *Ledger) Transfer(ownerID, fromID, toID string, amount decimal.Decimal, actor string) (ledger.Account, ledger.Account, error) {
	if !amount.IsPositive() {
		return ledger.Account{}, ledger.Account{}, ErrBadAmount
	}
	if fromID == toID {
		return ledger.Account{}, ledger.Account{}, ErrSameAccount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	from, err := l.owned(ownerID, fromID)
	if err != nil {
		return ledger.Account{}, ledger.Account{}, err
	}
	to, err := l.owned(ownerID, toID)
	if err != nil {
		return ledger.Account{}, ledger.Account{}, err
	}
	if from.Balance.LessThan(amount) {
		return ledger.Account{}, ledger.Account{}, ErrInsufficient
	}
	now := l.clock()
	ref := newID("xfer")
	l.apply(from, amount.Neg(), actor, now)
	l.record(from, ledger.TransferOut, amount, actor, "Transfer to "+to.ID, ref, now)
	l.apply(to, amount, actor, now)
	l.record(to, ledger.TransferIn, amount, actor, "Transfer from "+from.ID, ref, now)
	return *from, *to, nil
}

// apply changes the balance and appends the next version. Caller holds mu.
func (l *Ledger) apply(a *ledger.Account, delta decimal.Decimal, actor string, now time.Time) {
	next := 1
	for i := range l.versions {
		v := &l.versions[i]
		if v.AccountID != a.ID {
			continue
		}
		v.IsCurrent = false
		if v.Version >= next {
			next = v.Version + 1
		}
	}
	a.Balance = a.Balance.Add(delta)
	a.ChangedBy = actor
	a.ChangedAt = now
	a.Version = strconv.Itoa(next)
	l.versions = append(l.versions, ledger.BalanceVersion{
		ID:           newID("ver"),
		AccountID:    a.ID,
		Version:      next,
		Balance:      a.Balance,
		ChangeAmount: delta,
		ChangedBy:    actor,
		Timestamp:    now,
		IsCurrent:    true,
	})
}

// record appends a transaction. Caller holds mu.
func (l *Ledger) record(a *ledger.Account, typ ledger.TxType, amount decimal.Decimal, actor, description, ref string, now time.Time) ledger.Transaction {
	tx := ledger.Transaction{
		ID:           newID("txn"),
		AccountID:    a.ID,
		Type:         typ,
		Amount:       amount,
		BalanceAfter: a.Balance,
		Actor:        actor,
		CreatedAt:    now,
		Description:  description,
		Reference:    ref,
	}
	l.transactions = append(l.transactions, tx)
	return tx
}

// Versions returns the history of accountID, highest version first.
func (l *Ledger) Versions(ownerID, accountID string) ([]ledger.BalanceVersion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.owned(ownerID, accountID); err != nil {
		return nil, err
	}
	var out []ledger.BalanceVersion
	for _, v := range l.versions {
		if v.AccountID == accountID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// Version returns one version by id, scoped to accounts of ownerID.
func (l *Ledger) Version(ownerID, versionID string) (ledger.BalanceVersion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, v := range l.versions {
		if v.ID != versionID {
			continue
		}
		if _, err := l.owned(ownerID, v.AccountID); err != nil {
			return ledger.BalanceVersion{}, ErrVersionNotFound
		}
		return v, nil
	}
	return ledger.BalanceVersion{}, ErrVersionNotFound
}

// Transactions filters, sorts newest first and slices one page.
func (l *Ledger) Transactions(ownerID, accountID string, q ledger.TransactionQuery) (ledger.TransactionPage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.owned(ownerID, accountID); err != nil {
		return ledger.TransactionPage{}, err
	}
	var filtered []ledger.Transaction
	for _, tx := range l.transactions {
		if tx.AccountID == accountID && q.Filters.Match(tx) {
			filtered = append(filtered, tx)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].CreatedAt.After(filtered[j].CreatedAt) })

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = ledger.DefaultPageSize
	}
	if size > ledger.MaxPageSize {
		size = ledger.MaxPageSize
	}
	items := []ledger.Transaction{}
	if page-1 < ledger.TotalPages(len(filtered), size) {
		start := (page - 1) * size
		end := min(start+size, len(filtered))
		items = append(items, filtered[start:end]...)
	}
	return ledger.TransactionPage{
		Items:      items,
		Total:      len(filtered),
		Page:       page,
		PageSize:   size,
		TotalPages: ledger.TotalPages(len(filtered), size),
	}, nil
}

package mock

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerview/internal/ledger"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type seedVersion struct {
	balance, change, by, at string
}

type seedAccount struct {
	id       string
	currency ledger.Currency
	created  string
	versions []seedVersion
}

type seedTx struct {
	id, account   string
	typ           ledger.TxType
	amount, after string
	at, desc      string
}

const demoName = "John Doe"

var seedAccounts = []seedAccount{
	{"acc-1", ledger.USD, "2024-01-15T10:00:00Z", []seedVersion{
		{"5000", "5000", "System", "2024-01-15T10:00:00Z"},
		{"7700", "2700", demoName, "2024-02-01T14:30:00Z"},
		{"7250", "-450", demoName, "2024-11-08T16:45:00Z"},
		{"10750", "3500", demoName, "2024-11-10T09:15:00Z"},
		{"9550", "-1200", demoName, "2024-11-15T10:20:00Z"},
		{"15000", "5000", demoName, "2024-11-17T14:30:00Z"},
	}},
	{"acc-2", ledger.EUR, "2024-02-20T11:00:00Z", []seedVersion{
		{"3000", "3000", "System", "2024-02-20T11:00:00Z"},
		{"6500.50", "3500.50", demoName, "2024-05-15T10:30:00Z"},
		{"5750.50", "-750", demoName, "2024-11-12T14:30:00Z"},
		{"8500.50", "2000", demoName, "2024-11-16T09:15:00Z"},
	}},
	{"acc-3", ledger.GBP, "2024-03-10T08:30:00Z", []seedVersion{
		{"5000", "5000", "System", "2024-03-10T08:30:00Z"},
		{"7750.25", "2750.25", demoName, "2024-06-20T12:00:00Z"},
		{"6250.25", "-1500", demoName, "2024-11-09T11:20:00Z"},
		{"12750.25", "5000", demoName, "2024-11-15T16:45:00Z"},
	}},
	{"acc-4", ledger.JPY, "2024-04-05T12:00:00Z", []seedVersion{
		{"1000000", "1000000", "System", "2024-04-05T12:00:00Z"},
		{"1350000", "350000", demoName, "2024-08-10T09:30:00Z"},
		{"1100000", "-250000", demoName, "2024-11-07T08:30:00Z"},
		{"1850000", "500000", demoName, "2024-11-14T11:20:00Z"},
	}},
}

var seedTransactions = []seedTx{
	{"txn-1", "acc-1", ledger.Deposit, "5000", "15000", "2024-11-17T14:30:00Z", "Salary deposit"},
	{"txn-2", "acc-1", ledger.Withdrawal, "1200", "10000", "2024-11-15T10:20:00Z", "Rent payment"},
	{"txn-3", "acc-1", ledger.Deposit, "3500", "11200", "2024-11-10T09:15:00Z", "Freelance payment"},
	{"txn-4", "acc-1", ledger.Withdrawal, "450", "7700", "2024-11-08T16:45:00Z", "Grocery shopping"},
	{"txn-5", "acc-2", ledger.Deposit, "2000", "8500.50", "2024-11-16T09:15:00Z", "Transfer from USD"},
	{"txn-6", "acc-2", ledger.Withdrawal, "750", "6500.50", "2024-11-12T14:30:00Z", "Online purchase"},
	{"txn-7", "acc-3", ledger.Deposit, "5000", "12750.25", "2024-11-15T16:45:00Z", "Investment return"},
	{"txn-8", "acc-3", ledger.Withdrawal, "1500", "7750.25", "2024-11-09T11:20:00Z", "Bill payment"},
	{"txn-9", "acc-4", ledger.Deposit, "500000", "1850000", "2024-11-14T11:20:00Z", "Business income"},
	{"txn-10", "acc-4", ledger.Withdrawal, "250000", "1350000", "2024-11-07T08:30:00Z", "Equipment purchase"},
}

// seed loads the demo user, four accounts with their version histories and
// a handful of transactions. Version ids are numbered across accounts.
func (l *Ledger) seed() {
	l.users[DemoUserID] = &userRecord{user: ledger.User{
		ID:        DemoUserID,
		Email:     "john.doe@example.com",
		Name:      demoName,
		CreatedAt: ts("2024-01-15T10:00:00Z"),
	}}

	verN := 0
	for _, sa := range seedAccounts {
		last := sa.versions[len(sa.versions)-1]
		a := &ledger.Account{
			ID:        sa.id,
			OwnerID:   DemoUserID,
			Currency:  sa.currency,
			Balance:   dec(last.balance),
			Active:    true,
			ChangedBy: last.by,
			ChangedAt: ts(last.at),
			Version:   strconv.Itoa(len(sa.versions)),
		}
		l.accounts = append(l.accounts, a)
		l.createdAt[a.ID] = ts(sa.created)
		for i, sv := range sa.versions {
			verN++
			l.versions = append(l.versions, ledger.BalanceVersion{
				ID:           "ver-" + strconv.Itoa(verN),
				AccountID:    a.ID,
				Version:      i + 1,
				Balance:      dec(sv.balance),
				ChangeAmount: dec(sv.change),
				ChangedBy:    sv.by,
				Timestamp:    ts(sv.at),
				IsCurrent:    i == len(sa.versions)-1,
			})
		}
	}

	for _, st := range seedTransactions {
		l.transactions = append(l.transactions, ledger.Transaction{
			ID:           st.id,
			AccountID:    st.account,
			Type:         st.typ,
			Amount:       dec(st.amount),
			BalanceAfter: dec(st.after),
			Actor:        demoName,
			CreatedAt:    ts(st.at),
			Description:  st.desc,
		})
	}
}

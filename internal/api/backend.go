package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/session"
)

// Backend is the canonical ledger contract. Implementations translate one
// wire variant; nothing above this interface sees wire shapes.
type Backend interface {
	session.Authenticator

	Accounts(ctx context.Context) ([]ledger.Account, error)
	Account(ctx context.Context, id string) (ledger.Account, error)
	CreateAccount(ctx context.Context, currency ledger.Currency, initial decimal.Decimal) (ledger.Account, error)
	Deposit(ctx context.Context, req ledger.MutationRequest) (ledger.MutationResult, error)
	Withdraw(ctx context.Context, req ledger.MutationRequest) (ledger.MutationResult, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.TransferResult, error)
	Versions(ctx context.Context, accountID string) ([]ledger.BalanceVersion, error)
	Version(ctx context.Context, versionID string) (ledger.BalanceVersion, error)
	Transactions(ctx context.Context, accountID string, q ledger.TransactionQuery) (ledger.TransactionPage, error)
}

// Variant names accepted by New.
const (
	VariantA = "a"
	VariantB = "b"
)

// New returns the adapter for variant over t.
func New(variant string, t *Transport) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(variant)) {
	case VariantA:
		return &variantA{t: t}, nil
	case VariantB, "":
		return &variantB{t: t}, nil
	}
	return nil, fmt.Errorf("api: unknown backend variant %q", variant)
}

func accountPath(id string, rest ...string) string {
	p := "/accounts/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func pageDefaults(q ledger.TransactionQuery) ledger.TransactionQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = ledger.DefaultPageSize
	}
	return q
}

package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/wire"
)

// variantB speaks the camelCase contract where deposits create transactions.
type variantB struct {
	t *Transport
}

func (v *variantB) Login(ctx context.Context, creds ledger.Credentials) (ledger.AuthResult, error) {
	var res wire.AuthB
	err := v.t.Do(ctx, http.MethodPost, "/auth/login", nil, wire.LoginRequestB{Email: creds.Identifier, Password: creds.Password}, &res)
	if err != nil {
		return ledger.AuthResult{}, err
	}
	out := ledger.AuthResult{Token: res.Token}
	if res.User != nil {
		u := res.User.Canonical()
		out.User = &u
	}
	return out, nil
}

func (v *variantB) Register(ctx context.Context, reg ledger.Registration) (ledger.User, error) {
	var res wire.AuthB
	err := v.t.Do(ctx, http.MethodPost, "/auth/register", nil, wire.RegisterRequestB{Name: reg.Username, Email: reg.Email, Password: reg.Password}, &res)
	if err != nil {
		return ledger.User{}, err
	}
	if res.User == nil {
		return ledger.User{Email: reg.Email, Name: reg.Username}, nil
	}
	return res.User.Canonical(), nil
}

func (v *variantB) Logout(ctx context.Context) error {
	return v.t.Do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

func (v *variantB) CurrentUser(ctx context.Context) (ledger.User, error) {
	var u wire.UserB
	if err := v.t.Do(ctx, http.MethodGet, "/auth/me", nil, nil, &u); err != nil {
		return ledger.User{}, err
	}
	return u.Canonical(), nil
}

func (v *variantB) Accounts(ctx context.Context) ([]ledger.Account, error) {
	var list []wire.AccountB
	if err := v.t.Do(ctx, http.MethodGet, "/accounts", nil, nil, &list); err != nil {
		return nil, err
	}
	out := make([]ledger.Account, 0, len(list))
	for _, a := range list {
		out = append(out, a.Canonical())
	}
	return out, nil
}

func (v *variantB) Account(ctx context.Context, id string) (ledger.Account, error) {
	var a wire.AccountB
	if err := v.t.Do(ctx, http.MethodGet, accountPath(id), nil, nil, &a); err != nil {
		return ledger.Account{}, err
	}
	return a.Canonical(), nil
}

func (v *variantB) CreateAccount(ctx context.Context, currency ledger.Currency, initial decimal.Decimal) (ledger.Account, error) {
	var a wire.AccountB
	body := wire.CreateAccountRequest{Currency: string(currency), InitialBalance: wire.NewAmount(initial)}
	if err := v.t.Do(ctx, http.MethodPost, "/accounts", nil, body, &a); err != nil {
		return ledger.Account{}, err
	}
	return a.Canonical(), nil
}

func (v *variantB) Deposit(ctx context.Context, req ledger.MutationRequest) (ledger.MutationResult, error) {
	return v.mutate(ctx, "deposit", req)
}

func (v *variantB) Withdraw(ctx context.Context, req ledger.MutationRequest) (ledger.MutationResult, error) {
	return v.mutate(ctx, "withdraw", req)
}

func (v *variantB) mutate(ctx context.Context, action string, req ledger.MutationRequest) (ledger.MutationResult, error) {
	var tx wire.TransactionB
	body := wire.MutationRequestB{Amount: wire.NewAmount(req.Amount), Actor: req.Actor, Description: req.Description}
	if err := v.t.Do(ctx, http.MethodPost, accountPath(req.AccountID, "transactions", action), nil, body, &tx); err != nil {
		return ledger.MutationResult{}, err
	}
	c := tx.Canonical()
	return ledger.MutationResult{NewBalance: c.BalanceAfter, Transaction: &c}, nil
}

func (v *variantB) Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.TransferResult, error) {
	var res wire.TransferB
	body := wire.TransferRequestB{FromAccountID: req.FromAccountID, ToAccountID: req.ToAccountID, Amount: wire.NewAmount(req.Amount)}
	if err := v.t.Do(ctx, http.MethodPost, "/accounts/transfer", nil, body, &res); err != nil {
		return ledger.TransferResult{}, err
	}
	return ledger.TransferResult{From: res.FromAccount.Canonical(), To: res.ToAccount.Canonical()}, nil
}

func (v *variantB) Versions(ctx context.Context, accountID string) ([]ledger.BalanceVersion, error) {
	var list []wire.BalanceVersionB
	if err := v.t.Do(ctx, http.MethodGet, accountPath(accountID, "versions"), nil, nil, &list); err != nil {
		return nil, err
	}
	out := make([]ledger.BalanceVersion, 0, len(list))
	for _, bv := range list {
		out = append(out, bv.Canonical())
	}
	return out, nil
}

func (v *variantB) Version(ctx context.Context, versionID string) (ledger.BalanceVersion, error) {
	var bv wire.BalanceVersionB
	if err := v.t.Do(ctx, http.MethodGet, "/versions/"+url.PathEscape(versionID), nil, nil, &bv); err != nil {
		return ledger.BalanceVersion{}, err
	}
	return bv.Canonical(), nil
}

func (v *variantB) Transactions(ctx context.Context, accountID string, q ledger.TransactionQuery) (ledger.TransactionPage, error) {
	q = pageDefaults(q)
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	if q.Filters.Type != "" {
		params.Set("type", wire.TxTypeB(q.Filters.Type))
	}
	if !q.Filters.Start.IsZero() {
		params.Set("startDate", q.Filters.Start.UTC().Format(time.RFC3339))
	}
	if !q.Filters.End.IsZero() {
		params.Set("endDate", q.Filters.End.UTC().Format(time.RFC3339))
	}
	if q.Filters.Actor != "" {
		params.Set("actor", q.Filters.Actor)
	}

	var page wire.PageB
	if err := v.t.Do(ctx, http.MethodGet, accountPath(accountID, "transactions"), params, nil, &page); err != nil {
		return ledger.TransactionPage{}, err
	}
	out := ledger.TransactionPage{
		Items:    make([]ledger.Transaction, 0, len(page.Items)),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, tx := range page.Items {
		out.Items = append(out.Items, tx.Canonical())
	}
	if out.Page < 1 {
		out.Page = q.Page
	}
	if out.PageSize < 1 {
		out.PageSize = q.PageSize
	}
	out.TotalPages = ledger.TotalPages(out.Total, out.PageSize)
	return out, nil
}

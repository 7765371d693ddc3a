package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/wire"
)

// variantA speaks the snake_case contract where deposits mutate the account.
type variantA struct {
	t *Transport
}

func (v *variantA) Login(ctx context.Context, creds ledger.Credentials) (ledger.AuthResult, error) {
	var tok wire.TokenA
	err := v.t.Do(ctx, http.MethodPost, "/auth/login", nil, wire.LoginRequestA{Username: creds.Identifier, Password: creds.Password}, &tok)
	if err != nil {
		return ledger.AuthResult{}, err
	}
	return ledger.AuthResult{Token: tok.AccessToken}, nil
}

func (v *variantA) Register(ctx context.Context, reg ledger.Registration) (ledger.User, error) {
	var u wire.UserA
	err := v.t.Do(ctx, http.MethodPost, "/auth/register", nil, wire.RegisterRequestA{Username: reg.Username, Email: reg.Email, Password: reg.Password}, &u)
	if err != nil {
		return ledger.User{}, err
	}
	return u.Canonical(), nil
}

// Logout is local only; the token is stateless.
func (v *variantA) Logout(context.Context) error { return nil }

func (v *variantA) CurrentUser(ctx context.Context) (ledger.User, error) {
	var u wire.UserA
	if err := v.t.Do(ctx, http.MethodGet, "/auth/me", nil, nil, &u); err != nil {
		return ledger.User{}, err
	}
	return u.Canonical(), nil
}

func (v *variantA) Accounts(ctx context.Context) ([]ledger.Account, error) {
	var list []wire.AccountA
	if err := v.t.Do(ctx, http.MethodGet, "/accounts", nil, nil, &list); err != nil {
		return nil, err
	}
	out := make([]ledger.Account, 0, len(list))
	for _, a := range list {
		out = append(out, a.Canonical())
	}
	return out, nil
}

func (v *variantA) Account(ctx context.Context, id string) (ledger.Account, error) {
	var a wire.AccountA
	if err := v.t.Do(ctx, http.MethodGet, accountPath(id), nil, nil, &a); err != nil {
		return ledger.Account{}, err
	}
	return a.Canonical(), nil
}

func (v *variantA) CreateAccount(ctx context.Context, currency ledger.Currency, initial decimal.Decimal) (ledger.Account, error) {
	var a wire.AccountA
	body := wire.CreateAccountRequest{Currency: string(currency), InitialBalance: wire.NewAmount(initial)}
	if err := v.t.Do(ctx, http.MethodPost, "/accounts", nil, body, &a); err != nil {
		return ledger.Account{}, err
	}
	return a.Canonical(), nil
}

func (v *variantA) Deposit(ctx context.Context, req ledger.MutationRequest) (ledger.MutationResult, error) {
	return v.mutate(ctx, "deposit", req)
}

func (v *variantA) Withdraw(ctx context.Context, req ledger.MutationRequest) (ledger.MutationResult, error) {
	return v.mutate(ctx, "withdraw", req)
}

func (v *variantA) mutate(ctx context.Context, action string, req ledger.MutationRequest) (ledger.MutationResult, error) {
	var a wire.AccountA
	if err := v.t.Do(ctx, http.MethodPost, accountPath(req.AccountID, action), nil, wire.MutationRequestA{Amount: wire.NewAmount(req.Amount)}, &a); err != nil {
		return ledger.MutationResult{}, err
	}
	acct := a.Canonical()
	return ledger.MutationResult{NewBalance: acct.Balance, Account: &acct}, nil
}

func (v *variantA) Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.TransferResult, error) {
	var res wire.TransferA
	body := wire.TransferRequestA{FromAccountID: req.FromAccountID, ToAccountID: req.ToAccountID, Amount: wire.NewAmount(req.Amount)}
	if err := v.t.Do(ctx, http.MethodPost, "/accounts/transfer", nil, body, &res); err != nil {
		return ledger.TransferResult{}, err
	}
	return ledger.TransferResult{From: res.FromAccount.Canonical(), To: res.ToAccount.Canonical()}, nil
}

func (v *variantA) Versions(ctx context.Context, accountID string) ([]ledger.BalanceVersion, error) {
	var snaps []wire.AccountA
	if err := v.t.Do(ctx, http.MethodGet, accountPath(accountID, "versions"), nil, nil, &snaps); err != nil {
		return nil, err
	}
	return wire.VersionsFromSnapshots(snaps), nil
}

// Version has no endpoint in this contract; callers answer from their cache.
func (v *variantA) Version(_ context.Context, versionID string) (ledger.BalanceVersion, error) {
	return ledger.BalanceVersion{}, ledger.Errorf(ledger.KindNotFound, "version", "Version %s not found", versionID)
}

func (v *variantA) Transactions(ctx context.Context, accountID string, q ledger.TransactionQuery) (ledger.TransactionPage, error) {
	q = pageDefaults(q)
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	if q.Filters.Type != "" {
		params.Set("transaction_type", wire.TxTypeA(q.Filters.Type))
	}
	if !q.Filters.Start.IsZero() {
		params.Set("start_date", q.Filters.Start.UTC().Format(time.RFC3339))
	}
	if !q.Filters.End.IsZero() {
		params.Set("end_date", q.Filters.End.UTC().Format(time.RFC3339))
	}
	if q.Filters.Actor != "" {
		params.Set("actor_id", q.Filters.Actor)
	}

	var raw json.RawMessage
	if err := v.t.Do(ctx, http.MethodGet, accountPath(accountID, "transactions"), params, nil, &raw); err != nil {
		return ledger.TransactionPage{}, err
	}

	// Older deployments return the server's page as a bare array.
	var page wire.PageA
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &page.Items); err != nil {
			return ledger.TransactionPage{}, &ledger.Error{Kind: ledger.KindUnknown, Op: "transactions", Message: "unexpected response from server", Err: err}
		}
		page.Page = q.Page
		page.PageSize = q.PageSize
		page.Total = bareArrayTotal(q, len(page.Items))
	} else if len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return ledger.TransactionPage{}, &ledger.Error{Kind: ledger.KindUnknown, Op: "transactions", Message: "unexpected response from server", Err: err}
		}
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

// bareArrayTotal estimates the total of a page that came without one. The
// pages before the requested one are assumed full, and a full page implies
// at least one more item, so the pager can step forward until a short page
// arrives.
func bareArrayTotal(q ledger.TransactionQuery, n int) int {
	if n == 0 && q.Page > 1 {
		// an empty page past the end: the previous page was the last one
		return (q.Page - 1) * q.PageSize
	}
	total := (q.Page-1)*q.PageSize + n
	if n >= q.PageSize {
		total++
	}
	return total
}

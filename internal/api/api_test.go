package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/mock"
	"github.com/jask/ledgerview/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRouter struct {
	mu        sync.Mutex
	route     string
	redirects int
}

func (r *fakeRouter) Route() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route
}

func (r *fakeRouter) RedirectToLogin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects++
	r.route = LoginRoute
}

func (r *fakeRouter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redirects
}

type harness struct {
	backend Backend
	state   *session.State
	store   *session.MemStore
	router  *fakeRouter
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newHarness(t *testing.T, variant string, seed map[string]string) harness {
	t.Helper()
	srv := mock.NewServer(mock.NewSeeded(nil), mock.NewTokens("api-test", time.Hour), mock.Options{Variant: variant, Logger: discard()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	store := session.NewMemStore(seed)
	state, err := session.Open(context.Background(), store, discard())
	require.NoError(t, err)
	tr := NewTransport(ts.URL+mock.DefaultPrefix, 2*time.Second, nil, state, discard())
	router := &fakeRouter{route: "/dashboard"}
	tr.Router = router
	b, err := New(variant, tr)
	require.NoError(t, err)
	return harness{backend: b, state: state, store: store, router: router}
}

func (h harness) login(t *testing.T, ctx context.Context) {
	t.Helper()
	res, err := h.backend.Login(ctx, ledger.Credentials{Identifier: "john.doe@example.com", Password: "password"})
	require.NoError(t, err)
	require.NoError(t, h.state.SetToken(ctx, res.Token))
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestVariantsAgreeOnCanonicalShapes(t *testing.T) {
	t.Parallel()
	for _, variant := range []string{VariantA, VariantB} {
		t.Run(variant, func(t *testing.T) {
			t.Parallel()
			ctx := testCtx(t)
			h := newHarness(t, variant, nil)
			h.login(t, ctx)

			me, err := h.backend.CurrentUser(ctx)
			require.NoError(t, err)
			require.Equal(t, "john.doe@example.com", me.Email)

			accts, err := h.backend.Accounts(ctx)
			require.NoError(t, err)
			require.Len(t, accts, 4)
			require.Equal(t, ledger.JPY, accts[3].Currency)
			require.True(t, accts[0].Active)

			res, err := h.backend.Deposit(ctx, ledger.MutationRequest{AccountID: "acc-2", Amount: decimal.RequireFromString("99.50")})
			require.NoError(t, err)
			require.Equal(t, "8600", res.NewBalance.String())

			versions, err := h.backend.Versions(ctx, "acc-2")
			require.NoError(t, err)
			require.Len(t, versions, 5)
			require.Equal(t, 5, versions[0].Version)
			require.True(t, versions[0].IsCurrent)
			require.Equal(t, "99.5", versions[0].ChangeAmount.String())
			require.Equal(t, "3000", versions[4].ChangeAmount.String())

			page, err := h.backend.Transactions(ctx, "acc-2", ledger.TransactionQuery{Page: 1, PageSize: 2})
			require.NoError(t, err)
			require.Equal(t, 3, page.Total)
			require.Equal(t, 2, page.TotalPages)
			require.Equal(t, ledger.Deposit, page.Items[0].Type)
			require.Equal(t, "99.5", page.Items[0].Amount.String())

			withdrawals, err := h.backend.Transactions(ctx, "acc-2", ledger.TransactionQuery{Filters: ledger.TransactionFilters{Type: ledger.Withdrawal}})
			require.NoError(t, err)
			require.Equal(t, 1, withdrawals.Total)
		})
	}
}

func TestVersionLookupByVariant(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)

	b := newHarness(t, VariantB, nil)
	b.login(t, ctx)
	v, err := b.backend.Version(ctx, "ver-3")
	require.NoError(t, err)
	require.Equal(t, "acc-1", v.AccountID)
	require.Equal(t, "-450", v.ChangeAmount.String())

	a := newHarness(t, VariantA, nil)
	a.login(t, ctx)
	_, err = a.backend.Version(ctx, "acc-1@3")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestServerDetailReplacesMessage(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	h := newHarness(t, VariantB, nil)
	h.login(t, ctx)

	_, err := h.backend.Withdraw(ctx, ledger.MutationRequest{AccountID: "acc-1", Amount: decimal.NewFromInt(1_000_000)})
	require.ErrorIs(t, err, ledger.ErrConflict)
	require.Equal(t, "Insufficient balance", err.Error())

	var le *ledger.Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, http.StatusBadRequest, le.Status)

	_, err = h.backend.Account(ctx, "acc-404")
	require.ErrorIs(t, err, ledger.ErrNotFound)
	require.Equal(t, "Account not found", err.Error())
}

func TestUnauthorizedPurgesOnceAndRedirects(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	h := newHarness(t, VariantB, map[string]string{
		session.KeyAccessToken:   "expired-token",
		session.KeyActiveAccount: "acc-1",
	})

	errs := make(chan error, 4)
	for i := 0; i < cap(errs); i++ {
		go func() {
			_, err := h.backend.Accounts(ctx)
			errs <- err
		}()
	}
	for i := 0; i < cap(errs); i++ {
		require.ErrorIs(t, <-errs, ledger.ErrAuth)
	}

	require.Empty(t, h.state.Token())
	require.Empty(t, h.state.ActiveAccount())
	require.Equal(t, 1, h.store.DeleteCount(session.KeyAccessToken))
	require.Equal(t, 1, h.store.DeleteCount(session.KeyActiveAccount))
	require.Equal(t, 1, h.router.count())
}

func TestUnauthorizedOnLoginRouteDoesNotRedirect(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	h := newHarness(t, VariantA, map[string]string{session.KeyAccessToken: "stale"})
	h.router.route = LoginRoute

	_, err := h.backend.CurrentUser(ctx)
	require.ErrorIs(t, err, ledger.ErrAuth)
	require.Empty(t, h.state.Token())
	require.Zero(t, h.router.count())

	_, err = h.backend.Login(ctx, ledger.Credentials{Identifier: "demo", Password: "wrong"})
	require.ErrorIs(t, err, ledger.ErrAuth)
	require.Equal(t, "Invalid credentials", err.Error())
	require.Equal(t, 1, h.store.DeleteCount(session.KeyAccessToken))
}

func TestTimeoutIsTransportError(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)

	tr := NewTransport(slow.URL, 50*time.Millisecond, nil, nil, discard())
	b, err := New(VariantB, tr)
	require.NoError(t, err)
	_, err = b.Accounts(ctx)
	require.ErrorIs(t, err, ledger.ErrTransport)
	require.Equal(t, "The request timed out. Please try again.", err.Error())
}

func TestServerErrorWithoutDetailKeepsStatus(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(broken.Close)

	b, err := New(VariantA, NewTransport(broken.URL, time.Second, nil, nil, discard()))
	require.NoError(t, err)
	_, err = b.Accounts(ctx)
	require.ErrorIs(t, err, ledger.ErrTransport)
	var le *ledger.Error
	require.ErrorAs(t, err, &le)
	require.Equal(t, http.StatusBadGateway, le.Status)
}

func TestInProcessMockUsesSameTransport(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	srv := mock.NewServer(mock.NewSeeded(nil), nil, mock.Options{Logger: discard()})
	state, err := session.Open(ctx, session.NewMemStore(nil), discard())
	require.NoError(t, err)
	tr := NewTransport("http://mock.local"+mock.DefaultPrefix, time.Second, mock.RoundTripper{Handler: srv.Handler()}, state, discard())
	b, err := New("", tr)
	require.NoError(t, err)

	res, err := b.Login(ctx, ledger.Credentials{Identifier: "demo", Password: "Demo123!"})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	require.NoError(t, state.SetToken(ctx, res.Token))

	from, err := b.CreateAccount(ctx, ledger.GBP, decimal.NewFromInt(10))
	require.NoError(t, err)
	out, err := b.Transfer(ctx, ledger.TransferRequest{FromAccountID: "acc-3", ToAccountID: from.ID, Amount: decimal.RequireFromString("0.25")})
	require.NoError(t, err)
	require.Equal(t, "12750", out.From.Balance.String())
	require.Equal(t, "10.25", out.To.Balance.String())

	require.NoError(t, b.Logout(ctx))
	_, err = b.CurrentUser(ctx)
	require.ErrorIs(t, err, ledger.ErrAuth)
}

func TestBareArrayPageKeepsPagerConsistent(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	const row = `{"entity_id":"txn-%d","account_id":"acc-1","transaction_type":"deposit","amount":5,"balance_after":5,"actor_id":"user-1","created_on":"2024-11-17T14:30:00Z"}`
	// three pages of two, the last one short
	counts := map[int]int{1: 2, 2: 2, 3: 1}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		rows := make([]string, 0, counts[page])
		for i := 0; i < counts[page]; i++ {
			rows = append(rows, strings.Replace(row, "%d", strconv.Itoa(page*10+i), 1))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "["+strings.Join(rows, ",")+"]")
	}))
	t.Cleanup(srv.Close)

	b, err := New(VariantA, NewTransport(srv.URL, time.Second, nil, nil, discard()))
	require.NoError(t, err)

	for _, tc := range []struct {
		page, items, totalPages int
	}{
		{page: 1, items: 2, totalPages: 2},
		{page: 2, items: 2, totalPages: 3},
		{page: 3, items: 1, totalPages: 3},
		{page: 4, items: 0, totalPages: 3},
	} {
		got, err := b.Transactions(ctx, "acc-1", ledger.TransactionQuery{Page: tc.page, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, got.Items, tc.items, "page %d", tc.page)
		require.Equal(t, tc.page, got.Page)
		require.Equal(t, tc.totalPages, got.TotalPages, "page %d", tc.page)
		if tc.items > 0 {
			require.LessOrEqual(t, got.Page, got.TotalPages)
		}
	}
}

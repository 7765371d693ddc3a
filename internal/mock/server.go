package mock

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/wire"
)

// Variant names, matching the client's backend selector.
const (
	VariantA = "a"
	VariantB = "b"
)

// DefaultPrefix is where the API is mounted.
const DefaultPrefix = "/api/v1"

// Options configures a Server.
type Options struct {
	Variant    string
	Prefix     string
	LatencyMin time.Duration
	LatencyMax time.Duration
	Logger     *slog.Logger
}

// Server exposes a Ledger over HTTP in one of the two wire contracts.
type Server struct {
	Ledger *Ledger
	Tokens *Tokens

	opts    Options
	engine  *gin.Engine
	mu      sync.Mutex
	revoked map[string]struct{}
}

// NewServer builds the gin engine for l.
func NewServer(l *Ledger, tokens *Tokens, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	opts.Variant = strings.ToLower(strings.TrimSpace(opts.Variant))
	if opts.Variant != VariantA {
		opts.Variant = VariantB
	}
	if tokens == nil {
		tokens = NewTokens("", 0)
	}
	s := &Server{Ledger: l, Tokens: tokens, opts: opts, revoked: map[string]struct{}{}}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Variant reports which contract is served.
func (s *Server) Variant() string { return s.opts.Variant }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests(), s.latency())

	api := r.Group(s.opts.Prefix)
	api.POST("/auth/login", s.login)
	api.POST("/auth/register", s.register)

	authed := api.Group("", s.requireAuth)
	authed.GET("/auth/me", s.me)
	authed.POST("/auth/logout", s.logout)
	authed.GET("/accounts", s.listAccounts)
	authed.POST("/accounts", s.createAccount)
	authed.POST("/accounts/transfer", s.transfer)
	authed.GET("/accounts/:id", s.getAccount)
	authed.GET("/accounts/:id/versions", s.versions)
	authed.GET("/accounts/:id/transactions", s.transactions)
	if s.opts.Variant == VariantA {
		authed.POST("/accounts/:id/deposit", s.mutate(ledger.Deposit))
		authed.POST("/accounts/:id/withdraw", s.mutate(ledger.Withdrawal))
	} else {
		authed.POST("/accounts/:id/transactions/deposit", s.mutate(ledger.Deposit))
		authed.POST("/accounts/:id/transactions/withdraw", s.mutate(ledger.Withdrawal))
		authed.GET("/versions/:id", s.version)
	}
	return r
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.opts.Logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func (s *Server) latency() gin.HandlerFunc {
	return func(c *gin.Context) {
		lo, hi := s.opts.LatencyMin, s.opts.LatencyMax
		if hi <= 0 {
			c.Next()
			return
		}
		d := lo
		if hi > lo {
			d += time.Duration(rand.Int64N(int64(hi - lo)))
		}
		select {
		case <-time.After(d):
		case <-c.Request.Context().Done():
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}
	raw := strings.TrimSpace(parts[1])
	s.mu.Lock()
	_, revoked := s.revoked[raw]
	s.mu.Unlock()
	userID, err := s.Tokens.Parse(raw)
	if err != nil || revoked {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": errBadToken.Error()})
		return
	}
	u, err := s.Ledger.User(userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "User not found"})
		return
	}
	c.Set("user", u)
	c.Set("token", raw)
	c.Next()
}

func currentUser(c *gin.Context) ledger.User {
	u, _ := c.MustGet("user").(ledger.User)
	return u
}

// fail writes err as a {"detail": ...} body with a matching status.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrVersionNotFound), errors.Is(err, ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, ErrBadAmount), errors.Is(err, ErrInsufficient), errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrUnsupportedCur), errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrRegistrationFields), errors.Is(err, ErrWeakPassword):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.opts.Logger.Error("handler failed", "path", c.Request.URL.Path, "err", err)
		c.JSON(status, gin.H{"detail": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}

// badBody reports an undecodable request. Variant A answers with a list of
// field errors.
func (s *Server) badBody(c *gin.Context, err error) {
	if s.opts.Variant == VariantA {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"loc": []string{"body"}, "msg": "Invalid request body"}}})
		return
	}
	s.opts.Logger.Debug("bad request body", "err", err)
	c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
}

func (s *Server) login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badBody(c, err)
		return
	}
	id := body.Email
	if id == "" {
		id = body.Username
	}
	u, err := s.Ledger.Authenticate(id, body.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	tok, err := s.Tokens.Issue(u.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.opts.Variant == VariantA {
		c.JSON(http.StatusOK, wire.TokenA{AccessToken: tok, TokenType: "bearer"})
		return
	}
	ub := wire.UserBFrom(u)
	c.JSON(http.StatusOK, wire.AuthB{Token: tok, User: &ub})
}

func (s *Server) register(c *gin.Context) {
	var body struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badBody(c, err)
		return
	}
	name := body.Name
	if name == "" {
		name = body.Username
	}
	u, err := s.Ledger.Register(name, body.Email, body.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.opts.Variant == VariantA {
		c.JSON(http.StatusCreated, wire.UserAFrom(u))
		return
	}
	tok, err := s.Tokens.Issue(u.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ub := wire.UserBFrom(u)
	c.JSON(http.StatusCreated, wire.AuthB{Token: tok, User: &ub})
}

func (s *Server) me(c *gin.Context) {
	u := currentUser(c)
	if s.opts.Variant == VariantA {
		c.JSON(http.StatusOK, wire.UserAFrom(u))
		return
	}
	c.JSON(http.StatusOK, wire.UserBFrom(u))
}

func (s *Server) logout(c *gin.Context) {
	s.mu.Lock()
	s.revoked[c.GetString("token")] = struct{}{}
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) account(a ledger.Account) any {
	if s.opts.Variant == VariantA {
		return wire.AccountAFrom(a)
	}
	return wire.AccountBFrom(a, wire.NewTime(s.Ledger.CreatedAt(a.ID)))
}

func (s *Server) listAccounts(c *gin.Context) {
	list := s.Ledger.Accounts(currentUser(c).ID)
	out := make([]any, 0, len(list))
	for _, a := range list {
		out = append(out, s.account(a))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getAccount(c *gin.Context) {
	a, err := s.Ledger.Account(currentUser(c).ID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.account(a))
}

func (s *Server) createAccount(c *gin.Context) {
	var body wire.CreateAccountRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badBody(c, err)
		return
	}
	u := currentUser(c)
	a, err := s.Ledger.CreateAccount(u.ID, ledger.Currency(strings.ToUpper(body.Currency)), body.InitialBalance.Decimal, s.actor(u, ""))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.account(a))
}

// actor is the name recorded on versions and transactions. Variant A records
// the user id.
func (s *Server) actor(u ledger.User, requested string) string {
	if s.opts.Variant == VariantA {
		return u.ID
	}
	if requested != "" {
		return requested
	}
	return u.Name
}

func (s *Server) mutate(typ ledger.TxType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body wire.MutationRequestB
		if err := c.ShouldBindJSON(&body); err != nil {
			s.badBody(c, err)
			return
		}
		u := currentUser(c)
		post := s.Ledger.Deposit
		if typ == ledger.Withdrawal {
			post = s.Ledger.Withdraw
		}
		a, tx, err := post(u.ID, c.Param("id"), body.Amount.Decimal, s.actor(u, body.Actor), body.Description)
		if err != nil {
			s.fail(c, err)
			return
		}
		if s.opts.Variant == VariantA {
			c.JSON(http.StatusOK, wire.AccountAFrom(a))
			return
		}
		c.JSON(http.StatusCreated, wire.TransactionBFrom(tx))
	}
}

func (s *Server) transfer(c *gin.Context) {
	var body struct {
		FromA  string      `json:"from_account_id"`
		ToA    string      `json:"to_account_id"`
		FromB  string      `json:"fromAccountId"`
		ToB    string      `json:"toAccountId"`
		Amount wire.Amount `json:"amount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badBody(c, err)
		return
	}
	from, to := body.FromB, body.ToB
	if from == "" {
		from, to = body.FromA, body.ToA
	}
	u := currentUser(c)
	fa, ta, err := s.Ledger.Transfer(u.ID, from, to, body.Amount.Decimal, s.actor(u, ""))
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.opts.Variant == VariantA {
		c.JSON(http.StatusOK, wire.TransferA{FromAccount: wire.AccountAFrom(fa), ToAccount: wire.AccountAFrom(ta)})
		return
	}
	c.JSON(http.StatusOK, wire.TransferB{
		FromAccount: wire.AccountBFrom(fa, wire.NewTime(s.Ledger.CreatedAt(fa.ID))),
		ToAccount:   wire.AccountBFrom(ta, wire.NewTime(s.Ledger.CreatedAt(ta.ID))),
	})
}

func (s *Server) versions(c *gin.Context) {
	u := currentUser(c)
	id := c.Param("id")
	list, err := s.Ledger.Versions(u.ID, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.opts.Variant == VariantA {
		a, err := s.Ledger.Account(u.ID, id)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, wire.SnapshotsFromVersions(a, list))
		return
	}
	out := make([]wire.BalanceVersionB, 0, len(list))
	for _, v := range list {
		out = append(out, wire.BalanceVersionBFrom(v))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) version(c *gin.Context) {
	v, err := s.Ledger.Version(currentUser(c).ID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wire.BalanceVersionBFrom(v))
}

// query reads the first non-empty of the given parameter spellings.
func query(c *gin.Context, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(c.Query(n)); v != "" {
			return v
		}
	}
	return ""
}

func queryTime(c *gin.Context, names ...string) time.Time {
	v := query(c, names...)
	if v == "" {
		return time.Time{}
	}
	var t wire.Time
	if err := t.UnmarshalJSON([]byte(strconv.Quote(v))); err != nil {
		return time.Time{}
	}
	return t.Time
}

func (s *Server) transactions(c *gin.Context) {
	q := ledger.TransactionQuery{}
	q.Page, _ = strconv.Atoi(query(c, "page"))
	q.PageSize, _ = strconv.Atoi(query(c, "page_size", "pageSize"))
	if raw := query(c, "transaction_type", "type"); raw != "" {
		if t, ok := wire.ParseTxType(raw); ok {
			q.Filters.Type = t
		}
	}
	q.Filters.Start = queryTime(c, "start_date", "startDate")
	q.Filters.End = queryTime(c, "end_date", "endDate")
	q.Filters.Actor = query(c, "actor_id", "actor")

	page, err := s.Ledger.Transactions(currentUser(c).ID, c.Param("id"), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.opts.Variant == VariantA {
		out := wire.PageA{Items: make([]wire.TransactionA, 0, len(page.Items)), Total: page.Total, Page: page.Page, PageSize: page.PageSize, TotalPages: page.TotalPages}
		for _, tx := range page.Items {
			out.Items = append(out.Items, wire.TransactionAFrom(tx))
		}
		c.JSON(http.StatusOK, out)
		return
	}
	out := wire.PageB{Items: make([]wire.TransactionB, 0, len(page.Items)), Total: page.Total, Page: page.Page, PageSize: page.PageSize, TotalPages: page.TotalPages}
	for _, tx := range page.Items {
		out.Items = append(out.Items, wire.TransactionBFrom(tx))
	}
	c.JSON(http.StatusOK, out)
}

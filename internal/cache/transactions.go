package cache

import (
	"context"
	"sync"

	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/validate"
)

// TransactionSource is the backend surface used by Transactions.
type TransactionSource interface {
	Transactions(ctx context.Context, accountID string, q ledger.TransactionQuery) (ledger.TransactionPage, error)
}

// Transactions holds one server-sliced page of an account's transactions
// together with the filter and pagination state that produced it.
type Transactions struct {
	Source TransactionSource

	mu        sync.Mutex
	accountID string
	filters   ledger.TransactionFilters
	page      int
	pageSize  int
	result    ledger.TransactionPage
	t         tracker
}

// NewTransactions returns an unscoped cache. A pageSize outside the accepted
// range falls back to the default.
func NewTransactions(src TransactionSource, pageSize int) *Transactions {
	if validate.PageSize(pageSize) != nil {
		pageSize = ledger.DefaultPageSize
	}
	return &Transactions{Source: src, page: 1, pageSize: pageSize}
}

// Scope returns the account the cache currently holds.
func (c *Transactions) Scope() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// SetScope switches to accountID. Filters are kept; the page resets.
func (c *Transactions) SetScope(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopeLocked(accountID)
}

func (c *Transactions) scopeLocked(accountID string) {
	if c.accountID == accountID {
		return
	}
	c.accountID = accountID
	c.page = 1
	c.result = ledger.TransactionPage{}
	c.t.invalidate()
}

// Filters returns the current filter state.
func (c *Transactions) Filters() ledger.TransactionFilters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// SetFilters replaces the filters and returns to page 1.
func (c *Transactions) SetFilters(f ledger.TransactionFilters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = f
	c.page = 1
	c.t.invalidate()
}

// ClearFilters removes every filter and returns to page 1.
func (c *Transactions) ClearFilters() {
	c.SetFilters(ledger.TransactionFilters{})
}

// SetPageSize changes the page size and returns to page 1.
func (c *Transactions) SetPageSize(n int) error {
	if err := validate.PageSize(n); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageSize = n
	c.page = 1
	c.t.invalidate()
	return nil
}

// PageSize returns the current page size.
func (c *Transactions) PageSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageSize
}

// SetPage moves to page n (1-based).
func (c *Transactions) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page != n {
		c.page = n
		c.t.invalidate()
	}
}

// CurrentPage returns the page the next fetch will request.
func (c *Transactions) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// NextPage advances when a later page exists.
func (c *Transactions) NextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page >= c.result.TotalPages {
		return false
	}
	c.page++
	c.t.invalidate()
	return true
}

// PrevPage steps back when not on the first page.
func (c *Transactions) PrevPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page <= 1 {
		return false
	}
	c.page--
	c.t.invalidate()
	return true
}

// Query returns the request the next fetch will send.
func (c *Transactions) Query() ledger.TransactionQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.TransactionQuery{Filters: c.filters, Page: c.page, PageSize: c.pageSize}
}

// FetchTransactions sends the current filters and page for accountID and
// replaces the cached page with the response. Changing the filters or the
// page supersedes fetches already in flight.
func (c *Transactions) FetchTransactions(ctx context.Context, accountID string) (ledger.TransactionPage, error) {
	c.mu.Lock()
	c.scopeLocked(accountID)
	q := ledger.TransactionQuery{Filters: c.filters, Page: c.page, PageSize: c.pageSize}
	gen := c.t.begin()
	c.mu.Unlock()

	page, err := c.Source.Transactions(ctx, accountID, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.t.finish(gen, err) || err != nil {
		return page, err
	}
	page.TotalPages = ledger.TotalPages(page.Total, q.PageSize)
	page.Items = append([]ledger.Transaction(nil), page.Items...)
	c.result = page
	return page, nil
}

// Page returns the cached page.
func (c *Transactions) Page() ledger.TransactionPage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.result
	out.Items = append([]ledger.Transaction(nil), c.result.Items...)
	return out
}

// Loading reports whether a fetch is in flight.
func (c *Transactions) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.loading()
}

// Err returns the last error of this scope.
func (c *Transactions) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.err
}

// Reset drops the scope and its page.
func (c *Transactions) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopeLocked("")
	c.t.invalidate()
}

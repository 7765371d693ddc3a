// Package cache holds the client-side view state derived from the ledger API:
// the account list with the active-account pointer, the balance and version
// history of one account, and a filtered page of its transactions.
//
// Caches are only ever written from a server response. Every fetch takes a
// request generation; a response whose generation has been superseded is
// discarded, so overlapping fetches resolve to the last one issued.
package cache

import "github.com/jask/ledgerview/internal/ledger"

// tracker is the per-operation generation counter, loading count and error
// slot of one cache scope. Callers hold the owning cache's mutex.
type tracker struct {
	gen      uint64
	inflight int
	err      string
}

func (t *tracker) begin() uint64 {
	t.gen++
	t.inflight++
	return t.gen
}

// finish records the outcome of request gen and reports whether it is still
// the latest, that is whether its result may be written.
func (t *tracker) finish(gen uint64, err error) bool {
	if t.inflight > 0 {
		t.inflight--
	}
	if gen != t.gen {
		return false
	}
	if err != nil {
		t.err = ledger.Message(err, "Request failed")
	} else {
		t.err = ""
	}
	return true
}

// invalidate supersedes every request in flight.
func (t *tracker) invalidate() {
	t.gen++
	t.err = ""
}

func (t *tracker) loading() bool { return t.inflight > 0 }

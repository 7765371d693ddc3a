// Package notify is the transient user-facing message queue. Messages
// expire on their own timers; dismissing one early stops its timer.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity is the closed set of message classes.
type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Info    Severity = "info"
	Warning Severity = "warning"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case Success, Error, Info, Warning:
		return true
	}
	return false
}

const (
	DefaultTTL      = 5 * time.Second
	DefaultMaxQueue = 5
)

// Notification is one queued message. A TTL of zero or less never expires.
type Notification struct {
	ID        string
	Severity  Severity
	Message   string
	TTL       time.Duration
	CreatedAt time.Time
}

// Queue holds at most Max notifications, oldest first.
type Queue struct {
	mu      sync.Mutex
	items   []Notification
	timers  map[string]*time.Timer
	ttl     time.Duration
	max     int
	changed chan struct{}
}

// New returns an empty queue. Non-positive arguments take the defaults.
func New(defaultTTL time.Duration, max int) *Queue {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if max <= 0 {
		max = DefaultMaxQueue
	}
	return &Queue{
		timers:  map[string]*time.Timer{},
		ttl:     defaultTTL,
		max:     max,
		changed: make(chan struct{}, 1),
	}
}

// Changed signals after every change to the queue. Signals coalesce.
func (q *Queue) Changed() <-chan struct{} { return q.changed }

func (q *Queue) signal() {
	select {
	case q.changed <- struct{}{}:
	default:
	}
}

// Notify queues msg with the default TTL and returns its id.
func (q *Queue) Notify(sev Severity, msg string) string {
	return q.NotifyFor(sev, msg, q.ttl)
}

// NotifyFor queues msg with an explicit ttl; ttl <= 0 persists until dismissed.
// When the queue is full the oldest message is dropped.
func (q *Queue) NotifyFor(sev Severity, msg string, ttl time.Duration) string {
	if !sev.Valid() {
		sev = Info
	}
	n := Notification{ID: uuid.NewString(), Severity: sev, Message: msg, TTL: ttl, CreatedAt: time.Now()}

	q.mu.Lock()
	for len(q.items) >= q.max {
		q.removeLocked(q.items[0].ID)
	}
	q.items = append(q.items, n)
	if ttl > 0 {
		id := n.ID
		q.timers[id] = time.AfterFunc(ttl, func() { q.Dismiss(id) })
	}
	q.mu.Unlock()

	q.signal()
	return n.ID
}

func (q *Queue) Success(msg string) string { return q.Notify(Success, msg) }
func (q *Queue) Error(msg string) string   { return q.Notify(Error, msg) }
func (q *Queue) Info(msg string) string    { return q.Notify(Info, msg) }
func (q *Queue) Warning(msg string) string { return q.Notify(Warning, msg) }

// Dismiss removes id and stops its timer. Unknown ids are ignored.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	removed := q.removeLocked(id)
	q.mu.Unlock()
	if removed {
		q.signal()
	}
}

func (q *Queue) removeLocked(id string) bool {
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes everything.
func (q *Queue) Clear() {
	q.mu.Lock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	had := len(q.items) > 0
	q.items = nil
	q.mu.Unlock()
	if had {
		q.signal()
	}
}

// List returns the queued notifications, oldest first.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification(nil), q.items...)
}

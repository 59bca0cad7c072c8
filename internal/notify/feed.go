// internal/notify/feed.go
//
// Outward notification sinks.
// The orchestrator emits every event for a player to a Notifier; Feed keeps
// a bounded per-player queue so players can poll for events they were not
// waiting on (for example a timeout GameOver).

package notify

import (
	"sync"

	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
)

// Notifier receives outward events. Notify must not block for long: it is
// called while the player's session is held.
type Notifier interface {
	Notify(ev game.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(game.Event)

func (f NotifierFunc) Notify(ev game.Event) { f(ev) }

// Multi fans an event out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ev game.Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ev)
		}
	}
}

const defaultCapacity = 32

// Feed is an in-memory Notifier with a bounded queue per user.
// When a queue is full the oldest event is dropped.
type Feed struct {
	mu     sync.Mutex
	limit  int
	queues map[string][]game.Event
}

// NewFeed returns a Feed holding at most capacity events per user
// (default 32 when capacity <= 0).
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Feed{limit: capacity, queues: make(map[string][]game.Event)}
}

// Notify appends ev to its user's queue.
func (f *Feed) Notify(ev game.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := append(f.queues[ev.UserID], ev)
	if len(q) > f.limit {
		q = q[len(q)-f.limit:]
	}
	f.queues[ev.UserID] = q
}

// Drain returns and clears the user's queued events, oldest first.
func (f *Feed) Drain(userID string) []game.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queues[userID]
	delete(f.queues, userID)
	return q
}

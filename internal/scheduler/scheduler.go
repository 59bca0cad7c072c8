// internal/scheduler/scheduler.go
//
// Delayed self-delivery for the orchestrator.
// A Scheduler runs a callback after a delay; the orchestrator uses it to
// deliver a timeout for a deadline token back to itself.
//
// Cancellation is not relied upon: the token check at delivery time makes a
// stale timeout inert. Timer.Stop only saves the wasted delivery.

package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Timer is a handle to one armed callback.
type Timer interface {
	// Stop prevents the callback from running if it has not yet fired.
	// It reports whether the call stopped the timer.
	Stop() bool
}

// Scheduler arms callbacks to run after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type wallClock struct{}

// Real returns a wall-clock Scheduler backed by time.AfterFunc.
func Real() Scheduler { return wallClock{} }

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
func (wallClock) Now() time.Time                            { return time.Now().UTC() }

// Manual is a deterministic Scheduler for tests and simulations.
// Time only moves when Advance is called; due callbacks run on the calling
// goroutine in deadline order (ties in arming order).
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[uint64]*manualTimer
}

type manualTimer struct {
	m   *Manual
	id  uint64
	at  time.Time
	run func()
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, timers: make(map[uint64]*manualTimer)}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc arms f to run once the clock has advanced by d.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, id: m.seq, at: m.now.Add(d), run: f}
	m.timers[t.id] = t
	return t
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.timers[t.id]; !ok {
		return false
	}
	delete(t.m.timers, t.id)
	return true
}

// Pending returns the number of armed, unfired timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d and runs every callback that became due.
// Callbacks may arm new timers; those fire too if they fall within the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var due []*manualTimer
		for _, t := range m.timers {
			if !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			m.now = target
			m.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at.Equal(due[j].at) {
				return due[i].id < due[j].id
			}
			return due[i].at.Before(due[j].at)
		})
		next := due[0]
		delete(m.timers, next.id)
		m.now = next.at
		m.mu.Unlock()

		next.run()
	}
}

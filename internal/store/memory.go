// internal/store/memory.go
//
// In-memory implementation of the session Store.
// The orchestrator owns the only instance; no other component mutates it.
//
// Characteristics:
//   - Sessions keyed by user id; one record per user, never deleted.
//   - The key set is guarded by an RWMutex; each record has its own mutex so
//     updates for different users never wait on each other.
//   - Every mutation goes through Update, which checks the transition before
//     committing.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
)

var (
	// ErrNotFound is returned for users without a session record.
	ErrNotFound = errors.New("session not found")
	// ErrInvariant is returned when an update would break a session invariant.
	ErrInvariant = errors.New("session invariant violated")
)

// Store defines the session table used by the orchestrator.
type Store interface {
	// GetOrInit returns the user's session, creating a NotStarted one bound to
	// engineRef on first access.
	GetOrInit(ctx context.Context, userID, engineRef string) (game.Session, error)

	// Get returns the user's session or ErrNotFound.
	Get(ctx context.Context, userID string) (game.Session, error)

	// Update runs fn against a copy of the user's session and commits the copy
	// only when fn returns nil and the result is a legal transition.
	// onCommit hooks run after a successful commit while the record is still
	// held, so effects for one user are emitted in commit order.
	// The returned session is the committed state, or the unchanged one on error.
	Update(ctx context.Context, userID string, fn func(*game.Session) error, onCommit ...func(game.Session)) (game.Session, error)

	// Snapshot returns copies of every session keyed by user id.
	Snapshot(ctx context.Context) map[string]game.Session
}

type entry struct {
	mu      sync.Mutex // held for the whole of one event's processing
	session game.Session
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex      // guards sessions map
	sessions map[string]*entry // keyed by Session.UserID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*entry)}
}

func (m *memory) lookup(userID string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[userID]
	return e, ok
}

// GetOrInit creates the record on first access.
func (m *memory) GetOrInit(ctx context.Context, userID, engineRef string) (game.Session, error) {
	if userID == "" {
		return game.Session{}, fmt.Errorf("%w: empty user id", ErrInvariant)
	}
	e, ok := m.lookup(userID)
	if !ok {
		m.mu.Lock()
		if e, ok = m.sessions[userID]; !ok {
			e = &entry{session: game.NewSession(userID, engineRef)}
			m.sessions[userID] = e
		}
		m.mu.Unlock()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// Get looks up a session by user id.
func (m *memory) Get(ctx context.Context, userID string) (game.Session, error) {
	e, ok := m.lookup(userID)
	if !ok {
		return game.Session{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// Update is the single choke point for session mutation.
func (m *memory) Update(ctx context.Context, userID string, fn func(*game.Session) error, onCommit ...func(game.Session)) (game.Session, error) {
	e, ok := m.lookup(userID)
	if !ok {
		return game.Session{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return e.session.Clone(), err
	}
	work := e.session.Clone()
	if err := fn(&work); err != nil {
		return e.session.Clone(), err
	}
	if err := game.CheckTransition(e.session, work); err != nil {
		return e.session.Clone(), fmt.Errorf("%w: %v", ErrInvariant, err)
	}
	e.session = work
	for _, hook := range onCommit {
		hook(work.Clone())
	}
	return work.Clone(), nil
}

// Snapshot copies every record.
func (m *memory) Snapshot(ctx context.Context) map[string]game.Session {
	m.mu.RLock()
	entries := make(map[string]*entry, len(m.sessions))
	for k, e := range m.sessions {
		entries[k] = e
	}
	m.mu.RUnlock()

	out := make(map[string]game.Session, len(entries))
	for k, e := range entries {
		e.mu.Lock()
		out[k] = e.session.Clone()
		e.mu.Unlock()
	}
	return out
}

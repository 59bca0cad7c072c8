// internal/session/orchestrator.go
//
// Session orchestrator.
// Owns the per-user session table, sequences word checks with the engine,
// and guarantees every started game ends by arming a deadline.
//
// Event flow:
//   - StartGame / CheckWord arrive from players (request/response).
//   - HandleReply arrives from the engine.
//   - Timeouts arrive from the scheduler.
// Each event runs as one store.Update on the player's record, so events for
// one player never interleave while different players proceed in parallel.
// Effects of a committed transition (notify, arm, cancel, resolve a waiting
// caller) are applied while the record is still held; the engine dispatch
// happens after it is released.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/gamesession/internal/engine"
	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
	"github.com/robalobadob/wordle/apps/gamesession/internal/metrics"
	"github.com/robalobadob/wordle/apps/gamesession/internal/notify"
	"github.com/robalobadob/wordle/apps/gamesession/internal/scheduler"
	"github.com/robalobadob/wordle/apps/gamesession/internal/store"
)

var (
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("orchestrator already initialized")
	// ErrNotInitialized is returned by gameplay calls before Init.
	ErrNotInitialized = errors.New("orchestrator not initialized")
	// ErrEngineUnavailable wraps a failure to hand a check to the engine.
	ErrEngineUnavailable = errors.New("engine unavailable")
)

// EngineRef addresses a word-check engine. Dispatch must not wait for the
// reply; replies come back through Orchestrator.HandleReply.
type EngineRef interface {
	Ref() string
	Dispatch(ctx context.Context, req game.CheckRequest) error
}

// Recorder is told about every concluded game, outside the session lock.
type Recorder interface {
	Record(ctx context.Context, s game.Session) error
}

// Orchestrator is the session actor. The zero value is not usable; use New.
type Orchestrator struct {
	store    store.Store
	sched    scheduler.Scheduler
	notifier notify.Notifier
	recorder Recorder
	timeout  time.Duration
	newID    func() string

	initMu sync.RWMutex
	engine EngineRef

	mu         sync.Mutex
	waiters    map[string]chan game.Event // request id -> waiting caller
	dispatched map[string]time.Time       // request id -> dispatch time
	timers     map[string]scheduler.Timer // deadline token -> armed timer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the game horizon (default game.DefaultTimeout).
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRecorder registers a hook for concluded games.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithIDs replaces the request id / deadline token generator.
func WithIDs(f func() string) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.newID = f
		}
	}
}

// New constructs an Orchestrator. A nil notifier discards notifications.
func New(st store.Store, sched scheduler.Scheduler, n notify.Notifier, opts ...Option) *Orchestrator {
	if n == nil {
		n = notify.Multi{}
	}
	o := &Orchestrator{
		store:      st,
		sched:      sched,
		notifier:   n,
		timeout:    game.DefaultTimeout,
		newID:      func() string { return uuid.NewString() },
		waiters:    make(map[string]chan game.Event),
		dispatched: make(map[string]time.Time),
		timers:     make(map[string]scheduler.Timer),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Init binds the orchestrator to its engine. It may succeed only once.
func (o *Orchestrator) Init(ref EngineRef) error {
	if ref == nil {
		return fmt.Errorf("init: nil engine reference")
	}
	o.initMu.Lock()
	defer o.initMu.Unlock()
	if o.engine != nil {
		return ErrAlreadyInitialized
	}
	o.engine = ref
	log.Info().Str("engine", ref.Ref()).Msg("orchestrator initialized")
	return nil
}

func (o *Orchestrator) engineRef() (EngineRef, error) {
	o.initMu.RLock()
	defer o.initMu.RUnlock()
	if o.engine == nil {
		return nil, ErrNotInitialized
	}
	return o.engine, nil
}

// StartGame begins the user's game and arms its deadline.
func (o *Orchestrator) StartGame(ctx context.Context, userID string) (game.Event, error) {
	eng, err := o.engineRef()
	if err != nil {
		return game.Event{}, err
	}
	if _, err := o.store.GetOrInit(ctx, userID, eng.Ref()); err != nil {
		return game.Event{}, o.reject(userID, "start", err)
	}

	token := o.newID()
	var eff game.Effects
	_, err = o.store.Update(ctx, userID, func(s *game.Session) error {
		var err error
		eff, err = game.StartGame(s, token, o.sched.Now())
		return err
	}, func(s game.Session) {
		// Under the entry lock, so the timeout's Dec cannot run first.
		metrics.GamesStarted.Inc()
		metrics.GamesInProgress.Inc()
		o.apply(s, eff, false)
	})
	if err != nil {
		return game.Event{}, o.reject(userID, "start", err)
	}

	log.Info().Str("user", userID).Str("token", token).Dur("timeout", o.timeout).Msg("game started")
	return *eff.Notify, nil
}

// CheckWord validates word, sends it to the engine and waits for the turn's
// outcome: CheckWordResult, or GameOver when the reply or the deadline ends
// the game. If ctx ends first the check stays pending and its outcome is
// still delivered to the notifier.
func (o *Orchestrator) CheckWord(ctx context.Context, userID, word string) (game.Event, error) {
	eng, err := o.engineRef()
	if err != nil {
		return game.Event{}, err
	}
	if _, err := o.store.Get(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = fmt.Errorf("%w: the user is not in the game", game.ErrNotInGame)
		}
		return game.Event{}, o.reject(userID, "check", err)
	}

	reqID := o.newID()
	wait := make(chan game.Event, 1)
	var eff game.Effects
	_, err = o.store.Update(ctx, userID, func(s *game.Session) error {
		var err error
		eff, err = game.CheckWord(s, word, reqID)
		return err
	}, func(game.Session) {
		o.mu.Lock()
		o.waiters[reqID] = wait
		o.dispatched[reqID] = time.Now()
		o.mu.Unlock()
	})
	if err != nil {
		return game.Event{}, o.reject(userID, "check", err)
	}

	if err := eng.Dispatch(ctx, *eff.Dispatch); err != nil {
		if !o.abandon(userID, reqID) {
			// Something else settled the check first, a timeout for one.
			select {
			case ev := <-wait:
				return ev, nil
			default:
			}
		}
		err = fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		log.Warn().Err(err).Str("user", userID).Str("request", reqID).Msg("check dispatch failed")
		return game.Event{}, o.reject(userID, "check", err)
	}
	metrics.ChecksDispatched.Inc()
	log.Debug().Str("user", userID).Str("request", reqID).Str("engine", eng.Ref()).Msg("check dispatched")

	select {
	case ev := <-wait:
		return ev, nil
	case <-ctx.Done():
		o.mu.Lock()
		delete(o.waiters, reqID)
		o.mu.Unlock()
		return game.Event{}, ctx.Err()
	}
}

// abandon clears a pending check that never reached the engine. It reports
// false when the check was no longer pending.
func (o *Orchestrator) abandon(userID, reqID string) bool {
	_, err := o.store.Update(context.Background(), userID, func(s *game.Session) error {
		return game.AbandonCheck(s, reqID)
	}, func(game.Session) {
		o.takeWaiter(reqID)
	})
	if err != nil && !errors.Is(err, game.ErrStaleEvent) {
		log.Warn().Err(err).Str("user", userID).Str("request", reqID).Msg("abandon check")
	}
	return err == nil
}

// HandleReply applies an engine reply. Replies that no longer match the
// session's pending request are discarded.
func (o *Orchestrator) HandleReply(rep engine.CheckReply) {
	var eff game.Effects
	committed, err := o.store.Update(context.Background(), rep.UserID, func(s *game.Session) error {
		var err error
		eff, err = game.ApplyFeedback(s, rep.RequestID, rep.Feedback(), o.sched.Now())
		return err
	}, func(s game.Session) { o.apply(s, eff, true) })
	if err != nil {
		metrics.StaleEvents.WithLabelValues("reply").Inc()
		log.Debug().Err(err).Str("user", rep.UserID).Str("request", rep.RequestID).Msg("discarding engine reply")
		return
	}
	log.Info().Str("user", rep.UserID).Int("tries", committed.TriesUsed).
		Stringer("status", committed.Status).Msg("check applied")
	if eff.Concluded {
		o.concluded(committed)
	}
}

// handleTimeout is the scheduler's delivery of a deadline.
func (o *Orchestrator) handleTimeout(userID, token string) {
	var eff game.Effects
	committed, err := o.store.Update(context.Background(), userID, func(s *game.Session) error {
		var err error
		eff, err = game.ApplyTimeout(s, token, o.sched.Now())
		return err
	}, func(s game.Session) { o.apply(s, eff, false) })
	if err != nil {
		metrics.StaleEvents.WithLabelValues("timeout").Inc()
		log.Debug().Err(err).Str("user", userID).Str("token", token).Msg("discarding timeout")
		return
	}
	log.Info().Str("user", userID).Str("token", token).Msg("game timed out")
	o.concluded(committed)
}

// apply carries out the effects of a committed transition. It runs while the
// user's record is held.
func (o *Orchestrator) apply(s game.Session, eff game.Effects, fromReply bool) {
	if eff.ArmToken != "" {
		token, userID := eff.ArmToken, s.UserID
		t := o.sched.AfterFunc(o.timeout, func() { o.handleTimeout(userID, token) })
		o.mu.Lock()
		o.timers[token] = t
		o.mu.Unlock()
	}
	if eff.CancelToken != "" {
		o.mu.Lock()
		t := o.timers[eff.CancelToken]
		delete(o.timers, eff.CancelToken)
		o.mu.Unlock()
		if t != nil {
			t.Stop()
		}
	}
	if eff.Notify == nil {
		return
	}
	o.notifier.Notify(*eff.Notify)
	if eff.Resolve != "" {
		ch, sent := o.takeWaiter(eff.Resolve)
		if fromReply && !sent.IsZero() {
			metrics.CheckRoundTrip.Observe(time.Since(sent).Seconds())
		}
		if ch != nil {
			ch <- *eff.Notify
		}
	}
}

func (o *Orchestrator) takeWaiter(reqID string) (chan game.Event, time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch, sent := o.waiters[reqID], o.dispatched[reqID]
	delete(o.waiters, reqID)
	delete(o.dispatched, reqID)
	return ch, sent
}

func (o *Orchestrator) concluded(s game.Session) {
	metrics.GamesInProgress.Dec()
	metrics.GamesConcluded.WithLabelValues(s.Status.Outcome.String(), s.Reason).Inc()
	log.Info().Str("user", s.UserID).Stringer("outcome", s.Status.Outcome).
		Str("reason", s.Reason).Int("tries", s.TriesUsed).Msg("game concluded")
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(context.Background(), s); err != nil {
		log.Warn().Err(err).Str("user", s.UserID).Msg("record concluded game")
	}
}

func (o *Orchestrator) reject(userID, op string, err error) error {
	code := game.Code(err)
	if code == "" {
		switch {
		case errors.Is(err, ErrEngineUnavailable):
			code = "engine_unavailable"
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			code = "canceled"
		default:
			code = "internal"
		}
	}
	metrics.RequestsRejected.WithLabelValues(code).Inc()
	log.Debug().Err(err).Str("user", userID).Str("op", op).Str("code", code).Msg("request rejected")
	return err
}

// Session returns the user's current session for inspection.
func (o *Orchestrator) Session(ctx context.Context, userID string) (game.Session, error) {
	return o.store.Get(ctx, userID)
}

// Snapshot returns every session for inspection.
func (o *Orchestrator) Snapshot(ctx context.Context) map[string]game.Session {
	return o.store.Snapshot(ctx)
}

// EngineAddress returns the bound engine reference, or "" before Init.
func (o *Orchestrator) EngineAddress() string {
	eng, err := o.engineRef()
	if err != nil {
		return ""
	}
	return eng.Ref()
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/wordle/apps/gamesession/internal/engine"
	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
	"github.com/robalobadob/wordle/apps/gamesession/internal/metrics"
	"github.com/robalobadob/wordle/apps/gamesession/internal/notify"
	"github.com/robalobadob/wordle/apps/gamesession/internal/scheduler"
	"github.com/robalobadob/wordle/apps/gamesession/internal/store"
)

const user = "user-3"

var epoch = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	orch  *Orchestrator
	clock *scheduler.Manual
	feed  *notify.Feed
	rec   *memRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock: scheduler.NewManual(epoch),
		feed:  notify.NewFeed(64),
		rec:   &memRecorder{},
	}
	h.orch = New(store.NewMemoryStore(), h.clock, h.feed, WithRecorder(h.rec))
	return h
}

// withEngine binds a running engine actor that scores against picker.
func (h *harness) withEngine(t *testing.T, p engine.Picker) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	eng := engine.New(p)
	go func() { _ = eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-eng.Done()
	})
	require.NoError(t, h.orch.Init(engine.NewLocal("wordle", eng, h.orch)))
	return h
}

// captureEngine records requests and never replies on its own.
type captureEngine struct {
	reqs   chan game.CheckRequest
	err    error
	during func() // runs inside Dispatch, before it returns
}

func newCapture() *captureEngine { return &captureEngine{reqs: make(chan game.CheckRequest, 16)} }

func (c *captureEngine) Ref() string { return "capture" }

func (c *captureEngine) Dispatch(ctx context.Context, req game.CheckRequest) error {
	if c.during != nil {
		c.during()
	}
	if c.err != nil {
		return c.err
	}
	c.reqs <- req
	return nil
}

func (c *captureEngine) next(t *testing.T) game.CheckRequest {
	t.Helper()
	select {
	case r := <-c.reqs:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no request dispatched")
	}
	return game.CheckRequest{}
}

type memRecorder struct {
	mu   sync.Mutex
	done []game.Session
}

func (r *memRecorder) Record(ctx context.Context, s game.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, s)
	return nil
}

func (r *memRecorder) sessions() []game.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]game.Session(nil), r.done...)
}

type result struct {
	ev  game.Event
	err error
}

func checkAsync(o *Orchestrator, ctx context.Context, userID, word string) <-chan result {
	out := make(chan result, 1)
	go func() {
		ev, err := o.CheckWord(ctx, userID, word)
		out <- result{ev, err}
	}()
	return out
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("CheckWord did not return")
	}
	return result{}
}

func TestInitOnlyOnce(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.StartGame(context.Background(), user)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = h.orch.CheckWord(context.Background(), user, "house")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, "", h.orch.EngineAddress())

	assert.Error(t, h.orch.Init(nil))
	require.NoError(t, h.orch.Init(newCapture()))
	assert.ErrorIs(t, h.orch.Init(newCapture()), ErrAlreadyInitialized)
	assert.Equal(t, "capture", h.orch.EngineAddress())
}

func TestWin(t *testing.T) {
	h := newHarness(t).withEngine(t, engine.FixedPicker("horse"))
	ctx := context.Background()
	o := h.orch

	_, err := o.CheckWord(ctx, user, "abcde")
	assert.ErrorIs(t, err, game.ErrNotInGame)

	ev, err := o.StartGame(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, game.StartSuccess(user), ev)

	_, err = o.StartGame(ctx, user)
	assert.ErrorIs(t, err, game.ErrInvalidState)

	_, err = o.CheckWord(ctx, user, "Abcde")
	assert.ErrorIs(t, err, game.ErrInvalidWord)
	_, err = o.CheckWord(ctx, user, "abcdef")
	assert.ErrorIs(t, err, game.ErrInvalidWord)

	s, err := o.Session(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, s.TriesUsed)

	ev, err = o.CheckWord(ctx, user, "house")
	require.NoError(t, err)
	assert.Equal(t, game.EventCheckWordResult, ev.Kind)
	assert.Equal(t, []int{0, 1, 3, 4}, ev.Feedback.CorrectPositions)
	assert.Empty(t, ev.Feedback.ContainedInWord)

	ev, err = o.CheckWord(ctx, user, "horse")
	require.NoError(t, err)
	assert.Equal(t, game.GameOver(user, game.Win), ev)

	_, err = o.CheckWord(ctx, "51", "abcde")
	assert.ErrorIs(t, err, game.ErrNotInGame)

	snap := o.Snapshot(ctx)
	require.Contains(t, snap, user)
	assert.Equal(t, game.ConcludedWith(game.Win), snap[user].Status)
	assert.Equal(t, 2, snap[user].TriesUsed)
	assert.Equal(t, "wordle", snap[user].EngineRef)
	assert.NotContains(t, snap, "51")

	// The deadline was cancelled; advancing past it emits nothing more.
	assert.Equal(t, 0, h.clock.Pending())
	h.clock.Advance(game.DefaultTimeout)
	kinds := eventKinds(h.feed.Drain(user))
	assert.Equal(t, []game.EventKind{game.EventStartSuccess, game.EventCheckWordResult, game.EventGameOver}, kinds)

	require.Len(t, h.rec.sessions(), 1)
	assert.Equal(t, game.ReasonGuess, h.rec.sessions()[0].Reason)
}

func TestTriedLimit(t *testing.T) {
	h := newHarness(t).withEngine(t, engine.FixedPicker("horse"))
	ctx := context.Background()
	o := h.orch

	_, err := o.StartGame(ctx, user)
	require.NoError(t, err)

	for i := 0; i < game.MaxTries; i++ {
		ev, err := o.CheckWord(ctx, user, "house")
		require.NoError(t, err)
		if i == game.MaxTries-1 {
			assert.Equal(t, game.GameOver(user, game.Lose), ev)
			continue
		}
		assert.Equal(t, game.CheckWordResult(user, game.Feedback{CorrectPositions: []int{0, 1, 3, 4}, ContainedInWord: []int{}}), ev)
	}

	s, err := o.Session(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, game.ConcludedWith(game.Lose), s.Status)
	assert.Equal(t, game.MaxTries, s.TriesUsed)
	assert.Equal(t, game.ReasonTries, s.Reason)

	_, err = o.CheckWord(ctx, user, "horse")
	assert.ErrorIs(t, err, game.ErrInvalidState)
	_, err = o.StartGame(ctx, user)
	assert.ErrorIs(t, err, game.ErrInvalidState)
}

func TestTimeoutForcesLoss(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Init(newCapture()))
	ctx := context.Background()

	_, err := h.orch.StartGame(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 1, h.clock.Pending())

	h.clock.Advance(game.DefaultTimeout - time.Second)
	s, _ := h.orch.Session(ctx, user)
	assert.Equal(t, game.InProgress, s.Status.Phase)

	h.clock.Advance(time.Second)
	s, _ = h.orch.Session(ctx, user)
	assert.Equal(t, game.ConcludedWith(game.Lose), s.Status)
	assert.Equal(t, game.ReasonTimeout, s.Reason)
	assert.Empty(t, s.DeadlineToken)

	evs := h.feed.Drain(user)
	assert.Equal(t, []game.Event{game.StartSuccess(user), game.GameOver(user, game.Lose)}, evs)
	require.Len(t, h.rec.sessions(), 1)
}

func TestTimeoutResolvesPendingCheck(t *testing.T) {
	h := newHarness(t)
	eng := newCapture()
	require.NoError(t, h.orch.Init(eng))
	ctx := context.Background()

	_, err := h.orch.StartGame(ctx, user)
	require.NoError(t, err)

	pending := checkAsync(h.orch, ctx, user, "house")
	req := eng.next(t)

	// A second request while one is pending is rejected.
	_, err = h.orch.CheckWord(ctx, user, "horse")
	assert.ErrorIs(t, err, game.ErrInvalidState)
	_, err = h.orch.StartGame(ctx, user)
	assert.ErrorIs(t, err, game.ErrInvalidState)

	h.clock.Advance(game.DefaultTimeout)
	r := await(t, pending)
	require.NoError(t, r.err)
	assert.Equal(t, game.GameOver(user, game.Lose), r.ev)

	// The late reply is stale and changes nothing.
	h.orch.HandleReply(engine.CheckReply{RequestID: req.RequestID, UserID: user, CorrectPositions: []int{0, 1, 2, 3, 4}})
	s, _ := h.orch.Session(ctx, user)
	assert.Equal(t, game.ConcludedWith(game.Lose), s.Status)
	assert.Equal(t, 0, s.TriesUsed)

	evs := h.feed.Drain(user)
	assert.Equal(t, []game.Event{game.StartSuccess(user), game.GameOver(user, game.Lose)}, evs)
}

func TestReplyBeatsTimeout(t *testing.T) {
	h := newHarness(t)
	eng := newCapture()
	require.NoError(t, h.orch.Init(eng))
	ctx := context.Background()

	_, err := h.orch.StartGame(ctx, user)
	require.NoError(t, err)
	pending := checkAsync(h.orch, ctx, user, "horse")
	req := eng.next(t)

	h.orch.HandleReply(engine.CheckReply{RequestID: req.RequestID, UserID: user, CorrectPositions: []int{0, 1, 2, 3, 4}})
	r := await(t, pending)
	require.NoError(t, r.err)
	assert.Equal(t, game.GameOver(user, game.Win), r.ev)

	// Duplicate reply and the deadline both lose the tie-break.
	h.orch.HandleReply(engine.CheckReply{RequestID: req.RequestID, UserID: user, CorrectPositions: []int{0, 1, 2, 3, 4}})
	h.clock.Advance(2 * game.DefaultTimeout)

	s, _ := h.orch.Session(ctx, user)
	assert.Equal(t, game.ConcludedWith(game.Win), s.Status)
	assert.Equal(t, 1, s.TriesUsed)
	assert.Len(t, h.feed.Drain(user), 2)
	assert.Len(t, h.rec.sessions(), 1)
}

func TestReplyForUnknownUserIgnored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Init(newCapture()))
	h.orch.HandleReply(engine.CheckReply{RequestID: "r", UserID: "ghost"})
	assert.Empty(t, h.orch.Snapshot(context.Background()))
}

func TestDispatchFailureKeepsTry(t *testing.T) {
	h := newHarness(t)
	eng := newCapture()
	eng.err = errors.New("broker down")
	require.NoError(t, h.orch.Init(eng))
	ctx := context.Background()

	_, err := h.orch.StartGame(ctx, user)
	require.NoError(t, err)

	_, err = h.orch.CheckWord(ctx, user, "house")
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	s, _ := h.orch.Session(ctx, user)
	assert.Empty(t, s.PendingRequest)
	assert.Equal(t, 0, s.TriesUsed)
	assert.Equal(t, game.InProgress, s.Status.Phase)
}

func TestTimeoutDuringFailedDispatch(t *testing.T) {
	h := newHarness(t)
	eng := newCapture()
	eng.err = errors.New("broker down")
	eng.during = func() { h.clock.Advance(game.DefaultTimeout) }
	require.NoError(t, h.orch.Init(eng))
	ctx := context.Background()

	_, err := h.orch.StartGame(ctx, user)
	require.NoError(t, err)

	ev, err := h.orch.CheckWord(ctx, user, "house")
	require.NoError(t, err)
	assert.Equal(t, game.GameOver(user, game.Lose), ev)

	s, _ := h.orch.Session(ctx, user)
	assert.Equal(t, game.ConcludedWith(game.Lose), s.Status)
	assert.Equal(t, game.ReasonTimeout, s.Reason)
	assert.Empty(t, s.PendingRequest)
	assert.Equal(t, 0, s.TriesUsed)
}

func TestInProgressGaugeReturnsAfterTimeout(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Init(newCapture()))
	ctx := context.Background()
	base := testutil.ToFloat64(metrics.GamesInProgress)

	_, err := h.orch.StartGame(ctx, "gauge-user")
	require.NoError(t, err)
	assert.Equal(t, base+1, testutil.ToFloat64(metrics.GamesInProgress))

	h.clock.Advance(game.DefaultTimeout)
	assert.Equal(t, base, testutil.ToFloat64(metrics.GamesInProgress))
}

func TestCheckWordCallerGivesUp(t *testing.T) {
	h := newHarness(t)
	eng := newCapture()
	require.NoError(t, h.orch.Init(eng))

	_, err := h.orch.StartGame(context.Background(), user)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	pending := checkAsync(h.orch, ctx, user, "house")
	req := eng.next(t)
	cancel()
	r := await(t, pending)
	assert.ErrorIs(t, r.err, context.Canceled)

	// The session stays pending and the eventual reply still lands.
	s, _ := h.orch.Session(context.Background(), user)
	assert.Equal(t, req.RequestID, s.PendingRequest)

	h.orch.HandleReply(engine.CheckReply{RequestID: req.RequestID, UserID: user, CorrectPositions: []int{0, 1, 3, 4}})
	s, _ = h.orch.Session(context.Background(), user)
	assert.Equal(t, 1, s.TriesUsed)
	assert.Empty(t, s.PendingRequest)

	evs := h.feed.Drain(user)
	require.Len(t, evs, 2)
	assert.Equal(t, game.EventCheckWordResult, evs[1].Kind)
}

func TestUsersAreIndependent(t *testing.T) {
	secrets := map[string]string{"alice": "horse", "bob": "crane"}
	h := newHarness(t).withEngine(t, engine.PickerFunc(func(u string) string { return secrets[u] }))
	ctx := context.Background()

	var wg sync.WaitGroup
	for u, secret := range secrets {
		wg.Add(1)
		go func(u, secret string) {
			defer wg.Done()
			_, err := h.orch.StartGame(ctx, u)
			assert.NoError(t, err)
			ev, err := h.orch.CheckWord(ctx, u, "house")
			assert.NoError(t, err)
			assert.Equal(t, u, ev.UserID)
			ev, err = h.orch.CheckWord(ctx, u, secret)
			assert.NoError(t, err)
			assert.Equal(t, game.GameOver(u, game.Win), ev)
		}(u, secret)
	}
	wg.Wait()

	snap := h.orch.Snapshot(ctx)
	for u := range secrets {
		assert.Equal(t, 2, snap[u].TriesUsed, u)
		assert.Equal(t, game.ConcludedWith(game.Win), snap[u].Status, u)
		for _, ev := range h.feed.Drain(u) {
			assert.Equal(t, u, ev.UserID)
		}
	}
}

func TestManyUsersTimeoutIndependently(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Init(newCapture()))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := h.orch.StartGame(ctx, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}
	// u0 and u1 started at least the full horizon ago.
	h.clock.Advance(game.DefaultTimeout - 4*time.Minute)

	snap := h.orch.Snapshot(ctx)
	assert.Equal(t, game.ConcludedWith(game.Lose), snap["u0"].Status)
	assert.Equal(t, game.ConcludedWith(game.Lose), snap["u1"].Status)
	for _, u := range []string{"u2", "u3", "u4"} {
		assert.Equal(t, game.InProgress, snap[u].Status.Phase, u)
	}
	assert.Equal(t, 3, h.clock.Pending())
}

func TestCustomTimeoutAndIDs(t *testing.T) {
	clock := scheduler.NewManual(epoch)
	n := 0
	o := New(store.NewMemoryStore(), clock, nil,
		WithTimeout(time.Minute),
		WithIDs(func() string { n++; return fmt.Sprintf("id-%d", n) }))
	require.NoError(t, o.Init(newCapture()))

	_, err := o.StartGame(context.Background(), user)
	require.NoError(t, err)
	s, _ := o.Session(context.Background(), user)
	assert.Equal(t, "id-1", s.DeadlineToken)

	clock.Advance(time.Minute)
	s, _ = o.Session(context.Background(), user)
	assert.Equal(t, game.ConcludedWith(game.Lose), s.Status)
}

func eventKinds(evs []game.Event) []game.EventKind {
	out := make([]game.EventKind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind)
	}
	return out
}

// internal/engine/engine.go
//
// Word-check engine actor.
// The engine owns every secret word; nothing outside this goroutine reads
// them. Requests arrive through a mailbox and are processed one at a time
// by Run; each reply is handed to the deliver callback supplied with its
// request.
//
// Notes:
//   - A user's secret is chosen by the Picker on that user's first request
//     and kept for the life of the engine.
//   - Malformed requests are dropped with a warning; the orchestrator's
//     timeout is the backstop for a reply that never comes.

package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
)

// ErrStopped is returned by Submit once Run has returned.
var ErrStopped = errors.New("engine stopped")

const defaultMailbox = 256

// CheckReply carries the feedback for one CheckRequest.
type CheckReply struct {
	RequestID        string `json:"request_id"`
	UserID           string `json:"user_id"`
	CorrectPositions []int  `json:"correct_positions"`
	ContainedInWord  []int  `json:"contained_in_word"`
}

// Feedback returns the reply's position sets.
func (r CheckReply) Feedback() game.Feedback {
	return game.Feedback{CorrectPositions: r.CorrectPositions, ContainedInWord: r.ContainedInWord}
}

// ReplyHandler receives engine replies. The orchestrator implements it.
type ReplyHandler interface {
	HandleReply(CheckReply)
}

type job struct {
	req     game.CheckRequest
	deliver func(CheckReply)
}

// Engine is the word-check actor.
type Engine struct {
	picker  Picker
	inbox   chan job
	done    chan struct{}
	stop    sync.Once
	secrets map[string]string // owned by the Run goroutine
}

// Option configures an Engine.
type Option func(*Engine)

// WithMailbox sets the mailbox capacity.
func WithMailbox(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.inbox = make(chan job, n)
		}
	}
}

// New returns an Engine choosing secrets with p. Call Run to start it.
func New(p Picker, opts ...Option) *Engine {
	e := &Engine{
		picker:  p,
		inbox:   make(chan job, defaultMailbox),
		done:    make(chan struct{}),
		secrets: make(map[string]string),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Submit enqueues req. deliver is called from the engine goroutine with the
// reply. Submit blocks only while the mailbox is full.
func (e *Engine) Submit(ctx context.Context, req game.CheckRequest, deliver func(CheckReply)) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.inbox <- job{req: req, deliver: deliver}:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes the mailbox until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	defer e.stop.Do(func() { close(e.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-e.inbox:
			reply, ok := e.check(j.req)
			if !ok {
				continue
			}
			if j.deliver != nil {
				j.deliver(reply)
			}
		}
	}
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) check(req game.CheckRequest) (CheckReply, bool) {
	if req.UserID == "" || req.RequestID == "" {
		log.Warn().Str("request", req.RequestID).Msg("engine: dropping request without ids")
		return CheckReply{}, false
	}
	if err := game.ValidateWord(req.Word); err != nil {
		log.Warn().Err(err).Str("user", req.UserID).Str("request", req.RequestID).Msg("engine: dropping malformed word")
		return CheckReply{}, false
	}
	secret, ok := e.secrets[req.UserID]
	if !ok {
		secret = e.picker.Pick(req.UserID)
		e.secrets[req.UserID] = secret
	}
	fb := Score(req.Word, secret)
	log.Debug().Str("user", req.UserID).Str("request", req.RequestID).
		Ints("correct", fb.CorrectPositions).Ints("contained", fb.ContainedInWord).
		Msg("engine: scored word")
	return CheckReply{
		RequestID:        req.RequestID,
		UserID:           req.UserID,
		CorrectPositions: fb.CorrectPositions,
		ContainedInWord:  fb.ContainedInWord,
	}, true
}

// Local is an in-process engine reference: it submits requests to an Engine
// and hands replies to a ReplyHandler.
type Local struct {
	ref     string
	engine  *Engine
	handler ReplyHandler
}

// NewLocal binds eng under the address ref, delivering replies to h.
func NewLocal(ref string, eng *Engine, h ReplyHandler) *Local {
	return &Local{ref: ref, engine: eng, handler: h}
}

// Ref returns the engine address.
func (l *Local) Ref() string { return l.ref }

// Dispatch submits req without waiting for the reply.
func (l *Local) Dispatch(ctx context.Context, req game.CheckRequest) error {
	return l.engine.Submit(ctx, req, l.handler.HandleReply)
}

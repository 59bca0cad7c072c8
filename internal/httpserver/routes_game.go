// internal/httpserver/routes_game.go
//
// Game endpoints. All run under withIdentity, so guests can play.
//   - POST /game/start  → start_success event
//   - POST /game/check  → check_word_result or game_over event
//   - GET  /game/state  → the caller's session
//   - GET  /game/events → drains the caller's notification feed

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
	"github.com/robalobadob/wordle/apps/gamesession/internal/metrics"
)

func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/start", s.handleStart)
	r.Post("/game/check", s.handleCheck)
	r.Get("/game/state", s.handleState)
	r.Get("/game/events", s.handleEvents)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	ev, err := s.games.StartGame(r.Context(), player(r))
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(ev)
}

type checkReq struct {
	Word string `json:"word"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	id := player(r)
	if !s.limiters.allow(id) {
		metrics.RequestsRejected.WithLabelValues("rate_limited").Inc()
		httpError(w, http.StatusTooManyRequests, "rate_limited", "slow down")
		return
	}
	var req checkReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CheckWait)
	defer cancel()
	ev, err := s.games.CheckWord(ctx, id, req.Word)
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(ev)
}

// stateView is the player-facing rendering of a session; correlation ids
// stay internal.
type stateView struct {
	UserID       string         `json:"userId"`
	Status       game.Status    `json:"status"`
	TriesUsed    int            `json:"triesUsed"`
	TriesLeft    int            `json:"triesLeft"`
	Pending      bool           `json:"pending"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
	ConcludedAt  *time.Time     `json:"concludedAt,omitempty"`
	Deadline     *time.Time     `json:"deadline,omitempty"`
	LastFeedback *game.Feedback `json:"lastFeedback,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

func (s *Server) view(sess game.Session) stateView {
	v := stateView{
		UserID:       sess.UserID,
		Status:       sess.Status,
		TriesUsed:    sess.TriesUsed,
		TriesLeft:    game.MaxTries - sess.TriesUsed,
		Pending:      sess.PendingRequest != "",
		LastFeedback: sess.LastFeedback,
		Reason:       sess.Reason,
	}
	if !sess.StartedAt.IsZero() {
		started := sess.StartedAt
		v.StartedAt = &started
		if sess.Status.Phase == game.InProgress {
			deadline := started.Add(s.opts.GameTimeout)
			v.Deadline = &deadline
		}
	}
	if !sess.ConcludedAt.IsZero() {
		concluded := sess.ConcludedAt
		v.ConcludedAt = &concluded
	}
	return v
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, err := s.games.Session(r.Context(), player(r))
	if err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(s.view(sess))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	evs := s.feed.Drain(player(r))
	if evs == nil {
		evs = []game.Event{}
	}
	_ = json.NewEncoder(w).Encode(evs)
}

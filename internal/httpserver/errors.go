// internal/httpserver/errors.go
//
// JSON error responses and the mapping from orchestrator errors to
// HTTP statuses.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
	"github.com/robalobadob/wordle/apps/gamesession/internal/session"
	"github.com/robalobadob/wordle/apps/gamesession/internal/store"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// httpError writes {"error":code,"message":msg} with status.
func httpError(w http.ResponseWriter, status int, code, msg string) {
	b, _ := json.Marshal(errorBody{Error: code, Message: msg})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

// writeGameError maps orchestrator errors onto HTTP statuses.
func writeGameError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		log.Warn().Err(err).Str("code", code).Msg("game request failed")
	}
	httpError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrInvalidWord):
		return http.StatusBadRequest, "invalid_word"
	case errors.Is(err, game.ErrNotInGame), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_in_game"
	case errors.Is(err, game.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, session.ErrNotInitialized):
		return http.StatusServiceUnavailable, "not_initialized"
	case errors.Is(err, session.ErrEngineUnavailable):
		return http.StatusServiceUnavailable, "engine_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "check_pending"
	}
	return http.StatusInternalServerError, "internal"
}

// internal/game/errors.go
//
// Error sentinels for session transitions.
// Invalid state, not in game and invalid word come from the caller;
// stale events come from the engine or the clock and are absorbed.

package game

import "errors"

// Caller-triggered errors. They are returned to the request that caused
// them and never mutate session state.
var (
	ErrInvalidState = errors.New("invalid state")
	ErrNotInGame    = errors.New("not in game")
	ErrInvalidWord  = errors.New("invalid word")
)

// ErrStaleEvent marks a reply or timeout that no longer matches the session.
// It originates from the environment and is absorbed by the orchestrator.
var ErrStaleEvent = errors.New("stale event")

// Code returns a short machine-readable name for a game error, or "" when err
// is not one of this package's sentinels.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidWord):
		return "invalid_word"
	case errors.Is(err, ErrNotInGame):
		return "not_in_game"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrStaleEvent):
		return "stale_event"
	}
	return ""
}

// internal/game/machine.go
//
// Session state machine.
// Each transition takes the current session by pointer to a working copy,
// mutates it, and returns the Effects the orchestrator applies after commit.
// A non-nil error means the copy must be discarded.
//
// State transitions:
//   NotStarted --StartGame--> InProgress
//   InProgress --ApplyFeedback(all hit)--> Concluded(Win)
//   InProgress --ApplyFeedback(tries == MaxTries)--> Concluded(Lose)
//   InProgress --ApplyTimeout(live token)--> Concluded(Lose)
//
// Nothing leaves Concluded.

package game

import (
	"fmt"
	"time"
)

// Conclusion reasons recorded on the session.
const (
	ReasonGuess   = "guess"
	ReasonTries   = "tries"
	ReasonTimeout = "timeout"
)

// StartGame moves a NotStarted session into play and arms its deadline.
func StartGame(s *Session, token string, now time.Time) (Effects, error) {
	if s.Status.Phase != NotStarted {
		return Effects{}, fmt.Errorf("%w: game already started or finished", ErrInvalidState)
	}
	if token == "" {
		return Effects{}, fmt.Errorf("%w: empty deadline token", ErrInvalidState)
	}
	s.Status = Status{Phase: InProgress}
	s.TriesUsed = 0
	s.PendingRequest = ""
	s.DeadlineToken = token
	s.StartedAt = now
	ev := StartSuccess(s.UserID)
	return Effects{Notify: &ev, ArmToken: token}, nil
}

// CheckWord validates a guess and marks a request to the engine as pending.
func CheckWord(s *Session, word, requestID string) (Effects, error) {
	switch s.Status.Phase {
	case NotStarted:
		return Effects{}, fmt.Errorf("%w: the user is not in the game", ErrNotInGame)
	case Concluded:
		return Effects{}, fmt.Errorf("%w: game already finished", ErrInvalidState)
	}
	if s.PendingRequest != "" {
		return Effects{}, fmt.Errorf("%w: a check is already pending", ErrInvalidState)
	}
	if err := ValidateWord(word); err != nil {
		return Effects{}, err
	}
	s.PendingRequest = requestID
	return Effects{Dispatch: &CheckRequest{RequestID: requestID, UserID: s.UserID, Word: word}}, nil
}

// ApplyFeedback consumes a try with the engine's reply to the pending request.
func ApplyFeedback(s *Session, requestID string, fb Feedback, now time.Time) (Effects, error) {
	if s.Status.Phase != InProgress || s.PendingRequest == "" || s.PendingRequest != requestID {
		return Effects{}, fmt.Errorf("%w: no pending request %q", ErrStaleEvent, requestID)
	}
	if err := fb.Validate(); err != nil {
		return Effects{}, fmt.Errorf("%w: malformed feedback: %v", ErrStaleEvent, err)
	}

	s.PendingRequest = ""
	s.TriesUsed++
	fb = fb.Clone()
	s.LastFeedback = &fb

	eff := Effects{Resolve: requestID}
	var ev Event
	switch {
	case fb.Solved():
		conclude(s, Win, ReasonGuess, now, &eff)
		ev = GameOver(s.UserID, Win)
	case s.TriesUsed >= MaxTries:
		conclude(s, Lose, ReasonTries, now, &eff)
		ev = GameOver(s.UserID, Lose)
	default:
		ev = CheckWordResult(s.UserID, fb)
	}
	eff.Notify = &ev
	return eff, nil
}

// AbandonCheck clears a pending request that never reached the engine.
// No try is consumed.
func AbandonCheck(s *Session, requestID string) error {
	if s.PendingRequest == "" || s.PendingRequest != requestID {
		return fmt.Errorf("%w: no pending request %q", ErrStaleEvent, requestID)
	}
	s.PendingRequest = ""
	return nil
}

// ApplyTimeout forces a loss when token is the session's live deadline.
func ApplyTimeout(s *Session, token string, now time.Time) (Effects, error) {
	if s.Status.Phase != InProgress || token == "" || s.DeadlineToken != token {
		return Effects{}, fmt.Errorf("%w: deadline %q is not live", ErrStaleEvent, token)
	}
	eff := Effects{Resolve: s.PendingRequest}
	s.PendingRequest = ""
	conclude(s, Lose, ReasonTimeout, now, &eff)
	ev := GameOver(s.UserID, Lose)
	eff.Notify = &ev
	return eff, nil
}

func conclude(s *Session, o Outcome, reason string, now time.Time, eff *Effects) {
	eff.CancelToken = s.DeadlineToken
	eff.Concluded = true
	s.Status = ConcludedWith(o)
	s.DeadlineToken = ""
	s.ConcludedAt = now
	s.Reason = reason
}

// ValidateWord checks that word is exactly WordLength lowercase ASCII letters.
func ValidateWord(word string) error {
	if len(word) != WordLength {
		return fmt.Errorf("%w: want %d letters, got %d", ErrInvalidWord, WordLength, len(word))
	}
	for i := 0; i < len(word); i++ {
		if c := word[i]; c < 'a' || c > 'z' {
			return fmt.Errorf("%w: %q is not a lowercase letter", ErrInvalidWord, c)
		}
	}
	return nil
}

// CheckTransition verifies that next is a legal successor of prev: same
// identity, phase and tries never move backwards, and nothing leaves
// Concluded.
func CheckTransition(prev, next Session) error {
	if prev.UserID != next.UserID || prev.EngineRef != next.EngineRef {
		return fmt.Errorf("session identity changed")
	}
	if next.Status.Phase < prev.Status.Phase {
		return fmt.Errorf("phase moved back from %s to %s", prev.Status, next.Status)
	}
	if next.TriesUsed < prev.TriesUsed {
		return fmt.Errorf("tries used decreased from %d to %d", prev.TriesUsed, next.TriesUsed)
	}
	if prev.Status.IsTerminal() && next.Status != prev.Status {
		return fmt.Errorf("concluded session changed status to %s", next.Status)
	}
	return next.Validate()
}

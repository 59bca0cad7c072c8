// internal/game/types.go
//
// Core type definitions for a single player's game session.
// Defines:
//   - Phase/Outcome/Status: closed enums for session progress.
//   - Session: the per-user record owned by the orchestrator.
//   - Feedback: per-position result of one checked word.
//   - Event: outward notification sent back to the player.
//   - Effects: everything a transition asks the orchestrator to do.

package game

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// WordLength is the number of letters in every guess.
	WordLength = 5
	// MaxTries is the number of completed guess rounds before a forced loss.
	MaxTries = 5

	// DefaultTimeoutBlocks is the game horizon measured in blocks.
	DefaultTimeoutBlocks = 200
	// BlockDuration is the wall-clock length of one block.
	// 200 blocks = 10 minutes.
	BlockDuration = 3 * time.Second
)

// DefaultTimeout is the wall-clock horizon after which a started game is lost.
const DefaultTimeout = DefaultTimeoutBlocks * BlockDuration

// Phase is the coarse lifecycle position of a session.
type Phase uint8

const (
	NotStarted Phase = iota
	InProgress
	Concluded
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Concluded:
		return "concluded"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// Outcome is only meaningful once a session is Concluded.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	Win
	Lose
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case Win:
		return "win"
	case Lose:
		return "lose"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// MarshalText renders the outcome as its lowercase name.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText parses the names produced by MarshalText.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none", "":
		*o = OutcomeNone
	case "win":
		*o = Win
	case "lose":
		*o = Lose
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// Status combines phase and outcome: NotStarted, InProgress,
// Concluded(Win) or Concluded(Lose).
type Status struct {
	Phase   Phase
	Outcome Outcome
}

// ConcludedWith returns the terminal status for o.
func ConcludedWith(o Outcome) Status { return Status{Phase: Concluded, Outcome: o} }

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool { return s.Phase == Concluded }

func (s Status) String() string {
	if s.Phase == Concluded {
		return "concluded(" + s.Outcome.String() + ")"
	}
	return s.Phase.String()
}

// MarshalText renders the status as "not_started", "in_progress",
// "concluded(win)" or "concluded(lose)".
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Session is one player's game record. It is a plain value; the store hands
// out copies and commits them through Update.
type Session struct {
	UserID    string `json:"userId"`
	EngineRef string `json:"engineRef"`
	Status    Status `json:"status"`
	TriesUsed int    `json:"triesUsed"`

	// PendingRequest correlates the outstanding engine check, empty when none.
	PendingRequest string `json:"pendingRequest,omitempty"`
	// DeadlineToken identifies the live timeout, empty when none.
	DeadlineToken string `json:"deadlineToken,omitempty"`

	StartedAt    time.Time `json:"startedAt,omitempty"`
	ConcludedAt  time.Time `json:"concludedAt,omitempty"`
	LastFeedback *Feedback `json:"lastFeedback,omitempty"`
	// Reason records what concluded the game ("guess", "tries", "timeout").
	Reason string `json:"reason,omitempty"`
}

// NewSession returns a NotStarted session for userID bound to engineRef.
func NewSession(userID, engineRef string) Session {
	return Session{UserID: userID, EngineRef: engineRef}
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	if s.LastFeedback != nil {
		fb := s.LastFeedback.Clone()
		s.LastFeedback = &fb
	}
	return s
}

// Validate checks the record-level invariants of a session.
func (s Session) Validate() error {
	if s.TriesUsed < 0 || s.TriesUsed > MaxTries {
		return fmt.Errorf("tries used %d out of range [0,%d]", s.TriesUsed, MaxTries)
	}
	switch s.Status.Phase {
	case NotStarted:
		if s.PendingRequest != "" || s.DeadlineToken != "" || s.TriesUsed != 0 {
			return fmt.Errorf("not started session carries progress state")
		}
		if s.Status.Outcome != OutcomeNone {
			return fmt.Errorf("not started session has outcome %s", s.Status.Outcome)
		}
	case InProgress:
		if s.DeadlineToken == "" {
			return fmt.Errorf("in-progress session without a live deadline")
		}
		if s.Status.Outcome != OutcomeNone {
			return fmt.Errorf("in-progress session has outcome %s", s.Status.Outcome)
		}
	case Concluded:
		if s.Status.Outcome == OutcomeNone {
			return fmt.Errorf("concluded session without outcome")
		}
		if s.PendingRequest != "" {
			return fmt.Errorf("concluded session still has a pending request")
		}
	default:
		return fmt.Errorf("unknown phase %d", s.Status.Phase)
	}
	return nil
}

// Feedback is the per-position result of checking one word.
// Both sequences hold 0-based positions in increasing order and are disjoint.
type Feedback struct {
	CorrectPositions []int `json:"correct_positions"`
	ContainedInWord  []int `json:"contained_in_word"`
}

// Clone returns a deep copy of f.
func (f Feedback) Clone() Feedback {
	return Feedback{
		CorrectPositions: append([]int{}, f.CorrectPositions...),
		ContainedInWord:  append([]int{}, f.ContainedInWord...),
	}
}

// Solved reports whether every position is an exact match.
func (f Feedback) Solved() bool { return len(f.CorrectPositions) == WordLength }

// Validate checks range, ordering and disjointness of the two sequences.
func (f Feedback) Validate() error {
	var seen [WordLength]bool
	for _, seq := range [][]int{f.CorrectPositions, f.ContainedInWord} {
		prev := -1
		for _, p := range seq {
			if p < 0 || p >= WordLength {
				return fmt.Errorf("position %d out of range", p)
			}
			if p <= prev {
				return fmt.Errorf("positions not strictly increasing at %d", p)
			}
			if seen[p] {
				return fmt.Errorf("position %d reported twice", p)
			}
			seen[p] = true
			prev = p
		}
	}
	return nil
}

// EventKind tags an outward notification.
type EventKind uint8

const (
	EventStartSuccess EventKind = iota + 1
	EventCheckWordResult
	EventGameOver
)

func (k EventKind) String() string {
	switch k {
	case EventStartSuccess:
		return "start_success"
	case EventCheckWordResult:
		return "check_word_result"
	case EventGameOver:
		return "game_over"
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// Event is a notification emitted to the player.
//   - StartSuccess carries nothing.
//   - CheckWordResult carries Feedback.
//   - GameOver carries Outcome.
type Event struct {
	Kind     EventKind
	UserID   string
	Feedback Feedback
	Outcome  Outcome
}

// StartSuccess builds the StartSuccess notification.
func StartSuccess(userID string) Event { return Event{Kind: EventStartSuccess, UserID: userID} }

// CheckWordResult builds the turn feedback notification.
func CheckWordResult(userID string, fb Feedback) Event {
	return Event{Kind: EventCheckWordResult, UserID: userID, Feedback: fb.Clone()}
}

// GameOver builds the terminal notification.
func GameOver(userID string, o Outcome) Event {
	return Event{Kind: EventGameOver, UserID: userID, Outcome: o}
}

// MarshalJSON encodes only the fields relevant to the event kind.
func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": e.Kind.String()}
	if e.UserID != "" {
		out["userId"] = e.UserID
	}
	switch e.Kind {
	case EventCheckWordResult:
		out["correct_positions"] = nonNil(e.Feedback.CorrectPositions)
		out["contained_in_word"] = nonNil(e.Feedback.ContainedInWord)
	case EventGameOver:
		out["outcome"] = e.Outcome
	}
	return json.Marshal(out)
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

// CheckRequest asks the word-check engine to score Word for UserID.
type CheckRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	Word      string `json:"word"`
}

// Effects lists what the orchestrator must do after committing a transition.
type Effects struct {
	// Notify is sent to the player's notification stream.
	Notify *Event
	// Dispatch is sent asynchronously to the session's engine.
	Dispatch *CheckRequest
	// Arm asks for a timeout delivering ArmToken after the game horizon.
	ArmToken string
	// CancelToken names a deadline that is no longer live.
	CancelToken string
	// Resolve names the pending request whose waiting caller receives Notify.
	Resolve string
	// Concluded is set when this transition ended the game.
	Concluded bool
}

// internal/history/history.go
//
// Archive of concluded games, backed by the SQLite games table.
// Store implements the orchestrator's Recorder hook: every session that
// reaches Concluded is written once. Writes are best-effort from the
// orchestrator's point of view; a failed write never affects gameplay.

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
)

// Result is one archived game.
type Result struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason"`
	TriesUsed   int       `json:"triesUsed"`
	StartedAt   time.Time `json:"startedAt"`
	ConcludedAt time.Time `json:"concludedAt"`
}

// Stats summarises a player's archive.
type Stats struct {
	UserID      string `json:"id"`
	GamesPlayed int    `json:"gamesPlayed"`
	Wins        int    `json:"wins"`
	Streak      int    `json:"streak"`
	MaxStreak   int    `json:"maxStreak"`
}

// Store reads and writes the games table.
type Store struct {
	db *sql.DB
}

// NewStore wraps db. The games table must already exist.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// FromSession converts a concluded session into a Result.
func FromSession(s game.Session) (Result, error) {
	if !s.Status.IsTerminal() {
		return Result{}, fmt.Errorf("session for %q is %s, not concluded", s.UserID, s.Status)
	}
	return Result{
		UserID:      s.UserID,
		Outcome:     s.Status.Outcome.String(),
		Reason:      s.Reason,
		TriesUsed:   s.TriesUsed,
		StartedAt:   s.StartedAt,
		ConcludedAt: s.ConcludedAt,
	}, nil
}

// Record archives a concluded session.
func (s *Store) Record(ctx context.Context, sess game.Session) error {
	r, err := FromSession(sess)
	if err != nil {
		return err
	}
	_, err = s.Insert(ctx, r)
	return err
}

// Insert writes r and returns its row id.
func (s *Store) Insert(ctx context.Context, r Result) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO games (user_id, outcome, reason, tries_used, started_at, concluded_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Outcome, r.Reason, r.TriesUsed,
		r.StartedAt.UTC().Format(time.RFC3339Nano), r.ConcludedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}
	return res.LastInsertId()
}

// ForUser returns the user's most recent games, newest first.
// Default limit is 50 if not specified.
func (s *Store) ForUser(ctx context.Context, userID string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, outcome, reason, tries_used, started_at, concluded_at
        FROM games
        WHERE user_id = ?
        ORDER BY concluded_at DESC, id DESC
        LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var r Result
		var started, concluded string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Outcome, &r.Reason, &r.TriesUsed, &started, &concluded); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.ConcludedAt, _ = time.Parse(time.RFC3339Nano, concluded)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats computes played, wins and streaks. The current streak counts
// consecutive wins back from the most recent game.
func (s *Store) Stats(ctx context.Context, userID string) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT outcome FROM games WHERE user_id = ? ORDER BY concluded_at ASC, id ASC`, userID)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	st := Stats{UserID: userID}
	for rows.Next() {
		var outcome string
		if err := rows.Scan(&outcome); err != nil {
			return Stats{}, err
		}
		st.GamesPlayed++
		if outcome == game.Win.String() {
			st.Wins++
			st.Streak++
			if st.Streak > st.MaxStreak {
				st.MaxStreak = st.Streak
			}
		} else {
			st.Streak = 0
		}
	}
	return st, rows.Err()
}

// Claim moves every game recorded under from to to. It runs when an
// anonymous player signs up or logs in.
func (s *Store) Claim(ctx context.Context, from, to string) (int64, error) {
	if from == "" || to == "" || from == to {
		return 0, errors.New("claim: need two distinct ids")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE games SET user_id = ? WHERE user_id = ?`, to, from)
	if err != nil {
		return 0, fmt.Errorf("claim games: %w", err)
	}
	return res.RowsAffected()
}

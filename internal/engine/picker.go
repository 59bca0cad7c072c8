// internal/engine/picker.go
//
// Secret word selection, one pick per player.

package engine

import (
	"time"

	"github.com/robalobadob/wordle/apps/gamesession/internal/daily"
	"github.com/robalobadob/wordle/apps/gamesession/internal/words"
)

// Picker chooses the secret word for a user's game.
type Picker interface {
	Pick(userID string) string
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(userID string) string

func (f PickerFunc) Pick(userID string) string { return f(userID) }

// FixedPicker gives every user the same secret. Useful for tests and demos.
func FixedPicker(secret string) Picker {
	return PickerFunc(func(string) string { return secret })
}

// RandomPicker draws a random answer per user.
func RandomPicker(l *words.Lists) Picker {
	return PickerFunc(func(string) string { return l.RandomAnswer() })
}

// DailyPicker gives each user a stable answer per UTC day.
// now may be nil for wall-clock time.
func DailyPicker(l *words.Lists, salt string, now func() time.Time) Picker {
	if now == nil {
		now = time.Now
	}
	return PickerFunc(func(userID string) string {
		n, _ := l.Stats()
		return l.Answer(daily.UserWordIndex(now(), salt, userID, n))
	})
}

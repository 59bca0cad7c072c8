// internal/engine/score.go
//
// Guess scoring: the standard two-pass Wordle algorithm.
//
// Pass 1:
//   - Exact matches go to CorrectPositions.
//   - Remaining (non-hit) secret letters are counted.
//
// Pass 2:
//   - Each non-hit guess letter with a remaining count goes to
//     ContainedInWord and consumes one count.
//
// Repeated letters are therefore never over-reported.

package engine

import "github.com/robalobadob/wordle/apps/gamesession/internal/game"

// Score compares guess against secret. Both must be equal-length lowercase
// a–z strings; positions beyond the shorter one are ignored.
func Score(guess, secret string) game.Feedback {
	n := len(guess)
	if len(secret) < n {
		n = len(secret)
	}
	fb := game.Feedback{CorrectPositions: []int{}, ContainedInWord: []int{}}
	hit := make([]bool, n)

	// Letter frequency for the non-hit secret positions (a–z).
	var counts [26]int
	for i := 0; i < n; i++ {
		if guess[i] == secret[i] {
			hit[i] = true
			fb.CorrectPositions = append(fb.CorrectPositions, i)
		} else if j := idx(secret[i]); j >= 0 {
			counts[j]++
		}
	}
	for i := 0; i < n; i++ {
		if hit[i] {
			continue
		}
		if j := idx(guess[i]); j >= 0 && counts[j] > 0 {
			fb.ContainedInWord = append(fb.ContainedInWord, i)
			counts[j]--
		}
	}
	return fb
}

// idx maps a lowercase ASCII letter to 0..25, anything else to -1.
func idx(c byte) int {
	if c < 'a' || c > 'z' {
		return -1
	}
	return int(c - 'a')
}

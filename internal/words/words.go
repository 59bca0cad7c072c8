// internal/words/words.go
//
// Word list management for the word-check engine.
//
// Responsibilities:
//   - Parse answer and allowed-guess lists (one word per line).
//   - Keep only valid words: exactly 5 lowercase letters a–z.
//   - Maintain sets for quick lookups (answers only, answers ∪ allowed).
//
// Sources:
//   1. WORDS_ANSWERS_FILE and WORDS_ALLOWED_FILE both set: LoadFiles reads them.
//   2. Only WORDS_ALLOWED_FILE set: the one file serves as both lists.
//   3. Neither set: the embedded lists in package assets.
//
// A Lists value is immutable after construction and safe for concurrent use.

package words

import (
	"bufio"
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"os"
	"strings"
)

// ErrEmpty is returned when the answers list has no valid words.
var ErrEmpty = errors.New("words: answers list is empty")

// Lists holds canonical answers and the accepted guess set.
type Lists struct {
	answers    []string            // canonical answers, file order, deduplicated
	answersSet map[string]struct{} // answers only
	allowedSet map[string]struct{} // answers ∪ allowed
}

// New builds Lists from in-memory words. Invalid entries are dropped.
func New(answers, allowed []string) (*Lists, error) {
	l := &Lists{
		answersSet: make(map[string]struct{}, len(answers)),
		allowedSet: make(map[string]struct{}, len(answers)+len(allowed)),
	}
	for _, w := range answers {
		w = normalize(w)
		if !valid(w) {
			continue
		}
		if _, dup := l.answersSet[w]; !dup {
			l.answers = append(l.answers, w)
			l.answersSet[w] = struct{}{}
		}
		l.allowedSet[w] = struct{}{}
	}
	for _, w := range allowed {
		if w = normalize(w); valid(w) {
			l.allowedSet[w] = struct{}{}
		}
	}
	if len(l.answers) == 0 {
		return nil, ErrEmpty
	}
	return l, nil
}

// Parse reads an answers stream and an optional allowed stream (nil to skip).
func Parse(answers, allowed io.Reader) (*Lists, error) {
	ans, err := readWords(answers)
	if err != nil {
		return nil, err
	}
	var all []string
	if allowed != nil {
		if all, err = readWords(allowed); err != nil {
			return nil, err
		}
	}
	return New(ans, all)
}

// LoadFiles reads lists from disk. An empty answersPath means allowedPath
// supplies both answers and guesses.
func LoadFiles(answersPath, allowedPath string) (*Lists, error) {
	if answersPath == "" {
		answersPath = allowedPath
	}
	ans, err := readWordFile(answersPath)
	if err != nil {
		return nil, err
	}
	var all []string
	if allowedPath != "" && allowedPath != answersPath {
		if all, err = readWordFile(allowedPath); err != nil {
			return nil, err
		}
	}
	return New(ans, all)
}

func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readWords(f)
}

// readWords scans one word per line, skipping blanks and # comments.
func readWords(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func normalize(w string) string { return strings.ToLower(strings.TrimSpace(w)) }

// valid reports whether w is exactly 5 lowercase ASCII letters.
func valid(w string) bool {
	if len(w) != 5 {
		return false
	}
	for i := 0; i < len(w); i++ {
		if w[i] < 'a' || w[i] > 'z' {
			return false
		}
	}
	return true
}

// Answers returns a copy of the canonical answers.
func (l *Lists) Answers() []string { return append([]string{}, l.answers...) }

// Answer returns the i-th answer, wrapping around the list.
func (l *Lists) Answer(i int) string {
	n := len(l.answers)
	return l.answers[((i%n)+n)%n]
}

// RandomAnswer returns a cryptographically random answer.
func (l *Lists) RandomAnswer() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(l.answers))))
	if err != nil {
		return l.answers[0]
	}
	return l.answers[n.Int64()]
}

// IsAllowed reports whether w is a valid guess (answers ∪ allowed).
func (l *Lists) IsAllowed(w string) bool {
	_, ok := l.allowedSet[normalize(w)]
	return ok
}

// IsAnswer reports whether w is an answer word.
func (l *Lists) IsAnswer(w string) bool {
	_, ok := l.answersSet[normalize(w)]
	return ok
}

// Stats returns counts of loaded words: (answers, allowed).
func (l *Lists) Stats() (answersCount int, allowedCount int) {
	return len(l.answers), len(l.allowedSet)
}

// assets/embed.go
//
// Embedded default word lists. The engine falls back to these when no
// WORDS_ANSWERS_FILE / WORDS_ALLOWED_FILE is configured.
//
// File format: one word per line, blank lines and "#" comments ignored.

package assets

import (
	"embed"
	"io/fs"

	"github.com/robalobadob/wordle/apps/gamesession/internal/words"
)

//go:embed allowed.txt answers.txt
var FS embed.FS

// Load parses both embedded lists into a words.Lists.
func Load() (*words.Lists, error) {
	return LoadFS(FS, "answers.txt", "allowed.txt")
}

// LoadFS parses an answers file and an allowed file from fsys.
func LoadFS(fsys fs.FS, answersName, allowedName string) (*words.Lists, error) {
	ans, err := fsys.Open(answersName)
	if err != nil {
		return nil, err
	}
	defer ans.Close()
	allowed, err := fsys.Open(allowedName)
	if err != nil {
		return nil, err
	}
	defer allowed.Close()
	return words.Parse(ans, allowed)
}

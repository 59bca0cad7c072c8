package words

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFiltersAndDeduplicates(t *testing.T) {
	l, err := New([]string{"Horse", " crane ", "horse", "toolong", "ab1de"}, []string{"house", "HOUSE", "x"})
	require.NoError(t, err)

	assert.Equal(t, []string{"horse", "crane"}, l.Answers())
	a, g := l.Stats()
	assert.Equal(t, 2, a)
	assert.Equal(t, 3, g)
	assert.True(t, l.IsAnswer("HORSE"))
	assert.False(t, l.IsAnswer("house"))
	assert.True(t, l.IsAllowed("house"))
	assert.True(t, l.IsAllowed("crane"))
	assert.False(t, l.IsAllowed("toolong"))
}

func TestNewEmpty(t *testing.T) {
	_, err := New([]string{"nope"}, []string{"house"})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParseSkipsComments(t *testing.T) {
	l, err := Parse(strings.NewReader("# answers\nhorse\n\ncrane\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"horse", "crane"}, l.Answers())
}

func TestAnswerWraps(t *testing.T) {
	l, err := New([]string{"horse", "crane", "slate"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "horse", l.Answer(3))
	assert.Equal(t, "slate", l.Answer(-1))
}

func TestRandomAnswerIsAnAnswer(t *testing.T) {
	l, err := New([]string{"horse", "crane"}, nil)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		assert.True(t, l.IsAnswer(l.RandomAnswer()))
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	ans := filepath.Join(dir, "answers.txt")
	all := filepath.Join(dir, "allowed.txt")
	require.NoError(t, os.WriteFile(ans, []byte("horse\n"), 0o644))
	require.NoError(t, os.WriteFile(all, []byte("house\n"), 0o644))

	l, err := LoadFiles(ans, all)
	require.NoError(t, err)
	assert.Equal(t, []string{"horse"}, l.Answers())
	assert.True(t, l.IsAllowed("house"))

	// Only the allowed file: it doubles as the answers list.
	l, err = LoadFiles("", all)
	require.NoError(t, err)
	assert.Equal(t, []string{"house"}, l.Answers())

	_, err = LoadFiles(filepath.Join(dir, "missing.txt"), "")
	assert.Error(t, err)
}

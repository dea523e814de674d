package words

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultListIsUsable(t *testing.T) {
	src := Default(1)
	require.Greater(t, src.Len(), 100)
	for i := 0; i < 50; i++ {
		w := src.RandomWord()
		assert.NotEmpty(t, w)
		assert.NotContains(t, w, "#")
	}
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New([]string{"", "   "}, 1)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoadReadsTextAndCSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("apple\n\n# comment\n banana \n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("cherry,3\ndate,1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored\n"), 0o644))

	src, err := Load(dir, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"apple", "banana", "cherry", "date"}, src.words)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[src.RandomWord()] = true
	}
	assert.Len(t, seen, 4)
}

func TestLoadEmptyDir(t *testing.T) {
	_, err := Load(t.TempDir(), 1)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), 1)
	assert.Error(t, err)
}

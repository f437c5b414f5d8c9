package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("creates and overwrites", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "note.md")

		require.NoError(t, writeFileAtomic(filename, []byte("first"), 0o644))
		require.NoError(t, writeFileAtomic(filename, []byte("second"), 0o644))

		got, err := os.ReadFile(filename)
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, writeFileAtomic(filepath.Join(dir, "a.md"), []byte("x"), 0o644))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a.md", entries[0].Name())
	})

	t.Run("fails if directory missing", func(t *testing.T) {
		err := writeFileAtomic(filepath.Join(t.TempDir(), "missing", "a.md"), []byte("x"), 0o644)
		assert.Error(t, err)
	})
}

func TestIsTempFile(t *testing.T) {
	assert.True(t, isTempFile("/vault/notes/"+TempFilePrefix+"123"))
	assert.False(t, isTempFile("/vault/notes/abc.md"))
}

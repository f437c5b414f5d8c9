package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
)

func newVault(t *testing.T) string {
	t.Helper()
	vault := filepath.Join(t.TempDir(), "vault")
	require.NoError(t, os.MkdirAll(vault, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vault, "notesync.yaml"),
		[]byte("watch: false\nbcrypt_cost: 4\n"), 0o644))
	return vault
}

func run(t *testing.T, vault string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--vault", vault}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLIFlow(t *testing.T) {
	vault := newVault(t)

	out, err := run(t, vault, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in\n", out)

	_, err = run(t, vault, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")

	out, err = run(t, vault, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Welcome, @Ada\n", out)

	first, err := run(t, vault, "add", "--title", "  First  ", "--content", "one")
	require.NoError(t, err)
	firstID := strings.TrimSpace(first)
	require.NotEmpty(t, firstID)

	second, err := run(t, vault, "add", "--title", "Second")
	require.NoError(t, err)
	secondID := strings.TrimSpace(second)

	out, err = run(t, vault, "list", "--json")
	require.NoError(t, err)
	var notes []core.Note
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	require.Len(t, notes, 2)
	assert.Equal(t, []string{secondID, firstID}, []string{notes[0].ID, notes[1].ID})
	assert.Equal(t, "First", notes[1].Title)

	_, err = run(t, vault, "edit", firstID, "--content", "changed")
	require.NoError(t, err)

	out, err = run(t, vault, "list", "--json")
	require.NoError(t, err)
	notes = nil
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	require.Len(t, notes, 2)
	assert.Equal(t, firstID, notes[0].ID, "edited note moves to the top")
	assert.Equal(t, "First", notes[0].Title)
	assert.Equal(t, "changed", notes[0].Content)

	out, err = run(t, vault, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "@Ada")
	assert.Contains(t, out, "No content")

	out, err = run(t, vault, "rm", secondID, secondID)
	require.NoError(t, err)
	assert.Equal(t, "Deleted "+secondID+"\n", out)

	out, err = run(t, vault, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Signed out\n", out)

	_, err = run(t, vault, "login", "--email", "ada@example.com", "--password", "wrong-pass")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())

	out, err = run(t, vault, "login", "--email", "ada@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as @Ada\n", out)
}

func TestCLIRegisterValidation(t *testing.T) {
	vault := newVault(t)

	_, err := run(t, vault, "register", "--name", "Bo", "--email", "bo@example.com", "--password", "secret1", "--confirm", "secret2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")

	_, err = run(t, vault, "register", "--name", "Bo", "--email", "bo@example.com", "--password", "123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6")

	_, err = run(t, vault, "add", "--title", "x")
	require.Error(t, err)
}

func TestCLIEditForeignNote(t *testing.T) {
	vault := newVault(t)

	_, err := run(t, vault, "register", "--name", "A", "--email", "a@example.com", "--password", "secret1")
	require.NoError(t, err)
	out, err := run(t, vault, "add", "--title", "mine")
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	_, err = run(t, vault, "logout")
	require.NoError(t, err)
	_, err = run(t, vault, "register", "--name", "B", "--email", "b@example.com", "--password", "secret1")
	require.NoError(t, err)

	_, err = run(t, vault, "edit", id, "--title", "stolen")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	out, err = run(t, vault, "list", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestVersion(t *testing.T) {
	out, err := run(t, newVault(t), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "notesync version "))
}

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
adapter: memory
collection: journal
extension: .json
watch: false
event_buffer: 10
log_level: debug
`), 0o644))

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Adapter)
	assert.Equal(t, "journal", cfg.Collection)
	require.NotNil(t, cfg.Watch)
	assert.False(t, *cfg.Watch)
	assert.Equal(t, "debug", cfg.LogLevel)

	o := defaultOptions()
	for _, opt := range cfg.Options() {
		opt(o)
	}
	assert.Equal(t, AdapterMemory, o.adapter)
	assert.Equal(t, "journal", o.config["collection"])
	assert.Equal(t, ".json", o.config["extension"])
	assert.Equal(t, false, o.config["watch"])
	assert.Equal(t, 10, o.config["event_buffer"])
}

func TestLoadConfigMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := LoadConfig(missing, false)
	require.NoError(t, err)
	assert.Empty(t, cfg.Options())

	_, err = LoadConfig(missing, true)
	assert.Error(t, err)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("adapter: [unclosed"), 0o644))

	_, err := LoadConfig(path, true)
	assert.Error(t, err)
}

package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the config file looked up in a vault root.
const ConfigFileName = "notesync.yaml"

// FileConfig is the YAML config file of the CLI. Zero values keep defaults.
type FileConfig struct {
	Vault       string `yaml:"vault"`
	Adapter     string `yaml:"adapter"`
	Collection  string `yaml:"collection"`
	Extension   string `yaml:"extension"`
	Watch       *bool  `yaml:"watch"`
	EventBuffer int    `yaml:"event_buffer"`
	BcryptCost  int    `yaml:"bcrypt_cost"`
	LogLevel    string `yaml:"log_level"`
}

// LoadConfig reads a config file. A missing file yields an empty config
// unless required is set.
func LoadConfig(path string, required bool) (FileConfig, error) {
	var cfg FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Options translates the file settings into functional options.
func (c FileConfig) Options() []Option {
	var opts []Option
	if c.Adapter != "" {
		opts = append(opts, WithAdapter(c.Adapter))
	}
	if c.Collection != "" {
		opts = append(opts, WithCollection(c.Collection))
	}
	if c.Extension != "" {
		opts = append(opts, WithExtension(c.Extension))
	}
	if c.Watch != nil {
		opts = append(opts, WithWatch(*c.Watch))
	}
	if c.EventBuffer > 0 {
		opts = append(opts, WithEventBuffer(c.EventBuffer))
	}
	if c.BcryptCost > 0 {
		opts = append(opts, WithBcryptCost(c.BcryptCost))
	}
	return opts
}

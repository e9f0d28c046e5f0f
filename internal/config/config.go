// Package config loads the optional .gitlanes.toml configuration file.
// Every field has a default, so running without a file always works; flags
// override whatever the file provides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFileName is looked up in the repository's working directory when no
// explicit --config path is given.
const DefaultFileName = ".gitlanes.toml"

// Config is the full tool configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Graph  GraphConfig  `toml:"graph"`
}

// ServerConfig configures gitlanes serve.
type ServerConfig struct {
	Addr         string   `toml:"addr"`
	PollInterval Duration `toml:"poll_interval"`
}

// GraphConfig configures the layout passed to the engine.
type GraphConfig struct {
	PaletteSize int `toml:"palette_size"`
	MaxCommits  int `toml:"max_commits"`
}

// Duration wraps time.Duration so TOML values can be written as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "localhost:8080",
			PollInterval: Duration{5 * time.Second},
		},
		Graph: GraphConfig{
			PaletteSize: 8,
			MaxCommits:  0,
		},
	}
}

// Load reads the configuration file at path, layered over the defaults.
// A missing file is not an error when the path is the implicit default;
// explicit paths must exist.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

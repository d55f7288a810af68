// Package config loads the mirrorget configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the config file name inside the app directory.
	ConfigFileName = "config.yml"
	// AppDirName is the directory under ~/.config holding mirrorget state.
	AppDirName = "mirrorget"
	// EnvConfigPath overrides the config file location when set.
	EnvConfigPath = "MIRRORGET_CONFIG"
)

// Config holds the user-tunable defaults applied by the CLI. Flags override
// config values; config values override built-in defaults.
type Config struct {
	// ChunkSize is the range size for chunked downloads, in human-readable
	// form (e.g. "512KiB", "2MB").
	ChunkSize string `yaml:"chunk_size,omitempty"`

	// Timeout bounds each HTTP request of a download (e.g. "10m"): the whole
	// transfer of a simple download, each range of a chunked one. Zero means
	// none.
	Timeout string `yaml:"timeout,omitempty"`

	// UserAgent is sent with every HTTP request.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Concurrency bounds simultaneous downloads in batch mode.
	Concurrency int `yaml:"concurrency,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:   "512KiB",
		UserAgent:   "mirrorget",
		Concurrency: 4,
	}
}

// ConfigPath returns the config file location, honoring EnvConfigPath.
func ConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName, ConfigFileName), nil
}

// Load reads the config file, filling unset fields with defaults. A missing
// file is not an error: the defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config file at path, filling unset fields with
// defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.ChunkSize == "" {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return cfg, nil
}

// ChunkSizeBytes parses ChunkSize into bytes.
func (c *Config) ChunkSizeBytes() (int64, error) {
	n, err := units.RAMInBytes(c.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("config: invalid chunk_size %q: %w", c.ChunkSize, err)
	}
	return n, nil
}

// TimeoutDuration parses Timeout; an empty value means no timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("config: invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

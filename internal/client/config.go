package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chat_relay_go_backend/internal/render"

	"github.com/BurntSushi/toml"
)

const (
	DefaultServerURL = "http://localhost:3000"
	DefaultMaxWords  = 100
	appDirName       = "chat-relay"
)

// Config holds the terminal client settings read from client.toml.
type Config struct {
	ServerURL        string `toml:"server_url"`
	RevealIntervalMS int    `toml:"reveal_interval_ms"`
	MaxWords         int    `toml:"max_words"`
}

func DefaultConfig() Config {
	return Config{
		ServerURL:        DefaultServerURL,
		RevealIntervalMS: int(render.DefaultInterval / time.Millisecond),
		MaxWords:         DefaultMaxWords,
	}
}

func (c Config) RevealInterval() time.Duration {
	return time.Duration(c.RevealIntervalMS) * time.Millisecond
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	c.ServerURL = strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	if c.ServerURL == "" {
		c.ServerURL = d.ServerURL
	}
	if c.RevealIntervalMS <= 0 {
		c.RevealIntervalMS = d.RevealIntervalMS
	}
	if c.MaxWords <= 0 {
		c.MaxWords = d.MaxWords
	}
}

// LoadConfig reads path if it exists. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// ConfigDir is where the client keeps its config file and user id.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

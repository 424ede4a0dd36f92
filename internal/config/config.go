// Package config loads server settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/omochice/caret-chat/pkg/protocol"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the server configuration. Empty listen addresses disable the
// matching listener, except Listen which is required.
type Config struct {
	Listen          string        `yaml:"listen"`
	WebSocketListen string        `yaml:"websocket_listen"`
	AdminListen     string        `yaml:"admin_listen"`
	HealthListen    string        `yaml:"health_listen"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	OutboxSize      int           `yaml:"outbox_size"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	Log             Log           `yaml:"log"`
}

// Log selects the logger level and output format.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:       fmt.Sprintf("0.0.0.0:%d", protocol.DefaultPort),
		WriteTimeout: 10 * time.Second,
		OutboxSize:   256,
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path on top of Default and validates it.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML from r on top of Default. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Listen == "":
		return fmt.Errorf("%w: listen is required", ErrInvalidConfig)
	case c.WriteTimeout <= 0:
		return fmt.Errorf("%w: write_timeout must be positive, got %v", ErrInvalidConfig, c.WriteTimeout)
	case c.OutboxSize <= 0:
		return fmt.Errorf("%w: outbox_size must be positive, got %d", ErrInvalidConfig, c.OutboxSize)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate_limit must not be negative, got %v", ErrInvalidConfig, c.RateLimit)
	case c.RateLimit > 0 && c.RateBurst <= 0:
		return fmt.Errorf("%w: rate_burst must be positive when rate_limit is set", ErrInvalidConfig)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log.format must be console or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

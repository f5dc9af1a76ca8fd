// Package config loads the agent configuration.
package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Default endpoint values, matching the conventional inspector port.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 9229
)

// Config holds the debugger agent settings.
type Config struct {
	// Enabled starts the I/O runner at agent startup. When false, the
	// runner can still be started later on demand (SIGUSR1 or an
	// explicit request).
	Enabled bool `toml:"enabled"`

	// Host is the interface the I/O runner binds to.
	Host string `toml:"host"`

	// Port is the TCP port the I/O runner listens on.
	Port int `toml:"port"`

	// BreakOnStart pauses the script on its first statement.
	BreakOnStart bool `toml:"break_on_start"`

	// LogLevel is the agent log level (trace, debug, info, warn, error, silent).
	LogLevel string `toml:"log_level"`
}

// Defaults returns the default agent configuration.
func Defaults() Config {
	return Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		LogLevel: "info",
	}
}

// Load reads a TOML configuration file. An empty path returns the defaults
// unchanged; a missing or malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d in %s", cfg.Port, path)
	}

	return cfg, nil
}

// Addr returns the host:port endpoint string.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

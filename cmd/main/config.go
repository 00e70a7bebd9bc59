package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/CTAG07/Markovian/pkg/markov"
	"github.com/natefinch/atomic"
)

// ServerConfig holds the settings shared by the CLI and the HTTP server.
type ServerConfig struct {
	ApiAddr      string `json:"api_addr"`
	LogLevel     string `json:"log_level"`
	DatabasePath string `json:"database_path"`
	MaxBodyBytes int64  `json:"max_body_bytes"`
}

// ModelConfig holds the defaults used when building speaker models.
type ModelConfig struct {
	DefaultOrder    int `json:"default_order"`
	InitialCapacity int `json:"initial_capacity"`
	MaxCapacity     int `json:"max_capacity"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig `json:"server_config"`
	Model  *ModelConfig  `json:"model_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:      ":7280",
		LogLevel:     "info",
		DatabasePath: "./data/markovian.db",
		MaxBodyBytes: 8 << 20,
	}
}

// DefaultModelConfig creates a model configuration with default values.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		DefaultOrder:    2,
		InitialCapacity: markov.DefaultCapacity,
		MaxCapacity:     0,
	}
}

// DefaultConfig returns a full configuration with every section set to its defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: DefaultServerConfig(),
		Model:  DefaultModelConfig(),
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err = SaveConfig(path, config); err != nil {
				// The defaults are still usable without a file on disk.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Sections missing from the file fall back to their defaults.
	if config.Server == nil {
		config.Server = DefaultServerConfig()
	}
	if config.Model == nil {
		config.Model = DefaultModelConfig()
	}

	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// SaveConfig writes config to path as indented JSON, replacing any existing file atomically.
func SaveConfig(path string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Server == nil || c.Model == nil {
		return errors.New("config sections must not be null")
	}
	if _, err := parseLevel(c.Server.LogLevel); err != nil {
		return err
	}
	if c.Server.DatabasePath == "" {
		return errors.New("database_path must be set")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Model.DefaultOrder < 1 {
		return fmt.Errorf("default_order must be positive, got %d", c.Model.DefaultOrder)
	}
	if c.Model.InitialCapacity < 1 {
		return fmt.Errorf("initial_capacity must be positive, got %d", c.Model.InitialCapacity)
	}
	if c.Model.MaxCapacity != 0 && c.Model.MaxCapacity < c.Model.InitialCapacity {
		return fmt.Errorf("max_capacity %d is below initial_capacity %d", c.Model.MaxCapacity, c.Model.InitialCapacity)
	}
	return nil
}

// Options converts the model settings into build options. A zero MaxCapacity
// keeps the table's own limit.
func (c *ModelConfig) Options(logger *slog.Logger) []markov.Option {
	opts := []markov.Option{
		markov.WithInitialCapacity(c.InitialCapacity),
		markov.WithLogger(logger),
	}
	if c.MaxCapacity > 0 {
		opts = append(opts, markov.WithMaxCapacity(c.MaxCapacity))
	}
	return opts
}

// parseLevel maps a config log level onto slog. An empty string means info.
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

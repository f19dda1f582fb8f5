// ABOUTME: Configuration loading for coven-relay
// ABOUTME: Loads TOML config with environment variable expansion and validation

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the complete coven-relay configuration.
type Config struct {
	Matrix   MatrixConfig   `toml:"matrix"`
	Relay    RelayConfig    `toml:"relay"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

// MatrixConfig holds homeserver connection settings.
type MatrixConfig struct {
	Homeserver  string `toml:"homeserver"`
	UserID      string `toml:"user_id"`
	AccessToken string `toml:"access_token"`
}

// RelayConfig holds the relay identities and notice texts. Empty notice
// texts fall back to the relay package defaults.
type RelayConfig struct {
	// OperatorID is the single privileged user who answers inquiries
	OperatorID string `toml:"operator_id"`

	// LogRoomID is the room holding one thread per end-user
	LogRoomID string `toml:"log_room_id"`

	// StartCommand triggers the welcome text instead of being relayed
	StartCommand string `toml:"start_command"`

	WelcomeText         string `toml:"welcome_text"`
	OperatorHintText    string `toml:"operator_hint_text"`
	DeliveryFailureText string `toml:"delivery_failure_text"`
	UnknownThreadText   string `toml:"unknown_thread_text"`
}

// DatabaseConfig holds correlation store configuration.
type DatabaseConfig struct {
	Path string `toml:"path"`

	// InMemory selects the non-durable degraded store. Every correlation
	// is lost on restart; existing log-room threads become unresolvable.
	InMemory bool `toml:"in_memory"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads config from the given path, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// applyDefaults fills optional fields that were left empty.
func (c *Config) applyDefaults() {
	if c.Relay.StartCommand == "" {
		c.Relay.StartCommand = "/start"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	if u, err := url.Parse(c.Matrix.Homeserver); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("matrix.homeserver must be a valid URL: %q", c.Matrix.Homeserver)
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required")
	}
	if c.Relay.OperatorID == "" {
		return fmt.Errorf("relay.operator_id is required")
	}
	if c.Relay.LogRoomID == "" {
		return fmt.Errorf("relay.log_room_id is required")
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("database.path is required (or set database.in_memory)")
	}
	return nil
}

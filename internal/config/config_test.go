package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const validConfig = `
[matrix]
homeserver = "https://matrix.example.org"
user_id = "@relay:example.org"
access_token = "syt_secret"

[relay]
operator_id = "@operator:example.org"
log_room_id = "!log:example.org"

[database]
path = "/tmp/relay.db"
`

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://matrix.example.org", cfg.Matrix.Homeserver)
	assert.Equal(t, "@operator:example.org", cfg.Relay.OperatorID)
	assert.Equal(t, "!log:example.org", cfg.Relay.LogRoomID)
	assert.Equal(t, "/tmp/relay.db", cfg.Database.Path)
	assert.False(t, cfg.Database.InMemory)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/start", cfg.Relay.StartCommand)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("RELAY_TEST_TOKEN", "syt_from_env")

	path := writeConfig(t, `
[matrix]
homeserver = "https://matrix.example.org"
user_id = "@relay:example.org"
access_token = "${RELAY_TEST_TOKEN}"

[relay]
operator_id = "@operator:example.org"
log_room_id = "!log:example.org"

[database]
in_memory = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "syt_from_env", cfg.Matrix.AccessToken)
	assert.True(t, cfg.Database.InMemory)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/relay.toml")
	assert.Error(t, err)
}

func TestValidate_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"homeserver", func(c *Config) { c.Matrix.Homeserver = "" }, "matrix.homeserver"},
		{"bad homeserver URL", func(c *Config) { c.Matrix.Homeserver = "not a url" }, "valid URL"},
		{"user_id", func(c *Config) { c.Matrix.UserID = "" }, "matrix.user_id"},
		{"access_token", func(c *Config) { c.Matrix.AccessToken = "" }, "matrix.access_token"},
		{"operator_id", func(c *Config) { c.Relay.OperatorID = "" }, "relay.operator_id"},
		{"log_room_id", func(c *Config) { c.Relay.LogRoomID = "" }, "relay.log_room_id"},
		{"database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Matrix: MatrixConfig{
					Homeserver:  "https://matrix.example.org",
					UserID:      "@relay:example.org",
					AccessToken: "syt_secret",
				},
				Relay: RelayConfig{
					OperatorID: "@operator:example.org",
					LogRoomID:  "!log:example.org",
				},
				Database: DatabaseConfig{Path: "/tmp/relay.db"},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_InMemoryNeedsNoPath(t *testing.T) {
	cfg := &Config{
		Matrix: MatrixConfig{
			Homeserver:  "https://matrix.example.org",
			UserID:      "@relay:example.org",
			AccessToken: "syt_secret",
		},
		Relay: RelayConfig{
			OperatorID: "@operator:example.org",
			LogRoomID:  "!log:example.org",
		},
		Database: DatabaseConfig{InMemory: true},
	}
	assert.NoError(t, cfg.Validate())
}

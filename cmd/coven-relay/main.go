// ABOUTME: Entry point for coven-relay
// ABOUTME: Relays direct inquiries into per-user threads of a Matrix log room

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-relay/internal/config"
	"github.com/2389/coven-relay/internal/matrix"
	"github.com/2389/coven-relay/internal/relay"
	"github.com/2389/coven-relay/internal/store"
)

const banner = `
                                             _
  ___ _____   _____ _ __        _ __ ___| | __ _ _   _
 / __/ _ \ \ / / _ \ '_ \ _____| '__/ _ \ |/ _' | | | |
| (_| (_) \ V /  __/ | | |_____| | |  __/ | (_| | |_| |
 \___\___/ \_/ \___|_| |_|     |_|  \___|_|\__,_|\__, |
                                                 |___/
`

// getConfigPath returns the path to the relay config file.
// Priority: COVEN_RELAY_CONFIG env var > XDG_CONFIG_HOME/coven/relay.toml > ~/.config/coven/relay.toml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "relay.toml")
}

// getDataPath returns the default data directory.
// Priority: XDG_DATA_HOME/coven > ~/.local/share/coven
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven")
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Homeserver: %s\n", cfg.Matrix.Homeserver)
	green.Print("    ▶ ")
	fmt.Printf("Log room:   %s\n", cfg.Relay.LogRoomID)
	green.Print("    ▶ ")
	fmt.Printf("Operator:   %s\n", cfg.Relay.OperatorID)
	if cfg.Database.InMemory {
		yellow := color.New(color.FgYellow)
		yellow.Print("    ▶ ")
		fmt.Println("Database:   in-memory (correlations are lost on restart)")
	} else {
		green.Print("    ▶ ")
		fmt.Printf("Database:   %s\n", cfg.Database.Path)
	}
	fmt.Println()

	// Graceful shutdown context first - everything below respects it
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	client, err := mautrix.NewClient(cfg.Matrix.Homeserver, id.UserID(cfg.Matrix.UserID), cfg.Matrix.AccessToken)
	if err != nil {
		return fmt.Errorf("creating matrix client: %w", err)
	}

	logRoom := id.RoomID(cfg.Relay.LogRoomID)
	gateway := matrix.NewGateway(client, logRoom, logger)

	engine := relay.New(st, gateway, relay.Config{
		OperatorID:          cfg.Relay.OperatorID,
		LogChannelID:        cfg.Relay.LogRoomID,
		StartCommand:        cfg.Relay.StartCommand,
		WelcomeText:         cfg.Relay.WelcomeText,
		OperatorHintText:    cfg.Relay.OperatorHintText,
		DeliveryFailureText: cfg.Relay.DeliveryFailureText,
		UnknownThreadText:   cfg.Relay.UnknownThreadText,
	}, logger)

	bridge := matrix.NewBridge(client, gateway, engine, id.UserID(cfg.Relay.OperatorID), logRoom, logger)

	logger.Info("starting relay")
	return bridge.Run(ctx)
}

// openStore opens the configured correlation store.
func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Database.InMemory {
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLiteStore(cfg.Database.Path)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func runInit() error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println("    Starter configuration")
	fmt.Println("    ---------------------")
	fmt.Println()

	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		yellow.Printf("    Config already exists at %s\n", configPath)
		return nil
	}

	dbPath := filepath.Join(getDataPath(), "relay.db")

	starter := fmt.Sprintf(`# coven-relay configuration
# Generated by coven-relay init

[matrix]
homeserver = "https://matrix.org"
user_id = "@relaybot:matrix.org"
access_token = "${COVEN_RELAY_TOKEN}"

[relay]
# The user who answers inquiries
operator_id = "@operator:matrix.org"
# The room holding one thread per end-user
log_room_id = "!changeme:matrix.org"
# Message answered with the welcome text instead of being relayed
start_command = "/start"

[database]
path = "%s"

[logging]
level = "info"
`, dbPath)

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(starter), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println()
	green.Printf("    ✓ Config written to %s\n", configPath)
	fmt.Println()
	fmt.Println("    Next steps:")
	fmt.Println("    1. Fill in the matrix and relay sections")
	fmt.Println("    2. Run: coven-relay")
	fmt.Println()

	return nil
}

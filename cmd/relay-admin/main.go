// ABOUTME: Admin CLI for coven-relay
// ABOUTME: Inspects and repairs the correlation store and relay ledger

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/coven-relay/internal/config"
	"github.com/2389/coven-relay/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = runList()
	case "remap":
		err = runRemap(os.Args[2:])
	case "events":
		err = runEvents(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		red := color.New(color.FgRed)
		red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	cyan.Println("relay-admin - coven-relay store administration")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  relay-admin list                   List all user/thread correlations")
	fmt.Println("  relay-admin remap <user> <thread>  Point a user at a different thread")
	fmt.Println("  relay-admin events [limit]         Show recent relay ledger entries")
	fmt.Println("  relay-admin help                   Show this help")
	fmt.Println()
	fmt.Println("The store location is read from the same config file as coven-relay")
	fmt.Println("(COVEN_RELAY_CONFIG, or $XDG_CONFIG_HOME/coven/relay.toml).")
}

// getConfigPath mirrors the daemon's config resolution so both tools
// always look at the same store.
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "relay.toml")
}

func openStore() (store.Store, error) {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	if cfg.Database.InMemory {
		return nil, fmt.Errorf("the relay is configured with an in-memory store; there is nothing to administer")
	}

	return store.NewSQLiteStore(cfg.Database.Path)
}

func runList() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	correlations, err := st.ListCorrelations(ctx, 0)
	if err != nil {
		return fmt.Errorf("listing correlations: %w", err)
	}

	if len(correlations) == 0 {
		fmt.Println("No correlations recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tTHREAD\tCREATED\tUPDATED")
	for _, c := range correlations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			c.UserID,
			c.ThreadID,
			c.CreatedAt.Format("2006-01-02 15:04:05"),
			c.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runRemap(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: relay-admin remap <user> <thread>")
	}
	userID, threadID := args[0], args[1]

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	previous, err := st.GetThread(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("looking up %s: %w", userID, err)
	}

	if err := st.Set(ctx, userID, threadID); err != nil {
		return fmt.Errorf("remapping %s: %w", userID, err)
	}

	green := color.New(color.FgGreen)
	if previous == "" {
		green.Printf("✓ Mapped %s to thread %s\n", userID, threadID)
	} else {
		green.Printf("✓ Remapped %s from thread %s to %s\n", userID, previous, threadID)
	}
	return nil
}

func runEvents(args []string) error {
	limit := 50
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("usage: relay-admin events [limit]")
		}
		limit = n
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	events, err := st.ListRelayEvents(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing relay events: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No relay events recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tDIRECTION\tUSER\tTHREAD\tOUTCOME\tDETAIL")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Direction,
			e.UserID,
			e.ThreadID,
			e.Outcome,
			e.Detail)
	}
	return w.Flush()
}

// ABOUTME: Entry point for the mirrorsync CLI, web front and MCP server
// ABOUTME: Loads configuration, sets up logging and routes to subcommands
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/harperreed/mirrorsync/cli"
	"github.com/harperreed/mirrorsync/config"
	"github.com/harperreed/mirrorsync/db"
)

const version = "0.1.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	configPath := flag.String("config", "", "Config file path (default: ~/.config/mirrorsync/config.yaml)")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/mirrorsync/mirrorsync.db)")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("mirrorsync version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	slog.SetDefault(setupLogger(cfg.Logging))

	if err := run(cfg, args[0], args[1:]); err != nil {
		fatal(err)
	}
}

func run(cfg *config.Config, command string, args []string) error {
	switch command {
	case "help", "-h", "--help":
		printUsage()
		return nil
	case "auth", "logout", "sync", "status", "serve", "mcp", "tui":
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}

	database, err := db.OpenDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "auth":
		return cli.AuthCommand(cfg, database, args)
	case "logout":
		return cli.LogoutCommand(database, args)
	case "sync":
		return cli.SyncCommand(ctx, cfg, database, args)
	case "status":
		return cli.StatusCommand(database, args)
	case "serve":
		return cli.ServeCommand(ctx, cfg, database, args)
	case "mcp":
		return cli.MCPCommand(ctx, cfg, database, version)
	case "tui":
		return cli.TUICommand(cfg, database)
	}
	return nil
}

func fatal(err error) {
	color.Red("Error: %v\n", err)
	os.Exit(1)
}

// setupLogger writes to stderr so stdout stays free for the MCP stdio transport.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Printf("mirrorsync v%s", version)
	fmt.Println(" - one-way Google account mirror")
	fmt.Println()

	yellow.Println("USAGE:")
	fmt.Println("  mirrorsync [global flags] <command> [flags] [args]")
	fmt.Println()

	yellow.Println("GLOBAL FLAGS:")
	fmt.Println("  --version              Show version and exit")
	fmt.Println("  --config <path>        Config file (default: ~/.config/mirrorsync/config.yaml)")
	fmt.Println("  --db-path <path>       Database path (default: ~/.local/share/mirrorsync/mirrorsync.db)")
	fmt.Println()

	yellow.Println("COMMANDS:")
	fmt.Println("  auth <source|destination>       Connect a Google account in the browser")
	fmt.Println("    --timeout <duration>            How long to wait for consent (default 5m)")
	fmt.Println("    --no-browser                    Print the consent URL only")
	fmt.Println("  logout <source|destination>     Forget a connected account")
	fmt.Println("  sync <calendar|contacts>        Copy missing records from source to destination")
	fmt.Println("    --dry-run                       Count what would be created without writing")
	fmt.Println("  status                          Show accounts, collection state and recent runs")
	fmt.Println("    --limit <n>                     Runs to show (default 10)")
	fmt.Println("    --collection <name>             Only runs for one collection")
	fmt.Println("  serve                           Start the web front")
	fmt.Println("    --addr <host:port>              Listen address (default from config)")
	fmt.Println("  tui                             Open the interactive dashboard")
	fmt.Println("  mcp                             Start the MCP server on stdio")
	fmt.Println()

	yellow.Println("ENVIRONMENT:")
	fmt.Println("  GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET   OAuth client (required for auth and sync)")
	fmt.Println("  MIRRORSYNC_BASE_URL                      External URL for OAuth redirects")
	fmt.Println("  MIRRORSYNC_DB_PATH, MIRRORSYNC_LOG_LEVEL")
}

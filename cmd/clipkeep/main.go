package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/clipkeep/clipkeep/internal/clipboard"
	"github.com/clipkeep/clipkeep/internal/config"
	"github.com/clipkeep/clipkeep/internal/db"
	"github.com/clipkeep/clipkeep/internal/gate"
	"github.com/clipkeep/clipkeep/internal/history"
	"github.com/clipkeep/clipkeep/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"watch": true, "list": true, "search": true, "copy": true,
	"delete": true, "favorite": true, "unfavorite": true,
	"reorder": true, "edit": true, "pause": true, "resume": true,
	"status": true, "exclude": true, "export": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___ _ _      _
  / __| (_)_ __| |_____ ___ _ __
 | (__| | | '_ \ / / -_) -_) '_ \
  \___|_|_| .__/_\_\___\___| .__/
          |_|              |_|

  Clipboard capture and history engine

  Usage: clipkeep <command> [options]
         clipkeep --help

  MCP server mode requires piped input.`)
}

func main() {
	// Keep stdout clean for JSON output and the MCP transport.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := os.Getenv("CLIPKEEP_BASE_DIR")
	if baseDir == "" {
		baseDir = filepath.Join(homeDir, ".clipkeep")
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	hist, err := history.New(context.Background(), database, cfg, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load history: %v\n", err)
		os.Exit(1)
	}

	env := &appEnv{
		db:   database,
		cfg:  cfg,
		hist: hist,
		gate: gate.New(database, gate.NewSystemResolver(), cfg.ExclusionEnabled, slog.Default()),
		src:  clipboard.NewSystem(),
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'clipkeep --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, hist, env.gate, env.src, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

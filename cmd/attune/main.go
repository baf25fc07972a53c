package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/config"
	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/embedding"
	"github.com/hpungsan/attune/internal/logging"
	"github.com/hpungsan/attune/internal/mcp"
	"github.com/hpungsan/attune/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"checkin": true, "fetch": true, "list": true, "latest": true,
	"mood": true, "moods": true, "collapse": true, "due": true,
	"status": true, "replay": true, "export": true, "import": true,
	"serve": true, "watch": true,
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
	return false
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
         _   _
   __ _ | |_| |_ _  _ _ _  ___
  / _' ||  _|  _| || | ' \/ -_)
  \__,_| \__|\__|\_,_|_||_\___|

  Intent and mood journal

  Usage: attune <command> [options]
         attune --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".attune")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	log, err := logging.New(cfg.LogLevel, !isTerminal())
	if err != nil {
		fatal("failed to build logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := ops.NewEnv(database, cfg, newLoader(ctx, cfg, log), log)
	env.ExportsDir = filepath.Join(baseDir, "exports")

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.RunContext(ctx, os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			stop()
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'attune --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(env, Version); err != nil {
		log.Error("mcp server stopped", zap.Error(err))
		os.Exit(1)
	}
}

// newLoader starts provider warm-up in the background. A misconfigured
// provider is logged and scoring stays in fallback mode.
func newLoader(ctx context.Context, cfg *config.Config, log *zap.Logger) *embedding.Loader {
	p, err := embedding.New(cfg)
	if err != nil {
		log.Warn("embedding provider unavailable, using fallback scoring", zap.Error(err))
		p = nil
	}
	loader := embedding.NewLoader(p, embedding.LoaderOptions{ProbeTimeout: cfg.EmbedTimeout()}, log)
	loader.Start(ctx)
	return loader
}

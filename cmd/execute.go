// Package cmd contains the command-line entry points: serve, migrate,
// version, help. main.go stays a thin shim over Execute.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/huak95/mongkol-backend-rag/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute routes the process to the requested command. The default command
// is serve.
func Execute() error {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		return runServe()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		printVersion()
		return nil
	case "help", "--help", "-h":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// newLogger builds the process logger. DEBUG in the environment switches to
// debug level, LOG_JSON to the JSON handler for log shippers.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{
		Level: level,
		JSON:  os.Getenv("LOG_JSON") != "",
	})
}

func printVersion() {
	fmt.Printf("mongkol-backend %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

func printHelp() {
	fmt.Print(`mongkol-backend - conversational fortune telling backend

Usage:
  mongkol-backend [command]

Commands:
  serve     Start the HTTP API server (default)
  migrate   Apply pending database migrations and exit
  version   Show version information
  help      Show this help

Environment:
  TYPHOON_API_KEY     OpenTyphoon API key (typhoon-* models)
  GROQ_API_KEY        Groq API key (all other models)
  DATABASE_URL        postgres:// connection URL (overrides postgres_* config)
  DEBUG               Enable debug logging
  LOG_JSON            Emit JSON logs

Configuration is read from ~/.mongkol/config.yaml or ./config.yaml; every
key can be overridden with a MONGKOL_-prefixed environment variable.
`)
}

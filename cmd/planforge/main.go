// Package main provides the planforge binary entry point.
// Planforge turns business requirements documents into architectural
// plans through a staged elicitation workflow.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/planforge/planforge/llm/providers"

	"github.com/planforge/planforge/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "planforge"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "planforge",
		Short: "BRD to architectural plan workflow service",
		Long: `Planforge runs the requirements-to-plan workflow: projects move
through elicitation and technology-stack capture, then a durable queue
feeds the plan-generation worker.

It provides:
- Document ingestion (.txt, .md, .pdf, .doc, .docx) with optional
  LLM restructuring
- A guarded project state machine persisted in JetStream KV
- At-least-once plan generation with a deterministic fallback

Secrets such as provider API keys are read from the environment, never
from the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; overrides config)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func run(configPath, logLevel string) error {
	// Print banner
	printBanner()

	// Load .env if present so provider keys are available before anything
	// reaches for them.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	// Bootstrap logger for config loading; replaced once the effective
	// level is known.
	logger := newLogger("info")

	cfg, err := config.Load(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	app := NewApp(cfg, logger)

	// Setup signal handling
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := app.Start(signalCtx); err != nil {
		return err
	}

	slog.Info("Planforge ready",
		"version", Version,
		"ops", app.OpsAddr())

	// Block until shutdown signal
	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	app.Shutdown(30 * time.Second)

	slog.Info("Planforge shutdown complete")
	return nil
}

// wrapNATSError adds guidance for the connection failures people actually
// hit when pointing at an external server.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  nats-server -js

Or set PLANFORGE_NATS_URL to point at your server, or enable the
embedded server with "embedded: true" under nats in the config.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

// newLogger builds a text logger at the given level.
func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║            Planforge v" + Version + "                   ║")
	fmt.Println("║     BRD to Architectural Plan Workflow        ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}

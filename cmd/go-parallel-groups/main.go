// Package main provides the go-parallel-groups CLI entry point.
//
// go-parallel-groups runs groups of worker processes in parallel, collects
// their output, and applies an end policy when one of them fails.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/randomizedcoder/go-parallel-groups/internal/config"
	"github.com/randomizedcoder/go-parallel-groups/internal/logging"
	"github.com/randomizedcoder/go-parallel-groups/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-parallel-groups
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-parallel-groups %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// When the TUI is enabled, logs would corrupt the dashboard
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	orch, err := orchestrator.New(cfg, logger, orchestrator.Options{Version: version})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(ctx); err != nil {
		if !errors.Is(err, orchestrator.ErrTasksFailed) {
			logger.Error("run_failed", "error", err)
		}
		return 1
	}
	return 0
}

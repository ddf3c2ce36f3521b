// Command polyrank is the backend of the Polymarket trader leaderboard. It
// loads configuration, validates it, sets up signal handling and runs the
// application in the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/polyrank/internal/app"
	"github.com/alanyoungcy/polyrank/internal/config"
	"github.com/alanyoungcy/polyrank/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override the configured mode (server, refresh, full, compute)")
	wallet := flag.String("wallet", "", "wallet address for compute mode")
	hashPassword := flag.String("hash-password", "", "print the admin_password_hash digest for a password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := crypto.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	logger := newLogger("info")
	slog.SetDefault(logger)

	path := *configPath
	if _, statErr := os.Stat(path); statErr != nil && !flagPassed("config") {
		// run on defaults and env when the default file is absent
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	// a bare -wallet implies a one-shot computation
	if *wallet != "" && *mode == "" {
		cfg.Mode = "compute"
	}

	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("polyrank starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger, app.Options{Wallet: *wallet, Out: os.Stdout})
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			application.Close()
			os.Exit(1)
		}
	}

	logger.Info("polyrank stopped")
}

// newLogger writes JSON to stderr so compute mode's stdout stays clean.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

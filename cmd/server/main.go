package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/yoin/internal/config"
	"github.com/iudanet/yoin/internal/server"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Parse flags
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config")
	addr := flag.String("addr", "", "Listen address (default :8080)")
	dbPath := flag.String("db", "", "Path to SQLite database (default yoin-server.db)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	compaction := flag.Int("compaction", 0, "Updates per room between snapshots (default 50)")
	rateLimit := flag.Int("rate-limit", -1, "Requests per minute per IP, 0 disables (default 600)")
	shutdownTimeout := flag.Duration("shutdown-timeout", 0, "Graceful shutdown timeout (default 10s)")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// явно заданные флаги перекрывают файл и окружение
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "db":
			cfg.DBPath = *dbPath
		case "log-level":
			cfg.LogLevel = *logLevel
		case "compaction":
			cfg.CompactionThreshold = *compaction
		case "rate-limit":
			cfg.RateLimit = *rateLimit
		case "shutdown-timeout":
			cfg.ShutdownTimeout = *shutdownTimeout
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Yoin server starting",
		slog.String("version", Version),
		slog.String("addr", cfg.Addr),
		slog.String("db", cfg.DBPath),
		slog.Int("compaction_threshold", cfg.CompactionThreshold),
	)

	srv, err := server.New(ctx, cfg, Version, logger)
	if err != nil {
		logger.Error("failed to initialize server", slog.Any("error", err))
		os.Exit(1)
	}

	start := time.Now()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped", slog.Duration("uptime", time.Since(start)))
}

func printVersion() {
	fmt.Printf("Yoin Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/yoin/internal/client/api"
	"github.com/iudanet/yoin/internal/client/cli"
	"github.com/iudanet/yoin/internal/client/iocli"
	"github.com/iudanet/yoin/internal/client/storage/boltdb"
	"github.com/iudanet/yoin/internal/client/sync"
	"github.com/iudanet/yoin/internal/config"
	"github.com/iudanet/yoin/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config")
	serverURL := flag.String("server", "", "Server URL (default ws://localhost:8080)")
	dbPath := flag.String("db", "", "Path to local database (default yoin-client.db)")
	room := flag.String("room", "", "Room to work with (default: default)")
	schemaDir := flag.String("schemas", "", "Directory with JSON schemas")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Usage = func() { cli.PrintUsage(iocli.NewStdio()) }
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		return 0
	}

	// Получаем команду
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage(iocli.NewStdio())
		return 1
	}

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.ServerURL = *serverURL
		case "db":
			cfg.DBPath = *dbPath
		case "room":
			cfg.Room = *room
		case "schemas":
			cfg.SchemaDir = *schemaDir
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		return 1
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		return 1
	}
	// stdout занят выводом команд
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schemas := validation.NewSchemas()
	if cfg.SchemaDir != "" {
		if err := schemas.LoadDir(cfg.SchemaDir); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load schemas: %v\n", err)
			return 1
		}
	}

	// Открываем BoltDB storage
	boltStorage, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	client, err := sync.New(ctx, cfg, boltStorage, boltStorage,
		sync.WithLogger(logger),
		sync.WithSchemas(schemas),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open room: %v\n", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save document: %v\n", err)
		}
	}()

	opts := []cli.Option{cli.WithSyncTimeout(cfg.SyncTimeout)}
	if apiClient, err := api.NewClient(cfg.ServerURL); err == nil {
		opts = append(opts, cli.WithServerAPI(apiClient))
	} else {
		logger.Warn("server api disabled", "error", err)
	}

	// Выполняем команду
	c := cli.New(iocli.NewStdio(), client, opts...)
	if err := c.Run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func printVersion() {
	fmt.Printf("Yoin Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

// Package cli реализует команды клиента yoin поверх sync.Client.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/iudanet/yoin/internal/client/iocli"
	"github.com/iudanet/yoin/internal/client/sync"
	"github.com/iudanet/yoin/pkg/api"
)

// ErrUsage возвращается при неверных аргументах команды
var ErrUsage = errors.New("invalid usage")

//go:generate moq -out serverapi_mock.go . ServerAPI

const defaultSyncTimeout = 5 * time.Second

// ServerAPI - служебный HTTP API сервера
type ServerAPI interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
	Rooms(ctx context.Context) ([]api.RoomResponse, error)
}

type Cli struct {
	io          iocli.IO
	client      *sync.Client
	server      ServerAPI
	syncTimeout time.Duration
}

type Option func(*Cli)

// WithSyncTimeout задает значение по умолчанию для sync -timeout
func WithSyncTimeout(d time.Duration) Option {
	return func(c *Cli) {
		if d > 0 {
			c.syncTimeout = d
		}
	}
}

// WithServerAPI включает команды health и rooms
func WithServerAPI(s ServerAPI) Option {
	return func(c *Cli) { c.server = s }
}

func New(io iocli.IO, client *sync.Client, opts ...Option) *Cli {
	c := &Cli{
		io:          io,
		client:      client,
		syncTimeout: defaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run выполняет команду. Правки сохраняются локально и уходят на сервер
// при следующем sync.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "show":
		return c.runShow(ctx, args)
	case "insert":
		return c.runInsert(ctx, args)
	case "delete":
		return c.runDelete(ctx, args)
	case "clear":
		return c.runClear(ctx, args)
	case "set":
		return c.runSet(ctx, args)
	case "unset":
		return c.runUnset(ctx, args)
	case "set-deep":
		return c.runSetDeep(ctx, args)
	case "push":
		return c.runPush(ctx, args)
	case "remove":
		return c.runRemove(ctx, args)
	case "sync":
		return c.runSync(ctx, args)
	case "watch":
		return c.runWatch(ctx, args)
	case "status":
		return c.runStatus(ctx)
	case "health":
		return c.runHealth(ctx)
	case "rooms":
		return c.runRooms(ctx)
	default:
		PrintUsage(c.io)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, command)
	}
}

func (c *Cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.io)
	return fs
}

func usage(format string) error {
	return fmt.Errorf("%w. Usage: yoin %s", ErrUsage, format)
}

func atoi(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrUsage, name, s)
	}
	return n, nil
}

func PrintUsage(io iocli.IO) {
	io.Println("Yoin Client")
	io.Println()
	io.Println("Usage:")
	io.Println("  yoin [OPTIONS] COMMAND [ARGS]")
	io.Println()
	io.Println("Options:")
	io.Println("  --version          Show version information")
	io.Println("  --config PATH      Path to YAML config")
	io.Println("  --server URL       Server URL (default: ws://localhost:8080)")
	io.Println("  --db PATH          Path to local database (default: yoin-client.db)")
	io.Println("  --room ID          Room to work with (default: default)")
	io.Println("  --schemas DIR      Directory with JSON schemas for maps and arrays")
	io.Println("  --log-level LEVEL  debug, info, warn, error")
	io.Println()
	io.Println("Commands:")
	io.Println("  show [NAME...]                        Show containers of the document")
	io.Println("  insert [-c NAME] INDEX TEXT           Insert text (default container: content)")
	io.Println("  delete [-c NAME] INDEX LENGTH         Delete text")
	io.Println("  clear [-c NAME] [-y]                  Delete all text")
	io.Println("  set [-c NAME] KEY VALUE               Set map key (default container: root)")
	io.Println("  unset [-c NAME] KEY                   Delete map key")
	io.Println("  set-deep [-c NAME] PATH VALUE         Set nested value, PATH is dot separated")
	io.Println("  push [-c NAME] VALUE                  Append to array (default container: items)")
	io.Println("  remove [-c NAME] INDEX [LENGTH]       Delete array items")
	io.Println("  sync [-timeout D]                     Exchange changes with the server")
	io.Println("  watch                                 Stay connected and print changes")
	io.Println("  status                                Show replica and sync state")
	io.Println("  health                                Show server health")
	io.Println("  rooms                                 List rooms known to the server")
	io.Println()
	io.Println("Values are parsed as JSON when possible: 42, true, \"text\", {\"a\":1}.")
	io.Println("Anything else is stored as a plain string.")
	io.Println()
	io.Println("Examples:")
	io.Println("  yoin insert 0 'Hello'")
	io.Println("  yoin set title '\"Shopping\"'")
	io.Println("  yoin set-deep profile.address.city Riga")
	io.Println("  yoin --room team-notes sync")
}

// Package server собирает HTTP сервер синхронизации: хранилище снимков,
// hub комнат, обработчики и middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/yoin/internal/config"
	"github.com/iudanet/yoin/internal/server/handlers"
	"github.com/iudanet/yoin/internal/server/hub"
	"github.com/iudanet/yoin/internal/server/middleware"
	"github.com/iudanet/yoin/internal/server/storage/sqlite"
)

const healthPath = "/api/v1/health"

// Server - relay сервер синхронизации
type Server struct {
	store   *sqlite.Storage
	hub     *hub.Hub
	limiter *middleware.RateLimiter
	http    *http.Server
	log     *slog.Logger
	cfg     config.Server
}

// New открывает хранилище и собирает обработчики
func New(ctx context.Context, cfg config.Server, version string, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := sqlite.New(ctx, cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	s := &Server{
		store: store,
		hub:   hub.New(store, hub.WithLogger(logger), hub.WithCompactionThreshold(cfg.CompactionThreshold)),
		log:   logger,
		cfg:   cfg,
	}
	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, time.Minute, logger)
	}

	s.http = &http.Server{
		Handler:           s.routes(version),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(version string) http.Handler {
	health := handlers.NewHealthHandler(s.hub, version, s.log)
	rooms := handlers.NewRoomHandler(s.hub, s.store, s.log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+healthPath, health.Health)
	mux.HandleFunc("GET /api/v1/rooms", rooms.List)
	mux.HandleFunc("GET /room/{id}", rooms.ServeRoom)
	mux.HandleFunc("GET /ws", rooms.ServeQuery)

	mws := []func(http.Handler) http.Handler{
		middleware.Recovery(s.log),
		middleware.LoggingWithSkip(s.log, healthPath),
	}
	if s.limiter != nil {
		mws = append(mws, s.limiter.Middleware)
	}
	return middleware.Chain(mux, mws...)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Hub returns the room hub
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Run слушает cfg.Addr до отмены ctx
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.closeStore()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает ln до отмены ctx, затем корректно останавливается:
// HTTP сервер перестает принимать запросы, участники отключаются,
// комнаты сохраняются, хранилище закрывается.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("server started", slog.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info("shutting down")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	// hijacked соединения Shutdown не закрывает, это делает hub
	if err := s.hub.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hub close: %w", err))
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if err := s.closeStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) closeStore() error {
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("storage close: %w", err)
	}
	return nil
}

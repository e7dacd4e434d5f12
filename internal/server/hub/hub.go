// Package hub держит комнаты синхронизации: документ сервера, подключенных
// участников и сохранение снимков.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/iudanet/yoin/internal/document"
	"github.com/iudanet/yoin/internal/server/storage"
)

// ErrClosed возвращается после Close
var ErrClosed = errors.New("hub is closed")

// DefaultCompactionThreshold - число обновлений между сохранениями снимка
const DefaultCompactionThreshold = 50

// Option настраивает Hub
type Option func(*Hub)

// WithLogger задает логгер
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.log = logger
	}
}

// WithCompactionThreshold задает число обновлений между сохранениями снимка
func WithCompactionThreshold(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.threshold = n
		}
	}
}

// Hub управляет комнатами. Комната создается при первом подключении
// и остается в памяти до Close.
type Hub struct {
	store     storage.SnapshotStorage
	log       *slog.Logger
	rooms     map[string]*Room
	peers     sync.WaitGroup
	threshold int
	mu        sync.Mutex
	closed    bool
}

// New creates a hub backed by store
func New(store storage.SnapshotStorage, opts ...Option) *Hub {
	h := &Hub{
		store:     store,
		log:       slog.Default(),
		rooms:     make(map[string]*Room),
		threshold: DefaultCompactionThreshold,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(slog.String("component", "hub"))
	return h
}

// Room возвращает комнату, при необходимости восстанавливая ее из снимка.
func (h *Hub) Room(ctx context.Context, id string) (*Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if r, ok := h.rooms[id]; ok {
		return r, nil
	}

	r, err := h.load(ctx, id)
	if err != nil {
		return nil, err
	}
	h.rooms[id] = r
	return r, nil
}

func (h *Hub) load(ctx context.Context, id string) (*Room, error) {
	log := h.log.With(slog.String("room_id", id))
	doc := document.New(document.WithLogger(log))
	r := newRoom(id, doc, h, log)

	snap, err := h.store.GetSnapshot(ctx, id)
	switch {
	case errors.Is(err, storage.ErrSnapshotNotFound):
		log.Info("room created")
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load room %q: %w", id, err)
	}

	if err := doc.ApplyUpdate(ctx, snap.Update, document.OriginRemote); err != nil {
		return nil, fmt.Errorf("failed to restore room %q: %w", id, err)
	}
	r.total = snap.Updates

	log.Info("room restored",
		slog.Int("bytes", len(snap.Update)),
		slog.Int64("updates", snap.Updates),
	)
	return r, nil
}

// register учитывает goroutine участника и добавляет его в комнату под h.mu,
// поэтому Close либо видит участника в disconnectAll, либо отказывает ему.
func (h *Hub) register(r *Room, p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.peers.Add(1)
	r.join(p)
	return true
}

// RoomStats - состояние комнаты для health и списков
type RoomStats struct {
	ID      string `json:"room_id"`
	Peers   int    `json:"peers"`
	Updates int64  `json:"updates"`
}

// Stats returns live rooms ordered by id
func (h *Hub) Stats() []RoomStats {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	stats := make([]RoomStats, 0, len(rooms))
	for _, r := range rooms {
		stats = append(stats, r.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}

// Flush сохраняет все измененные комнаты
func (h *Hub) Flush(ctx context.Context) error {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	var errs []error
	for _, r := range rooms {
		if _, err := r.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close отключает всех участников, дожидается их goroutine и сохраняет комнаты.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	for _, r := range rooms {
		r.disconnectAll()
	}

	done := make(chan struct{})
	go func() {
		h.peers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for peers: %w", ctx.Err())
	}

	var errs []error
	for _, r := range rooms {
		if _, err := r.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	h.log.Info("hub closed", slog.Int("rooms", len(rooms)))
	return errors.Join(errs...)
}

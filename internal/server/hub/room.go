package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/iudanet/yoin/internal/document"
	"github.com/iudanet/yoin/internal/models"
	"github.com/iudanet/yoin/pkg/api"
)

// Room - документ сервера и его участники.
type Room struct {
	doc     *document.Document
	hub     *Hub
	log     *slog.Logger
	peers   map[*peer]struct{}
	id      string
	pending int   // обновлений с последнего сохранения
	total   int64 // обновлений за все время
	mu      sync.Mutex
	saveMu  sync.Mutex
	dirty   bool
}

func newRoom(id string, doc *document.Document, h *Hub, log *slog.Logger) *Room {
	return &Room{
		doc:   doc,
		hub:   h,
		log:   log,
		peers: make(map[*peer]struct{}),
		id:    id,
	}
}

// ID returns the room id
func (r *Room) ID() string {
	return r.id
}

// Document returns the server replica of the room
func (r *Room) Document() *document.Document {
	return r.doc
}

// Serve обслуживает websocket соединение до его закрытия.
// Участник добавляется в комнату до чтения первого кадра, поэтому
// ни одно обновление, разосланное после подключения, не теряется.
func (r *Room) Serve(ctx context.Context, conn *websocket.Conn) error {
	p := newPeer(conn, r.log)
	if !r.hub.register(r, p) {
		_ = conn.Close()
		return ErrClosed
	}
	defer r.hub.peers.Done()
	r.log.Info("peer joined", slog.String("peer_id", p.id), slog.Int("peers", r.Stats().Peers))

	go p.writeLoop()
	err := p.readLoop(func(frame []byte) {
		r.handle(ctx, p, frame)
	})

	empty := r.leave(p)
	p.wait()

	if empty {
		if _, ferr := r.Flush(ctx); ferr != nil {
			r.log.Error("failed to save snapshot", slog.Any("error", ferr))
		}
	}
	return err
}

func (r *Room) join(p *peer) {
	r.mu.Lock()
	r.peers[p] = struct{}{}
	r.mu.Unlock()
}

// leave возвращает true, если комната опустела
func (r *Room) leave(p *peer) bool {
	r.mu.Lock()
	delete(r.peers, p)
	n := len(r.peers)
	r.mu.Unlock()

	p.close()
	r.log.Info("peer left", slog.String("peer_id", p.id), slog.Int("peers", n))
	return n == 0
}

func (r *Room) disconnectAll() {
	r.mu.Lock()
	peers := make([]*peer, 0, len(r.peers))
	for p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.Unlock()

	for _, p := range peers {
		p.disconnect()
	}
}

// handle разбирает кадр участника. Ошибки в данных логируются,
// кадр отбрасывается, соединение остается открытым.
func (r *Room) handle(ctx context.Context, from *peer, frame []byte) {
	msg, err := api.DecodeMessage(frame)
	if err != nil {
		return
	}

	switch msg.Type {
	case api.MsgSyncStep1:
		r.answer(ctx, from, msg.Payload, true)

	case api.MsgSyncStep1Reply:
		r.answer(ctx, from, msg.Payload, false)

	case api.MsgSyncStep2:
		if err := r.doc.ApplyUpdate(ctx, msg.Payload, document.OriginRemote); err != nil {
			r.log.Warn("dropping bad update",
				slog.String("peer_id", from.id),
				slog.Int("bytes", len(msg.Payload)),
				slog.Any("error", err),
			)
			return
		}
		if document.IsEmptyUpdate(msg.Payload) {
			return
		}
		r.broadcast(from, frame)
		if r.countUpdate() {
			if _, err := r.Flush(ctx); err != nil {
				r.log.Error("compaction failed", slog.Any("error", err))
			}
		}

	case api.MsgAwareness:
		r.broadcast(from, frame)

	case api.MsgJoinRoom:
		// комната уже выбрана по URL
		r.log.Debug("join room", slog.String("peer_id", from.id), slog.String("requested", string(msg.Payload)))

	default:
		r.log.Warn("unknown message type", slog.String("peer_id", from.id), slog.String("type", msg.Type.String()))
	}
}

// answer отправляет участнику то, чего нет в его state vector.
// На SyncStep1 сервер дополнительно присылает свой state vector,
// чтобы участник вернул правки, сделанные без связи.
func (r *Room) answer(ctx context.Context, to *peer, stateVector []byte, withReply bool) {
	diff, err := r.doc.MissingUpdatesFor(ctx, stateVector)
	if err != nil {
		r.log.Warn("bad state vector", slog.String("peer_id", to.id), slog.Any("error", err))
		return
	}
	to.send(api.EncodeMessage(api.MsgSyncStep2, diff))

	if !withReply {
		return
	}
	own, err := r.doc.StateVector(ctx)
	if err != nil {
		r.log.Warn("failed to read state vector", slog.Any("error", err))
		return
	}
	to.send(api.EncodeMessage(api.MsgSyncStep1Reply, own))
}

// broadcast рассылает кадр всем, кроме отправителя
func (r *Room) broadcast(from *peer, frame []byte) {
	r.mu.Lock()
	targets := make([]*peer, 0, len(r.peers))
	for p := range r.peers {
		if p != from {
			targets = append(targets, p)
		}
	}
	r.mu.Unlock()

	for _, p := range targets {
		p.send(frame)
	}
}

// countUpdate возвращает true, когда пора сохранить снимок
func (r *Room) countUpdate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dirty = true
	r.total++
	r.pending++
	if r.pending >= r.hub.threshold {
		r.pending = 0
		return true
	}
	return false
}

// Flush сохраняет снимок, если с прошлого сохранения были обновления.
// Возвращает true, если хранилище записало новые данные.
func (r *Room) Flush(ctx context.Context) (bool, error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	dirty, total := r.dirty, r.total
	r.dirty = false
	r.pending = 0
	r.mu.Unlock()

	if !dirty {
		return false, nil
	}

	restore := func() {
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
	}

	update, sv, err := r.doc.Snapshot(ctx)
	if err != nil {
		restore()
		return false, fmt.Errorf("room %q: %w", r.id, err)
	}

	saved, err := r.hub.store.SaveSnapshot(ctx, models.NewSnapshot(r.id, update, sv, total))
	if err != nil {
		restore()
		return false, fmt.Errorf("room %q: %w", r.id, err)
	}

	r.log.Info("room compacted",
		slog.Int("bytes", len(update)),
		slog.Int64("updates", total),
		slog.Bool("written", saved),
	)
	return saved, nil
}

// Stats returns the live state of the room
func (r *Room) Stats() RoomStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomStats{ID: r.id, Peers: len(r.peers), Updates: r.total}
}

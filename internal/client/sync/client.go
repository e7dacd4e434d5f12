// Package sync связывает локальный документ клиента с сервером синхронизации:
// рукопожатие по state vector, рассылка локальных правок, awareness,
// отложенное сохранение снимка и отмена правок.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/yoin/internal/client/awareness"
	"github.com/iudanet/yoin/internal/client/network"
	"github.com/iudanet/yoin/internal/client/storage"
	"github.com/iudanet/yoin/internal/config"
	"github.com/iudanet/yoin/internal/document"
	"github.com/iudanet/yoin/internal/models"
	"github.com/iudanet/yoin/internal/undo"
	"github.com/iudanet/yoin/internal/validation"
	"github.com/iudanet/yoin/pkg/api"
)

//go:generate moq -out transport_mock.go . Transport

// Transport доставляет кадры протокола до сервера
type Transport interface {
	// Run держит соединение до отмены ctx
	Run(ctx context.Context) error
	// Send отправляет кадр или откладывает его до подключения
	Send(frame []byte)
	Status() network.Status
}

// TransportFactory создает транспорт, события которого получает h
type TransportFactory func(url string, h network.Handler) Transport

type options struct {
	logger    *slog.Logger
	transport TransportFactory
	schemas   *validation.Schemas
	undoOpts  []undo.Option
}

// Option настраивает Client.
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransport replaces the websocket provider
func WithTransport(f TransportFactory) Option {
	return func(o *options) { o.transport = f }
}

// WithSchemas enables validation of map and array writes
func WithSchemas(s *validation.Schemas) Option {
	return func(o *options) { o.schemas = s }
}

// WithUndoOptions passes options to the undo coordinator
func WithUndoOptions(opts ...undo.Option) Option {
	return func(o *options) { o.undoOpts = append(o.undoOpts, opts...) }
}

// Client - локальная реплика одной комнаты.
type Client struct {
	doc       *document.Document
	undo      *undo.Coordinator
	transport Transport
	aware     *awareness.Registry
	saver     *saver
	schemas   *validation.Schemas
	snapshots storage.SnapshotStorage
	meta      storage.MetadataStorage
	log       *slog.Logger
	synced    chan struct{}
	unsub     []func()
	changeFns map[int]func(document.Origin)
	statusFns []func(network.Status)
	room      string
	nextFn    int
	syncOnce  stdsync.Once
	closeOnce stdsync.Once
	mu        stdsync.Mutex
}

// New создает клиента комнаты cfg.Room: восстанавливает идентификатор реплики
// и локальный снимок. Соединение с сервером открывает Run.
func New(ctx context.Context, cfg config.Client, snapshots storage.SnapshotStorage, meta storage.MetadataStorage, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := validation.ValidateRoomID(cfg.Room); err != nil {
		return nil, err
	}
	url, err := network.RoomURL(cfg.ServerURL, cfg.Room)
	if err != nil {
		return nil, err
	}

	id, err := clientID(ctx, meta)
	if err != nil {
		return nil, err
	}
	log := o.logger.With("room", cfg.Room, "client_id", uint64(id))

	c := &Client{
		doc:       document.New(document.WithClientID(id), document.WithDefaultContainers(), document.WithLogger(log)),
		schemas:   o.schemas,
		snapshots: snapshots,
		meta:      meta,
		log:       log,
		synced:    make(chan struct{}),
		changeFns: make(map[int]func(document.Origin)),
		room:      cfg.Room,
	}
	if err := c.restore(ctx); err != nil {
		return nil, err
	}

	// история отмены начинается после восстановления снимка
	undoOpts := append([]undo.Option{undo.WithLogger(log)}, o.undoOpts...)
	c.undo, err = undo.New(ctx, c.doc, undoOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create undo coordinator: %w", err)
	}

	if o.transport == nil {
		o.transport = func(url string, h network.Handler) Transport {
			return network.New(url, h,
				network.WithLogger(log),
				network.WithMaxReconnectInterval(cfg.MaxReconnect),
			)
		}
	}
	c.transport = o.transport(url, c)
	c.aware = awareness.New(uuid.NewString(), c.transport.Send,
		awareness.WithLogger(log),
		awareness.WithThrottle(cfg.AwarenessThrottle),
	)
	c.saver = newSaver(cfg.SaveDebounce, c.save, log)
	c.unsub = append(c.unsub, c.doc.OnTransaction(c.onTransaction))
	return c, nil
}

// clientID возвращает сохраненный идентификатор реплики или создает новый.
func clientID(ctx context.Context, meta storage.MetadataStorage) (document.ClientID, error) {
	id, err := meta.GetClientID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get client id: %w", err)
	}
	if id != 0 {
		return id, nil
	}
	id = document.NewClientID()
	if err := meta.SaveClientID(ctx, id); err != nil {
		return 0, fmt.Errorf("failed to save client id: %w", err)
	}
	return id, nil
}

// restore применяет локальный снимок как удаленное обновление: его нельзя отменить.
func (c *Client) restore(ctx context.Context) error {
	snap, err := c.snapshots.LoadSnapshot(ctx, c.room)
	switch {
	case errors.Is(err, storage.ErrSnapshotNotFound):
		c.log.Debug("no local snapshot")
		return nil
	case errors.Is(err, storage.ErrCorruptSnapshot):
		return c.quarantine(ctx, err)
	case err != nil:
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if err := c.doc.ApplyUpdate(ctx, snap.Update, document.OriginRemote); err != nil {
		return c.quarantine(ctx, err)
	}
	c.log.Debug("snapshot restored", "bytes", len(snap.Update))
	return nil
}

// quarantine убирает непригодный снимок, чтобы первое сохранение его не затерло.
// Если перенести не удалось, клиент не стартует.
func (c *Client) quarantine(ctx context.Context, cause error) error {
	key, err := c.snapshots.QuarantineSnapshot(ctx, c.room)
	if err != nil {
		return fmt.Errorf("local snapshot is unusable (%v), failed to move it aside: %w", cause, err)
	}
	// сервер вернет состояние при синхронизации
	c.log.Error("local snapshot is unusable, starting empty",
		"error", cause,
		"quarantine_key", key,
	)
	return nil
}

func (c *Client) save(ctx context.Context) error {
	update, sv, err := c.doc.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := c.snapshots.SaveSnapshot(ctx, models.NewSnapshot(c.room, update, sv, 0)); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	c.log.Debug("snapshot saved", "bytes", len(update))
	return nil
}

// onTransaction вызывается под блокировкой документа.
func (c *Client) onTransaction(ev document.TransactionEvent) {
	if ev.Update == nil {
		return
	}
	if ev.Origin == document.OriginLocal && !document.IsEmptyUpdate(ev.Update) {
		c.transport.Send(api.EncodeMessage(api.MsgSyncStep2, ev.Update))
	}
	c.saver.schedule()

	c.mu.Lock()
	fns := make([]func(document.Origin), 0, len(c.changeFns))
	for _, fn := range c.changeFns {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev.Origin)
	}
}

// OnConnect начинает рукопожатие: комната и собственный state vector.
func (c *Client) OnConnect() {
	c.transport.Send(api.EncodeMessage(api.MsgJoinRoom, []byte(c.room)))
	sv, err := c.doc.StateVector(context.Background())
	if err != nil {
		c.log.Error("failed to read state vector", "error", err)
		return
	}
	c.transport.Send(api.EncodeMessage(api.MsgSyncStep1, sv))
}

// OnMessage обрабатывает кадр сервера. Некорректные данные логируются и отбрасываются.
func (c *Client) OnMessage(frame []byte) {
	ctx := context.Background()
	msg, err := api.DecodeMessage(frame)
	if err != nil {
		return
	}

	switch msg.Type {
	case api.MsgSyncStep1:
		if !c.answer(ctx, msg.Payload) {
			return
		}
		sv, err := c.doc.StateVector(ctx)
		if err != nil {
			c.log.Error("failed to read state vector", "error", err)
			return
		}
		c.transport.Send(api.EncodeMessage(api.MsgSyncStep1Reply, sv))
		c.aware.Refresh()

	case api.MsgSyncStep1Reply:
		if !c.answer(ctx, msg.Payload) {
			return
		}
		c.aware.Refresh()
		c.markSynced(ctx)

	case api.MsgSyncStep2:
		if err := c.doc.ApplyUpdate(ctx, msg.Payload, document.OriginRemote); err != nil {
			c.log.Warn("dropping bad update", "bytes", len(msg.Payload), "error", err)
		}

	case api.MsgAwareness:
		if err := c.aware.Apply(msg.Payload); err != nil {
			c.log.Warn("dropping bad awareness state", "error", err)
		}

	case api.MsgJoinRoom:
		// сервер комнату не объявляет

	default:
		c.log.Warn("unknown message type", "type", msg.Type.String())
	}
}

// answer отправляет серверу правки, которых нет в его state vector.
func (c *Client) answer(ctx context.Context, stateVector []byte) bool {
	diff, err := c.doc.MissingUpdatesFor(ctx, stateVector)
	if err != nil {
		c.log.Warn("bad state vector", "error", err)
		return false
	}
	if !document.IsEmptyUpdate(diff) {
		c.transport.Send(api.EncodeMessage(api.MsgSyncStep2, diff))
	}
	return true
}

func (c *Client) markSynced(ctx context.Context) {
	if err := c.meta.SaveLastSyncTimestamp(ctx, time.Now().Unix()); err != nil {
		c.log.Warn("failed to save last sync timestamp", "error", err)
	}
	c.syncOnce.Do(func() { close(c.synced) })
}

// OnStatus передает смену состояния соединения подписчикам.
func (c *Client) OnStatus(status network.Status) {
	c.log.Info("network status", "status", status)
	c.mu.Lock()
	fns := slices.Clone(c.statusFns)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(status)
	}
}

// Run подключается к серверу и обслуживает комнату до отмены ctx.
// Перед отключением рассылает выход из awareness и сохраняет снимок.
// Run вызывается не более одного раза.
func (c *Client) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	netCtx, stopNet := context.WithCancel(context.WithoutCancel(gctx))
	defer stopNet()

	g.Go(func() error {
		if err := c.transport.Run(netCtx); err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return c.aware.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		// offline-кадр уходит до закрытия соединения
		c.aware.Leave()
		stopNet()
		return nil
	})

	err := g.Wait()
	if serr := c.saver.flush(context.WithoutCancel(ctx)); serr != nil {
		err = errors.Join(err, serr)
	}
	return err
}

// Close отписывается от документа и сохраняет несохраненные изменения.
func (c *Client) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		for _, fn := range c.unsub {
			fn()
		}
		c.undo.Close()
		err = c.saver.close(ctx)
	})
	return err
}

// Save сохраняет снимок немедленно
func (c *Client) Save(ctx context.Context) error {
	return c.saver.flush(ctx)
}

// Synced закрывается после первого завершенного рукопожатия с сервером
func (c *Client) Synced() <-chan struct{} {
	return c.synced
}

// WaitSynced ждет завершения рукопожатия или отмены ctx.
func (c *Client) WaitSynced(ctx context.Context) error {
	select {
	case <-c.synced:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sync not completed: %w", ctx.Err())
	}
}

// LastSync returns the time of the last completed handshake, zero if none
func (c *Client) LastSync(ctx context.Context) (time.Time, error) {
	ts, err := c.meta.GetLastSyncTimestamp(ctx)
	if err != nil || ts == 0 {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}

// Status returns the connection state
func (c *Client) Status() network.Status {
	return c.transport.Status()
}

// Room returns the room id
func (c *Client) Room() string {
	return c.room
}

// ClientID returns the replica id
func (c *Client) ClientID() document.ClientID {
	return c.doc.ClientID()
}

// Document returns the underlying document
func (c *Client) Document() *document.Document {
	return c.doc
}

// OnChange подписывает fn на зафиксированные изменения документа.
// fn вызывается под блокировкой документа и не должен обращаться к нему.
func (c *Client) OnChange(fn func(origin document.Origin)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextFn
	c.nextFn++
	c.changeFns[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.changeFns, id)
	}
}

// OnStatusChange подписывает fn на смену состояния соединения
func (c *Client) OnStatusChange(fn func(network.Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusFns = append(c.statusFns, fn)
}

// SetAwareness изменяет и рассылает собственное эфемерное состояние
func (c *Client) SetAwareness(update awareness.Update) {
	c.aware.Set(update)
}

// Participants returns awareness states keyed by participant id
func (c *Client) Participants() map[string]api.AwarenessState {
	return c.aware.States()
}

// OnAwarenessChange подписывает fn на изменения состояний участников
func (c *Client) OnAwarenessChange(fn func(map[string]api.AwarenessState)) (unsubscribe func()) {
	return c.aware.Subscribe(fn)
}

// Package awareness хранит эфемерные состояния участников комнаты (курсор, имя, цвет).
// Собственное состояние рассылается с ограничением частоты, чужие удаляются
// после пропуска heartbeat.
package awareness

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/iudanet/yoin/pkg/api"
)

const (
	DefaultThrottle  = 30 * time.Millisecond
	DefaultHeartbeat = 5 * time.Second
	DefaultTimeout   = 30 * time.Second
	gcInterval       = 3 * time.Second
)

// Update изменяет собственное состояние участника.
type Update func(s *api.AwarenessState)

type options struct {
	logger    *slog.Logger
	clock     func() time.Time
	throttle  time.Duration
	heartbeat time.Duration
	timeout   time.Duration
}

// Option настраивает Registry.
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides time source
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithThrottle sets the minimal interval between two broadcasts of the local state
func WithThrottle(d time.Duration) Option {
	return func(o *options) { o.throttle = d }
}

// WithHeartbeat sets how often the local state is re-sent
func WithHeartbeat(d time.Duration) Option {
	return func(o *options) { o.heartbeat = d }
}

// WithTimeout sets after which silence a remote participant is dropped
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

type listener struct {
	fn func(map[string]api.AwarenessState)
	id int
}

// Registry - состояния участников одной комнаты, включая собственное.
type Registry struct {
	send      func(frame []byte)
	clock     func() time.Time
	log       *slog.Logger
	states    map[string]api.AwarenessState
	timer     *time.Timer
	self      string
	listeners []listener
	throttle  time.Duration
	heartbeat time.Duration
	timeout   time.Duration
	nextID    int
	mu        sync.Mutex
	pending   bool
	closed    bool
}

// New создает реестр участника self. send отправляет готовый кадр MsgAwareness.
func New(self string, send func(frame []byte), opts ...Option) *Registry {
	o := options{
		clock:     time.Now,
		throttle:  DefaultThrottle,
		heartbeat: DefaultHeartbeat,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		send:      send,
		clock:     o.clock,
		log:       o.logger,
		states:    make(map[string]api.AwarenessState),
		self:      self,
		throttle:  o.throttle,
		heartbeat: o.heartbeat,
		timeout:   o.timeout,
	}
}

// Self returns the local participant id
func (r *Registry) Self() string {
	return r.self
}

// Set применяет update к собственному состоянию и рассылает его.
// Первое изменение уходит сразу, последующие в пределах throttle объединяются
// в одну отправку в конце интервала.
func (r *Registry) Set(update Update) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	state := r.states[r.self]
	if update != nil {
		update(&state)
	}
	state.ClientID = r.self
	state.Offline = false
	state.Timestamp = r.clock().UnixMilli()
	r.states[r.self] = state

	var frame []byte
	if r.timer == nil {
		frame = r.encode(state)
		if r.throttle > 0 {
			r.timer = time.AfterFunc(r.throttle, r.trailing)
		}
	} else {
		r.pending = true
	}
	snapshot, listeners := r.snapshotLocked()
	r.mu.Unlock()

	if frame != nil {
		r.send(frame)
	}
	notify(listeners, snapshot)
}

// trailing отправляет изменения, накопленные за интервал throttle.
func (r *Registry) trailing() {
	r.mu.Lock()
	r.timer = nil
	if !r.pending || r.closed {
		r.mu.Unlock()
		return
	}
	r.pending = false
	state, ok := r.states[r.self]
	var frame []byte
	if ok {
		frame = r.encode(state)
	}
	r.mu.Unlock()

	if frame != nil {
		r.send(frame)
	}
}

// Refresh повторно рассылает собственное состояние, если оно задано.
// Используется как heartbeat и после переподключения.
func (r *Registry) Refresh() {
	r.mu.Lock()
	_, ok := r.states[r.self]
	r.mu.Unlock()
	if ok {
		r.Set(nil)
	}
}

func (r *Registry) encode(state api.AwarenessState) []byte {
	frame, err := api.EncodeAwareness(state)
	if err != nil {
		r.log.Error("failed to encode awareness state", "error", err)
		return nil
	}
	return frame
}

// Apply обрабатывает payload чужого кадра MsgAwareness.
// Состояние с offline удаляет участника. Собственный id игнорируется.
func (r *Registry) Apply(payload []byte) error {
	state, err := api.DecodeAwareness(payload)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if state.ClientID == r.self {
		r.mu.Unlock()
		return nil
	}
	if state.Offline {
		if _, ok := r.states[state.ClientID]; !ok {
			r.mu.Unlock()
			return nil
		}
		delete(r.states, state.ClientID)
		r.log.Debug("participant left", "client_id", state.ClientID, "name", state.Name)
	} else {
		r.states[state.ClientID] = state
	}
	snapshot, listeners := r.snapshotLocked()
	r.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

// GC удаляет участников, не присылавших состояние дольше timeout.
// Возвращает число удаленных.
func (r *Registry) GC() int {
	r.mu.Lock()
	now := r.clock().UnixMilli()
	removed := 0
	for id, state := range r.states {
		if id == r.self {
			continue
		}
		if now-state.Timestamp > r.timeout.Milliseconds() {
			delete(r.states, id)
			removed++
			r.log.Debug("participant timed out", "client_id", id, "name", state.Name)
		}
	}
	if removed == 0 {
		r.mu.Unlock()
		return 0
	}
	snapshot, listeners := r.snapshotLocked()
	r.mu.Unlock()

	notify(listeners, snapshot)
	return removed
}

// Leave удаляет собственное состояние и рассылает offline-кадр.
// После Leave реестр закрыт: Set больше ничего не отправляет.
func (r *Registry) Leave() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	_, had := r.states[r.self]
	delete(r.states, r.self)
	frame := r.encode(api.AwarenessState{
		ClientID:  r.self,
		Offline:   true,
		Timestamp: r.clock().UnixMilli(),
	})
	snapshot, listeners := r.snapshotLocked()
	r.mu.Unlock()

	if frame != nil {
		r.send(frame)
	}
	if had {
		notify(listeners, snapshot)
	}
}

// Run выполняет heartbeat и очистку устаревших участников до отмены ctx.
func (r *Registry) Run(ctx context.Context) error {
	heartbeat := time.NewTicker(r.heartbeat)
	defer heartbeat.Stop()
	gc := time.NewTicker(gcInterval)
	defer gc.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			r.Refresh()
		case <-gc.C:
			r.GC()
		}
	}
}

// States returns a copy of all known states keyed by client id
func (r *Registry) States() map[string]api.AwarenessState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.states)
}

// Local returns the local state if one was set
func (r *Registry) Local() (api.AwarenessState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[r.self]
	return state, ok
}

// Subscribe регистрирует обработчик изменений. Обработчик сразу получает
// текущие состояния. Возвращает функцию отписки.
func (r *Registry) Subscribe(fn func(map[string]api.AwarenessState)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners = append(r.listeners, listener{id: id, fn: fn})
	snapshot := maps.Clone(r.states)
	r.mu.Unlock()

	fn(snapshot)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, l := range r.listeners {
			if l.id == id {
				r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
				return
			}
		}
	}
}

func (r *Registry) snapshotLocked() (map[string]api.AwarenessState, []listener) {
	if len(r.listeners) == 0 {
		return nil, nil
	}
	return maps.Clone(r.states), append([]listener(nil), r.listeners...)
}

func notify(listeners []listener, snapshot map[string]api.AwarenessState) {
	for _, l := range listeners {
		l.fn(snapshot)
	}
}

// Package undo реализует стек отмены и повтора локальных правок документа.
package undo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/iudanet/yoin/internal/document"
)

// DefaultCaptureTimeout - окно, в котором последовательные локальные правки
// объединяются в одну запись отмены.
const DefaultCaptureTimeout = 500 * time.Millisecond

const metaKey = "undo"

// State - состояние координатора.
type State uint8

const (
	StateIdle      State = iota // стек отмены пуст
	StateCapturing              // открытая запись принимает новые правки
	StateClosed                 // последняя запись закрыта
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type entry struct {
	last    time.Time
	changes []document.Change
}

type options struct {
	clock   Clock
	logger  *slog.Logger
	origins []document.Origin
	timeout time.Duration
}

// Option настраивает Coordinator.
type Option func(*options)

// WithClock sets the clock used for coalescing
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithCaptureTimeout sets the coalescing window
func WithCaptureTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTrackedOrigins replaces the set of captured origins (local only by default)
func WithTrackedOrigins(origins ...document.Origin) Option {
	return func(o *options) { o.origins = origins }
}

// Coordinator ведет стеки отмены и повтора для одного документа.
// Захватываются только транзакции с отслеживаемым origin (по умолчанию OriginLocal).
// Область отслеживания включает все корневые контейнеры документа и
// расширяется при создании новых.
type Coordinator struct {
	doc     *document.Document
	clock   Clock
	log     *slog.Logger
	scope   map[string]bool
	origins map[document.Origin]bool
	undo    []*entry
	redo    []*entry
	into    *[]*entry // стек, принимающий запись текущей отмены или повтора
	unsub   []func()
	timeout time.Duration
	mu      sync.Mutex
	open    bool
	closed  bool
}

// New создает координатор и подписывает его на события документа.
func New(ctx context.Context, doc *document.Document, opts ...Option) (*Coordinator, error) {
	o := options{
		clock:   SystemClock(),
		timeout: DefaultCaptureTimeout,
		origins: []document.Origin{document.OriginLocal},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Coordinator{
		doc:     doc,
		clock:   o.clock,
		log:     o.logger,
		timeout: o.timeout,
		scope:   make(map[string]bool),
		origins: make(map[document.Origin]bool, len(o.origins)),
	}
	for _, origin := range o.origins {
		c.origins[origin] = true
	}

	// подписка до чтения списка контейнеров, чтобы не пропустить созданные между ними
	c.unsub = append(c.unsub,
		doc.OnContainerCreated(c.track),
		doc.OnTransaction(c.capture),
	)
	containers, err := doc.Containers(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	for _, info := range containers {
		c.track(info)
	}
	return c, nil
}

func (c *Coordinator) track(info document.ContainerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope[info.Name] = true
}

// Tracks reports whether the named container is in the undo scope
func (c *Coordinator) Tracks(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope[name]
}

// capture обрабатывает зафиксированную транзакцию документа. Позиции всех
// сохраненных изменений пересчитываются по каждому изменению транзакции,
// поэтому записи всегда адресуют текущее состояние документа.
func (c *Coordinator) capture(ev document.TransactionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	owner, _ := ev.Meta[metaKey].(*Coordinator)
	own := owner == c
	tracked := own || c.origins[ev.Origin]

	var captured []document.Change
	for _, ch := range ev.Changes {
		for _, e := range c.undo {
			e.changes = rebaseAll(e.changes, ch)
		}
		for _, e := range c.redo {
			e.changes = rebaseAll(e.changes, ch)
		}
		captured = rebaseAll(captured, ch)
		if tracked && c.scope[ch.Container] {
			captured = append(captured, ch)
		}
	}

	if own {
		if c.into != nil && len(captured) > 0 {
			*c.into = append(*c.into, &entry{changes: captured, last: c.clock.Now()})
		}
		c.into = nil
		return
	}
	if len(captured) == 0 {
		return
	}

	now := c.clock.Now()
	if top := c.top(); top != nil && c.open && now.Sub(top.last) < c.timeout {
		top.changes = append(top.changes, captured...)
		top.last = now
	} else {
		c.undo = append(c.undo, &entry{changes: captured, last: now})
		c.open = true
	}
	c.redo = nil
}

func (c *Coordinator) top() *entry {
	if len(c.undo) == 0 {
		return nil
	}
	return c.undo[len(c.undo)-1]
}

// Undo отменяет последнюю запись и возвращает diff отмены.
// Пустой стек - не ошибка: возвращается nil, nil.
func (c *Coordinator) Undo(ctx context.Context) ([]byte, error) {
	return c.revert(ctx, true)
}

// Redo повторяет последнюю отмененную запись и возвращает diff.
func (c *Coordinator) Redo(ctx context.Context) ([]byte, error) {
	return c.revert(ctx, false)
}

func (c *Coordinator) revert(ctx context.Context, undo bool) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: coordinator is closed", document.ErrUndo)
	}
	c.open = false
	from, to := &c.undo, &c.redo
	if !undo {
		from, to = &c.redo, &c.undo
	}
	if len(*from) == 0 {
		c.mu.Unlock()
		return nil, nil
	}
	target := (*from)[len(*from)-1]
	c.mu.Unlock()

	update, err := c.doc.WithTransaction(ctx, document.OriginLocal, func(_ context.Context, tx *document.Transaction) error {
		tx.SetMeta(metaKey, c)

		c.mu.Lock()
		defer c.mu.Unlock()
		if len(*from) == 0 || (*from)[len(*from)-1] != target {
			return fmt.Errorf("%w: stack changed concurrently", document.ErrUndo)
		}
		if err := reverse(tx, target.changes); err != nil {
			return err
		}
		*from = (*from)[:len(*from)-1]
		c.into = to
		return nil
	})
	if err != nil {
		c.mu.Lock()
		c.into = nil
		c.mu.Unlock()
		c.log.Error("failed to revert undo entry", "undo", undo, "error", err)
		return nil, err
	}
	c.log.Debug("undo entry reverted", "undo", undo, "bytes", len(update))
	return update, nil
}

// reverse применяет обратные изменения в обратном порядке. После каждого шага
// позиции оставшихся изменений пересчитываются по тому, что шаг записал.
func reverse(tx *document.Transaction, changes []document.Change) error {
	pending := slices.Clone(changes)
	for len(pending) > 0 {
		ch := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		mark := len(tx.Changes())
		if err := invert(tx, ch); err != nil {
			return fmt.Errorf("%w: %s %s: %w", document.ErrUndo, ch.Kind, ch.Container, err)
		}
		for _, applied := range tx.Changes()[mark:] {
			pending = rebaseAll(pending, applied)
		}
	}
	return nil
}

// invert применяет операцию, обратную ch.
func invert(tx *document.Transaction, ch document.Change) error {
	switch ch.Kind {
	case document.ChangeInsert:
		if ch.Length == 0 {
			return nil
		}
		if ch.Type == document.KindText {
			return tx.DeleteText(ch.Container, ch.Index, ch.Length)
		}
		return tx.DeleteArray(ch.Container, ch.Index, ch.Length)
	case document.ChangeDelete:
		switch v := ch.Value.(type) {
		case string:
			return tx.InsertText(ch.Container, ch.Index, v)
		case []any:
			return tx.InsertValues(ch.Container, ch.Index, v...)
		default:
			return fmt.Errorf("unexpected deleted value %T", ch.Value)
		}
	case document.ChangeMapSet:
		cur, err := tx.GetPath(ch.Container, ch.Path)
		if errors.Is(err, document.ErrPath) {
			// родительская map уже удалена или заменена
			return nil
		}
		if err != nil {
			return err
		}
		// ключ уже перезаписан другой правкой
		if !reflect.DeepEqual(cur, ch.Value) {
			return nil
		}
		if ch.Prev == nil {
			return tx.DeletePath(ch.Container, ch.Path)
		}
		return tx.PutPath(ch.Container, ch.Path, ch.Prev)
	default:
		return fmt.Errorf("unknown change kind %s", ch.Kind)
	}
}

// StopCapturing закрывает открытую запись: следующая правка начнет новую.
func (c *Coordinator) StopCapturing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

// State returns the current capture state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	top := c.top()
	switch {
	case top == nil:
		return StateIdle
	case c.open && c.clock.Now().Sub(top.last) < c.timeout:
		return StateCapturing
	default:
		return StateClosed
	}
}

// CanUndo reports whether the undo stack is not empty
func (c *Coordinator) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.undo) > 0
}

// CanRedo reports whether the redo stack is not empty
func (c *Coordinator) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.redo) > 0
}

// Clear drops both stacks
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.undo, c.redo = nil, nil
	c.open = false
}

// Close отписывает координатор от документа. Повторный вызов безопасен.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}
}

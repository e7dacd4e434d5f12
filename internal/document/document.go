// Package document предоставляет потокобезопасную обертку над движком слияния:
// именованные контейнеры, транзакции с origin, синхронизацию по state vector.
package document

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/automerge/automerge-go"
	"golang.org/x/sync/semaphore"
)

// Имена контейнеров, создаваемых WithDefaultContainers.
const (
	DefaultTextName = "content"
	DefaultMapName  = "root"
)

// Origin помечает транзакцию: локальная правка пользователя или удаленное обновление.
type Origin uint8

const (
	OriginLocal Origin = iota + 1
	OriginRemote
)

// String returns the origin name
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	default:
		return fmt.Sprintf("origin(%d)", uint8(o))
	}
}

// Valid reports whether o is a known origin
func (o Origin) Valid() bool {
	return o == OriginLocal || o == OriginRemote
}

// ContainerInfo describes a named root container
type ContainerInfo struct {
	Name string
	Kind Kind
}

// TransactionEvent передается наблюдателям после фиксации транзакции.
type TransactionEvent struct {
	Meta    map[string]any
	Changes []Change
	Update  []byte
	Origin  Origin
}

type options struct {
	logger      *slog.Logger
	clientID    ClientID
	defaults    bool
	strictPaths bool
}

// Option настраивает Document.
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClientID sets the replica id used for local operations
func WithClientID(id ClientID) Option {
	return func(o *options) { o.clientID = id }
}

// WithDefaultContainers pre-registers the "content" text and the "root" map
func WithDefaultContainers() Option {
	return func(o *options) { o.defaults = true }
}

// WithStrictPaths makes SetDeep fail with ErrPath instead of replacing
// a non-map value found in the middle of the path.
func WithStrictPaths() Option {
	return func(o *options) { o.strictPaths = true }
}

type observer[T any] struct {
	fn func(T)
	id int
}

// Document - один экземпляр общего документа поверх automerge.
// Все операции, включая чтение, выполняются под эксклюзивной блокировкой документа.
type Document struct {
	doc         *automerge.Doc
	sem         *semaphore.Weighted
	log         *slog.Logger
	clock       stateVector
	roots       map[string]Kind
	queued      map[automerge.ChangeHash]*automerge.Change
	txObs       []observer[TransactionEvent]
	createdObs  []observer[ContainerInfo]
	obsMu       sync.Mutex
	nextObs     int
	id          ClientID
	strictPaths bool
}

// New создает пустой документ.
func New(opts ...Option) *Document {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.clientID == 0 {
		o.clientID = NewClientID()
	}

	d := &Document{
		doc:         automerge.New(),
		sem:         semaphore.NewWeighted(1),
		log:         o.logger,
		clock:       make(stateVector),
		roots:       make(map[string]Kind),
		queued:      make(map[automerge.ChangeHash]*automerge.Change),
		id:          o.clientID,
		strictPaths: o.strictPaths,
	}
	if err := d.doc.SetActorID(d.id.actor()); err != nil {
		d.log.Error("failed to set actor id", "client_id", d.id, "error", err)
	}

	if o.defaults {
		for _, info := range []ContainerInfo{
			{Name: DefaultTextName, Kind: KindText},
			{Name: DefaultMapName, Kind: KindMap},
		} {
			if err := d.materialize(info.Name, info.Kind); err != nil {
				d.log.Error("failed to create default container", "name", info.Name, "error", err)
				continue
			}
			d.roots[info.Name] = info.Kind
		}
	}
	return d
}

// materialize применяет изменение-генезис корневого контейнера.
func (d *Document) materialize(name string, kind Kind) error {
	changes, err := genesis(name, kind)
	if err != nil {
		return err
	}
	if err := d.doc.Apply(changes...); err != nil {
		return fmt.Errorf("failed to apply container %q: %w", name, err)
	}
	d.clock.advance(changes)
	return nil
}

// ClientID returns the replica id of the document
func (d *Document) ClientID() ClientID {
	return d.id
}

type txKey struct{}

// acquire захватывает блокировку документа. Повторный захват из контекста
// активной транзакции этого же документа возвращает ErrLock.
func (d *Document) acquire(ctx context.Context) (context.Context, func(), error) {
	if owner, _ := ctx.Value(txKey{}).(*Document); owner == d {
		return nil, nil, ErrLock
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("failed to acquire document lock: %w", err)
	}
	return context.WithValue(ctx, txKey{}, d), func() { d.sem.Release(1) }, nil
}

// read выполняет fn под блокировкой документа без изменений состояния.
// Контейнеры, объявленные при чтении, регистрируются после fn.
func (d *Document) read(ctx context.Context, fn func(tx *Transaction) error) error {
	txCtx, release, err := d.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	_, err = d.run(txCtx, 0, func(_ context.Context, tx *Transaction) error {
		return fn(tx)
	})
	return err
}

// WithTransaction выполняет fn в транзакции с заданным origin под эксклюзивной блокировкой.
// Если fn возвращает ошибку или паникует, все изменения транзакции откатываются,
// а контейнеры, созданные в ней, не регистрируются.
// Возвращает обновление, произведенное транзакцией, или nil, если документ не изменился.
//
// Внутри fn документ доступен только через tx. Повторный вызов методов документа
// с переданным в fn ctx (или производным от него) возвращает ErrLock. Блокировка
// отслеживается через ctx: вызов с посторонним контекстом, например context.Background(),
// из fn или из наблюдателя ждет освобождения блокировки и никогда не дождется.
func (d *Document) WithTransaction(ctx context.Context, origin Origin, fn func(ctx context.Context, tx *Transaction) error) ([]byte, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrType, origin)
	}
	txCtx, release, err := d.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return d.run(txCtx, origin, fn)
}

func (d *Document) run(ctx context.Context, origin Origin, fn func(ctx context.Context, tx *Transaction) error) ([]byte, error) {
	before := d.doc.Heads()
	tx := &Transaction{doc: d, origin: origin}
	committed := false
	defer func() {
		if committed || !tx.touched {
			return
		}
		if err := d.rollback(before); err != nil {
			d.log.Error("failed to roll back transaction", "origin", origin, "error", err)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		d.log.Debug("transaction rolled back", "origin", origin, "error", err)
		return nil, err
	}
	if err := tx.flush(); err != nil {
		return nil, err
	}

	var delta []*automerge.Change
	if tx.touched {
		var err error
		if delta, err = d.doc.Changes(before...); err != nil {
			return nil, fmt.Errorf("failed to collect changes: %w", err)
		}
	}
	created, err := d.settle(tx, delta)
	if err != nil {
		return nil, err
	}
	committed = true

	// новые контейнеры объявляются до события транзакции
	d.notifyCreated(created)
	if len(delta) == 0 && len(tx.changes) == 0 {
		return nil, nil
	}

	var update []byte
	if len(delta) > 0 {
		update = encodeUpdate(delta)
	}
	d.log.Debug("transaction committed",
		"origin", origin,
		"changes", len(tx.changes),
		"bytes", len(update),
	)
	d.notifyTransaction(TransactionEvent{Origin: origin, Changes: tx.changes, Update: update, Meta: tx.meta})
	return update, nil
}

// settle переносит результат транзакции в состояние документа и возвращает
// контейнеры, которых документ раньше не знал.
func (d *Document) settle(tx *Transaction, delta []*automerge.Change) ([]ContainerInfo, error) {
	var present map[string]Kind
	if len(delta) > 0 {
		var err error
		if present, err = presentRoots(d.doc); err != nil {
			return nil, err
		}
	}

	d.clock.advance(delta)
	for _, ch := range tx.incoming {
		if !d.clock.covers(ch) {
			d.queued[ch.Hash()] = ch
		}
	}
	for hash, ch := range d.queued {
		if d.clock.covers(ch) {
			delete(d.queued, hash)
		}
	}
	if len(d.queued) > 0 {
		d.log.Debug("changes wait for dependencies", "queued", len(d.queued))
	}

	var created []ContainerInfo
	for _, info := range tx.created {
		if _, ok := d.roots[info.Name]; !ok {
			d.roots[info.Name] = info.Kind
			created = append(created, info)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(present)) {
		known, ok := d.roots[name]
		if ok && known == present[name] {
			continue
		}
		d.roots[name] = present[name]
		if !ok {
			created = append(created, ContainerInfo{Name: name, Kind: present[name]})
		}
	}
	return created, nil
}

// rollback возвращает документ к состоянию before. Изменения, ожидающие
// зависимостей, заново ставятся в очередь automerge.
func (d *Document) rollback(before []automerge.ChangeHash) error {
	var doc *automerge.Doc
	if len(before) == 0 {
		doc = automerge.New()
	} else {
		var err error
		if doc, err = d.doc.Fork(before...); err != nil {
			return fmt.Errorf("failed to fork document: %w", err)
		}
	}
	if err := doc.SetActorID(d.id.actor()); err != nil {
		return fmt.Errorf("failed to set actor id: %w", err)
	}
	if len(d.queued) > 0 {
		if err := doc.Apply(slices.Collect(maps.Values(d.queued))...); err != nil {
			return fmt.Errorf("failed to requeue changes: %w", err)
		}
	}
	d.doc = doc
	return nil
}

// Container возвращает корневой контейнер, создавая его при необходимости.
// Существующее имя с другим типом возвращает ErrType.
func (d *Document) Container(ctx context.Context, name string, kind Kind) (ContainerInfo, error) {
	err := d.read(ctx, func(tx *Transaction) error {
		_, err := tx.lookup(name, kind, false)
		return err
	})
	if err != nil {
		return ContainerInfo{}, err
	}
	return ContainerInfo{Name: name, Kind: kind}, nil
}

// Containers returns all root containers ordered by name
func (d *Document) Containers(ctx context.Context) ([]ContainerInfo, error) {
	var out []ContainerInfo
	err := d.read(ctx, func(*Transaction) error {
		present, err := presentRoots(d.doc)
		if err != nil {
			return err
		}
		all := maps.Clone(d.roots)
		maps.Copy(all, present)
		for _, name := range slices.Sorted(maps.Keys(all)) {
			out = append(out, ContainerInfo{Name: name, Kind: all[name]})
		}
		return nil
	})
	return out, err
}

// OnTransaction регистрирует наблюдателя зафиксированных транзакций.
// Наблюдатель вызывается под блокировкой документа и не должен обращаться к документу.
func (d *Document) OnTransaction(fn func(TransactionEvent)) (unsubscribe func()) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	id := d.nextObs
	d.nextObs++
	d.txObs = append(d.txObs, observer[TransactionEvent]{id: id, fn: fn})
	return func() {
		d.obsMu.Lock()
		defer d.obsMu.Unlock()
		d.txObs = removeObserver(d.txObs, id)
	}
}

// OnContainerCreated регистрирует наблюдателя создания корневых контейнеров.
func (d *Document) OnContainerCreated(fn func(ContainerInfo)) (unsubscribe func()) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	id := d.nextObs
	d.nextObs++
	d.createdObs = append(d.createdObs, observer[ContainerInfo]{id: id, fn: fn})
	return func() {
		d.obsMu.Lock()
		defer d.obsMu.Unlock()
		d.createdObs = removeObserver(d.createdObs, id)
	}
}

func removeObserver[T any](list []observer[T], id int) []observer[T] {
	out := list[:0:0]
	for _, o := range list {
		if o.id != id {
			out = append(out, o)
		}
	}
	return out
}

func (d *Document) notifyTransaction(ev TransactionEvent) {
	d.obsMu.Lock()
	list := d.txObs
	d.obsMu.Unlock()
	for _, o := range list {
		o.fn(ev)
	}
}

func (d *Document) notifyCreated(created []ContainerInfo) {
	if len(created) == 0 {
		return
	}
	d.obsMu.Lock()
	list := d.createdObs
	d.obsMu.Unlock()
	for _, info := range created {
		d.log.Debug("container created", "name", info.Name, "kind", info.Kind)
		for _, o := range list {
			o.fn(info)
		}
	}
}

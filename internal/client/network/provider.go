// Package network держит websocket-соединение клиента с сервером синхронизации.
// Provider переподключается с экспоненциальной задержкой и копит исходящие кадры,
// пока соединения нет.
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Status - состояние соединения.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOnline     Status = "online"
	StatusOffline    Status = "offline"
)

const (
	writeWait       = 10 * time.Second
	maxMessageSize  = 16 << 20
	initialInterval = 250 * time.Millisecond
)

// ErrRejected возвращается, когда сервер отклонил подключение к комнате (4xx).
var ErrRejected = errors.New("connection rejected by server")

// Handler получает события соединения. Методы вызываются из горутины Run.
type Handler interface {
	// OnConnect вызывается сразу после установки соединения, до отправки очереди.
	OnConnect()
	OnMessage(frame []byte)
	OnStatus(status Status)
}

type options struct {
	logger      *slog.Logger
	dialer      *websocket.Dialer
	header      http.Header
	maxInterval time.Duration
}

// Option настраивает Provider.
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDialer overrides the websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithHeader adds headers to the handshake request
func WithHeader(h http.Header) Option {
	return func(o *options) { o.header = h }
}

// WithMaxReconnectInterval caps the delay between reconnect attempts
func WithMaxReconnectInterval(d time.Duration) Option {
	return func(o *options) { o.maxInterval = d }
}

// Provider - websocket-транспорт одной комнаты.
type Provider struct {
	handler     Handler
	dialer      *websocket.Dialer
	log         *slog.Logger
	header      http.Header
	conn        *websocket.Conn
	url         string
	queue       [][]byte
	status      Status
	maxInterval time.Duration
	mu          sync.Mutex
	statusMu    sync.Mutex
}

// New создает Provider для адреса комнаты rawURL (см. RoomURL).
func New(rawURL string, h Handler, opts ...Option) *Provider {
	o := options{
		dialer:      websocket.DefaultDialer,
		maxInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Provider{
		handler:     h,
		dialer:      o.dialer,
		log:         o.logger,
		header:      o.header,
		url:         rawURL,
		status:      StatusOffline,
		maxInterval: o.maxInterval,
	}
}

// RoomURL строит адрес websocket для комнаты room.
// Пустой путь или "/" дает base/room/{room}, иначе room передается параметром ?room=.
// Схемы http и https заменяются на ws и wss.
func RoomURL(base, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server url %q: unsupported scheme %q", base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server url %q: empty host", base)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/room/" + url.PathEscape(room)
		return u.String(), nil
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// URL returns the address the provider dials
func (p *Provider) URL() string {
	return p.url
}

// Status returns the current connection state
func (p *Provider) Status() Status {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status
}

func (p *Provider) setStatus(s Status) {
	p.statusMu.Lock()
	changed := p.status != s
	p.status = s
	p.statusMu.Unlock()

	if changed {
		p.log.Debug("connection status changed", "status", s, "url", p.url)
		p.handler.OnStatus(s)
	}
}

// Queued returns the number of frames waiting for a connection
func (p *Provider) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Send отправляет кадр или ставит его в очередь, если соединения нет.
// Кадр, запись которого не удалась, остается в очереди до следующего подключения.
func (p *Provider) Send(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		p.queue = append(p.queue, frame)
		return
	}
	if err := p.write(frame); err != nil {
		p.log.Warn("write failed, frame queued", "error", err)
		p.queue = append(p.queue, frame)
		p.dropLocked()
	}
}

// write вызывается под p.mu
func (p *Provider) write(frame []byte) error {
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// dropLocked закрывает текущее соединение; readLoop увидит ошибку и вернется.
func (p *Provider) dropLocked() {
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Provider) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) > 0 && p.conn != nil {
		if err := p.write(p.queue[0]); err != nil {
			p.log.Warn("failed to flush queued frame", "error", err, "left", len(p.queue))
			p.dropLocked()
			return
		}
		p.queue = p.queue[1:]
	}
	if len(p.queue) == 0 {
		p.queue = nil
	}
}

// Run подключается и держит соединение, пока не отменен ctx.
// Возвращает nil после отмены ctx или ErrRejected, если сервер отверг комнату.
func (p *Provider) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = p.maxInterval
	b.MaxElapsedTime = 0

	defer p.setStatus(StatusOffline)
	for {
		conn, err := p.dial(ctx, b)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.Reset()

		p.session(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		p.log.Info("connection lost, reconnecting", "url", p.url)
	}
}

func (p *Provider) dial(ctx context.Context, b backoff.BackOff) (*websocket.Conn, error) {
	var conn *websocket.Conn
	op := func() error {
		p.setStatus(StatusConnecting)
		c, resp, err := p.dialer.DialContext(ctx, p.url, p.header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			p.setStatus(StatusOffline)
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrRejected, resp.Status))
			}
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.log.Warn("dial failed", "url", p.url, "error", err, "retry_in", wait)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}

// session обслуживает одно соединение до его разрыва.
func (p *Provider) session(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	p.setStatus(StatusOnline)

	p.handler.OnConnect()
	p.flush()

	for {
		typ, frame, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				p.log.Warn("read failed", "error", err)
			}
			break
		}
		if typ != websocket.BinaryMessage {
			p.log.Debug("ignoring non-binary frame", "type", typ)
			continue
		}
		p.handler.OnMessage(frame)
	}

	p.mu.Lock()
	if p.conn == conn {
		p.conn = nil
	}
	p.mu.Unlock()
	_ = conn.Close()
	p.setStatus(StatusOffline)
}

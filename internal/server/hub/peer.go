package hub

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameSize   = 16 << 20
	sendBufferSize = 256
)

// peer - одно websocket соединение в комнате.
// Писать в conn может только writeLoop; send не блокирует.
type peer struct {
	conn   *websocket.Conn
	log    *slog.Logger
	out    chan []byte
	done   chan struct{}
	id     string
	mu     sync.Mutex
	closed bool
}

func newPeer(conn *websocket.Conn, log *slog.Logger) *peer {
	return &peer{
		conn: conn,
		log:  log,
		out:  make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		id:   uuid.NewString(),
	}
}

// send ставит кадр в очередь. Медленный участник, переполнивший
// очередь, отключается.
func (p *peer) send(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	select {
	case p.out <- frame:
	default:
		p.log.Warn("send buffer full, disconnecting peer", slog.String("peer_id", p.id))
		p.closed = true
		close(p.out)
	}
}

// close завершает writeLoop после отправки очереди
func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.out)
	}
}

// disconnect разрывает соединение, readLoop завершится с ошибкой
func (p *peer) disconnect() {
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
		time.Now().Add(writeWait))
	_ = p.conn.Close()
}

func (p *peer) wait() {
	<-p.done
	_ = p.conn.Close()
}

func (p *peer) writeLoop() {
	defer close(p.done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-p.out:
			if !ok {
				_ = p.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				// readLoop мог еще не завершиться (переполнение очереди)
				_ = p.conn.Close()
				return
			}
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				p.log.Debug("write failed", slog.String("peer_id", p.id), slog.Any("error", err))
				_ = p.conn.Close()
				p.drain()
				return
			}
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = p.conn.Close()
				p.drain()
				return
			}
		}
	}
}

// drain вычитывает очередь до close, чтобы send не заполнял ее впустую
func (p *peer) drain() {
	for range p.out {
	}
}

// readLoop читает кадры до ошибки соединения. Нормальное закрытие
// клиентом не считается ошибкой.
func (p *peer) readLoop(handle func(frame []byte)) error {
	p.conn.SetReadLimit(maxFrameSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, frame, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if kind != websocket.BinaryMessage {
			p.log.Debug("ignoring non-binary frame", slog.String("peer_id", p.id))
			continue
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(frame)
	}
}

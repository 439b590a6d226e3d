package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn: часть *websocket.Conn, которой пользуется транспорт.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer открывает одно соединение с endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// WebsocketDialer подключается через gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	ReadLimit        int64
}

func (d WebsocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return conn, nil
}

type transportStatus int

const (
	statusDialing transportStatus = iota
	statusOpen
	statusClosed
)

// transportHandlers: обработчики событий, которые сессия вешает на попытку.
// onClose срабатывает ровно один раз на транспорт при любом исходе.
type transportHandlers struct {
	onOpen    func(t *transport)
	onMessage func(t *transport, data []byte)
	onClose   func(t *transport, err error)
	onError   func(t *transport, err error)
}

// transport описывает одну попытку соединения.
type transport struct {
	id           string
	endpoint     string
	dialer       Dialer
	writeTimeout time.Duration
	pingInterval time.Duration
	h            transportHandlers
	ctx          context.Context
	cancel       context.CancelFunc

	mu     sync.Mutex
	conn   Conn
	status transportStatus

	wmu       sync.Mutex // запись строго через один мьютекс
	closeOnce sync.Once
	done      chan struct{}
}

func newTransport(parent context.Context, cfg Config, h transportHandlers) *transport {
	ctx, cancel := context.WithCancel(parent)
	return &transport{
		ctx:          ctx,
		cancel:       cancel,
		id:           uuid.NewString(),
		endpoint:     cfg.Endpoint,
		dialer:       cfg.Dialer,
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.PingInterval,
		h:            h,
		done:         make(chan struct{}),
	}
}

// run подключается и читает, пока соединение не закроется.
func (t *transport) run() {
	conn, err := t.dialer.Dial(t.ctx, t.endpoint)
	if err != nil {
		local := t.isClosed()
		t.close()
		if local {
			// close() прервал dial
			t.h.onClose(t, nil)
			return
		}
		t.h.onError(t, err)
		t.h.onClose(t, err)
		return
	}

	t.mu.Lock()
	if t.status == statusClosed {
		// close() успел раньше dial
		t.mu.Unlock()
		_ = conn.Close()
		t.h.onClose(t, nil)
		return
	}
	t.conn = conn
	t.status = statusOpen
	t.mu.Unlock()

	if t.pingInterval > 0 {
		go t.pingLoop(conn)
	}

	t.h.onOpen(t)
	t.readLoop(conn)
}

func (t *transport) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			local := t.isClosed()
			t.close()
			if local || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.h.onClose(t, nil)
				return
			}
			t.h.onError(t, err)
			t.h.onClose(t, err)
			return
		}
		t.h.onMessage(t, data)
	}
}

// send пишет один бинарный кадр без буферизации; неоткрытый транспорт
// отвечает ErrNotReady.
func (t *transport) send(data []byte) error {
	t.mu.Lock()
	conn, status := t.conn, t.status
	t.mu.Unlock()
	if status != statusOpen || conn == nil {
		return ErrNotReady
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	if t.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return nil
}

// close идемпотентен и безопасен до завершения dial.
func (t *transport) close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		conn := t.conn
		t.status = statusClosed
		t.mu.Unlock()
		close(t.done)
		t.cancel()

		if conn == nil {
			return
		}
		t.wmu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(500*time.Millisecond))
		t.wmu.Unlock()
		_ = conn.Close()
	})
}

func (t *transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status == statusClosed
}

func (t *transport) pingLoop(conn Conn) {
	tick := time.NewTicker(t.pingInterval)
	defer tick.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-tick.C:
			t.wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			t.wmu.Unlock()
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				t.h.onError(t, fmt.Errorf("ping: %w", err))
			}
		}
	}
}

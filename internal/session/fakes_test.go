package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/EgorLis/wslogon/internal/testutil/testlog"
	"github.com/EgorLis/wslogon/internal/wire"
)

const waitFor = 2 * time.Second

var (
	errFakeClosed  = errors.New("fake conn: closed")
	errDialRefused = errors.New("fake dialer: connection refused")
)

// fakeConn: Conn в памяти, drop имитирует уход сервера.
type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu          sync.Mutex
	writes      [][]byte
	failWrites  bool
	stallWrites bool
	deadline    time.Time
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 64), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.closed:
		return 0, nil, errFakeClosed
	default:
	}
	select {
	case b := <-c.inbound:
		return websocket.BinaryMessage, b, nil
	case <-c.closed:
		return 0, nil, errFakeClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	stall, deadline := c.stallWrites, c.deadline
	c.mu.Unlock()
	if stall {
		// сервер перестал читать: запись завершится по дедлайну
		select {
		case <-time.After(time.Until(deadline)):
			return errors.New("fake conn: i/o timeout")
		case <-c.closed:
			return errFakeClosed
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errFakeClosed
	default:
	}
	if c.failWrites {
		return errors.New("fake conn: broken pipe")
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) drop() { _ = c.Close() }

func (c *fakeConn) setFailWrites(v bool) {
	c.mu.Lock()
	c.failWrites = v
	c.mu.Unlock()
}

func (c *fakeConn) setStallWrites(v bool) {
	c.mu.Lock()
	c.stallWrites = v
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) written(t *testing.T) []*wire.Message {
	t.Helper()
	c.mu.Lock()
	raw := append([][]byte(nil), c.writes...)
	c.mu.Unlock()
	out := make([]*wire.Message, 0, len(raw))
	for _, b := range raw {
		msg, err := wire.ProtoCodec{}.Decode(b)
		if err != nil {
			t.Fatalf("decode written frame: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func (c *fakeConn) waitWrites(t *testing.T, n int) []*wire.Message {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for {
		w := c.written(t)
		if len(w) >= n {
			return w
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d writes, got %d", n, len(w))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (c *fakeConn) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(waitFor):
		t.Fatalf("connection was not closed")
	}
}

func (c *fakeConn) push(t *testing.T, msg *wire.Message) {
	t.Helper()
	b, err := wire.ProtoCodec{}.Encode(msg)
	if err != nil {
		t.Fatalf("encode inbound: %v", err)
	}
	c.inbound <- b
}

// fakeDialer выдаёт fakeConn, первые failN попыток отклоняются.
type fakeDialer struct {
	failN int
	conns chan *fakeConn

	mu    sync.Mutex
	dials int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= d.failN {
		return nil, errDialRefused
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(waitFor):
		t.Fatalf("no connection attempt (dials=%d)", d.Dials())
		return nil
	}
}

func (d *fakeDialer) expectNoDial(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case <-d.conns:
		t.Fatalf("unexpected connection attempt (dials=%d)", d.Dials())
	case <-time.After(within):
	}
}

// recorder: Subscriber, который запоминает всё полученное.
type recorder struct {
	opens  chan struct{}
	msgs   chan *wire.Message
	closes chan CloseInfo
	errs   chan error
}

func newRecorder() *recorder {
	return &recorder{
		opens:  make(chan struct{}, 64),
		msgs:   make(chan *wire.Message, 64),
		closes: make(chan CloseInfo, 64),
		errs:   make(chan error, 64),
	}
}

func (r *recorder) OnOpen()                     { r.opens <- struct{}{} }
func (r *recorder) OnMessage(msg *wire.Message) { r.msgs <- msg }
func (r *recorder) OnClose(info CloseInfo)      { r.closes <- info }
func (r *recorder) OnError(err error)           { r.errs <- err }

func (r *recorder) nextMessage(t *testing.T) *wire.Message {
	t.Helper()
	select {
	case m := <-r.msgs:
		return m
	case <-time.After(waitFor):
		t.Fatalf("no message delivered")
		return nil
	}
}

func (r *recorder) nextError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errs:
		return err
	case <-time.After(waitFor):
		t.Fatalf("no error delivered")
		return nil
	}
}

func (r *recorder) nextClose(t *testing.T) CloseInfo {
	t.Helper()
	select {
	case info := <-r.closes:
		return info
	case <-time.After(waitFor):
		t.Fatalf("no close delivered")
		return CloseInfo{}
	}
}

func testConfig(t *testing.T, d Dialer) Config {
	return Config{
		Endpoint: "ws://gateway.test/ws",
		Credentials: Credentials{
			User:       "u",
			Password:   "p",
			AppName:    "wslogon-test",
			AppVersion: "1.0",
		},
		Dialer: d,
		Logger: testlog.New(t),
	}
}

func newTestSession(t *testing.T, d Dialer, mutate func(*Config)) *Session {
	t.Helper()
	cfg := testConfig(t, d)
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// authenticate запускает s и завершает logon на первом соединении.
func authenticate(t *testing.T, s *Session, d *fakeDialer) *fakeConn {
	t.Helper()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	c := d.next(t)
	c.waitWrites(t, 1)
	c.push(t, &wire.Message{Template: wire.TemplateLogonResult, Code: wire.CodeOK})
	eventually(t, s.Authenticated, "session never authenticated")
	return c
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("%s", msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

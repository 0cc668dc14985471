package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-client/internal/notify"
	"chat-client/internal/ws"
)

type fakeConn struct {
	in          chan []byte
	serverClose chan int
	closed      chan struct{}
	closeOnce   sync.Once

	mu       sync.Mutex
	written  [][]byte
	controls []int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:          make(chan []byte, 16),
		serverClose: make(chan int, 1),
		closed:      make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.in:
		return websocket.TextMessage, data, nil
	case code := <-f.serverClose:
		return 0, nil, &websocket.CloseError{Code: code}
	case <-f.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("use of closed connection")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		f.mu.Lock()
		f.controls = append(f.controls, int(data[0])<<8|int(data[1]))
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// writtenTypes returns the type discriminators of frames written so far.
func (f *fakeConn) writtenTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.written))
	for _, data := range f.written {
		var env struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(data, &env)
		types = append(types, env.Type)
	}
	return types
}

func (f *fakeConn) closeCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.controls...)
}

type dialResult struct {
	conn *fakeConn
	err  error
}

type fakeDialer struct {
	mu     sync.Mutex
	tokens []string
	conns  []*fakeConn
	queue  []dialResult
	gate   chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, token string) (ws.Conn, error) {
	d.mu.Lock()
	d.tokens = append(d.tokens, token)
	gate := d.gate
	var res dialResult
	if len(d.queue) > 0 {
		res = d.queue[0]
		d.queue = d.queue[1:]
	}
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if res.err != nil {
		return nil, res.err
	}
	if res.conn == nil {
		res.conn = newFakeConn()
	}
	d.mu.Lock()
	d.conns = append(d.conns, res.conn)
	d.mu.Unlock()
	return res.conn, nil
}

func (d *fakeDialer) enqueue(res dialResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, res)
}

// hold blocks dials until release is called.
func (d *fakeDialer) hold() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate = make(chan struct{})
}

func (d *fakeDialer) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	close(d.gate)
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tokens)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type staticTokens struct {
	mu    sync.Mutex
	token string
}

func (s *staticTokens) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *staticTokens) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

type recorder struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) count(kind notify.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"chat-client/internal/clock"
	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/observability"
	"chat-client/internal/protocol"
	"chat-client/internal/state"
	"chat-client/internal/ws"
)

var (
	// ErrNotConnected is returned by Send and its helpers when the
	// transport is not open. Nothing is queued.
	ErrNotConnected = errors.New("not connected")
	// ErrSendBufferFull is returned when the connection's outbound buffer
	// cannot take another frame.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrClientStopped is returned once Run has exited.
	ErrClientStopped = errors.New("messaging client stopped")
)

const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultPingInterval   = 30 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	defaultSendBuffer     = 256
	commandBuffer         = 64
)

// TokenSource supplies the current session token. An empty token means
// the session is not authenticated.
type TokenSource interface {
	Token() string
}

type ClientConfig struct {
	Dialer   ws.Dialer
	Tokens   TokenSource
	Writer   *state.Writer
	Notifier notify.Notifier
	Clock    clock.Clock
	Logger   *slog.Logger

	ReconnectDelay time.Duration
	PingInterval   time.Duration
	DialTimeout    time.Duration
	SendBuffer     int

	// OnAuthRejected runs in its own goroutine after the service closes
	// the connection with a policy violation. It receives the token the
	// rejected connection was opened with.
	OnAuthRejected func(token string)
}

// Client owns the single messaging connection. All state changes happen on
// the goroutine running Run; public methods post commands to it.
type Client struct {
	cfg      ClientConfig
	dialer   ws.Dialer
	tokens   TokenSource
	writer   *state.Writer
	notifier notify.Notifier
	clock    clock.Clock
	logger   *slog.Logger

	cmds    chan func()
	done    chan struct{}
	current atomic.Int32

	// Owned by the loop goroutine.
	runCtx       context.Context
	state        State
	gen          uint64
	conn         *activeConn
	dialCancel   context.CancelFunc
	reconnect    *clock.Timer
	reconnectSeq uint64
	live         *liveness
	attempt      int
	lastOpenedAt time.Time
	dialToken    string
}

type activeConn struct {
	gen  uint64
	conn ws.Conn
	info ws.ConnInfo
	send chan []byte
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		dialer:   cfg.Dialer,
		tokens:   cfg.Tokens,
		writer:   cfg.Writer,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		cmds:     make(chan func(), commandBuffer),
		done:     make(chan struct{}),
		runCtx:   context.Background(),
	}
}

// State is the transport state as of the last processed command.
func (c *Client) State() State {
	return State(c.current.Load())
}

// Run processes commands until ctx is cancelled, then closes any open
// connection normally.
func (c *Client) Run(ctx context.Context) {
	c.runCtx = ctx
	observability.SetConnectionState(c.state.String())
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.handle(Disconnect{})
			return
		case fn := <-c.cmds:
			fn()
		}
	}
}

// Connect starts connecting unless a connection is already being opened or
// is open. It returns once the request has been processed, not once the
// connection is up.
func (c *Client) Connect(ctx context.Context) error {
	return c.call(ctx, func() error {
		c.handle(Connect{HasToken: c.token() != ""})
		return nil
	})
}

// Disconnect cancels any pending reconnect or dial and closes the
// connection normally. Safe to call in any state.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.call(ctx, func() error {
		c.handle(Disconnect{})
		return nil
	})
}

// Activate resets the session state for user and connects.
func (c *Client) Activate(ctx context.Context, user models.User) error {
	return c.call(ctx, func() error {
		c.handle(Disconnect{})
		c.apply(state.SessionReset{User: user})
		c.handle(Connect{HasToken: c.token() != ""})
		return nil
	})
}

// Deactivate disconnects and forgets everything held for the session.
func (c *Client) Deactivate(ctx context.Context) error {
	return c.call(ctx, func() error {
		c.handle(Disconnect{})
		c.apply(state.SessionReset{})
		return nil
	})
}

// Send transmits an intent without waiting for any acknowledgement.
func (c *Client) Send(ctx context.Context, intent protocol.Intent) error {
	return c.call(ctx, func() error {
		return c.send(intent)
	})
}

func (c *Client) SendMessage(ctx context.Context, msg protocol.ChatMessage) error {
	return c.Send(ctx, msg)
}

func (c *Client) SendTyping(ctx context.Context, isTyping bool, receiver models.ID) error {
	return c.Send(ctx, protocol.TypingSignal{IsTyping: isTyping, ReceiverID: receiver})
}

func (c *Client) RequestHistory(ctx context.Context) error {
	return c.Send(ctx, protocol.GetHistory{})
}

func (c *Client) MarkRead(ctx context.Context) error {
	return c.call(ctx, func() error {
		c.apply(state.MarkRead{})
		return nil
	})
}

// ApplyHistory replaces the message list with messages fetched outside the
// socket.
func (c *Client) ApplyHistory(ctx context.Context, messages []models.Message) error {
	return c.call(ctx, func() error {
		c.apply(protocol.MessageHistory{Messages: messages})
		return nil
	})
}

// ApplyPresence replaces the online set with users fetched outside the
// socket. Presence is only held while the connection is open.
func (c *Client) ApplyPresence(ctx context.Context, users []models.PresenceEntry) error {
	return c.call(ctx, func() error {
		if c.state != Open {
			return ErrNotConnected
		}
		c.apply(protocol.OnlineUsers{Users: users})
		return nil
	})
}

// call runs fn on the loop and waits for its result.
func (c *Client) call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	if err := c.post(ctx, func() { errc <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClientStopped
	}
}

func (c *Client) post(ctx context.Context, fn func()) error {
	select {
	case c.cmds <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClientStopped
	}
}

// postAsync is used by connection goroutines and timers.
func (c *Client) postAsync(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) handle(in Input) {
	from := c.state
	next, actions := Transition(from, in)
	c.state = next
	for _, a := range actions {
		c.perform(a)
	}
	if next != from {
		c.logger.Debug("transport state changed", "from", from.String(), "to", next.String())
		observability.SetConnectionState(next.String())
		if from.Status() != next.Status() {
			c.apply(state.StatusChanged{Status: next.Status()})
		}
	}
	c.current.Store(int32(c.state))

	// Closing only lasts for the synchronous close performed above.
	if c.state == Closing {
		c.handle(CloseCompleted{})
	}
}

func (c *Client) perform(a Action) {
	switch a {
	case ActDial:
		c.dial()
	case ActCancelDial:
		if c.dialCancel != nil {
			c.dialCancel()
			c.dialCancel = nil
		}
		c.gen++
	case ActStartLiveness:
		gen := c.gen
		c.live = startLiveness(c.clock, c.cfg.PingInterval, func() {
			c.postAsync(func() { c.livenessTick(gen) })
		})
	case ActStopLiveness:
		c.live.Stop()
		c.live = nil
	case ActScheduleReconnect:
		c.scheduleReconnect()
	case ActCancelReconnect:
		if c.reconnect != nil {
			c.reconnect.Stop()
			c.reconnect = nil
		}
		c.reconnectSeq++
	case ActCloseNormal:
		c.closeConn(true)
	case ActClearPeers:
		c.apply(state.PeersCleared{})
	case ActNotifyConnected:
		c.notify(notify.Notification{Kind: notify.KindConnected, Level: notify.LevelSuccess, Text: "Connected to chat"})
	case ActNotifyConnectionLost:
		c.notify(notify.Notification{Kind: notify.KindConnectionLost, Level: notify.LevelError, Text: "Connection lost, reconnecting"})
	case ActNotifyAuthRejected:
		c.notify(notify.Notification{Kind: notify.KindAuthRejected, Level: notify.LevelError, Text: "Session rejected, please log in again"})
		if c.cfg.OnAuthRejected != nil {
			go c.cfg.OnAuthRejected(c.dialToken)
		}
	case ActLogMissingToken:
		c.logger.Warn("connect skipped: no session token")
	}
}

func (c *Client) dial() {
	c.gen++
	gen := c.gen
	c.attempt++
	token := c.token()
	c.dialToken = token

	ctx, cancel := context.WithTimeout(c.runCtx, c.cfg.DialTimeout)
	c.dialCancel = cancel
	go func() {
		defer cancel()
		conn, err := c.dialer.Dial(ctx, token)
		c.postAsync(func() { c.dialResult(gen, conn, err) })
	}()
}

func (c *Client) dialResult(gen uint64, conn ws.Conn, err error) {
	if gen != c.gen || c.state != Connecting {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	c.dialCancel = nil

	if err != nil {
		code := ws.CloseCode(err)
		c.logger.Warn("websocket dial failed", "error", err, "code", code, "attempt", c.attempt)
		c.handle(Closed{Code: code, Authenticated: c.token() != ""})
		return
	}

	ac := &activeConn{
		gen:  gen,
		conn: conn,
		info: ws.NewConnInfo(c.selfID(), c.attempt),
		send: make(chan []byte, c.cfg.SendBuffer),
	}
	ac.info.ConnectedAt = c.clock.Now()
	c.conn = ac
	c.lastOpenedAt = ac.info.ConnectedAt
	c.attempt = 0
	go c.readPump(ac)
	go c.writePump(ac)

	c.logger.Info("websocket connected", "conn_id", ac.info.ConnID)
	c.handle(DialSucceeded{})
}

func (c *Client) selfID() string {
	if c.writer == nil {
		return ""
	}
	return c.writer.Snapshot().Self.ID.String()
}

func (c *Client) readPump(ac *activeConn) {
	for {
		_, data, err := ac.conn.ReadMessage()
		if err != nil {
			code := ws.CloseCode(err)
			c.postAsync(func() { c.connClosed(ac.gen, code, err) })
			return
		}
		c.postAsync(func() { c.frame(ac.gen, data) })
	}
}

func (c *Client) writePump(ac *activeConn) {
	for data := range ac.send {
		if err := ws.WriteText(ac.conn, data); err != nil {
			c.logger.Warn("websocket write failed", "conn_id", ac.info.ConnID, "error", err)
			_ = ac.conn.Close()
			return
		}
	}
}

func (c *Client) connClosed(gen uint64, code int, err error) {
	if c.conn == nil || c.conn.gen != gen {
		return
	}
	c.logger.Info("websocket closed",
		"conn_id", c.conn.info.ConnID,
		"code", code,
		"open_for", c.clock.Now().Sub(c.lastOpenedAt).String(),
		"error", err,
	)
	c.closeConn(false)
	c.handle(Closed{Code: code, Authenticated: c.token() != ""})
}

// closeConn releases the active connection. Events still in flight from it
// are ignored afterwards because its generation no longer matches.
func (c *Client) closeConn(normal bool) {
	ac := c.conn
	if ac == nil {
		return
	}
	c.conn = nil
	c.gen++
	close(ac.send)
	if normal {
		if err := ws.CloseNormally(ac.conn); err != nil {
			c.logger.Debug("websocket close", "conn_id", ac.info.ConnID, "error", err)
		}
		return
	}
	_ = ac.conn.Close()
}

func (c *Client) frame(gen uint64, data []byte) {
	if c.conn == nil || c.conn.gen != gen || c.state != Open {
		return
	}

	ev, err := protocol.Decode(data)
	if err != nil {
		observability.IncFrameDropped("malformed")
		c.logger.Warn("dropping malformed frame", "conn_id", c.conn.info.ConnID, "error", err)
		return
	}
	observability.IncFrame("in", ev.EventType())
	if u, ok := ev.(protocol.Unrecognized); ok {
		observability.IncFrameDropped("unrecognized")
		c.logger.Info("ignoring unrecognized frame", "type", u.Type)
		return
	}

	for _, n := range c.apply(ev) {
		c.notify(n)
	}
}

func (c *Client) send(intent protocol.Intent) error {
	if c.state != Open || c.conn == nil {
		observability.IncSendRejected()
		return ErrNotConnected
	}
	data, err := protocol.Encode(intent)
	if err != nil {
		return fmt.Errorf("encode %s: %w", intent.IntentType(), err)
	}
	select {
	case c.conn.send <- data:
		observability.IncFrame("out", intent.IntentType())
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) livenessTick(gen uint64) {
	if c.state != Open || c.conn == nil || c.conn.gen != gen {
		return
	}
	if err := c.send(protocol.Ping{}); err != nil {
		c.logger.Debug("keepalive skipped", "error", err)
	}
}

func (c *Client) scheduleReconnect() {
	observability.IncReconnectScheduled()
	c.reconnectSeq++
	seq := c.reconnectSeq
	c.logger.Info("reconnect scheduled", "delay", c.cfg.ReconnectDelay.String())
	c.reconnect = c.clock.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.postAsync(func() {
			if seq != c.reconnectSeq {
				return
			}
			c.reconnect = nil
			c.handle(ReconnectFired{HasToken: c.token() != ""})
		})
	})
}

func (c *Client) apply(ev protocol.Event) []notify.Notification {
	if c.writer == nil {
		return nil
	}
	return c.writer.Apply(ev)
}

func (c *Client) notify(n notify.Notification) {
	c.notifier.Notify(c.runCtx, notify.Stamp(n, c.clock.Now()))
}

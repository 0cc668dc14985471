// Package ws is the websocket seam of the messaging transport. The session
// package only sees the Conn and Dialer interfaces; the gorilla-backed
// implementations live here.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// WriteWait bounds every frame and control write.
	WriteWait = 10 * time.Second

	defaultHandshakeTimeout = 10 * time.Second
)

// Conn is the subset of *websocket.Conn the transport uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a connection authenticated by token.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// HandshakeError reports an HTTP response that refused the upgrade.
type HandshakeError struct {
	StatusCode int
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake rejected: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// GorillaDialer dials BaseURL with the token appended as the final path
// segment, e.g. ws://host/messages/ws/{token}.
type GorillaDialer struct {
	BaseURL          string
	HandshakeTimeout time.Duration
}

func NewDialer(baseURL string, handshakeTimeout time.Duration) *GorillaDialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	return &GorillaDialer{BaseURL: baseURL, HandshakeTimeout: handshakeTimeout}
}

func (d *GorillaDialer) Dial(ctx context.Context, token string) (Conn, error) {
	if token == "" {
		return nil, errors.New("websocket dial: empty token")
	}
	target, err := Endpoint(d.BaseURL, token)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, &HandshakeError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("websocket dial %s: %w", Redact(target), err)
	}
	return conn, nil
}

// Endpoint builds the connection address for token.
func Endpoint(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	return strings.TrimRight(u.String(), "/") + "/" + url.PathEscape(token), nil
}

// Redact drops the token path segment so addresses can be logged.
func Redact(target string) string {
	i := strings.LastIndex(target, "/")
	if i < 0 {
		return target
	}
	return target[:i+1] + "***"
}

// WriteText writes one text frame under WriteWait.
func WriteText(conn Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// CloseNormally sends a 1000 close frame, then closes the connection.
func CloseNormally(conn Conn) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	writeErr := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(WriteWait))
	closeErr := conn.Close()
	if writeErr != nil && !errors.Is(writeErr, websocket.ErrCloseSent) {
		return writeErr
	}
	return closeErr
}

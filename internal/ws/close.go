package ws

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
)

const (
	CloseNormal          = websocket.CloseNormalClosure
	ClosePolicyViolation = websocket.ClosePolicyViolation
	CloseAbnormal        = websocket.CloseAbnormalClosure
)

// CloseCode classifies a read or dial error as a close code. Close frames
// keep their code, a refused handshake with 401 or 403 counts as a policy
// violation, and everything else is an abnormal closure.
func CloseCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.CloseNoStatusReceived {
			return CloseAbnormal
		}
		return closeErr.Code
	}

	var handshakeErr *HandshakeError
	if errors.As(err, &handshakeErr) {
		switch handshakeErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ClosePolicyViolation
		}
	}
	return CloseAbnormal
}

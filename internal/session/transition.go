// Package session implements the messaging transport: a pure state machine
// (Transition) and the Client that drives it from a single event loop.
package session

import (
	"chat-client/internal/state"
	"chat-client/internal/ws"
)

type State int32

const (
	Idle State = iota
	Connecting
	Open
	Closing
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Status projects the transport state onto the connection status exposed
// to consumers of the session state.
func (s State) Status() state.Status {
	switch s {
	case Connecting:
		return state.StatusConnecting
	case Open:
		return state.StatusConnected
	case Reconnecting:
		return state.StatusReconnecting
	default:
		return state.StatusDisconnected
	}
}

// Input is anything that can move the transport between states.
type Input interface {
	input()
}

// Connect asks for a connection. HasToken is false when no session token
// is available.
type Connect struct {
	HasToken bool
}

type DialSucceeded struct{}

// Closed reports the end of a connection, or a failed dial, with its close
// code. Authenticated is whether a session token was still held.
type Closed struct {
	Code          int
	Authenticated bool
}

type Disconnect struct{}

// CloseCompleted follows the local normal close of an open connection.
type CloseCompleted struct{}

// ReconnectFired is delivered when the reconnect delay elapses.
type ReconnectFired struct {
	HasToken bool
}

func (Connect) input()        {}
func (DialSucceeded) input()  {}
func (Closed) input()         {}
func (Disconnect) input()     {}
func (CloseCompleted) input() {}
func (ReconnectFired) input() {}

type Action int

const (
	ActDial Action = iota
	ActCancelDial
	ActStartLiveness
	ActStopLiveness
	ActScheduleReconnect
	ActCancelReconnect
	ActCloseNormal
	ActClearPeers
	ActNotifyConnected
	ActNotifyConnectionLost
	ActNotifyAuthRejected
	ActLogMissingToken
)

func (a Action) String() string {
	switch a {
	case ActDial:
		return "dial"
	case ActCancelDial:
		return "cancel_dial"
	case ActStartLiveness:
		return "start_liveness"
	case ActStopLiveness:
		return "stop_liveness"
	case ActScheduleReconnect:
		return "schedule_reconnect"
	case ActCancelReconnect:
		return "cancel_reconnect"
	case ActCloseNormal:
		return "close_normal"
	case ActClearPeers:
		return "clear_peers"
	case ActNotifyConnected:
		return "notify_connected"
	case ActNotifyConnectionLost:
		return "notify_connection_lost"
	case ActNotifyAuthRejected:
		return "notify_auth_rejected"
	case ActLogMissingToken:
		return "log_missing_token"
	default:
		return "unknown"
	}
}

// Transition returns the next state and the actions the driver must perform,
// in order. Inputs that do not apply to the current state leave it
// unchanged with no actions.
func Transition(from State, in Input) (State, []Action) {
	switch from {
	case Idle:
		switch e := in.(type) {
		case Connect:
			if !e.HasToken {
				return Idle, []Action{ActLogMissingToken}
			}
			return Connecting, []Action{ActDial}
		}

	case Connecting:
		switch e := in.(type) {
		case DialSucceeded:
			return Open, []Action{ActStartLiveness, ActNotifyConnected}
		case Closed:
			switch {
			case e.Code == ws.ClosePolicyViolation:
				return Idle, []Action{ActNotifyAuthRejected}
			case e.Code != ws.CloseNormal && e.Authenticated:
				return Reconnecting, []Action{ActScheduleReconnect}
			default:
				return Idle, nil
			}
		case Disconnect:
			return Idle, []Action{ActCancelDial}
		}

	case Open:
		switch e := in.(type) {
		case Closed:
			left := []Action{ActStopLiveness, ActClearPeers}
			switch {
			case e.Code == ws.CloseNormal:
				return Idle, left
			case e.Code == ws.ClosePolicyViolation:
				return Idle, append(left, ActNotifyAuthRejected)
			case e.Authenticated:
				return Reconnecting, append(left, ActNotifyConnectionLost, ActScheduleReconnect)
			default:
				return Idle, left
			}
		case Disconnect:
			return Closing, []Action{ActStopLiveness, ActClearPeers, ActCloseNormal}
		}

	case Closing:
		switch in.(type) {
		case CloseCompleted, Closed:
			return Idle, nil
		}

	case Reconnecting:
		switch e := in.(type) {
		case ReconnectFired:
			if !e.HasToken {
				return Idle, []Action{ActLogMissingToken}
			}
			return Connecting, []Action{ActDial}
		case Connect:
			if !e.HasToken {
				return Idle, []Action{ActCancelReconnect, ActLogMissingToken}
			}
			return Connecting, []Action{ActCancelReconnect, ActDial}
		case Disconnect:
			return Idle, []Action{ActCancelReconnect}
		}
	}
	return from, nil
}

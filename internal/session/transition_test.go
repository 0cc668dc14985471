package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chat-client/internal/state"
	"chat-client/internal/ws"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		in      Input
		want    State
		actions []Action
	}{
		{"connect from idle", Idle, Connect{HasToken: true}, Connecting, []Action{ActDial}},
		{"connect without token", Idle, Connect{}, Idle, []Action{ActLogMissingToken}},
		{"connect while connecting", Connecting, Connect{HasToken: true}, Connecting, nil},
		{"connect while open", Open, Connect{HasToken: true}, Open, nil},
		{"dial succeeded", Connecting, DialSucceeded{}, Open, []Action{ActStartLiveness, ActNotifyConnected}},
		{"dial refused", Connecting, Closed{Code: ws.CloseAbnormal, Authenticated: true}, Reconnecting, []Action{ActScheduleReconnect}},
		{"dial rejected token", Connecting, Closed{Code: ws.ClosePolicyViolation, Authenticated: true}, Idle, []Action{ActNotifyAuthRejected}},
		{"dial failed after logout", Connecting, Closed{Code: ws.CloseAbnormal}, Idle, nil},
		{"disconnect mid connecting", Connecting, Disconnect{}, Idle, []Action{ActCancelDial}},
		{"normal close", Open, Closed{Code: ws.CloseNormal, Authenticated: true}, Idle, []Action{ActStopLiveness, ActClearPeers}},
		{"policy close", Open, Closed{Code: ws.ClosePolicyViolation, Authenticated: true}, Idle,
			[]Action{ActStopLiveness, ActClearPeers, ActNotifyAuthRejected}},
		{"abnormal close", Open, Closed{Code: 1006, Authenticated: true}, Reconnecting,
			[]Action{ActStopLiveness, ActClearPeers, ActNotifyConnectionLost, ActScheduleReconnect}},
		{"abnormal close with other code", Open, Closed{Code: 1011, Authenticated: true}, Reconnecting,
			[]Action{ActStopLiveness, ActClearPeers, ActNotifyConnectionLost, ActScheduleReconnect}},
		{"abnormal close unauthenticated", Open, Closed{Code: 1006}, Idle, []Action{ActStopLiveness, ActClearPeers}},
		{"disconnect while open", Open, Disconnect{}, Closing, []Action{ActStopLiveness, ActClearPeers, ActCloseNormal}},
		{"close completed", Closing, CloseCompleted{}, Idle, nil},
		{"reconnect fires", Reconnecting, ReconnectFired{HasToken: true}, Connecting, []Action{ActDial}},
		{"reconnect fires without token", Reconnecting, ReconnectFired{}, Idle, []Action{ActLogMissingToken}},
		{"disconnect while reconnecting", Reconnecting, Disconnect{}, Idle, []Action{ActCancelReconnect}},
		{"connect while reconnecting", Reconnecting, Connect{HasToken: true}, Connecting, []Action{ActCancelReconnect, ActDial}},
		{"disconnect when idle", Idle, Disconnect{}, Idle, nil},
		{"stale reconnect when idle", Idle, ReconnectFired{HasToken: true}, Idle, nil},
		{"stale close when idle", Idle, Closed{Code: 1006, Authenticated: true}, Idle, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, actions := Transition(tt.from, tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.actions, actions)
		})
	}
}

func TestLeavingOpenAlwaysStopsLivenessAndClearsPeers(t *testing.T) {
	inputs := []Input{
		Disconnect{},
		Closed{Code: ws.CloseNormal, Authenticated: true},
		Closed{Code: ws.ClosePolicyViolation, Authenticated: true},
		Closed{Code: ws.CloseAbnormal, Authenticated: true},
		Closed{Code: ws.CloseAbnormal},
	}
	for _, in := range inputs {
		next, actions := Transition(Open, in)
		assert.NotEqual(t, Open, next)
		assert.Contains(t, actions, ActStopLiveness)
		assert.Contains(t, actions, ActClearPeers)
	}
}

func TestStateStatus(t *testing.T) {
	assert.Equal(t, state.StatusDisconnected, Idle.Status())
	assert.Equal(t, state.StatusConnecting, Connecting.Status())
	assert.Equal(t, state.StatusConnected, Open.Status())
	assert.Equal(t, state.StatusDisconnected, Closing.Status())
	assert.Equal(t, state.StatusReconnecting, Reconnecting.Status())
}

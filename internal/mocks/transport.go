package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
	"chat-client/internal/protocol"
	"chat-client/internal/session"
)

// TransportMock stands in for *session.Client.
type TransportMock struct {
	mock.Mock
}

func (m *TransportMock) State() session.State {
	args := m.Called()
	return args.Get(0).(session.State)
}

func (m *TransportMock) SendMessage(ctx context.Context, msg protocol.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *TransportMock) SendTyping(ctx context.Context, isTyping bool, receiver models.ID) error {
	args := m.Called(ctx, isTyping, receiver)
	return args.Error(0)
}

func (m *TransportMock) RequestHistory(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *TransportMock) MarkRead(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *TransportMock) ApplyHistory(ctx context.Context, messages []models.Message) error {
	args := m.Called(ctx, messages)
	return args.Error(0)
}

func (m *TransportMock) ApplyPresence(ctx context.Context, users []models.PresenceEntry) error {
	args := m.Called(ctx, users)
	return args.Error(0)
}

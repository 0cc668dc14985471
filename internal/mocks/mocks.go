package mocks

import (
	"context"
	"encoding/json"
	"io"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/backend"
	"chat-client/internal/models"
)

// BackendMock stands in for *backend.Client.
type BackendMock struct {
	mock.Mock
}

func (m *BackendMock) Login(ctx context.Context, username, password string) (*backend.LoginResponse, error) {
	args := m.Called(ctx, username, password)
	var resp *backend.LoginResponse
	if val := args.Get(0); val != nil {
		resp = val.(*backend.LoginResponse)
	}
	return resp, args.Error(1)
}

func (m *BackendMock) Me(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	var user *models.User
	if val := args.Get(0); val != nil {
		user = val.(*models.User)
	}
	return user, args.Error(1)
}

func (m *BackendMock) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *BackendMock) UploadFile(ctx context.Context, token, filename string, content io.Reader) (*backend.UploadedFile, error) {
	args := m.Called(ctx, token, filename, content)
	var file *backend.UploadedFile
	if val := args.Get(0); val != nil {
		file = val.(*backend.UploadedFile)
	}
	return file, args.Error(1)
}

func (m *BackendMock) ToggleReaction(ctx context.Context, token string, messageID models.ID, emoji string) (*backend.ReactionResult, error) {
	args := m.Called(ctx, token, messageID, emoji)
	var res *backend.ReactionResult
	if val := args.Get(0); val != nil {
		res = val.(*backend.ReactionResult)
	}
	return res, args.Error(1)
}

func (m *BackendMock) Reactions(ctx context.Context, token string, messageID models.ID) ([]models.Reaction, error) {
	args := m.Called(ctx, token, messageID)
	var list []models.Reaction
	if val := args.Get(0); val != nil {
		list = val.([]models.Reaction)
	}
	return list, args.Error(1)
}

func (m *BackendMock) Messages(ctx context.Context, token string) ([]models.Message, error) {
	args := m.Called(ctx, token)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *BackendMock) OnlineUsers(ctx context.Context, token string) ([]models.PresenceEntry, error) {
	args := m.Called(ctx, token)
	var list []models.PresenceEntry
	if val := args.Get(0); val != nil {
		list = val.([]models.PresenceEntry)
	}
	return list, args.Error(1)
}

func (m *BackendMock) DashboardOverview(ctx context.Context, token string) (json.RawMessage, error) {
	args := m.Called(ctx, token)
	return rawArg(args, 0), args.Error(1)
}

func (m *BackendMock) Boards(ctx context.Context, token string) (json.RawMessage, error) {
	args := m.Called(ctx, token)
	return rawArg(args, 0), args.Error(1)
}

func (m *BackendMock) Board(ctx context.Context, token string, boardID models.ID) (json.RawMessage, error) {
	args := m.Called(ctx, token, boardID)
	return rawArg(args, 0), args.Error(1)
}

func (m *BackendMock) Users(ctx context.Context, token string) (json.RawMessage, error) {
	args := m.Called(ctx, token)
	return rawArg(args, 0), args.Error(1)
}

func (m *BackendMock) MoveTask(ctx context.Context, token string, taskID models.ID, move backend.MoveTaskRequest) error {
	args := m.Called(ctx, token, taskID, move)
	return args.Error(0)
}

func rawArg(args mock.Arguments, i int) json.RawMessage {
	if val := args.Get(i); val != nil {
		return val.(json.RawMessage)
	}
	return nil
}

// CredentialStoreMock stands in for credentials.Store.
type CredentialStoreMock struct {
	mock.Mock
}

func (m *CredentialStoreMock) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	var value []byte
	if val := args.Get(0); val != nil {
		value = val.([]byte)
	}
	return value, args.Error(1)
}

func (m *CredentialStoreMock) Put(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *CredentialStoreMock) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

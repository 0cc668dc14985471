package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer",
			"user":{"id":1,"username":"alice","email":"a@x","full_name":"Alice","access_level":"master"}}`))
	})

	resp, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.AccessToken)
	assert.Equal(t, models.ID("1"), resp.User.ID)
	assert.Equal(t, models.AccessMaster, resp.User.AccessLevel)

	_, err = c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Incorrect username or password", apiErr.Detail)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsServerError(err))
}

func TestLoginLocalAndMalformedFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	})

	_, err := c.Login(context.Background(), "", "secret")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, int32(0), calls.Load())

	_, err = c.Login(context.Background(), "alice", "secret")
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, "login", respErr.Operation)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMeSendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/me", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"7","username":"bob"}`))
	})

	user, err := c.Me(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)

	_, err = c.Me(context.Background(), "stale")
	assert.True(t, IsUnauthorized(err))
}

func TestServerErrorDetailFallsBackToBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	err := c.Logout(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, IsServerError(err))
	assert.Contains(t, err.Error(), "upstream down")
}

func TestUploadFileIsMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/upload", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "hello", string(data))

		_, _ = w.Write([]byte(`{"id":3,"filename":"notes.txt","file_path":"/uploads/abc.txt","file_size":5,"content_type":"text/plain"}`))
	})

	file, err := c.UploadFile(context.Background(), "tok", "notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/abc.txt", file.FilePath)
	assert.Equal(t, int64(5), file.FileSize)
}

func TestToggleReaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/12/reactions", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "👍", body["emoji"])
		_, _ = w.Write([]byte(`{"action":"added","reactions":[{"emoji":"👍","count":1,"users":["alice"]}]}`))
	})

	res, err := c.ToggleReaction(context.Background(), "tok", "12", "👍")
	require.NoError(t, err)
	assert.Equal(t, models.ID("12"), res.MessageID)
	assert.Equal(t, "added", res.Action)
	require.Len(t, res.Reactions, 1)
}

func TestReactions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/messages/12/reactions", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"message_id":12,"reactions":[{"emoji":"🎉","count":2,"users":["alice","bob"],"reacted_by_me":true}]}`))
	})

	reactions, err := c.Reactions(context.Background(), "tok", "12")
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, "🎉", reactions[0].Emoji)
	assert.Equal(t, 2, reactions[0].Count)
	assert.True(t, reactions[0].ReactedByMe)
}

func TestMalformedSuccessBodyIsResponseError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := c.Reactions(context.Background(), "tok", "12")
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, "reactions", respErr.Operation)

	_, err = c.Me(context.Background(), "tok")
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, "me", respErr.Operation)
	assert.False(t, IsUnauthorized(err))
}

func TestMessagesAcceptsWrappedOrBareList(t *testing.T) {
	bodies := []string{
		`{"messages":[{"id":2,"created_at":"2024-01-01T10:00:00"},{"id":1,"created_at":"2024-01-01T09:00:00"}],"total":2}`,
		`[{"id":2,"timestamp":"2024-01-01T10:00:00"},{"id":1,"timestamp":"2024-01-01T09:00:00"}]`,
	}
	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/messages/", r.URL.Path)
			_, _ = w.Write([]byte(body))
		})

		messages, err := c.Messages(context.Background(), "tok")
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, models.ID("1"), messages[0].ID)
		assert.Equal(t, models.ID("2"), messages[1].ID)
	}
}

func TestOnlineUsers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[{"id":2,"username":"bob","full_name":"Bob"}]}`))
	})

	users, err := c.OnlineUsers(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Bob", users[0].DisplayName)
}

func TestWorkspacePassThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dashboard/overview":
			_, _ = w.Write([]byte(`{"tickets":{"open":3}}`))
		case "/kanban/boards":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Ops"}]`))
		case "/users/":
			_, _ = w.Write([]byte(`[{"id":1,"username":"ana"}]`))
		case "/kanban/tasks/5/move":
			assert.Equal(t, http.MethodPut, r.Method)
			var move MoveTaskRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&move))
			assert.Equal(t, models.ID("2"), move.ColumnID)
			assert.Equal(t, 1, move.Position)
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	overview, err := c.DashboardOverview(ctx, "tok")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tickets":{"open":3}}`, string(overview))

	boards, err := c.Boards(ctx, "tok")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":"Ops"}]`, string(boards))

	users, err := c.Users(ctx, "tok")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"username":"ana"}]`, string(users))

	require.NoError(t, c.MoveTask(ctx, "tok", "5", MoveTaskRequest{ColumnID: "2", Position: 1}))

	_, err = c.Board(ctx, "tok", "99")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestNetworkErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: url})
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "alice", "secret")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

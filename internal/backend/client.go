// Package backend is the REST client for the chat backend: authentication,
// file upload, reactions, message history, presence and the workspace
// endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

const maxResponseBytes = 8 << 20

type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("backend: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		tracer:     otel.Tracer("chat-client/backend"),
	}, nil
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        models.User `json:"user"`
}

type UploadedFile struct {
	ID          models.ID `json:"id"`
	Filename    string    `json:"filename"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
}

type ReactionResult struct {
	MessageID models.ID         `json:"message_id"`
	Action    string            `json:"action"`
	Reactions []models.Reaction `json:"reactions"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	body := map[string]string{"username": username, "password": password}

	var resp LoginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &ResponseError{Operation: "login", Err: errors.New("missing access_token")}
	}
	return &resp, nil
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := c.doJSON(ctx, "me", http.MethodGet, "/auth/me", token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, "logout", http.MethodPost, "/auth/logout", token, nil, nil)
}

// UploadFile sends content as the multipart field "file".
func (c *Client) UploadFile(ctx context.Context, token, filename string, content io.Reader) (*UploadedFile, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("backend: create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("backend: read upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("backend: close form: %w", err)
	}

	data, err := c.do(ctx, "upload", http.MethodPost, "/files/upload", token, form.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	var file UploadedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &ResponseError{Operation: "upload", Err: err}
	}
	return &file, nil
}

// ToggleReaction adds emoji to the message, or removes it when the user
// already reacted with it.
func (c *Client) ToggleReaction(ctx context.Context, token string, messageID models.ID, emoji string) (*ReactionResult, error) {
	body := map[string]string{"emoji": emoji}
	var resp ReactionResult
	path := "/messages/" + url.PathEscape(messageID.String()) + "/reactions"
	if err := c.doJSON(ctx, "toggle_reaction", http.MethodPost, path, token, body, &resp); err != nil {
		return nil, err
	}
	if resp.MessageID.IsZero() {
		resp.MessageID = messageID
	}
	return &resp, nil
}

func (c *Client) Reactions(ctx context.Context, token string, messageID models.ID) ([]models.Reaction, error) {
	path := "/messages/" + url.PathEscape(messageID.String()) + "/reactions"
	data, err := c.do(ctx, "reactions", http.MethodGet, path, token, "", nil)
	if err != nil {
		return nil, err
	}
	var reactions []models.Reaction
	if err := decodeList(data, "reactions", &reactions); err != nil {
		return nil, &ResponseError{Operation: "reactions", Err: err}
	}
	return reactions, nil
}

// Messages fetches history over HTTP, oldest first.
func (c *Client) Messages(ctx context.Context, token string) ([]models.Message, error) {
	data, err := c.do(ctx, "messages", http.MethodGet, "/messages/", token, "", nil)
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	if err := decodeList(data, "messages", &messages); err != nil {
		return nil, &ResponseError{Operation: "messages", Err: err}
	}
	sortByTimestamp(messages)
	return messages, nil
}

func (c *Client) OnlineUsers(ctx context.Context, token string) ([]models.PresenceEntry, error) {
	data, err := c.do(ctx, "online_users", http.MethodGet, "/messages/online-users", token, "", nil)
	if err != nil {
		return nil, err
	}
	var users []models.PresenceEntry
	if err := decodeList(data, "users", &users); err != nil {
		return nil, &ResponseError{Operation: "online_users", Err: err}
	}
	return users, nil
}

func (c *Client) DashboardOverview(ctx context.Context, token string) (json.RawMessage, error) {
	return c.raw(ctx, "dashboard", "/dashboard/overview", token)
}

func (c *Client) Boards(ctx context.Context, token string) (json.RawMessage, error) {
	return c.raw(ctx, "boards", "/kanban/boards", token)
}

func (c *Client) Board(ctx context.Context, token string, boardID models.ID) (json.RawMessage, error) {
	return c.raw(ctx, "board", "/kanban/boards/"+url.PathEscape(boardID.String()), token)
}

// Users lists the user directory. The backend restricts it to coordinators.
func (c *Client) Users(ctx context.Context, token string) (json.RawMessage, error) {
	return c.raw(ctx, "users", "/users/", token)
}

type MoveTaskRequest struct {
	ColumnID models.ID `json:"column_id"`
	Position int       `json:"position"`
}

func (c *Client) MoveTask(ctx context.Context, token string, taskID models.ID, move MoveTaskRequest) error {
	path := "/kanban/tasks/" + url.PathEscape(taskID.String()) + "/move"
	return c.doJSON(ctx, "move_task", http.MethodPut, path, token, move, nil)
}

func (c *Client) raw(ctx context.Context, operation, path, token string) (json.RawMessage, error) {
	data, err := c.do(ctx, operation, http.MethodGet, path, token, "", nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, &ResponseError{Operation: operation, Err: errors.New("invalid JSON")}
	}
	return json.RawMessage(data), nil
}

func (c *Client) doJSON(ctx context.Context, operation, method, path, token string, requestBody, out any) error {
	var body io.Reader
	contentType := ""
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("backend: encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	data, err := c.do(ctx, operation, method, path, token, contentType, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ResponseError{Operation: operation, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, operation, method, path, token, contentType string, body io.Reader) (data []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "backend."+operation, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)
	defer func() {
		observability.ObserveBackendRequest(operation, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("backend: read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Detail: detail(data)}
	c.logger.Debug("backend request failed",
		"operation", operation,
		"status", resp.StatusCode,
		"detail", apiErr.Detail,
	)
	return nil, apiErr
}

// detail extracts the error message from a {"detail": ...} body. Validation
// errors carry a list under detail and are kept as raw JSON.
func detail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(data))
	}
	var text string
	if err := json.Unmarshal(body.Detail, &text); err == nil {
		return text
	}
	return string(body.Detail)
}

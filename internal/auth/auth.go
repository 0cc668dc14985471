// Package auth exchanges credentials for a session token, restores a saved
// session on start and tears the session down on logout or rejection.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-client/internal/backend"
	"chat-client/internal/credentials"
	"chat-client/internal/models"
	"chat-client/internal/notify"
)

// Backend is the part of the REST client the authenticator needs.
type Backend interface {
	Login(ctx context.Context, username, password string) (*backend.LoginResponse, error)
	Me(ctx context.Context, token string) (*models.User, error)
	Logout(ctx context.Context, token string) error
}

type Session struct {
	User  models.User
	Token string
}

// Observer is told when a session starts and ends. Calls are made without
// any authenticator lock held.
type Observer interface {
	SessionStarted(ctx context.Context, s Session)
	SessionEnded(ctx context.Context, reason string)
}

// ObserverFuncs adapts a pair of functions to Observer.
type ObserverFuncs struct {
	Started func(ctx context.Context, s Session)
	Ended   func(ctx context.Context, reason string)
}

func (o ObserverFuncs) SessionStarted(ctx context.Context, s Session) {
	if o.Started != nil {
		o.Started(ctx, s)
	}
}

func (o ObserverFuncs) SessionEnded(ctx context.Context, reason string) {
	if o.Ended != nil {
		o.Ended(ctx, reason)
	}
}

// End reasons passed to observers.
const (
	ReasonLogout       = "logout"
	ReasonTokenInvalid = "token_invalid"
)

type Config struct {
	Backend         Backend
	Store           credentials.Store
	Notifier        notify.Notifier
	Logger          *slog.Logger
	ValidateTimeout time.Duration
}

type Authenticator struct {
	backend         Backend
	store           credentials.Store
	notifier        notify.Notifier
	logger          *slog.Logger
	tracer          trace.Tracer
	validateTimeout time.Duration

	mu        sync.RWMutex
	session   *Session
	observers []Observer

	validations sync.WaitGroup
}

func New(cfg Config) *Authenticator {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ValidateTimeout <= 0 {
		cfg.ValidateTimeout = 10 * time.Second
	}
	return &Authenticator{
		backend:         cfg.Backend,
		store:           cfg.Store,
		notifier:        cfg.Notifier,
		logger:          cfg.Logger,
		tracer:          otel.Tracer("chat-client/auth"),
		validateTimeout: cfg.ValidateTimeout,
	}
}

func (a *Authenticator) AddObserver(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// Login exchanges credentials for a token, persists it and starts the
// session. Failures leave the current state untouched.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Session, error) {
	ctx, span := a.tracer.Start(ctx, "auth.login")
	defer span.End()
	span.SetAttributes(attribute.String("auth.username", username))

	resp, err := a.backend.Login(ctx, username, password)
	if err != nil {
		authErr := classify(err)
		span.RecordError(authErr)
		span.SetStatus(codes.Error, string(authErr.Kind))
		a.logger.Warn("login failed", "username", username, "kind", authErr.Kind, "error", err)
		return nil, authErr
	}

	s := Session{User: resp.User, Token: resp.AccessToken}
	a.persist(ctx, s)
	a.start(ctx, s)

	a.logger.Info("logged in", "user_id", s.User.ID.String(), "username", s.User.Username)
	a.notifier.Notify(ctx, notify.Stamp(notify.Notification{
		Kind:  notify.KindLoggedIn,
		Level: notify.LevelSuccess,
		Text:  "Welcome, " + s.User.DisplayName(),
	}, time.Now()))
	return &s, nil
}

func classify(err error) *Error {
	var apiErr *backend.APIError
	var respErr *backend.ResponseError
	switch {
	case errors.Is(err, backend.ErrMissingCredentials):
		return &Error{Kind: InvalidCredentials, Err: err}
	case errors.As(err, &respErr):
		return &Error{Kind: ServerError, Err: err}
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 500:
		return &Error{Kind: ServerError, Err: err}
	case errors.As(err, &apiErr):
		return &Error{Kind: InvalidCredentials, Err: err}
	default:
		return &Error{Kind: NetworkUnavailable, Err: err}
	}
}

// RestoreSession reuses a saved token right away and validates it against
// the backend in the background. A token the backend rejects ends the
// session; an unreachable backend leaves it in place.
func (a *Authenticator) RestoreSession(ctx context.Context) (*Session, bool) {
	raw, err := a.store.Get(ctx, credentials.KeyToken)
	if err != nil || len(raw) == 0 {
		if err != nil && !errors.Is(err, credentials.ErrNotFound) {
			a.logger.Warn("read saved token", "error", err)
		}
		return nil, false
	}

	s := Session{Token: string(raw)}
	if data, err := a.store.Get(ctx, credentials.KeyUser); err == nil {
		if err := json.Unmarshal(data, &s.User); err != nil {
			a.logger.Warn("discarding unreadable cached profile", "error", err)
			s.User = models.User{}
		}
	}

	a.start(ctx, s)
	a.logger.Info("session restored", "user_id", s.User.ID.String())

	a.validations.Add(1)
	go func() {
		defer a.validations.Done()
		a.validate(context.WithoutCancel(ctx), s)
	}()
	return &s, true
}

func (a *Authenticator) validate(ctx context.Context, restored Session) {
	ctx, cancel := context.WithTimeout(ctx, a.validateTimeout)
	defer cancel()
	ctx, span := a.tracer.Start(ctx, "auth.validate")
	defer span.End()

	user, err := a.backend.Me(ctx, restored.Token)
	switch {
	case backend.IsUnauthorized(err):
		span.SetStatus(codes.Error, "token rejected")
		a.logger.Info("saved token rejected", "error", err)
		a.invalidateToken(ctx, restored.Token, "Your session has expired, please log in again")
		return
	case err != nil:
		span.RecordError(err)
		a.logger.Warn("could not validate saved token, keeping session", "error", err)
		return
	}

	a.mu.Lock()
	if a.session == nil || a.session.Token != restored.Token {
		a.mu.Unlock()
		return
	}
	changed := a.session.User.ID != user.ID
	a.session.User = *user
	current := *a.session
	observers := a.copyObservers()
	a.mu.Unlock()

	a.persist(ctx, current)
	if changed {
		for _, o := range observers {
			o.SessionStarted(ctx, current)
		}
	}
}

// Logout tells the backend on a best-effort basis, then clears the saved
// credentials and the session. Safe to call when logged out.
func (a *Authenticator) Logout(ctx context.Context) {
	ctx, span := a.tracer.Start(ctx, "auth.logout")
	defer span.End()

	s, ok := a.take()
	if ok {
		if err := a.backend.Logout(ctx, s.Token); err != nil {
			span.RecordError(err)
			a.logger.Warn("backend logout failed", "error", err)
		}
	}
	a.clear(ctx)
	if !ok {
		return
	}

	a.end(ctx, ReasonLogout)
	a.notifier.Notify(ctx, notify.Stamp(notify.Notification{
		Kind:  notify.KindLoggedOut,
		Level: notify.LevelSuccess,
		Text:  "Logged out",
	}, time.Now()))
}

// Invalidate ends the session after the token was rejected, without
// contacting the backend.
func (a *Authenticator) Invalidate(ctx context.Context, reason string) {
	a.invalidateToken(ctx, "", reason)
}

// InvalidateToken is Invalidate for a specific token. A session started
// with another token, for example after a fresh login, is left alone.
func (a *Authenticator) InvalidateToken(ctx context.Context, token, reason string) {
	if token == "" {
		return
	}
	a.invalidateToken(ctx, token, reason)
}

// invalidateToken ends the session if it still holds token. An empty token
// matches any session.
func (a *Authenticator) invalidateToken(ctx context.Context, token, reason string) {
	a.mu.Lock()
	if a.session == nil || (token != "" && a.session.Token != token) {
		a.mu.Unlock()
		return
	}
	a.session = nil
	a.mu.Unlock()

	a.clear(ctx)
	a.end(ctx, ReasonTokenInvalid)
	if reason == "" {
		reason = "Session expired"
	}
	a.notifier.Notify(ctx, notify.Stamp(notify.Notification{
		Kind:  notify.KindSessionExpired,
		Level: notify.LevelError,
		Text:  reason,
	}, time.Now()))
}

// Current returns a copy of the active session.
func (a *Authenticator) Current() (Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return Session{}, false
	}
	return *a.session, true
}

// Token returns the active token, or "" when logged out.
func (a *Authenticator) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return ""
	}
	return a.session.Token
}

func (a *Authenticator) IsAdmin() bool {
	s, ok := a.Current()
	return ok && s.User.AccessLevel == models.AccessMaster
}

func (a *Authenticator) IsCoordinator() bool {
	s, ok := a.Current()
	return ok && (s.User.AccessLevel == models.AccessCoordinator || s.User.AccessLevel == models.AccessMaster)
}

// Wait blocks until background validations have finished.
func (a *Authenticator) Wait() {
	a.validations.Wait()
}

func (a *Authenticator) start(ctx context.Context, s Session) {
	a.mu.Lock()
	a.session = &s
	observers := a.copyObservers()
	a.mu.Unlock()

	for _, o := range observers {
		o.SessionStarted(ctx, s)
	}
}

func (a *Authenticator) end(ctx context.Context, reason string) {
	a.mu.RLock()
	observers := a.copyObservers()
	a.mu.RUnlock()

	for _, o := range observers {
		o.SessionEnded(ctx, reason)
	}
}

func (a *Authenticator) take() (Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return Session{}, false
	}
	s := *a.session
	a.session = nil
	return s, true
}

func (a *Authenticator) copyObservers() []Observer {
	return append([]Observer(nil), a.observers...)
}

func (a *Authenticator) persist(ctx context.Context, s Session) {
	if err := a.store.Put(ctx, credentials.KeyToken, []byte(s.Token)); err != nil {
		a.logger.Warn("persist token", "error", err)
	}
	data, err := json.Marshal(s.User)
	if err != nil {
		a.logger.Warn("encode profile", "error", err)
		return
	}
	if err := a.store.Put(ctx, credentials.KeyUser, data); err != nil {
		a.logger.Warn("persist profile", "error", err)
	}
}

func (a *Authenticator) clear(ctx context.Context) {
	for _, key := range []string{credentials.KeyToken, credentials.KeyUser} {
		if err := a.store.Delete(ctx, key); err != nil {
			a.logger.Warn("clear saved credential", "key", key, "error", err)
		}
	}
}

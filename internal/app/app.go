// Package app wires the messaging client together: credential storage, the
// backend REST client, the authenticator, the session state, the messaging
// transport and the notification sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-client/internal/auth"
	"chat-client/internal/backend"
	"chat-client/internal/config"
	"chat-client/internal/credentials"
	"chat-client/internal/handlers"
	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/observability"
	"chat-client/internal/session"
	"chat-client/internal/state"
	"chat-client/internal/ws"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Backend       *backend.Client
	Auth          *auth.Authenticator
	State         *state.Store
	Client        *session.Client
	Notifications *notify.Broadcaster
	Notifier      notify.Notifier

	amqp            *notify.AMQP
	closeCreds      func() error
	shutdownTracing func(context.Context) error
	runDone         chan struct{}
	started         bool
}

// New builds every component. Nothing is started until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Insecure:    cfg.Tracing.Insecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	creds, closeCreds, err := credentials.Open(ctx, credentials.Config{
		Driver:    cfg.Credentials.Driver,
		Path:      cfg.Credentials.Path,
		DSN:       cfg.Credentials.DSN,
		Namespace: cfg.Credentials.Namespace,
	})
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	api, err := backend.NewClient(backend.ClientConfig{
		BaseURL: cfg.BackendURL,
		Logger:  logger.With("component", "backend"),
	})
	if err != nil {
		_ = closeCreds()
		_ = shutdownTracing(ctx)
		return nil, err
	}

	a := &App{
		Config:          cfg,
		Logger:          logger,
		Backend:         api,
		Notifications:   notify.NewBroadcaster(),
		closeCreds:      closeCreds,
		shutdownTracing: shutdownTracing,
		runDone:         make(chan struct{}),
	}

	publisher := notify.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	logger.Info("notification publisher ready",
		"mode", notify.PublisherMode(publisher),
		"noop_reason", notify.PublisherNoopReason(publisher),
	)
	a.amqp = notify.NewAMQP(publisher, cfg.Tracing.ServiceName, a.currentUserID, logger)
	a.Notifier = notify.Multi(notify.Log{Logger: logger}, a.Notifications, a.amqp)

	a.Auth = auth.New(auth.Config{
		Backend:  api,
		Store:    creds,
		Notifier: a.Notifier,
		Logger:   logger.With("component", "auth"),
	})

	store, writer := state.NewStore(models.User{})
	a.State = store
	a.Client = session.NewClient(session.ClientConfig{
		Dialer:         ws.NewDialer(cfg.WebsocketURL, cfg.Transport.DialTimeout),
		Tokens:         a.Auth,
		Writer:         writer,
		Notifier:       a.Notifier,
		Logger:         logger.With("component", "transport"),
		ReconnectDelay: cfg.Transport.ReconnectDelay,
		PingInterval:   cfg.Transport.PingInterval,
		DialTimeout:    cfg.Transport.DialTimeout,
		SendBuffer:     cfg.Transport.SendBuffer,
		OnAuthRejected: func(token string) {
			a.Auth.InvalidateToken(context.Background(), token, "Session expired, please log in again")
		},
	})

	a.Auth.AddObserver(auth.ObserverFuncs{
		Started: func(ctx context.Context, s auth.Session) {
			if err := a.Client.Activate(context.WithoutCancel(ctx), s.User); err != nil {
				logger.Warn("activate transport failed", "error", err)
			}
		},
		Ended: func(ctx context.Context, reason string) {
			if err := a.Client.Deactivate(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("deactivate transport failed", "reason", reason, "error", err)
			}
		},
	})
	return a, nil
}

// Start runs the transport until ctx is cancelled and restores any saved
// session.
func (a *App) Start(ctx context.Context) {
	a.started = true
	go func() {
		defer close(a.runDone)
		a.Client.Run(ctx)
	}()

	if s, ok := a.Auth.RestoreSession(ctx); ok {
		a.Logger.Info("session restored", "user_id", s.User.ID.String())
	}
}

// Router builds the gateway.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(a.Config.Tracing.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(observability.RequestLogger(a.Logger))

	router.GET("/metrics", gin.WrapH(observability.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"connection": a.Client.State().Status(),
		})
	})

	handlers.Register(router, a.Auth, handlers.Set{
		Session:   handlers.NewSessionHandler(a.Auth, a.Client, a.Logger),
		Chat:      handlers.NewChatHandler(a.Auth, a.Client, a.State, a.Backend, a.Notifier, a.Logger),
		Events:    handlers.NewEventsHandler(a.State, a.Notifications),
		Workspace: handlers.NewWorkspaceHandler(a.Auth, a.Backend, a.Logger),
	})
	handlers.RegisterDebugRoutes(router, a.Notifier, a.Config.DebugRoutes)
	return router
}

// Close waits for a started transport to stop, then releases the notification
// sink, the credential store and the tracer provider. The context passed
// to Start must already be cancelled.
func (a *App) Close(ctx context.Context) error {
	if a.started {
		select {
		case <-a.runDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.Auth.Wait()

	var errs []error
	if err := a.amqp.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close notification publisher: %w", err))
	}
	if err := a.closeCreds(); err != nil {
		errs = append(errs, fmt.Errorf("close credential store: %w", err))
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.shutdownTracing(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) currentUserID() string {
	if a.Auth == nil {
		return ""
	}
	s, ok := a.Auth.Current()
	if !ok {
		return ""
	}
	return s.User.ID.String()
}

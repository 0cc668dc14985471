// Package config loads the client configuration from an optional YAML file
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BackendURL   string `yaml:"backend_url"`
	WebsocketURL string `yaml:"websocket_url"`
	ListenAddr   string `yaml:"listen_addr"`
	LogLevel     string `yaml:"log_level"`
	DebugRoutes  bool   `yaml:"debug_routes"`

	Transport   TransportConfig   `yaml:"transport"`
	Credentials CredentialsConfig `yaml:"credentials"`
	AMQP        AMQPConfig        `yaml:"amqp"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

type TransportConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	SendBuffer     int           `yaml:"send_buffer"`
}

type CredentialsConfig struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	DSN       string `yaml:"dsn"`
	Namespace string `yaml:"namespace"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		BackendURL:   "http://localhost:8001",
		WebsocketURL: "ws://localhost:8001/messages/ws",
		ListenAddr:   ":8090",
		LogLevel:     "info",
		Transport: TransportConfig{
			ReconnectDelay: 3 * time.Second,
			PingInterval:   30 * time.Second,
			DialTimeout:    10 * time.Second,
			SendBuffer:     64,
		},
		Credentials: CredentialsConfig{
			Driver:    "file",
			Path:      defaultCredentialsPath(),
			Namespace: "default",
		},
		AMQP: AMQPConfig{
			Exchange: "chat.client.events",
		},
		Tracing: TracingConfig{
			ServiceName: "chat-client",
			Insecure:    true,
		},
	}
}

// Load reads the file at path when path is not empty, fills unset fields
// with defaults and finally applies environment overrides.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		var fromFile Config
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		config.merge(fromFile)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) merge(o Config) {
	setString(&c.BackendURL, o.BackendURL)
	setString(&c.WebsocketURL, o.WebsocketURL)
	setString(&c.ListenAddr, o.ListenAddr)
	setString(&c.LogLevel, o.LogLevel)
	c.DebugRoutes = c.DebugRoutes || o.DebugRoutes

	setDuration(&c.Transport.ReconnectDelay, o.Transport.ReconnectDelay)
	setDuration(&c.Transport.PingInterval, o.Transport.PingInterval)
	setDuration(&c.Transport.DialTimeout, o.Transport.DialTimeout)
	if o.Transport.SendBuffer > 0 {
		c.Transport.SendBuffer = o.Transport.SendBuffer
	}

	setString(&c.Credentials.Driver, o.Credentials.Driver)
	setString(&c.Credentials.Path, o.Credentials.Path)
	setString(&c.Credentials.DSN, o.Credentials.DSN)
	setString(&c.Credentials.Namespace, o.Credentials.Namespace)

	setString(&c.AMQP.URL, o.AMQP.URL)
	setString(&c.AMQP.Exchange, o.AMQP.Exchange)

	setString(&c.Tracing.Endpoint, o.Tracing.Endpoint)
	setString(&c.Tracing.ServiceName, o.Tracing.ServiceName)
	if o.Tracing.Endpoint != "" {
		c.Tracing.Insecure = o.Tracing.Insecure
	}
}

func (c *Config) applyEnv() error {
	c.BackendURL = getEnv("CHAT_BACKEND_URL", c.BackendURL)
	c.WebsocketURL = getEnv("CHAT_WS_URL", c.WebsocketURL)
	c.ListenAddr = getEnv("CHAT_LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = getEnv("CHAT_LOG_LEVEL", c.LogLevel)

	c.Credentials.Driver = getEnv("CHAT_CREDENTIALS_DRIVER", c.Credentials.Driver)
	c.Credentials.Path = getEnv("CHAT_CREDENTIALS_PATH", c.Credentials.Path)
	c.Credentials.DSN = getEnv("CHAT_CREDENTIALS_DSN", c.Credentials.DSN)

	c.AMQP.URL = getEnv("AMQP_URL", c.AMQP.URL)
	c.AMQP.Exchange = getEnv("AMQP_EXCHANGE", c.AMQP.Exchange)

	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.ServiceName = getEnv("OTEL_SERVICE_NAME", c.Tracing.ServiceName)

	if getEnv("CHAT_DEBUG_ROUTES", "") == "true" {
		c.DebugRoutes = true
	}
	if raw := getEnv("CHAT_RECONNECT_DELAY", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid CHAT_RECONNECT_DELAY: %w", err)
		}
		c.Transport.ReconnectDelay = d
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.BackendURL == "" {
		errs = append(errs, errors.New("backend_url is required"))
	} else if _, err := url.ParseRequestURI(c.BackendURL); err != nil {
		errs = append(errs, fmt.Errorf("backend_url: %w", err))
	}
	if c.WebsocketURL == "" {
		errs = append(errs, errors.New("websocket_url is required"))
	} else if u, err := url.Parse(c.WebsocketURL); err != nil {
		errs = append(errs, fmt.Errorf("websocket_url: %w", err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("websocket_url: unsupported scheme %q", u.Scheme))
	}
	if c.Transport.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("transport.reconnect_delay must be positive"))
	}
	if c.Transport.PingInterval <= 0 {
		errs = append(errs, errors.New("transport.ping_interval must be positive"))
	}
	switch c.Credentials.Driver {
	case "file":
		if c.Credentials.Path == "" {
			errs = append(errs, errors.New("credentials.path is required for the file driver"))
		}
	case "postgres":
		if c.Credentials.DSN == "" {
			errs = append(errs, errors.New("credentials.dsn is required for the postgres driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("credentials.driver: unknown driver %q", c.Credentials.Driver))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a log_level value onto a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level: unknown level %q", level)
	}
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".chat-client", "credentials.json")
	}
	return filepath.Join(dir, "chat-client", "credentials.json")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// chat-tui is the terminal client. It shares the gateway's wiring but
// renders the session in the terminal instead of serving HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"chat-client/internal/app"
	"chat-client/internal/config"
	"chat-client/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var logOutput string

	flagSet := pflag.NewFlagSet("chat-tui", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", os.Getenv("CHAT_CONFIG"), "path to a YAML config file")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	// stderr belongs to the alt screen
	var out io.Writer = io.Discard
	if logOutput != "" {
		f, err := os.OpenFile(logOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", logOutput, err)
		}
		defer f.Close()
		out = f
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.Start(ctx)

	snapshots, unsubscribe := a.State.Subscribe()
	defer unsubscribe()
	notifications, unsubscribeNotes := a.Notifications.Subscribe(16)
	defer unsubscribeNotes()

	model := tui.NewModel(tui.Deps{
		Sessions:      a.Auth,
		Transport:     a.Client,
		Reactions:     a.Backend,
		Snapshots:     snapshots,
		Notifications: notifications,
	})
	_, runErr := tea.NewProgram(model, tea.WithAltScreen()).Run()

	cancel()
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	return runErr
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/subkeeper/subkeeper/internal/bot"
	"github.com/subkeeper/subkeeper/internal/config"
	"github.com/subkeeper/subkeeper/internal/dedup"
	"github.com/subkeeper/subkeeper/internal/metrics"
	"github.com/subkeeper/subkeeper/internal/server"
	"github.com/subkeeper/subkeeper/internal/session"
	"github.com/subkeeper/subkeeper/internal/setup"
	"github.com/subkeeper/subkeeper/internal/storage"
	"github.com/subkeeper/subkeeper/internal/storage/jsonfile"
	"github.com/subkeeper/subkeeper/internal/storage/sqlite"
	"github.com/subkeeper/subkeeper/internal/subscription"
	"github.com/subkeeper/subkeeper/internal/sweeper"
	"github.com/subkeeper/subkeeper/internal/transport"
	"github.com/subkeeper/subkeeper/internal/transport/telegram"
	"github.com/subkeeper/subkeeper/pkg/logging"
)

func main() {
	logging.Setup()

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("storage initialized", "backend", cfg.StoreBackend, "path", cfg.DataPath)

	tg, err := telegram.New(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	slog.Info("bot authenticated", "bot_id", tg.SelfID(), "username", tg.Username())

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	subs := subscription.New(store, cfg.SubscriptionDuration())
	router := bot.New(bot.Deps{
		Store:             store,
		Tp:                tg,
		Subs:              subs,
		Setup:             setup.New(store),
		Sessions:          session.NewManager(),
		Filter:            dedup.New(),
		Metrics:           m,
		SubscriptionLabel: cfg.SubscriptionLabel(),
		BotUsername:       tg.Username(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweepDone := sweeper.New(subs, tg, m, sweeper.Options{
		Interval:   cfg.SweepInterval(),
		NotifyText: bot.UserExpiredText,
	}).Start(ctx)

	// Webhook registration failing is survivable in development: fall back
	// to long polling so local runs work without a public URL.
	if err := tg.RegisterWebhook(cfg.WebhookURL); err != nil {
		if !cfg.Development() {
			return fmt.Errorf("register webhook: %w", err)
		}
		slog.Warn("webhook registration failed, falling back to long polling", "error", err)
		go tg.Poll(ctx, func(ev transport.Event) { router.Dispatch(ctx, ev) })
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: server.New(
			tg.DecodeUpdate,
			router.Dispatch,
			func() (any, error) { return tg.WebhookInfo() },
			registry,
			cfg.Environment,
		).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown incomplete", "error", err)
	}
	<-sweepDone
	slog.Info("shutdown complete")
	return nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return sqlite.New(filepath.Join(cfg.DataPath, "subkeeper.db"))
	default:
		return jsonfile.New(filepath.Join(cfg.DataPath, "database.json"))
	}
}

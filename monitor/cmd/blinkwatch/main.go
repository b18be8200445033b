package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/blinkwatch/blinkwatch/monitor/internal/api"
	"github.com/blinkwatch/blinkwatch/monitor/internal/auth"
	"github.com/blinkwatch/blinkwatch/monitor/internal/clock"
	"github.com/blinkwatch/blinkwatch/monitor/internal/config"
	"github.com/blinkwatch/blinkwatch/monitor/internal/logging"
	"github.com/blinkwatch/blinkwatch/monitor/internal/metrics"
	"github.com/blinkwatch/blinkwatch/monitor/internal/presenter"
	"github.com/blinkwatch/blinkwatch/monitor/internal/receiver"
	"github.com/blinkwatch/blinkwatch/monitor/internal/session"
	"github.com/blinkwatch/blinkwatch/monitor/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env-file", "", "load environment variables from this .env file before resolving secrets")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "blinkwatch: load env file %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blinkwatch: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	slog.Info("blinkwatch starting",
		"config", *configPath,
		"preset", cfg.Preset,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"target_rate", cfg.Alert.TargetRate,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sess := session.New(cfg, clock.Real{})

	// Presenter webhooks, only when at least one URL resolves.
	pres := presenter.New(webhookTargets(cfg), cfg.Presenter.BufferSize)
	if pres.Enabled() {
		sess.Subscribe(pres)
		go pres.Run(ctx)
	}

	// WebSocket hub: periodic stats plus immediate signal and blink events.
	hub := ws.New(sess, cfg.Server.BroadcastInterval)
	sess.Subscribe(hub)
	go hub.Run(ctx)

	sess.Start()

	go func() {
		if err := config.Watch(ctx, *configPath, sess.Apply); err != nil {
			slog.Warn("config watch disabled", "path", *configPath, "err", err)
		}
	}()

	rec := receiver.New(sess)
	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(sess))
	mux.Handle("/api/v1/frames", rec)
	mux.Handle("/ws/landmarks", rec)
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", metrics.New(sess, pres))

	mw := auth.APIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key())
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           mw(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("blinkwatch shutting down")
	sess.Stop()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// webhookTargets resolves configured webhooks to URLs. Entries whose env var
// is unset are skipped with a warning.
func webhookTargets(cfg *config.Config) []presenter.Target {
	var targets []presenter.Target
	for _, w := range cfg.Presenter.Webhooks {
		url := w.URL()
		if url == "" {
			slog.Warn("presenter webhook has no URL, skipping", "type", w.Type, "url_env", w.URLEnv)
			continue
		}
		targets = append(targets, presenter.Target{Type: w.Type, URL: url})
	}
	return targets
}

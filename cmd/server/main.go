package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/activitrax/server/pkg/bootstrap"
	"github.com/activitrax/server/pkg/correlation"
	"github.com/activitrax/server/pkg/infrastructure/sentry"
	"github.com/activitrax/server/pkg/providers/spotify"
	"github.com/activitrax/server/pkg/providers/strava"
	"github.com/activitrax/server/pkg/webhook"
)

func main() {
	ctx := context.Background()

	svc, err := bootstrap.NewService(ctx)
	if err != nil {
		slog.Error("Service init failed", "error", err)
		os.Exit(1)
	}

	logger := bootstrap.NewLogger("activitrax-server")

	if err := sentry.Init(sentry.Config{
		DSN:         svc.Config.SentryDSN,
		Environment: os.Getenv("ENVIRONMENT"),
		Release:     os.Getenv("RELEASE"),
		ServerName:  "activitrax-server",
	}, logger); err != nil {
		logger.Warn("Continuing without Sentry", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	appHTTP := &http.Client{Timeout: svc.Config.HTTPTimeout}
	handler := &webhook.Handler{
		Service:    svc,
		Correlator: correlation.New(svc),
		Strava: strava.NewAppClient(
			os.Getenv("STRAVA_CLIENT_ID"), os.Getenv("STRAVA_CLIENT_SECRET"), appHTTP),
		Spotify: spotify.NewAppClient(
			os.Getenv("SPOTIFY_CLIENT_ID"), os.Getenv("SPOTIFY_CLIENT_SECRET"),
			svc.Config.SpotifyRedirectURI, appHTTP),
		Logger: logger.With("component", "webhook"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Group(handler.Routes)

	server := &http.Server{
		Addr:         svc.Config.HTTPAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "address", svc.Config.HTTPAddress)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
		// Dispatched correlation runs outlive their webhook request; wait
		// for them so an in-flight write-back is not dropped on SIGTERM.
		if err := handler.Drain(shutdownCtx); err != nil {
			logger.Warn("Exiting with correlation runs still in flight", "error", err)
		}
	}
}

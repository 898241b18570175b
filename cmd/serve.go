package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/projector/internal/server"
	"github.com/desertthunder/projector/internal/services"
	"github.com/desertthunder/projector/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

// Serve runs the relay HTTP server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		config = loaded
	}

	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = port
	}

	// Fail fast on missing credentials instead of surfacing an opaque
	// upstream error on the first login attempt.
	if err := config.Credentials.Spotify.Validate(); err != nil {
		return err
	}

	spotify := r.spotify
	if spotify == nil || config != r.config {
		built, err := services.NewSpotifyService(config.Credentials.Spotify, nil, r.logger)
		if err != nil {
			return err
		}
		spotify = built
	}

	sessions := server.NewSessionStore()
	router := server.NewBasicRouter()

	router.Use(
		server.Logging(r.logger),
		server.RateLimit(rate.NewLimiter(rate.Limit(config.Server.RateLimit), config.Server.RateBurst)),
	)
	router.Handler(server.NewAuthHandler(spotify, sessions, r.logger))
	router.Handler(server.NewPlayerHandler(spotify, sessions, r.logger))
	router.Handler(server.NewSiteHandler(r.logger))

	httpServer := &http.Server{
		Addr:              config.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("relay listening at http://%s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/pkordes/tripbot/internal/cache"
	"github.com/pkordes/tripbot/internal/codec"
	"github.com/pkordes/tripbot/internal/config"
	"github.com/pkordes/tripbot/internal/discord"
	"github.com/pkordes/tripbot/internal/domain"
	"github.com/pkordes/tripbot/internal/handler"
	"github.com/pkordes/tripbot/internal/logging"
	"github.com/pkordes/tripbot/internal/metrics"
	"github.com/pkordes/tripbot/internal/middleware"
	"github.com/pkordes/tripbot/internal/recovery"
	"github.com/pkordes/tripbot/internal/service"
)

// detachedTaskTimeout bounds one detached platform call, on top of any
// delay the task waits out first.
const detachedTaskTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Rebuild the trip cache and serve interactions",
		Long: `Rebuild the trip cache from pinned messages, then serve Discord
interactions over HTTP until interrupted.

Configuration is read from the environment; DISCORD_TOKEN and
DISCORD_PUBLIC_KEY are required.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe blocks until ctx is cancelled, then shuts down gracefully.
func runServe(ctx context.Context) error {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// --- Logger -----------------------------------------------------------
	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.New()

	// --- Discord ----------------------------------------------------------
	client, err := discord.NewClient(discord.ClientConfig{
		Token:   cfg.DiscordToken,
		BaseURL: cfg.DiscordAPIURL,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create discord client: %w", err)
	}

	// --- Trip cache -------------------------------------------------------
	// The pinned messages are the only durable state; rebuild the cache from
	// them before accepting commands. A failed crawl leaves the cache empty
	// and the bot still starts.
	trips := cache.New()
	tripCodec := codec.New(domain.NewRoster(cfg.PartyAName, cfg.PartyBName))

	crawlCtx, cancelCrawl := context.WithTimeout(ctx, cfg.CrawlTimeout)
	recovery.New(client, trips, tripCodec, recovery.Config{
		Concurrency: cfg.CrawlConcurrency,
		Logger:      logger,
		Metrics:     m,
	}).Run(crawlCtx)
	cancelCrawl()

	// --- Services ---------------------------------------------------------
	background := service.NewBackground(logger, m, cfg.ArchiveDelay+detachedTaskTimeout)
	tripService := service.NewTripService(trips, client, tripCodec, background, service.Options{
		PlansChannel:       cfg.PlansChannel,
		AutoArchiveMinutes: cfg.AutoArchiveMinutes,
		ArchiveDelay:       cfg.ArchiveDelay,
		Logger:             logger,
		Metrics:            m,
	})
	server := handler.NewServer(tripService, client, background, logger, m)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer.
	// The interactions route additionally bounds the body and checks
	// Discord's signature before the handler decodes anything.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", server.GetHealth)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.With(
		middleware.NewMaxBodySizeHandler(middleware.DefaultMaxBodySize),
		middleware.NewSignatureVerifier(cfg.PublicKey, logger),
	).Post("/interactions", server.HandleInteraction)

	// --- HTTP Server ------------------------------------------------------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown: wait for a signal, then give in-flight requests
	// and detached tasks up to 15 seconds to complete.
	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := background.Shutdown(shutdownCtx); err != nil {
		logger.Warn("detached tasks cancelled at shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tikozap/backend/internal/ai"
	"github.com/tikozap/backend/internal/cache"
	"github.com/tikozap/backend/internal/config"
	"github.com/tikozap/backend/internal/db"
	httpapi "github.com/tikozap/backend/internal/http"
)

// @title TikoZap Support API
// @version 1.0
// @description Intent routing, reply generation and quality scoring for storefront support.
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", "tikozap-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	var generator ai.Generator
	switch {
	case cfg.AssistantBaseURL != "":
		generator = ai.OpenAICompatGenerator{
			BaseURL:   cfg.AssistantBaseURL,
			Model:     cfg.AssistantModel,
			APIKey:    cfg.AssistantAPIKey,
			MaxTokens: cfg.AssistantMaxTokens,
		}
		logger.Info().Str("model", cfg.AssistantModel).Msg("using chat completions generator")
	case cfg.AIURL != "":
		generator = ai.HTTPGenerator{BaseURL: cfg.AIURL}
	default:
		generator = ai.MockGenerator{ModelVersion: "mock-v1"}
		logger.Info().Msg("using mock generator")
	}

	dedupe := cache.NewMemoryDedupe(cfg.DedupeTTL)
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using in-memory dedupe")
		} else {
			dedupe = cache.NewRedisDedupe(client, cfg.DedupeTTL)
		}
	}

	var handler http.Handler = httpapi.Router(cfg, store, generator, dedupe, logger)
	if cfg.RequestTimeout > 0 {
		handler = http.TimeoutHandler(handler, cfg.RequestTimeout, `{"error":{"code":"TIMEOUT","message":"Request timed out","details":null}}`)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

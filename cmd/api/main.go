package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-studio/internal/api"
	"media-studio/internal/config"
	"media-studio/internal/generation"
	"media-studio/internal/logging"
	"media-studio/internal/queue"
	"media-studio/internal/ratelimit"
	"media-studio/internal/storage"
	"media-studio/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env, "api")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	objects, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init object storage")
	}

	rdb := queue.NewClient(cfg)
	defer rdb.Close()
	q := queue.NewRedisQueue(rdb, cfg)
	limiter := ratelimit.NewTokenBucket(rdb, "rl:generate:", cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	server := api.New(cfg, api.Deps{
		Jobs:      st,
		Templates: st,
		Queue:     q,
		Limiter:   limiter,
		Objects:   objects,
		Generator: generation.NewSimulated(cfg.GenerationModel, cfg.GenerationDelay),
		Logger:    log,
		Health: func(ctx context.Context) error {
			if err := st.Ping(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"media-studio/internal/config"
	"media-studio/internal/generation"
	"media-studio/internal/logging"
	"media-studio/internal/queue"
	"media-studio/internal/storage"
	"media-studio/internal/store"
	"media-studio/internal/telemetry"
	"media-studio/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env, "worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
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

	workerID := os.Getenv("WORKER_ID")
	if workerID == "" {
		if hostname, _ := os.Hostname(); hostname != "" {
			workerID = hostname
		} else {
			workerID = fmt.Sprintf("worker-%d", os.Getpid())
		}
	}

	processor := worker.NewProcessor(cfg, worker.Deps{
		Queue:     queue.NewRedisQueue(rdb, cfg),
		Store:     st,
		Objects:   objects,
		Generator: generation.NewSimulated(cfg.GenerationModel, cfg.GenerationDelay),
		Logger:    log,
	}, workerID)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	log.Info().
		Str("worker_id", workerID).
		Dur("visibility", cfg.VisibilityTimeout).
		Dur("backoff_initial", cfg.BackoffInitial).
		Msg("worker started")
	if err := processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker stopped")
	}
}

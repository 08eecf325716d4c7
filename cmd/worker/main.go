package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"trend-launch/internal/app"
	"trend-launch/internal/infra/config"
	applog "trend-launch/internal/infra/log"
	"trend-launch/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "worker")
	log.Logger = logger

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: инициализация")
	}
	defer rt.Close()
	if rt.InProcess {
		log.Fatal().Msg("worker: без PG_DSN очередь недоступна другим процессам, используйте cmd/api")
	}

	svc, err := rt.Services()
	if err != nil {
		log.Fatal().Err(err).Msg("worker: сервисы")
	}
	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	log.Info().Int("workers", cfg.Queue.Workers).Str("queue", cfg.Queue.Backend).Msg("worker: старт")
	if err := rt.Worker(svc).Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker: остановлен с ошибкой")
	}
}

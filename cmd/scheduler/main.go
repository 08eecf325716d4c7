package main

import (
	"context"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"trend-launch/internal/app"
	"trend-launch/internal/infra/config"
	applog "trend-launch/internal/infra/log"
	"trend-launch/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "scheduler")
	log.Logger = logger

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: инициализация")
	}
	defer rt.Close()
	if rt.InProcess {
		log.Fatal().Msg("scheduler: без PG_DSN данные недоступны другим процессам, используйте cmd/api")
	}

	svc, err := rt.Services()
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: сервисы")
	}
	source, err := rt.TrendSource()
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: источник трендов")
	}
	scheduler, err := rt.Scheduler(svc, source)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: расписание")
	}
	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	if err := scheduler.Run(ctx); err != nil {
		log.Error().Err(err).Msg("scheduler: остановлен с ошибкой")
	}
}

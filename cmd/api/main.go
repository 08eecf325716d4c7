package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"trend-launch/internal/app"
	"trend-launch/internal/infra/config"
	httpinfra "trend-launch/internal/infra/http"
	applog "trend-launch/internal/infra/log"
	"trend-launch/internal/infra/metrics"
	"trend-launch/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "api")
	log.Logger = logger

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("api: инициализация")
	}
	defer rt.Close()

	svc, err := rt.Services()
	if err != nil {
		log.Fatal().Err(err).Msg("api: сервисы")
	}

	var scheduler *schedule.Scheduler
	if rt.InProcess {
		if scheduler, err = rt.Scheduler(svc, nil); err != nil {
			log.Fatal().Err(err).Msg("api: планировщик")
		}
	}

	server := httpinfra.NewServer(logger)
	httpinfra.NewAPI(httpinfra.Services{
		Trends:            svc.Trends,
		Shortlist:         svc.Shortlist,
		Launches:          svc.Launches,
		Assets:            svc.Assets,
		TestStreams:       svc.TestStreams,
		Readiness:         svc.Readiness,
		Hosts:             svc.Hosts,
		Shows:             svc.Shows,
		Profit:            svc.Profit,
		Jobs:              rt.Jobs,
		ShortlistMinScore: cfg.Shortlist.MinScore,
	}, logger).Mount(server.Router)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("api: старт")
		return server.Start(cfg.HTTPAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("api: остановка")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	// Без Postgres очередь и отметки живут в памяти, поэтому исполнитель и планировщик работают здесь же.
	if rt.InProcess {
		worker := rt.Worker(svc)
		g.Go(func() error { return worker.Run(gctx) })
		g.Go(func() error { return scheduler.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("api: завершено с ошибкой")
	}
}

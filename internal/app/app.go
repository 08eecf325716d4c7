// Package app собирает зависимости конвейера по конфигурации для всех бинарей.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trend-launch/internal/adapters/broadcast"
	"trend-launch/internal/adapters/contentgen"
	"trend-launch/internal/adapters/health"
	"trend-launch/internal/adapters/memstore"
	"trend-launch/internal/adapters/notifier"
	"trend-launch/internal/adapters/repo"
	"trend-launch/internal/adapters/trendsource"
	"trend-launch/internal/domain"
	"trend-launch/internal/infra/cache"
	"trend-launch/internal/infra/config"
	"trend-launch/internal/infra/db"
	"trend-launch/internal/infra/events"
	"trend-launch/internal/infra/lock"
	"trend-launch/internal/infra/openai"
	"trend-launch/internal/infra/queue"
	"trend-launch/internal/usecase/assets"
	"trend-launch/internal/usecase/hosts"
	"trend-launch/internal/usecase/jobs"
	"trend-launch/internal/usecase/launch"
	"trend-launch/internal/usecase/liveshow"
	"trend-launch/internal/usecase/profit"
	"trend-launch/internal/usecase/readiness"
	"trend-launch/internal/usecase/schedule"
	"trend-launch/internal/usecase/shortlist"
	"trend-launch/internal/usecase/teststream"
	"trend-launch/internal/usecase/trends"
)

const lockWait = 5 * time.Second

// Store — все репозитории конвейера.
type Store interface {
	domain.TrendRepo
	domain.ShortlistRepo
	domain.LaunchRepo
	domain.AssetPackRepo
	domain.TestStreamRepo
	domain.ReadinessRepo
	domain.HostRepo
	domain.LiveShowRepo
	domain.ProfitRepo
}

// Runtime — общая инфраструктура процесса.
type Runtime struct {
	Cfg      config.AppConfig
	Log      zerolog.Logger
	Store    Store
	Jobs     domain.JobQueue
	Locker   domain.Locker
	Events   domain.EventPublisher
	Notifier domain.Notifier
	Marks    schedule.Marks
	Clock    domain.Clock
	// InProcess — без Postgres всё живёт в памяти одного процесса.
	InProcess bool

	closers []func()
}

// Open подключает хранилище, очередь, блокировки, события и уведомления.
func Open(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{Cfg: cfg, Log: logger, Clock: domain.SystemClock{}}

	var pool *pgxpool.Pool
	if cfg.PGDSN == "" {
		if cfg.AppEnv != "dev" {
			return nil, fmt.Errorf("PG_DSN обязателен при APP_ENV=%s", cfg.AppEnv)
		}
		logger.Warn().Msg("app: PG_DSN не задан, данные хранятся в памяти")
		rt.Store = memstore.New()
		rt.InProcess = true
	} else {
		var err error
		pool, err = db.Connect(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, fmt.Errorf("подключение к БД: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		if err := db.Migrate(ctx, pool); err != nil {
			rt.Close()
			return nil, fmt.Errorf("миграции: %w", err)
		}
		rt.Store = repo.NewPostgres(pool)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			rt.Close()
			return nil, fmt.Errorf("подключение к redis: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		rt.Locker = lock.NewRedisLocker(rdb, "launch:lock:", cfg.LockTTL, lockWait)
		rt.Marks = cache.NewRedis(rdb, "launch:scheduler:")
	} else {
		rt.Locker = lock.NewMemoryLocker(lockWait)
		rt.Marks = cache.NewMemory()
	}

	jobs, err := openQueue(cfg, pool, rdb, rt.Clock, rt.InProcess)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Jobs = jobs

	if cfg.Events.RabbitURL != "" {
		pub, err := events.NewRabbitPublisher(cfg.Events.RabbitURL, cfg.Events.Exchange)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("подключение к rabbitmq: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = pub.Close() })
		rt.Events = pub
	} else {
		rt.Events = events.NewLogPublisher(logger)
	}

	if cfg.Alerts.BotToken != "" {
		tg, err := notifier.NewTelegram(cfg.Alerts.BotToken, cfg.Alerts.ChatID, logger)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("telegram бот: %w", err)
		}
		rt.Notifier = tg
	} else {
		rt.Notifier = notifier.NewLog(logger)
	}
	return rt, nil
}

func openQueue(cfg config.AppConfig, pool *pgxpool.Pool, rdb *redis.Client, clock domain.Clock, inProcess bool) (domain.JobQueue, error) {
	if inProcess {
		return queue.NewMemoryJobQueue(clock), nil
	}
	switch cfg.Queue.Backend {
	case "postgres":
		return queue.NewPostgresJobQueue(pool, clock), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("QUEUE_BACKEND=redis требует REDIS_ADDR")
		}
		return queue.NewRedisJobQueue(rdb, cfg.Queue.Key, clock), nil
	case "memory":
		return queue.NewMemoryJobQueue(clock), nil
	default:
		return nil, fmt.Errorf("неизвестный QUEUE_BACKEND %q", cfg.Queue.Backend)
	}
}

// Close освобождает подключения в обратном порядке.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// Services — сервисы конвейера поверх Runtime.
type Services struct {
	Trends      *trends.Service
	Shortlist   *shortlist.Service
	Launches    *launch.Service
	Assets      *assets.Service
	TestStreams *teststream.Service
	Readiness   *readiness.Service
	Hosts       *hosts.Service
	Shows       *liveshow.Service
	Profit      *profit.Service
}

// Services создаёт сервисы с внешними провайдерами из конфигурации.
func (rt *Runtime) Services() (Services, error) {
	cfg := rt.Cfg
	provider, err := rt.broadcastProvider()
	if err != nil {
		return Services{}, err
	}
	var generator domain.ContentGenerator = contentgen.NewTemplate()
	if cfg.OpenAI.APIKey != "" {
		generator = contentgen.NewOpenAI(openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.Timeout))
	} else {
		rt.Log.Warn().Msg("app: OPENAI_API_KEY не задан, сценарии строятся по шаблону")
	}
	var checker domain.HealthChecker = health.NewHTTP(health.Endpoints{
		Inventory: cfg.Health.InventoryURL,
		Payment:   cfg.Health.PaymentURL,
		Platform:  cfg.Health.PlatformURL,
	}, cfg.Health.Timeout)
	if rt.InProcess {
		checker = health.AllHealthy()
	}

	s := Services{}
	s.Trends = trends.NewService(rt.Store, rt.Locker, rt.Events, rt.Clock, rt.Log, cfg.Trends.DefaultAvailability)
	s.Shortlist = shortlist.NewService(rt.Store, rt.Store, rt.Locker, rt.Events, rt.Clock, rt.Log, cfg.Shortlist.Limit)
	s.Launches = launch.NewService(rt.Store, rt.Store, rt.Jobs, rt.Locker, rt.Events, rt.Clock, rt.Log)
	s.Assets = assets.NewService(rt.Store, rt.Store, generator, s.Launches, rt.Jobs, rt.Locker, rt.Clock, rt.Log, cfg.OpenAI.Timeout)
	s.TestStreams = teststream.NewService(rt.Store, rt.Store, rt.Store, provider, s.Launches, rt.Jobs, rt.Locker, rt.Clock, rt.Log)
	s.Readiness = readiness.NewService(readiness.Deps{
		Launches:  rt.Store,
		Packs:     rt.Store,
		Streams:   rt.Store,
		Hosts:     rt.Store,
		Readiness: rt.Store,
		Health:    checker,
		Advancer:  s.Launches,
		Locker:    rt.Locker,
		Notifier:  rt.Notifier,
		Events:    rt.Events,
		Clock:     rt.Clock,
		Log:       rt.Log,
	}, cfg.Readiness.StaleAfter)
	s.Hosts = hosts.NewService(rt.Store, rt.Store, rt.Store, rt.Store, rt.Locker, rt.Clock, rt.Log)
	s.Shows = liveshow.NewService(rt.Store, rt.Store, rt.Store, s.Readiness, provider, s.Launches, rt.Jobs, rt.Locker, rt.Clock, rt.Log)
	s.Profit = profit.NewService(rt.Store, rt.Store, rt.Store, rt.Store, rt.Locker, rt.Notifier, rt.Events, rt.Clock, rt.Log, profit.Rates{
		MarketingRate:   cfg.Profit.MarketingRate,
		RefundRate:      cfg.Profit.RefundRate,
		MarginThreshold: cfg.Profit.MarginThreshold,
	})
	return s, nil
}

func (rt *Runtime) broadcastProvider() (domain.BroadcastProvider, error) {
	if rt.Cfg.Broadcast.BaseURL == "" {
		rt.Log.Warn().Msg("app: BROADCAST_BASE_URL не задан, используется заглушка вещания")
		return broadcast.NewStub(), nil
	}
	client, err := broadcast.NewClient(broadcast.Config{
		BaseURL: rt.Cfg.Broadcast.BaseURL,
		Token:   rt.Cfg.Broadcast.Token,
		Timeout: rt.Cfg.Broadcast.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("клиент вещания: %w", err)
	}
	return client, nil
}

// TrendSource возвращает коллектор Telegram-каналов или nil, если MTProto не настроен.
func (rt *Runtime) TrendSource() (domain.TrendSource, error) {
	cfg := rt.Cfg
	if cfg.MTProto.APIID == 0 || cfg.MTProto.APIHash == "" || len(cfg.Trends.Channels) == 0 {
		rt.Log.Warn().Msg("app: MTProto или TREND_CHANNELS не заданы, сбор трендов выключен")
		return nil, nil
	}
	source, err := trendsource.NewTelegram(cfg.MTProto.APIID, cfg.MTProto.APIHash, cfg.MTProto.SessionFile, cfg.Trends.Channels, rt.Log)
	if err != nil {
		return nil, fmt.Errorf("источник трендов: %w", err)
	}
	return source, nil
}

// Worker создаёт пул исполнителей со всеми обработчиками конвейера.
func (rt *Runtime) Worker(s Services) *jobs.Worker {
	w := jobs.NewWorker(rt.Jobs, rt.Store, rt.Notifier, rt.Log, jobs.Options{
		Workers:      rt.Cfg.Queue.Workers,
		JobTimeout:   rt.Cfg.Queue.JobTimeout,
		PollInterval: rt.Cfg.Queue.PollInterval,
	})
	jobs.RegisterPipeline(w, jobs.Services{
		Assets:      s.Assets,
		TestStreams: s.TestStreams,
		Shows:       s.Shows,
		Profit:      s.Profit,
		Hosts:       s.Hosts,
	})
	return w
}

// Scheduler создаёт планировщик периодических шагов.
func (rt *Runtime) Scheduler(s Services, source domain.TrendSource) (*schedule.Scheduler, error) {
	cfg := rt.Cfg
	return schedule.NewScheduler(s.Trends, source, s.Shortlist, s.Shows, rt.Marks, rt.Clock, rt.Log, schedule.Options{
		ShortlistHour:     cfg.Shortlist.Hour,
		Timezone:          cfg.Shortlist.Timezone,
		MinScore:          cfg.Shortlist.MinScore,
		TrendPollInterval: cfg.Trends.PollInterval,
		LiveSyncInterval:  cfg.Live.SyncInterval,
	})
}

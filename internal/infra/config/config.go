package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов конвейера.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"10"`

	RedisAddr string        `envconfig:"REDIS_ADDR"`
	LockTTL   time.Duration `envconfig:"LOCK_TTL" default:"1m"`

	Events struct {
		RabbitURL string `envconfig:"RABBITMQ_URL"`
		Exchange  string `envconfig:"EVENTS_EXCHANGE" default:"launch.events"`
	} `envconfig:""`

	Queue struct {
		Backend      string        `envconfig:"QUEUE_BACKEND" default:"postgres"`
		Key          string        `envconfig:"QUEUE_KEY" default:"launch_jobs"`
		Workers      int           `envconfig:"WORKER_COUNT" default:"4"`
		JobTimeout   time.Duration `envconfig:"JOB_TIMEOUT" default:"2m"`
		PollInterval time.Duration `envconfig:"JOB_POLL_INTERVAL" default:"1s"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Broadcast struct {
		BaseURL string        `envconfig:"BROADCAST_BASE_URL"`
		Token   string        `envconfig:"BROADCAST_TOKEN"`
		Timeout time.Duration `envconfig:"BROADCAST_TIMEOUT" default:"15s"`
	} `envconfig:""`

	Alerts struct {
		BotToken string `envconfig:"ALERT_BOT_TOKEN"`
		ChatID   int64  `envconfig:"ALERT_CHAT_ID"`
	} `envconfig:""`

	MTProto struct {
		APIID       int    `envconfig:"MTPROTO_API_ID"`
		APIHash     string `envconfig:"MTPROTO_API_HASH"`
		SessionFile string `envconfig:"MTPROTO_SESSION_FILE" default:"mtproto.session"`
	} `envconfig:""`

	Trends struct {
		Channels            []string      `envconfig:"TREND_CHANNELS"`
		PollInterval        time.Duration `envconfig:"TREND_POLL_INTERVAL" default:"15m"`
		DefaultAvailability int           `envconfig:"TREND_DEFAULT_AVAILABILITY" default:"50"`
	} `envconfig:""`

	Shortlist struct {
		Limit    int    `envconfig:"SHORTLIST_LIMIT" default:"10"`
		MinScore int    `envconfig:"SHORTLIST_MIN_SCORE" default:"70"`
		Hour     int    `envconfig:"SHORTLIST_HOUR" default:"6"`
		Timezone string `envconfig:"SHORTLIST_TIMEZONE" default:"UTC"`
	} `envconfig:""`

	Live struct {
		SyncInterval time.Duration `envconfig:"LIVE_SYNC_INTERVAL" default:"30s"`
	} `envconfig:""`

	Readiness struct {
		StaleAfter time.Duration `envconfig:"READINESS_STALE_AFTER" default:"120m"`
	} `envconfig:""`

	Profit struct {
		MarketingRate   float64 `envconfig:"PROFIT_MARKETING_RATE" default:"0.10"`
		RefundRate      float64 `envconfig:"PROFIT_REFUND_RATE" default:"0.05"`
		MarginThreshold float64 `envconfig:"PROFIT_MARGIN_THRESHOLD" default:"20"`
	} `envconfig:""`

	Health struct {
		InventoryURL string        `envconfig:"HEALTH_INVENTORY_URL"`
		PaymentURL   string        `envconfig:"HEALTH_PAYMENT_URL"`
		PlatformURL  string        `envconfig:"HEALTH_PLATFORM_URL"`
		Timeout      time.Duration `envconfig:"HEALTH_TIMEOUT" default:"5s"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Package schedule запускает периодические шаги конвейера: сбор трендов, дневной шортлист и синхронизацию эфиров.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

const (
	trendCursorKey    = "trends:cursor"
	shortlistKeyTTL   = 48 * time.Hour
	firstPollLookback = 24 * time.Hour
)

// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
var ErrInvalidTimezone = errors.New("invalid timezone")

// TrendCollector принимает сигналы из источника.
type TrendCollector interface {
	Collect(ctx context.Context, source domain.TrendSource, since time.Time) (int, error)
}

// ShortlistGenerator строит дневной шортлист.
type ShortlistGenerator interface {
	Generate(ctx context.Context, minScore int) (domain.DailyShortlist, error)
}

// LiveSyncer обновляет метрики идущих эфиров.
type LiveSyncer interface {
	SyncAllLive(ctx context.Context) (int, error)
}

// Marks хранит отметки планировщика, общие для реплик.
type Marks interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
	SetTime(ctx context.Context, key string, t time.Time) error
	GetTime(ctx context.Context, key string) (time.Time, error)
}

// Options задаёт расписание.
type Options struct {
	ShortlistHour     int
	Timezone          string
	MinScore          int
	TrendPollInterval time.Duration
	LiveSyncInterval  time.Duration
}

// Scheduler ведёт периодические задачи конвейера.
type Scheduler struct {
	trends    TrendCollector
	source    domain.TrendSource
	shortlist ShortlistGenerator
	live      LiveSyncer
	marks     Marks
	clock     domain.Clock
	loc       *time.Location
	opts      Options
	log       zerolog.Logger
}

// NewScheduler создаёт планировщик. source может быть nil — тогда сбор трендов выключен.
func NewScheduler(trends TrendCollector, source domain.TrendSource, shortlist ShortlistGenerator, live LiveSyncer, marks Marks, clock domain.Clock, logger zerolog.Logger, opts Options) (*Scheduler, error) {
	tz, err := normalizeTimezone(opts.Timezone)
	if err != nil {
		return nil, fmt.Errorf("часовой пояс %q: %w", opts.Timezone, err)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("часовой пояс %q: %w", tz, err)
	}
	if opts.ShortlistHour < 0 || opts.ShortlistHour > 23 {
		return nil, fmt.Errorf("час шортлиста %d вне диапазона 0..23", opts.ShortlistHour)
	}
	if opts.TrendPollInterval <= 0 {
		opts.TrendPollInterval = 15 * time.Minute
	}
	if opts.LiveSyncInterval <= 0 {
		opts.LiveSyncInterval = 30 * time.Second
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Scheduler{
		trends:    trends,
		source:    source,
		shortlist: shortlist,
		live:      live,
		marks:     marks,
		clock:     clock,
		loc:       loc,
		opts:      opts,
		log:       logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// PollTrends собирает сигналы с момента прошлого успешного сбора.
func (s *Scheduler) PollTrends(ctx context.Context) (int, error) {
	if s.source == nil {
		return 0, nil
	}
	started := s.clock.Now()
	since, err := s.marks.GetTime(ctx, trendCursorKey)
	if err != nil {
		return 0, fmt.Errorf("курсор трендов: %w", err)
	}
	if since.IsZero() {
		since = started.Add(-firstPollLookback)
	}
	n, err := s.trends.Collect(ctx, s.source, since)
	metrics.ObserveJob("poll_trends", status(err), s.clock.Now().Sub(started))
	if err != nil {
		return n, err
	}
	if err := s.marks.SetTime(ctx, trendCursorKey, started); err != nil {
		return n, fmt.Errorf("сохранение курсора трендов: %w", err)
	}
	return n, nil
}

// DailyShortlist строит шортлист один раз за локальные сутки, начиная с заданного часа.
// Возвращает true, если шортлист строился в этом вызове.
func (s *Scheduler) DailyShortlist(ctx context.Context) (bool, error) {
	local := s.clock.Now().In(s.loc)
	if local.Hour() < s.opts.ShortlistHour {
		return false, nil
	}
	key := "shortlist:" + local.Format("2006-01-02")
	return s.marks.Once(ctx, key, shortlistKeyTTL, func(ctx context.Context) error {
		started := s.clock.Now()
		list, err := s.shortlist.Generate(ctx, s.opts.MinScore)
		if errors.Is(err, domain.ErrEmptyShortlist) {
			metrics.ObserveJob("daily_shortlist", "empty", s.clock.Now().Sub(started))
			s.log.Info().Str("date", local.Format("2006-01-02")).Msg("scheduler: нет кандидатов для шортлиста")
			return nil
		}
		metrics.ObserveJob("daily_shortlist", status(err), s.clock.Now().Sub(started))
		if err != nil {
			return fmt.Errorf("дневной шортлист: %w", err)
		}
		s.log.Info().Str("shortlist_id", list.ID).Int("entries", len(list.Entries)).Msg("scheduler: шортлист построен")
		return nil
	})
}

// SyncLive обновляет зрителей идущих эфиров.
func (s *Scheduler) SyncLive(ctx context.Context) (int, error) {
	started := s.clock.Now()
	n, err := s.live.SyncAllLive(ctx)
	metrics.ObserveJob("sync_live", status(err), s.clock.Now().Sub(started))
	return n, err
}

// Run крутит расписание до отмены контекста.
func (s *Scheduler) Run(ctx context.Context) error {
	trendTicker := time.NewTicker(s.opts.TrendPollInterval)
	defer trendTicker.Stop()
	shortlistTicker := time.NewTicker(time.Minute)
	defer shortlistTicker.Stop()
	liveTicker := time.NewTicker(s.opts.LiveSyncInterval)
	defer liveTicker.Stop()

	s.log.Info().Int("shortlist_hour", s.opts.ShortlistHour).Str("tz", s.loc.String()).Msg("scheduler: запущен")
	s.pollTrends(ctx)
	s.dailyShortlist(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler: остановлен")
			return nil
		case <-trendTicker.C:
			s.pollTrends(ctx)
		case <-shortlistTicker.C:
			s.dailyShortlist(ctx)
		case <-liveTicker.C:
			if _, err := s.SyncLive(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduler: синхронизация эфиров")
			}
		}
	}
}

func (s *Scheduler) pollTrends(ctx context.Context) {
	if n, err := s.PollTrends(ctx); err != nil {
		s.log.Error().Err(err).Int("ingested", n).Msg("scheduler: сбор трендов")
	}
}

func (s *Scheduler) dailyShortlist(ctx context.Context) {
	if _, err := s.DailyShortlist(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduler: шортлист")
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func normalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "UTC", nil
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	lower := strings.ToLower(candidate)
	parts := strings.Split(lower, "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	return "", ErrInvalidTimezone
}

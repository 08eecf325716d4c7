package shortlist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

// DefaultLimit — размер шортлиста по умолчанию.
const DefaultLimit = 10

// DefaultMinScore — порог общей оценки по умолчанию.
const DefaultMinScore = 70

const lockKey = "shortlist"

// Service строит ежедневный шортлист из проанализированных трендов.
type Service struct {
	trends     domain.TrendRepo
	shortlists domain.ShortlistRepo
	locker     domain.Locker
	events     domain.EventPublisher
	clock      domain.Clock
	log        zerolog.Logger
	limit      int
}

// NewService создаёт генератор шортлиста.
func NewService(trends domain.TrendRepo, shortlists domain.ShortlistRepo, locker domain.Locker, events domain.EventPublisher, clock domain.Clock, logger zerolog.Logger, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if events == nil {
		events = domain.NopPublisher{}
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Service{
		trends:     trends,
		shortlists: shortlists,
		locker:     locker,
		events:     events,
		clock:      clock,
		log:        logger.With().Str("component", "shortlist").Logger(),
		limit:      limit,
	}
}

// Generate отбирает лучшие тренды в статусе ANALYZING с оценкой не ниже minScore,
// присваивает ранги 1..N и фиксирует снимок вместе со сменой статусов.
func (s *Service) Generate(ctx context.Context, minScore int) (domain.DailyShortlist, error) {
	if minScore < 0 || minScore > 100 {
		return domain.DailyShortlist{}, domain.Validationf("min score must be within [0,100]")
	}
	release, err := s.locker.Acquire(ctx, lockKey)
	if err != nil {
		return domain.DailyShortlist{}, err
	}
	defer release()

	candidates, err := s.trends.ListTrends(ctx, domain.TrendFilter{
		Status:   domain.TrendStatusAnalyzing,
		MinScore: minScore,
		Limit:    s.limit,
	})
	if err != nil {
		return domain.DailyShortlist{}, fmt.Errorf("выборка кандидатов: %w", err)
	}
	if len(candidates) == 0 {
		return domain.DailyShortlist{}, domain.ErrEmptyShortlist
	}

	now := s.clock.Now()
	shortlist := domain.DailyShortlist{
		ID:        uuid.NewString(),
		Date:      now.Truncate(24 * time.Hour),
		MinScore:  minScore,
		Entries:   make([]domain.ShortlistEntry, 0, len(candidates)),
		CreatedAt: now,
	}
	for i := range candidates {
		rank := i + 1
		candidates[i].Rank = &rank
		candidates[i].Status = domain.TrendStatusShortlisted
		candidates[i].UpdatedAt = now
		shortlist.Entries = append(shortlist.Entries, domain.ShortlistEntry{
			Rank:              rank,
			TrendProductID:    candidates[i].ID,
			Name:              candidates[i].Name,
			OverallScore:      candidates[i].OverallScore,
			ProfitMarginCents: candidates[i].ProfitMarginCents,
			MarginPercent:     candidates[i].MarginPercent,
		})
	}
	if err := s.shortlists.CommitShortlist(ctx, shortlist, candidates); err != nil {
		return domain.DailyShortlist{}, fmt.Errorf("фиксация шортлиста: %w", err)
	}

	metrics.ShortlistSize.Set(float64(len(shortlist.Entries)))
	if err := s.events.Publish(ctx, domain.PipelineEvent{
		Event:      domain.EventShortlistGenerated,
		EntityID:   shortlist.ID,
		Metadata:   map[string]any{"size": len(shortlist.Entries), "min_score": minScore},
		OccurredAt: now,
	}); err != nil {
		s.log.Warn().Err(err).Msg("shortlist: не удалось опубликовать событие")
	}
	s.log.Info().Int("size", len(shortlist.Entries)).Int("min_score", minScore).Msg("shortlist: шортлист построен")
	return shortlist, nil
}

// Latest возвращает последний зафиксированный шортлист.
func (s *Service) Latest(ctx context.Context) (domain.DailyShortlist, error) {
	latest, err := s.shortlists.LatestShortlist(ctx)
	if err != nil {
		return domain.DailyShortlist{}, fmt.Errorf("получение шортлиста: %w", err)
	}
	return latest, nil
}

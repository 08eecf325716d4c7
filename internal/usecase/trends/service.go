package trends

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
	"trend-launch/internal/usecase/scoring"
)

// Service ведёт каталог трендовых продуктов.
type Service struct {
	repo         domain.TrendRepo
	locker       domain.Locker
	events       domain.EventPublisher
	clock        domain.Clock
	log          zerolog.Logger
	availability int
}

// NewService создаёт каталог. availability — оценка доступности до появления данных аналитика.
func NewService(repo domain.TrendRepo, locker domain.Locker, events domain.EventPublisher, clock domain.Clock, logger zerolog.Logger, availability int) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if availability <= 0 {
		availability = scoring.DefaultAvailabilityScore
	}
	return &Service{
		repo:         repo,
		locker:       locker,
		events:       events,
		clock:        clock,
		log:          logger.With().Str("component", "trends").Logger(),
		availability: scoring.Clamp(availability),
	}
}

func validateFacts(f domain.TrendFacts) error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return domain.Validationf("name is required")
	case strings.TrimSpace(f.Source) == "":
		return domain.Validationf("source is required")
	case strings.TrimSpace(f.SourceURL) == "":
		return domain.Validationf("source url is required")
	case f.Views < 0 || f.Likes < 0 || f.Comments < 0 || f.Shares < 0:
		return domain.Validationf("engagement counters must be non-negative")
	case f.SourceCostCents < 0 || f.SuggestedPriceCents < 0:
		return domain.Validationf("costs must be non-negative")
	}
	return nil
}

// Ingest принимает сигнал о тренде и сразу считает оценки. Повторный URL обновляет счётчики без смены статуса.
func (s *Service) Ingest(ctx context.Context, facts domain.TrendFacts) (domain.TrendProduct, error) {
	if err := validateFacts(facts); err != nil {
		return domain.TrendProduct{}, err
	}
	facts.Name = strings.TrimSpace(facts.Name)
	facts.SourceURL = strings.TrimSpace(facts.SourceURL)

	release, err := s.locker.Acquire(ctx, "trend-url:"+facts.SourceURL)
	if err != nil {
		return domain.TrendProduct{}, err
	}
	defer release()

	now := s.clock.Now()
	known, err := s.repo.GetTrendByURL(ctx, facts.SourceURL)
	switch {
	case err == nil:
		return s.refresh(ctx, known.ID, facts, now)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.TrendProduct{}, fmt.Errorf("поиск тренда по url: %w", err)
	}

	trend := domain.TrendProduct{
		ID:                uuid.NewString(),
		TrendFacts:        facts,
		AvailabilityScore: s.availability,
		Status:            domain.TrendStatusAnalyzing,
		DiscoveredAt:      now,
		UpdatedAt:         now,
	}
	rescore(&trend, nil)
	if err := s.repo.CreateTrend(ctx, trend); err != nil {
		return domain.TrendProduct{}, fmt.Errorf("сохранение тренда: %w", err)
	}
	metrics.TrendsIngested.WithLabelValues(trend.Source).Inc()
	s.publish(ctx, domain.PipelineEvent{
		Event:    domain.EventTrendIngested,
		EntityID: trend.ID,
		Metadata: map[string]any{"overall_score": trend.OverallScore, "source": trend.Source},
	})
	s.log.Info().Str("trend_id", trend.ID).Str("name", trend.Name).Int("score", trend.OverallScore).Msg("trends: новый тренд")
	return trend, nil
}

// refresh обновляет счётчики известного тренда под блокировкой тренда, сохраняя его текущий статус.
func (s *Service) refresh(ctx context.Context, id string, facts domain.TrendFacts, now time.Time) (domain.TrendProduct, error) {
	release, err := s.locker.Acquire(ctx, "trend:"+id)
	if err != nil {
		return domain.TrendProduct{}, err
	}
	defer release()

	existing, err := s.repo.GetTrend(ctx, id)
	if err != nil {
		return domain.TrendProduct{}, fmt.Errorf("получение тренда: %w", err)
	}
	existing.Views = facts.Views
	existing.Likes = facts.Likes
	existing.Comments = facts.Comments
	existing.Shares = facts.Shares
	if facts.SourceCostCents > 0 {
		existing.SourceCostCents = facts.SourceCostCents
	}
	if facts.SuggestedPriceCents > 0 {
		existing.SuggestedPriceCents = facts.SuggestedPriceCents
	}
	rescore(&existing, nil)
	existing.UpdatedAt = now
	if err := s.repo.UpdateTrendIfStatus(ctx, existing, existing.Status); err != nil {
		return domain.TrendProduct{}, fmt.Errorf("обновление тренда: %w", err)
	}
	s.log.Debug().Str("trend_id", existing.ID).Int("score", existing.OverallScore).Msg("trends: счётчики обновлены")
	return existing, nil
}

// rescore пересчитывает производные оценки. Без signals виральность и прибыльность считаются из фактов,
// иначе ненулевые сигналы заменяют прежние значения.
func rescore(t *domain.TrendProduct, signals *domain.ScoringSignals) {
	t.EngagementRate = scoring.EngagementRate(t.Views, t.Likes, t.Comments, t.Shares)
	margin := scoring.ProfitMargin(t.SourceCostCents, t.SuggestedPriceCents)
	t.ShippingCostCents = margin.ShippingCost
	t.ProfitMarginCents = margin.ProfitMargin
	t.MarginPercent = margin.MarginPercent

	if signals == nil {
		t.ViralityScore = scoring.Virality(t.Views, t.Likes, t.Comments, t.Shares)
		t.ProfitScore = scoring.ProfitScore(margin.MarginPercent)
	} else {
		if signals.Virality != nil {
			t.ViralityScore = scoring.Clamp(*signals.Virality)
		}
		if signals.Profit != nil {
			t.ProfitScore = scoring.Clamp(*signals.Profit)
		}
		if signals.Availability != nil {
			t.AvailabilityScore = scoring.Clamp(*signals.Availability)
		}
		if signals.Competition != nil {
			competition := scoring.Clamp(*signals.Competition)
			t.CompetitionScore = &competition
		}
	}

	if t.CompetitionScore != nil {
		t.OverallScore = scoring.AnalystOverallScore(t.ViralityScore, t.ProfitScore, t.AvailabilityScore, *t.CompetitionScore)
		return
	}
	t.OverallScore = scoring.OverallScore(t.ViralityScore, t.ProfitScore, t.AvailabilityScore)
}

// UpdateScoring применяет частичные оценки аналитика.
func (s *Service) UpdateScoring(ctx context.Context, id string, signals domain.ScoringSignals) (domain.TrendProduct, error) {
	release, err := s.locker.Acquire(ctx, "trend:"+id)
	if err != nil {
		return domain.TrendProduct{}, err
	}
	defer release()

	trend, err := s.repo.GetTrend(ctx, id)
	if err != nil {
		return domain.TrendProduct{}, fmt.Errorf("получение тренда: %w", err)
	}
	if trend.Status == domain.TrendStatusArchived || trend.Status == domain.TrendStatusRejected {
		return domain.TrendProduct{}, domain.Preconditionf("trend %s is %s", id, trend.Status)
	}
	rescore(&trend, &signals)
	trend.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateTrendIfStatus(ctx, trend, trend.Status); err != nil {
		return domain.TrendProduct{}, fmt.Errorf("сохранение оценок: %w", err)
	}
	return trend, nil
}

// Get возвращает тренд.
func (s *Service) Get(ctx context.Context, id string) (domain.TrendProduct, error) {
	trend, err := s.repo.GetTrend(ctx, id)
	if err != nil {
		return domain.TrendProduct{}, fmt.Errorf("получение тренда: %w", err)
	}
	return trend, nil
}

// List возвращает тренды по фильтру, отсортированные по убыванию оценки.
func (s *Service) List(ctx context.Context, filter domain.TrendFilter) ([]domain.TrendProduct, error) {
	if filter.Limit < 0 {
		return nil, domain.Validationf("limit must be non-negative")
	}
	out, err := s.repo.ListTrends(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("список трендов: %w", err)
	}
	return out, nil
}

// Archive мягко скрывает тренд. Повторный вызов ничего не меняет.
func (s *Service) Archive(ctx context.Context, id string) (domain.TrendProduct, error) {
	release, err := s.locker.Acquire(ctx, "trend:"+id)
	if err != nil {
		return domain.TrendProduct{}, err
	}
	defer release()

	trend, err := s.repo.GetTrend(ctx, id)
	if err != nil {
		return domain.TrendProduct{}, fmt.Errorf("получение тренда: %w", err)
	}
	if trend.Status == domain.TrendStatusArchived {
		return trend, nil
	}
	now := s.clock.Now()
	from := trend.Status
	trend.Status = domain.TrendStatusArchived
	trend.ArchivedAt = &now
	trend.UpdatedAt = now
	if err := s.repo.UpdateTrendIfStatus(ctx, trend, from); err != nil {
		return domain.TrendProduct{}, fmt.Errorf("архивация тренда: %w", err)
	}
	return trend, nil
}

// Reject отклоняет тренд из ANALYZING или SHORTLISTED.
func (s *Service) Reject(ctx context.Context, id, reason string) (domain.TrendProduct, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.TrendProduct{}, domain.Validationf("reject reason is required")
	}
	release, err := s.locker.Acquire(ctx, "trend:"+id)
	if err != nil {
		return domain.TrendProduct{}, err
	}
	defer release()

	trend, err := s.repo.GetTrend(ctx, id)
	if err != nil {
		return domain.TrendProduct{}, fmt.Errorf("получение тренда: %w", err)
	}
	if trend.Status != domain.TrendStatusAnalyzing && trend.Status != domain.TrendStatusShortlisted {
		return domain.TrendProduct{}, domain.Preconditionf("trend %s is %s", id, trend.Status)
	}
	from := trend.Status
	trend.Status = domain.TrendStatusRejected
	trend.RejectReason = strings.TrimSpace(reason)
	trend.Rank = nil
	trend.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateTrendIfStatus(ctx, trend, from); err != nil {
		return domain.TrendProduct{}, fmt.Errorf("отклонение тренда: %w", err)
	}
	return trend, nil
}

// Collect забирает свежие сигналы из источника и принимает каждый. Невалидные сигналы пропускаются.
func (s *Service) Collect(ctx context.Context, source domain.TrendSource, since time.Time) (int, error) {
	facts, err := source.Collect(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("сбор трендов: %w", err)
	}
	ingested := 0
	for _, f := range facts {
		if _, err := s.Ingest(ctx, f); err != nil {
			if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrConcurrencyConflict) {
				s.log.Debug().Err(err).Str("url", f.SourceURL).Msg("trends: сигнал пропущен")
				continue
			}
			return ingested, err
		}
		ingested++
	}
	s.log.Info().Int("collected", len(facts)).Int("ingested", ingested).Msg("trends: сбор завершён")
	return ingested, nil
}

func (s *Service) publish(ctx context.Context, event domain.PipelineEvent) {
	event.OccurredAt = s.clock.Now()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Event).Msg("trends: не удалось опубликовать событие")
	}
}

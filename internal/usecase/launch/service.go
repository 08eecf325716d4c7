package launch

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
)

// Service управляет жизненным циклом запусков. Advance — единственный способ сдвинуть статус для дочерних сервисов.
type Service struct {
	trends   domain.TrendRepo
	launches domain.LaunchRepo
	jobs     domain.JobQueue
	locker   domain.Locker
	events   domain.EventPublisher
	clock    domain.Clock
	log      zerolog.Logger
}

// NewService создаёт оркестратор запусков.
func NewService(trends domain.TrendRepo, launches domain.LaunchRepo, jobs domain.JobQueue, locker domain.Locker, events domain.EventPublisher, clock domain.Clock, logger zerolog.Logger) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Service{
		trends:   trends,
		launches: launches,
		jobs:     jobs,
		locker:   locker,
		events:   events,
		clock:    clock,
		log:      logger.With().Str("component", "launch").Logger(),
	}
}

// Create открывает семидневный запуск по тренду и переводит тренд в LAUNCHED.
func (s *Service) Create(ctx context.Context, trendID, name string, launchDate time.Time) (domain.Launch, error) {
	if strings.TrimSpace(trendID) == "" {
		return domain.Launch{}, domain.Validationf("trend id is required")
	}
	if launchDate.IsZero() {
		return domain.Launch{}, domain.Validationf("launch date is required")
	}
	release, err := s.locker.Acquire(ctx, "trend:"+trendID)
	if err != nil {
		return domain.Launch{}, err
	}
	defer release()

	trend, err := s.trends.GetTrend(ctx, trendID)
	if err != nil {
		return domain.Launch{}, fmt.Errorf("получение тренда: %w", err)
	}
	switch trend.Status {
	case domain.TrendStatusLaunched, domain.TrendStatusRejected, domain.TrendStatusArchived:
		return domain.Launch{}, domain.Preconditionf("trend %s is %s", trendID, trend.Status)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = trend.Name
	}
	now := s.clock.Now()
	launchDate = launchDate.UTC()
	launch := domain.Launch{
		ID:         uuid.NewString(),
		Name:       name,
		Product:    domain.SnapshotOf(trend),
		LaunchDate: launchDate,
		EndDate:    launchDate.Add(domain.LaunchWindow),
		Status:     domain.LaunchStatusPlanned,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	trend.Status = domain.TrendStatusLaunched
	trend.UpdatedAt = now
	if err := s.launches.CreateLaunch(ctx, launch, trend); err != nil {
		return domain.Launch{}, fmt.Errorf("сохранение запуска: %w", err)
	}
	s.publishTransition(ctx, launch.ID, "", domain.LaunchStatusPlanned, "")
	s.log.Info().Str("launch_id", launch.ID).Str("trend_id", trendID).Msg("launch: запуск создан")
	return launch, nil
}

// Advance переводит запуск в статус to. Если запуск уже на этом этапе или дальше, ничего не меняет.
func (s *Service) Advance(ctx context.Context, launchID string, to domain.LaunchStatus) (domain.Launch, error) {
	predecessor, ok := to.Predecessor()
	if !ok {
		return domain.Launch{}, domain.Validationf("status %s is not reachable by advance", to)
	}
	launch, err := s.launches.GetLaunch(ctx, launchID)
	if err != nil {
		return domain.Launch{}, fmt.Errorf("получение запуска: %w", err)
	}
	if launch.Status == domain.LaunchStatusCancelled {
		return domain.Launch{}, domain.Preconditionf("launch %s is cancelled", launchID)
	}
	if launch.Status.Stage() >= to.Stage() {
		return launch, nil
	}
	if launch.Status != predecessor {
		return domain.Launch{}, domain.Preconditionf("launch %s cannot move from %s to %s", launchID, launch.Status, to)
	}

	now := s.clock.Now()
	err = s.launches.UpdateLaunchStatus(ctx, launchID, predecessor, to, "", now)
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		current, getErr := s.launches.GetLaunch(ctx, launchID)
		if getErr == nil && current.Status != domain.LaunchStatusCancelled && current.Status.Stage() >= to.Stage() {
			return current, nil
		}
		return domain.Launch{}, fmt.Errorf("переход %s→%s: %w", predecessor, to, err)
	}
	if err != nil {
		return domain.Launch{}, fmt.Errorf("смена статуса запуска: %w", err)
	}
	launch.Status = to
	launch.UpdatedAt = now
	s.publishTransition(ctx, launchID, predecessor, to, "")
	s.log.Info().Str("launch_id", launchID).Str("from", string(predecessor)).Str("to", string(to)).Msg("launch: статус изменён")
	return launch, nil
}

// Cancel отменяет запуск до выхода в эфир и снимает его ожидающие задачи.
func (s *Service) Cancel(ctx context.Context, launchID, reason string) (domain.Launch, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Launch{}, domain.Validationf("cancel reason is required")
	}
	launch, err := s.launches.GetLaunch(ctx, launchID)
	if err != nil {
		return domain.Launch{}, fmt.Errorf("получение запуска: %w", err)
	}
	if launch.Status == domain.LaunchStatusCancelled {
		return launch, nil
	}
	if !launch.Status.Cancellable() {
		return domain.Launch{}, domain.Preconditionf("launch %s is %s", launchID, launch.Status)
	}
	now := s.clock.Now()
	if err := s.launches.UpdateLaunchStatus(ctx, launchID, launch.Status, domain.LaunchStatusCancelled, reason, now); err != nil {
		return domain.Launch{}, fmt.Errorf("отмена запуска: %w", err)
	}
	from := launch.Status
	launch.Status = domain.LaunchStatusCancelled
	launch.CancelReason = reason
	launch.UpdatedAt = now

	cancelled, err := s.jobs.CancelByLaunch(ctx, launchID)
	if err != nil {
		return domain.Launch{}, fmt.Errorf("отмена задач запуска: %w", err)
	}
	s.publishTransition(ctx, launchID, from, domain.LaunchStatusCancelled, reason)
	s.log.Info().Str("launch_id", launchID).Int("jobs_cancelled", cancelled).Msg("launch: запуск отменён")
	return launch, nil
}

// Get возвращает запуск.
func (s *Service) Get(ctx context.Context, launchID string) (domain.Launch, error) {
	launch, err := s.launches.GetLaunch(ctx, launchID)
	if err != nil {
		return domain.Launch{}, fmt.Errorf("получение запуска: %w", err)
	}
	return launch, nil
}

// List возвращает запуски по фильтру.
func (s *Service) List(ctx context.Context, filter domain.LaunchFilter) ([]domain.Launch, error) {
	out, err := s.launches.ListLaunches(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("список запусков: %w", err)
	}
	return out, nil
}

func (s *Service) publishTransition(ctx context.Context, launchID string, from, to domain.LaunchStatus, reason string) {
	metrics.LaunchTransitions.WithLabelValues(string(from), string(to)).Inc()
	meta := map[string]any{"from": string(from), "to": string(to)}
	if reason != "" {
		meta["reason"] = reason
	}
	err := s.events.Publish(ctx, domain.PipelineEvent{
		Event:      domain.EventLaunchStatusChanged,
		LaunchID:   launchID,
		EntityID:   launchID,
		Metadata:   meta,
		OccurredAt: s.clock.Now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("launch_id", launchID).Msg("launch: не удалось опубликовать событие")
	}
}

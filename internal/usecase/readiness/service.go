package readiness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

const healthTimeout = 10 * time.Second

// Deps — зависимости шлюза готовности.
type Deps struct {
	Launches  domain.LaunchRepo
	Packs     domain.AssetPackRepo
	Streams   domain.TestStreamRepo
	Hosts     domain.HostRepo
	Readiness domain.ReadinessRepo
	Health    domain.HealthChecker
	Advancer  domain.LaunchAdvancer
	Locker    domain.Locker
	Notifier  domain.Notifier
	Events    domain.EventPublisher
	Clock     domain.Clock
	Log       zerolog.Logger
}

// Service сводит сигналы готовности в решение о выходе в эфир.
type Service struct {
	deps       Deps
	log        zerolog.Logger
	staleAfter time.Duration
}

// NewService создаёт шлюз готовности.
func NewService(deps Deps, staleAfter time.Duration) *Service {
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if deps.Notifier == nil {
		deps.Notifier = domain.NopNotifier{}
	}
	if deps.Events == nil {
		deps.Events = domain.NopPublisher{}
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Service{deps: deps, log: deps.Log.With().Str("component", "readiness").Logger(), staleAfter: staleAfter}
}

func lockKey(launchID string) string { return "readiness:" + launchID }

// Check пересчитывает готовность и сохраняет запись, не трогая поля обхода и предохранителя.
func (s *Service) Check(ctx context.Context, launchID string) (domain.GoLiveReadiness, error) {
	release, err := s.deps.Locker.Acquire(ctx, lockKey(launchID))
	if err != nil {
		return domain.GoLiveReadiness{}, err
	}
	defer release()
	return s.evaluateLocked(ctx, launchID)
}

func (s *Service) evaluateLocked(ctx context.Context, launchID string) (domain.GoLiveReadiness, error) {
	launch, err := s.deps.Launches.GetLaunch(ctx, launchID)
	if err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("получение запуска: %w", err)
	}
	previous, err := s.deps.Readiness.GetReadiness(ctx, launchID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.GoLiveReadiness{}, fmt.Errorf("получение готовности: %w", err)
	}
	exists := err == nil

	streams, err := s.deps.Streams.ListTestStreams(ctx, launchID)
	if err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("список репетиций: %w", err)
	}
	packs, err := s.deps.Packs.ListAssetPacks(ctx, launchID)
	if err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("список пакетов: %w", err)
	}
	handoffs, err := s.deps.Hosts.ListHandoffPacks(ctx, launchID)
	if err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("список передач ведущему: %w", err)
	}

	now := s.deps.Clock.Now()
	var checks domain.ReadinessChecks
	var lastGo *time.Time
	checks.TestStreamsPass, checks.TestStreamsExpired, lastGo = streamChecks(streams, now, s.staleAfter)
	checks.AssetsComplete = assetsComplete(packs)
	checks.HostHandoffConfirmed = handoffConfirmed(launch, handoffs)
	checks.HealthSignals = s.health(ctx, launch)

	assessment := Assess(checks)
	record := domain.GoLiveReadiness{
		LaunchID:           launchID,
		ReadinessChecks:    checks,
		ComplianceApproved: checks.AssetsComplete,
		OverallReadiness:   assessment.OverallReadiness,
		IsReady:            assessment.IsReady,
		RiskLevel:          assessment.RiskLevel,
		RiskFactors:        assessment.RiskFactors,
		GuardStatus:        domain.GuardPending,
		LastGoVerdictAt:    lastGo,
		CheckedAt:          now,
	}
	if exists {
		record.GuardStatus = previous.GuardStatus
		record.ManualOverride = previous.ManualOverride
		record.OverrideBy = previous.OverrideBy
		record.OverrideReason = previous.OverrideReason
		record.OverrideAt = previous.OverrideAt
	}
	if err := s.deps.Readiness.UpsertReadiness(ctx, record); err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("сохранение готовности: %w", err)
	}
	metrics.ReadinessChecks.WithLabelValues(strconv.FormatBool(record.IsReady)).Inc()
	return record, nil
}

func (s *Service) health(ctx context.Context, launch domain.Launch) domain.HealthSignals {
	if s.deps.Health == nil {
		return domain.HealthSignals{}
	}
	callCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	signals, err := s.deps.Health.Check(callCtx, launch)
	if err != nil {
		s.log.Warn().Err(err).Str("launch_id", launch.ID).Msg("readiness: проверка здоровья не удалась")
		return domain.HealthSignals{}
	}
	return signals
}

// Arm взводит предохранитель и переводит запуск в READY. Требует полной готовности.
func (s *Service) Arm(ctx context.Context, launchID string) (domain.GoLiveReadiness, error) {
	release, err := s.deps.Locker.Acquire(ctx, lockKey(launchID))
	if err != nil {
		return domain.GoLiveReadiness{}, err
	}
	defer release()

	record, err := s.evaluateLocked(ctx, launchID)
	if err != nil {
		return domain.GoLiveReadiness{}, err
	}
	if record.GuardStatus == domain.GuardArmed {
		return record, domain.ErrAlreadyArmed
	}
	if !record.IsReady {
		return record, fmt.Errorf("%w: readiness %d%%, risk %s", domain.ErrNotReady, record.OverallReadiness, record.RiskLevel)
	}
	if _, err := s.deps.Advancer.Advance(ctx, launchID, domain.LaunchStatusReady); err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("продвижение запуска: %w", err)
	}
	record.GuardStatus = domain.GuardArmed
	if err := s.deps.Readiness.UpsertReadiness(ctx, record); err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("сохранение готовности: %w", err)
	}
	s.log.Info().Str("launch_id", launchID).Msg("readiness: предохранитель взведён")
	return record, nil
}

// Override фиксирует ручной обход готовности. IsReady остаётся как было рассчитано.
func (s *Service) Override(ctx context.Context, launchID, reason, approver string) (domain.GoLiveReadiness, error) {
	reason = strings.TrimSpace(reason)
	approver = strings.TrimSpace(approver)
	if reason == "" {
		return domain.GoLiveReadiness{}, domain.Validationf("override reason is required")
	}
	if approver == "" {
		return domain.GoLiveReadiness{}, domain.Validationf("override approver is required")
	}
	release, err := s.deps.Locker.Acquire(ctx, lockKey(launchID))
	if err != nil {
		return domain.GoLiveReadiness{}, err
	}
	defer release()

	record, err := s.deps.Readiness.GetReadiness(ctx, launchID)
	if errors.Is(err, domain.ErrNotFound) {
		record, err = s.evaluateLocked(ctx, launchID)
	}
	if err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("получение готовности: %w", err)
	}

	now := s.deps.Clock.Now()
	record.ManualOverride = true
	record.OverrideBy = approver
	record.OverrideReason = reason
	record.OverrideAt = &now
	record.GuardStatus = domain.GuardOverridden
	if err := s.deps.Readiness.UpsertReadiness(ctx, record); err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("сохранение обхода: %w", err)
	}

	launch, err := s.deps.Launches.GetLaunch(ctx, launchID)
	if err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("получение запуска: %w", err)
	}
	if launch.Status == domain.LaunchStatusTestStreaming {
		if _, err := s.deps.Advancer.Advance(ctx, launchID, domain.LaunchStatusReady); err != nil {
			return domain.GoLiveReadiness{}, fmt.Errorf("продвижение запуска: %w", err)
		}
	}

	s.log.Warn().Str("launch_id", launchID).Str("approver", approver).Str("reason", reason).Int("readiness", record.OverallReadiness).Msg("readiness: ручной обход")
	if err := s.deps.Notifier.Notify(ctx, domain.Alert{
		Title:    "Readiness override",
		Body:     fmt.Sprintf("%s approved go-live at %d%% readiness (risk %s): %s", approver, record.OverallReadiness, record.RiskLevel, reason),
		LaunchID: launchID,
	}); err != nil {
		s.log.Warn().Err(err).Msg("readiness: уведомление не отправлено")
	}
	if err := s.deps.Events.Publish(ctx, domain.PipelineEvent{
		Event:      domain.EventReadinessOverridden,
		LaunchID:   launchID,
		EntityID:   launchID,
		Metadata:   map[string]any{"approver": approver, "reason": reason, "overall_readiness": record.OverallReadiness},
		OccurredAt: now,
	}); err != nil {
		s.log.Warn().Err(err).Msg("readiness: событие не опубликовано")
	}
	return record, nil
}

// Get возвращает сохранённую запись готовности.
func (s *Service) Get(ctx context.Context, launchID string) (domain.GoLiveReadiness, error) {
	record, err := s.deps.Readiness.GetReadiness(ctx, launchID)
	if err != nil {
		return domain.GoLiveReadiness{}, fmt.Errorf("получение готовности: %w", err)
	}
	return record, nil
}

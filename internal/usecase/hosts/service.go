package hosts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
	"trend-launch/internal/usecase/scoring"
)

// ErrPerformanceRecorded — итоги эфира уже учтены у ведущего.
var ErrPerformanceRecorded = fmt.Errorf("%w: performance already recorded", domain.ErrPreconditionFailed)

// Service управляет ведущими: оценкой, назначением на запуск и итогами эфиров.
type Service struct {
	hosts    domain.HostRepo
	launches domain.LaunchRepo
	packs    domain.AssetPackRepo
	shows    domain.LiveShowRepo
	locker   domain.Locker
	clock    domain.Clock
	log      zerolog.Logger
}

// NewService создаёт сервис ведущих.
func NewService(hosts domain.HostRepo, launches domain.LaunchRepo, packs domain.AssetPackRepo, shows domain.LiveShowRepo, locker domain.Locker, clock domain.Clock, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Service{
		hosts:    hosts,
		launches: launches,
		packs:    packs,
		shows:    shows,
		locker:   locker,
		clock:    clock,
		log:      logger.With().Str("component", "hosts").Logger(),
	}
}

// Register заводит ведущего в статусе APPLICANT.
func (s *Service) Register(ctx context.Context, profile domain.HostProfile) (domain.Host, error) {
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		return domain.Host{}, domain.Validationf("host name is required")
	}
	if profile.CommissionPercent < 0 || profile.CommissionPercent > 1 {
		return domain.Host{}, domain.Validationf("commission must be a fraction in [0,1], got %v", profile.CommissionPercent)
	}
	now := s.clock.Now()
	host := domain.Host{
		ID:                uuid.NewString(),
		Name:              name,
		Handle:            strings.TrimSpace(profile.Handle),
		Tier:              domain.HostTierApplicant,
		CommissionPercent: profile.CommissionPercent,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.hosts.CreateHost(ctx, host); err != nil {
		return domain.Host{}, fmt.Errorf("создание ведущего: %w", err)
	}
	s.log.Info().Str("host_id", host.ID).Str("name", host.Name).Msg("hosts: ведущий зарегистрирован")
	return host, nil
}

// Get возвращает ведущего.
func (s *Service) Get(ctx context.Context, hostID string) (domain.Host, error) {
	host, err := s.hosts.GetHost(ctx, hostID)
	if err != nil {
		return domain.Host{}, fmt.Errorf("получение ведущего: %w", err)
	}
	return host, nil
}

// List возвращает всех ведущих.
func (s *Service) List(ctx context.Context) ([]domain.Host, error) {
	hosts, err := s.hosts.ListHosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("список ведущих: %w", err)
	}
	return hosts, nil
}

func checkScore(name string, v *int) error {
	if v != nil && (*v < 0 || *v > 100) {
		return domain.Validationf("%s score must be in [0,100], got %d", name, *v)
	}
	return nil
}

// ScoreHost частично обновляет оценки и пересчитывает итог и уровень.
func (s *Service) ScoreHost(ctx context.Context, hostID string, energy, clarity, authenticity *int) (domain.Host, error) {
	for name, v := range map[string]*int{"energy": energy, "clarity": clarity, "authenticity": authenticity} {
		if err := checkScore(name, v); err != nil {
			return domain.Host{}, err
		}
	}
	release, err := s.locker.Acquire(ctx, "host:"+hostID)
	if err != nil {
		return domain.Host{}, err
	}
	defer release()

	host, err := s.hosts.GetHost(ctx, hostID)
	if err != nil {
		return domain.Host{}, fmt.Errorf("получение ведущего: %w", err)
	}
	if energy != nil {
		host.EnergyScore = *energy
	}
	if clarity != nil {
		host.ClarityScore = *clarity
	}
	if authenticity != nil {
		host.AuthenticityScore = *authenticity
	}
	host.OverallScore = scoring.Clamp(int(math.Round(float64(host.EnergyScore+host.ClarityScore+host.AuthenticityScore) / 3)))
	host.Tier = domain.TierForScore(host.OverallScore)
	host.UpdatedAt = s.clock.Now()
	if err := s.hosts.UpdateHost(ctx, host); err != nil {
		return domain.Host{}, fmt.Errorf("сохранение ведущего: %w", err)
	}
	return host, nil
}

// Assign закрепляет ведущего за запуском и формирует пакет передачи.
func (s *Service) Assign(ctx context.Context, launchID, hostID string) (domain.HostHandoffPack, error) {
	host, err := s.hosts.GetHost(ctx, hostID)
	if err != nil {
		return domain.HostHandoffPack{}, fmt.Errorf("получение ведущего: %w", err)
	}
	release, err := s.locker.Acquire(ctx, "launch-host:"+launchID)
	if err != nil {
		return domain.HostHandoffPack{}, err
	}
	defer release()

	launch, err := s.launches.GetLaunch(ctx, launchID)
	if err != nil {
		return domain.HostHandoffPack{}, fmt.Errorf("получение запуска: %w", err)
	}
	if !launch.Status.Cancellable() {
		return domain.HostHandoffPack{}, domain.Preconditionf("launch %s is %s, host can not be assigned", launchID, launch.Status)
	}
	packs, err := s.packs.ListAssetPacks(ctx, launchID)
	if err != nil {
		return domain.HostHandoffPack{}, fmt.Errorf("список пакетов: %w", err)
	}

	pack := domain.HostHandoffPack{
		ID:         uuid.NewString(),
		LaunchID:   launchID,
		HostID:     host.ID,
		PreLive:    preLiveChecklist(launch, packs),
		DuringLive: duringLiveChecklist(launch),
		PostLive:   postLiveChecklist(),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.launches.SetLaunchHost(ctx, launchID, host.ID); err != nil {
		return domain.HostHandoffPack{}, fmt.Errorf("назначение ведущего: %w", err)
	}
	if err := s.hosts.CreateHandoffPack(ctx, pack); err != nil {
		return domain.HostHandoffPack{}, fmt.Errorf("создание пакета передачи: %w", err)
	}
	s.log.Info().Str("launch_id", launchID).Str("host_id", host.ID).Msg("hosts: ведущий назначен")
	return pack, nil
}

// ConfirmHandoff отмечает, что ведущий принял пакет передачи. Повторное подтверждение ничего не меняет.
func (s *Service) ConfirmHandoff(ctx context.Context, packID string) (domain.HostHandoffPack, error) {
	release, err := s.locker.Acquire(ctx, "handoff:"+packID)
	if err != nil {
		return domain.HostHandoffPack{}, err
	}
	defer release()

	pack, err := s.hosts.GetHandoffPack(ctx, packID)
	if err != nil {
		return domain.HostHandoffPack{}, fmt.Errorf("получение пакета передачи: %w", err)
	}
	if pack.HostConfirmed {
		return pack, nil
	}
	now := s.clock.Now()
	pack.HostConfirmed = true
	pack.ConfirmedAt = &now
	if err := s.hosts.UpdateHandoffPack(ctx, pack); err != nil {
		return domain.HostHandoffPack{}, fmt.Errorf("сохранение пакета передачи: %w", err)
	}
	return pack, nil
}

// ListHandoffPacks возвращает пакеты передачи запуска.
func (s *Service) ListHandoffPacks(ctx context.Context, launchID string) ([]domain.HostHandoffPack, error) {
	packs, err := s.hosts.ListHandoffPacks(ctx, launchID)
	if err != nil {
		return nil, fmt.Errorf("список пакетов передачи: %w", err)
	}
	return packs, nil
}

// RecordPerformance добавляет итоги завершённого эфира к накопительным показателям ведущего.
// Каждый эфир учитывается один раз.
func (s *Service) RecordPerformance(ctx context.Context, hostID, showID string) (domain.Host, error) {
	release, err := s.locker.Acquire(ctx, "host:"+hostID)
	if err != nil {
		return domain.Host{}, err
	}
	defer release()

	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return domain.Host{}, fmt.Errorf("получение эфира: %w", err)
	}
	if show.HostID != hostID {
		return domain.Host{}, domain.Validationf("show %s is not hosted by %s", showID, hostID)
	}
	if show.Status != domain.LiveShowStatusEnded {
		return domain.Host{}, domain.Preconditionf("show %s is %s, performance is recorded after the show ends", showID, show.Status)
	}
	if show.PerformanceRecordedAt != nil {
		return domain.Host{}, fmt.Errorf("show %s: %w", showID, ErrPerformanceRecorded)
	}
	host, err := s.hosts.GetHost(ctx, hostID)
	if err != nil {
		return domain.Host{}, fmt.Errorf("получение ведущего: %w", err)
	}

	applyPerformance(&host, show)
	now := s.clock.Now()
	host.UpdatedAt = now
	show.PerformanceRecordedAt = &now
	if err := s.hosts.RecordHostPerformance(ctx, host, show); err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			return domain.Host{}, fmt.Errorf("show %s: %w", showID, ErrPerformanceRecorded)
		}
		return domain.Host{}, fmt.Errorf("сохранение итогов эфира: %w", err)
	}
	s.log.Info().Str("host_id", hostID).Str("show_id", showID).Int64("revenue_cents", show.RevenueCents).Msg("hosts: итоги эфира учтены")
	return host, nil
}

// RecordShowPerformance учитывает итоги эфира его ведущего. Обработчик задачи host_performance:
// повторный учёт, в том числе ручной через API, не считается ошибкой.
func (s *Service) RecordShowPerformance(ctx context.Context, showID string) error {
	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return fmt.Errorf("получение эфира: %w", err)
	}
	if show.HostID == "" {
		return nil
	}
	_, err = s.RecordPerformance(ctx, show.HostID, showID)
	if errors.Is(err, ErrPerformanceRecorded) {
		s.log.Debug().Str("host_id", show.HostID).Str("show_id", showID).Msg("hosts: итоги эфира уже учтены")
		return nil
	}
	return err
}

// ConversionRate — доля покупок от пиковой аудитории в процентах.
func ConversionRate(show domain.LiveShow) float64 {
	if show.PeakViewers <= 0 {
		return 0
	}
	return float64(show.Purchases) / float64(show.PeakViewers) * 100
}

// Commission — комиссия ведущего за эфир в центах.
func Commission(revenueCents int64, commission float64) int64 {
	return int64(math.Round(float64(revenueCents) * commission))
}

func applyPerformance(host *domain.Host, show domain.LiveShow) {
	oldCount := host.TotalShows
	host.TotalShows++
	host.AvgConversionRate = (host.AvgConversionRate*float64(oldCount) + ConversionRate(show)) / float64(host.TotalShows)
	host.TotalViewers += show.PeakViewers
	host.TotalRevenueCents += show.RevenueCents
	earned := Commission(show.RevenueCents, host.CommissionPercent)
	host.TotalEarnedCents += earned
	host.PendingPayoutCents += earned
}

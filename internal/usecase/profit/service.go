// Package profit сводит выручку эфиров с затратами и следит за порогом маржи.
package profit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
	"trend-launch/internal/usecase/hosts"
)

const (
	platformFeeRate   = 0.05
	paymentFeeRate    = 0.029
	paymentFixedCents = 30
)

// Rates — оценочные ставки расчёта. Маркетинг и возвраты не измеряются, а моделируются долей выручки.
type Rates struct {
	MarketingRate float64
	RefundRate    float64
	// MarginThreshold — порог маржи в процентах, ниже которого поднимается тревога.
	MarginThreshold float64
}

// DefaultRates — ставки по умолчанию.
var DefaultRates = Rates{MarketingRate: 0.10, RefundRate: 0.05, MarginThreshold: 20}

// Totals — фактические итоги эфиров запуска.
type Totals struct {
	Shows               int
	UnitsSold           int64
	GrossRevenueCents   int64
	HostCommissionCents int64
}

// Service ведёт журнал расчётов прибыли.
type Service struct {
	launches domain.LaunchRepo
	shows    domain.LiveShowRepo
	hosts    domain.HostRepo
	ledger   domain.ProfitRepo
	locker   domain.Locker
	notifier domain.Notifier
	events   domain.EventPublisher
	clock    domain.Clock
	log      zerolog.Logger
	rates    Rates
}

// NewService создаёт движок защиты прибыли.
func NewService(launches domain.LaunchRepo, shows domain.LiveShowRepo, hostRepo domain.HostRepo, ledger domain.ProfitRepo, locker domain.Locker, notifier domain.Notifier, events domain.EventPublisher, clock domain.Clock, logger zerolog.Logger, rates Rates) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &Service{
		launches: launches,
		shows:    shows,
		hosts:    hostRepo,
		ledger:   ledger,
		locker:   locker,
		notifier: notifier,
		events:   events,
		clock:    clock,
		log:      logger.With().Str("component", "profit").Logger(),
		rates:    rates,
	}
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}

// Compute раскладывает итоги на затраты. Деление на ноль не возникает: при нулевой выручке маржа 0,
// при нулевых продажах точка безубыточности 0.
func Compute(product domain.ProductSnapshot, t Totals, rates Rates) domain.ProfitTracking {
	gross := t.GrossRevenueCents
	rec := domain.ProfitTracking{
		ShowsCount:          t.Shows,
		UnitsSold:           t.UnitsSold,
		GrossRevenueCents:   gross,
		ProductCostCents:    product.SourceCostCents * t.UnitsSold,
		ShippingCostCents:   product.ShippingCostCents * t.UnitsSold,
		PlatformFeeCents:    roundCents(float64(gross) * platformFeeRate),
		PaymentFeeCents:     roundCents(float64(gross)*paymentFeeRate) + paymentFixedCents*t.UnitsSold,
		HostCommissionCents: t.HostCommissionCents,
		MarketingCostCents:  roundCents(float64(gross) * rates.MarketingRate),
		RefundsCents:        roundCents(float64(gross) * rates.RefundRate),
	}
	rec.TotalCostCents = rec.ProductCostCents + rec.ShippingCostCents + rec.PlatformFeeCents +
		rec.PaymentFeeCents + rec.HostCommissionCents + rec.MarketingCostCents
	rec.NetProfitCents = gross - rec.RefundsCents - rec.TotalCostCents
	if gross > 0 {
		rec.MarginPercent = float64(rec.NetProfitCents) / float64(gross) * 100
	}
	if t.UnitsSold > 0 {
		revenuePerUnit := float64(gross) / float64(t.UnitsSold)
		costPerUnit := float64(product.SourceCostCents + product.ShippingCostCents)
		if revenuePerUnit > costPerUnit {
			rec.BreakEvenUnits = int64(math.Ceil(float64(rec.TotalCostCents) / (revenuePerUnit - costPerUnit)))
		}
	}
	rec.BelowThreshold = rec.MarginPercent < rates.MarginThreshold
	return rec
}

// Calculate пересчитывает прибыль запуска по всем эфирам и добавляет запись в журнал.
func (s *Service) Calculate(ctx context.Context, launchID string) (domain.ProfitTracking, error) {
	release, err := s.locker.Acquire(ctx, "profit:"+launchID)
	if err != nil {
		return domain.ProfitTracking{}, err
	}
	defer release()

	launch, err := s.launches.GetLaunch(ctx, launchID)
	if err != nil {
		return domain.ProfitTracking{}, fmt.Errorf("получение запуска: %w", err)
	}
	shows, err := s.shows.ListLiveShows(ctx, domain.LiveShowFilter{LaunchID: launchID})
	if err != nil {
		return domain.ProfitTracking{}, fmt.Errorf("список эфиров: %w", err)
	}
	totals, err := s.totals(ctx, shows)
	if err != nil {
		return domain.ProfitTracking{}, err
	}

	now := s.clock.Now()
	rec := Compute(launch.Product, totals, s.rates)
	rec.ID = uuid.NewString()
	rec.LaunchID = launchID
	rec.CalculatedAt = now
	if rec.BelowThreshold {
		rec.AlertAt = &now
	}
	if err := s.ledger.AppendProfit(ctx, rec); err != nil {
		return domain.ProfitTracking{}, fmt.Errorf("запись расчёта: %w", err)
	}
	s.log.Info().
		Str("launch_id", launchID).
		Int64("gross_cents", rec.GrossRevenueCents).
		Int64("net_cents", rec.NetProfitCents).
		Float64("margin_percent", rec.MarginPercent).
		Msg("profit: расчёт записан")
	if rec.BelowThreshold {
		s.alert(ctx, launch, rec)
	}
	return rec, nil
}

func (s *Service) totals(ctx context.Context, shows []domain.LiveShow) (Totals, error) {
	t := Totals{Shows: len(shows)}
	commissions := make(map[string]float64)
	for _, show := range shows {
		t.UnitsSold += show.Purchases
		t.GrossRevenueCents += show.RevenueCents
		if show.HostID == "" {
			continue
		}
		rate, ok := commissions[show.HostID]
		if !ok {
			host, err := s.hosts.GetHost(ctx, show.HostID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				s.log.Warn().Str("host_id", show.HostID).Str("show_id", show.ID).Msg("profit: ведущий не найден, комиссия не учтена")
			case err != nil:
				return Totals{}, fmt.Errorf("получение ведущего: %w", err)
			default:
				rate = host.CommissionPercent
			}
			commissions[show.HostID] = rate
		}
		t.HostCommissionCents += hosts.Commission(show.RevenueCents, rate)
	}
	return t, nil
}

func (s *Service) alert(ctx context.Context, launch domain.Launch, rec domain.ProfitTracking) {
	metrics.ProfitAlerts.Inc()
	s.log.Warn().Str("launch_id", launch.ID).Float64("margin_percent", rec.MarginPercent).Msg("profit: маржа ниже порога")
	if err := s.notifier.Notify(ctx, domain.Alert{
		Title:    "Margin below threshold",
		Body:     fmt.Sprintf("%s: margin %.1f%% < %.0f%%, net %d cents on %d cents gross", launch.Product.Name, rec.MarginPercent, s.rates.MarginThreshold, rec.NetProfitCents, rec.GrossRevenueCents),
		LaunchID: launch.ID,
	}); err != nil {
		s.log.Warn().Err(err).Msg("profit: уведомление не отправлено")
	}
	if err := s.events.Publish(ctx, domain.PipelineEvent{
		Event:      domain.EventProfitAlert,
		LaunchID:   launch.ID,
		EntityID:   rec.ID,
		Metadata:   map[string]any{"margin_percent": rec.MarginPercent, "net_profit_cents": rec.NetProfitCents},
		OccurredAt: rec.CalculatedAt,
	}); err != nil {
		s.log.Warn().Err(err).Msg("profit: событие не опубликовано")
	}
}

// History возвращает журнал расчётов запуска в порядке добавления.
func (s *Service) History(ctx context.Context, launchID string) ([]domain.ProfitTracking, error) {
	if _, err := s.launches.GetLaunch(ctx, launchID); err != nil {
		return nil, fmt.Errorf("получение запуска: %w", err)
	}
	records, err := s.ledger.ListProfit(ctx, launchID)
	if err != nil {
		return nil, fmt.Errorf("журнал прибыли: %w", err)
	}
	return records, nil
}

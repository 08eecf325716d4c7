package profit

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"trend-launch/internal/adapters/memstore"
	"trend-launch/internal/domain"
	"trend-launch/internal/infra/lock"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var now = time.Date(2025, 3, 6, 10, 0, 0, 0, time.UTC)

type countingNotifier struct{ alerts []domain.Alert }

func (n *countingNotifier) Notify(_ context.Context, alert domain.Alert) error {
	n.alerts = append(n.alerts, alert)
	return nil
}

var product = domain.ProductSnapshot{Name: "Lamp", SourceCostCents: 1000, ShippingCostCents: 150, SuggestedPriceCents: 2999}

func TestComputeZeroUnits(t *testing.T) {
	rec := Compute(product, Totals{}, DefaultRates)
	require.Equal(t, 0.0, rec.MarginPercent)
	require.Equal(t, int64(0), rec.BreakEvenUnits)
	require.False(t, math.IsNaN(rec.MarginPercent))
	require.True(t, rec.BelowThreshold)
	require.Equal(t, int64(0), rec.NetProfitCents)
}

func TestComputeCostBreakdown(t *testing.T) {
	rec := Compute(product, Totals{Shows: 1, UnitsSold: 100, GrossRevenueCents: 299900, HostCommissionCents: 29990}, DefaultRates)

	require.Equal(t, int64(100000), rec.ProductCostCents)
	require.Equal(t, int64(15000), rec.ShippingCostCents)
	require.Equal(t, int64(14995), rec.PlatformFeeCents)
	require.Equal(t, int64(11697), rec.PaymentFeeCents)
	require.Equal(t, int64(29990), rec.MarketingCostCents)
	require.Equal(t, int64(14995), rec.RefundsCents)
	require.Equal(t, int64(201672), rec.TotalCostCents)
	require.Equal(t, int64(83233), rec.NetProfitCents)
	require.InDelta(t, 27.7536, rec.MarginPercent, 1e-3)
	require.Equal(t, int64(110), rec.BreakEvenUnits)
	require.False(t, rec.BelowThreshold)
}

func TestComputeNoBreakEvenWhenUnitLoses(t *testing.T) {
	rec := Compute(product, Totals{UnitsSold: 10, GrossRevenueCents: 10000}, DefaultRates)
	require.Equal(t, int64(0), rec.BreakEvenUnits)
	require.True(t, rec.BelowThreshold)
}

func TestCalculateAppendsLedgerAndAlerts(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	notifier := &countingNotifier{}
	svc := NewService(store, store, store, store, lock.NewMemoryLocker(time.Second), notifier, nil, fixedClock{now: now}, zerolog.Nop(), DefaultRates)

	require.NoError(t, store.CreateTrend(ctx, domain.TrendProduct{ID: "trend-1"}))
	require.NoError(t, store.CreateLaunch(ctx, domain.Launch{ID: "launch-1", Product: product, Status: domain.LaunchStatusLive}, domain.TrendProduct{ID: "trend-1"}))
	require.NoError(t, store.CreateHost(ctx, domain.Host{ID: "host-1", CommissionPercent: 0.1}))
	require.NoError(t, store.CreateHost(ctx, domain.Host{ID: "host-2", CommissionPercent: 0.5}))

	history, err := svc.History(ctx, "launch-1")
	require.NoError(t, err)
	require.Empty(t, history)

	rec, err := svc.Calculate(ctx, "launch-1")
	require.NoError(t, err)
	require.Equal(t, 0, rec.ShowsCount)
	require.Equal(t, 0.0, rec.MarginPercent)
	require.True(t, rec.BelowThreshold)
	require.Equal(t, now, *rec.AlertAt)
	require.Len(t, notifier.alerts, 1)

	require.NoError(t, store.CreateLiveShow(ctx, domain.LiveShow{ID: "show-1", LaunchID: "launch-1", HostID: "host-1", Status: domain.LiveShowStatusEnded, Purchases: 100, RevenueCents: 299900}))
	rec, err = svc.Calculate(ctx, "launch-1")
	require.NoError(t, err)
	require.Equal(t, int64(29990), rec.HostCommissionCents)
	require.Equal(t, int64(83233), rec.NetProfitCents)
	require.Nil(t, rec.AlertAt)
	require.Len(t, notifier.alerts, 1)

	require.NoError(t, store.CreateLiveShow(ctx, domain.LiveShow{ID: "show-2", LaunchID: "launch-1", HostID: "host-2", Status: domain.LiveShowStatusEnded, Purchases: 100, RevenueCents: 299900}))
	rec, err = svc.Calculate(ctx, "launch-1")
	require.NoError(t, err)
	require.Equal(t, 2, rec.ShowsCount)
	require.Equal(t, int64(29990+149950), rec.HostCommissionCents)
	require.True(t, rec.BelowThreshold)
	require.Equal(t, now, *rec.AlertAt)
	require.Len(t, notifier.alerts, 2)

	history, err = svc.History(ctx, "launch-1")
	require.NoError(t, err)
	require.Len(t, history, 3)

	_, err = svc.Calculate(ctx, "missing")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

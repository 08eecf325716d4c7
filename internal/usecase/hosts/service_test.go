package hosts

import (
	"context"
	"errors"
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

var now = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return NewService(store, store, store, store, lock.NewMemoryLocker(time.Second), fixedClock{now: now}, zerolog.Nop()), store
}

func intPtr(v int) *int { return &v }

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Register(ctx, domain.HostProfile{Name: " "})
	require.True(t, errors.Is(err, domain.ErrValidation))
	_, err = svc.Register(ctx, domain.HostProfile{Name: "Anna", CommissionPercent: 15})
	require.True(t, errors.Is(err, domain.ErrValidation))

	host, err := svc.Register(ctx, domain.HostProfile{Name: "Anna", Handle: "@anna", CommissionPercent: 0.1})
	require.NoError(t, err)
	require.Equal(t, domain.HostTierApplicant, host.Tier)

	hosts, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
}

func TestScoreHostPartialUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	host, err := svc.Register(ctx, domain.HostProfile{Name: "Anna", CommissionPercent: 0.1})
	require.NoError(t, err)

	host, err = svc.ScoreHost(ctx, host.ID, intPtr(90), intPtr(85), intPtr(80))
	require.NoError(t, err)
	require.Equal(t, 85, host.OverallScore)
	require.Equal(t, domain.HostTierGold, host.Tier)

	host, err = svc.ScoreHost(ctx, host.ID, nil, intPtr(100), nil)
	require.NoError(t, err)
	require.Equal(t, 90, host.EnergyScore)
	require.Equal(t, 80, host.AuthenticityScore)
	require.Equal(t, 90, host.OverallScore)
	require.Equal(t, domain.HostTierPlatinum, host.Tier)

	_, err = svc.ScoreHost(ctx, host.ID, intPtr(101), nil, nil)
	require.True(t, errors.Is(err, domain.ErrValidation))
}

func TestTierThresholds(t *testing.T) {
	cases := []struct {
		score int
		want  domain.HostTier
	}{
		{100, domain.HostTierPlatinum},
		{90, domain.HostTierPlatinum},
		{89, domain.HostTierGold},
		{80, domain.HostTierGold},
		{79, domain.HostTierSilver},
		{70, domain.HostTierSilver},
		{69, domain.HostTierBronze},
		{60, domain.HostTierBronze},
		{59, domain.HostTierApplicant},
		{0, domain.HostTierApplicant},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, domain.TierForScore(tc.score), "оценка %d", tc.score)
	}
}

func TestAssignAndConfirm(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	host, err := svc.Register(ctx, domain.HostProfile{Name: "Anna", CommissionPercent: 0.1})
	require.NoError(t, err)
	require.NoError(t, store.CreateTrend(ctx, domain.TrendProduct{ID: "trend-1", TrendFacts: domain.TrendFacts{Name: "Lamp"}, Status: domain.TrendStatusShortlisted}))
	require.NoError(t, store.CreateLaunch(ctx, domain.Launch{
		ID: "launch-1", Status: domain.LaunchStatusTestStreaming,
		Product: domain.ProductSnapshot{Name: "Lamp", SuggestedPriceCents: 2999},
	}, domain.TrendProduct{ID: "trend-1", TrendFacts: domain.TrendFacts{Name: "Lamp"}, Status: domain.TrendStatusLaunched}))
	_, err = store.SaveAssetPack(ctx, domain.AssetPack{ID: "pack-1", LaunchID: "launch-1", Platform: "tiktok", Status: domain.AssetPackStatusReady})
	require.NoError(t, err)

	pack, err := svc.Assign(ctx, "launch-1", host.ID)
	require.NoError(t, err)
	require.False(t, pack.HostConfirmed)
	require.NotEmpty(t, pack.PreLive)
	require.Len(t, pack.DuringLive, len(domain.Segments)+1)
	require.NotEmpty(t, pack.PostLive)
	require.Contains(t, pack.PreLive[0], "29.99")

	launch, err := store.GetLaunch(ctx, "launch-1")
	require.NoError(t, err)
	require.Equal(t, host.ID, launch.HostID)

	confirmed, err := svc.ConfirmHandoff(ctx, pack.ID)
	require.NoError(t, err)
	require.True(t, confirmed.HostConfirmed)
	require.Equal(t, now, *confirmed.ConfirmedAt)

	again, err := svc.ConfirmHandoff(ctx, pack.ID)
	require.NoError(t, err)
	require.Equal(t, confirmed.ConfirmedAt, again.ConfirmedAt)

	_, err = svc.Assign(ctx, "launch-1", "missing")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRecordPerformanceRunningTotals(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	host, err := svc.Register(ctx, domain.HostProfile{Name: "Anna", CommissionPercent: 0.1})
	require.NoError(t, err)

	require.NoError(t, store.CreateLiveShow(ctx, domain.LiveShow{
		ID: "show-1", LaunchID: "launch-1", HostID: host.ID, Status: domain.LiveShowStatusEnded,
		PeakViewers: 1000, Purchases: 40, RevenueCents: 119960,
	}))
	require.NoError(t, store.CreateLiveShow(ctx, domain.LiveShow{
		ID: "show-2", LaunchID: "launch-1", HostID: host.ID, Status: domain.LiveShowStatusEnded,
		PeakViewers: 500, Purchases: 10, RevenueCents: 29990,
	}))

	host, err = svc.RecordPerformance(ctx, host.ID, "show-1")
	require.NoError(t, err)
	require.Equal(t, 1, host.TotalShows)
	require.InDelta(t, 4.0, host.AvgConversionRate, 1e-9)
	require.Equal(t, int64(11996), host.TotalEarnedCents)

	host, err = svc.RecordPerformance(ctx, host.ID, "show-2")
	require.NoError(t, err)
	require.Equal(t, 2, host.TotalShows)
	require.Equal(t, int64(1500), host.TotalViewers)
	require.Equal(t, int64(149950), host.TotalRevenueCents)
	require.InDelta(t, 3.0, host.AvgConversionRate, 1e-9)
	require.Equal(t, int64(11996+2999), host.TotalEarnedCents)
	require.Equal(t, host.TotalEarnedCents, host.PendingPayoutCents)

	_, err = svc.RecordPerformance(ctx, host.ID, "show-1")
	require.True(t, errors.Is(err, domain.ErrPreconditionFailed))

	stored, err := svc.Get(ctx, host.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.TotalShows)
}

func TestRecordPerformanceRequiresEndedShow(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	host, err := svc.Register(ctx, domain.HostProfile{Name: "Anna"})
	require.NoError(t, err)
	require.NoError(t, store.CreateLiveShow(ctx, domain.LiveShow{ID: "show-1", HostID: host.ID, Status: domain.LiveShowStatusLive}))

	_, err = svc.RecordPerformance(ctx, host.ID, "show-1")
	require.True(t, errors.Is(err, domain.ErrPreconditionFailed))
	_, err = svc.RecordPerformance(ctx, "other", "show-1")
	require.True(t, errors.Is(err, domain.ErrValidation))
}

func TestRecordShowPerformanceToleratesRepeats(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	host, err := svc.Register(ctx, domain.HostProfile{Name: "Anna", CommissionPercent: 0.1})
	require.NoError(t, err)
	require.NoError(t, store.CreateLiveShow(ctx, domain.LiveShow{
		ID: "show-1", LaunchID: "launch-1", HostID: host.ID, Status: domain.LiveShowStatusEnded,
		PeakViewers: 1000, Purchases: 40, RevenueCents: 119960,
	}))
	require.NoError(t, store.CreateLiveShow(ctx, domain.LiveShow{ID: "show-2", LaunchID: "launch-1", Status: domain.LiveShowStatusEnded}))

	_, err = svc.RecordPerformance(ctx, host.ID, "show-1")
	require.NoError(t, err)
	_, err = svc.RecordPerformance(ctx, host.ID, "show-1")
	require.True(t, errors.Is(err, ErrPerformanceRecorded))
	require.True(t, errors.Is(err, domain.ErrPreconditionFailed))

	require.NoError(t, svc.RecordShowPerformance(ctx, "show-1"))
	require.NoError(t, svc.RecordShowPerformance(ctx, "show-2"))

	stored, err := svc.Get(ctx, host.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.TotalShows)
	require.Equal(t, int64(119960), stored.TotalRevenueCents)
}

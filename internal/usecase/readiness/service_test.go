package readiness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"trend-launch/internal/adapters/memstore"
	"trend-launch/internal/domain"
	"trend-launch/internal/infra/lock"
	"trend-launch/internal/infra/queue"
	"trend-launch/internal/usecase/launch"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var now = time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)

type fakeHealth struct {
	signals domain.HealthSignals
	err     error
}

func (f *fakeHealth) Check(context.Context, domain.Launch) (domain.HealthSignals, error) {
	return f.signals, f.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (n *recordingNotifier) Notify(_ context.Context, alert domain.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

type fixture struct {
	svc      *Service
	store    *memstore.Store
	health   *fakeHealth
	notifier *recordingNotifier
	launchID string
}

func allHealthy() domain.HealthSignals {
	return domain.HealthSignals{InventoryAvailable: true, PaymentGatewayHealthy: true, PlatformAccountActive: true}
}

// newFixture готовит запуск в TEST_STREAMING, у которого пройдены все проверки.
func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	clock := fixedClock{now: now}
	locker := lock.NewMemoryLocker(2 * time.Second)
	jobs := queue.NewMemoryJobQueue(clock)

	require.NoError(t, store.CreateTrend(ctx, domain.TrendProduct{
		ID:         "trend-1",
		TrendFacts: domain.TrendFacts{Name: "Lamp", Source: "tiktok", SourceURL: "https://example.com/l"},
		Status:     domain.TrendStatusShortlisted,
	}))
	launches := launch.NewService(store, store, jobs, locker, nil, clock, zerolog.Nop())
	created, err := launches.Create(ctx, "trend-1", "", now)
	require.NoError(t, err)
	_, err = launches.Advance(ctx, created.ID, domain.LaunchStatusAssetsGenerating)
	require.NoError(t, err)
	_, err = launches.Advance(ctx, created.ID, domain.LaunchStatusTestStreaming)
	require.NoError(t, err)

	_, err = store.SaveAssetPack(ctx, domain.AssetPack{ID: "pack-1", LaunchID: created.ID, Platform: "tiktok", Status: domain.AssetPackStatusReady, ComplianceApproved: true})
	require.NoError(t, err)
	ended := now.Add(-30 * time.Minute)
	require.NoError(t, store.CreateTestStream(ctx, domain.TestStream{
		ID: "ts-1", LaunchID: created.ID, AssetPackID: "pack-1", DurationMinutes: 20,
		Status: domain.TestStreamStatusCompleted, Verdict: domain.VerdictGo, EndedAt: &ended,
	}))
	require.NoError(t, store.CreateHost(ctx, domain.Host{ID: "host-1", Name: "Anna", Tier: domain.HostTierGold}))
	require.NoError(t, store.SetLaunchHost(ctx, created.ID, "host-1"))
	confirmed := now.Add(-time.Hour)
	require.NoError(t, store.CreateHandoffPack(ctx, domain.HostHandoffPack{
		ID: "handoff-1", LaunchID: created.ID, HostID: "host-1", HostConfirmed: true, ConfirmedAt: &confirmed,
	}))

	health := &fakeHealth{signals: allHealthy()}
	notifier := &recordingNotifier{}
	svc := NewService(Deps{
		Launches:  store,
		Packs:     store,
		Streams:   store,
		Hosts:     store,
		Readiness: store,
		Health:    health,
		Advancer:  launches,
		Locker:    locker,
		Notifier:  notifier,
		Clock:     clock,
		Log:       zerolog.Nop(),
	}, 0)
	return fixture{svc: svc, store: store, health: health, notifier: notifier, launchID: created.ID}
}

func checksFromMask(mask int) domain.ReadinessChecks {
	return domain.ReadinessChecks{
		TestStreamsPass:      mask&1 != 0,
		TestStreamsExpired:   mask&2 == 0,
		AssetsComplete:       mask&4 != 0,
		HostHandoffConfirmed: mask&8 != 0,
		HealthSignals: domain.HealthSignals{
			InventoryAvailable:    mask&16 != 0,
			PaymentGatewayHealthy: mask&32 != 0,
			PlatformAccountActive: mask&64 != 0,
		},
	}
}

func TestAssessReadyOnlyWhenAllChecksPass(t *testing.T) {
	for mask := 0; mask < 128; mask++ {
		a := Assess(checksFromMask(mask))
		require.Equal(t, mask == 127, a.IsReady, "маска %07b", mask)
	}
}

func TestAssessSingleFlipDropsOneSeventh(t *testing.T) {
	full := Assess(checksFromMask(127))
	require.Equal(t, 100, full.OverallReadiness)
	require.Equal(t, domain.RiskLow, full.RiskLevel)
	require.Empty(t, full.RiskFactors)

	for bit := 0; bit < 7; bit++ {
		a := Assess(checksFromMask(127 &^ (1 << bit)))
		require.False(t, a.IsReady)
		require.Equal(t, 86, a.OverallReadiness, "бит %d", bit)
		require.Len(t, a.RiskFactors, 1)
	}
}

func TestAssessRiskEscalation(t *testing.T) {
	cases := []struct {
		name string
		mask int
		want domain.RiskLevel
	}{
		{name: "всё пройдено", mask: 127, want: domain.RiskLow},
		{name: "нет GO", mask: 127 &^ 1, want: domain.RiskCritical},
		{name: "протухший GO", mask: 127 &^ 2, want: domain.RiskHigh},
		{name: "нет материалов", mask: 127 &^ 4, want: domain.RiskHigh},
		{name: "нет передачи", mask: 127 &^ 8, want: domain.RiskMedium},
		{name: "нет передачи и материалов", mask: 127 &^ 12, want: domain.RiskHigh},
		{name: "критичное не понижается", mask: 127 &^ 15, want: domain.RiskCritical},
		{name: "только здоровье", mask: 15, want: domain.RiskLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Assess(checksFromMask(tc.mask)).RiskLevel)
		})
	}
}

func TestCheckAllPassing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	record, err := f.svc.Check(ctx, f.launchID)
	require.NoError(t, err)
	require.True(t, record.IsReady)
	require.Equal(t, 100, record.OverallReadiness)
	require.True(t, record.ComplianceApproved)
	require.Equal(t, domain.GuardPending, record.GuardStatus)
	require.NotNil(t, record.LastGoVerdictAt)

	stored, err := f.svc.Get(ctx, f.launchID)
	require.NoError(t, err)
	require.Equal(t, record.OverallReadiness, stored.OverallReadiness)
}

func TestCheckStaleGoVerdict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stream, err := f.store.GetTestStream(ctx, "ts-1")
	require.NoError(t, err)
	old := now.Add(-121 * time.Minute)
	stream.EndedAt = &old
	require.NoError(t, f.store.UpdateTestStream(ctx, stream))

	record, err := f.svc.Check(ctx, f.launchID)
	require.NoError(t, err)
	require.True(t, record.TestStreamsPass)
	require.True(t, record.TestStreamsExpired)
	require.False(t, record.IsReady)
	require.Equal(t, domain.RiskHigh, record.RiskLevel)
}

func TestCheckHealthErrorCountsAsFailing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.health.err = errors.New("inventory timeout")

	record, err := f.svc.Check(ctx, f.launchID)
	require.NoError(t, err)
	require.False(t, record.InventoryAvailable)
	require.False(t, record.PaymentGatewayHealthy)
	require.False(t, record.PlatformAccountActive)
	require.Equal(t, 57, record.OverallReadiness)
}

func TestArmFailsForEveryFailingCombination(t *testing.T) {
	ctx := context.Background()
	for mask := 0; mask < 127; mask++ {
		f := newFixture(t)
		c := checksFromMask(mask)
		f.health.signals = c.HealthSignals
		if !c.TestStreamsPass {
			stream, err := f.store.GetTestStream(ctx, "ts-1")
			require.NoError(t, err)
			stream.Verdict = domain.VerdictNoGo
			require.NoError(t, f.store.UpdateTestStream(ctx, stream))
		} else if c.TestStreamsExpired {
			stream, err := f.store.GetTestStream(ctx, "ts-1")
			require.NoError(t, err)
			old := now.Add(-3 * time.Hour)
			stream.EndedAt = &old
			require.NoError(t, f.store.UpdateTestStream(ctx, stream))
		}
		if !c.AssetsComplete {
			_, err := f.store.SaveAssetPack(ctx, domain.AssetPack{ID: "pack-1", LaunchID: f.launchID, Platform: "tiktok", Status: domain.AssetPackStatusFailed})
			require.NoError(t, err)
		}
		if !c.HostHandoffConfirmed {
			pack, err := f.store.GetHandoffPack(ctx, "handoff-1")
			require.NoError(t, err)
			pack.HostConfirmed = false
			require.NoError(t, f.store.UpdateHandoffPack(ctx, pack))
		}

		_, err := f.svc.Arm(ctx, f.launchID)
		require.True(t, errors.Is(err, domain.ErrNotReady), "маска %07b", mask)
		require.True(t, errors.Is(err, domain.ErrPreconditionFailed))

		l, err := f.store.GetLaunch(ctx, f.launchID)
		require.NoError(t, err)
		require.Equal(t, domain.LaunchStatusTestStreaming, l.Status)
	}
}

func TestArmAdvancesLaunch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	record, err := f.svc.Arm(ctx, f.launchID)
	require.NoError(t, err)
	require.Equal(t, domain.GuardArmed, record.GuardStatus)

	l, err := f.store.GetLaunch(ctx, f.launchID)
	require.NoError(t, err)
	require.Equal(t, domain.LaunchStatusReady, l.Status)

	_, err = f.svc.Arm(ctx, f.launchID)
	require.True(t, errors.Is(err, domain.ErrAlreadyArmed))

	rechecked, err := f.svc.Check(ctx, f.launchID)
	require.NoError(t, err)
	require.Equal(t, domain.GuardArmed, rechecked.GuardStatus)
}

func TestConcurrentArmSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Arm(ctx, f.launchID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrConcurrencyConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
	require.Equal(t, callers-1, conflicts)

	l, err := f.store.GetLaunch(ctx, f.launchID)
	require.NoError(t, err)
	require.Equal(t, domain.LaunchStatusReady, l.Status)
}

func TestOverrideKeepsEvaluation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.health.signals.PaymentGatewayHealthy = false

	before, err := f.svc.Check(ctx, f.launchID)
	require.NoError(t, err)
	require.False(t, before.IsReady)

	record, err := f.svc.Override(ctx, f.launchID, "payment provider degraded, manual checkout", "ops-lead")
	require.NoError(t, err)
	require.True(t, record.ManualOverride)
	require.Equal(t, before.IsReady, record.IsReady)
	require.Equal(t, before.OverallReadiness, record.OverallReadiness)
	require.Equal(t, domain.GuardOverridden, record.GuardStatus)
	require.Equal(t, "ops-lead", record.OverrideBy)
	require.NotNil(t, record.OverrideAt)
	require.True(t, record.AllowsGoLive())
	require.Len(t, f.notifier.alerts, 1)

	l, err := f.store.GetLaunch(ctx, f.launchID)
	require.NoError(t, err)
	require.Equal(t, domain.LaunchStatusReady, l.Status)

	rechecked, err := f.svc.Check(ctx, f.launchID)
	require.NoError(t, err)
	require.True(t, rechecked.ManualOverride)
	require.Equal(t, domain.GuardOverridden, rechecked.GuardStatus)
}

func TestOverrideValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Override(ctx, f.launchID, "  ", "ops-lead")
	require.True(t, errors.Is(err, domain.ErrValidation))
	_, err = f.svc.Override(ctx, f.launchID, "reason", "")
	require.True(t, errors.Is(err, domain.ErrValidation))

	_, err = f.svc.Get(ctx, f.launchID)
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

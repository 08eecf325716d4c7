package launch

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
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PipelineEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.PipelineEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	store  *memstore.Store
	jobs   *queue.MemoryJobQueue
	events *recordingPublisher
	trend  domain.TrendProduct
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memstore.New()
	trend := domain.TrendProduct{
		ID:                  "trend-1",
		TrendFacts:          domain.TrendFacts{Name: "Mini projector", Source: "tiktok", SourceURL: "https://example.com/p", SourceCostCents: 1000, SuggestedPriceCents: 2999},
		ShippingCostCents:   150,
		ProfitMarginCents:   1582,
		OverallScore:        90,
		Status:              domain.TrendStatusShortlisted,
		DiscoveredAt:        now,
	}
	require.NoError(t, store.CreateTrend(context.Background(), trend))
	clock := fixedClock{now: now}
	jobs := queue.NewMemoryJobQueue(clock)
	events := &recordingPublisher{}
	svc := NewService(store, store, jobs, lock.NewMemoryLocker(time.Second), events, clock, zerolog.Nop())
	return fixture{svc: svc, store: store, jobs: jobs, events: events, trend: trend}
}

func TestCreateSnapshotsTrendAndMarksLaunched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	date := now.Add(48 * time.Hour)

	launch, err := f.svc.Create(ctx, f.trend.ID, "", date)
	require.NoError(t, err)
	require.Equal(t, domain.LaunchStatusPlanned, launch.Status)
	require.Equal(t, "Mini projector", launch.Name)
	require.Equal(t, date.Add(7*24*time.Hour), launch.EndDate)
	require.Equal(t, int64(1582), launch.Product.ProfitMarginCents)

	trend, err := f.store.GetTrend(ctx, f.trend.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TrendStatusLaunched, trend.Status)

	trend.SourceCostCents = 9999
	require.NoError(t, f.store.UpdateTrend(ctx, trend))
	stored, err := f.svc.Get(ctx, launch.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), stored.Product.SourceCostCents, "снимок не должен зависеть от тренда")

	_, err = f.svc.Create(ctx, f.trend.ID, "again", date)
	require.True(t, errors.Is(err, domain.ErrPreconditionFailed))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.trend.ID, "x", time.Time{})
	require.True(t, errors.Is(err, domain.ErrValidation))
	_, err = f.svc.Create(context.Background(), "missing", "x", now)
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAdvanceIsLinear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	launch, err := f.svc.Create(ctx, f.trend.ID, "", now)
	require.NoError(t, err)

	_, err = f.svc.Advance(ctx, launch.ID, domain.LaunchStatusReady)
	require.True(t, errors.Is(err, domain.ErrPreconditionFailed), "нельзя перепрыгивать этапы")

	for _, to := range []domain.LaunchStatus{
		domain.LaunchStatusAssetsGenerating,
		domain.LaunchStatusTestStreaming,
		domain.LaunchStatusReady,
	} {
		advanced, err := f.svc.Advance(ctx, launch.ID, to)
		require.NoError(t, err)
		require.Equal(t, to, advanced.Status)
	}

	same, err := f.svc.Advance(ctx, launch.ID, domain.LaunchStatusTestStreaming)
	require.NoError(t, err)
	require.Equal(t, domain.LaunchStatusReady, same.Status, "возврат назад — пустая операция")

	_, err = f.svc.Advance(ctx, launch.ID, domain.LaunchStatusPlanned)
	require.True(t, errors.Is(err, domain.ErrValidation))

	var transitions int
	for _, e := range f.events.events {
		if e.Event == domain.EventLaunchStatusChanged {
			transitions++
		}
	}
	require.Equal(t, 4, transitions, "создание и три перехода")
}

func TestCancelStopsQueuedJobsAndBlocksAdvance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	launch, err := f.svc.Create(ctx, f.trend.ID, "", now)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.jobs.Enqueue(ctx, domain.AutomationJob{LaunchID: launch.ID, JobType: domain.JobAssetGeneration})
		require.NoError(t, err)
	}

	_, err = f.svc.Cancel(ctx, launch.ID, "")
	require.True(t, errors.Is(err, domain.ErrValidation))

	cancelled, err := f.svc.Cancel(ctx, launch.ID, "supplier out of stock")
	require.NoError(t, err)
	require.Equal(t, domain.LaunchStatusCancelled, cancelled.Status)
	require.Equal(t, "supplier out of stock", cancelled.CancelReason)

	queued, err := f.jobs.List(ctx, domain.JobFilter{LaunchID: launch.ID, Status: domain.JobStatusQueued})
	require.NoError(t, err)
	require.Empty(t, queued)

	_, err = f.svc.Advance(ctx, launch.ID, domain.LaunchStatusAssetsGenerating)
	require.True(t, errors.Is(err, domain.ErrPreconditionFailed))
}

func TestCancelRejectedOnceLive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	launch, err := f.svc.Create(ctx, f.trend.ID, "", now)
	require.NoError(t, err)
	for _, to := range []domain.LaunchStatus{
		domain.LaunchStatusAssetsGenerating,
		domain.LaunchStatusTestStreaming,
		domain.LaunchStatusReady,
		domain.LaunchStatusLive,
	} {
		_, err := f.svc.Advance(ctx, launch.ID, to)
		require.NoError(t, err)
	}
	_, err = f.svc.Cancel(ctx, launch.ID, "late")
	require.True(t, errors.Is(err, domain.ErrPreconditionFailed))
}

func TestConcurrentAdvanceTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	launch, err := f.svc.Create(ctx, f.trend.ID, "", now)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Advance(ctx, launch.ID, domain.LaunchStatusAssetsGenerating)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var transitions int
	for _, e := range f.events.events {
		if e.Event == domain.EventLaunchStatusChanged && e.Metadata["to"] == string(domain.LaunchStatusAssetsGenerating) {
			transitions++
		}
	}
	require.Equal(t, 1, transitions)
}

package teststream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"trend-launch/internal/adapters/broadcast"
	"trend-launch/internal/adapters/memstore"
	"trend-launch/internal/domain"
	"trend-launch/internal/infra/lock"
	"trend-launch/internal/infra/queue"
	"trend-launch/internal/usecase/launch"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var now = time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    *memstore.Store
	jobs     *queue.MemoryJobQueue
	provider *broadcast.Stub
	launchID string
	packID   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	clock := fixedClock{now: now}
	locker := lock.NewMemoryLocker(time.Second)
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
	pack, err := store.SaveAssetPack(ctx, domain.AssetPack{ID: "pack-1", LaunchID: created.ID, Platform: "tiktok", Status: domain.AssetPackStatusReady})
	require.NoError(t, err)

	provider := broadcast.NewStub()
	svc := NewService(store, store, store, provider, launches, jobs, locker, clock, zerolog.Nop())
	return fixture{svc: svc, store: store, jobs: jobs, provider: provider, launchID: created.ID, packID: pack.ID}
}

func TestEnqueueCreatesStreamJobAndAdvances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	stream, err := f.svc.Enqueue(ctx, f.launchID, f.packID, 30)
	require.NoError(t, err)
	require.Equal(t, domain.TestStreamStatusQueued, stream.Status)

	jobs, err := f.jobs.List(ctx, domain.JobFilter{LaunchID: f.launchID})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, domain.JobTestStream, jobs[0].JobType)
	payload, err := jobs[0].DecodePayload()
	require.NoError(t, err)
	require.Equal(t, stream.ID, payload.TestStreamID)

	launch, err := f.store.GetLaunch(ctx, f.launchID)
	require.NoError(t, err)
	require.Equal(t, domain.LaunchStatusTestStreaming, launch.Status)
}

func TestEnqueueValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, minutes := range []int{0, -5, 121} {
		_, err := f.svc.Enqueue(ctx, f.launchID, f.packID, minutes)
		require.True(t, errors.Is(err, domain.ErrValidation), "длительность %d", minutes)
	}
	_, err := f.svc.Enqueue(ctx, f.launchID, "missing", 10)
	require.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = f.store.SaveAssetPack(ctx, domain.AssetPack{ID: "pack-2", LaunchID: f.launchID, Platform: "youtube", Status: domain.AssetPackStatusFailed})
	require.NoError(t, err)
	_, err = f.svc.Enqueue(ctx, f.launchID, "pack-2", 10)
	require.True(t, errors.Is(err, domain.ErrPreconditionFailed))

	_, err = f.store.SaveAssetPack(ctx, domain.AssetPack{ID: "foreign", LaunchID: "other", Platform: "tiktok", Status: domain.AssetPackStatusReady})
	require.NoError(t, err)
	_, err = f.svc.Enqueue(ctx, f.launchID, "foreign", 10)
	require.True(t, errors.Is(err, domain.ErrValidation))
}

func TestRunAndVerdictLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stream, err := f.svc.Enqueue(ctx, f.launchID, f.packID, 15)
	require.NoError(t, err)

	running, err := f.svc.Run(ctx, stream.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TestStreamStatusRunning, running.Status)
	require.NotEmpty(t, running.RoomID)
	room, ok := f.provider.Room(running.RoomID)
	require.True(t, ok)
	require.True(t, room.Room.Private)
	require.True(t, room.Live)

	again, err := f.svc.Run(ctx, stream.ID)
	require.NoError(t, err)
	require.Equal(t, running.RoomID, again.RoomID, "повторный запуск не создаёт новую комнату")

	_, err = f.svc.RecordVerdict(ctx, stream.ID, "MAYBE", "")
	require.True(t, errors.Is(err, domain.ErrValidation))

	done, err := f.svc.RecordVerdict(ctx, stream.ID, domain.VerdictGo, "clean run")
	require.NoError(t, err)
	require.Equal(t, domain.TestStreamStatusCompleted, done.Status)
	require.Equal(t, domain.VerdictGo, done.Verdict)
	require.NotNil(t, done.EndedAt)
	require.Equal(t, now, *done.EndedAt)
	room, _ = f.provider.Room(running.RoomID)
	require.True(t, room.Stopped)

	_, err = f.svc.RecordVerdict(ctx, stream.ID, domain.VerdictNoGo, "")
	require.True(t, errors.Is(err, domain.ErrPreconditionFailed))
}

func TestVerdictSurvivesProviderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stream, err := f.svc.Enqueue(ctx, f.launchID, f.packID, 15)
	require.NoError(t, err)
	_, err = f.svc.Run(ctx, stream.ID)
	require.NoError(t, err)

	f.provider.Err = errors.New("provider down")
	done, err := f.svc.RecordVerdict(ctx, stream.ID, domain.VerdictNeedsRevision, "audio drift")
	require.NoError(t, err)
	require.Equal(t, domain.VerdictNeedsRevision, done.Verdict)
}

func TestRunSurfacesProviderError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stream, err := f.svc.Enqueue(ctx, f.launchID, f.packID, 15)
	require.NoError(t, err)

	f.provider.Err = errors.New("quota exceeded")
	_, err = f.svc.Run(ctx, stream.ID)
	require.True(t, errors.Is(err, domain.ErrExternalDependency))

	stored, err := f.svc.Get(ctx, stream.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TestStreamStatusQueued, stored.Status)
}

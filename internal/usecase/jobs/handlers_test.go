package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"trend-launch/internal/adapters/memstore"
	"trend-launch/internal/domain"
	"trend-launch/internal/infra/lock"
	"trend-launch/internal/usecase/hosts"
)

func TestPipelineRecordsHostPerformance(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	clock := &tickingClock{now: time.Date(2025, 3, 7, 8, 0, 0, 0, time.UTC)}
	hostSvc := hosts.NewService(store, store, store, store, lock.NewMemoryLocker(time.Second), clock, zerolog.Nop())
	host, err := hostSvc.Register(ctx, domain.HostProfile{Name: "Anna", CommissionPercent: 0.1})
	require.NoError(t, err)
	require.NoError(t, store.CreateLiveShow(ctx, domain.LiveShow{
		ID: "show-1", LaunchID: "launch-1", HostID: host.ID, Status: domain.LiveShowStatusEnded,
		PeakViewers: 500, Purchases: 10, RevenueCents: 29990,
	}))

	q := newQueue()
	w := NewWorker(q, nil, nil, zerolog.Nop(), Options{})
	RegisterPipeline(w, Services{Hosts: hostSvc})

	var ids []string
	for i := 0; i < 2; i++ {
		job, err := domain.NewJob(domain.JobHostPerformance, domain.JobPayload{LaunchID: "launch-1", ShowID: "show-1", HostID: host.ID})
		require.NoError(t, err)
		job, err = q.Enqueue(ctx, job)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	for range ids {
		processed, err := w.ProcessOne(ctx)
		require.NoError(t, err)
		require.True(t, processed)
	}
	for _, id := range ids {
		job, err := q.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, domain.JobStatusCompleted, job.Status)
	}

	stored, err := hostSvc.Get(ctx, host.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.TotalShows)
	require.Equal(t, int64(500), stored.TotalViewers)
	require.Equal(t, int64(2999), stored.TotalEarnedCents)
}

package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trend-launch/internal/domain"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestQueue() *MemoryJobQueue {
	return NewMemoryJobQueue(&stepClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
}

func TestClaimOrdersByPriorityThenEnqueueTime(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()
	low, err := q.Enqueue(ctx, domain.AutomationJob{JobType: domain.JobClipExtraction, Priority: 5})
	require.NoError(t, err)
	firstUrgent, err := q.Enqueue(ctx, domain.AutomationJob{JobType: domain.JobBroadcastStart, Priority: 1})
	require.NoError(t, err)
	secondUrgent, err := q.Enqueue(ctx, domain.AutomationJob{JobType: domain.JobBroadcastStop, Priority: 1})
	require.NoError(t, err)

	var order []string
	for i := 0; i < 3; i++ {
		job, err := q.Claim(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.JobStatusRunning, job.Status)
		require.NotNil(t, job.StartedAt)
		order = append(order, job.ID)
	}
	require.Equal(t, []string{firstUrgent.ID, secondUrgent.ID, low.ID}, order)

	_, err = q.Claim(ctx)
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestEnqueueRejectsEmptyType(t *testing.T) {
	_, err := newTestQueue().Enqueue(context.Background(), domain.AutomationJob{})
	require.True(t, errors.Is(err, domain.ErrValidation))
}

func TestConcurrentClaimsNeverShareJob(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()
	const total = 50
	for i := 0; i < total; i++ {
		_, err := q.Enqueue(ctx, domain.AutomationJob{JobType: domain.JobTestStream, Priority: i % 3})
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := q.Claim(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, total)
	for id, n := range seen {
		require.Equal(t, 1, n, "задача %s выдана %d раз", id, n)
	}
}

func TestCancelByLaunchSkipsRunningAndForeignJobs(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()
	running, err := q.Enqueue(ctx, domain.AutomationJob{JobType: domain.JobAssetGeneration, LaunchID: "L1", Priority: 0})
	require.NoError(t, err)
	_, err = q.Claim(ctx)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, domain.AutomationJob{JobType: domain.JobTestStream, LaunchID: "L1", Priority: 1})
	require.NoError(t, err)
	foreign, err := q.Enqueue(ctx, domain.AutomationJob{JobType: domain.JobTestStream, LaunchID: "L2", Priority: 1})
	require.NoError(t, err)

	n, err := q.CancelByLaunch(ctx, "L1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := q.Get(ctx, running.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusRunning, got.Status)

	next, err := q.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, foreign.ID, next.ID)
}

func TestFailKeepsJobWithCause(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()
	job, err := q.Enqueue(ctx, domain.AutomationJob{JobType: domain.JobBroadcastProvision})
	require.NoError(t, err)

	err = q.Fail(ctx, job.ID, "boom")
	require.True(t, errors.Is(err, domain.ErrPreconditionFailed), "нельзя завершить задачу до Claim")

	_, err = q.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, job.ID, "boom"))

	failed, err := q.List(ctx, domain.JobFilter{Status: domain.JobStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "boom", failed[0].LastError)
	require.NotNil(t, failed[0].FinishedAt)

	_, err = q.Claim(ctx)
	require.True(t, errors.Is(err, domain.ErrNotFound), "упавшая задача не должна повторяться")
}

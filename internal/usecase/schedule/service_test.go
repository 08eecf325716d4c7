package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/cache"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type fakeCollector struct {
	sinces []time.Time
	err    error
}

func (f *fakeCollector) Collect(_ context.Context, _ domain.TrendSource, since time.Time) (int, error) {
	f.sinces = append(f.sinces, since)
	return 2, f.err
}

type nopSource struct{}

func (nopSource) Collect(context.Context, time.Time) ([]domain.TrendFacts, error) { return nil, nil }

type fakeShortlist struct {
	calls int
	err   error
}

func (f *fakeShortlist) Generate(_ context.Context, minScore int) (domain.DailyShortlist, error) {
	f.calls++
	if f.err != nil {
		return domain.DailyShortlist{}, f.err
	}
	return domain.DailyShortlist{ID: "s1", MinScore: minScore}, nil
}

type fakeLive struct{ calls int }

func (f *fakeLive) SyncAllLive(context.Context) (int, error) { f.calls++; return 1, nil }

func newScheduler(t *testing.T, clock *fixedClock, collector *fakeCollector, list *fakeShortlist, tz string) *Scheduler {
	t.Helper()
	s, err := NewScheduler(collector, nopSource{}, list, &fakeLive{}, cache.NewMemory(), clock, zerolog.Nop(), Options{
		ShortlistHour: 6,
		Timezone:      tz,
		MinScore:      70,
	})
	require.NoError(t, err)
	return s
}

func TestPollTrendsAdvancesCursor(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	collector := &fakeCollector{}
	s := newScheduler(t, clock, collector, &fakeShortlist{}, "UTC")
	ctx := context.Background()

	n, err := s.PollTrends(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, clock.now.Add(-24*time.Hour), collector.sinces[0])

	first := clock.now
	clock.now = clock.now.Add(15 * time.Minute)
	_, err = s.PollTrends(ctx)
	require.NoError(t, err)
	require.Equal(t, first, collector.sinces[1])
}

func TestPollTrendsKeepsCursorOnError(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	collector := &fakeCollector{err: errors.New("boom")}
	s := newScheduler(t, clock, collector, &fakeShortlist{}, "UTC")
	ctx := context.Background()

	_, err := s.PollTrends(ctx)
	require.Error(t, err)
	clock.now = clock.now.Add(time.Hour)
	_, _ = s.PollTrends(ctx)
	require.Equal(t, collector.sinces[0], collector.sinces[1])
}

func TestDailyShortlistOncePerLocalDay(t *testing.T) {
	// 02:30 UTC — 05:30 в Москве, ещё рано.
	clock := &fixedClock{now: time.Date(2025, 3, 1, 2, 30, 0, 0, time.UTC)}
	list := &fakeShortlist{}
	s := newScheduler(t, clock, &fakeCollector{}, list, "europe/moscow")
	ctx := context.Background()

	ran, err := s.DailyShortlist(ctx)
	require.NoError(t, err)
	require.False(t, ran)

	clock.now = clock.now.Add(time.Hour)
	ran, err = s.DailyShortlist(ctx)
	require.NoError(t, err)
	require.True(t, ran)
	ran, err = s.DailyShortlist(ctx)
	require.NoError(t, err)
	require.False(t, ran)
	require.Equal(t, 1, list.calls)

	clock.now = clock.now.Add(24 * time.Hour)
	ran, err = s.DailyShortlist(ctx)
	require.NoError(t, err)
	require.True(t, ran)
	require.Equal(t, 2, list.calls)
}

func TestDailyShortlistEmptyCountsAsDone(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)}
	list := &fakeShortlist{err: domain.ErrEmptyShortlist}
	s := newScheduler(t, clock, &fakeCollector{}, list, "UTC")

	ran, err := s.DailyShortlist(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	ran, err = s.DailyShortlist(context.Background())
	require.NoError(t, err)
	require.False(t, ran)
}

func TestDailyShortlistRetriesAfterFailure(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)}
	list := &fakeShortlist{err: errors.New("db down")}
	s := newScheduler(t, clock, &fakeCollector{}, list, "UTC")

	_, err := s.DailyShortlist(context.Background())
	require.Error(t, err)
	list.err = nil
	ran, err := s.DailyShortlist(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
}

func TestNewSchedulerValidates(t *testing.T) {
	_, err := NewScheduler(&fakeCollector{}, nil, &fakeShortlist{}, &fakeLive{}, cache.NewMemory(), nil, zerolog.Nop(), Options{Timezone: "Mars/Olympus"})
	require.ErrorIs(t, err, ErrInvalidTimezone)

	_, err = NewScheduler(&fakeCollector{}, nil, &fakeShortlist{}, &fakeLive{}, cache.NewMemory(), nil, zerolog.Nop(), Options{ShortlistHour: 24})
	require.Error(t, err)
}

func TestNormalizeTimezone(t *testing.T) {
	cases := map[string]string{
		"":                 "UTC",
		"Europe/Moscow":    "Europe/Moscow",
		"europe/moscow":    "Europe/Moscow",
		"america/new york": "America/New_York",
	}
	for in, want := range cases {
		got, err := normalizeTimezone(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
}

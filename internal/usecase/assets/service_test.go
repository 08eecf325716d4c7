package assets

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
	"trend-launch/internal/infra/queue"
	"trend-launch/internal/usecase/launch"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeGenerator struct {
	scripts     domain.PresenterScripts
	playbook    domain.ModeratorPlaybook
	scriptsErr  error
	playbookErr error
	calls       int
}

func (g *fakeGenerator) GenerateScripts(context.Context, domain.ContentRequest) (domain.PresenterScripts, error) {
	g.calls++
	return g.scripts, g.scriptsErr
}

func (g *fakeGenerator) GenerateModeratorPlaybook(context.Context, domain.ContentRequest) (domain.ModeratorPlaybook, error) {
	g.calls++
	return g.playbook, g.playbookErr
}

func goodScripts() domain.PresenterScripts {
	return domain.PresenterScripts{
		domain.SegmentDemo:      "Watch it blend frozen fruit in ten seconds.",
		domain.SegmentObjection: "Worried about noise? It runs quieter than a kettle.",
		domain.SegmentTrust:     "Over two thousand five-star reviews.",
		domain.SegmentOffer:     "Today only: free shipping on every order.",
		domain.SegmentQA:        "Ask us anything about charging and cleaning.",
	}
}

type fixture struct {
	svc      *Service
	store    *memstore.Store
	jobs     *queue.MemoryJobQueue
	gen      *fakeGenerator
	launchID string
}

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	clock := fixedClock{now: now}
	locker := lock.NewMemoryLocker(time.Second)
	jobs := queue.NewMemoryJobQueue(clock)
	require.NoError(t, store.CreateTrend(ctx, domain.TrendProduct{
		ID:         "trend-1",
		TrendFacts: domain.TrendFacts{Name: "Blender", Source: "tiktok", SourceURL: "https://example.com/b"},
		Status:     domain.TrendStatusShortlisted,
	}))
	launches := launch.NewService(store, store, jobs, locker, nil, clock, zerolog.Nop())
	created, err := launches.Create(ctx, "trend-1", "", now)
	require.NoError(t, err)

	gen := &fakeGenerator{
		scripts:  goodScripts(),
		playbook: domain.ModeratorPlaybook{PinnedComments: []string{"Free shipping today"}, ProhibitedPhrases: []string{"miracle cure"}},
	}
	svc := NewService(store, store, gen, launches, jobs, locker, clock, zerolog.Nop(), time.Second)
	return fixture{svc: svc, store: store, jobs: jobs, gen: gen, launchID: created.ID}
}

func TestGeneratePersistsReadyPackAndAdvancesLaunch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pack, err := f.svc.Generate(ctx, f.launchID, "TikTok")
	require.NoError(t, err)
	require.Equal(t, domain.AssetPackStatusReady, pack.Status)
	require.Equal(t, "tiktok", pack.Platform)
	require.Equal(t, Disclosure, pack.Disclosure)
	require.True(t, pack.ComplianceApproved)
	require.Equal(t, 1, pack.Version)
	require.Len(t, pack.Scripts, 5)

	stored, err := f.store.GetLaunch(ctx, f.launchID)
	require.NoError(t, err)
	require.Equal(t, domain.LaunchStatusAssetsGenerating, stored.Status)

	again, err := f.svc.Generate(ctx, f.launchID, "tiktok")
	require.NoError(t, err)
	require.Equal(t, pack.ID, again.ID, "повторная генерация обновляет пакет той же платформы")
	require.Equal(t, 2, again.Version)

	_, err = f.svc.Generate(ctx, f.launchID, "instagram")
	require.NoError(t, err)
	packs, err := f.svc.List(ctx, f.launchID)
	require.NoError(t, err)
	require.Len(t, packs, 2)
}

func TestGenerateIsAllOrNothing(t *testing.T) {
	cases := map[string]func(g *fakeGenerator){
		"ошибка сценариев":  func(g *fakeGenerator) { g.scriptsErr = errors.New("timeout") },
		"ошибка плейбука":   func(g *fakeGenerator) { g.playbookErr = errors.New("rate limited") },
		"пустой сегмент":    func(g *fakeGenerator) { g.scripts[domain.SegmentQA] = "  " },
		"нет сегмента":      func(g *fakeGenerator) { delete(g.scripts, domain.SegmentTrust) },
		"запрещённая фраза": func(g *fakeGenerator) { g.scripts[domain.SegmentOffer] = "A Miracle Cure for mornings" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			mutate(f.gen)

			_, err := f.svc.Generate(ctx, f.launchID, "tiktok")
			require.True(t, errors.Is(err, domain.ErrAssetGenerationFailed), "получили %v", err)
			require.True(t, errors.Is(err, domain.ErrExternalDependency))

			packs, err := f.svc.List(ctx, f.launchID)
			require.NoError(t, err)
			require.Empty(t, packs)

			stored, err := f.store.GetLaunch(ctx, f.launchID)
			require.NoError(t, err)
			require.Equal(t, domain.LaunchStatusPlanned, stored.Status)
		})
	}
}

func TestRequestEnqueuesJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Request(ctx, f.launchID, "")
	require.True(t, errors.Is(err, domain.ErrValidation))
	_, err = f.svc.Request(ctx, "missing", "tiktok")
	require.True(t, errors.Is(err, domain.ErrNotFound))

	job, err := f.svc.Request(ctx, f.launchID, "tiktok")
	require.NoError(t, err)
	require.Equal(t, domain.JobAssetGeneration, job.JobType)
	payload, err := job.DecodePayload()
	require.NoError(t, err)
	require.Equal(t, f.launchID, payload.LaunchID)
	require.Equal(t, "tiktok", payload.Platform)
	require.Zero(t, f.gen.calls, "генератор вызывается только обработчиком задачи")
}

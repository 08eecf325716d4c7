// Package memstore реализует репозитории конвейера в памяти процесса.
// Используется в тестах и при APP_ENV=dev без Postgres.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trend-launch/internal/domain"
)

// Store хранит все сущности конвейера.
type Store struct {
	mu sync.RWMutex

	trends     map[string]domain.TrendProduct
	shortlists []domain.DailyShortlist
	launches   map[string]domain.Launch
	packs      map[string]domain.AssetPack
	streams    map[string]domain.TestStream
	readiness  map[string]domain.GoLiveReadiness
	hosts      map[string]domain.Host
	handoffs   map[string]domain.HostHandoffPack
	shows      map[string]domain.LiveShow
	timestamps map[string][]domain.LiveShowTimestamp
	clips      map[string][]domain.PostLiveClip
	profit     map[string][]domain.ProfitTracking
}

var (
	_ domain.TrendRepo      = (*Store)(nil)
	_ domain.ShortlistRepo  = (*Store)(nil)
	_ domain.LaunchRepo     = (*Store)(nil)
	_ domain.AssetPackRepo  = (*Store)(nil)
	_ domain.TestStreamRepo = (*Store)(nil)
	_ domain.ReadinessRepo  = (*Store)(nil)
	_ domain.HostRepo       = (*Store)(nil)
	_ domain.LiveShowRepo   = (*Store)(nil)
	_ domain.ProfitRepo     = (*Store)(nil)
)

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		trends:     make(map[string]domain.TrendProduct),
		launches:   make(map[string]domain.Launch),
		packs:      make(map[string]domain.AssetPack),
		streams:    make(map[string]domain.TestStream),
		readiness:  make(map[string]domain.GoLiveReadiness),
		hosts:      make(map[string]domain.Host),
		handoffs:   make(map[string]domain.HostHandoffPack),
		shows:      make(map[string]domain.LiveShow),
		timestamps: make(map[string][]domain.LiveShowTimestamp),
		clips:      make(map[string][]domain.PostLiveClip),
		profit:     make(map[string][]domain.ProfitTracking),
	}
}

// CreateTrend реализует domain.TrendRepo.
func (s *Store) CreateTrend(_ context.Context, trend domain.TrendProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trends[trend.ID]; ok {
		return domain.Validationf("trend %s already exists", trend.ID)
	}
	s.trends[trend.ID] = cloneTrend(trend)
	return nil
}

// GetTrend реализует domain.TrendRepo.
func (s *Store) GetTrend(_ context.Context, id string) (domain.TrendProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trend, ok := s.trends[id]
	if !ok {
		return domain.TrendProduct{}, domain.NotFoundf("trend %s", id)
	}
	return cloneTrend(trend), nil
}

// GetTrendByURL реализует domain.TrendRepo.
func (s *Store) GetTrendByURL(_ context.Context, sourceURL string) (domain.TrendProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, trend := range s.trends {
		if trend.SourceURL == sourceURL {
			return cloneTrend(trend), nil
		}
	}
	return domain.TrendProduct{}, domain.NotFoundf("trend with url %s", sourceURL)
}

// UpdateTrend реализует domain.TrendRepo.
func (s *Store) UpdateTrend(_ context.Context, trend domain.TrendProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trends[trend.ID]; !ok {
		return domain.NotFoundf("trend %s", trend.ID)
	}
	s.trends[trend.ID] = cloneTrend(trend)
	return nil
}

// UpdateTrendIfStatus реализует domain.TrendRepo.
func (s *Store) UpdateTrendIfStatus(_ context.Context, trend domain.TrendProduct, status domain.TrendStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.trends[trend.ID]
	if !ok {
		return domain.NotFoundf("trend %s", trend.ID)
	}
	if current.Status != status {
		return fmt.Errorf("%w: trend %s is no longer %s", domain.ErrConcurrencyConflict, trend.ID, status)
	}
	s.trends[trend.ID] = cloneTrend(trend)
	return nil
}

// ListTrends реализует domain.TrendRepo. Сортировка: оценка по убыванию, затем время обнаружения.
func (s *Store) ListTrends(_ context.Context, filter domain.TrendFilter) ([]domain.TrendProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TrendProduct, 0, len(s.trends))
	for _, trend := range s.trends {
		if filter.Status != "" && trend.Status != filter.Status {
			continue
		}
		if trend.OverallScore < filter.MinScore {
			continue
		}
		out = append(out, cloneTrend(trend))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OverallScore != out[j].OverallScore {
			return out[i].OverallScore > out[j].OverallScore
		}
		return out[i].DiscoveredAt.Before(out[j].DiscoveredAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CommitShortlist реализует domain.ShortlistRepo. Повышаются только тренды, всё ещё находящиеся в ANALYZING.
func (s *Store) CommitShortlist(_ context.Context, shortlist domain.DailyShortlist, promoted []domain.TrendProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, trend := range promoted {
		current, ok := s.trends[trend.ID]
		if !ok {
			return domain.NotFoundf("trend %s", trend.ID)
		}
		if current.Status != domain.TrendStatusAnalyzing {
			return fmt.Errorf("%w: trend %s is %s", domain.ErrConcurrencyConflict, trend.ID, current.Status)
		}
	}
	for _, trend := range promoted {
		current := cloneTrend(s.trends[trend.ID])
		current.Status = domain.TrendStatusShortlisted
		if trend.Rank != nil {
			rank := *trend.Rank
			current.Rank = &rank
		}
		current.UpdatedAt = trend.UpdatedAt
		s.trends[trend.ID] = current
	}
	shortlist.Entries = append([]domain.ShortlistEntry(nil), shortlist.Entries...)
	s.shortlists = append(s.shortlists, shortlist)
	return nil
}

// LatestShortlist реализует domain.ShortlistRepo.
func (s *Store) LatestShortlist(_ context.Context) (domain.DailyShortlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.shortlists) == 0 {
		return domain.DailyShortlist{}, domain.NotFoundf("shortlist")
	}
	latest := s.shortlists[len(s.shortlists)-1]
	latest.Entries = append([]domain.ShortlistEntry(nil), latest.Entries...)
	return latest, nil
}

// CreateLaunch реализует domain.LaunchRepo.
func (s *Store) CreateLaunch(_ context.Context, launch domain.Launch, source domain.TrendProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.trends[source.ID]
	if !ok {
		return domain.NotFoundf("trend %s", source.ID)
	}
	switch current.Status {
	case domain.TrendStatusLaunched, domain.TrendStatusRejected, domain.TrendStatusArchived:
		return fmt.Errorf("%w: trend %s is %s", domain.ErrConcurrencyConflict, source.ID, current.Status)
	}
	current.Status = domain.TrendStatusLaunched
	current.UpdatedAt = source.UpdatedAt
	s.launches[launch.ID] = launch
	s.trends[source.ID] = current
	return nil
}

// GetLaunch реализует domain.LaunchRepo.
func (s *Store) GetLaunch(_ context.Context, id string) (domain.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	launch, ok := s.launches[id]
	if !ok {
		return domain.Launch{}, domain.NotFoundf("launch %s", id)
	}
	return launch, nil
}

// ListLaunches реализует domain.LaunchRepo.
func (s *Store) ListLaunches(_ context.Context, filter domain.LaunchFilter) ([]domain.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Launch, 0, len(s.launches))
	for _, launch := range s.launches {
		if filter.Status != "" && launch.Status != filter.Status {
			continue
		}
		out = append(out, launch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LaunchDate.Before(out[j].LaunchDate) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateLaunchStatus реализует domain.LaunchRepo.
func (s *Store) UpdateLaunchStatus(_ context.Context, id string, from, to domain.LaunchStatus, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	launch, ok := s.launches[id]
	if !ok {
		return domain.NotFoundf("launch %s", id)
	}
	if launch.Status != from {
		return domain.ErrConcurrencyConflict
	}
	launch.Status = to
	launch.UpdatedAt = at
	if to == domain.LaunchStatusCancelled {
		launch.CancelReason = reason
	}
	s.launches[id] = launch
	return nil
}

// SetLaunchHost реализует domain.LaunchRepo.
func (s *Store) SetLaunchHost(_ context.Context, id, hostID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	launch, ok := s.launches[id]
	if !ok {
		return domain.NotFoundf("launch %s", id)
	}
	launch.HostID = hostID
	s.launches[id] = launch
	return nil
}

func cloneTrend(t domain.TrendProduct) domain.TrendProduct {
	if t.CompetitionScore != nil {
		v := *t.CompetitionScore
		t.CompetitionScore = &v
	}
	if t.Rank != nil {
		v := *t.Rank
		t.Rank = &v
	}
	return t
}

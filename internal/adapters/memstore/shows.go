package memstore

import (
	"context"
	"sort"

	"trend-launch/internal/domain"
)

// CreateHost реализует domain.HostRepo.
func (s *Store) CreateHost(_ context.Context, host domain.Host) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts[host.ID] = host
	return nil
}

// GetHost реализует domain.HostRepo.
func (s *Store) GetHost(_ context.Context, id string) (domain.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	host, ok := s.hosts[id]
	if !ok {
		return domain.Host{}, domain.NotFoundf("host %s", id)
	}
	return host, nil
}

// UpdateHost реализует domain.HostRepo.
func (s *Store) UpdateHost(_ context.Context, host domain.Host) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hosts[host.ID]; !ok {
		return domain.NotFoundf("host %s", host.ID)
	}
	s.hosts[host.ID] = host
	return nil
}

// ListHosts реализует domain.HostRepo.
func (s *Store) ListHosts(_ context.Context) ([]domain.Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Host, 0, len(s.hosts))
	for _, host := range s.hosts {
		out = append(out, host)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OverallScore > out[j].OverallScore })
	return out, nil
}

// CreateHandoffPack реализует domain.HostRepo.
func (s *Store) CreateHandoffPack(_ context.Context, pack domain.HostHandoffPack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handoffs[pack.ID] = pack
	return nil
}

// GetHandoffPack реализует domain.HostRepo.
func (s *Store) GetHandoffPack(_ context.Context, id string) (domain.HostHandoffPack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pack, ok := s.handoffs[id]
	if !ok {
		return domain.HostHandoffPack{}, domain.NotFoundf("handoff pack %s", id)
	}
	return pack, nil
}

// UpdateHandoffPack реализует domain.HostRepo.
func (s *Store) UpdateHandoffPack(_ context.Context, pack domain.HostHandoffPack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handoffs[pack.ID]; !ok {
		return domain.NotFoundf("handoff pack %s", pack.ID)
	}
	s.handoffs[pack.ID] = pack
	return nil
}

// ListHandoffPacks реализует domain.HostRepo.
func (s *Store) ListHandoffPacks(_ context.Context, launchID string) ([]domain.HostHandoffPack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.HostHandoffPack
	for _, pack := range s.handoffs {
		if pack.LaunchID == launchID {
			out = append(out, pack)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// RecordHostPerformance реализует domain.HostRepo.
func (s *Store) RecordHostPerformance(_ context.Context, host domain.Host, show domain.LiveShow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.shows[show.ID]
	if !ok {
		return domain.NotFoundf("live show %s", show.ID)
	}
	if stored.PerformanceRecordedAt != nil {
		return domain.ErrConcurrencyConflict
	}
	if _, ok := s.hosts[host.ID]; !ok {
		return domain.NotFoundf("host %s", host.ID)
	}
	stored.PerformanceRecordedAt = show.PerformanceRecordedAt
	s.shows[show.ID] = stored
	s.hosts[host.ID] = host
	return nil
}

// CreateLiveShow реализует domain.LiveShowRepo.
func (s *Store) CreateLiveShow(_ context.Context, show domain.LiveShow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	show.RunOfShow = append([]domain.RunOfShowSegment(nil), show.RunOfShow...)
	s.shows[show.ID] = show
	return nil
}

// GetLiveShow реализует domain.LiveShowRepo.
func (s *Store) GetLiveShow(_ context.Context, id string) (domain.LiveShow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	show, ok := s.shows[id]
	if !ok {
		return domain.LiveShow{}, domain.NotFoundf("live show %s", id)
	}
	show.RunOfShow = append([]domain.RunOfShowSegment(nil), show.RunOfShow...)
	return show, nil
}

// UpdateLiveShow реализует domain.LiveShowRepo.
func (s *Store) UpdateLiveShow(_ context.Context, show domain.LiveShow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shows[show.ID]; !ok {
		return domain.NotFoundf("live show %s", show.ID)
	}
	show.RunOfShow = append([]domain.RunOfShowSegment(nil), show.RunOfShow...)
	s.shows[show.ID] = show
	return nil
}

// ListLiveShows реализует domain.LiveShowRepo.
func (s *Store) ListLiveShows(_ context.Context, filter domain.LiveShowFilter) ([]domain.LiveShow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LiveShow
	for _, show := range s.shows {
		if filter.LaunchID != "" && show.LaunchID != filter.LaunchID {
			continue
		}
		if filter.Status != "" && show.Status != filter.Status {
			continue
		}
		out = append(out, show)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AddTimestamp реализует domain.LiveShowRepo.
func (s *Store) AddTimestamp(_ context.Context, ts domain.LiveShowTimestamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timestamps[ts.ShowID] = append(s.timestamps[ts.ShowID], ts)
	return nil
}

// ListTimestamps реализует domain.LiveShowRepo.
func (s *Store) ListTimestamps(_ context.Context, showID string) ([]domain.LiveShowTimestamp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.LiveShowTimestamp(nil), s.timestamps[showID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OffsetSeconds < out[j].OffsetSeconds })
	return out, nil
}

// ReplaceClips реализует domain.LiveShowRepo.
func (s *Store) ReplaceClips(_ context.Context, showID string, clips []domain.PostLiveClip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips[showID] = append([]domain.PostLiveClip(nil), clips...)
	return nil
}

// ListClips реализует domain.LiveShowRepo.
func (s *Store) ListClips(_ context.Context, showID string) ([]domain.PostLiveClip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.PostLiveClip(nil), s.clips[showID]...), nil
}

// AppendProfit реализует domain.ProfitRepo.
func (s *Store) AppendProfit(_ context.Context, record domain.ProfitTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profit[record.LaunchID] = append(s.profit[record.LaunchID], record)
	return nil
}

// ListProfit реализует domain.ProfitRepo.
func (s *Store) ListProfit(_ context.Context, launchID string) ([]domain.ProfitTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ProfitTracking(nil), s.profit[launchID]...), nil
}

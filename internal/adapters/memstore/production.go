package memstore

import (
	"context"
	"sort"

	"trend-launch/internal/domain"
)

// SaveAssetPack реализует domain.AssetPackRepo.
func (s *Store) SaveAssetPack(_ context.Context, pack domain.AssetPack) (domain.AssetPack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.packs {
		if existing.LaunchID == pack.LaunchID && existing.Platform == pack.Platform {
			pack.ID = id
			pack.CreatedAt = existing.CreatedAt
			pack.Version = existing.Version + 1
			s.packs[id] = clonePack(pack)
			return clonePack(pack), nil
		}
	}
	if pack.Version == 0 {
		pack.Version = 1
	}
	s.packs[pack.ID] = clonePack(pack)
	return clonePack(pack), nil
}

// GetAssetPack реализует domain.AssetPackRepo.
func (s *Store) GetAssetPack(_ context.Context, id string) (domain.AssetPack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pack, ok := s.packs[id]
	if !ok {
		return domain.AssetPack{}, domain.NotFoundf("asset pack %s", id)
	}
	return clonePack(pack), nil
}

// ListAssetPacks реализует domain.AssetPackRepo.
func (s *Store) ListAssetPacks(_ context.Context, launchID string) ([]domain.AssetPack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AssetPack
	for _, pack := range s.packs {
		if pack.LaunchID == launchID {
			out = append(out, clonePack(pack))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

// CreateTestStream реализует domain.TestStreamRepo.
func (s *Store) CreateTestStream(_ context.Context, stream domain.TestStream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[stream.ID] = stream
	return nil
}

// GetTestStream реализует domain.TestStreamRepo.
func (s *Store) GetTestStream(_ context.Context, id string) (domain.TestStream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream, ok := s.streams[id]
	if !ok {
		return domain.TestStream{}, domain.NotFoundf("test stream %s", id)
	}
	return stream, nil
}

// UpdateTestStream реализует domain.TestStreamRepo.
func (s *Store) UpdateTestStream(_ context.Context, stream domain.TestStream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[stream.ID]; !ok {
		return domain.NotFoundf("test stream %s", stream.ID)
	}
	s.streams[stream.ID] = stream
	return nil
}

// ListTestStreams реализует domain.TestStreamRepo.
func (s *Store) ListTestStreams(_ context.Context, launchID string) ([]domain.TestStream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TestStream
	for _, stream := range s.streams {
		if stream.LaunchID == launchID {
			out = append(out, stream)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpsertReadiness реализует domain.ReadinessRepo.
func (s *Store) UpsertReadiness(_ context.Context, readiness domain.GoLiveReadiness) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	readiness.RiskFactors = append([]string(nil), readiness.RiskFactors...)
	s.readiness[readiness.LaunchID] = readiness
	return nil
}

// GetReadiness реализует domain.ReadinessRepo.
func (s *Store) GetReadiness(_ context.Context, launchID string) (domain.GoLiveReadiness, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	readiness, ok := s.readiness[launchID]
	if !ok {
		return domain.GoLiveReadiness{}, domain.NotFoundf("readiness for launch %s", launchID)
	}
	readiness.RiskFactors = append([]string(nil), readiness.RiskFactors...)
	return readiness, nil
}

func clonePack(p domain.AssetPack) domain.AssetPack {
	scripts := make(domain.PresenterScripts, len(p.Scripts))
	for k, v := range p.Scripts {
		scripts[k] = v
	}
	p.Scripts = scripts
	quick := make(map[string]string, len(p.Playbook.QuickResponses))
	for k, v := range p.Playbook.QuickResponses {
		quick[k] = v
	}
	p.Playbook.QuickResponses = quick
	p.Playbook.PinnedComments = append([]string(nil), p.Playbook.PinnedComments...)
	p.Playbook.ProhibitedPhrases = append([]string(nil), p.Playbook.ProhibitedPhrases...)
	return p
}

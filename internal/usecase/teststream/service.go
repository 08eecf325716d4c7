package teststream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
)

const (
	// MinDurationMinutes и MaxDurationMinutes ограничивают длительность репетиции.
	MinDurationMinutes = 1
	MaxDurationMinutes = 120

	providerTimeout = 30 * time.Second
)

// Service планирует репетиции и принимает по ним вердикты.
type Service struct {
	launches  domain.LaunchRepo
	packs     domain.AssetPackRepo
	streams   domain.TestStreamRepo
	broadcast domain.BroadcastProvider
	advancer  domain.LaunchAdvancer
	jobs      domain.JobQueue
	locker    domain.Locker
	clock     domain.Clock
	log       zerolog.Logger
}

// NewService создаёт координатор репетиций.
func NewService(launches domain.LaunchRepo, packs domain.AssetPackRepo, streams domain.TestStreamRepo, broadcast domain.BroadcastProvider, advancer domain.LaunchAdvancer, jobs domain.JobQueue, locker domain.Locker, clock domain.Clock, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Service{
		launches:  launches,
		packs:     packs,
		streams:   streams,
		broadcast: broadcast,
		advancer:  advancer,
		jobs:      jobs,
		locker:    locker,
		clock:     clock,
		log:       logger.With().Str("component", "teststream").Logger(),
	}
}

// Enqueue создаёт репетицию в QUEUED, ставит задачу и переводит запуск в TEST_STREAMING.
func (s *Service) Enqueue(ctx context.Context, launchID, assetPackID string, durationMinutes int) (domain.TestStream, error) {
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return domain.TestStream{}, domain.Validationf("duration must be within [%d,%d] minutes", MinDurationMinutes, MaxDurationMinutes)
	}
	launch, err := s.launches.GetLaunch(ctx, launchID)
	if err != nil {
		return domain.TestStream{}, fmt.Errorf("получение запуска: %w", err)
	}
	if launch.Status.Terminal() || launch.Status.Stage() >= domain.LaunchStatusLive.Stage() {
		return domain.TestStream{}, domain.Preconditionf("launch %s is %s", launchID, launch.Status)
	}
	pack, err := s.packs.GetAssetPack(ctx, assetPackID)
	if err != nil {
		return domain.TestStream{}, fmt.Errorf("получение пакета: %w", err)
	}
	if pack.LaunchID != launchID {
		return domain.TestStream{}, domain.Validationf("asset pack %s belongs to another launch", assetPackID)
	}
	if pack.Status != domain.AssetPackStatusReady {
		return domain.TestStream{}, domain.Preconditionf("asset pack %s is %s", assetPackID, pack.Status)
	}

	stream := domain.TestStream{
		ID:              uuid.NewString(),
		LaunchID:        launchID,
		AssetPackID:     assetPackID,
		DurationMinutes: durationMinutes,
		Status:          domain.TestStreamStatusQueued,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.streams.CreateTestStream(ctx, stream); err != nil {
		return domain.TestStream{}, fmt.Errorf("сохранение репетиции: %w", err)
	}
	job, err := domain.NewJob(domain.JobTestStream, domain.JobPayload{LaunchID: launchID, TestStreamID: stream.ID})
	if err != nil {
		return domain.TestStream{}, fmt.Errorf("сборка задачи: %w", err)
	}
	if _, err := s.jobs.Enqueue(ctx, job); err != nil {
		return domain.TestStream{}, fmt.Errorf("постановка репетиции: %w", err)
	}
	if _, err := s.advancer.Advance(ctx, launchID, domain.LaunchStatusTestStreaming); err != nil {
		return domain.TestStream{}, fmt.Errorf("продвижение запуска: %w", err)
	}
	s.log.Info().Str("launch_id", launchID).Str("test_stream_id", stream.ID).Int("minutes", durationMinutes).Msg("teststream: репетиция поставлена")
	return stream, nil
}

// Run поднимает приватную комнату у провайдера и переводит репетицию в RUNNING. Вызывается обработчиком задачи.
func (s *Service) Run(ctx context.Context, testStreamID string) (domain.TestStream, error) {
	release, err := s.locker.Acquire(ctx, "teststream:"+testStreamID)
	if err != nil {
		return domain.TestStream{}, err
	}
	defer release()

	stream, err := s.streams.GetTestStream(ctx, testStreamID)
	if err != nil {
		return domain.TestStream{}, fmt.Errorf("получение репетиции: %w", err)
	}
	if stream.Status != domain.TestStreamStatusQueued {
		return stream, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	room, err := s.broadcast.CreateRoom(callCtx, "rehearsal-"+stream.ID, true)
	if err != nil {
		return domain.TestStream{}, fmt.Errorf("%w: create rehearsal room: %v", domain.ErrExternalDependency, err)
	}
	if err := s.broadcast.StartBroadcast(callCtx, room.ID); err != nil {
		return domain.TestStream{}, fmt.Errorf("%w: start rehearsal: %v", domain.ErrExternalDependency, err)
	}

	now := s.clock.Now()
	stream.RoomID = room.ID
	stream.StartedAt = &now
	stream.Status = domain.TestStreamStatusRunning
	if err := s.streams.UpdateTestStream(ctx, stream); err != nil {
		return domain.TestStream{}, fmt.Errorf("обновление репетиции: %w", err)
	}
	return stream, nil
}

// RecordVerdict фиксирует решение по репетиции. Комната останавливается по возможности.
func (s *Service) RecordVerdict(ctx context.Context, testStreamID string, verdict domain.Verdict, reason string) (domain.TestStream, error) {
	if !verdict.Valid() {
		return domain.TestStream{}, domain.Validationf("unknown verdict %q", verdict)
	}
	release, err := s.locker.Acquire(ctx, "teststream:"+testStreamID)
	if err != nil {
		return domain.TestStream{}, err
	}
	defer release()

	stream, err := s.streams.GetTestStream(ctx, testStreamID)
	if err != nil {
		return domain.TestStream{}, fmt.Errorf("получение репетиции: %w", err)
	}
	if stream.Status != domain.TestStreamStatusQueued && stream.Status != domain.TestStreamStatusRunning {
		return domain.TestStream{}, domain.Preconditionf("test stream %s is %s", testStreamID, stream.Status)
	}

	if stream.RoomID != "" {
		stopCtx, cancel := context.WithTimeout(ctx, providerTimeout)
		if err := s.broadcast.StopBroadcast(stopCtx, stream.RoomID); err != nil {
			s.log.Warn().Err(err).Str("room_id", stream.RoomID).Msg("teststream: не удалось остановить комнату")
		}
		cancel()
	}

	now := s.clock.Now()
	if stream.EndedAt == nil {
		stream.EndedAt = &now
	}
	stream.Status = domain.TestStreamStatusCompleted
	stream.Verdict = verdict
	stream.VerdictReason = strings.TrimSpace(reason)
	if err := s.streams.UpdateTestStream(ctx, stream); err != nil {
		return domain.TestStream{}, fmt.Errorf("сохранение вердикта: %w", err)
	}
	s.log.Info().Str("test_stream_id", testStreamID).Str("verdict", string(verdict)).Msg("teststream: вердикт записан")
	return stream, nil
}

// Get возвращает репетицию.
func (s *Service) Get(ctx context.Context, testStreamID string) (domain.TestStream, error) {
	stream, err := s.streams.GetTestStream(ctx, testStreamID)
	if err != nil {
		return domain.TestStream{}, fmt.Errorf("получение репетиции: %w", err)
	}
	return stream, nil
}

// List возвращает репетиции запуска.
func (s *Service) List(ctx context.Context, launchID string) ([]domain.TestStream, error) {
	streams, err := s.streams.ListTestStreams(ctx, launchID)
	if err != nil {
		return nil, fmt.Errorf("список репетиций: %w", err)
	}
	return streams, nil
}

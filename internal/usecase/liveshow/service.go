// Package liveshow ведёт эфиры запуска: от комнаты у провайдера до нарезки клипов.
package liveshow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
)

const providerTimeout = 30 * time.Second

// segmentMinutes — фиксированные длительности сегментов, в сумме около семи минут на круг.
var segmentMinutes = map[domain.Segment]float64{
	domain.SegmentDemo:      1.5,
	domain.SegmentObjection: 1.0,
	domain.SegmentTrust:     1.5,
	domain.SegmentOffer:     1.5,
	domain.SegmentQA:        1.5,
}

// ReadinessChecker пересчитывает готовность запуска перед выходом в эфир.
type ReadinessChecker interface {
	Check(ctx context.Context, launchID string) (domain.GoLiveReadiness, error)
}

// CreateShowParams — параметры планирования эфира.
type CreateShowParams struct {
	LaunchID    string `json:"launch_id"`
	AssetPackID string `json:"asset_pack_id"`
	// HostID по умолчанию берётся из запуска.
	HostID string `json:"host_id,omitempty"`
}

// TimestampInput — отметка ведущего или модератора во время эфира.
type TimestampInput struct {
	// OffsetSeconds по умолчанию считается от начала эфира.
	OffsetSeconds *int           `json:"offset_seconds,omitempty"`
	Label         string         `json:"label"`
	ClipType      domain.Segment `json:"clip_type,omitempty"`
	Highlight     bool           `json:"highlight"`
}

// Service исполняет эфиры.
type Service struct {
	launches  domain.LaunchRepo
	packs     domain.AssetPackRepo
	shows     domain.LiveShowRepo
	readiness ReadinessChecker
	broadcast domain.BroadcastProvider
	advancer  domain.LaunchAdvancer
	jobs      domain.JobQueue
	locker    domain.Locker
	clock     domain.Clock
	log       zerolog.Logger
}

// NewService создаёт исполнителя эфиров.
func NewService(launches domain.LaunchRepo, packs domain.AssetPackRepo, shows domain.LiveShowRepo, readiness ReadinessChecker, broadcast domain.BroadcastProvider, advancer domain.LaunchAdvancer, jobs domain.JobQueue, locker domain.Locker, clock domain.Clock, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Service{
		launches:  launches,
		packs:     packs,
		shows:     shows,
		readiness: readiness,
		broadcast: broadcast,
		advancer:  advancer,
		jobs:      jobs,
		locker:    locker,
		clock:     clock,
		log:       logger.With().Str("component", "liveshow").Logger(),
	}
}

func lockKey(showID string) string { return "show:" + showID }

func (s *Service) enqueue(ctx context.Context, jobType domain.JobType, show domain.LiveShow) error {
	job, err := domain.NewJob(jobType, domain.JobPayload{LaunchID: show.LaunchID, ShowID: show.ID, HostID: show.HostID, Platform: show.Platform})
	if err != nil {
		return fmt.Errorf("сборка задачи %s: %w", jobType, err)
	}
	if _, err := s.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("постановка задачи %s: %w", jobType, err)
	}
	return nil
}

// RunOfShow копирует сценарии пакета в фиксированный таймлайн.
func RunOfShow(scripts domain.PresenterScripts) []domain.RunOfShowSegment {
	out := make([]domain.RunOfShowSegment, 0, len(domain.Segments))
	for i, segment := range domain.Segments {
		out = append(out, domain.RunOfShowSegment{
			Order:           i + 1,
			Segment:         segment,
			Script:          scripts[segment],
			DurationMinutes: segmentMinutes[segment],
		})
	}
	return out
}

// Create планирует эфир по готовому пакету материалов и ставит задачу подготовки комнаты.
func (s *Service) Create(ctx context.Context, params CreateShowParams) (domain.LiveShow, error) {
	if strings.TrimSpace(params.LaunchID) == "" || strings.TrimSpace(params.AssetPackID) == "" {
		return domain.LiveShow{}, domain.Validationf("launch_id and asset_pack_id are required")
	}
	launch, err := s.launches.GetLaunch(ctx, params.LaunchID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("получение запуска: %w", err)
	}
	if launch.Status.Terminal() {
		return domain.LiveShow{}, domain.Preconditionf("launch %s is %s", launch.ID, launch.Status)
	}
	pack, err := s.packs.GetAssetPack(ctx, params.AssetPackID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("получение пакета: %w", err)
	}
	if pack.LaunchID != launch.ID {
		return domain.LiveShow{}, domain.Validationf("asset pack %s belongs to another launch", pack.ID)
	}
	if pack.Status != domain.AssetPackStatusReady {
		return domain.LiveShow{}, domain.Preconditionf("asset pack %s is %s", pack.ID, pack.Status)
	}
	hostID := params.HostID
	if hostID == "" {
		hostID = launch.HostID
	}

	show := domain.LiveShow{
		ID:          uuid.NewString(),
		LaunchID:    launch.ID,
		AssetPackID: pack.ID,
		HostID:      hostID,
		Platform:    pack.Platform,
		RunOfShow:   RunOfShow(pack.Scripts),
		Status:      domain.LiveShowStatusScheduled,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.shows.CreateLiveShow(ctx, show); err != nil {
		return domain.LiveShow{}, fmt.Errorf("создание эфира: %w", err)
	}
	if err := s.enqueue(ctx, domain.JobBroadcastProvision, show); err != nil {
		return domain.LiveShow{}, err
	}
	s.log.Info().Str("launch_id", launch.ID).Str("show_id", show.ID).Str("platform", show.Platform).Msg("liveshow: эфир запланирован")
	return show, nil
}

// Provision создаёт публичную комнату у провайдера. Обработчик задачи broadcast_provision.
func (s *Service) Provision(ctx context.Context, showID string) (domain.LiveShow, error) {
	release, err := s.locker.Acquire(ctx, lockKey(showID))
	if err != nil {
		return domain.LiveShow{}, err
	}
	defer release()

	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("получение эфира: %w", err)
	}
	if show.RoomID != "" || show.Status == domain.LiveShowStatusEnded {
		return show, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	room, err := s.broadcast.CreateRoom(callCtx, "show-"+show.ID, false)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("%w: create room: %v", domain.ErrExternalDependency, err)
	}
	show.RoomID = room.ID
	if err := s.shows.UpdateLiveShow(ctx, show); err != nil {
		return domain.LiveShow{}, fmt.Errorf("обновление эфира: %w", err)
	}
	return show, nil
}

// Start выводит эфир в LIVE. Требует готовности запуска или задокументированного обхода.
func (s *Service) Start(ctx context.Context, showID string) (domain.LiveShow, error) {
	release, err := s.locker.Acquire(ctx, lockKey(showID))
	if err != nil {
		return domain.LiveShow{}, err
	}
	defer release()

	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("получение эфира: %w", err)
	}
	switch show.Status {
	case domain.LiveShowStatusLive:
		return show, nil
	case domain.LiveShowStatusEnded:
		return domain.LiveShow{}, domain.Preconditionf("show %s already ended", show.ID)
	}
	launch, err := s.launches.GetLaunch(ctx, show.LaunchID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("получение запуска: %w", err)
	}
	if launch.Status.Terminal() {
		return domain.LiveShow{}, domain.Preconditionf("launch %s is %s", launch.ID, launch.Status)
	}

	readiness, err := s.readiness.Check(ctx, show.LaunchID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("проверка готовности: %w", err)
	}
	if !readiness.AllowsGoLive() {
		return domain.LiveShow{}, fmt.Errorf("%w: readiness %d%%, risk %s, no override", domain.ErrNotReady, readiness.OverallReadiness, readiness.RiskLevel)
	}
	advanced, err := s.advancer.Advance(ctx, show.LaunchID, domain.LaunchStatusLive)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("продвижение запуска: %w", err)
	}
	// Advance не откатывает стадию: запуск мог завершиться между проверкой и продвижением.
	if advanced.Status != domain.LaunchStatusLive {
		return domain.LiveShow{}, domain.Preconditionf("launch %s is %s", advanced.ID, advanced.Status)
	}

	now := s.clock.Now()
	show.Status = domain.LiveShowStatusLive
	show.StartedAt = &now
	if err := s.shows.UpdateLiveShow(ctx, show); err != nil {
		return domain.LiveShow{}, fmt.Errorf("обновление эфира: %w", err)
	}
	if err := s.enqueue(ctx, domain.JobBroadcastStart, show); err != nil {
		return domain.LiveShow{}, err
	}
	s.log.Info().Str("launch_id", show.LaunchID).Str("show_id", show.ID).Bool("override", readiness.ManualOverride).Msg("liveshow: эфир начат")
	return show, nil
}

// StartBroadcast запускает трансляцию у провайдера. Обработчик задачи broadcast_start.
func (s *Service) StartBroadcast(ctx context.Context, showID string) error {
	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return fmt.Errorf("получение эфира: %w", err)
	}
	if show.Status != domain.LiveShowStatusLive {
		return nil
	}
	if show.RoomID == "" {
		if show, err = s.Provision(ctx, showID); err != nil {
			return err
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	if err := s.broadcast.StartBroadcast(callCtx, show.RoomID); err != nil {
		return fmt.Errorf("%w: start broadcast: %v", domain.ErrExternalDependency, err)
	}
	return nil
}

// End завершает эфир и ставит остановку, нарезку клипов, расчёт прибыли
// и учёт выступления ведущего.
// Запуск завершается, когда у него не осталось эфиров в LIVE.
func (s *Service) End(ctx context.Context, showID string) (domain.LiveShow, error) {
	release, err := s.locker.Acquire(ctx, lockKey(showID))
	if err != nil {
		return domain.LiveShow{}, err
	}
	defer release()

	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("получение эфира: %w", err)
	}
	switch show.Status {
	case domain.LiveShowStatusEnded:
		return show, nil
	case domain.LiveShowStatusScheduled:
		return domain.LiveShow{}, domain.Preconditionf("show %s has not started", show.ID)
	}

	now := s.clock.Now()
	show.Status = domain.LiveShowStatusEnded
	show.EndedAt = &now
	show.CurrentViewers = 0
	if err := s.shows.UpdateLiveShow(ctx, show); err != nil {
		return domain.LiveShow{}, fmt.Errorf("обновление эфира: %w", err)
	}
	followUps := []domain.JobType{domain.JobBroadcastStop, domain.JobClipExtraction, domain.JobProfitCalculation}
	if show.HostID != "" {
		followUps = append(followUps, domain.JobHostPerformance)
	}
	for _, jobType := range followUps {
		if err := s.enqueue(ctx, jobType, show); err != nil {
			return domain.LiveShow{}, err
		}
	}

	live, err := s.shows.ListLiveShows(ctx, domain.LiveShowFilter{LaunchID: show.LaunchID, Status: domain.LiveShowStatusLive})
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("список эфиров: %w", err)
	}
	if len(live) == 0 {
		if _, err := s.advancer.Advance(ctx, show.LaunchID, domain.LaunchStatusCompleted); err != nil {
			return domain.LiveShow{}, fmt.Errorf("завершение запуска: %w", err)
		}
	}
	s.log.Info().Str("launch_id", show.LaunchID).Str("show_id", show.ID).Int64("revenue_cents", show.RevenueCents).Msg("liveshow: эфир завершён")
	return show, nil
}

// StopBroadcast останавливает трансляцию у провайдера. Обработчик задачи broadcast_stop.
func (s *Service) StopBroadcast(ctx context.Context, showID string) error {
	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return fmt.Errorf("получение эфира: %w", err)
	}
	if show.RoomID == "" {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	if err := s.broadcast.StopBroadcast(callCtx, show.RoomID); err != nil {
		return fmt.Errorf("%w: stop broadcast: %v", domain.ErrExternalDependency, err)
	}
	return nil
}

// UpdateLiveMetrics зеркалит счётчики платформы. Пик зрителей только растёт.
func (s *Service) UpdateLiveMetrics(ctx context.Context, showID string, m domain.LiveMetrics) (domain.LiveShow, error) {
	if m.Viewers < 0 || m.Likes < 0 || m.Purchases < 0 || m.RevenueCents < 0 {
		return domain.LiveShow{}, domain.Validationf("live metrics must be non-negative")
	}
	release, err := s.locker.Acquire(ctx, lockKey(showID))
	if err != nil {
		return domain.LiveShow{}, err
	}
	defer release()

	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("получение эфира: %w", err)
	}
	if show.Status == domain.LiveShowStatusScheduled {
		return domain.LiveShow{}, domain.Preconditionf("show %s has not started", show.ID)
	}
	applyMetrics(&show, m)
	if err := s.shows.UpdateLiveShow(ctx, show); err != nil {
		return domain.LiveShow{}, fmt.Errorf("обновление эфира: %w", err)
	}
	return show, nil
}

func applyMetrics(show *domain.LiveShow, m domain.LiveMetrics) {
	show.CurrentViewers = m.Viewers
	if m.Viewers > show.PeakViewers {
		show.PeakViewers = m.Viewers
	}
	show.Likes = m.Likes
	show.Purchases = m.Purchases
	show.RevenueCents = m.RevenueCents
}

// SyncViewers подтягивает число зрителей из комнаты провайдера.
func (s *Service) SyncViewers(ctx context.Context, showID string) (domain.LiveShow, error) {
	release, err := s.locker.Acquire(ctx, lockKey(showID))
	if err != nil {
		return domain.LiveShow{}, err
	}
	defer release()

	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("получение эфира: %w", err)
	}
	if show.Status != domain.LiveShowStatusLive || show.RoomID == "" {
		return show, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	participants, err := s.broadcast.ListParticipants(callCtx, show.RoomID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("%w: list participants: %v", domain.ErrExternalDependency, err)
	}
	show.CurrentViewers = int64(participants)
	if show.CurrentViewers > show.PeakViewers {
		show.PeakViewers = show.CurrentViewers
	}
	if err := s.shows.UpdateLiveShow(ctx, show); err != nil {
		return domain.LiveShow{}, fmt.Errorf("обновление эфира: %w", err)
	}
	return show, nil
}

// SyncAllLive обновляет зрителей всех идущих эфиров. Ошибки отдельных эфиров логируются.
func (s *Service) SyncAllLive(ctx context.Context) (int, error) {
	live, err := s.shows.ListLiveShows(ctx, domain.LiveShowFilter{Status: domain.LiveShowStatusLive})
	if err != nil {
		return 0, fmt.Errorf("список эфиров: %w", err)
	}
	synced := 0
	for _, show := range live {
		if _, err := s.SyncViewers(ctx, show.ID); err != nil {
			s.log.Warn().Err(err).Str("show_id", show.ID).Msg("liveshow: синхронизация зрителей не удалась")
			continue
		}
		synced++
	}
	return synced, nil
}

// MarkTimestamp сохраняет отметку эфира для фабрики клипов.
func (s *Service) MarkTimestamp(ctx context.Context, showID string, in TimestampInput) (domain.LiveShowTimestamp, error) {
	if in.ClipType != "" && !knownSegment(in.ClipType) {
		return domain.LiveShowTimestamp{}, domain.Validationf("unknown clip type %q", in.ClipType)
	}
	if in.OffsetSeconds != nil && *in.OffsetSeconds < 0 {
		return domain.LiveShowTimestamp{}, domain.Validationf("offset must be non-negative")
	}
	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return domain.LiveShowTimestamp{}, fmt.Errorf("получение эфира: %w", err)
	}
	if show.Status == domain.LiveShowStatusScheduled || show.StartedAt == nil {
		return domain.LiveShowTimestamp{}, domain.Preconditionf("show %s has not started", show.ID)
	}

	now := s.clock.Now()
	offset := 0
	if in.OffsetSeconds != nil {
		offset = *in.OffsetSeconds
	} else if elapsed := now.Sub(*show.StartedAt); elapsed > 0 {
		offset = int(elapsed / time.Second)
	}
	ts := domain.LiveShowTimestamp{
		ID:            uuid.NewString(),
		ShowID:        show.ID,
		OffsetSeconds: offset,
		Label:         strings.TrimSpace(in.Label),
		ClipType:      in.ClipType,
		Highlight:     in.Highlight,
		CreatedAt:     now,
	}
	if err := s.shows.AddTimestamp(ctx, ts); err != nil {
		return domain.LiveShowTimestamp{}, fmt.Errorf("сохранение отметки: %w", err)
	}
	return ts, nil
}

func knownSegment(segment domain.Segment) bool {
	for _, known := range domain.Segments {
		if known == segment {
			return true
		}
	}
	return false
}

// Get возвращает эфир.
func (s *Service) Get(ctx context.Context, showID string) (domain.LiveShow, error) {
	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return domain.LiveShow{}, fmt.Errorf("получение эфира: %w", err)
	}
	return show, nil
}

// List возвращает эфиры по фильтру.
func (s *Service) List(ctx context.Context, filter domain.LiveShowFilter) ([]domain.LiveShow, error) {
	shows, err := s.shows.ListLiveShows(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("список эфиров: %w", err)
	}
	return shows, nil
}

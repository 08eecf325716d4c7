package liveshow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trend-launch/internal/domain"
)

// PlanClips строит по клипу на каждый канонический тип. Без подходящей отметки клип начинается с нуля.
// Публикация по одному клипу в день после эфира.
func PlanClips(show domain.LiveShow, timestamps []domain.LiveShowTimestamp, sourceURL string, now time.Time) []domain.PostLiveClip {
	base := now
	if show.EndedAt != nil {
		base = *show.EndedAt
	}
	window := int(domain.ClipDuration / time.Second)
	clips := make([]domain.PostLiveClip, 0, len(domain.Segments))
	for i, clipType := range domain.Segments {
		start := 0
		for _, ts := range timestamps {
			if ts.Highlight && ts.ClipType == clipType {
				start = ts.OffsetSeconds
				break
			}
		}
		clips = append(clips, domain.PostLiveClip{
			ID:                 uuid.NewString(),
			ShowID:             show.ID,
			ClipType:           clipType,
			StartOffsetSeconds: start,
			EndOffsetSeconds:   start + window,
			SourceURL:          sourceURL,
			ScheduledFor:       base.Add(time.Duration(i+1) * 24 * time.Hour),
			CreatedAt:          now,
		})
	}
	return clips
}

// ExtractClips нарезает клипы завершённого эфира. Повторный вызов заменяет прежние клипы.
func (s *Service) ExtractClips(ctx context.Context, showID string) ([]domain.PostLiveClip, error) {
	release, err := s.locker.Acquire(ctx, lockKey(showID))
	if err != nil {
		return nil, err
	}
	defer release()

	show, err := s.shows.GetLiveShow(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("получение эфира: %w", err)
	}
	if show.Status != domain.LiveShowStatusEnded {
		return nil, domain.Preconditionf("show %s is %s, clips are cut after the show ends", show.ID, show.Status)
	}
	timestamps, err := s.shows.ListTimestamps(ctx, show.ID)
	if err != nil {
		return nil, fmt.Errorf("список отметок: %w", err)
	}

	if show.RecordingURL == "" && show.RoomID != "" {
		if url := s.recordingURL(ctx, show.RoomID); url != "" {
			show.RecordingURL = url
			if err := s.shows.UpdateLiveShow(ctx, show); err != nil {
				return nil, fmt.Errorf("обновление эфира: %w", err)
			}
		}
	}

	clips := PlanClips(show, timestamps, show.RecordingURL, s.clock.Now())
	if err := s.shows.ReplaceClips(ctx, show.ID, clips); err != nil {
		return nil, fmt.Errorf("сохранение клипов: %w", err)
	}
	s.log.Info().Str("show_id", show.ID).Int("clips", len(clips)).Msg("liveshow: клипы нарезаны")
	return clips, nil
}

func (s *Service) recordingURL(ctx context.Context, roomID string) string {
	callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	recordings, err := s.broadcast.ListRecordings(callCtx, roomID)
	if err != nil {
		s.log.Warn().Err(err).Str("room_id", roomID).Msg("liveshow: записи недоступны, клипы без источника")
		return ""
	}
	for _, rec := range recordings {
		if rec.URL != "" {
			return rec.URL
		}
	}
	return ""
}

// Clips возвращает клипы эфира.
func (s *Service) Clips(ctx context.Context, showID string) ([]domain.PostLiveClip, error) {
	clips, err := s.shows.ListClips(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("список клипов: %w", err)
	}
	return clips, nil
}

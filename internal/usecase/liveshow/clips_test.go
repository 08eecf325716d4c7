package liveshow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trend-launch/internal/domain"
)

func TestPlanClipsWithoutHighlightsStartsAtZero(t *testing.T) {
	ended := now.Add(time.Hour)
	show := domain.LiveShow{ID: "show-1", Status: domain.LiveShowStatusEnded, EndedAt: &ended}
	timestamps := []domain.LiveShowTimestamp{
		{OffsetSeconds: 120, ClipType: domain.SegmentDemo, Highlight: false},
		{OffsetSeconds: 300, Label: "без типа", Highlight: true},
	}

	clips := PlanClips(show, timestamps, "", now)
	require.Len(t, clips, 5)
	for i, clip := range clips {
		require.Equal(t, domain.Segments[i], clip.ClipType)
		require.Equal(t, 0, clip.StartOffsetSeconds)
		require.Equal(t, 30, clip.EndOffsetSeconds-clip.StartOffsetSeconds)
		require.Equal(t, ended.Add(time.Duration(i+1)*24*time.Hour), clip.ScheduledFor)
	}
}

func TestPlanClipsUsesFirstHighlightOfType(t *testing.T) {
	show := domain.LiveShow{ID: "show-1"}
	timestamps := []domain.LiveShowTimestamp{
		{OffsetSeconds: 95, ClipType: domain.SegmentOffer, Highlight: true},
		{OffsetSeconds: 200, ClipType: domain.SegmentOffer, Highlight: true},
		{OffsetSeconds: 40, ClipType: domain.SegmentQA, Highlight: false},
	}

	clips := PlanClips(show, timestamps, "https://cdn/rec.mp4", now)
	byType := map[domain.Segment]domain.PostLiveClip{}
	for _, clip := range clips {
		byType[clip.ClipType] = clip
		require.Equal(t, "https://cdn/rec.mp4", clip.SourceURL)
	}
	require.Equal(t, 95, byType[domain.SegmentOffer].StartOffsetSeconds)
	require.Equal(t, 125, byType[domain.SegmentOffer].EndOffsetSeconds)
	require.Equal(t, 0, byType[domain.SegmentQA].StartOffsetSeconds)
}

func TestExtractClipsReplacesAndUsesRecording(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	show, err := f.svc.Create(ctx, CreateShowParams{LaunchID: f.launchID, AssetPackID: f.packID})
	require.NoError(t, err)
	_, err = f.svc.Provision(ctx, show.ID)
	require.NoError(t, err)

	_, err = f.svc.ExtractClips(ctx, show.ID)
	require.ErrorIs(t, err, domain.ErrPreconditionFailed)

	_, err = f.svc.Start(ctx, show.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.StartBroadcast(ctx, show.ID))
	offset := 75
	_, err = f.svc.MarkTimestamp(ctx, show.ID, TimestampInput{OffsetSeconds: &offset, Label: "trust", ClipType: domain.SegmentTrust, Highlight: true})
	require.NoError(t, err)
	_, err = f.svc.End(ctx, show.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.StopBroadcast(ctx, show.ID))

	clips, err := f.svc.ExtractClips(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, clips, 5)
	require.Equal(t, 75, clips[2].StartOffsetSeconds)
	require.Contains(t, clips[0].SourceURL, ".mp4")

	again, err := f.svc.ExtractClips(ctx, show.ID)
	require.NoError(t, err)
	stored, err := f.svc.Clips(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, stored, 5)
	require.Equal(t, again[0].ID, stored[0].ID)
}

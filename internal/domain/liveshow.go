package domain

import "time"

// ClipDuration — длина окна каждого клипа.
const ClipDuration = 30 * time.Second

// LiveShowStatus — состояние эфира.
type LiveShowStatus string

const (
	LiveShowStatusScheduled LiveShowStatus = "SCHEDULED"
	LiveShowStatusLive      LiveShowStatus = "LIVE"
	LiveShowStatusEnded     LiveShowStatus = "ENDED"
)

// RunOfShowSegment — сегмент фиксированного таймлайна эфира.
type RunOfShowSegment struct {
	Order           int     `json:"order"`
	Segment         Segment `json:"segment"`
	Script          string  `json:"script"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// LiveMetrics — зеркало счётчиков внешней платформы.
type LiveMetrics struct {
	Viewers      int64 `json:"viewers"`
	Likes        int64 `json:"likes"`
	Purchases    int64 `json:"purchases"`
	RevenueCents int64 `json:"revenue_cents"`
}

// LiveShow — исполнение эфира.
type LiveShow struct {
	ID                    string             `json:"id"`
	LaunchID              string             `json:"launch_id"`
	AssetPackID           string             `json:"asset_pack_id"`
	HostID                string             `json:"host_id,omitempty"`
	Platform              string             `json:"platform"`
	RunOfShow             []RunOfShowSegment `json:"run_of_show"`
	Status                LiveShowStatus     `json:"status"`
	CurrentViewers        int64              `json:"current_viewers"`
	PeakViewers           int64              `json:"peak_viewers"`
	Likes                 int64              `json:"likes"`
	Purchases             int64              `json:"purchases"`
	RevenueCents          int64              `json:"revenue_cents"`
	RoomID                string             `json:"room_id,omitempty"`
	RecordingURL          string             `json:"recording_url,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	StartedAt             *time.Time         `json:"started_at,omitempty"`
	EndedAt               *time.Time         `json:"ended_at,omitempty"`
	PerformanceRecordedAt *time.Time         `json:"performance_recorded_at,omitempty"`
}

// LiveShowFilter задаёт выборку эфиров.
type LiveShowFilter struct {
	LaunchID string
	Status   LiveShowStatus
}

// LiveShowTimestamp — отметка времени в эфире для фабрики клипов.
type LiveShowTimestamp struct {
	ID            string    `json:"id"`
	ShowID        string    `json:"show_id"`
	OffsetSeconds int       `json:"offset_seconds"`
	Label         string    `json:"label"`
	ClipType      Segment   `json:"clip_type,omitempty"`
	Highlight     bool      `json:"highlight"`
	CreatedAt     time.Time `json:"created_at"`
}

// PostLiveClip — нарезанный после эфира клип.
type PostLiveClip struct {
	ID                 string    `json:"id"`
	ShowID             string    `json:"show_id"`
	ClipType           Segment   `json:"clip_type"`
	StartOffsetSeconds int       `json:"start_offset_seconds"`
	EndOffsetSeconds   int       `json:"end_offset_seconds"`
	SourceURL          string    `json:"source_url,omitempty"`
	ScheduledFor       time.Time `json:"scheduled_for"`
	CreatedAt          time.Time `json:"created_at"`
}

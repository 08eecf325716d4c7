package domain

import "time"

// TestStreamStatus — состояние репетиции.
type TestStreamStatus string

const (
	TestStreamStatusQueued    TestStreamStatus = "QUEUED"
	TestStreamStatusRunning   TestStreamStatus = "RUNNING"
	TestStreamStatusCompleted TestStreamStatus = "COMPLETED"
	TestStreamStatusCancelled TestStreamStatus = "CANCELLED"
)

// Verdict — решение по итогам репетиции.
type Verdict string

const (
	VerdictGo            Verdict = "GO"
	VerdictNoGo          Verdict = "NO_GO"
	VerdictNeedsRevision Verdict = "NEEDS_REVISION"
)

// Valid проверяет, что вердикт из допустимого набора.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictGo, VerdictNoGo, VerdictNeedsRevision:
		return true
	}
	return false
}

// TestStream — приватная репетиция эфира.
type TestStream struct {
	ID              string           `json:"id"`
	LaunchID        string           `json:"launch_id"`
	AssetPackID     string           `json:"asset_pack_id"`
	DurationMinutes int              `json:"duration_minutes"`
	Status          TestStreamStatus `json:"status"`
	Verdict         Verdict          `json:"verdict,omitempty"`
	VerdictReason   string           `json:"verdict_reason,omitempty"`
	RoomID          string           `json:"room_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	EndedAt         *time.Time       `json:"ended_at,omitempty"`
}

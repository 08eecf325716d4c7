package domain

import "time"

const (
	// EventTrendIngested фиксирует поступление нового тренда.
	EventTrendIngested = "trend.ingested"
	// EventShortlistGenerated фиксирует построение шортлиста.
	EventShortlistGenerated = "shortlist.generated"
	// EventLaunchStatusChanged фиксирует переход запуска между статусами.
	EventLaunchStatusChanged = "launch.status_changed"
	// EventReadinessOverridden фиксирует ручной обход готовности.
	EventReadinessOverridden = "readiness.overridden"
	// EventProfitAlert фиксирует падение маржи ниже порога.
	EventProfitAlert = "profit.alert"
)

// PipelineEvent описывает событие конвейера для внешних потребителей.
type PipelineEvent struct {
	Event      string         `json:"event"`
	LaunchID   string         `json:"launch_id,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Alert — уведомление оператору.
type Alert struct {
	Title    string
	Body     string
	LaunchID string
}

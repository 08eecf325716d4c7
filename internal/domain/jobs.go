package domain

import (
	"encoding/json"
	"time"
)

// JobType описывает вид фоновой работы.
type JobType string

const (
	JobAssetGeneration    JobType = "asset_generation"
	JobTestStream         JobType = "test_stream"
	JobBroadcastProvision JobType = "broadcast_provision"
	JobBroadcastStart     JobType = "broadcast_start"
	JobBroadcastStop      JobType = "broadcast_stop"
	JobClipExtraction     JobType = "clip_extraction"
	JobProfitCalculation  JobType = "profit_calculation"
	JobHostPerformance    JobType = "host_performance"
)

// JobStatus — состояние задачи.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// AutomationJob — единица работы в очереди. Меньший Priority — более срочная задача.
type AutomationJob struct {
	ID         string          `json:"id"`
	LaunchID   string          `json:"launch_id,omitempty"`
	JobType    JobType         `json:"job_type"`
	Priority   int             `json:"job_priority"`
	Payload    json.RawMessage `json:"job_payload"`
	Status     JobStatus       `json:"status"`
	LastError  string          `json:"last_error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// JobFilter задаёт выборку задач для оператора.
type JobFilter struct {
	LaunchID string
	Status   JobStatus
	Limit    int
}

// JobPayload — стандартная полезная нагрузка задач конвейера.
type JobPayload struct {
	LaunchID     string `json:"launch_id,omitempty"`
	Platform     string `json:"platform,omitempty"`
	TestStreamID string `json:"test_stream_id,omitempty"`
	ShowID       string `json:"show_id,omitempty"`
	HostID       string `json:"host_id,omitempty"`
}

var defaultPriorities = map[JobType]int{
	JobBroadcastStart:     0,
	JobBroadcastStop:      0,
	JobBroadcastProvision: 1,
	JobTestStream:         2,
	JobAssetGeneration:    3,
	JobProfitCalculation:  4,
	JobHostPerformance:    4,
	JobClipExtraction:     5,
}

// NewJob собирает задачу с приоритетом по умолчанию для её типа.
func NewJob(jobType JobType, payload JobPayload) (AutomationJob, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return AutomationJob{}, err
	}
	return AutomationJob{
		LaunchID: payload.LaunchID,
		JobType:  jobType,
		Priority: defaultPriorities[jobType],
		Payload:  raw,
	}, nil
}

// DecodePayload разбирает стандартную полезную нагрузку задачи.
func (j AutomationJob) DecodePayload() (JobPayload, error) {
	var payload JobPayload
	if len(j.Payload) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return JobPayload{}, Validationf("job %s payload: %v", j.ID, err)
	}
	return payload, nil
}

package queue

import (
	"sort"

	"github.com/google/uuid"

	"trend-launch/internal/domain"
)

func newJobID() string {
	return uuid.NewString()
}

func sortByEnqueue(jobs []domain.AutomationJob) {
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].EnqueuedAt.Before(jobs[j].EnqueuedAt) })
}

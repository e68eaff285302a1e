// -----------------------------------------------------------------------
// Scrape Job - queue payload for a single scraper run against one target
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoJob is returned when all priority queues are empty.
var ErrNoJob = errors.New("no jobs in queue")

// JobPriority determines which queue list a job lands on.
type JobPriority string

const (
	PriorityHigh   JobPriority = "high"
	PriorityNormal JobPriority = "normal"
	PriorityLow    JobPriority = "low"
)

// JobStatus tracks a job through its lifecycle. Transitions are monotonic
// except Retry -> Pending on re-enqueue; terminal states never change.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusRetry     JobStatus = "retry"
)

// IsTerminal reports whether the status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is the unit of work dispatched to the worker pool. The Target is a
// ticker for most scrapers; macro scrapers receive an indicator key.
type Job struct {
	ID          string                 `json:"id"`
	ScraperName string                 `json:"scraper_name"`
	Target      string                 `json:"target"`
	Priority    JobPriority            `json:"priority"`
	Status      JobStatus              `json:"status"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// NewJob creates a pending job with a fresh id.
func NewJob(scraperName, target string, priority JobPriority) *Job {
	return &Job{
		ID:          uuid.New().String(),
		ScraperName: scraperName,
		Target:      target,
		Priority:    priority,
		Status:      JobStatusPending,
		MaxRetries:  3,
		CreatedAt:   time.Now(),
	}
}

// Marshal serializes the job payload for queue storage.
func (j *Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// UnmarshalJob deserializes a queue payload.
func UnmarshalJob(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

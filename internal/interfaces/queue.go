package interfaces

import (
	"context"
	"errors"

	"github.com/rmarinho/garimpo/internal/models"
)

// ErrScraperUnknown is returned when a job names a scraper absent from the
// registry. The job is failed terminally, never retried.
var ErrScraperUnknown = errors.New("unknown scraper")

// QueueLengths reports the three priority list lengths.
type QueueLengths struct {
	High   int64 `json:"high"`
	Normal int64 `json:"normal"`
	Low    int64 `json:"low"`
}

// JobQueue is the priority-ordered multi-producer/multi-consumer queue.
// Pop checks High, Normal, Low in that fixed order on every call; a lower
// priority job is only returned when every higher list is empty.
type JobQueue interface {
	Push(ctx context.Context, job *models.Job) error
	Pop(ctx context.Context) (*models.Job, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	GetStatus(ctx context.Context, jobID string) (models.JobStatus, error)
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error
	Cancel(ctx context.Context, jobID string) error
	Lengths(ctx context.Context) (QueueLengths, error)
}

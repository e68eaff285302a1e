package interfaces

import (
	"context"
	"time"

	"github.com/rmarinho/garimpo/internal/models"
)

// ResultStore persists scrape results. Results are append-only from workers;
// the aggregator reads them back through window queries.
type ResultStore interface {
	// SaveResult upserts a result keyed by job id. A retried job overwrites
	// the previous attempt's row so each job maps to exactly one result.
	SaveResult(ctx context.Context, result *models.ScrapeResult) error

	// GetResultsSince returns successful results for a ticker executed at
	// or after the threshold, newest first.
	GetResultsSince(ctx context.Context, ticker string, since time.Time) ([]*models.ScrapeResult, error)

	// GetResultByJobID returns the result persisted for a job, or nil.
	GetResultByJobID(ctx context.Context, jobID string) (*models.ScrapeResult, error)

	// DeleteResultsBefore removes results older than the threshold and
	// returns the number deleted. Used by the retention maintenance job.
	DeleteResultsBefore(ctx context.Context, threshold time.Time) (int64, error)
}

// ExecutionStore records schedule fires. Append-only.
type ExecutionStore interface {
	SaveExecution(ctx context.Context, exec *models.ScheduleExecution) error
	GetExecutions(ctx context.Context, scheduleName string, limit int) ([]*models.ScheduleExecution, error)
}

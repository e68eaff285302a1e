// -----------------------------------------------------------------------
// Priority Job Queue - three KV lists popped in strict priority order
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
)

const (
	keyHigh   = "scraper:jobs:high"
	keyNormal = "scraper:jobs:normal"
	keyLow    = "scraper:jobs:low"

	// Job payload and status keys expire so abandoned jobs cannot
	// accumulate forever.
	jobTTL = 24 * time.Hour
)

// priorityKeys is the fixed pop order. A lower list is only consulted when
// every list above it is empty.
var priorityKeys = []string{keyHigh, keyNormal, keyLow}

func listKey(priority models.JobPriority) string {
	switch priority {
	case models.PriorityHigh:
		return keyHigh
	case models.PriorityLow:
		return keyLow
	default:
		return keyNormal
	}
}

func jobKey(jobID string) string {
	return "scraper:job:" + jobID + ":data"
}

func statusKey(jobID string) string {
	return "scraper:job:" + jobID + ":status"
}

// Queue implements the priority job queue on a KeyValueStore. Each priority
// level is a list of job ids; the job payload and status live under separate
// TTL'd keys so several consumers can observe a job without dequeuing it.
type Queue struct {
	kv     interfaces.KeyValueStore
	logger arbor.ILogger
}

var _ interfaces.JobQueue = (*Queue)(nil)

// NewQueue creates a queue over the given key/value backend.
func NewQueue(kv interfaces.KeyValueStore, logger arbor.ILogger) *Queue {
	return &Queue{kv: kv, logger: logger}
}

// Push stores the job payload and enqueues its id on the list matching its
// priority. The job is marked pending.
func (q *Queue) Push(ctx context.Context, job *models.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if job.ID == "" {
		return fmt.Errorf("job id is empty")
	}

	job.Status = models.JobStatusPending

	payload, err := job.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	if err := q.kv.SetEx(ctx, jobKey(job.ID), string(payload), jobTTL); err != nil {
		return fmt.Errorf("failed to store job payload: %w", err)
	}
	if err := q.kv.SetEx(ctx, statusKey(job.ID), string(job.Status), jobTTL); err != nil {
		return fmt.Errorf("failed to store job status: %w", err)
	}
	if err := q.kv.LPush(ctx, listKey(job.Priority), job.ID); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.logger.Debug().
		Str("job_id", job.ID).
		Str("scraper", job.ScraperName).
		Str("target", job.Target).
		Str("priority", string(job.Priority)).
		Msg("Job enqueued")

	return nil
}

// Pop returns the next job, checking high, normal then low on every call.
// Cancelled jobs are skipped and their payload discarded. Returns
// models.ErrNoJob when all lists are empty.
func (q *Queue) Pop(ctx context.Context) (*models.Job, error) {
	for _, key := range priorityKeys {
		for {
			jobID, err := q.kv.RPop(ctx, key)
			if err != nil {
				if errors.Is(err, interfaces.ErrKeyNotFound) {
					break // list empty, try next priority
				}
				return nil, fmt.Errorf("failed to pop from %s: %w", key, err)
			}

			job, err := q.GetJob(ctx, jobID)
			if err != nil {
				if errors.Is(err, interfaces.ErrKeyNotFound) {
					// payload expired while queued
					q.logger.Warn().Str("job_id", jobID).Msg("Dropping job with expired payload")
					continue
				}
				return nil, err
			}

			if job.Status == models.JobStatusCancelled {
				q.logger.Debug().Str("job_id", jobID).Msg("Skipping cancelled job")
				continue
			}

			return job, nil
		}
	}
	return nil, models.ErrNoJob
}

// GetJob returns the stored payload for a job id.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	raw, err := q.kv.Get(ctx, jobKey(jobID))
	if err != nil {
		return nil, err
	}
	job, err := models.UnmarshalJob([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	return job, nil
}

// UpdateJob rewrites the job payload and mirrors its status key.
func (q *Queue) UpdateJob(ctx context.Context, job *models.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	payload, err := job.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.kv.SetEx(ctx, jobKey(job.ID), string(payload), jobTTL); err != nil {
		return fmt.Errorf("failed to store job payload: %w", err)
	}
	if err := q.kv.SetEx(ctx, statusKey(job.ID), string(job.Status), jobTTL); err != nil {
		return fmt.Errorf("failed to store job status: %w", err)
	}
	return nil
}

// GetStatus returns the current status of a job.
func (q *Queue) GetStatus(ctx context.Context, jobID string) (models.JobStatus, error) {
	raw, err := q.kv.Get(ctx, statusKey(jobID))
	if err != nil {
		return "", err
	}
	return models.JobStatus(raw), nil
}

// UpdateStatus sets the status key and, when the payload is still present,
// keeps it in sync. Terminal statuses are never overwritten.
func (q *Queue) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	current, err := q.GetStatus(ctx, jobID)
	if err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
		return err
	}
	if err == nil && current.IsTerminal() {
		return fmt.Errorf("job %s already %s", jobID, current)
	}

	if err := q.kv.SetEx(ctx, statusKey(jobID), string(status), jobTTL); err != nil {
		return fmt.Errorf("failed to store job status: %w", err)
	}

	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	job.Status = status
	now := time.Now()
	switch status {
	case models.JobStatusRunning:
		job.StartedAt = &now
	case models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled:
		job.CompletedAt = &now
	}
	return q.UpdateJob(ctx, job)
}

// Cancel marks a job cancelled and removes its id from whichever priority
// list still holds it. A running job keeps running; its terminal status is
// simply fixed at cancelled. Cancelling a job already in a terminal state is
// an error.
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	if err := q.UpdateStatus(ctx, jobID, models.JobStatusCancelled); err != nil {
		return err
	}
	for _, key := range priorityKeys {
		removed, err := q.kv.LRem(ctx, key, jobID)
		if err != nil {
			return fmt.Errorf("failed to remove job from %s: %w", key, err)
		}
		if removed > 0 {
			break
		}
	}
	q.logger.Info().Str("job_id", jobID).Msg("Job cancelled")
	return nil
}

// Lengths reports the current length of each priority list.
func (q *Queue) Lengths(ctx context.Context) (interfaces.QueueLengths, error) {
	var lengths interfaces.QueueLengths
	var err error
	if lengths.High, err = q.kv.LLen(ctx, keyHigh); err != nil {
		return lengths, err
	}
	if lengths.Normal, err = q.kv.LLen(ctx, keyNormal); err != nil {
		return lengths, err
	}
	if lengths.Low, err = q.kv.LLen(ctx, keyLow); err != nil {
		return lengths, err
	}
	return lengths, nil
}

// -----------------------------------------------------------------------
// Worker Pool - drives queued jobs through scrapers and persists outcomes
// -----------------------------------------------------------------------

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
)

const defaultPollInterval = 500 * time.Millisecond

// Stats are cumulative counters for the pool's lifetime.
type Stats struct {
	Processed int64 `json:"processed"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
}

// Pool runs N workers that pop jobs, execute the named scraper and persist
// the outcome. Workers share nothing but the queue, registry and stores.
type Pool struct {
	queue    interfaces.JobQueue
	registry interfaces.ScraperRegistry
	results  interfaces.ResultStore
	events   interfaces.EventService
	logger   arbor.ILogger

	concurrency  int
	pollInterval time.Duration

	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPool creates a worker pool. Concurrency below 1 is clamped to 1.
func NewPool(queue interfaces.JobQueue, registry interfaces.ScraperRegistry, results interfaces.ResultStore, events interfaces.EventService, concurrency int, logger arbor.ILogger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		queue:        queue,
		registry:     registry,
		results:      results,
		events:       events,
		logger:       logger,
		concurrency:  concurrency,
		pollInterval: defaultPollInterval,
	}
}

// Start launches the worker goroutines. Calling Start twice without Stop is
// an error.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("worker pool already started")
	}

	ctx, p.cancel = context.WithCancel(ctx)

	p.logger.Info().
		Int("concurrency", p.concurrency).
		Msg("Starting worker pool")

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	return nil
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	p.logger.Info().Msg("Stopping worker pool")
	cancel()
	p.wg.Wait()
	p.logger.Info().
		Int64("processed", p.processed.Load()).
		Int64("failed", p.failed.Load()).
		Msg("Worker pool stopped")
}

// GetStats returns a snapshot of the pool's counters.
func (p *Pool) GetStats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Retried:   p.retried.Load(),
	}
}

func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	p.logger.Debug().Int("worker_id", workerID).Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug().Int("worker_id", workerID).Msg("Worker stopped")
			return
		default:
		}

		job, err := p.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, models.ErrNoJob) && ctx.Err() == nil {
				p.logger.Warn().Err(err).Int("worker_id", workerID).Msg("Failed to pop job")
			}
			select {
			case <-ctx.Done():
			case <-time.After(p.pollInterval):
			}
			continue
		}

		p.processJob(ctx, workerID, job)
	}
}

func (p *Pool) processJob(ctx context.Context, workerID int, job *models.Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("job_id", job.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Worker recovered from panic")
			p.failed.Add(1)
		}
	}()

	p.processed.Add(1)

	if err := p.queue.UpdateStatus(ctx, job.ID, models.JobStatusRunning); err != nil {
		p.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark job running")
	}

	scraper, err := p.registry.Get(job.ScraperName)
	if err != nil {
		// Unknown scraper is terminal, never retried.
		p.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("scraper", job.ScraperName).
			Msg("Job names an unknown scraper")
		p.finishJob(ctx, job, models.NewFailedResult(job.ScraperName, job.Target, err), models.JobStatusFailed)
		p.failed.Add(1)
		return
	}

	p.logger.Debug().
		Str("job_id", job.ID).
		Str("scraper", job.ScraperName).
		Str("target", job.Target).
		Int("worker_id", workerID).
		Msg("Processing job")

	started := time.Now()
	result := scraper.ScrapeWithRetry(ctx, job.Target)
	duration := time.Since(started)
	if result == nil {
		result = models.NewFailedResult(job.ScraperName, job.Target, errors.New("scraper returned no result"))
	}
	result.JobID = job.ID

	// A job cancelled mid-flight is dropped: no persist, no event.
	if status, serr := p.queue.GetStatus(ctx, job.ID); serr == nil && status == models.JobStatusCancelled {
		p.logger.Info().Str("job_id", job.ID).Msg("Discarding result of cancelled job")
		return
	}

	if result.Success {
		p.succeeded.Add(1)
		p.finishJob(ctx, job, result, models.JobStatusCompleted)
		p.logger.Info().
			Str("job_id", job.ID).
			Str("scraper", job.ScraperName).
			Str("target", job.Target).
			Dur("duration", duration).
			Msg("Job completed")
		return
	}

	p.failed.Add(1)
	p.finishJob(ctx, job, result, models.JobStatusFailed)
	p.logger.Warn().
		Str("job_id", job.ID).
		Str("scraper", job.ScraperName).
		Str("target", job.Target).
		Str("error", result.Error).
		Dur("duration", duration).
		Msg("Job failed")

	if job.RetryCount < job.MaxRetries {
		p.requeue(ctx, job)
	}
}

// finishJob persists the result, publishes the completion event and settles
// the job status. Persist failures are logged, never re-enqueued; the next
// scheduled run refreshes the data.
func (p *Pool) finishJob(ctx context.Context, job *models.Job, result *models.ScrapeResult, status models.JobStatus) {
	if err := p.queue.UpdateStatus(ctx, job.ID, status); err != nil {
		p.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to update job status")
	}

	if err := p.results.SaveResult(ctx, result); err != nil {
		p.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Msg("Failed to persist result")
	}

	event := models.JobEvent{
		Event:       models.EventJobCompleted,
		JobID:       job.ID,
		ScraperName: job.ScraperName,
		Ticker:      job.Target,
		Status:      status,
		Success:     result.Success,
		Timestamp:   time.Now(),
	}
	if err := p.events.Publish(ctx, event); err != nil {
		p.logger.Debug().Err(err).Str("job_id", job.ID).Msg("Failed to publish job event")
	}
}

// requeue pushes a fresh attempt of a failed job at the same priority.
// Backoff already happened inside the scraper's retry wrapper, so the
// re-push is immediate.
func (p *Pool) requeue(ctx context.Context, job *models.Job) {
	retry := *job
	retry.RetryCount++
	retry.Status = models.JobStatusRetry
	retry.StartedAt = nil
	retry.CompletedAt = nil

	if err := p.queue.Push(ctx, &retry); err != nil {
		p.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Msg("Failed to re-enqueue job for retry")
		return
	}
	p.retried.Add(1)
	p.logger.Info().
		Str("job_id", job.ID).
		Int("retry_count", retry.RetryCount).
		Int("max_retries", retry.MaxRetries).
		Msg("Job re-enqueued for retry")
}

// -----------------------------------------------------------------------
// Application wiring - builds and runs every service in dependency order
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/aggregator"
	"github.com/rmarinho/garimpo/internal/config"
	"github.com/rmarinho/garimpo/internal/events"
	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/queue"
	"github.com/rmarinho/garimpo/internal/scheduler"
	"github.com/rmarinho/garimpo/internal/scrapers"
	"github.com/rmarinho/garimpo/internal/scrapers/bcb"
	"github.com/rmarinho/garimpo/internal/scrapers/brapi"
	"github.com/rmarinho/garimpo/internal/scrapers/coingecko"
	"github.com/rmarinho/garimpo/internal/scrapers/cvm"
	"github.com/rmarinho/garimpo/internal/scrapers/fundamentei"
	"github.com/rmarinho/garimpo/internal/scrapers/fundamentus"
	"github.com/rmarinho/garimpo/internal/scrapers/infomoney"
	"github.com/rmarinho/garimpo/internal/scrapers/opcoes"
	"github.com/rmarinho/garimpo/internal/scrapers/statusinvest"
	"github.com/rmarinho/garimpo/internal/storage/memory"
	"github.com/rmarinho/garimpo/internal/storage/postgres"
	"github.com/rmarinho/garimpo/internal/storage/redis"
	"github.com/rmarinho/garimpo/internal/worker"
)

const statsInterval = time.Minute

// App holds every application component wired in dependency order:
// config feeds storage, storage feeds queue and results, the registry
// feeds workers, and the scheduler feeds the queue.
type App struct {
	Config *config.Manager
	Logger arbor.ILogger

	DB    *sqlx.DB
	KV    interfaces.KeyValueStore
	Store *postgres.Store

	Queue      interfaces.JobQueue
	Registry   *scrapers.Registry
	Events     interfaces.EventService
	Workers    *worker.Pool
	Scheduler  *scheduler.Service
	Aggregator *aggregator.Service

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New builds the application. Every component is constructed but nothing
// runs until Start.
func New(cfg *config.Manager, logger arbor.ILogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.initStorage(); err != nil {
		return nil, err
	}
	if err := a.initScrapers(); err != nil {
		return nil, err
	}

	a.Queue = queue.NewQueue(a.KV, logger)
	a.Events = events.NewService(a.KV, logger)

	concurrency := cfg.GetInt("WORKER_CONCURRENCY", 5)
	a.Workers = worker.NewPool(a.Queue, a.Registry, a.Store, a.Events, concurrency, logger)

	a.Scheduler = scheduler.NewService(a.Queue, a.Store, logger)
	if err := a.initSchedules(); err != nil {
		return nil, err
	}

	a.Aggregator = aggregator.NewService(a.Store, a.KV, logger)

	return a, nil
}

// initStorage connects the key-value store and PostgreSQL. Redis being
// down degrades to the in-memory store so development and tests run
// without infrastructure; the relational store is mandatory.
func (a *App) initStorage() error {
	if a.Config.GetBool("REDIS_DISABLED", false) {
		a.Logger.Warn().Msg("Redis disabled, using in-memory store (queue and cache are not durable)")
		a.KV = memory.New()
	} else {
		address := fmt.Sprintf("%s:%s",
			a.Config.Get("REDIS_HOST", "localhost"),
			a.Config.Get("REDIS_PORT", "6379"))
		store, err := redis.NewStore(redis.Config{
			Address:  address,
			Password: a.Config.Get("REDIS_PASSWORD", ""),
			DB:       a.Config.GetInt("REDIS_DB", 0),
		}, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Str("address", address).
				Msg("Redis unreachable, falling back to in-memory store")
			a.KV = memory.New()
		} else {
			a.KV = store
		}
	}

	db, err := postgres.Connect(a.Config.DatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = db

	store, err := postgres.NewStore(db, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to prepare result store: %w", err)
	}
	a.Store = store

	return nil
}

// initScrapers registers every source. All nine share the session options
// resolved from config: cookies directory, per-request timeout, per-scrape
// budget and the retry count.
func (a *App) initScrapers() error {
	opts := scrapers.Options{
		CookiesDir: a.Config.Get("COOKIES_DIR", "./data/cookies"),
		Timeout:    a.Config.GetDuration("SCRAPER_TIMEOUT", 30*time.Second),
		Budget:     a.Config.GetDuration("SCRAPER_BUDGET", 60*time.Second),
		MaxRetries: a.Config.GetInt("SCRAPER_MAX_RETRIES", 3),
	}

	a.Registry = scrapers.NewRegistry(a.Logger)

	all := []interfaces.Scraper{
		fundamentus.New(opts, a.Logger),
		statusinvest.New(opts, a.Logger),
		brapi.New(a.Config.Get("BRAPI_TOKEN", ""), opts, a.Logger),
		bcb.New(opts, a.Logger),
		infomoney.New(opts, a.Logger),
		coingecko.New(opts, a.Logger),
		cvm.New(opts, a.Logger),
		opcoes.New(opts, a.Logger),
		fundamentei.New(fundamentei.Credentials{
			Email:    a.Config.Get("FUNDAMENTEI_EMAIL", ""),
			Password: a.Config.Get("FUNDAMENTEI_PASSWORD", ""),
		}, a.Config.GetBool("SCRAPER_HEADLESS", true), opts, a.Logger),
	}

	for _, s := range all {
		if err := a.Registry.Register(s); err != nil {
			return fmt.Errorf("failed to register scraper: %w", err)
		}
	}

	a.Logger.Info().Int("count", len(all)).Msg("Scrapers registered")
	return nil
}

// initSchedules loads the schedules file and registers the retention
// maintenance task. A missing schedules file is not fatal: manual
// enqueueing still works.
func (a *App) initSchedules() error {
	path := a.Config.Get("SCHEDULES_FILE", "./schedules.yaml")
	if _, err := os.Stat(path); err != nil {
		a.Logger.Warn().Str("path", path).
			Msg("Schedules file not found, no periodic scrapes registered")
	} else if err := a.Scheduler.Initialize(path); err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	retentionDays := a.Config.GetInt("RETENTION_DAYS", 30)
	if retentionDays <= 0 {
		a.Logger.Info().Msg("Result retention disabled")
		return nil
	}

	err := a.Scheduler.RegisterTask("result-retention",
		&scheduler.IntervalTrigger{Every: 24 * time.Hour},
		func(ctx context.Context) error {
			threshold := time.Now().AddDate(0, 0, -retentionDays)
			deleted, err := a.Store.DeleteResultsBefore(ctx, threshold)
			if err != nil {
				return err
			}
			a.Logger.Info().
				Int("deleted", int(deleted)).
				Int("retention_days", retentionDays).
				Msg("Old results purged")
			return nil
		})
	if err != nil {
		return err
	}

	return nil
}

// Start runs health checks and launches events, workers and scheduler.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("application already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.Events.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start event service: %w", err)
	}

	// Unreachable sources are reported, not fatal: their jobs will fail
	// and retry on the normal path.
	health := a.Registry.HealthCheckAll(ctx)
	healthy := 0
	for _, ok := range health {
		if ok {
			healthy++
		}
	}
	a.Logger.Info().
		Int("healthy", healthy).
		Int("total", len(health)).
		Msg("Scraper health check complete")

	if err := a.Workers.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	if err := a.Scheduler.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	a.wg.Add(1)
	go a.statsLoop(ctx)

	a.started = true
	a.Logger.Info().Msg("Application started")
	return nil
}

// Stop shuts everything down in reverse dependency order. Workers finish
// their current job before exiting.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}

	a.Logger.Info().Msg("Shutting down")

	a.Scheduler.Stop()
	a.Workers.Stop()
	a.cancel()
	a.wg.Wait()

	if err := a.Events.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Event service close failed")
	}

	a.Registry.CleanupAll()

	if err := a.KV.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Key-value store close failed")
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Database close failed")
	}

	a.started = false
	a.Logger.Info().Msg("Shutdown complete")
}

// Enqueue pushes a single manual job outside any schedule.
func (a *App) Enqueue(ctx context.Context, scraperName, target string, priority models.JobPriority) (*models.Job, error) {
	if _, err := a.Registry.Get(scraperName); err != nil {
		return nil, err
	}
	if priority == "" {
		priority = models.PriorityNormal
	}

	job := models.NewJob(scraperName, target, priority)
	job.Metadata = map[string]interface{}{"schedule": "manual"}
	if err := a.Queue.Push(ctx, job); err != nil {
		return nil, err
	}

	a.Logger.Info().
		Str("job_id", job.ID).
		Str("scraper", scraperName).
		Str("target", target).
		Msg("Manual job enqueued")
	return job, nil
}

// statsLoop periodically logs queue depth and worker throughput.
func (a *App) statsLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lengths, err := a.Queue.Lengths(ctx)
			if err != nil {
				a.Logger.Warn().Err(err).Msg("Failed to read queue lengths")
				continue
			}
			stats := a.Workers.GetStats()
			a.Logger.Info().
				Int64("queue_high", lengths.High).
				Int64("queue_normal", lengths.Normal).
				Int64("queue_low", lengths.Low).
				Int64("processed", stats.Processed).
				Int64("succeeded", stats.Succeeded).
				Int64("failed", stats.Failed).
				Int64("retried", stats.Retried).
				Msg("Pipeline stats")
		}
	}
}

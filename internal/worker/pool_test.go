package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/queue"
	"github.com/rmarinho/garimpo/internal/storage/memory"
)

// fakeScraper fails the first failCount calls, then succeeds.
type fakeScraper struct {
	name      string
	mu        sync.Mutex
	calls     int
	failCount int
}

func (f *fakeScraper) Descriptor() interfaces.Descriptor {
	return interfaces.Descriptor{Name: f.name, Source: f.name, Category: interfaces.CategoryFundamental, MaxRetries: 3}
}

func (f *fakeScraper) Initialize(ctx context.Context) error { return nil }

func (f *fakeScraper) Scrape(ctx context.Context, target string) (*models.ScrapeResult, error) {
	return f.ScrapeWithRetry(ctx, target), nil
}

func (f *fakeScraper) ScrapeWithRetry(ctx context.Context, target string) *models.ScrapeResult {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failCount
	f.mu.Unlock()

	if fail {
		return models.NewFailedResult(f.name, target, assert.AnError)
	}
	return &models.ScrapeResult{
		ScraperName: f.name,
		Ticker:      target,
		Success:     true,
		Data:        map[string]interface{}{"pl": 8.5},
		ExecutedAt:  time.Now(),
	}
}

func (f *fakeScraper) HealthCheck(ctx context.Context) bool { return true }
func (f *fakeScraper) Cleanup() error                       { return nil }

func (f *fakeScraper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRegistry struct {
	scrapers map[string]interfaces.Scraper
}

func (r *fakeRegistry) Get(name string) (interfaces.Scraper, error) {
	s, ok := r.scrapers[name]
	if !ok {
		return nil, interfaces.ErrScraperUnknown
	}
	return s, nil
}

func (r *fakeRegistry) All() []interfaces.Scraper {
	out := make([]interfaces.Scraper, 0, len(r.scrapers))
	for _, s := range r.scrapers {
		out = append(out, s)
	}
	return out
}

func (r *fakeRegistry) ByCategory(category interfaces.ScraperCategory) []interfaces.Scraper {
	return r.All()
}

type fakeResultStore struct {
	mu      sync.Mutex
	results map[string]*models.ScrapeResult
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{results: make(map[string]*models.ScrapeResult)}
}

func (s *fakeResultStore) SaveResult(ctx context.Context, result *models.ScrapeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.JobID] = result
	return nil
}

func (s *fakeResultStore) GetResultsSince(ctx context.Context, ticker string, since time.Time) ([]*models.ScrapeResult, error) {
	return nil, nil
}

func (s *fakeResultStore) GetResultByJobID(ctx context.Context, jobID string) (*models.ScrapeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[jobID], nil
}

func (s *fakeResultStore) DeleteResultsBefore(ctx context.Context, threshold time.Time) (int64, error) {
	return 0, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.JobEvent
}

func (e *fakeEvents) Publish(ctx context.Context, event models.JobEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *fakeEvents) Subscribe(handler interfaces.EventHandler) {}
func (e *fakeEvents) Start(ctx context.Context) error           { return nil }
func (e *fakeEvents) Close() error                              { return nil }

func (e *fakeEvents) snapshot() []models.JobEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.JobEvent, len(e.events))
	copy(out, e.events)
	return out
}

type poolFixture struct {
	queue   *queue.Queue
	scraper *fakeScraper
	results *fakeResultStore
	events  *fakeEvents
	pool    *Pool
}

func newPoolFixture(t *testing.T, failCount int) *poolFixture {
	t.Helper()
	logger := common.GetLogger()
	q := queue.NewQueue(memory.New(), logger)
	scraper := &fakeScraper{name: "fundamentus", failCount: failCount}
	registry := &fakeRegistry{scrapers: map[string]interfaces.Scraper{"fundamentus": scraper}}
	results := newFakeResultStore()
	events := &fakeEvents{}

	pool := NewPool(q, registry, results, events, 2, logger)
	pool.pollInterval = 10 * time.Millisecond

	return &poolFixture{queue: q, scraper: scraper, results: results, events: events, pool: pool}
}

func TestPoolCompletesSuccessfulJob(t *testing.T) {
	f := newPoolFixture(t, 0)
	ctx := context.Background()

	job := models.NewJob("fundamentus", "PETR4", models.PriorityNormal)
	require.NoError(t, f.queue.Push(ctx, job))

	require.NoError(t, f.pool.Start(ctx))
	defer f.pool.Stop()

	assert.Eventually(t, func() bool {
		status, err := f.queue.GetStatus(ctx, job.ID)
		return err == nil && status == models.JobStatusCompleted
	}, 3*time.Second, 20*time.Millisecond)

	result, err := f.results.GetResultByJobID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "PETR4", result.Ticker)

	events := f.events.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventJobCompleted, events[0].Event)
	assert.Equal(t, job.ID, events[0].JobID)
	assert.True(t, events[0].Success)
}

func TestPoolFailsUnknownScraperWithoutRetry(t *testing.T) {
	f := newPoolFixture(t, 0)
	ctx := context.Background()

	job := models.NewJob("no-such-scraper", "PETR4", models.PriorityNormal)
	require.NoError(t, f.queue.Push(ctx, job))

	require.NoError(t, f.pool.Start(ctx))
	defer f.pool.Stop()

	assert.Eventually(t, func() bool {
		status, err := f.queue.GetStatus(ctx, job.ID)
		return err == nil && status == models.JobStatusFailed
	}, 3*time.Second, 20*time.Millisecond)

	// terminal failure, never re-enqueued
	time.Sleep(50 * time.Millisecond)
	lengths, err := f.queue.Lengths(ctx)
	require.NoError(t, err)
	assert.Zero(t, lengths.High+lengths.Normal+lengths.Low)
	assert.Zero(t, f.pool.GetStats().Retried)
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	f := newPoolFixture(t, 2) // fail twice, succeed on third attempt
	ctx := context.Background()

	job := models.NewJob("fundamentus", "VALE3", models.PriorityHigh)
	require.NoError(t, f.queue.Push(ctx, job))

	require.NoError(t, f.pool.Start(ctx))
	defer f.pool.Stop()

	assert.Eventually(t, func() bool {
		result, _ := f.results.GetResultByJobID(ctx, job.ID)
		return result != nil && result.Success
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 3, f.scraper.callCount())
	assert.Equal(t, int64(2), f.pool.GetStats().Retried)
}

func TestPoolRetryExhaustion(t *testing.T) {
	f := newPoolFixture(t, 100) // always fails
	ctx := context.Background()

	job := models.NewJob("fundamentus", "ITUB4", models.PriorityNormal)
	job.MaxRetries = 2
	require.NoError(t, f.queue.Push(ctx, job))

	require.NoError(t, f.pool.Start(ctx))
	defer f.pool.Stop()

	// initial attempt plus two retries, then no further re-enqueue
	assert.Eventually(t, func() bool {
		return f.scraper.callCount() == 3 && f.pool.GetStats().Retried == 2
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 3, f.scraper.callCount())

	status, err := f.queue.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, status)

	result, err := f.results.GetResultByJobID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestPoolSkipsCancelledJob(t *testing.T) {
	f := newPoolFixture(t, 0)
	ctx := context.Background()

	job := models.NewJob("fundamentus", "PETR4", models.PriorityNormal)
	require.NoError(t, f.queue.Push(ctx, job))
	require.NoError(t, f.queue.Cancel(ctx, job.ID))

	require.NoError(t, f.pool.Start(ctx))
	defer f.pool.Stop()

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, f.scraper.callCount())
	result, err := f.results.GetResultByJobID(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, result)
}

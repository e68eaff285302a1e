package scheduler

import (
	"context"
	"os"
	"path/filepath"
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

const schedulesYAML = `
schedules:
  daily-fundamentals:
    scraper: fundamentus
    tickers: [PETR4, VALE3]
    type: cron
    hour: "10"
    minute: "30"
    priority: high
  quotes:
    scraper: brapi
    tickers: [PETR4]
    type: interval
    minutes: 15
  backfill:
    scraper: cvm
    tickers: [PETR4]
    type: date
    run_date: "2030-01-01T09:00:00"
    enabled: false
`

type fakeExecutions struct {
	mu    sync.Mutex
	execs []*models.ScheduleExecution
}

func (f *fakeExecutions) SaveExecution(ctx context.Context, exec *models.ScheduleExecution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, exec)
	return nil
}

func (f *fakeExecutions) GetExecutions(ctx context.Context, scheduleName string, limit int) ([]*models.ScheduleExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execs, nil
}

func (f *fakeExecutions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.execs)
}

func writeSchedules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestScheduler(t *testing.T) (*Service, interfaces.JobQueue, *fakeExecutions) {
	t.Helper()
	q := queue.NewQueue(memory.New(), common.GetLogger())
	execs := &fakeExecutions{}
	return NewService(q, execs, common.GetLogger()), q, execs
}

func TestParseSchedulesDefaults(t *testing.T) {
	schedules, err := ParseSchedules([]byte(schedulesYAML))
	require.NoError(t, err)
	require.Len(t, schedules, 3)

	// name-sorted
	assert.Equal(t, "backfill", schedules[0].Name)
	assert.Equal(t, "daily-fundamentals", schedules[1].Name)
	assert.Equal(t, "quotes", schedules[2].Name)

	assert.False(t, schedules[0].Enabled)
	assert.True(t, schedules[2].Enabled, "enabled defaults to true")
	assert.Equal(t, models.PriorityNormal, schedules[2].Priority, "priority defaults to normal")
	assert.Equal(t, models.PriorityHigh, schedules[1].Priority)
}

func TestParseSchedulesRejectsMissingScraper(t *testing.T) {
	_, err := ParseSchedules([]byte("schedules:\n  broken:\n    type: interval\n    minutes: 5\n"))
	assert.Error(t, err)
}

func TestParseSchedulesRejectsUnknownType(t *testing.T) {
	_, err := ParseSchedules([]byte("schedules:\n  broken:\n    scraper: brapi\n    type: hourly\n"))
	assert.Error(t, err)
}

func TestParseSchedulesRejectsUnknownPriority(t *testing.T) {
	_, err := ParseSchedules([]byte("schedules:\n  broken:\n    scraper: brapi\n    type: interval\n    minutes: 5\n    priority: urgent\n"))
	assert.Error(t, err)
}

func TestInitializeArmsEnabledEntries(t *testing.T) {
	svc, _, _ := newTestScheduler(t)
	require.NoError(t, svc.Initialize(writeSchedules(t, schedulesYAML)))

	statuses := svc.GetJobs()
	require.Len(t, statuses, 3)

	byName := make(map[string]models.ScheduleStatus)
	for _, st := range statuses {
		byName[st.Name] = st
	}

	assert.NotNil(t, byName["daily-fundamentals"].NextFire)
	assert.NotNil(t, byName["quotes"].NextFire)
	assert.Nil(t, byName["backfill"].NextFire, "disabled entries never arm")
}

func TestTriggerNowEnqueuesJobPerTicker(t *testing.T) {
	svc, q, execs := newTestScheduler(t)
	require.NoError(t, svc.Initialize(writeSchedules(t, schedulesYAML)))

	ctx := context.Background()
	require.NoError(t, svc.TriggerNow(ctx, "daily-fundamentals"))

	first, err := q.Pop(ctx)
	require.NoError(t, err)
	second, err := q.Pop(ctx)
	require.NoError(t, err)
	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, models.ErrNoJob)

	targets := []string{first.Target, second.Target}
	assert.Contains(t, targets, "PETR4")
	assert.Contains(t, targets, "VALE3")
	assert.Equal(t, "fundamentus", first.ScraperName)
	assert.Equal(t, models.PriorityHigh, first.Priority)
	assert.Equal(t, "daily-fundamentals", first.Metadata["schedule"])

	require.Equal(t, 1, execs.count())
	exec := execs.execs[0]
	assert.Equal(t, "daily-fundamentals", exec.ScheduleName)
	assert.Equal(t, "fundamentus", exec.ScraperName)
	assert.Len(t, exec.JobIDs, 2)
}

func TestTriggerNowUnknownSchedule(t *testing.T) {
	svc, _, _ := newTestScheduler(t)
	assert.Error(t, svc.TriggerNow(context.Background(), "nope"))
}

func TestDispatchFiresDueEntry(t *testing.T) {
	svc, _, _ := newTestScheduler(t)

	base := time.Now()
	svc.now = func() time.Time { return base }

	fired := make(chan struct{}, 1)
	require.NoError(t, svc.RegisterTask("cleanup", &IntervalTrigger{Every: time.Minute}, func(ctx context.Context) error {
		fired <- struct{}{}
		return nil
	}))

	// not yet due
	svc.dispatchDue(context.Background())
	svc.wg.Wait()
	select {
	case <-fired:
		t.Fatal("task fired before its interval elapsed")
	default:
	}

	// one minute later, within grace
	svc.now = func() time.Time { return base.Add(time.Minute + time.Second) }
	svc.dispatchDue(context.Background())
	svc.wg.Wait()
	select {
	case <-fired:
	default:
		t.Fatal("task did not fire when due")
	}
}

func TestDispatchSkipsMisfireBeyondGrace(t *testing.T) {
	svc, _, _ := newTestScheduler(t)

	base := time.Now()
	svc.now = func() time.Time { return base }

	fired := make(chan struct{}, 1)
	require.NoError(t, svc.RegisterTask("cleanup", &IntervalTrigger{Every: time.Minute}, func(ctx context.Context) error {
		fired <- struct{}{}
		return nil
	}))

	// ten minutes late: occurrence skipped, entry re-armed
	svc.now = func() time.Time { return base.Add(10 * time.Minute) }
	svc.dispatchDue(context.Background())
	svc.wg.Wait()
	select {
	case <-fired:
		t.Fatal("misfire beyond grace must be skipped")
	default:
	}

	statuses := svc.GetJobs()
	require.Len(t, statuses, 1)
	require.NotNil(t, statuses[0].NextFire)
	assert.True(t, statuses[0].NextFire.After(base.Add(10*time.Minute)))
}

func TestStartStop(t *testing.T) {
	svc, _, _ := newTestScheduler(t)
	svc.tick = 5 * time.Millisecond

	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start(), "double start must fail")
	svc.Stop()
	svc.Stop() // idempotent
}

func TestPartialEnqueueFailureIsReported(t *testing.T) {
	execs := &fakeExecutions{}
	svc := NewService(&failingQueue{failTarget: "VALE3"}, execs, common.GetLogger())
	require.NoError(t, svc.Initialize(writeSchedules(t, schedulesYAML)))

	// fire writes the error to the entry, but records the successful pushes
	require.NoError(t, svc.TriggerNow(context.Background(), "daily-fundamentals"))

	require.Equal(t, 1, execs.count())
	assert.Len(t, execs.execs[0].JobIDs, 1, "only successful pushes are recorded")
}

// failingQueue rejects pushes for one target.
type failingQueue struct {
	failTarget string
}

func (f *failingQueue) Push(ctx context.Context, job *models.Job) error {
	if job.Target == f.failTarget {
		return assert.AnError
	}
	return nil
}

func (f *failingQueue) Pop(ctx context.Context) (*models.Job, error) { return nil, models.ErrNoJob }
func (f *failingQueue) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return nil, nil
}
func (f *failingQueue) UpdateJob(ctx context.Context, job *models.Job) error { return nil }
func (f *failingQueue) GetStatus(ctx context.Context, jobID string) (models.JobStatus, error) {
	return models.JobStatusPending, nil
}
func (f *failingQueue) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	return nil
}
func (f *failingQueue) Cancel(ctx context.Context, jobID string) error { return nil }
func (f *failingQueue) Lengths(ctx context.Context) (interfaces.QueueLengths, error) {
	return interfaces.QueueLengths{}, nil
}

// -----------------------------------------------------------------------
// Scheduler - turns declarative schedule entries into enqueued jobs
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
)

// misfireGrace bounds how late an occurrence may fire. A fire more than
// this overdue (process suspended, clock skew) is skipped; the next
// occurrence covers the gap.
const misfireGrace = 5 * time.Minute

// TaskFunc is a registered maintenance handler driven by the same timer
// as schedule entries.
type TaskFunc func(ctx context.Context) error

// entry is one armed trigger. Schedule entries enqueue jobs on fire;
// task entries run their handler.
type entry struct {
	name      string
	schedule  *models.Schedule
	handler   TaskFunc
	trigger   Trigger
	next      *time.Time
	lastRun   *time.Time
	lastError string
}

// Service owns the single timer loop. Multiple entries due on the same
// tick fire concurrently; each fire is independent.
type Service struct {
	queue      interfaces.JobQueue
	executions interfaces.ExecutionStore
	logger     arbor.ILogger

	mu      sync.Mutex
	entries map[string]*entry
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	now  func() time.Time
	tick time.Duration
}

// NewService creates a scheduler. Entries are registered via Initialize
// and RegisterTask before Start.
func NewService(queue interfaces.JobQueue, executions interfaces.ExecutionStore, logger arbor.ILogger) *Service {
	return &Service{
		queue:      queue,
		executions: executions,
		logger:     logger,
		entries:    make(map[string]*entry),
		now:        time.Now,
		tick:       time.Second,
	}
}

// Initialize loads the schedules file and arms one trigger per enabled
// entry. Disabled entries are kept for status reporting but never fire.
func (s *Service) Initialize(path string) error {
	schedules, err := LoadSchedules(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, schedule := range schedules {
		if _, exists := s.entries[schedule.Name]; exists {
			return fmt.Errorf("duplicate schedule %s", schedule.Name)
		}

		trigger, err := BuildTrigger(schedule)
		if err != nil {
			return err
		}

		e := &entry{name: schedule.Name, schedule: schedule, trigger: trigger}
		if schedule.Enabled {
			// Arming from behind the grace window lets a just-missed
			// one-shot still fire at startup.
			e.next = trigger.NextFire(s.now().Add(-misfireGrace))
		}
		s.entries[schedule.Name] = e

		s.logger.Info().
			Str("schedule", schedule.Name).
			Str("scraper", schedule.Scraper).
			Str("type", string(schedule.Type)).
			Int("tickers", len(schedule.Tickers)).
			Str("enabled", fmt.Sprintf("%t", schedule.Enabled)).
			Msg("Schedule registered")
	}

	s.logger.Info().Int("count", len(schedules)).Msg("Schedules loaded")
	return nil
}

// RegisterTask arms a named maintenance handler on the given trigger.
func (s *Service) RegisterTask(name string, trigger Trigger, handler TaskFunc) error {
	if name == "" || trigger == nil || handler == nil {
		return fmt.Errorf("task requires a name, trigger and handler")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("duplicate schedule %s", name)
	}

	s.entries[name] = &entry{
		name:    name,
		handler: handler,
		trigger: trigger,
		next:    trigger.NextFire(s.now()),
	}

	s.logger.Info().Str("schedule", name).Msg("Maintenance task registered")
	return nil
}

// Start launches the timer loop.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info().Int("schedules", len(s.entries)).Msg("Scheduler started")
	return nil
}

// Stop halts the timer loop. In-flight fires complete.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// GetJobs lists registered schedules with their next fire times.
func (s *Service) GetJobs() []models.ScheduleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]models.ScheduleStatus, 0, len(s.entries))
	for _, e := range s.entries {
		status := models.ScheduleStatus{
			Name:     e.name,
			NextFire: e.next,
		}
		if e.schedule != nil {
			status.Scraper = e.schedule.Scraper
			status.Type = e.schedule.Type
			status.Enabled = e.schedule.Enabled
			status.Tickers = e.schedule.Tickers
		} else {
			status.Type = e.trigger.Kind()
			status.Enabled = true
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// TriggerNow fires a schedule immediately, outside its trigger cadence.
func (s *Service) TriggerNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, exists := s.entries[name]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("schedule %s not found", name)
	}

	s.logger.Info().Str("schedule", name).Msg("Manual fire requested")
	s.fire(ctx, e, s.now())
	return nil
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// dispatchDue fires every entry whose next fire time has passed and
// re-arms it. Overdue beyond the grace window skips the occurrence.
func (s *Service) dispatchDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	due := make([]*entry, 0)
	for _, e := range s.entries {
		if e.next == nil || e.next.After(now) {
			continue
		}
		if now.Sub(*e.next) > misfireGrace {
			s.logger.Warn().
				Str("schedule", e.name).
				Str("scheduled_at", e.next.Format(time.RFC3339)).
				Msg("Misfire beyond grace window, occurrence skipped")
			e.next = e.trigger.NextFire(now)
			continue
		}
		due = append(due, e)
		scheduled := *e.next
		e.next = e.trigger.NextFire(scheduled)
	}
	s.mu.Unlock()

	for _, e := range due {
		e := e
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.fire(ctx, e, now)
		}()
	}
}

// fire executes one occurrence: schedule entries push one job per ticker
// and append an execution record, task entries run their handler.
func (s *Service) fire(ctx context.Context, e *entry, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("schedule", e.name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in schedule fire")
		}
	}()

	var err error
	if e.handler != nil {
		err = e.handler(ctx)
	} else {
		err = s.fireSchedule(ctx, e.schedule)
	}

	s.mu.Lock()
	fired := now
	e.lastRun = &fired
	if err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Str("schedule", e.name).Msg("Schedule fire incomplete")
	}
}

func (s *Service) fireSchedule(ctx context.Context, schedule *models.Schedule) error {
	if len(schedule.Tickers) == 0 {
		s.logger.Warn().Str("schedule", schedule.Name).Msg("Schedule has no tickers, nothing to enqueue")
		return nil
	}

	jobIDs := make([]string, 0, len(schedule.Tickers))
	var failed int
	for _, ticker := range schedule.Tickers {
		job := models.NewJob(schedule.Scraper, ticker, schedule.Priority)
		job.Metadata = map[string]interface{}{"schedule": schedule.Name}

		if err := s.queue.Push(ctx, job); err != nil {
			failed++
			s.logger.Warn().Err(err).
				Str("schedule", schedule.Name).
				Str("ticker", ticker).
				Msg("Failed to enqueue scheduled job")
			continue
		}
		jobIDs = append(jobIDs, job.ID)
	}

	s.logger.Info().
		Str("schedule", schedule.Name).
		Str("scraper", schedule.Scraper).
		Int("enqueued", len(jobIDs)).
		Int("failed", failed).
		Msg("Schedule fired")

	exec := &models.ScheduleExecution{
		ScheduleName: schedule.Name,
		ScraperName:  schedule.Scraper,
		Tickers:      schedule.Tickers,
		JobIDs:       jobIDs,
		ExecutedAt:   s.now(),
	}
	if err := s.executions.SaveExecution(ctx, exec); err != nil {
		s.logger.Warn().Err(err).Str("schedule", schedule.Name).Msg("Failed to record schedule execution")
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d tickers failed to enqueue", failed, len(schedule.Tickers))
	}
	return nil
}

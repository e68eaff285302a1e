// -----------------------------------------------------------------------
// Triggers - cron, interval and one-shot fire-time calculators
// -----------------------------------------------------------------------

package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rmarinho/garimpo/internal/models"
)

// Timezone is fixed for every schedule regardless of host locale. B3 and
// the government data sources all publish on São Paulo time.
const Timezone = "America/Sao_Paulo"

// cronParser accepts the six-field shape with a seconds column.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Trigger computes fire instants for one schedule entry.
type Trigger interface {
	Kind() models.TriggerType
	// NextFire returns the first fire instant strictly after t, or nil
	// when the trigger will never fire again.
	NextFire(t time.Time) *time.Time
}

// CronTrigger fires on a cron expression evaluated in São Paulo time.
type CronTrigger struct {
	schedule cron.Schedule
	spec     string
}

func (c *CronTrigger) Kind() models.TriggerType { return models.TriggerCron }

func (c *CronTrigger) NextFire(t time.Time) *time.Time {
	next := c.schedule.Next(t)
	if next.IsZero() {
		return nil
	}
	return &next
}

func (c *CronTrigger) String() string { return c.spec }

// IntervalTrigger fires a fixed duration after the previous fire.
type IntervalTrigger struct {
	Every time.Duration
}

func (i *IntervalTrigger) Kind() models.TriggerType { return models.TriggerInterval }

func (i *IntervalTrigger) NextFire(t time.Time) *time.Time {
	next := t.Add(i.Every)
	return &next
}

// OneShotTrigger fires exactly once at a fixed instant.
type OneShotTrigger struct {
	At time.Time
}

func (o *OneShotTrigger) Kind() models.TriggerType { return models.TriggerDate }

func (o *OneShotTrigger) NextFire(t time.Time) *time.Time {
	if o.At.After(t) {
		return &o.At
	}
	return nil
}

// BuildTrigger converts the declarative trigger fields of a schedule into
// a Trigger.
func BuildTrigger(schedule *models.Schedule) (Trigger, error) {
	switch schedule.Type {
	case models.TriggerCron:
		return buildCronTrigger(schedule)
	case models.TriggerInterval:
		return buildIntervalTrigger(schedule)
	case models.TriggerDate:
		return buildDateTrigger(schedule)
	default:
		return nil, fmt.Errorf("unknown trigger type %q", schedule.Type)
	}
}

func buildCronTrigger(schedule *models.Schedule) (Trigger, error) {
	spec := strings.Join([]string{
		fieldOr(schedule.Second, "0"),
		fieldOr(schedule.Minute, "0"),
		fieldOr(schedule.Hour, "*"),
		fieldOr(schedule.Day, "*"),
		fieldOr(schedule.Month, "*"),
		fieldOr(schedule.DayOfWeek, "*"),
	}, " ")

	parsed, err := cronParser.Parse("CRON_TZ=" + Timezone + " " + spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron fields for %s: %w", schedule.Name, err)
	}
	return &CronTrigger{schedule: parsed, spec: spec}, nil
}

func buildIntervalTrigger(schedule *models.Schedule) (Trigger, error) {
	every := time.Duration(schedule.Hours)*time.Hour +
		time.Duration(schedule.Minutes)*time.Minute +
		time.Duration(schedule.Seconds)*time.Second
	if every <= 0 {
		return nil, fmt.Errorf("interval schedule %s has no duration", schedule.Name)
	}
	return &IntervalTrigger{Every: every}, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func buildDateTrigger(schedule *models.Schedule) (Trigger, error) {
	if schedule.RunDate == "" {
		return nil, fmt.Errorf("date schedule %s has no run_date", schedule.Name)
	}
	loc, err := time.LoadLocation(Timezone)
	if err != nil {
		return nil, err
	}
	for _, layout := range dateLayouts {
		if at, err := time.ParseInLocation(layout, schedule.RunDate, loc); err == nil {
			return &OneShotTrigger{At: at}, nil
		}
	}
	return nil, fmt.Errorf("unparseable run_date %q for %s", schedule.RunDate, schedule.Name)
}

func fieldOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// -----------------------------------------------------------------------
// Schedule - declarative periodic scrape definitions loaded from YAML
// -----------------------------------------------------------------------

package models

import "time"

// TriggerType selects how a schedule fires.
type TriggerType string

const (
	TriggerCron     TriggerType = "cron"
	TriggerInterval TriggerType = "interval"
	TriggerDate     TriggerType = "date"
)

// Schedule is one entry of the schedules YAML file. Trigger fields are a
// union: cron entries use the Cron* fields, interval entries the Interval*
// fields, date entries RunDate.
type Schedule struct {
	Name     string      `yaml:"-"`
	Scraper  string      `yaml:"scraper" validate:"required"`
	Tickers  []string    `yaml:"tickers"`
	Type     TriggerType `yaml:"type" validate:"required,oneof=cron interval date"`
	Priority JobPriority `yaml:"priority"`
	Enabled  bool        `yaml:"enabled"`

	// cron trigger fields
	Hour      string `yaml:"hour,omitempty"`
	Minute    string `yaml:"minute,omitempty"`
	Second    string `yaml:"second,omitempty"`
	Day       string `yaml:"day,omitempty"`
	Month     string `yaml:"month,omitempty"`
	DayOfWeek string `yaml:"day_of_week,omitempty"`

	// interval trigger fields
	Hours   int `yaml:"hours,omitempty"`
	Minutes int `yaml:"minutes,omitempty"`
	Seconds int `yaml:"seconds,omitempty"`

	// date trigger field (ISO 8601)
	RunDate string `yaml:"run_date,omitempty"`
}

// ScheduleExecution is the append-only audit record written after a fire.
type ScheduleExecution struct {
	ID           int64     `db:"id" json:"id"`
	ScheduleName string    `db:"schedule_name" json:"schedule_name"`
	ScraperName  string    `db:"scraper_name" json:"scraper_name"`
	Tickers      []string  `db:"-" json:"tickers"`
	JobIDs       []string  `db:"-" json:"job_ids"`
	ExecutedAt   time.Time `db:"executed_at" json:"executed_at"`
}

// ScheduleStatus describes a registered schedule with its next fire time.
type ScheduleStatus struct {
	Name     string      `json:"name"`
	Scraper  string      `json:"scraper"`
	Type     TriggerType `json:"type"`
	Enabled  bool        `json:"enabled"`
	Tickers  []string    `json:"tickers"`
	NextFire *time.Time  `json:"next_fire,omitempty"`
}

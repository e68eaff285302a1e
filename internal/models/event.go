package models

import (
	"encoding/json"
	"time"
)

// JobEvent is published on the scraper events channel when a worker finishes
// a job. Delivery is fire-and-forget; absent subscribers miss events.
type JobEvent struct {
	Event       string    `json:"event"`
	JobID       string    `json:"job_id"`
	ScraperName string    `json:"scraper_name"`
	Ticker      string    `json:"ticker"`
	Status      JobStatus `json:"status"`
	Success     bool      `json:"success"`
	Timestamp   time.Time `json:"timestamp"`
}

const EventJobCompleted = "job_completed"

// Marshal serializes the event for the pub/sub channel.
func (e *JobEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

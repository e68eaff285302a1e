// -----------------------------------------------------------------------
// Scrape Result - immutable outcome of one scraper run, keyed by job id
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"time"
)

// ResultMetadata carries provenance for a scrape result.
type ResultMetadata struct {
	Source    string    `json:"source"`
	URL       string    `json:"url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsValid   bool      `json:"is_valid"`
}

// ScrapeResult is what a scraper returns and what workers persist. Data is a
// free-form payload whose shape varies by category; the aggregator consumes
// it through alias lookups. Once persisted a result is never mutated.
type ScrapeResult struct {
	JobID        string                 `json:"job_id"`
	ScraperName  string                 `json:"scraper_name"`
	Ticker       string                 `json:"ticker"`
	Success      bool                   `json:"success"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Error        string                 `json:"error,omitempty"`
	ResponseTime float64                `json:"response_time"`
	ExecutedAt   time.Time              `json:"executed_at"`
	Metadata     ResultMetadata         `json:"metadata"`
}

// NewFailedResult builds a failure result with the error captured as a string.
func NewFailedResult(scraperName, ticker string, err error) *ScrapeResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ScrapeResult{
		ScraperName: scraperName,
		Ticker:      ticker,
		Success:     false,
		Error:       msg,
		ExecutedAt:  time.Now(),
		Metadata: ResultMetadata{
			Source:    scraperName,
			Timestamp: time.Now(),
			IsValid:   false,
		},
	}
}

// Marshal serializes the result for persistence.
func (r *ScrapeResult) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalScrapeResult deserializes a persisted result.
func UnmarshalScrapeResult(data []byte) (*ScrapeResult, error) {
	var r ScrapeResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

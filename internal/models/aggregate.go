// -----------------------------------------------------------------------
// Aggregated views - merged, confidence-scored data derived from results
// -----------------------------------------------------------------------

package models

import "time"

// SourceValue is one source's contribution to an aggregated metric.
type SourceValue struct {
	Source string  `json:"source"`
	Value  float64 `json:"value"`
}

// AggregatedMetric is the consolidated view of one metric for one ticker.
// Value is the median across sources; Confidence blends source coverage
// with agreement and is always within [0,1].
type AggregatedMetric struct {
	Value       *float64      `json:"value"`
	Sources     []SourceValue `json:"sources"`
	SourceCount int           `json:"source_count"`
	Mean        float64       `json:"mean,omitempty"`
	StdDev      float64       `json:"std_dev,omitempty"`
	CV          float64       `json:"cv,omitempty"`
	Agreement   float64       `json:"agreement"`
	Confidence  float64       `json:"confidence"`
}

// TextMetric is the consolidated view of a non-numeric field.
type TextMetric struct {
	Value       string   `json:"value"`
	Sources     []string `json:"sources"`
	IsUnanimous bool     `json:"is_unanimous"`
}

// SourceSummary lists the distinct scrapers that contributed to a view.
type SourceSummary struct {
	Count int      `json:"count"`
	Names []string `json:"names"`
}

// TickerView is the full aggregated view for one ticker.
type TickerView struct {
	Ticker      string                      `json:"ticker"`
	Success     bool                        `json:"success"`
	Error       string                      `json:"error,omitempty"`
	Fundamental map[string]AggregatedMetric `json:"fundamental,omitempty"`
	Technical   map[string]AggregatedMetric `json:"technical,omitempty"`
	Text        map[string]TextMetric       `json:"text,omitempty"`
	Sources     SourceSummary               `json:"sources"`
	Confidence  float64                     `json:"confidence"`
	Timestamp   time.Time                   `json:"timestamp"`
}

// NewsItem is one deduplicated news article for a ticker.
type NewsItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// InsiderTransaction is one insider trade record.
type InsiderTransaction struct {
	Ticker   string    `json:"ticker"`
	Insider  string    `json:"insider,omitempty"`
	Type     string    `json:"type"`
	Quantity float64   `json:"quantity,omitempty"`
	Value    float64   `json:"value,omitempty"`
	Date     time.Time `json:"date"`
	Source   string    `json:"source"`
}

// InsiderSummary aggregates insider activity over the lookback window.
type InsiderSummary struct {
	Ticker       string               `json:"ticker"`
	Transactions []InsiderTransaction `json:"transactions"`
	BuyCount     int                  `json:"buy_count"`
	SellCount    int                  `json:"sell_count"`
	TotalValue   float64              `json:"total_value"`
	Sources      SourceSummary        `json:"sources"`
	Timestamp    time.Time            `json:"timestamp"`
}

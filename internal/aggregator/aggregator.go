// -----------------------------------------------------------------------
// Aggregator - consolidated, confidence-scored per-ticker views
// -----------------------------------------------------------------------

package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/scrapers"
)

// Cache TTLs per block. Writes happen only on successful computation.
const (
	fullViewTTL    = 5 * time.Minute
	fundamentalTTL = 24 * time.Hour
	technicalTTL   = 5 * time.Minute
	newsTTL        = 10 * time.Minute
	insiderTTL     = time.Hour
)

// Lookback windows per category.
const (
	defaultWindow = 24 * time.Hour
	newsWindow    = 72 * time.Hour
	insiderWindow = 168 * time.Hour
)

// Service merges recent scraper results into aggregated views. The cache is
// best-effort: an unavailable key-value store degrades to recomputation.
type Service struct {
	results interfaces.ResultStore
	cache   interfaces.KeyValueStore
	logger  arbor.ILogger
}

// NewService creates the aggregator.
func NewService(results interfaces.ResultStore, cache interfaces.KeyValueStore, logger arbor.ILogger) *Service {
	return &Service{results: results, cache: cache, logger: logger}
}

// GetStockData returns the full aggregated view for a ticker, cached for
// five minutes.
func (s *Service) GetStockData(ctx context.Context, ticker string) (*models.TickerView, error) {
	ticker = common.NormalizeTicker(ticker)
	cacheKey := "stock_data:" + ticker

	var cached models.TickerView
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	results, err := s.results.GetResultsSince(ctx, ticker, time.Now().Add(-defaultWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load results for %s: %w", ticker, err)
	}

	view := s.buildView(ticker, results)
	if view.Success {
		s.cacheSet(ctx, cacheKey, view, fullViewTTL)
		s.cacheSet(ctx, "fundamental:"+ticker, view.Fundamental, fundamentalTTL)
		s.cacheSet(ctx, "technical:"+ticker, view.Technical, technicalTTL)
	}
	return view, nil
}

// Compare aggregates several tickers into one mapping.
func (s *Service) Compare(ctx context.Context, tickers []string) (map[string]*models.TickerView, error) {
	out := make(map[string]*models.TickerView, len(tickers))
	for _, ticker := range tickers {
		view, err := s.GetStockData(ctx, ticker)
		if err != nil {
			return nil, err
		}
		out[common.NormalizeTicker(ticker)] = view
	}
	return out, nil
}

// InvalidateTicker drops every cached block for a ticker.
func (s *Service) InvalidateTicker(ctx context.Context, ticker string) {
	ticker = common.NormalizeTicker(ticker)
	keys := []string{
		"stock_data:" + ticker,
		"fundamental:" + ticker,
		"technical:" + ticker,
		"insider:" + ticker,
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.logger.Debug().Err(err).Str("ticker", ticker).Msg("Cache invalidation failed")
	}
}

// buildView assembles the full view from the window's results.
func (s *Service) buildView(ticker string, results []*models.ScrapeResult) *models.TickerView {
	now := time.Now()
	if len(results) == 0 {
		return &models.TickerView{
			Ticker:    ticker,
			Success:   false,
			Error:     "No data available",
			Sources:   models.SourceSummary{Names: []string{}},
			Timestamp: now,
		}
	}

	fundamental := s.aggregateCategory(results, fundamentalAliases)
	technical := s.aggregateCategory(results, technicalAliases)
	text := s.aggregateTextCategory(results, textAliases)

	confidenceSum, confidenceCount := 0.0, 0
	for _, metric := range fundamental {
		if metric.SourceCount > 0 {
			confidenceSum += metric.Confidence
			confidenceCount++
		}
	}
	for _, metric := range technical {
		if metric.SourceCount > 0 {
			confidenceSum += metric.Confidence
			confidenceCount++
		}
	}
	overall := 0.0
	if confidenceCount > 0 {
		overall = confidenceSum / float64(confidenceCount)
	}

	return &models.TickerView{
		Ticker:      ticker,
		Success:     true,
		Fundamental: fundamental,
		Technical:   technical,
		Text:        text,
		Sources:     summarizeSources(results),
		Confidence:  overall,
		Timestamp:   now,
	}
}

// aggregateCategory runs metric aggregation over one alias table. Metrics
// with no values still appear, null-valued with zero confidence.
func (s *Service) aggregateCategory(results []*models.ScrapeResult, aliases map[string][]string) map[string]models.AggregatedMetric {
	out := make(map[string]models.AggregatedMetric, len(aliases))

	for metric, names := range aliases {
		isPercent := percentageMetrics[metric]

		var contributions []models.SourceValue
		seen := make(map[string]bool)
		for _, result := range results {
			// results arrive newest first; one value per source
			if seen[result.ScraperName] {
				continue
			}
			value, found := lookupAlias(result.Data, names)
			if !found {
				continue
			}
			numeric, ok := normalizeValue(value, isPercent)
			if !ok {
				continue
			}
			seen[result.ScraperName] = true
			contributions = append(contributions, models.SourceValue{
				Source: result.ScraperName,
				Value:  numeric,
			})
		}

		out[metric] = crossValidate(contributions)
	}

	return out
}

// aggregateTextCategory merges classification strings across sources.
// Metrics no source reported are omitted rather than emitted null.
func (s *Service) aggregateTextCategory(results []*models.ScrapeResult, aliases map[string][]string) map[string]models.TextMetric {
	out := make(map[string]models.TextMetric)

	for metric, names := range aliases {
		values := make(map[string]string)
		for _, result := range results {
			// results arrive newest first; one value per source
			if _, ok := values[result.ScraperName]; ok {
				continue
			}
			raw, found := lookupAlias(result.Data, names)
			if !found {
				continue
			}
			text, ok := raw.(string)
			if !ok {
				continue
			}
			text = strings.TrimSpace(text)
			if text == "" || scrapers.IsNullValue(text) {
				continue
			}
			values[result.ScraperName] = text
		}
		if len(values) == 0 {
			continue
		}
		out[metric] = aggregateText(values)
	}

	return out
}

// lookupAlias searches the payload top level and the known nested sections
// for the first matching alias.
func lookupAlias(data map[string]interface{}, aliases []string) (interface{}, bool) {
	if data == nil {
		return nil, false
	}
	for _, alias := range aliases {
		if v, ok := data[alias]; ok && v != nil {
			return v, true
		}
	}
	for _, section := range nestedSections {
		nested, ok := data[section].(map[string]interface{})
		if !ok {
			continue
		}
		for _, alias := range aliases {
			if v, ok := nested[alias]; ok && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

// normalizeValue coerces a payload value to a float. Percentage metrics
// convert to decimals: any face value above 1 is divided by 100.
func normalizeValue(value interface{}, isPercent bool) (float64, bool) {
	var numeric float64
	switch v := value.(type) {
	case float64:
		numeric = v
	case int:
		numeric = float64(v)
	case int64:
		numeric = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		numeric = f
	case string:
		f, ok := parseLocaleNumber(v)
		if !ok {
			return 0, false
		}
		numeric = f
	default:
		return 0, false
	}

	if isPercent && (numeric > 1 || numeric < -1) {
		numeric /= 100
	}
	return numeric, true
}

func summarizeSources(results []*models.ScrapeResult) models.SourceSummary {
	seen := make(map[string]bool)
	for _, r := range results {
		seen[r.ScraperName] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return models.SourceSummary{Count: len(names), Names: names}
}

// cacheGet reads and decodes a cached block; any failure is a miss.
func (s *Service) cacheGet(ctx context.Context, key string, v interface{}) bool {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrKeyNotFound) {
			s.logger.Debug().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return false
	}
	return true
}

// cacheSet writes a block with its TTL; failures degrade silently.
func (s *Service) cacheSet(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}
	if err := s.cache.SetEx(ctx, key, string(payload), ttl); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// parseLocaleNumber handles strings in either Brazilian or plain format.
// "1.234,56" and "10.5" both parse to the value they read as.
func parseLocaleNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || scrapers.IsNullValue(s) {
		return 0, false
	}
	if strings.Contains(s, ",") {
		return scrapers.ParseNumberBR(s)
	}
	plain := strings.TrimSuffix(strings.ReplaceAll(s, "R$", ""), "%")
	if f, err := strconv.ParseFloat(strings.TrimSpace(plain), 64); err == nil {
		return f, true
	}
	return scrapers.ParseNumberBR(s)
}

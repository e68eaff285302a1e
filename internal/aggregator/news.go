package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/scrapers"
)

// GetNews returns the deduplicated, newest-first news list for a ticker,
// truncated to limit. Window is 72 hours; cached for 10 minutes per limit.
func (s *Service) GetNews(ctx context.Context, ticker string, limit int) ([]models.NewsItem, error) {
	ticker = common.NormalizeTicker(ticker)
	if limit <= 0 {
		limit = 20
	}
	cacheKey := fmt.Sprintf("news:%s:limit:%d", ticker, limit)

	var cached []models.NewsItem
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	results, err := s.results.GetResultsSince(ctx, ticker, time.Now().Add(-newsWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load results for %s: %w", ticker, err)
	}

	items := collectNews(results)
	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}

	if len(items) > 0 {
		s.cacheSet(ctx, cacheKey, items, newsTTL)
	}
	return items, nil
}

// collectNews extracts article lists from result payloads, deduplicating by
// exact title.
func collectNews(results []*models.ScrapeResult) []models.NewsItem {
	items := []models.NewsItem{}
	seenTitles := make(map[string]bool)

	for _, result := range results {
		for _, entry := range listEntries(result.Data, newsListKeys) {
			title, _ := entry["title"].(string)
			if title == "" || seenTitles[title] {
				continue
			}
			seenTitles[title] = true

			item := models.NewsItem{
				Title:  title,
				Source: result.ScraperName,
			}
			item.URL, _ = entry["url"].(string)
			item.Summary, _ = entry["summary"].(string)
			if raw, ok := entry["published_at"].(string); ok {
				if t, parsed := scrapers.ParseDateBR(raw); parsed {
					item.PublishedAt = t
				}
			}
			if item.PublishedAt.IsZero() {
				item.PublishedAt = result.ExecutedAt
			}
			items = append(items, item)
		}
	}
	return items
}

// listEntries finds the first list-shaped payload entry under the given
// keys, top level or whole payload as a list.
func listEntries(data map[string]interface{}, keys []string) []map[string]interface{} {
	if data == nil {
		return nil
	}
	for _, key := range keys {
		raw, ok := data[key].([]interface{})
		if !ok {
			continue
		}
		entries := make([]map[string]interface{}, 0, len(raw))
		for _, item := range raw {
			if m, ok := item.(map[string]interface{}); ok {
				entries = append(entries, m)
			}
		}
		return entries
	}
	return nil
}

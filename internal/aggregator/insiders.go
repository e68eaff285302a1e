package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/scrapers"
)

// GetInsiders summarizes insider activity for a ticker over a 168 hour
// window, cached for one hour.
func (s *Service) GetInsiders(ctx context.Context, ticker string) (*models.InsiderSummary, error) {
	ticker = common.NormalizeTicker(ticker)
	cacheKey := "insider:" + ticker

	var cached models.InsiderSummary
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	results, err := s.results.GetResultsSince(ctx, ticker, time.Now().Add(-insiderWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load results for %s: %w", ticker, err)
	}

	summary := collectInsiders(ticker, results)
	if len(summary.Transactions) > 0 {
		s.cacheSet(ctx, cacheKey, summary, insiderTTL)
	}
	return summary, nil
}

// collectInsiders accumulates transactions and tallies buys against sells
// by movement keyword.
func collectInsiders(ticker string, results []*models.ScrapeResult) *models.InsiderSummary {
	summary := &models.InsiderSummary{
		Ticker:       ticker,
		Transactions: []models.InsiderTransaction{},
		Timestamp:    time.Now(),
	}

	contributing := make(map[string]bool)
	for _, result := range results {
		entries := listEntries(result.Data, insiderListKeys)
		if len(entries) == 0 {
			continue
		}
		contributing[result.ScraperName] = true

		for _, entry := range entries {
			tx := models.InsiderTransaction{
				Ticker: ticker,
				Source: result.ScraperName,
			}
			tx.Insider, _ = entry["role"].(string)
			if tx.Insider == "" {
				tx.Insider, _ = entry["insider"].(string)
			}
			rawType, _ := entry["type"].(string)
			tx.Type = classifyMovement(rawType)
			if tx.Type == "" {
				// unclassifiable movements stay in the list, uncounted
				tx.Type = strings.ToLower(strings.TrimSpace(rawType))
			}
			if q, ok := entry["quantity"].(float64); ok {
				tx.Quantity = q
			}
			if v, ok := entry["volume"].(float64); ok {
				tx.Value = v
			} else if v, ok := entry["value"].(float64); ok {
				tx.Value = v
			}
			if raw, ok := entry["date"].(string); ok {
				if t, parsed := scrapers.ParseDateBR(raw); parsed {
					tx.Date = t
				}
			}
			if tx.Date.IsZero() {
				tx.Date = result.ExecutedAt
			}

			switch tx.Type {
			case "buy":
				summary.BuyCount++
			case "sell":
				summary.SellCount++
			}
			summary.TotalValue += tx.Value
			summary.Transactions = append(summary.Transactions, tx)
		}
	}

	names := make([]string, 0, len(contributing))
	for name := range contributing {
		names = append(names, name)
	}
	sort.Strings(names)
	summary.Sources = models.SourceSummary{Count: len(names), Names: names}
	return summary
}

// classifyMovement maps movement descriptions in either language onto
// buy/sell.
func classifyMovement(raw string) string {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "buy"), strings.Contains(s, "compra"):
		return "buy"
	case strings.Contains(s, "sell"), strings.Contains(s, "venda"):
		return "sell"
	default:
		return ""
	}
}

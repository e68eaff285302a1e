// -----------------------------------------------------------------------
// Brapi Scraper - quote and trading range from the brapi.dev JSON API
// -----------------------------------------------------------------------

package brapi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/scrapers"
)

const (
	Name           = "brapi"
	defaultBaseURL = "https://brapi.dev/api"
)

// quoteResponse is the subset of the quote endpoint's payload we consume.
type quoteResponse struct {
	Results []struct {
		Symbol                     string  `json:"symbol"`
		ShortName                  string  `json:"shortName"`
		Currency                   string  `json:"currency"`
		RegularMarketPrice         float64 `json:"regularMarketPrice"`
		RegularMarketChange        float64 `json:"regularMarketChange"`
		RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
		RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
		RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
		RegularMarketVolume        float64 `json:"regularMarketVolume"`
		RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
		RegularMarketOpen          float64 `json:"regularMarketOpen"`
		FiftyTwoWeekHigh           float64 `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow            float64 `json:"fiftyTwoWeekLow"`
		MarketCap                  float64 `json:"marketCap"`
		PriceEarnings              float64 `json:"priceEarnings"`
		EarningsPerShare           float64 `json:"earningsPerShare"`
	} `json:"results"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// Scraper fetches technical quote data from the brapi.dev API.
type Scraper struct {
	*scrapers.Base
	baseURL string
	token   string
}

var _ interfaces.Scraper = (*Scraper)(nil)

// New creates the Brapi scraper. The API token comes from config and may be
// empty for the free tier.
func New(token string, opts scrapers.Options, logger arbor.ILogger) *Scraper {
	desc := interfaces.Descriptor{
		Name:          Name,
		Source:        "brapi.dev",
		Category:      interfaces.CategoryTechnical,
		RatePerMinute: 60,
		RatePerHour:   1500,
	}
	return &Scraper{
		Base:    scrapers.NewBase(desc, opts, logger),
		baseURL: defaultBaseURL,
		token:   token,
	}
}

// Scrape fetches the quote for one ticker.
func (s *Scraper) Scrape(ctx context.Context, target string) (*models.ScrapeResult, error) {
	ticker := common.NormalizeTicker(target)

	endpoint := fmt.Sprintf("%s/quote/%s?range=1d&interval=1d", s.baseURL, url.PathEscape(ticker))
	if s.token != "" {
		endpoint += "&token=" + url.QueryEscape(s.token)
	}

	var resp quoteResponse
	if err := s.FetchJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Error {
		return nil, fmt.Errorf("brapi error for %s: %s", ticker, resp.Message)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("no quote returned for %s", ticker)
	}

	q := resp.Results[0]
	data := map[string]interface{}{
		"price":           q.RegularMarketPrice,
		"change":          q.RegularMarketChange,
		"change_percent":  q.RegularMarketChangePercent,
		"day_high":        q.RegularMarketDayHigh,
		"day_low":         q.RegularMarketDayLow,
		"volume":          q.RegularMarketVolume,
		"previous_close":  q.RegularMarketPreviousClose,
		"open":            q.RegularMarketOpen,
		"high_52w":        q.FiftyTwoWeekHigh,
		"low_52w":         q.FiftyTwoWeekLow,
		"currency":        q.Currency,
		"short_name":      q.ShortName,
	}
	if q.MarketCap > 0 {
		data["market_cap"] = q.MarketCap
	}
	if q.PriceEarnings != 0 {
		data["p_l"] = q.PriceEarnings
	}
	if q.EarningsPerShare != 0 {
		data["eps"] = q.EarningsPerShare
	}

	return s.NewResult(ticker, data, endpoint), nil
}

// ScrapeWithRetry wraps Scrape with the shared retry policy.
func (s *Scraper) ScrapeWithRetry(ctx context.Context, target string) *models.ScrapeResult {
	return s.DoScrapeWithRetry(ctx, target, s.Scrape)
}

// HealthCheck probes the API's available list endpoint.
func (s *Scraper) HealthCheck(ctx context.Context) bool {
	return s.CheckURL(ctx, s.baseURL+"/available")
}

// -----------------------------------------------------------------------
// CoinGecko Scraper - crypto spot prices in BRL and USD
// -----------------------------------------------------------------------

package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/scrapers"
)

const (
	Name    = "coingecko"
	baseURL = "https://api.coingecko.com/api/v3"
)

// coinAliases maps common symbols to CoinGecko coin ids. Targets already in
// id form pass through untouched.
var coinAliases = map[string]string{
	"btc":  "bitcoin",
	"eth":  "ethereum",
	"sol":  "solana",
	"ada":  "cardano",
	"xrp":  "ripple",
	"usdt": "tether",
	"usdc": "usd-coin",
}

// Scraper fetches simple price data for one coin.
type Scraper struct {
	*scrapers.Base
	baseURL string
}

var _ interfaces.Scraper = (*Scraper)(nil)

// New creates the CoinGecko scraper.
func New(opts scrapers.Options, logger arbor.ILogger) *Scraper {
	desc := interfaces.Descriptor{
		Name:          Name,
		Source:        "coingecko.com",
		Category:      interfaces.CategoryCrypto,
		RatePerMinute: 10, // free tier allowance
		RatePerHour:   300,
	}
	return &Scraper{
		Base:    scrapers.NewBase(desc, opts, logger),
		baseURL: baseURL,
	}
}

// Scrape fetches price, market cap and 24h change for the target coin.
func (s *Scraper) Scrape(ctx context.Context, target string) (*models.ScrapeResult, error) {
	coinID := resolveCoinID(target)

	endpoint := fmt.Sprintf(
		"%s/simple/price?ids=%s&vs_currencies=brl,usd&include_market_cap=true&include_24hr_vol=true&include_24hr_change=true",
		s.baseURL, url.QueryEscape(coinID))

	var resp map[string]map[string]float64
	if err := s.FetchJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	prices, ok := resp[coinID]
	if !ok || len(prices) == 0 {
		return nil, fmt.Errorf("no price data for coin %q", coinID)
	}

	data := map[string]interface{}{
		"coin_id":        coinID,
		"price":          prices["brl"],
		"price_usd":      prices["usd"],
		"market_cap":     prices["brl_market_cap"],
		"volume_24h":     prices["brl_24h_vol"],
		"change_24h_pct": prices["brl_24h_change"],
	}
	return s.NewResult(strings.ToUpper(target), data, endpoint), nil
}

// ScrapeWithRetry wraps Scrape with the shared retry policy.
func (s *Scraper) ScrapeWithRetry(ctx context.Context, target string) *models.ScrapeResult {
	return s.DoScrapeWithRetry(ctx, target, s.Scrape)
}

// HealthCheck probes the API ping endpoint.
func (s *Scraper) HealthCheck(ctx context.Context) bool {
	return s.CheckURL(ctx, s.baseURL+"/ping")
}

func resolveCoinID(target string) string {
	key := strings.ToLower(strings.TrimSpace(target))
	if id, ok := coinAliases[key]; ok {
		return id
	}
	return key
}

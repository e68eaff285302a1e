// -----------------------------------------------------------------------
// StatusInvest Scraper - indicator grid from statusinvest.com.br
// -----------------------------------------------------------------------

package statusinvest

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/scrapers"
)

const (
	Name    = "statusinvest"
	baseURL = "https://statusinvest.com.br"
)

// indicatorFields maps the grid's title attribute (lowercased) to canonical
// payload keys. Titles not in the map are ignored.
var indicatorFields = map[string]string{
	"p/l":              "p_l",
	"p/vp":             "p_vp",
	"dy":               "dy",
	"ev/ebitda":        "ev_ebitda",
	"ev/ebit":          "ev_ebit",
	"p/ebitda":         "p_ebitda",
	"p/ebit":           "p_ebit",
	"p/ativo":          "p_assets",
	"margem bruta":     "gross_margin",
	"margem ebitda":    "ebitda_margin",
	"margem líquida":   "net_margin",
	"roe":              "roe",
	"roa":              "roa",
	"roic":             "roic",
	"lpa":              "eps",
	"vpa":              "bvps",
	"liquidez corrente": "current_ratio",
	"dív. líquida/ebitda": "net_debt_ebitda",
	"dív. líquida/pl":  "net_debt_equity",
	"cagr receitas 5 anos": "revenue_cagr_5y",
	"cagr lucros 5 anos":   "profit_cagr_5y",
}

// Scraper extracts the fundamental indicator grid for a ticker.
type Scraper struct {
	*scrapers.Base
}

var _ interfaces.Scraper = (*Scraper)(nil)

// New creates the StatusInvest scraper.
func New(opts scrapers.Options, logger arbor.ILogger) *Scraper {
	desc := interfaces.Descriptor{
		Name:          Name,
		Source:        "statusinvest.com.br",
		Category:      interfaces.CategoryFundamental,
		RatePerMinute: 15,
		RatePerHour:   400,
	}
	return &Scraper{Base: scrapers.NewBase(desc, opts, logger)}
}

// Scrape fetches the equity page once and extracts the indicator grid plus
// the price header.
func (s *Scraper) Scrape(ctx context.Context, target string) (*models.ScrapeResult, error) {
	ticker := common.NormalizeTicker(target)
	url := fmt.Sprintf("%s/acoes/%s", baseURL, strings.ToLower(ticker))

	doc, err := s.FetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	data := extractIndicators(doc)
	if price, ok := extractPrice(doc); ok {
		data["price"] = price
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no indicators found for %s", ticker)
	}

	s.Logger().Debug().
		Str("ticker", ticker).
		Int("fields", len(data)).
		Msg("StatusInvest indicators extracted")

	return s.NewResult(ticker, data, url), nil
}

// ScrapeWithRetry wraps Scrape with the shared retry policy.
func (s *Scraper) ScrapeWithRetry(ctx context.Context, target string) *models.ScrapeResult {
	return s.DoScrapeWithRetry(ctx, target, s.Scrape)
}

// HealthCheck probes the site root.
func (s *Scraper) HealthCheck(ctx context.Context) bool {
	return s.CheckURL(ctx, baseURL)
}

// extractIndicators reads the grid of indicator cells: each cell is a div
// whose h3 carries the indicator title and whose strong.value holds the
// formatted number.
func extractIndicators(doc *goquery.Document) map[string]interface{} {
	data := make(map[string]interface{})

	doc.Find("div.indicator-today-container div[title], div.top-info div[title]").Each(func(_ int, cell *goquery.Selection) {
		title, _ := cell.Attr("title")
		field, ok := indicatorFields[strings.ToLower(strings.TrimSpace(title))]
		if !ok {
			return
		}
		raw := strings.TrimSpace(cell.Find("strong.value").First().Text())
		if raw == "" {
			raw = strings.TrimSpace(cell.Find("strong").First().Text())
		}
		if value, parsed := scrapers.ParseNumberBR(raw); parsed {
			data[field] = value
		}
	})

	// fallback layout: h3 title above strong value
	if len(data) == 0 {
		doc.Find("div.info").Each(func(_ int, cell *goquery.Selection) {
			title := strings.ToLower(strings.TrimSpace(cell.Find("h3").First().Text()))
			field, ok := indicatorFields[title]
			if !ok {
				return
			}
			raw := strings.TrimSpace(cell.Find("strong").First().Text())
			if value, parsed := scrapers.ParseNumberBR(raw); parsed {
				data[field] = value
			}
		})
	}

	return data
}

// extractPrice reads the current price header.
func extractPrice(doc *goquery.Document) (float64, bool) {
	raw := strings.TrimSpace(doc.Find("div[title='Valor atual do ativo'] strong.value").First().Text())
	if raw == "" {
		raw = strings.TrimSpace(doc.Find("strong.value").First().Text())
	}
	return scrapers.ParseNumberBR(raw)
}

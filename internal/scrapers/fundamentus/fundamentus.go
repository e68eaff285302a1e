// -----------------------------------------------------------------------
// Fundamentus Scraper - fundamental indicators from fundamentus.com.br
// -----------------------------------------------------------------------

package fundamentus

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
	Name    = "fundamentus"
	baseURL = "https://www.fundamentus.com.br"
)

// Scraper fetches the detail page for a ticker once, detects the asset type
// and routes to the matching extractor.
type Scraper struct {
	*scrapers.Base
}

var _ interfaces.Scraper = (*Scraper)(nil)

// New creates the Fundamentus scraper.
func New(opts scrapers.Options, logger arbor.ILogger) *Scraper {
	desc := interfaces.Descriptor{
		Name:          Name,
		Source:        "fundamentus.com.br",
		Category:      interfaces.CategoryFundamental,
		RatePerMinute: 20,
		RatePerHour:   600,
	}
	return &Scraper{Base: scrapers.NewBase(desc, opts, logger)}
}

// Scrape fetches and extracts fundamentals for one ticker.
func (s *Scraper) Scrape(ctx context.Context, target string) (*models.ScrapeResult, error) {
	ticker := common.NormalizeTicker(target)
	url := fmt.Sprintf("%s/detalhes.php?papel=%s", baseURL, ticker)

	doc, err := s.FetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	page := parsePage(doc)
	if len(page.values) == 0 {
		return nil, fmt.Errorf("no indicator labels found for %s", ticker)
	}

	assetType := detectAssetType(ticker, page)
	extractor := extractorFor(assetType)
	data := extractor.extract(page)
	data["asset_type"] = string(assetType)

	s.Logger().Debug().
		Str("ticker", ticker).
		Str("asset_type", string(assetType)).
		Int("fields", len(data)).
		Msg("Fundamentus page extracted")

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

// page is the fetched document reduced to a label -> raw value lookup plus
// the free text used by the asset-type rules.
type page struct {
	values    map[string]string
	sector    string
	subsector string
	fullText  string
}

// parsePage walks the indicator tables. The site lays data out as paired
// cells: a td.label holding the indicator name and the td.data right after
// it holding the value.
func parsePage(doc *goquery.Document) *page {
	p := &page{values: make(map[string]string)}

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		var pendingLabel string
		cells.Each(func(_ int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Find("span.txt").First().Text())
			if text == "" {
				text = strings.TrimSpace(cell.Text())
			}
			if cell.HasClass("label") {
				pendingLabel = normalizeLabel(text)
				return
			}
			if cell.HasClass("data") && pendingLabel != "" {
				if _, exists := p.values[pendingLabel]; !exists {
					p.values[pendingLabel] = text
				}
				pendingLabel = ""
			}
		})
	})

	p.sector = strings.ToLower(p.values["setor"])
	p.subsector = strings.ToLower(p.values["subsetor"])
	p.fullText = strings.ToLower(doc.Text())
	return p
}

// normalizeLabel lowercases a site label and strips the help marker the site
// prefixes on hoverable labels.
func normalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.TrimPrefix(s, "?")
	return strings.TrimSpace(s)
}

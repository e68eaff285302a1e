// -----------------------------------------------------------------------
// BCB Scraper - macro indicators from the central bank's SGS API
// -----------------------------------------------------------------------

package bcb

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/scrapers"
)

const (
	Name    = "bcb"
	baseURL = "https://api.bcb.gov.br/dados/serie"
)

// series maps indicator keys to SGS series codes. The target of a macro job
// is one of these keys, or "all" for the full set.
var series = map[string]int{
	"selic":  432, // Selic target rate, % p.a.
	"cdi":    12,  // CDI daily rate
	"ipca":   433, // IPCA monthly variation
	"igpm":   189, // IGP-M monthly variation
	"dolar":  1,   // USD/BRL PTAX sell
	"euro":   21619,
}

// sgsPoint is one observation in the SGS response. Values arrive as
// Brazilian-formatted strings.
type sgsPoint struct {
	Date  string `json:"data"`
	Value string `json:"valor"`
}

// Scraper fetches the latest observation of each requested indicator.
type Scraper struct {
	*scrapers.Base
	baseURL string
}

var _ interfaces.Scraper = (*Scraper)(nil)

// New creates the BCB macro scraper.
func New(opts scrapers.Options, logger arbor.ILogger) *Scraper {
	desc := interfaces.Descriptor{
		Name:          Name,
		Source:        "api.bcb.gov.br",
		Category:      interfaces.CategoryMacro,
		RatePerMinute: 30,
		RatePerHour:   800,
	}
	return &Scraper{
		Base:    scrapers.NewBase(desc, opts, logger),
		baseURL: baseURL,
	}
}

// Scrape fetches either one indicator (target is the indicator key) or the
// whole set (target "all" or empty).
func (s *Scraper) Scrape(ctx context.Context, target string) (*models.ScrapeResult, error) {
	key := strings.ToLower(strings.TrimSpace(target))

	var wanted []string
	if key == "" || key == "all" {
		for name := range series {
			wanted = append(wanted, name)
		}
	} else {
		if _, ok := series[key]; !ok {
			return nil, fmt.Errorf("unknown macro indicator %q", target)
		}
		wanted = []string{key}
	}

	data := make(map[string]interface{})
	var lastErr error
	for _, name := range wanted {
		value, date, err := s.fetchLatest(ctx, series[name])
		if err != nil {
			lastErr = err
			s.Logger().Warn().
				Err(err).
				Str("indicator", name).
				Msg("Failed to fetch macro series")
			continue
		}
		data[name] = value
		data[name+"_date"] = date
	}

	if len(data) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("no macro data fetched")
	}

	return s.NewResult(target, data, s.baseURL), nil
}

// fetchLatest returns the most recent observation of a series.
func (s *Scraper) fetchLatest(ctx context.Context, code int) (float64, string, error) {
	url := fmt.Sprintf("%s/bcdata.sgs.%d/dados/ultimos/1?formato=json", s.baseURL, code)

	var points []sgsPoint
	if err := s.FetchJSON(ctx, url, &points); err != nil {
		return 0, "", err
	}
	if len(points) == 0 {
		return 0, "", fmt.Errorf("series %d returned no observations", code)
	}

	value, ok := scrapers.ParseNumberBR(points[0].Value)
	if !ok {
		return 0, "", fmt.Errorf("series %d returned unparseable value %q", code, points[0].Value)
	}
	return value, points[0].Date, nil
}

// ScrapeWithRetry wraps Scrape with the shared retry policy.
func (s *Scraper) ScrapeWithRetry(ctx context.Context, target string) *models.ScrapeResult {
	return s.DoScrapeWithRetry(ctx, target, s.Scrape)
}

// HealthCheck probes the Selic series endpoint.
func (s *Scraper) HealthCheck(ctx context.Context) bool {
	return s.CheckURL(ctx, fmt.Sprintf("%s/bcdata.sgs.432/dados/ultimos/1?formato=json", s.baseURL))
}

// -----------------------------------------------------------------------
// Opcoes Scraper - option chain with greeks from opcoes.net.br
// -----------------------------------------------------------------------

package opcoes

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
	Name    = "opcoes"
	baseURL = "https://opcoes.net.br"
)

// Option is one row of the chain table.
type Option struct {
	Symbol string   `json:"symbol"`
	Type   string   `json:"type"` // call | put
	Strike float64  `json:"strike"`
	Bid    *float64 `json:"bid,omitempty"`
	Ask    *float64 `json:"ask,omitempty"`
	Last   *float64 `json:"last,omitempty"`
	IV     *float64 `json:"iv,omitempty"`
	Delta  *float64 `json:"delta,omitempty"`
	Gamma  *float64 `json:"gamma,omitempty"`
	Theta  *float64 `json:"theta,omitempty"`
	Vega   *float64 `json:"vega,omitempty"`
}

// Scraper extracts the nearest-expiry option chain for an underlying.
type Scraper struct {
	*scrapers.Base
}

var _ interfaces.Scraper = (*Scraper)(nil)

// New creates the options scraper.
func New(opts scrapers.Options, logger arbor.ILogger) *Scraper {
	desc := interfaces.Descriptor{
		Name:          Name,
		Source:        "opcoes.net.br",
		Category:      interfaces.CategoryOptions,
		RatePerMinute: 10,
		RatePerHour:   200,
	}
	return &Scraper{Base: scrapers.NewBase(desc, opts, logger)}
}

// Scrape fetches the chain page once and extracts every row with a strike.
func (s *Scraper) Scrape(ctx context.Context, target string) (*models.ScrapeResult, error) {
	ticker := common.NormalizeTicker(target)
	url := fmt.Sprintf("%s/opcoes/bovespa/%s", baseURL, ticker)

	doc, err := s.FetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	options := extractChain(doc)
	if len(options) == 0 {
		return nil, fmt.Errorf("no option chain found for %s", ticker)
	}

	calls, puts := 0, 0
	var ivSum float64
	ivCount := 0
	items := make([]interface{}, 0, len(options))
	for _, o := range options {
		if o.Type == "call" {
			calls++
		} else {
			puts++
		}
		if o.IV != nil {
			ivSum += *o.IV
			ivCount++
		}
		items = append(items, optionToMap(o))
	}

	data := map[string]interface{}{
		"options":    items,
		"call_count": float64(calls),
		"put_count":  float64(puts),
	}
	if ivCount > 0 {
		data["iv_avg"] = ivSum / float64(ivCount)
	}
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

// chainColumns maps header captions (lowercased) to option fields.
var chainColumns = map[string]string{
	"strike": "strike", "preço de exercício": "strike",
	"últ": "last", "último": "last",
	"compra": "bid", "venda": "ask",
	"vol. impl": "iv", "iv": "iv",
	"delta": "delta", "gamma": "gamma", "theta": "theta", "vega": "vega",
	"ticker": "symbol", "opção": "symbol", "tipo": "type",
}

// extractChain walks the chain table, using the header row to locate the
// columns so layout reshuffles don't break extraction.
func extractChain(doc *goquery.Document) []Option {
	var options []Option

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		fields := make(map[int]string)
		table.Find("thead th, tr:first-child th").Each(func(i int, th *goquery.Selection) {
			caption := strings.ToLower(strings.TrimSpace(th.Text()))
			for key, field := range chainColumns {
				if strings.HasPrefix(caption, key) {
					fields[i] = field
					break
				}
			}
		})
		if len(fields) < 3 {
			return true // not the chain table
		}

		table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			option := Option{}
			row.Find("td").Each(func(i int, td *goquery.Selection) {
				field, ok := fields[i]
				if !ok {
					return
				}
				raw := strings.TrimSpace(td.Text())
				switch field {
				case "symbol":
					option.Symbol = strings.ToUpper(raw)
				case "type":
					option.Type = normalizeType(raw)
				case "strike":
					if v, parsed := scrapers.ParseNumberBR(raw); parsed {
						option.Strike = v
					}
				case "last":
					option.Last = scrapers.ParseNumberBRPtr(raw)
				case "bid":
					option.Bid = scrapers.ParseNumberBRPtr(raw)
				case "ask":
					option.Ask = scrapers.ParseNumberBRPtr(raw)
				case "iv":
					option.IV = scrapers.ParseNumberBRPtr(raw)
				case "delta":
					option.Delta = scrapers.ParseNumberBRPtr(raw)
				case "gamma":
					option.Gamma = scrapers.ParseNumberBRPtr(raw)
				case "theta":
					option.Theta = scrapers.ParseNumberBRPtr(raw)
				case "vega":
					option.Vega = scrapers.ParseNumberBRPtr(raw)
				}
			})
			if option.Symbol != "" && option.Strike > 0 {
				if option.Type == "" {
					option.Type = typeFromSymbol(option.Symbol)
				}
				options = append(options, option)
			}
		})
		return false
	})

	return options
}

func normalizeType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "call", "c", "compra":
		return "call"
	case "put", "p", "venda":
		return "put"
	}
	return ""
}

// typeFromSymbol derives call/put from the B3 series letter: A-L are calls,
// M-X are puts.
func typeFromSymbol(symbol string) string {
	for i := len(symbol) - 1; i >= 0; i-- {
		c := symbol[i]
		if c >= 'A' && c <= 'Z' {
			if c <= 'L' {
				return "call"
			}
			return "put"
		}
	}
	return ""
}

func optionToMap(o Option) map[string]interface{} {
	m := map[string]interface{}{
		"symbol": o.Symbol,
		"type":   o.Type,
		"strike": o.Strike,
	}
	setIf := func(key string, v *float64) {
		if v != nil {
			m[key] = *v
		}
	}
	setIf("bid", o.Bid)
	setIf("ask", o.Ask)
	setIf("last", o.Last)
	setIf("iv", o.IV)
	setIf("delta", o.Delta)
	setIf("gamma", o.Gamma)
	setIf("theta", o.Theta)
	setIf("vega", o.Vega)
	return m
}

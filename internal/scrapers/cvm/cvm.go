// -----------------------------------------------------------------------
// CVM Scraper - insider transactions from the regulator's open data
// -----------------------------------------------------------------------

package cvm

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/scrapers"
)

const (
	Name    = "cvm"
	baseURL = "https://dados.cvm.gov.br/dados/CIA_ABERTA/DOC/VLMO/DADOS"
)

// Transaction is one insider trade reported under CVM instruction 44.
type Transaction struct {
	Date     string  `json:"date"`
	Company  string  `json:"company"`
	Role     string  `json:"role"`
	Type     string  `json:"type"` // compra | venda
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Volume   float64 `json:"volume"`
}

// Scraper downloads the current month's consolidated trading file and
// filters it to the target company.
type Scraper struct {
	*scrapers.Base
	baseURL string
	now     func() time.Time
}

var _ interfaces.Scraper = (*Scraper)(nil)

// New creates the CVM insider scraper.
func New(opts scrapers.Options, logger arbor.ILogger) *Scraper {
	desc := interfaces.Descriptor{
		Name:          Name,
		Source:        "dados.cvm.gov.br",
		Category:      interfaces.CategoryInsiders,
		RatePerMinute: 5,
		RatePerHour:   60,
	}
	return &Scraper{
		Base:    scrapers.NewBase(desc, opts, logger),
		baseURL: baseURL,
		now:     time.Now,
	}
}

// Scrape fetches the monthly file once and extracts the target's rows. The
// target is matched against the reported company name using the ticker's
// base symbol, so PETR4 matches PETROBRAS filings.
func (s *Scraper) Scrape(ctx context.Context, target string) (*models.ScrapeResult, error) {
	ticker := common.NormalizeTicker(target)
	needle := strings.ToUpper(common.BaseSymbol(ticker))

	ref := s.now()
	url := fmt.Sprintf("%s/vlmo_cia_aberta_%04d_%02d.csv", s.baseURL, ref.Year(), int(ref.Month()))

	body, err := s.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	transactions, err := parseTransactions(body, needle)
	if err != nil {
		return nil, err
	}

	buys, sells := 0, 0
	var buyVolume, sellVolume float64
	items := make([]interface{}, 0, len(transactions))
	for _, tx := range transactions {
		switch tx.Type {
		case "compra":
			buys++
			buyVolume += tx.Volume
		case "venda":
			sells++
			sellVolume += tx.Volume
		}
		items = append(items, map[string]interface{}{
			"date":     tx.Date,
			"company":  tx.Company,
			"role":     tx.Role,
			"type":     tx.Type,
			"quantity": tx.Quantity,
			"price":    tx.Price,
			"volume":   tx.Volume,
		})
	}

	data := map[string]interface{}{
		"transactions": items,
		"buy_count":    float64(buys),
		"sell_count":   float64(sells),
		"buy_volume":   buyVolume,
		"sell_volume":  sellVolume,
	}
	return s.NewResult(ticker, data, url), nil
}

// columns of interest in the consolidated file. The header names are stable
// across monthly files.
const (
	colDate     = "Data_Referencia"
	colCompany  = "Nome_Companhia"
	colRole     = "Tipo_Cargo"
	colMovement = "Tipo_Movimentacao"
	colQuantity = "Quantidade"
	colPrice    = "Preco_Unitario"
	colVolume   = "Volume"
)

// parseTransactions decodes the semicolon-separated file and keeps the rows
// whose company name contains the needle.
func parseTransactions(body []byte, needle string) ([]Transaction, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colCompany, colMovement} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("column %s missing from CVM file", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var transactions []Transaction
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		company := field(record, colCompany)
		if !strings.Contains(strings.ToUpper(company), needle) {
			continue
		}

		movement := strings.ToLower(field(record, colMovement))
		txType := ""
		switch {
		case strings.Contains(movement, "compra"):
			txType = "compra"
		case strings.Contains(movement, "venda"):
			txType = "venda"
		default:
			continue // subscriptions, bonuses etc. are not insider signals
		}

		quantity, _ := scrapers.ParseNumberBR(field(record, colQuantity))
		price, _ := scrapers.ParseNumberBR(field(record, colPrice))
		volume, ok := scrapers.ParseNumberBR(field(record, colVolume))
		if !ok {
			volume = quantity * price
		}

		transactions = append(transactions, Transaction{
			Date:     field(record, colDate),
			Company:  company,
			Role:     field(record, colRole),
			Type:     txType,
			Quantity: quantity,
			Price:    price,
			Volume:   volume,
		})
	}
	return transactions, nil
}

// ScrapeWithRetry wraps Scrape with the shared retry policy.
func (s *Scraper) ScrapeWithRetry(ctx context.Context, target string) *models.ScrapeResult {
	return s.DoScrapeWithRetry(ctx, target, s.Scrape)
}

// HealthCheck probes the open-data portal.
func (s *Scraper) HealthCheck(ctx context.Context) bool {
	return s.CheckURL(ctx, "https://dados.cvm.gov.br")
}

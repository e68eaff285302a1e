package interfaces

import (
	"context"

	"github.com/rmarinho/garimpo/internal/models"
)

// ScraperCategory groups scrapers by the kind of data they acquire.
type ScraperCategory string

const (
	CategoryFundamental ScraperCategory = "fundamental"
	CategoryTechnical   ScraperCategory = "technical"
	CategoryNews        ScraperCategory = "news"
	CategoryOptions     ScraperCategory = "options"
	CategoryInsiders    ScraperCategory = "insiders"
	CategoryMacro       ScraperCategory = "macro"
	CategoryCrypto      ScraperCategory = "crypto"
)

// Descriptor is a scraper's static identity and policy. Immutable after
// registration.
type Descriptor struct {
	Name          string
	Source        string
	Category      ScraperCategory
	RequiresLogin bool
	RatePerMinute int
	RatePerHour   int
	MaxRetries    int
}

// ScraperRegistry resolves scrapers by name. Implementations return
// ErrScraperUnknown for names absent from the catalog.
type ScraperRegistry interface {
	Get(name string) (Scraper, error)
	All() []Scraper
	ByCategory(category ScraperCategory) []Scraper
}

// Scraper is the uniform contract every concrete source implements.
// Initialize is idempotent; Scrape never leaks errors as panics - failures
// come back as a ScrapeResult with Error set, or as an error the retry
// wrapper converts.
type Scraper interface {
	// Descriptor returns the static descriptor.
	Descriptor() Descriptor

	// Initialize prepares session state. For login-required sources it
	// loads persisted cookies, verifies them and performs a fresh login
	// when they are missing or expired. Safe to call twice.
	Initialize(ctx context.Context) error

	// Scrape fetches and extracts data for one target (ticker or
	// indicator key), respecting the scraper's rate limit.
	Scrape(ctx context.Context, target string) (*models.ScrapeResult, error)

	// ScrapeWithRetry wraps Scrape with exponential backoff up to the
	// descriptor's MaxRetries. The final failure is returned as a failed
	// result, never as a panic.
	ScrapeWithRetry(ctx context.Context, target string) *models.ScrapeResult

	// HealthCheck is a best-effort reachability probe.
	HealthCheck(ctx context.Context) bool

	// Cleanup releases HTTP/browser resources. Safe to call twice.
	Cleanup() error
}

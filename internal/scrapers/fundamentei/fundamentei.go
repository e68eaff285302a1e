// -----------------------------------------------------------------------
// Fundamentei Scraper - login-gated fundamentals from fundamentei.com
// -----------------------------------------------------------------------

package fundamentei

import (
	"context"
	"errors"
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
	Name    = "fundamentei"
	baseURL = "https://fundamentei.com"
)

// ErrAuthExpired reports that the persisted session no longer works and a
// fresh login also failed.
var ErrAuthExpired = errors.New("fundamentei session expired")

// Credentials holds the login pair from config.
type Credentials struct {
	Email    string
	Password string
}

// Scraper maintains a logged-in session harvested by a headless browser and
// scrapes company pages with plain HTTP afterwards.
type Scraper struct {
	*scrapers.Base
	creds    Credentials
	headless bool
}

var _ interfaces.Scraper = (*Scraper)(nil)

// New creates the Fundamentei scraper.
func New(creds Credentials, headless bool, opts scrapers.Options, logger arbor.ILogger) *Scraper {
	desc := interfaces.Descriptor{
		Name:          Name,
		Source:        "fundamentei.com",
		Category:      interfaces.CategoryFundamental,
		RequiresLogin: true,
		RatePerMinute: 10,
		RatePerHour:   200,
	}
	return &Scraper{
		Base:     scrapers.NewBase(desc, opts, logger),
		creds:    creds,
		headless: headless,
	}
}

// Initialize loads persisted cookies, verifies the session against a
// logged-in page and performs a fresh browser login when the session is
// missing or expired. Idempotent after success.
func (s *Scraper) Initialize(ctx context.Context) error {
	if s.Initialized() {
		return nil
	}
	if err := s.Base.Initialize(ctx); err != nil {
		return err
	}

	if s.sessionValid(ctx) {
		return nil
	}

	s.Logger().Info().Str("scraper", Name).Msg("Session invalid, performing fresh login")
	if err := s.login(ctx); err != nil {
		s.ResetSession()
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	if !s.sessionValid(ctx) {
		s.ResetSession()
		return ErrAuthExpired
	}
	return nil
}

// sessionValid fetches the account page and looks for the logout control
// only logged-in pages carry.
func (s *Scraper) sessionValid(ctx context.Context) bool {
	doc, err := s.FetchDocument(ctx, baseURL+"/conta")
	if err != nil {
		return false
	}
	return doc.Find("a[href*='logout'], button[data-action='logout']").Length() > 0
}

// login drives the headless browser through the login form and persists the
// harvested cookies.
func (s *Scraper) login(ctx context.Context) error {
	cookies, err := scrapers.BrowserLogin(ctx, scrapers.LoginFlow{
		LoginURL:         baseURL + "/entrar",
		EmailSelector:    `input[name="email"]`,
		PasswordSelector: `input[name="password"]`,
		SubmitSelector:   `button[type="submit"]`,
		LoggedInSelector: `a[href*="logout"]`,
		Email:            s.creds.Email,
		Password:         s.creds.Password,
		Headless:         s.headless,
	}, s.Logger())
	if err != nil {
		return err
	}

	if err := s.ApplyCookies(cookies); err != nil {
		return err
	}
	if err := s.PersistCookies(cookies); err != nil {
		s.Logger().Warn().Err(err).Msg("Failed to persist session cookies")
	}
	return nil
}

// Scrape fetches the company page for a ticker. An expired session triggers
// one re-login before giving up.
func (s *Scraper) Scrape(ctx context.Context, target string) (*models.ScrapeResult, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	ticker := common.NormalizeTicker(target)
	url := fmt.Sprintf("%s/br/%s", baseURL, strings.ToLower(common.BaseSymbol(ticker)))

	doc, err := s.FetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	if isLoginWall(doc) {
		s.ResetSession()
		return nil, scrapers.Retryable(ErrAuthExpired)
	}

	data := extractRatings(doc)
	if len(data) == 0 {
		return nil, fmt.Errorf("no data extracted for %s", ticker)
	}
	return s.NewResult(ticker, data, url), nil
}

// ScrapeWithRetry wraps Scrape with the shared retry policy.
func (s *Scraper) ScrapeWithRetry(ctx context.Context, target string) *models.ScrapeResult {
	return s.DoScrapeWithRetry(ctx, target, s.Scrape)
}

// HealthCheck probes the public landing page.
func (s *Scraper) HealthCheck(ctx context.Context) bool {
	return s.CheckURL(ctx, baseURL)
}

// isLoginWall detects the paywall page served to logged-out visitors.
func isLoginWall(doc *goquery.Document) bool {
	return doc.Find(`form[action*="entrar"], input[name="password"]`).Length() > 0
}

// extractRatings reads the community rating block and the summary
// indicators.
func extractRatings(doc *goquery.Document) map[string]interface{} {
	data := make(map[string]interface{})

	if raw := strings.TrimSpace(doc.Find("[data-rating-average]").AttrOr("data-rating-average", "")); raw != "" {
		if value, ok := scrapers.ParseNumberBR(raw); ok {
			data["community_rating"] = value
		}
	}
	if raw := strings.TrimSpace(doc.Find("[data-rating-count]").AttrOr("data-rating-count", "")); raw != "" {
		if value, ok := scrapers.ParseNumberBR(raw); ok {
			data["rating_count"] = value
		}
	}

	doc.Find("div.indicator").Each(func(_ int, cell *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(cell.Find("span.label").First().Text()))
		raw := strings.TrimSpace(cell.Find("span.value").First().Text())
		field, ok := map[string]string{
			"p/l":  "p_l",
			"p/vp": "p_vp",
			"dy":   "dy",
			"roe":  "roe",
		}[label]
		if !ok {
			return
		}
		if value, parsed := scrapers.ParseNumberBR(raw); parsed {
			data[field] = value
		}
	})

	return data
}

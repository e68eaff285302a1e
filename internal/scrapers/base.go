// -----------------------------------------------------------------------
// Scraper Base - shared HTTP session, rate limiting and retry plumbing
// -----------------------------------------------------------------------

package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	defaultRatePerMinute = 30
	defaultTimeout       = 30 * time.Second
	defaultBudget        = 60 * time.Second
	defaultMaxRetries    = 3
)

// Options are the session knobs every scraper shares, resolved from
// configuration by the caller. Zero values fall back to the package
// defaults; a descriptor's own MaxRetries takes precedence.
type Options struct {
	CookiesDir string
	Timeout    time.Duration // per-request network timeout
	Budget     time.Duration // overall deadline for one ScrapeWithRetry run
	MaxRetries int
}

// StatusError is an HTTP response with a non-success status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// ScrapeFunc is a concrete scraper's single-attempt scrape.
type ScrapeFunc func(ctx context.Context, target string) (*models.ScrapeResult, error)

// Base carries the session state every scraper shares: an HTTP client with
// a cookie jar, a per-instance rate limiter and the retry policy. Concrete
// scrapers embed it and implement Scrape; their ScrapeWithRetry delegates to
// DoScrapeWithRetry.
type Base struct {
	desc       interfaces.Descriptor
	client     *http.Client
	limiter    *rate.Limiter
	retry      *RetryPolicy
	logger     arbor.ILogger
	cookiesDir string
	budget     time.Duration
	userAgent  string

	mu          sync.Mutex
	initialized bool
}

// NewBase builds the shared session for a descriptor.
func NewBase(desc interfaces.Descriptor, opts Options, logger arbor.ILogger) *Base {
	if desc.RatePerMinute <= 0 {
		desc.RatePerMinute = defaultRatePerMinute
	}
	if desc.MaxRetries <= 0 {
		desc.MaxRetries = opts.MaxRetries
	}
	if desc.MaxRetries <= 0 {
		desc.MaxRetries = defaultMaxRetries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Budget <= 0 {
		opts.Budget = defaultBudget
	}

	jar, _ := cookiejar.New(nil)
	return &Base{
		desc: desc,
		client: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(float64(desc.RatePerMinute)/60.0), 1),
		retry:      NewRetryPolicy(desc.MaxRetries),
		logger:     logger,
		cookiesDir: opts.CookiesDir,
		budget:     opts.Budget,
		userAgent:  defaultUserAgent,
	}
}

// Descriptor returns the scraper's static descriptor.
func (b *Base) Descriptor() interfaces.Descriptor {
	return b.desc
}

// Logger exposes the scraper's logger to embedders.
func (b *Base) Logger() arbor.ILogger {
	return b.logger
}

// Initialize loads persisted cookies for login-required sources. Idempotent.
// Scrapers with a real login flow override this and call it for the cookie
// load.
func (b *Base) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}

	if b.desc.RequiresLogin {
		cookies, err := LoadCookies(b.cookiesDir, b.desc.Name)
		if err != nil {
			return err
		}
		if len(cookies) > 0 {
			if err := b.ApplyCookies(cookies); err != nil {
				return err
			}
			b.logger.Debug().
				Str("scraper", b.desc.Name).
				Int("cookies", len(cookies)).
				Msg("Loaded persisted session cookies")
		}
	}

	b.initialized = true
	return nil
}

// Initialized reports whether Initialize has completed.
func (b *Base) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// ResetSession drops the initialized flag so the next Initialize runs the
// full flow again, after an expired login is detected.
func (b *Base) ResetSession() {
	b.mu.Lock()
	b.initialized = false
	b.mu.Unlock()
}

// ApplyCookies installs persisted cookies into the session jar.
func (b *Base) ApplyCookies(cookies []Cookie) error {
	byDomain := make(map[string][]*http.Cookie)
	for _, hc := range toHTTPCookies(cookies) {
		byDomain[hc.Domain] = append(byDomain[hc.Domain], hc)
	}
	for domain, cs := range byDomain {
		u, err := jarURL(domain)
		if err != nil {
			return fmt.Errorf("invalid cookie domain %q: %w", domain, err)
		}
		b.client.Jar.SetCookies(u, cs)
	}
	return nil
}

// PersistCookies writes the given cookies to the scraper's cookie file.
func (b *Base) PersistCookies(cookies []Cookie) error {
	return SaveCookies(b.cookiesDir, b.desc.Name, cookies)
}

// Wait blocks until the scraper's rate limit admits the next request.
func (b *Base) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Fetch performs one rate-limited GET and returns the full body. Retryable
// statuses come back as retryable errors so the retry wrapper backs off.
func (b *Base) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := b.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, Retryable(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{Code: resp.StatusCode, URL: url}
		if b.retry.IsRetryableStatusCode(resp.StatusCode) {
			return nil, Retryable(statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Retryable(fmt.Errorf("failed to read response body: %w", err))
	}
	return body, nil
}

// FetchDocument fetches a page once and parses it in memory. Site extraction
// then runs against the local DOM, never against the remote one.
func (b *Base) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := b.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// FetchJSON fetches a URL and decodes its JSON body into v.
func (b *Base) FetchJSON(ctx context.Context, url string, v interface{}) error {
	body, err := b.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w", err)
	}
	return nil
}

// CheckURL is a best-effort reachability probe for HealthCheck
// implementations.
func (b *Base) CheckURL(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", b.userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode < 500
}

// DoScrapeWithRetry runs one scrape attempt under the retry policy, turning
// panics and final failures into a failed result. It never returns nil.
// The whole run, attempts and backoffs included, is bounded by the session
// budget.
func (b *Base) DoScrapeWithRetry(ctx context.Context, target string, fn ScrapeFunc) *models.ScrapeResult {
	ctx, cancel := context.WithTimeout(ctx, b.budget)
	defer cancel()

	var result *models.ScrapeResult

	err := b.retry.Execute(ctx, b.logger, func() error {
		attemptResult, attemptErr := b.safeScrape(ctx, target, fn)
		if attemptErr != nil {
			return attemptErr
		}
		if attemptResult == nil {
			return fmt.Errorf("scraper %s returned no result", b.desc.Name)
		}
		if !attemptResult.Success {
			result = attemptResult
			return Retryable(fmt.Errorf("scrape failed: %s", attemptResult.Error))
		}
		result = attemptResult
		return nil
	})

	if err != nil {
		if result == nil || result.Success {
			result = models.NewFailedResult(b.desc.Name, target, err)
		}
		return result
	}
	return result
}

// safeScrape converts a panic inside a scrape attempt into an error.
func (b *Base) safeScrape(ctx context.Context, target string, fn ScrapeFunc) (result *models.ScrapeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("scraper", b.desc.Name).
				Str("target", target).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovered panic in scrape")
			result = nil
			err = fmt.Errorf("scrape panicked: %v", r)
		}
	}()

	started := time.Now()
	result, err = fn(ctx, target)
	if result != nil && result.ResponseTime == 0 {
		result.ResponseTime = time.Since(started).Seconds()
	}
	return result, err
}

// NewResult builds a successful result for this scraper.
func (b *Base) NewResult(target string, data map[string]interface{}, url string) *models.ScrapeResult {
	now := time.Now()
	return &models.ScrapeResult{
		ScraperName: b.desc.Name,
		Ticker:      target,
		Success:     true,
		Data:        data,
		ExecutedAt:  now,
		Metadata: models.ResultMetadata{
			Source:    b.desc.Source,
			URL:       url,
			Timestamp: now,
			IsValid:   true,
		},
	}
}

// Cleanup releases idle connections. Safe to call twice.
func (b *Base) Cleanup() error {
	b.client.CloseIdleConnections()
	return nil
}

// -----------------------------------------------------------------------
// Browser Login - headless-browser login flow with cookie harvest
// -----------------------------------------------------------------------

package scrapers

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// LoginFlow describes a form-based login a headless browser performs to
// harvest session cookies for a scraper.
type LoginFlow struct {
	LoginURL         string
	EmailSelector    string
	PasswordSelector string
	SubmitSelector   string
	// LoggedInSelector must appear on the page after a successful login.
	LoggedInSelector string
	Email            string
	Password         string
	Headless         bool
	Timeout          time.Duration
}

// BrowserLogin runs the login flow in a headless browser and returns the
// session cookies in the persisted cookie shape.
func BrowserLogin(ctx context.Context, flow LoginFlow, logger arbor.ILogger) ([]Cookie, error) {
	if flow.Email == "" || flow.Password == "" {
		return nil, fmt.Errorf("login credentials not configured")
	}
	if flow.Timeout <= 0 {
		flow.Timeout = 60 * time.Second
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", flow.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(defaultUserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	defer browserCancel()

	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, flow.Timeout)
	defer timeoutCancel()

	logger.Info().Str("url", flow.LoginURL).Msg("Performing browser login")

	var harvested []Cookie
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(flow.LoginURL),
		chromedp.WaitVisible(flow.EmailSelector, chromedp.ByQuery),
		chromedp.SendKeys(flow.EmailSelector, flow.Email, chromedp.ByQuery),
		chromedp.SendKeys(flow.PasswordSelector, flow.Password, chromedp.ByQuery),
		chromedp.Click(flow.SubmitSelector, chromedp.ByQuery),
		chromedp.WaitVisible(flow.LoggedInSelector, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to read browser cookies: %w", err)
			}
			for _, c := range cookies {
				harvested = append(harvested, Cookie{
					Name:     c.Name,
					Value:    c.Value,
					Domain:   c.Domain,
					Path:     c.Path,
					Expires:  c.Expires,
					HTTPOnly: c.HTTPOnly,
					Secure:   c.Secure,
				})
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("browser login failed: %w", err)
	}

	logger.Info().
		Str("url", flow.LoginURL).
		Int("cookies", len(harvested)).
		Msg("Browser login succeeded")

	return harvested, nil
}

package scrapers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Cookie is the browser-native cookie shape persisted per scraper.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // unix seconds
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// cookieFile returns the per-scraper cookie path under the data directory.
func cookieFile(dir, scraperName string) string {
	return filepath.Join(dir, scraperName+"_cookies.json")
}

// LoadCookies reads a scraper's persisted cookies. A missing file returns an
// empty slice, not an error.
func LoadCookies(dir, scraperName string) ([]Cookie, error) {
	data, err := os.ReadFile(cookieFile(dir, scraperName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to decode cookie file: %w", err)
	}
	return cookies, nil
}

// SaveCookies persists a scraper's cookies, creating the directory if needed.
func SaveCookies(dir, scraperName string, cookies []Cookie) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := os.WriteFile(cookieFile(dir, scraperName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}

// toHTTPCookies converts persisted cookies for a cookie jar, dropping the
// expired ones.
func toHTTPCookies(cookies []Cookie) []*http.Cookie {
	now := time.Now()
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Expires > 0 && time.Unix(int64(c.Expires), 0).Before(now) {
			continue
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out
}

// jarURL builds the URL a cookie set is anchored to in a jar.
func jarURL(domain string) (*url.URL, error) {
	host := domain
	for len(host) > 0 && host[0] == '.' {
		host = host[1:]
	}
	return url.Parse("https://" + host + "/")
}

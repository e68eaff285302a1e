package scrapers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
)

func testDescriptor() interfaces.Descriptor {
	return interfaces.Descriptor{
		Name:          "stub",
		Source:        "stub",
		Category:      interfaces.CategoryFundamental,
		RatePerMinute: 6000,
		MaxRetries:    3,
	}
}

func newTestBase(t *testing.T) *Base {
	t.Helper()
	b := NewBase(testDescriptor(), Options{CookiesDir: t.TempDir(), Timeout: 5 * time.Second}, common.GetLogger())
	b.retry.InitialBackoff = time.Millisecond
	b.retry.MaxBackoff = 5 * time.Millisecond
	return b
}

func TestFetchDocumentParsesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><span class="price">R$ 32,18</span></body></html>`)
	}))
	defer srv.Close()

	b := newTestBase(t)
	doc, err := b.FetchDocument(context.Background(), srv.URL)
	require.NoError(t, err)

	value, ok := ParseNumberBR(doc.Find("span.price").Text())
	require.True(t, ok)
	assert.InDelta(t, 32.18, value, 1e-9)
}

func TestFetchRetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := newTestBase(t)
	_, err := b.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, IsRetryableError(err))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestFetchTerminalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := newTestBase(t)
	_, err := b.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.False(t, IsRetryableError(err))
}

func TestDoScrapeWithRetryEventualSuccess(t *testing.T) {
	b := newTestBase(t)

	var calls atomic.Int32
	result := b.DoScrapeWithRetry(context.Background(), "PETR4", func(ctx context.Context, target string) (*models.ScrapeResult, error) {
		if calls.Add(1) < 3 {
			return nil, Retryable(errors.New("transient"))
		}
		return b.NewResult(target, map[string]interface{}{"p_l": 10.5}, "http://example"), nil
	})

	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "PETR4", result.Ticker)
}

func TestDoScrapeWithRetryExhaustion(t *testing.T) {
	b := newTestBase(t)

	var calls atomic.Int32
	result := b.DoScrapeWithRetry(context.Background(), "PETR4", func(ctx context.Context, target string) (*models.ScrapeResult, error) {
		calls.Add(1)
		return nil, Retryable(errors.New("always down"))
	})

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "always down")
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoScrapeWithRetryRecoversPanic(t *testing.T) {
	b := newTestBase(t)

	result := b.DoScrapeWithRetry(context.Background(), "PETR4", func(ctx context.Context, target string) (*models.ScrapeResult, error) {
		panic("selector not found")
	})

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "selector not found")
}

func TestDoScrapeWithRetryDeterministic(t *testing.T) {
	b := newTestBase(t)
	stub := func(ctx context.Context, target string) (*models.ScrapeResult, error) {
		return b.NewResult(target, map[string]interface{}{"pvp": 1.2}, ""), nil
	}

	first := b.DoScrapeWithRetry(context.Background(), "VALE3", stub)
	second := b.DoScrapeWithRetry(context.Background(), "VALE3", stub)

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, first.Ticker, second.Ticker)
}

func TestDoScrapeWithRetryHonorsBudget(t *testing.T) {
	b := NewBase(testDescriptor(), Options{CookiesDir: t.TempDir(), Budget: 50 * time.Millisecond}, common.GetLogger())

	started := time.Now()
	result := b.DoScrapeWithRetry(context.Background(), "PETR4", func(ctx context.Context, target string) (*models.ScrapeResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	elapsed := time.Since(started)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "deadline")
	assert.Less(t, elapsed, 5*time.Second)
}

func TestOptionsRetriesApplyWhenDescriptorUnset(t *testing.T) {
	desc := testDescriptor()
	desc.MaxRetries = 0
	b := NewBase(desc, Options{CookiesDir: t.TempDir(), MaxRetries: 2}, common.GetLogger())
	b.retry.InitialBackoff = time.Millisecond
	b.retry.MaxBackoff = 5 * time.Millisecond

	assert.Equal(t, 2, b.Descriptor().MaxRetries)

	var calls atomic.Int32
	result := b.DoScrapeWithRetry(context.Background(), "PETR4", func(ctx context.Context, target string) (*models.ScrapeResult, error) {
		calls.Add(1)
		return nil, Retryable(errors.New("always down"))
	})

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInitializeIdempotent(t *testing.T) {
	b := newTestBase(t)
	ctx := context.Background()

	require.NoError(t, b.Initialize(ctx))
	assert.True(t, b.Initialized())
	require.NoError(t, b.Initialize(ctx))
	assert.True(t, b.Initialized())
}

func TestCookieRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cookies := []Cookie{
		{Name: "session", Value: "abc123", Domain: ".example.com", Path: "/", Secure: true, HTTPOnly: true},
		{Name: "pref", Value: "pt-BR", Domain: "example.com", Path: "/"},
	}

	require.NoError(t, SaveCookies(dir, "fundamentei", cookies))

	loaded, err := LoadCookies(dir, "fundamentei")
	require.NoError(t, err)
	assert.Equal(t, cookies, loaded)

	// missing file is empty, not an error
	none, err := LoadCookies(dir, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExpiredCookiesDropped(t *testing.T) {
	cookies := []Cookie{
		{Name: "live", Value: "x", Domain: "example.com", Path: "/", Expires: float64(time.Now().Add(time.Hour).Unix())},
		{Name: "dead", Value: "y", Domain: "example.com", Path: "/", Expires: float64(time.Now().Add(-time.Hour).Unix())},
	}

	converted := toHTTPCookies(cookies)
	require.Len(t, converted, 1)
	assert.Equal(t, "live", converted[0].Name)
}

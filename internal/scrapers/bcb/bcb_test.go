package bcb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/scrapers"
)

func TestScrapeSingleIndicator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.Contains(r.URL.Path, "bcdata.sgs.432"), "unexpected path %s", r.URL.Path)
		fmt.Fprint(w, `[{"data": "28/08/2026", "valor": "15,00"}]`)
	}))
	defer srv.Close()

	s := New(scrapers.Options{CookiesDir: t.TempDir(), Timeout: 5 * time.Second}, common.GetLogger())
	s.baseURL = srv.URL

	result, err := s.Scrape(context.Background(), "selic")
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.InDelta(t, 15.0, result.Data["selic"], 1e-9)
	assert.Equal(t, "28/08/2026", result.Data["selic_date"])
}

func TestScrapeUnknownIndicator(t *testing.T) {
	s := New(scrapers.Options{CookiesDir: t.TempDir(), Timeout: 5 * time.Second}, common.GetLogger())

	_, err := s.Scrape(context.Background(), "inflation-of-mars")
	assert.Error(t, err)
}

func TestScrapeAllToleratesPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bcdata.sgs.432") {
			fmt.Fprint(w, `[{"data": "28/08/2026", "valor": "15,00"}]`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(scrapers.Options{CookiesDir: t.TempDir(), Timeout: 5 * time.Second}, common.GetLogger())
	s.baseURL = srv.URL

	result, err := s.Scrape(context.Background(), "all")
	require.NoError(t, err)
	assert.InDelta(t, 15.0, result.Data["selic"], 1e-9)
	_, hasCDI := result.Data["cdi"]
	assert.False(t, hasCDI)
}

package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmarinho/garimpo/internal/common"
	"github.com/rmarinho/garimpo/internal/models"
	"github.com/rmarinho/garimpo/internal/storage/memory"
)

// stubResults serves canned results for any ticker.
type stubResults struct {
	results []*models.ScrapeResult
	calls   int
}

func (s *stubResults) SaveResult(ctx context.Context, result *models.ScrapeResult) error {
	return nil
}

func (s *stubResults) GetResultsSince(ctx context.Context, ticker string, since time.Time) ([]*models.ScrapeResult, error) {
	s.calls++
	return s.results, nil
}

func (s *stubResults) GetResultByJobID(ctx context.Context, jobID string) (*models.ScrapeResult, error) {
	return nil, nil
}

func (s *stubResults) DeleteResultsBefore(ctx context.Context, threshold time.Time) (int64, error) {
	return 0, nil
}

func resultFrom(scraper string, data map[string]interface{}) *models.ScrapeResult {
	return &models.ScrapeResult{
		JobID:       scraper + "-job",
		ScraperName: scraper,
		Ticker:      "PETR4",
		Success:     true,
		Data:        data,
		ExecutedAt:  time.Now(),
	}
}

func newTestService(results ...*models.ScrapeResult) (*Service, *stubResults) {
	store := &stubResults{results: results}
	return NewService(store, memory.New(), common.GetLogger()), store
}

func TestSingleSourceFundamental(t *testing.T) {
	svc, _ := newTestService(resultFrom("stub", map[string]interface{}{
		"p_l": 10.5, "pvp": 1.2, "roe": 15.0,
	}))

	view, err := svc.GetStockData(context.Background(), "PETR4")
	require.NoError(t, err)
	require.True(t, view.Success)

	pl := view.Fundamental["p_l"]
	require.NotNil(t, pl.Value)
	assert.InDelta(t, 10.5, *pl.Value, 1e-9)
	assert.Equal(t, 1, pl.SourceCount)
	assert.InDelta(t, 0.68, pl.Confidence, 1e-9)
	assert.InDelta(t, 1.0, pl.Agreement, 1e-9)
	assert.Zero(t, pl.StdDev)
	assert.Zero(t, pl.CV)

	// percentage metric normalized to decimal
	roe := view.Fundamental["roe"]
	require.NotNil(t, roe.Value)
	assert.InDelta(t, 0.15, *roe.Value, 1e-9)
	assert.InDelta(t, 0.68, roe.Confidence, 1e-9)
}

func TestThreeConcordantSources(t *testing.T) {
	svc, _ := newTestService(
		resultFrom("a", map[string]interface{}{"p_l": 10.0}),
		resultFrom("b", map[string]interface{}{"p_l": 10.2}),
		resultFrom("c", map[string]interface{}{"p_l": 10.1}),
	)

	view, err := svc.GetStockData(context.Background(), "PETR4")
	require.NoError(t, err)

	pl := view.Fundamental["p_l"]
	require.NotNil(t, pl.Value)
	assert.InDelta(t, 10.1, *pl.Value, 1e-9)
	assert.InDelta(t, 1.0, pl.Agreement, 1e-9)
	assert.InDelta(t, 0.84, pl.Confidence, 1e-9)
	assert.Less(t, pl.CV, 0.05)
}

func TestThreeDisagreeingSources(t *testing.T) {
	svc, _ := newTestService(
		resultFrom("a", map[string]interface{}{"p_l": 10.0}),
		resultFrom("b", map[string]interface{}{"p_l": 15.0}),
		resultFrom("c", map[string]interface{}{"p_l": 20.0}),
	)

	view, err := svc.GetStockData(context.Background(), "PETR4")
	require.NoError(t, err)

	pl := view.Fundamental["p_l"]
	require.NotNil(t, pl.Value)
	assert.InDelta(t, 15.0, *pl.Value, 1e-9)
	assert.InDelta(t, 15.0, pl.Mean, 1e-9)
	assert.InDelta(t, 5.0, pl.StdDev, 1e-9)
	assert.InDelta(t, 0.5, pl.Agreement, 1e-9)
	assert.InDelta(t, 0.54, pl.Confidence, 1e-9)
}

func TestIdenticalValuesFullAgreement(t *testing.T) {
	svc, _ := newTestService(
		resultFrom("a", map[string]interface{}{"p_l": 8.0}),
		resultFrom("b", map[string]interface{}{"p_l": 8.0}),
		resultFrom("c", map[string]interface{}{"p_l": 8.0}),
		resultFrom("d", map[string]interface{}{"p_l": 8.0}),
		resultFrom("e", map[string]interface{}{"p_l": 8.0}),
	)

	view, err := svc.GetStockData(context.Background(), "PETR4")
	require.NoError(t, err)

	pl := view.Fundamental["p_l"]
	assert.InDelta(t, 1.0, pl.Agreement, 1e-9)
	assert.InDelta(t, 1.0, pl.Confidence, 1e-9) // 0.4*min(5/5,1) + 0.6
}

func TestMetricWithNoValuesIsNull(t *testing.T) {
	svc, _ := newTestService(resultFrom("a", map[string]interface{}{"p_l": 10.0}))

	view, err := svc.GetStockData(context.Background(), "PETR4")
	require.NoError(t, err)

	ebitda, present := view.Fundamental["ev_ebitda"]
	require.True(t, present, "metric must appear even with no values")
	assert.Nil(t, ebitda.Value)
	assert.Zero(t, ebitda.Confidence)
	assert.Zero(t, ebitda.SourceCount)
	assert.Empty(t, ebitda.Sources)
}

func TestNoDataView(t *testing.T) {
	svc, _ := newTestService()

	view, err := svc.GetStockData(context.Background(), "XXXX3")
	require.NoError(t, err)
	assert.False(t, view.Success)
	assert.Equal(t, "No data available", view.Error)
	assert.Zero(t, view.Sources.Count)
}

func TestFailedViewNotCached(t *testing.T) {
	svc, store := newTestService()

	_, err := svc.GetStockData(context.Background(), "XXXX3")
	require.NoError(t, err)
	_, err = svc.GetStockData(context.Background(), "XXXX3")
	require.NoError(t, err)

	assert.Equal(t, 2, store.calls, "failed views must be recomputed, not cached")
}

func TestSuccessfulViewCached(t *testing.T) {
	svc, store := newTestService(resultFrom("a", map[string]interface{}{"p_l": 10.0}))

	first, err := svc.GetStockData(context.Background(), "PETR4")
	require.NoError(t, err)
	second, err := svc.GetStockData(context.Background(), "PETR4")
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls, "second call should come from cache")
	require.NotNil(t, second.Fundamental["p_l"].Value)
	assert.Equal(t, *first.Fundamental["p_l"].Value, *second.Fundamental["p_l"].Value)
}

func TestNestedSectionLookup(t *testing.T) {
	svc, _ := newTestService(resultFrom("a", map[string]interface{}{
		"indicators": map[string]interface{}{"roe": 12.0},
	}))

	view, err := svc.GetStockData(context.Background(), "PETR4")
	require.NoError(t, err)

	roe := view.Fundamental["roe"]
	require.NotNil(t, roe.Value)
	assert.InDelta(t, 0.12, *roe.Value, 1e-9)
}

func TestUnanimousTextField(t *testing.T) {
	svc, _ := newTestService(
		resultFrom("a", map[string]interface{}{"sector": "Petróleo e Gás", "p_l": 10.0}),
		resultFrom("b", map[string]interface{}{"setor": "Petróleo e Gás", "p_l": 10.0}),
	)

	view, err := svc.GetStockData(context.Background(), "PETR4")
	require.NoError(t, err)

	sector, ok := view.Text["sector"]
	require.True(t, ok)
	assert.Equal(t, "Petróleo e Gás", sector.Value)
	assert.True(t, sector.IsUnanimous)
	assert.Equal(t, []string{"a", "b"}, sector.Sources)
}

func TestDisagreeingTextFieldReportsMajority(t *testing.T) {
	svc, _ := newTestService(
		resultFrom("a", map[string]interface{}{"asset_type": "acao"}),
		resultFrom("b", map[string]interface{}{"asset_type": "acao"}),
		resultFrom("c", map[string]interface{}{"asset_type": "fii"}),
	)

	view, err := svc.GetStockData(context.Background(), "PETR4")
	require.NoError(t, err)

	assetType, ok := view.Text["asset_type"]
	require.True(t, ok)
	assert.Equal(t, "acao", assetType.Value)
	assert.False(t, assetType.IsUnanimous)

	// metrics no source reported never appear
	_, ok = view.Text["segment"]
	assert.False(t, ok)
}

func TestPercentNormalization(t *testing.T) {
	cases := []struct {
		in       interface{}
		expected float64
	}{
		{5.0, 0.05},
		{0.05, 0.05},
		{"5%", 0.05},
	}
	for _, tt := range cases {
		v, ok := normalizeValue(tt.in, true)
		require.True(t, ok, "input %v", tt.in)
		assert.InDelta(t, tt.expected, v, 1e-9, "input %v", tt.in)
	}
}

func TestCompare(t *testing.T) {
	svc, _ := newTestService(resultFrom("a", map[string]interface{}{"p_l": 10.0}))

	views, err := svc.Compare(context.Background(), []string{"petr4", "VALE3"})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Contains(t, views, "PETR4")
	assert.Contains(t, views, "VALE3")
}

package aggregator

import (
	"math"
	"sort"

	"github.com/rmarinho/garimpo/internal/models"
)

// sourceWeight is the coverage half of the confidence blend; agreementWeight
// the dispersion half. Five concordant sources give full confidence.
const (
	sourceWeight    = 0.4
	agreementWeight = 0.6
	fullCoverage    = 5.0
)

// agreementFor maps the coefficient of variation onto the agreement scale.
func agreementFor(cv float64) float64 {
	switch {
	case cv < 0.05:
		return 1.0
	case cv < 0.10:
		return 0.9
	case cv < 0.20:
		return 0.7
	case cv < 0.50:
		return 0.5
	default:
		return 0.3
	}
}

// crossValidate merges one metric's per-source values into an aggregated
// metric. The reported value is the median; confidence blends coverage and
// agreement.
func crossValidate(contributions []models.SourceValue) models.AggregatedMetric {
	n := len(contributions)
	if n == 0 {
		return models.AggregatedMetric{
			Value:   nil,
			Sources: []models.SourceValue{},
		}
	}

	values := make([]float64, n)
	for i, c := range contributions {
		values[i] = c.Value
	}

	mean := meanOf(values)
	stdDev := sampleStdDev(values, mean)

	cv := 0.0
	if n >= 2 && mean != 0 {
		cv = stdDev / math.Abs(mean)
	}

	agreement := agreementFor(cv)
	sourceScore := math.Min(float64(n)/fullCoverage, 1.0)
	confidence := sourceWeight*sourceScore + agreementWeight*agreement

	median := medianOf(values)
	return models.AggregatedMetric{
		Value:       &median,
		Sources:     contributions,
		SourceCount: n,
		Mean:        mean,
		StdDev:      stdDev,
		CV:          cv,
		Agreement:   agreement,
		Confidence:  confidence,
	}
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev is the n-1 standard deviation; zero for fewer than two
// samples.
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// aggregateText merges string values: unanimous inputs collapse to the
// value with is_unanimous set; disagreements report the most common value.
func aggregateText(values map[string]string) models.TextMetric {
	if len(values) == 0 {
		return models.TextMetric{}
	}

	counts := make(map[string]int)
	sources := make([]string, 0, len(values))
	for source, value := range values {
		counts[value]++
		sources = append(sources, source)
	}
	sort.Strings(sources)

	best := ""
	bestCount := 0
	for value, count := range counts {
		if count > bestCount || (count == bestCount && value < best) {
			best = value
			bestCount = count
		}
	}

	return models.TextMetric{
		Value:       best,
		Sources:     sources,
		IsUnanimous: len(counts) == 1,
	}
}

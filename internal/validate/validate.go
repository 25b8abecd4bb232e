// Package validate computes global agreement metrics between the ETo
// kernel's model output and the forecast provider's own ETo.
package validate

import (
	"math"

	"github.com/matopiba/forecast-pipeline/internal/domain"
)

// Pair is one (model, provider) ETo sample for a single city-day.
type Pair struct {
	Model    float64
	Provider float64
}

// Compute reduces every finite (model, provider) pair into a
// ValidationMetrics. An empty input yields NSamples=0, R2=NaN, and
// QualityBelowExpected.
func Compute(pairs []Pair) domain.ValidationMetrics {
	finite := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if math.IsNaN(p.Model) || math.IsNaN(p.Provider) || math.IsInf(p.Model, 0) || math.IsInf(p.Provider, 0) {
			continue
		}
		finite = append(finite, p)
	}

	n := len(finite)
	if n == 0 {
		return domain.ValidationMetrics{
			NSamples: 0,
			R2:       math.NaN(),
			Quality:  domain.QualityBelowExpected,
		}
	}

	var sumDiff, sumAbsDiff, sumSqDiff, sumProvider float64
	for _, p := range finite {
		diff := p.Model - p.Provider
		sumDiff += diff
		sumAbsDiff += math.Abs(diff)
		sumSqDiff += diff * diff
		sumProvider += p.Provider
	}
	nf := float64(n)
	bias := sumDiff / nf
	mae := sumAbsDiff / nf
	rmse := math.Sqrt(sumSqDiff / nf)

	meanProvider := sumProvider / nf
	var ssTot float64
	for _, p := range finite {
		d := p.Provider - meanProvider
		ssTot += d * d
	}

	r2 := math.NaN()
	if ssTot > 0 {
		r2 = 1 - sumSqDiff/ssTot
	}

	return domain.ValidationMetrics{
		R2:        r2,
		RMSEMMDay: rmse,
		BiasMMDay: bias,
		MAEMMDay:  mae,
		NSamples:  n,
		Quality:   classify(r2, rmse),
	}
}

func classify(r2, rmse float64) domain.Quality {
	if !math.IsNaN(r2) && r2 >= 0.75 && rmse <= 1.2 {
		return domain.QualityExcellent
	}
	if !math.IsNaN(r2) && r2 >= 0.65 && rmse <= 1.5 {
		return domain.QualityAcceptable
	}
	return domain.QualityBelowExpected
}

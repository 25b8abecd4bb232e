package validate

import (
	"math"
	"testing"

	"github.com/matopiba/forecast-pipeline/internal/domain"
)

func TestComputeEmptyYieldsBelowExpected(t *testing.T) {
	m := Compute(nil)
	if m.NSamples != 0 {
		t.Errorf("NSamples = %d, want 0", m.NSamples)
	}
	if !math.IsNaN(m.R2) {
		t.Errorf("R2 = %f, want NaN", m.R2)
	}
	if m.Quality != domain.QualityBelowExpected {
		t.Errorf("Quality = %s, want %s", m.Quality, domain.QualityBelowExpected)
	}
}

func TestComputePerfectAgreementIsExcellent(t *testing.T) {
	pairs := []Pair{
		{Model: 3.0, Provider: 3.0},
		{Model: 4.5, Provider: 4.5},
		{Model: 5.2, Provider: 5.2},
		{Model: 2.1, Provider: 2.1},
	}
	m := Compute(pairs)
	if m.RMSEMMDay != 0 {
		t.Errorf("RMSE = %f, want 0", m.RMSEMMDay)
	}
	if m.BiasMMDay != 0 {
		t.Errorf("Bias = %f, want 0", m.BiasMMDay)
	}
	if m.Quality != domain.QualityExcellent {
		t.Errorf("Quality = %s, want %s", m.Quality, domain.QualityExcellent)
	}
}

func TestComputeLargeBiasIsBelowExpected(t *testing.T) {
	pairs := []Pair{
		{Model: 6.0, Provider: 3.0},
		{Model: 7.5, Provider: 4.5},
		{Model: 8.2, Provider: 5.2},
		{Model: 5.1, Provider: 2.1},
	}
	m := Compute(pairs)
	if m.Quality != domain.QualityBelowExpected {
		t.Errorf("Quality = %s, want %s", m.Quality, domain.QualityBelowExpected)
	}
	if m.BiasMMDay <= 0 {
		t.Errorf("Bias = %f, want > 0", m.BiasMMDay)
	}
}

func TestComputeSkipsNonFinitePairs(t *testing.T) {
	pairs := []Pair{
		{Model: 3.0, Provider: 3.0},
		{Model: math.NaN(), Provider: 4.5},
		{Model: 5.0, Provider: 5.0},
	}
	m := Compute(pairs)
	if m.NSamples != 2 {
		t.Errorf("NSamples = %d, want 2", m.NSamples)
	}
}

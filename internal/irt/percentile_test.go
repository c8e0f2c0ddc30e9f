package irt

import (
	"math"
	"testing"
)

func closedFormCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

func TestPercentile_MatchesClosedForm(t *testing.T) {
	for _, z := range []float64{-3, -2, -1, 0, 1, 2, 3} {
		want := 100 * closedFormCDF(z)
		got := Percentile(z)
		if rel := math.Abs(got-want) / want; rel > 1e-4 {
			t.Errorf("Percentile(%v) = %.6f, want %.6f (relative error %.2e)", z, got, want, rel)
		}
	}
}

func TestPercentile_KnownValues(t *testing.T) {
	tests := []struct {
		theta float64
		want  float64
		tol   float64
	}{
		{0, 50.0, 0.01},
		{-3, 0.13, 0.01},
		{2, 97.72, 0.01},
	}
	for _, tt := range tests {
		got := Percentile(tt.theta)
		if math.Abs(got-tt.want) > tt.tol {
			t.Errorf("Percentile(%v) = %.4f, want %.2f±%v", tt.theta, got, tt.want, tt.tol)
		}
	}
}

func TestPercentile_Bounds(t *testing.T) {
	if got := Percentile(math.Inf(1)); got != 100 {
		t.Errorf("Percentile(+Inf) = %v, want 100", got)
	}
	if got := Percentile(math.Inf(-1)); got != 0 {
		t.Errorf("Percentile(-Inf) = %v, want 0", got)
	}
	if got := Percentile(math.NaN()); got != 50 {
		t.Errorf("Percentile(NaN) = %v, want 50", got)
	}
}

func TestNormalCDF_Symmetric(t *testing.T) {
	for _, z := range []float64{0.3, 1.1, 2.4} {
		if sum := NormalCDF(z) + NormalCDF(-z); math.Abs(sum-1) > 1e-12 {
			t.Errorf("NormalCDF(%v)+NormalCDF(-%v) = %v, want 1", z, z, sum)
		}
	}
}

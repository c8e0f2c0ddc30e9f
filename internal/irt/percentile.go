package irt

import "math"

// Coefficients of the Abramowitz & Stegun 26.2.17 approximation of the
// standard normal CDF (absolute error below 7.5e-8).
const (
	asP  = 0.2316419
	asB1 = 0.319381530
	asB2 = -0.356563782
	asB3 = 1.781477937
	asB4 = -1.821255978
	asB5 = 1.330274429
)

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

// NormalCDF approximates the standard normal cumulative distribution at z.
func NormalCDF(z float64) float64 {
	if math.IsNaN(z) {
		return 0.5
	}
	x := math.Abs(z)
	t := 1 / (1 + asP*x)
	poly := t * (asB1 + t*(asB2+t*(asB3+t*(asB4+t*asB5))))
	upper := invSqrt2Pi * math.Exp(-x*x/2) * poly
	if z >= 0 {
		return 1 - upper
	}
	return upper
}

// Percentile maps theta, read as a z-score, onto a 0-100 percentile.
func Percentile(theta float64) float64 {
	return clamp(100*NormalCDF(theta), 0, 100)
}

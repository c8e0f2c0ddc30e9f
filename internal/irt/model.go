package irt

import "math"

// D is the logistic scaling constant that makes the 3PL curve approximate
// the normal ogive.
const D = 1.702

const (
	// MinTheta and MaxTheta bound every ability estimate.
	MinTheta = -3.0
	MaxTheta = 3.0

	// MinSE and MaxSE bound the standard error stored on an AbilityState.
	MinSE = 0.15
	MaxSE = 0.6
)

// ItemType distinguishes items by how they are answered.
type ItemType string

const (
	TypeChoice  ItemType = "choice"
	TypeNumeric ItemType = "numeric"
)

// Params holds the 3PL parameters of an item.
type Params struct {
	A float64 `json:"a" yaml:"a"` // discrimination
	B float64 `json:"b" yaml:"b"` // difficulty
	C float64 `json:"c" yaml:"c"` // guessing
}

// DefaultGuessing returns the guessing parameter assumed for an item type
// when the source data does not carry one.
func DefaultGuessing(t ItemType) float64 {
	if t == TypeChoice {
		return 0.25
	}
	return 0.0
}

// Probability returns the probability of a correct response at theta.
// The result is always within [0, 1].
func Probability(theta float64, p Params) float64 {
	prob := p.C + (1-p.C)/(1+math.Exp(-D*p.A*(theta-p.B)))
	if math.IsNaN(prob) {
		return clamp(p.C, 0, 1)
	}
	return clamp(prob, 0, 1)
}

// FisherInformation returns the information an item carries about ability
// at theta. Items that cannot discriminate at theta return exactly 0.
func FisherInformation(theta float64, p Params) float64 {
	prob := Probability(theta, p)
	if prob <= 0 || prob >= 1 {
		return 0
	}
	denom := (1 - p.C) * (1 - p.C) * prob * (1 - prob)
	if denom == 0 {
		return 0
	}
	info := p.A * p.A * (prob - p.C) * (prob - p.C) / denom
	if math.IsNaN(info) || math.IsInf(info, 0) {
		return 0
	}
	return info
}

// ClampTheta bounds theta to [MinTheta, MaxTheta].
func ClampTheta(theta float64) float64 {
	if math.IsNaN(theta) {
		return 0
	}
	return clamp(theta, MinTheta, MaxTheta)
}

// ClampSE bounds a standard error to [MinSE, MaxSE].
func ClampSE(se float64) float64 {
	if math.IsNaN(se) {
		return MaxSE
	}
	return clamp(se, MinSE, MaxSE)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

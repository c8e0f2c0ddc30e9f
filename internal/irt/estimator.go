package irt

import (
	"math"
	"time"
)

// Config holds the estimator's prior and step limits.
type Config struct {
	// PriorTheta is the starting theta for a topic with no attempts.
	PriorTheta float64 `yaml:"prior_theta" validate:"gte=-3,lte=3"`

	// PriorSE is the starting standard error for a topic with no attempts.
	// It may exceed MaxSE; updated states are always clamped.
	PriorSE float64 `yaml:"prior_se" validate:"gt=0"`

	// MaxStep caps how far theta can move in a single update.
	MaxStep float64 `yaml:"max_step" validate:"gt=0"`
}

// DefaultConfig returns the standard-normal prior with a one-unit step cap.
func DefaultConfig() Config {
	return Config{
		PriorTheta: 0.0,
		PriorSE:    1.0,
		MaxStep:    1.0,
	}
}

// Estimator turns scored responses into updated ability states.
// It holds no mutable state and is safe for concurrent use.
type Estimator struct {
	cfg Config
}

// NewEstimator creates an Estimator. Zero-valued fields fall back to defaults.
func NewEstimator(cfg Config) *Estimator {
	def := DefaultConfig()
	if cfg.PriorSE <= 0 {
		cfg.PriorSE = def.PriorSE
	}
	if cfg.MaxStep <= 0 {
		cfg.MaxStep = def.MaxStep
	}
	cfg.PriorTheta = ClampTheta(cfg.PriorTheta)
	return &Estimator{cfg: cfg}
}

// Prior returns the state a topic starts from before any attempts.
func (e *Estimator) Prior() AbilityState {
	return AbilityState{
		Theta:         e.cfg.PriorTheta,
		StandardError: ClampSE(e.cfg.PriorSE),
	}
}

// Update combines the prior (theta, se) of state with new evidence using a
// single Bayesian modal Newton step:
//
//	theta' = theta + sum(w_i * (u_i - p_i)) / (1/se^2 + sum(I_i))
//	se'    = 1 / sqrt(1/se^2 + sum(I_i))
//
// where p_i and I_i are the 3PL probability and Fisher information at the
// prior theta and w_i = a(p_i - c)/(p_i(1 - c)). Correct answers never lower
// theta and incorrect answers never raise it. An empty obs returns state
// unchanged.
func (e *Estimator) Update(state AbilityState, obs []Observation, now time.Time) AbilityState {
	if len(obs) == 0 {
		return state
	}

	theta0, se0 := state.Theta, state.StandardError
	if state.Attempts == 0 {
		theta0, se0 = e.cfg.PriorTheta, e.cfg.PriorSE
	}
	theta0 = ClampTheta(theta0)
	if se0 <= 0 || math.IsNaN(se0) || math.IsInf(se0, 0) {
		se0 = e.cfg.PriorSE
	}
	precision := 1 / (se0 * se0)

	var score, info float64
	correct := 0
	for _, o := range obs {
		p := Probability(theta0, o.Params)
		u := 0.0
		if o.Correct {
			u = 1
			correct++
		}
		info += FisherInformation(theta0, o.Params)
		score += scoreWeight(p, o.Params) * (u - p)
	}

	step := score / (precision + info)
	if math.IsNaN(step) || math.IsInf(step, 0) {
		step = 0
	}
	step = clamp(step, -e.cfg.MaxStep, e.cfg.MaxStep)

	attempts := state.Attempts + len(obs)
	prevCorrect := state.Accuracy * float64(state.Attempts)

	return AbilityState{
		Theta:         ClampTheta(theta0 + step),
		StandardError: ClampSE(1 / math.Sqrt(precision+info)),
		Attempts:      attempts,
		Accuracy:      clamp((prevCorrect+float64(correct))/float64(attempts), 0, 1),
		LastUpdated:   now,
	}
}

// scoreWeight is the 3PL weight applied to a response residual.
func scoreWeight(p float64, params Params) float64 {
	if p <= 0 || p >= 1 || params.C >= 1 {
		return 0
	}
	w := params.A * (p - params.C) / (p * (1 - params.C))
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return 0
	}
	return w
}

package breaker

import (
	"time"
)

// Config controls when the breaker trips and how much history it keeps.
type Config struct {
	// AccuracyFloor is the accuracy below which a quiz counts as a failure.
	AccuracyFloor float64 `yaml:"accuracy_floor" validate:"gt=0,lte=1"`

	// Threshold is the number of consecutive failures that trips the breaker.
	Threshold int `yaml:"threshold" validate:"gte=1"`

	// Window is how long failure dates are retained.
	Window time.Duration `yaml:"window" validate:"gt=0"`

	// MaxDates caps the retained failure-date list.
	MaxDates int `yaml:"max_dates" validate:"gte=1"`
}

// DefaultConfig trips after three consecutive quizzes under 40% accuracy.
func DefaultConfig() Config {
	return Config{
		AccuracyFloor: 0.40,
		Threshold:     3,
		Window:        30 * 24 * time.Hour,
		MaxDates:      10,
	}
}

// State is the per-student breaker state.
type State struct {
	ConsecutiveFailures int         `json:"consecutive_failures"`
	FailureDates        []time.Time `json:"failure_dates,omitempty"`
	TriggeredAt         *time.Time  `json:"triggered_at,omitempty"`
}

// Triggered reports whether the next quiz must be a recovery quiz.
func (s State) Triggered() bool {
	return s.TriggeredAt != nil
}

// Outcome describes what a single evaluation did to the state.
type Outcome string

const (
	OutcomeHealthy        Outcome = "healthy"
	OutcomeFailure        Outcome = "failure"
	OutcomeTripped        Outcome = "tripped"
	OutcomeRecovered      Outcome = "recovered"
	OutcomeRecoveryFailed Outcome = "recovery_failed"
)

// Breaker evaluates completed quizzes against its Config.
type Breaker struct {
	cfg Config
}

// New creates a Breaker. Zero-valued fields fall back to defaults.
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.AccuracyFloor <= 0 {
		cfg.AccuracyFloor = def.AccuracyFloor
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxDates <= 0 {
		cfg.MaxDates = def.MaxDates
	}
	return &Breaker{cfg: cfg}
}

// Config returns the effective configuration.
func (b *Breaker) Config() Config {
	return b.cfg
}

// Evaluate folds one completed quiz into state and returns the new state.
// The input state is not modified.
func (b *Breaker) Evaluate(state State, accuracy float64, wasRecovery bool, now time.Time) (State, Outcome) {
	next := State{
		ConsecutiveFailures: state.ConsecutiveFailures,
		FailureDates:        prune(state.FailureDates, now, b.cfg),
		TriggeredAt:         state.TriggeredAt,
	}
	failed := accuracy < b.cfg.AccuracyFloor

	if state.Triggered() {
		if !wasRecovery {
			// A regular quiz generated before the trip neither recovers
			// nor re-trips the breaker.
			if failed {
				next.ConsecutiveFailures++
				return next, OutcomeFailure
			}
			return next, OutcomeHealthy
		}
		if failed {
			next.ConsecutiveFailures++
			next.FailureDates = capDates(append(next.FailureDates, now), b.cfg.MaxDates)
			return next, OutcomeRecoveryFailed
		}
		next.ConsecutiveFailures = 0
		next.TriggeredAt = nil
		return next, OutcomeRecovered
	}

	if !failed {
		next.ConsecutiveFailures = 0
		return next, OutcomeHealthy
	}

	next.ConsecutiveFailures++
	if next.ConsecutiveFailures >= b.cfg.Threshold {
		t := now
		next.TriggeredAt = &t
		next.FailureDates = capDates(append(next.FailureDates, now), b.cfg.MaxDates)
		return next, OutcomeTripped
	}
	return next, OutcomeFailure
}

// prune drops failure dates older than the window and returns a fresh slice.
func prune(dates []time.Time, now time.Time, cfg Config) []time.Time {
	cutoff := now.Add(-cfg.Window)
	out := make([]time.Time, 0, len(dates)+1)
	for _, d := range dates {
		if d.After(cutoff) {
			out = append(out, d)
		}
	}
	return capDates(out, cfg.MaxDates)
}

func capDates(dates []time.Time, max int) []time.Time {
	if len(dates) <= max {
		return dates
	}
	return dates[len(dates)-max:]
}

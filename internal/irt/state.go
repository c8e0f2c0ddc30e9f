package irt

import "time"

// AbilityState is the ability estimate for a single topic.
type AbilityState struct {
	Theta         float64   `json:"theta"`
	StandardError float64   `json:"standard_error"`
	Attempts      int       `json:"attempts"`
	Accuracy      float64   `json:"accuracy"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Percentile returns the state's theta as a 0-100 percentile.
func (s AbilityState) Percentile() float64 {
	return Percentile(s.Theta)
}

// Observation is one scored response used as evidence for an update.
type Observation struct {
	Correct bool
	Params  Params
}

package irt

import (
	"math"
	"testing"
	"time"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func choiceObs(correct bool, b float64) Observation {
	return Observation{Correct: correct, Params: Params{A: 1.2, B: b, C: 0.25}}
}

func TestEstimator_EmptyEvidenceIsIdentity(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	s := AbilityState{
		Theta:         0.8,
		StandardError: 0.3,
		Attempts:      12,
		Accuracy:      0.75,
		LastUpdated:   testNow.Add(-48 * time.Hour),
	}
	if got := e.Update(s, nil, testNow); got != s {
		t.Errorf("Update(s, nil) = %+v, want %+v", got, s)
	}
	if got := e.Update(s, []Observation{}, testNow); got != s {
		t.Errorf("Update(s, []) = %+v, want %+v", got, s)
	}
}

func TestEstimator_NewTopicStartsFromPrior(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	// Garbage theta on a zero-attempt state must not leak into the update.
	s := AbilityState{Theta: 2.9, StandardError: 0.15}
	got := e.Update(s, []Observation{choiceObs(false, 0)}, testNow)
	if got.Theta >= 0 {
		t.Errorf("Theta = %v, want below the 0.0 prior after a miss", got.Theta)
	}
	if got.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", got.Attempts)
	}
	if got.Accuracy != 0 {
		t.Errorf("Accuracy = %v, want 0", got.Accuracy)
	}
	if !got.LastUpdated.Equal(testNow) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, testNow)
	}
}

func TestEstimator_Direction(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	prior := AbilityState{Theta: 0.2, StandardError: 0.5, Attempts: 5, Accuracy: 0.6}

	up := e.Update(prior, []Observation{choiceObs(true, 0.2), choiceObs(true, 0.5)}, testNow)
	if up.Theta <= prior.Theta {
		t.Errorf("all-correct update moved theta %v -> %v, want increase", prior.Theta, up.Theta)
	}

	down := e.Update(prior, []Observation{choiceObs(false, 0.2), choiceObs(false, -0.5)}, testNow)
	if down.Theta >= prior.Theta {
		t.Errorf("all-wrong update moved theta %v -> %v, want decrease", prior.Theta, down.Theta)
	}
}

func TestEstimator_StandardErrorShrinks(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	prior := AbilityState{Theta: 0, StandardError: 0.6, Attempts: 3, Accuracy: 0.5}
	got := e.Update(prior, []Observation{choiceObs(true, 0), choiceObs(false, 0.3)}, testNow)
	if got.StandardError >= prior.StandardError {
		t.Errorf("StandardError = %v, want below %v", got.StandardError, prior.StandardError)
	}
}

func TestEstimator_AccuracyBlend(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	prior := AbilityState{Theta: 0, StandardError: 0.4, Attempts: 8, Accuracy: 0.75} // 6 of 8
	obs := []Observation{choiceObs(true, 0), choiceObs(false, 0)}
	got := e.Update(prior, obs, testNow)
	if got.Attempts != 10 {
		t.Errorf("Attempts = %d, want 10", got.Attempts)
	}
	if want := 7.0 / 10.0; math.Abs(got.Accuracy-want) > 1e-12 {
		t.Errorf("Accuracy = %v, want %v", got.Accuracy, want)
	}
}

func TestEstimator_Bounds(t *testing.T) {
	e := NewEstimator(Config{PriorTheta: 0, PriorSE: 1, MaxStep: 10})
	high := AbilityState{Theta: 2.95, StandardError: 0.6, Attempts: 40, Accuracy: 0.95}
	var obs []Observation
	for i := 0; i < 30; i++ {
		obs = append(obs, Observation{Correct: true, Params: Params{A: 2.5, B: 3, C: 0}})
	}
	got := e.Update(high, obs, testNow)
	if got.Theta > MaxTheta || got.Theta < MinTheta {
		t.Errorf("Theta = %v, out of range", got.Theta)
	}
	if got.StandardError < MinSE || got.StandardError > MaxSE {
		t.Errorf("StandardError = %v, out of range", got.StandardError)
	}

	low := AbilityState{Theta: -2.95, StandardError: 0.6, Attempts: 40, Accuracy: 0.05}
	for i := range obs {
		obs[i] = Observation{Correct: false, Params: Params{A: 2.5, B: -3, C: 0}}
	}
	got = e.Update(low, obs, testNow)
	if got.Theta < MinTheta {
		t.Errorf("Theta = %v, below %v", got.Theta, MinTheta)
	}
}

func TestEstimator_StepCap(t *testing.T) {
	e := NewEstimator(Config{PriorTheta: 0, PriorSE: 1, MaxStep: 0.1})
	prior := AbilityState{Theta: 0, StandardError: 0.6, Attempts: 1, Accuracy: 1}
	var obs []Observation
	for i := 0; i < 10; i++ {
		obs = append(obs, Observation{Correct: true, Params: Params{A: 2, B: 0, C: 0}})
	}
	got := e.Update(prior, obs, testNow)
	if math.Abs(got.Theta-0.1) > 1e-12 {
		t.Errorf("Theta = %v, want step capped at 0.1", got.Theta)
	}
}

func TestEstimator_DegenerateItemsDoNotPanic(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	prior := AbilityState{Theta: 0.5, StandardError: 0.3, Attempts: 2, Accuracy: 0.5}
	obs := []Observation{
		{Correct: true, Params: Params{A: 0, B: 0, C: 0.25}},
		{Correct: false, Params: Params{A: 1, B: 0, C: 1}},
		{Correct: true, Params: Params{A: math.NaN(), B: 0, C: 0}},
	}
	got := e.Update(prior, obs, testNow)
	if math.IsNaN(got.Theta) || math.IsNaN(got.StandardError) {
		t.Fatalf("Update produced NaN: %+v", got)
	}
	if got.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", got.Attempts)
	}
}

func TestNewEstimator_FillsDefaults(t *testing.T) {
	e := NewEstimator(Config{})
	prior := e.Prior()
	if prior.Theta != 0 {
		t.Errorf("prior theta = %v, want 0", prior.Theta)
	}
	if prior.StandardError != MaxSE {
		t.Errorf("prior SE = %v, want clamped %v", prior.StandardError, MaxSE)
	}
}

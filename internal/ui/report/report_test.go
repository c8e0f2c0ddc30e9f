package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/adaptest/internal/breaker"
	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/quiz"
	"github.com/abhisek/adaptest/internal/selector"
	"github.com/abhisek/adaptest/internal/spacedrep"
	"github.com/abhisek/adaptest/internal/student"
	"github.com/abhisek/adaptest/internal/topics"
)

func TestStudent(t *testing.T) {
	cat, err := topics.NewCatalog([]topics.Topic{{Key: "math.algebra", Name: "Algebra"}})
	require.NoError(t, err)

	st := student.New("s1")
	st.Abilities["math.algebra"] = irt.AbilityState{Theta: 0.8, StandardError: 0.3, Attempts: 12, Accuracy: 0.75}
	st.Abilities["logic"] = irt.AbilityState{Theta: -0.4, StandardError: 0.5, Attempts: 3, Accuracy: 0.33}
	st.Subjects = map[string]float64{"math": 0.8, "logic": -0.4}
	triggered := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	st.Breaker = breaker.State{ConsecutiveFailures: 3, TriggeredAt: &triggered}

	out := Student(st, cat)
	assert.Contains(t, out, "Algebra")
	assert.Contains(t, out, "logic")
	assert.Contains(t, out, "+0.80")
	assert.Contains(t, out, "Recovery mode")
	assert.Contains(t, out, "Subjects")
}

func TestStudent_Empty(t *testing.T) {
	out := Student(student.New("fresh"), nil)
	assert.Contains(t, out, "No answers recorded yet.")
}

func TestQuiz(t *testing.T) {
	v := &quiz.View{
		ID:       "q1",
		Phase:    student.PhaseExploration,
		Recovery: true,
		Items: []quiz.ItemView{
			{Position: 0, TopicKey: "alg", Reason: selector.ReasonExploration, Prompt: "Solve 2x = 4", Choices: []string{"1", "2"}},
		},
	}
	out := Quiz(v)
	assert.Contains(t, out, "Solve 2x = 4")
	assert.Contains(t, out, "2) 2")
	assert.Contains(t, out, "Recovery quiz")
}

func TestResult(t *testing.T) {
	out := Result(&quiz.Result{QuizID: "q1", Score: 70, Correct: 7, Total: 10, Answered: 9, BreakerOutcome: breaker.OutcomeHealthy})
	assert.Contains(t, out, "Score 70% (7/10 correct, 9 answered)")
	assert.Contains(t, out, "breaker healthy")
}

func TestSimulation(t *testing.T) {
	out := Simulation([]SimRow{
		{StudentID: "sim-1", TrueTheta: 1, Estimate: 0.8, Quizzes: 5, Accuracy: 0.6},
		{StudentID: "sim-2", TrueTheta: -1, Estimate: -0.8, Quizzes: 5, Accuracy: 0.4, Recovery: 1},
	})
	assert.Contains(t, out, "sim-2")
	assert.Contains(t, out, "RMSE 0.200 over 2 students")
}

func TestReviews(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	assert.Contains(t, Reviews(nil, now), "No items scheduled")

	states := map[string]*spacedrep.ReviewState{
		"a": {ItemID: "a", NextReviewDate: now.Add(-time.Hour)},
		"b": {ItemID: "b", NextReviewDate: now.Add(48 * time.Hour)},
		"c": {ItemID: "c", Graduated: true, NextReviewDate: now.Add(-time.Hour)},
	}
	assert.Contains(t, Reviews(states, now), "3 items tracked for review · 1 due · 1 graduated")
}

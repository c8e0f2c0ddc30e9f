package bank

import (
	"github.com/abhisek/adaptest/internal/irt"
)

// Item is a calibrated exam question. Items are immutable once imported;
// usage counters are kept separately in Usage.
type Item struct {
	ID       string       `json:"id"`
	TopicKey string       `json:"topic"`
	Type     irt.ItemType `json:"type"`
	Params   irt.Params   `json:"params"`
	Active   bool         `json:"active"`

	// Prompt is the question text shown to the student.
	Prompt string `json:"prompt"`

	// Choices is populated only for choice items.
	Choices []string `json:"choices,omitempty"`

	// Answer is the canonical correct answer. For choice items it is the
	// text of the correct option.
	Answer string `json:"answer"`

	// AnswerType describes how numeric answers are normalized.
	AnswerType AnswerType `json:"answer_type,omitempty"`

	// Tolerance is the absolute error accepted for decimal answers.
	Tolerance float64 `json:"tolerance,omitempty"`

	// Explanation is a worked solution, revealed only after completion.
	Explanation string `json:"explanation,omitempty"`
}

// AnswerType describes the representation of a numeric answer.
type AnswerType string

const (
	AnswerTypeInteger  AnswerType = "integer"  // e.g. "623", "-15"
	AnswerTypeDecimal  AnswerType = "decimal"  // e.g. "3.75", "0.5"
	AnswerTypeFraction AnswerType = "fraction" // e.g. "3/4", "7/2"
	AnswerTypeText     AnswerType = "text"
)

// Usage counts how often an item has been served and answered.
type Usage struct {
	Served   int `json:"served"`
	Answered int `json:"answered"`
	Correct  int `json:"correct"`
}

// Add returns the element-wise sum of u and d.
func (u Usage) Add(d Usage) Usage {
	return Usage{
		Served:   u.Served + d.Served,
		Answered: u.Answered + d.Answered,
		Correct:  u.Correct + d.Correct,
	}
}

// PValue is the observed proportion correct, or -1 when unanswered.
func (u Usage) PValue() float64 {
	if u.Answered == 0 {
		return -1
	}
	return float64(u.Correct) / float64(u.Answered)
}

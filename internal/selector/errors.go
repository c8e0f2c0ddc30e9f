package selector

import "fmt"

// Level identifies a degradation step taken while building a quiz.
type Level string

const (
	// LevelStaleTopic means recency exclusion emptied a topic and was
	// ignored for that topic only.
	LevelStaleTopic Level = "stale_topic"

	LevelDropRecency Level = "drop_recency"

	// LevelDropWindow without a Topic is the quiz-wide ladder step. With a
	// Topic, that topic alone had no item inside its difficulty window and
	// was served its nearest-difficulty items.
	LevelDropWindow Level = "drop_window"

	LevelAnyTopic Level = "any_topic"
)

// Warning records a degraded selection. It is attached to the quiz, never
// returned as an error.
type Warning struct {
	Level     Level  `json:"level"`
	Topic     string `json:"topic,omitempty"`
	Requested int    `json:"requested"`
	Selected  int    `json:"selected"`
}

func (w Warning) String() string {
	switch {
	case w.Level == LevelStaleTopic:
		return fmt.Sprintf("recency exclusion ignored for topic %s", w.Topic)
	case w.Level == LevelDropWindow && w.Topic != "":
		return fmt.Sprintf("difficulty window ignored for topic %s: %d items", w.Topic, w.Selected)
	}
	if w.Topic != "" {
		return fmt.Sprintf("degraded selection (%s) on topic %s: %d/%d items", w.Level, w.Topic, w.Selected, w.Requested)
	}
	return fmt.Sprintf("degraded selection (%s): %d/%d items", w.Level, w.Selected, w.Requested)
}

// ErrExhaustedFallback is returned when no item could be selected even
// after every fallback level.
type ErrExhaustedFallback struct {
	StudentID string
	Requested int
}

func (e *ErrExhaustedFallback) Error() string {
	return fmt.Sprintf("no items available for student %s after exhausting fallbacks (requested %d)", e.StudentID, e.Requested)
}

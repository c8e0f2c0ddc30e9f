package quiz

import (
	"time"

	"github.com/abhisek/adaptest/internal/breaker"
	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/selector"
	"github.com/abhisek/adaptest/internal/student"
)

// Status is the lifecycle state of a quiz.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Response is the record of one answer. A resubmission replaces it with a
// new record; a recorded Response is never edited.
type Response struct {
	ItemID     string     `json:"item_id"`
	QuizID     string     `json:"quiz_id"`
	Position   int        `json:"position"`
	Answer     string     `json:"answer"`
	Correct    bool       `json:"correct"`
	LatencyMs  int64      `json:"latency_ms"`
	TopicKey   string     `json:"topic"`
	Params     irt.Params `json:"params"`
	AnsweredAt time.Time  `json:"answered_at"`
}

// Item is one position of a quiz.
type Item struct {
	Position int             `json:"position"`
	ItemID   string          `json:"item_id"`
	TopicKey string          `json:"topic"`
	Reason   selector.Reason `json:"reason"`
	Type     irt.ItemType    `json:"type"`
	Params   irt.Params      `json:"params"`
	Prompt   string          `json:"prompt"`
	Choices  []string        `json:"choices,omitempty"`
	Response *Response       `json:"response,omitempty"`
}

// Session is a quiz. It is created idempotently per (student, key) and
// completed exactly once.
type Session struct {
	ID        string             `json:"id"`
	StudentID string             `json:"student_id"`
	Key       string             `json:"key"`
	Status    Status             `json:"status"`
	Phase     student.Phase      `json:"phase"`
	Recovery  bool               `json:"is_recovery_quiz"`
	Items     []Item             `json:"items"`
	Warnings  []selector.Warning `json:"warnings,omitempty"`

	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Score    float64 `json:"score"`
	Accuracy float64 `json:"accuracy"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// recount refreshes the answer counters from the recorded responses.
func (s *Session) recount() {
	s.Answered, s.Correct = 0, 0
	for _, it := range s.Items {
		if it.Response == nil {
			continue
		}
		s.Answered++
		if it.Response.Correct {
			s.Correct++
		}
	}
}

// Result summarizes a completed quiz.
type Result struct {
	QuizID   string  `json:"quiz_id"`
	Score    float64 `json:"score"`
	Accuracy float64 `json:"accuracy"`
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`

	Overall          float64            `json:"overall"`
	Percentile       float64            `json:"percentile"`
	TopicPercentiles map[string]float64 `json:"topic_percentiles"`
	SubjectAbilities map[string]float64 `json:"subject_abilities"`
	Recovery         bool               `json:"is_recovery_quiz"`
	BreakerOutcome   breaker.Outcome    `json:"breaker_outcome"`
	BreakerTriggered bool               `json:"breaker_triggered"`
	QuizzesCompleted int                `json:"quizzes_completed"`
	Phase            student.Phase      `json:"phase"`
}

func quizKey(id string) string {
	return "quiz/" + id
}

func idempotencyKey(studentID, key string) string {
	return "quizkey/" + studentID + "/" + key
}

// keyRecord maps an idempotency key to its quiz.
type keyRecord struct {
	QuizID string `json:"quiz_id"`
}

// clone returns a deep copy.
func (s *Session) clone() *Session {
	c := *s
	c.Items = make([]Item, len(s.Items))
	for i, it := range s.Items {
		it.Choices = append([]string(nil), it.Choices...)
		if it.Response != nil {
			r := *it.Response
			it.Response = &r
		}
		c.Items[i] = it
	}
	c.Warnings = append([]selector.Warning(nil), s.Warnings...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// lastActivity is the time of the latest answer, or creation.
func (s *Session) lastActivity() time.Time {
	last := s.CreatedAt
	for _, it := range s.Items {
		if it.Response != nil && it.Response.AnsweredAt.After(last) {
			last = it.Response.AnsweredAt
		}
	}
	return last
}

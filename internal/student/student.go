package student

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/abhisek/adaptest/internal/breaker"
	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

// Phase is the student's learning phase.
type Phase string

const (
	// PhaseExploration covers the first quizzes, which sample broadly.
	PhaseExploration Phase = "exploration"

	// PhaseExploitation targets weak topics once abilities are calibrated.
	PhaseExploitation Phase = "exploitation"
)

// PhaseFor returns the phase for a student who has completed the given
// number of quizzes.
func PhaseFor(quizzesCompleted, explorationQuizzes int) Phase {
	if quizzesCompleted < explorationQuizzes {
		return PhaseExploration
	}
	return PhaseExploitation
}

// DefaultSeenLimit bounds the answer history kept on a student.
const DefaultSeenLimit = 500

// SeenItem records that the student answered an item.
type SeenItem struct {
	ItemID     string    `json:"item_id"`
	TopicKey   string    `json:"topic"`
	AnsweredAt time.Time `json:"answered_at"`
}

// Student is the single-writer aggregate holding a student's ability state.
// Only a quiz completion commit writes it; everything else reads snapshots.
type Student struct {
	ID                string                      `json:"id"`
	Abilities         map[string]irt.AbilityState `json:"abilities"`
	Subjects          map[string]float64          `json:"subjects,omitempty"`
	Overall           float64                     `json:"overall"`
	OverallPercentile float64                     `json:"overall_percentile"`
	Phase             Phase                       `json:"phase"`
	QuizzesCompleted  int                         `json:"quizzes_completed"`
	Breaker           breaker.State               `json:"breaker"`

	// Seen is ordered oldest first.
	Seen      []SeenItem `json:"seen,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// New returns an empty student in the exploration phase.
func New(id string) *Student {
	return &Student{
		ID:                id,
		Abilities:         make(map[string]irt.AbilityState),
		Subjects:          make(map[string]float64),
		OverallPercentile: 50,
		Phase:             PhaseExploration,
	}
}

// Ability returns the state of topic, or prior when it has no attempts.
func (s *Student) Ability(topic string, prior irt.AbilityState) irt.AbilityState {
	if st, ok := s.Abilities[topic]; ok && st.Attempts > 0 {
		return st
	}
	return prior
}

// Attempts returns the number of responses recorded for topic.
func (s *Student) Attempts(topic string) int {
	return s.Abilities[topic].Attempts
}

// NextQuizKey is the default idempotency key for the student's next quiz.
// It is stable until a quiz completes.
func (s *Student) NextQuizKey() string {
	return fmt.Sprintf("seq-%d", s.QuizzesCompleted+1)
}

// RecordSeen appends answered items and trims history to limit entries.
func (s *Student) RecordSeen(items []SeenItem, limit int) {
	if limit <= 0 {
		limit = DefaultSeenLimit
	}
	s.Seen = append(s.Seen, items...)
	sort.SliceStable(s.Seen, func(i, j int) bool {
		return s.Seen[i].AnsweredAt.Before(s.Seen[j].AnsweredAt)
	})
	if n := len(s.Seen); n > limit {
		s.Seen = append([]SeenItem(nil), s.Seen[n-limit:]...)
	}
}

// Clone returns a deep copy.
func (s *Student) Clone() *Student {
	c := *s
	c.Abilities = make(map[string]irt.AbilityState, len(s.Abilities))
	for k, v := range s.Abilities {
		c.Abilities[k] = v
	}
	c.Subjects = make(map[string]float64, len(s.Subjects))
	for k, v := range s.Subjects {
		c.Subjects[k] = v
	}
	c.Seen = append([]SeenItem(nil), s.Seen...)
	c.Breaker.FailureDates = append([]time.Time(nil), s.Breaker.FailureDates...)
	if s.Breaker.TriggeredAt != nil {
		t := *s.Breaker.TriggeredAt
		c.Breaker.TriggeredAt = &t
	}
	return &c
}

// Key returns the store key of a student.
func Key(id string) string {
	return "student/" + id
}

// Repository loads and encodes students.
type Repository struct {
	kv store.KV
}

// NewRepository creates a Repository over kv.
func NewRepository(kv store.KV) *Repository {
	return &Repository{kv: kv}
}

// Load returns the student and its store version. An unknown student is
// returned as New(id) with version 0.
func (r *Repository) Load(ctx context.Context, id string) (*Student, uint64, error) {
	s := New(id)
	version, err := store.GetJSON(ctx, r.kv, Key(id), s)
	if errors.Is(err, store.ErrNotFound) {
		return New(id), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load student %s: %w", id, err)
	}
	if s.Abilities == nil {
		s.Abilities = make(map[string]irt.AbilityState)
	}
	if s.Subjects == nil {
		s.Subjects = make(map[string]float64)
	}
	return s, version, nil
}

// Write encodes s as a commit write expecting version.
func (r *Repository) Write(s *Student, version uint64) (store.Write, error) {
	return store.PutJSON(Key(s.ID), s, version)
}

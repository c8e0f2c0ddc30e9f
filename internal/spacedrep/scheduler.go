package spacedrep

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/adaptest/internal/store"
)

// Outcome is one graded response fed to the scheduler.
type Outcome struct {
	ItemID   string
	TopicKey string
	Correct  bool
}

// Candidate is an item due for review.
type Candidate struct {
	ItemID   string
	TopicKey string
	Overdue  float64
}

// record is the persisted review state of one student.
type record struct {
	Reviews map[string]*ReviewState `json:"reviews"`
}

// Key returns the store key of a student's review record.
func Key(studentID string) string {
	return "review/" + studentID
}

// maxCommitAttempts bounds optimistic retries in RecordOutcomes.
const maxCommitAttempts = 3

// Scheduler tracks missed items per student and surfaces them for review.
type Scheduler struct {
	kv     store.KV
	logger *zap.Logger
}

// NewScheduler creates a Scheduler over kv. A nil logger disables logging.
func NewScheduler(kv store.KV, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{kv: kv, logger: logger}
}

func (s *Scheduler) load(ctx context.Context, studentID string) (*record, uint64, error) {
	rec := &record{}
	version, err := store.GetJSON(ctx, s.kv, Key(studentID), rec)
	if errors.Is(err, store.ErrNotFound) {
		return &record{Reviews: make(map[string]*ReviewState)}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if rec.Reviews == nil {
		rec.Reviews = make(map[string]*ReviewState)
	}
	return rec, version, nil
}

// apply folds outcomes into the record. A miss (re)schedules the item at
// stage 0; a hit advances an item that is already tracked. Hits on
// untracked items are ignored. It reports whether anything changed.
func (r *record) apply(outcomes []Outcome, now time.Time) bool {
	changed := false
	for _, o := range outcomes {
		rs := r.Reviews[o.ItemID]
		switch {
		case !o.Correct:
			if rs == nil {
				rs = &ReviewState{ItemID: o.ItemID, TopicKey: o.TopicKey}
				r.Reviews[o.ItemID] = rs
			}
			rs.miss(now)
			changed = true
		case rs != nil:
			rs.hit(now)
			changed = true
		}
	}
	return changed
}

// OutcomeWrite reads the student's review record, folds outcomes into it
// and returns the write storing the result at the version it read. ok is
// false when the record is unchanged. The caller commits the write, so a
// quiz completion can store reviews in the same commit as abilities.
func (s *Scheduler) OutcomeWrite(ctx context.Context, studentID string, outcomes []Outcome, now time.Time) (w store.Write, ok bool, err error) {
	if len(outcomes) == 0 {
		return store.Write{}, false, nil
	}
	rec, version, err := s.load(ctx, studentID)
	if err != nil {
		return store.Write{}, false, fmt.Errorf("load reviews: %w", err)
	}
	if !rec.apply(outcomes, now) {
		return store.Write{}, false, nil
	}
	w, err = store.PutJSON(Key(studentID), rec, version)
	if err != nil {
		return store.Write{}, false, err
	}
	return w, true, nil
}

// RecordOutcomes updates review schedules on its own, retrying on version
// conflicts.
func (s *Scheduler) RecordOutcomes(ctx context.Context, studentID string, outcomes []Outcome, now time.Time) error {
	var lastErr error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		w, ok, err := s.OutcomeWrite(ctx, studentID, outcomes, now)
		if err != nil || !ok {
			return err
		}
		lastErr = s.kv.AtomicCommit(ctx, []store.Write{w})
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, store.ErrConflict) {
			return fmt.Errorf("save reviews: %w", lastErr)
		}
	}
	return fmt.Errorf("save reviews: %w", lastErr)
}

// ReviewCandidates returns items that fell due within the last windowDays,
// most overdue first. A zero window returns every due item. Failures are
// logged and yield an empty list so quiz generation never depends on this
// collaborator.
func (s *Scheduler) ReviewCandidates(ctx context.Context, studentID string, windowDays int, now time.Time) []Candidate {
	rec, _, err := s.load(ctx, studentID)
	if err != nil {
		s.logger.Warn("review candidates unavailable",
			zap.String("student_id", studentID),
			zap.Error(err))
		return nil
	}

	var due []Candidate
	for id, rs := range rec.Reviews {
		if rs.Graduated || !rs.IsDue(now) {
			continue
		}
		overdue := rs.OverdueDays(now)
		if windowDays > 0 && overdue > float64(windowDays) {
			continue
		}
		due = append(due, Candidate{ItemID: id, TopicKey: rs.TopicKey, Overdue: overdue})
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].Overdue != due[j].Overdue {
			return due[i].Overdue > due[j].Overdue
		}
		return due[i].ItemID < due[j].ItemID
	})
	return due
}

// ReviewStates returns all tracked items of a student (for stats).
func (s *Scheduler) ReviewStates(ctx context.Context, studentID string) (map[string]*ReviewState, error) {
	rec, _, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return rec.Reviews, nil
}

package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/abhisek/adaptest/internal/aggregate"
	"github.com/abhisek/adaptest/internal/bank"
	"github.com/abhisek/adaptest/internal/breaker"
	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/metrics"
	"github.com/abhisek/adaptest/internal/selector"
	"github.com/abhisek/adaptest/internal/spacedrep"
	"github.com/abhisek/adaptest/internal/store"
	"github.com/abhisek/adaptest/internal/student"
)

// Completion outcomes reported to metrics.
const (
	outcomeCompleted = "completed"
	outcomeConflict  = "conflict"
	outcomeNotFound  = "not_found"
	outcomeError     = "error"
)

// Config holds lifecycle tuning.
type Config struct {
	Retry RetryConfig `yaml:"retry"`

	// SeenLimit bounds the answer history kept on a student.
	SeenLimit int `yaml:"seen_limit" validate:"gte=0"`

	// Timeout bounds each service operation.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// DefaultConfig returns the standard lifecycle tuning.
func DefaultConfig() Config {
	return Config{
		Retry:     DefaultRetryConfig(),
		SeenLimit: student.DefaultSeenLimit,
		Timeout:   2 * time.Second,
	}
}

// OutcomeRecorder turns graded answers into a write that joins the
// completion commit. ok is false when there is nothing to store.
type OutcomeRecorder interface {
	OutcomeWrite(ctx context.Context, studentID string, outcomes []spacedrep.Outcome, now time.Time) (w store.Write, ok bool, err error)
}

// Lifecycle owns quiz state transitions. Complete is the only code path
// that writes student ability state.
type Lifecycle struct {
	cfg        Config
	kv         store.KV
	items      *bank.Repository
	students   *student.Repository
	selector   *selector.Selector
	estimator  *irt.Estimator
	aggregator *aggregate.Aggregator
	breaker    *breaker.Breaker
	outcomes   OutcomeRecorder
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
	creates    singleflight.Group
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithOutcomes sets the collaborator told about graded answers.
func WithOutcomes(r OutcomeRecorder) Option {
	return func(l *Lifecycle) { l.outcomes = r }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Lifecycle) { l.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Lifecycle) { l.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// WithIDs overrides quiz ID generation.
func WithIDs(newID func() string) Option {
	return func(l *Lifecycle) { l.newID = newID }
}

// Engine groups the scoring components a Lifecycle drives.
type Engine struct {
	Selector   *selector.Selector
	Estimator  *irt.Estimator
	Aggregator *aggregate.Aggregator
	Breaker    *breaker.Breaker
}

// NewLifecycle creates a Lifecycle over kv.
func NewLifecycle(cfg Config, kv store.KV, eng Engine, opts ...Option) *Lifecycle {
	def := DefaultConfig()
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.SeenLimit <= 0 {
		cfg.SeenLimit = def.SeenLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	l := &Lifecycle{
		cfg:        cfg,
		kv:         kv,
		items:      bank.NewRepository(kv),
		students:   student.NewRepository(kv),
		selector:   eng.Selector,
		estimator:  eng.Estimator,
		aggregator: eng.Aggregator,
		breaker:    eng.Breaker,
		logger:     zap.NewNop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, o := range opts {
		o(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.estimator == nil {
		l.estimator = irt.NewEstimator(irt.DefaultConfig())
	}
	if l.aggregator == nil {
		l.aggregator = aggregate.New(aggregate.DefaultTable(), l.logger)
	}
	if l.breaker == nil {
		l.breaker = breaker.New(breaker.DefaultConfig())
	}
	if l.selector == nil {
		l.selector = selector.New(selector.DefaultConfig(), l.items, l.estimator, selector.WithLogger(l.logger))
	}
	return l
}

// Config returns the effective configuration.
func (l *Lifecycle) Config() Config {
	return l.cfg
}

// Get returns a quiz.
func (l *Lifecycle) Get(ctx context.Context, quizID string) (*Session, error) {
	s, _, err := l.load(ctx, quizID)
	return s, err
}

func (l *Lifecycle) load(ctx context.Context, quizID string) (*Session, uint64, error) {
	var s Session
	version, err := store.GetJSON(ctx, l.kv, quizKey(quizID), &s)
	if errors.Is(err, store.ErrNotFound) {
		return nil, 0, &ErrNotFound{Kind: "quiz", ID: quizID}
	}
	if err != nil {
		return nil, 0, &ErrTransientStore{Op: "load quiz", Err: err}
	}
	return &s, version, nil
}

// Create returns the quiz for (studentID, key), generating it on first use.
// Concurrent calls for the same pair converge on one quiz.
func (l *Lifecycle) Create(ctx context.Context, studentID, key string) (*Session, error) {
	v, err, _ := l.creates.Do(studentID+"\x00"+key, func() (any, error) {
		return l.create(ctx, studentID, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session).clone(), nil
}

func (l *Lifecycle) create(ctx context.Context, studentID, key string) (*Session, error) {
	if s, err := l.byKey(ctx, studentID, key); err == nil || !isNotFound(err) {
		return s, err
	}

	st, _, err := l.students.Load(ctx, studentID)
	if err != nil {
		return nil, &ErrTransientStore{Op: "load student", Err: err}
	}

	now := l.now()
	sel, err := l.selector.Select(ctx, selector.Request{Student: st, Now: now})
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        l.newID(),
		StudentID: studentID,
		Key:       key,
		Status:    StatusInProgress,
		Phase:     sel.Phase,
		Recovery:  sel.Recovery,
		Warnings:  sel.Warnings,
		CreatedAt: now,
	}
	for i, picked := range sel.Items {
		it := picked.Item
		s.Items = append(s.Items, Item{
			Position: i,
			ItemID:   it.ID,
			TopicKey: it.TopicKey,
			Reason:   picked.Reason,
			Type:     it.Type,
			Params:   it.Params,
			Prompt:   it.Prompt,
			Choices:  it.Choices,
		})
	}

	keyWrite, err := store.PutJSON(idempotencyKey(studentID, key), keyRecord{QuizID: s.ID}, 0)
	if err != nil {
		return nil, err
	}
	quizWrite, err := store.PutJSON(quizKey(s.ID), s, 0)
	if err != nil {
		return nil, err
	}

	err = l.kv.AtomicCommit(ctx, []store.Write{keyWrite, quizWrite})
	if errors.Is(err, store.ErrConflict) {
		// Another process created the quiz for this key first.
		return l.byKey(ctx, studentID, key)
	}
	if err != nil {
		return nil, &ErrTransientStore{Op: "create quiz", Err: err}
	}

	levels := make([]string, 0, len(s.Warnings))
	for _, w := range s.Warnings {
		levels = append(levels, string(w.Level))
	}
	l.metrics.Generated(string(s.Phase), s.Recovery, levels)
	l.logger.Info("quiz created",
		zap.String("quiz_id", s.ID),
		zap.String("student_id", studentID),
		zap.String("key", key),
		zap.String("phase", string(s.Phase)),
		zap.Bool("recovery", s.Recovery),
		zap.Int("items", len(s.Items)))
	return s, nil
}

func (l *Lifecycle) byKey(ctx context.Context, studentID, key string) (*Session, error) {
	var rec keyRecord
	_, err := store.GetJSON(ctx, l.kv, idempotencyKey(studentID, key), &rec)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &ErrNotFound{Kind: "quiz key", ID: key}
	}
	if err != nil {
		return nil, &ErrTransientStore{Op: "load quiz key", Err: err}
	}
	s, _, err := l.load(ctx, rec.QuizID)
	return s, err
}

// SubmitAnswer grades answer against the item at position and records it.
// A zero latency is measured from the previous answer or quiz creation.
func (l *Lifecycle) SubmitAnswer(ctx context.Context, quizID string, position int, answer string, latency time.Duration) (*Response, error) {
	for attempt := 0; attempt < l.cfg.Retry.MaxAttempts; attempt++ {
		s, version, err := l.load(ctx, quizID)
		if err != nil {
			return nil, err
		}
		if s.Status != StatusInProgress {
			return nil, &ErrConflict{QuizID: quizID, Reason: ReasonAlreadyCompleted}
		}
		if position < 0 || position >= len(s.Items) {
			return nil, &ErrValidation{
				Field: "position",
				Err:   fmt.Errorf("%d not in [0, %d)", position, len(s.Items)),
			}
		}

		qi := &s.Items[position]
		item, err := l.items.Get(ctx, qi.TopicKey, qi.ItemID)
		if errors.Is(err, bank.ErrItemNotFound) {
			return nil, &ErrNotFound{Kind: "item", ID: qi.ItemID}
		}
		if err != nil {
			return nil, &ErrTransientStore{Op: "load item", Err: err}
		}

		now := l.now()
		lat := latency
		if lat <= 0 {
			lat = now.Sub(s.lastActivity())
		}
		resp := &Response{
			ItemID:     qi.ItemID,
			QuizID:     quizID,
			Position:   position,
			Answer:     answer,
			Correct:    bank.CheckAnswer(answer, item),
			LatencyMs:  lat.Milliseconds(),
			TopicKey:   qi.TopicKey,
			Params:     qi.Params,
			AnsweredAt: now,
		}
		qi.Response = resp
		s.recount()

		w, err := store.PutJSON(quizKey(quizID), s, version)
		if err != nil {
			return nil, err
		}
		err = l.kv.AtomicCommit(ctx, []store.Write{w})
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, &ErrTransientStore{Op: "submit answer", Err: err}
		}
		l.metrics.Conflict()
		if err := l.cfg.Retry.sleep(ctx, attempt); err != nil {
			return nil, &ErrTransientStore{Op: "submit answer", Err: err}
		}
	}
	return nil, &ErrTransientStore{Op: "submit answer", Err: store.ErrConflict}
}

// Complete grades the quiz and commits the quiz status, the student's new
// ability state, item usage counters and review schedule in one atomic
// write. On a version
// conflict it re-reads everything and recomputes, so a retry never applies
// an update twice. Exactly one of several concurrent calls succeeds; the
// others get ErrConflict.
func (l *Lifecycle) Complete(ctx context.Context, quizID string) (*Result, error) {
	start := l.now()
	res, outcome, err := l.complete(ctx, quizID)
	l.metrics.Completed(outcome, l.now().Sub(start))
	return res, err
}

func (l *Lifecycle) complete(ctx context.Context, quizID string) (*Result, string, error) {
	for attempt := 0; attempt < l.cfg.Retry.MaxAttempts; attempt++ {
		s, quizVersion, err := l.load(ctx, quizID)
		if err != nil {
			if isNotFound(err) {
				return nil, outcomeNotFound, err
			}
			return nil, outcomeError, err
		}
		if s.Status == StatusCompleted {
			return nil, outcomeConflict, &ErrConflict{QuizID: quizID, Reason: ReasonAlreadyCompleted}
		}

		st, studentVersion, err := l.students.Load(ctx, s.StudentID)
		if err != nil {
			return nil, outcomeError, &ErrTransientStore{Op: "load student", Err: err}
		}

		now := l.now()
		c := l.grade(s, st, now)

		writes, err := l.commitWrites(ctx, c, quizVersion, studentVersion, now)
		if err != nil {
			return nil, outcomeError, &ErrTransientStore{Op: "complete quiz", Err: err}
		}

		err = l.kv.AtomicCommit(ctx, writes)
		if err == nil {
			l.afterCommit(c)
			return c.result, outcomeCompleted, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, outcomeError, &ErrTransientStore{Op: "complete quiz", Err: err}
		}

		l.metrics.Conflict()
		l.logger.Debug("completion conflict, retrying",
			zap.String("quiz_id", quizID),
			zap.String("student_id", s.StudentID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if err := l.cfg.Retry.sleep(ctx, attempt); err != nil {
			return nil, outcomeError, &ErrTransientStore{Op: "complete quiz", Err: err}
		}
	}
	return nil, outcomeError, &ErrTransientStore{Op: "complete quiz", Err: store.ErrConflict}
}

// completion is the pure result of grading one quiz against a student
// snapshot.
type completion struct {
	session  *Session
	student  *student.Student
	usage    map[string]bank.Usage
	outcomes []spacedrep.Outcome
	breaker  breaker.Outcome
	result   *Result
}

// grade recomputes everything a completion writes. It has no side effects.
func (l *Lifecycle) grade(s *Session, snapshot *student.Student, now time.Time) *completion {
	done := s.clone()
	done.recount()
	total := len(done.Items)

	obs := make(map[string][]irt.Observation)
	usage := make(map[string]bank.Usage, total)
	var seen []student.SeenItem
	var outcomes []spacedrep.Outcome
	for _, it := range done.Items {
		u := usage[it.ItemID]
		u.Served++
		if r := it.Response; r != nil {
			obs[it.TopicKey] = append(obs[it.TopicKey], irt.Observation{Correct: r.Correct, Params: r.Params})
			u.Answered++
			if r.Correct {
				u.Correct++
			}
			seen = append(seen, student.SeenItem{ItemID: it.ItemID, TopicKey: it.TopicKey, AnsweredAt: r.AnsweredAt})
			outcomes = append(outcomes, spacedrep.Outcome{ItemID: it.ItemID, TopicKey: it.TopicKey, Correct: r.Correct})
		}
		usage[it.ItemID] = u
	}

	accuracy := 0.0
	if total > 0 {
		accuracy = float64(done.Correct) / float64(total)
	}
	done.Status = StatusCompleted
	done.Accuracy = accuracy
	done.Score = 100 * accuracy
	done.CompletedAt = &now

	next := snapshot.Clone()
	prior := l.estimator.Prior()
	for topic, o := range obs {
		next.Abilities[topic] = l.estimator.Update(next.Ability(topic, prior), o, now)
	}
	next.Subjects = l.aggregator.Subjects(next.Abilities)
	next.Overall = l.aggregator.Overall(next.Abilities)
	next.OverallPercentile = irt.Percentile(next.Overall)

	var outcome breaker.Outcome
	next.Breaker, outcome = l.breaker.Evaluate(snapshot.Breaker, accuracy, s.Recovery, now)

	next.QuizzesCompleted++
	next.Phase = student.PhaseFor(next.QuizzesCompleted, l.selector.Config().ExplorationQuizzes)
	next.RecordSeen(seen, l.cfg.SeenLimit)
	next.UpdatedAt = now

	topicPct := make(map[string]float64, len(next.Abilities))
	for topic, a := range next.Abilities {
		topicPct[topic] = a.Percentile()
	}

	return &completion{
		session:  done,
		student:  next,
		usage:    usage,
		outcomes: outcomes,
		breaker:  outcome,
		result: &Result{
			QuizID:           done.ID,
			Score:            done.Score,
			Accuracy:         accuracy,
			Answered:         done.Answered,
			Correct:          done.Correct,
			Total:            total,
			Overall:          next.Overall,
			Percentile:       next.OverallPercentile,
			TopicPercentiles: topicPct,
			SubjectAbilities: next.Subjects,
			Recovery:         s.Recovery,
			BreakerOutcome:   outcome,
			BreakerTriggered: next.Breaker.Triggered(),
			QuizzesCompleted: next.QuizzesCompleted,
			Phase:            next.Phase,
		},
	}
}

func (l *Lifecycle) commitWrites(ctx context.Context, c *completion, quizVersion, studentVersion uint64, now time.Time) ([]store.Write, error) {
	quizWrite, err := store.PutJSON(quizKey(c.session.ID), c.session, quizVersion)
	if err != nil {
		return nil, err
	}
	studentWrite, err := l.students.Write(c.student, studentVersion)
	if err != nil {
		return nil, err
	}
	usage, err := l.items.UsageWrites(ctx, c.usage)
	if err != nil {
		return nil, err
	}
	writes := append([]store.Write{quizWrite, studentWrite}, usage...)

	if l.outcomes != nil {
		w, ok, err := l.outcomes.OutcomeWrite(ctx, c.student.ID, c.outcomes, now)
		if err != nil {
			return nil, err
		}
		if ok {
			writes = append(writes, w)
		}
	}
	return writes, nil
}

// afterCommit reports a committed completion.
func (l *Lifecycle) afterCommit(c *completion) {
	l.metrics.Breaker(string(c.breaker))

	fields := []zap.Field{
		zap.String("quiz_id", c.session.ID),
		zap.String("student_id", c.student.ID),
		zap.Float64("accuracy", c.result.Accuracy),
		zap.String("breaker", string(c.breaker)),
	}
	if c.breaker == breaker.OutcomeTripped {
		l.logger.Warn("circuit breaker tripped", fields...)
	}
	l.logger.Info("quiz completed", fields...)
}

func isNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

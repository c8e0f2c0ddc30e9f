package selector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/adaptest/internal/bank"
	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/spacedrep"
	"github.com/abhisek/adaptest/internal/student"
)

// Reason explains why an item was selected.
type Reason string

const (
	ReasonExploration Reason = "exploration"
	ReasonDeliberate  Reason = "deliberate_practice"
	ReasonReview      Reason = "review"
	ReasonFallback    Reason = "fallback"
)

// ItemSource provides active items per topic.
type ItemSource interface {
	Query(ctx context.Context, topic string, activeOnly bool) ([]bank.Item, error)
	Topics(ctx context.Context) ([]string, error)
}

// ReviewSource provides items due for spaced review. Implementations
// degrade to an empty list instead of failing.
type ReviewSource interface {
	ReviewCandidates(ctx context.Context, studentID string, windowDays int, now time.Time) []spacedrep.Candidate
}

// Request is the input to Select.
type Request struct {
	Student *student.Student
	Now     time.Time
}

// Selected is an item chosen for a quiz.
type Selected struct {
	Item   bank.Item
	Reason Reason
	Info   float64
}

// Selection is the ordered result of Select.
type Selection struct {
	Items    []Selected
	Phase    student.Phase
	Recovery bool
	Warnings []Warning
}

// Selector builds quizzes that maximize information about the student
// subject to exploration, review, and difficulty constraints.
type Selector struct {
	cfg       Config
	items     ItemSource
	reviews   ReviewSource
	estimator *irt.Estimator
	topics    []string
	logger    *zap.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithTopics restricts selection to a fixed topic catalog. Without it the
// selector uses every topic the item source knows.
func WithTopics(topics []string) Option {
	return func(s *Selector) { s.topics = append([]string(nil), topics...) }
}

// WithReviews sets the spaced-repetition collaborator.
func WithReviews(r ReviewSource) Option {
	return func(s *Selector) { s.reviews = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Selector) { s.logger = l }
}

// New creates a Selector.
func New(cfg Config, items ItemSource, estimator *irt.Estimator, opts ...Option) *Selector {
	s := &Selector{
		cfg:       cfg.withDefaults(),
		items:     items,
		estimator: estimator,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.estimator == nil {
		s.estimator = irt.NewEstimator(irt.DefaultConfig())
	}
	return s
}

// Config returns the effective configuration.
func (s *Selector) Config() Config {
	return s.cfg
}

// pool is the candidate set of one topic.
type pool struct {
	topic    string
	theta    float64
	rank     float64
	attempts int
	all      []bank.Item
	fresh    []bank.Item

	// picks are the ranked fresh items offered to the main categories.
	// widened marks a topic whose difficulty window was empty, so picks
	// holds its nearest-difficulty items instead.
	picks   []bank.Item
	widened bool
}

// Select builds the next quiz for req.Student.
func (s *Selector) Select(ctx context.Context, req Request) (*Selection, error) {
	st := req.Student
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	sel := &Selection{
		Phase:    student.PhaseFor(st.QuizzesCompleted, s.cfg.ExplorationQuizzes),
		Recovery: st.Breaker.Triggered(),
	}

	topics := s.topics
	if len(topics) == 0 {
		var err error
		topics, err = s.items.Topics(ctx)
		if err != nil {
			return nil, fmt.Errorf("list topics: %w", err)
		}
	}

	recent := recentItems(st.Seen, s.cfg.Recency, now)
	pools, err := s.gather(ctx, st, topics, recent, sel.Recovery)
	if err != nil {
		return nil, err
	}
	for _, p := range pools {
		if len(p.fresh) == 0 && len(p.all) > 0 {
			p.fresh = p.all
			sel.Warnings = append(sel.Warnings, Warning{Level: LevelStaleTopic, Topic: p.topic})
		}
		p.picks = s.windowed(p, p.fresh, sel.Recovery)
		if len(p.picks) == 0 {
			p.picks = s.nearest(p, p.fresh, sel.Recovery)
			p.widened = len(p.picks) > 0
		}
	}
	picks := func(p *pool) []bank.Item { return p.picks }

	b := newBuilder(s.cfg.TestSize, s.cfg.MaxPerTopic)
	mix := s.cfg.ExplorationMix
	if sel.Phase == student.PhaseExploitation {
		mix = s.cfg.ExploitationMix
	}
	reviewQuota := quota(s.cfg.TestSize, mix.Review)
	deliberateQuota := 0
	if sel.Phase == student.PhaseExploitation {
		deliberateQuota = quota(s.cfg.TestSize, mix.Deliberate)
	}

	// Starved categories hand their slots to the next one, ending in
	// exploration which takes whatever is left.
	added := s.addReview(ctx, b, st.ID, pools, reviewQuota, sel.Recovery, now)
	carry := reviewQuota - added
	if sel.Phase == student.PhaseExploitation {
		weak := weakest(pools, s.cfg.WeakTopics)
		b.roundRobin(weak, picks, deliberateQuota+carry, ReasonDeliberate, true)
	}
	b.roundRobin(leastAttempted(pools), picks, b.remaining(), ReasonExploration, true)

	for _, p := range pools {
		if !p.widened {
			continue
		}
		n := 0
		for _, it := range b.picked {
			if it.Item.TopicKey == p.topic && it.Reason == ReasonFallback {
				n++
			}
		}
		if n > 0 {
			sel.Warnings = append(sel.Warnings, Warning{Level: LevelDropWindow, Topic: p.topic, Requested: n, Selected: n})
		}
	}

	s.fallback(ctx, b, sel, pools, topics)

	if len(b.picked) == 0 {
		return nil, &ErrExhaustedFallback{StudentID: st.ID, Requested: s.cfg.TestSize}
	}
	sel.Items = b.picked

	for _, w := range sel.Warnings {
		s.logger.Warn("degraded selection",
			zap.String("student_id", st.ID),
			zap.String("level", string(w.Level)),
			zap.String("topic", w.Topic),
			zap.Int("requested", w.Requested),
			zap.Int("selected", w.Selected))
	}
	return sel, nil
}

// gather queries every topic in parallel and removes recently seen items.
func (s *Selector) gather(ctx context.Context, st *student.Student, topics []string, recent map[string]bool, recovery bool) ([]*pool, error) {
	pools := make([]*pool, len(topics))
	prior := s.estimator.Prior()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, topic := range topics {
		g.Go(func() error {
			items, err := s.items.Query(gctx, topic, true)
			if err != nil {
				return fmt.Errorf("query topic %s: %w", topic, err)
			}
			ability := st.Ability(topic, prior)
			p := &pool{
				topic:    topic,
				theta:    ability.Theta,
				rank:     ability.Theta,
				attempts: st.Attempts(topic),
				all:      items,
			}
			if recovery {
				p.rank = irt.ClampTheta(ability.Theta - s.cfg.RecoveryShift)
			}
			for _, it := range items {
				if !recent[it.ID] {
					p.fresh = append(p.fresh, it)
				}
			}
			pools[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pools, nil
}

// windowed ranks items inside the adaptive difficulty window of p. In a
// recovery quiz items harder than the student's theta are dropped.
func (s *Selector) windowed(p *pool, items []bank.Item, recovery bool) []bank.Item {
	width := s.cfg.WindowFor(len(p.all))
	var out []bank.Item
	for _, it := range items {
		if math.Abs(it.Params.B-p.rank) > width {
			continue
		}
		if recovery && it.Params.B > p.theta {
			continue
		}
		out = append(out, it)
	}
	return rank(out, p.rank)
}

// nearest orders items by distance from the ranking theta. It serves a
// topic whose difficulty window is empty, typically an extreme theta. A
// recovery quiz still drops items harder than theta.
func (s *Selector) nearest(p *pool, items []bank.Item, recovery bool) []bank.Item {
	var out []bank.Item
	for _, it := range items {
		if recovery && it.Params.B > p.theta {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := math.Abs(out[i].Params.B-p.rank), math.Abs(out[j].Params.B-p.rank)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Selector) addReview(ctx context.Context, b *builder, studentID string, pools []*pool, quota int, recovery bool, now time.Time) int {
	if s.reviews == nil || quota <= 0 {
		return 0
	}
	byTopic := make(map[string]*pool, len(pools))
	for _, p := range pools {
		byTopic[p.topic] = p
	}

	added := 0
	for _, c := range s.reviews.ReviewCandidates(ctx, studentID, s.cfg.ReviewWindowDays, now) {
		if added >= quota || b.full() {
			break
		}
		p, ok := byTopic[c.TopicKey]
		if !ok {
			continue
		}
		for _, it := range p.all {
			if it.ID != c.ItemID {
				continue
			}
			if recovery && it.Params.B > p.theta {
				break
			}
			if b.add(it, p, ReasonReview, true) {
				added++
			}
			break
		}
	}
	return added
}

// fallback walks the degradation ladder until the quiz is full.
func (s *Selector) fallback(ctx context.Context, b *builder, sel *Selection, pools []*pool, topics []string) {
	order := leastAttempted(pools)

	if !b.full() {
		before := len(b.picked)
		b.roundRobin(order, func(p *pool) []bank.Item { return s.windowed(p, p.all, sel.Recovery) },
			b.remaining(), ReasonFallback, true)
		sel.Warnings = append(sel.Warnings, Warning{Level: LevelDropRecency, Requested: s.cfg.TestSize, Selected: len(b.picked) - before})
	}

	if !b.full() {
		before := len(b.picked)
		b.roundRobin(order, func(p *pool) []bank.Item { return rank(p.all, p.rank) },
			b.remaining(), ReasonFallback, true)
		sel.Warnings = append(sel.Warnings, Warning{Level: LevelDropWindow, Requested: s.cfg.TestSize, Selected: len(b.picked) - before})
	}

	if !b.full() {
		before := len(b.picked)
		s.anyTopic(ctx, b, pools, topics)
		sel.Warnings = append(sel.Warnings, Warning{Level: LevelAnyTopic, Requested: s.cfg.TestSize, Selected: len(b.picked) - before})
	}
}

// anyTopic fills remaining slots from every topic in the bank, ignoring the
// per-topic cap.
func (s *Selector) anyTopic(ctx context.Context, b *builder, pools []*pool, topics []string) {
	all := append([]*pool(nil), pools...)

	known := make(map[string]bool, len(topics))
	for _, t := range topics {
		known[t] = true
	}
	if bankTopics, err := s.items.Topics(ctx); err != nil {
		s.logger.Warn("list bank topics for fallback", zap.Error(err))
	} else {
		prior := s.estimator.Prior()
		for _, t := range bankTopics {
			if known[t] {
				continue
			}
			items, err := s.items.Query(ctx, t, true)
			if err != nil {
				s.logger.Warn("query fallback topic", zap.String("topic", t), zap.Error(err))
				continue
			}
			all = append(all, &pool{topic: t, theta: prior.Theta, rank: prior.Theta, all: items})
		}
	}

	type cand struct {
		item bank.Item
		p    *pool
		info float64
	}
	var cands []cand
	for _, p := range all {
		for _, it := range p.all {
			cands = append(cands, cand{item: it, p: p, info: irt.FisherInformation(p.rank, it.Params)})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].info != cands[j].info {
			return cands[i].info > cands[j].info
		}
		return cands[i].item.ID < cands[j].item.ID
	})
	for _, c := range cands {
		if b.full() {
			return
		}
		b.add(c.item, c.p, ReasonFallback, false)
	}
}

// rank orders items by information at theta, ties broken by ID.
func rank(items []bank.Item, theta float64) []bank.Item {
	out := append([]bank.Item(nil), items...)
	info := make(map[string]float64, len(out))
	for _, it := range out {
		info[it.ID] = irt.FisherInformation(theta, it.Params)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if info[out[i].ID] != info[out[j].ID] {
			return info[out[i].ID] > info[out[j].ID]
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// recentItems returns the IDs excluded by the recency policy.
func recentItems(seen []student.SeenItem, r Recency, now time.Time) map[string]bool {
	recent := make(map[string]bool)
	cutoff := now.AddDate(0, 0, -r.Days)
	for i := len(seen) - 1; i >= 0; i-- {
		fromEnd := len(seen) - 1 - i
		byCount := r.Attempts > 0 && fromEnd < r.Attempts
		byAge := r.Days > 0 && seen[i].AnsweredAt.After(cutoff)
		if byCount || byAge {
			recent[seen[i].ItemID] = true
		}
	}
	return recent
}

// weakest returns up to n attempted topics with the lowest theta.
func weakest(pools []*pool, n int) []*pool {
	var attempted []*pool
	for _, p := range pools {
		if p.attempts > 0 {
			attempted = append(attempted, p)
		}
	}
	sort.SliceStable(attempted, func(i, j int) bool {
		if attempted[i].theta != attempted[j].theta {
			return attempted[i].theta < attempted[j].theta
		}
		return attempted[i].topic < attempted[j].topic
	})
	if len(attempted) > n {
		attempted = attempted[:n]
	}
	return attempted
}

// leastAttempted orders pools by attempts, then topic key.
func leastAttempted(pools []*pool) []*pool {
	out := append([]*pool(nil), pools...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].attempts != out[j].attempts {
			return out[i].attempts < out[j].attempts
		}
		return out[i].topic < out[j].topic
	})
	return out
}

func quota(size int, share float64) int {
	if share <= 0 {
		return 0
	}
	q := int(math.Round(float64(size) * share))
	if q > size {
		return size
	}
	return q
}

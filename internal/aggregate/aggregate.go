package aggregate

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/adaptest/internal/irt"
)

// Table maps topics to weights and subjects. It is injected configuration;
// nothing in this package hardcodes exam structure.
type Table struct {
	// Default is the weight of a topic missing from Weights.
	Default float64 `yaml:"default" validate:"gte=0"`

	Weights  map[string]float64 `yaml:"weights"`
	Subjects map[string]string  `yaml:"subjects"`
}

// DefaultTable weighs every topic equally.
func DefaultTable() Table {
	return Table{Default: 1.0}
}

// Weight returns the weight of topic. Negative weights count as zero.
func (t Table) Weight(topic string) float64 {
	w, ok := t.Weights[topic]
	if !ok {
		w = t.Default
	}
	if w < 0 {
		return 0
	}
	return w
}

// Subject returns the subject of topic, falling back to the key prefix
// before the first '.'.
func (t Table) Subject(topic string) string {
	if s, ok := t.Subjects[topic]; ok && s != "" {
		return s
	}
	if i := strings.IndexByte(topic, '.'); i > 0 {
		return topic[:i]
	}
	return topic
}

// Aggregator rolls per-topic abilities up to subject and overall scores.
type Aggregator struct {
	table  Table
	logger *zap.Logger
}

// New creates an Aggregator over table. A nil logger disables logging.
func New(table Table, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{table: table, logger: logger}
}

// Table returns the weight table in use.
func (a *Aggregator) Table() Table {
	return a.table
}

// Overall returns the weighted mean theta across all topics in states.
// Returns 0.0 when the total weight is zero.
func (a *Aggregator) Overall(states map[string]irt.AbilityState) float64 {
	return a.mean(states, func(string) bool { return true }, "overall")
}

// Subject returns the weighted mean theta across the topics of subject.
// Returns 0.0 when the subject has no weighted topics.
func (a *Aggregator) Subject(states map[string]irt.AbilityState, subject string) float64 {
	return a.mean(states, func(topic string) bool {
		return a.table.Subject(topic) == subject
	}, subject)
}

// Subjects returns the weighted mean theta of every subject present in states.
func (a *Aggregator) Subjects(states map[string]irt.AbilityState) map[string]float64 {
	seen := make(map[string]bool)
	for topic := range states {
		seen[a.table.Subject(topic)] = true
	}
	names := make([]string, 0, len(seen))
	for s := range seen {
		names = append(names, s)
	}
	sort.Strings(names)

	out := make(map[string]float64, len(names))
	for _, s := range names {
		out[s] = a.Subject(states, s)
	}
	return out
}

func (a *Aggregator) mean(states map[string]irt.AbilityState, include func(string) bool, scope string) float64 {
	var sum, total float64
	for topic, st := range states {
		if !include(topic) {
			continue
		}
		w := a.table.Weight(topic)
		if w == 0 {
			continue
		}
		sum += irt.ClampTheta(st.Theta) * w
		total += w
	}
	if total == 0 {
		if len(states) > 0 {
			a.logger.Warn("zero total weight in aggregation",
				zap.String("scope", scope),
				zap.Int("topics", len(states)))
		}
		return 0
	}
	return irt.ClampTheta(sum / total)
}

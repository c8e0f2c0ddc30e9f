package topics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/abhisek/adaptest/internal/aggregate"
)

// Topic is a single exam topic that items are tagged with.
type Topic struct {
	Key     string  `yaml:"key" json:"key" validate:"required"`
	Name    string  `yaml:"name" json:"name"`
	Subject string  `yaml:"subject" json:"subject"`
	Weight  float64 `yaml:"weight" json:"weight" validate:"gte=0"`
}

// DisplayName returns Name, or the key when no name is set.
func (t Topic) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Key
}

// SubjectOf derives a subject from a topic key when none is configured:
// the part before the first '.', or the whole key.
func SubjectOf(key string) string {
	if i := strings.IndexByte(key, '.'); i > 0 {
		return key[:i]
	}
	return key
}

// Catalog is an immutable, indexed set of topics.
type Catalog struct {
	topics    []Topic
	byKey     map[string]*Topic
	bySubject map[string][]Topic
}

var validate = validator.New()

// NewCatalog validates topics and builds the catalog indices.
// Topics without a subject get one derived from their key.
func NewCatalog(topics []Topic) (*Catalog, error) {
	c := &Catalog{
		topics:    make([]Topic, 0, len(topics)),
		byKey:     make(map[string]*Topic, len(topics)),
		bySubject: make(map[string][]Topic),
	}

	for _, t := range topics {
		if err := validate.Struct(t); err != nil {
			return nil, fmt.Errorf("topic %q: %w", t.Key, err)
		}
		if t.Subject == "" {
			t.Subject = SubjectOf(t.Key)
		}
		c.topics = append(c.topics, t)
	}

	sort.Slice(c.topics, func(i, j int) bool {
		return c.topics[i].Key < c.topics[j].Key
	})

	for i := range c.topics {
		t := &c.topics[i]
		if _, dup := c.byKey[t.Key]; dup {
			return nil, fmt.Errorf("duplicate topic key %q", t.Key)
		}
		c.byKey[t.Key] = t
		c.bySubject[t.Subject] = append(c.bySubject[t.Subject], *t)
	}

	return c, nil
}

// All returns every topic ordered by key.
func (c *Catalog) All() []Topic {
	out := make([]Topic, len(c.topics))
	copy(out, c.topics)
	return out
}

// Keys returns every topic key in order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.topics))
	for i, t := range c.topics {
		keys[i] = t.Key
	}
	return keys
}

// Len returns the number of topics.
func (c *Catalog) Len() int {
	return len(c.topics)
}

// Get returns the topic with the given key.
func (c *Catalog) Get(key string) (Topic, bool) {
	t, ok := c.byKey[key]
	if !ok {
		return Topic{}, false
	}
	return *t, true
}

// BySubject returns the topics of a subject ordered by key.
func (c *Catalog) BySubject(subject string) []Topic {
	return c.bySubject[subject]
}

// Subjects returns all subjects in sorted order.
func (c *Catalog) Subjects() []string {
	subjects := make([]string, 0, len(c.bySubject))
	for s := range c.bySubject {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects
}

// SubjectFor returns the configured subject of key, falling back to SubjectOf.
func (c *Catalog) SubjectFor(key string) string {
	if t, ok := c.byKey[key]; ok {
		return t.Subject
	}
	return SubjectOf(key)
}

// WeightTable builds an aggregation table from the catalog. Topics with a
// zero weight use def.
func (c *Catalog) WeightTable(def float64) aggregate.Table {
	tbl := aggregate.Table{
		Default:  def,
		Weights:  make(map[string]float64, len(c.topics)),
		Subjects: make(map[string]string, len(c.topics)),
	}
	for _, t := range c.topics {
		if t.Weight > 0 {
			tbl.Weights[t.Key] = t.Weight
		}
		tbl.Subjects[t.Key] = t.Subject
	}
	return tbl
}

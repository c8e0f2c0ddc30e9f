package selector

// Recency controls which previously answered items are excluded.
// An item is recent if it was answered within the last Days days or is
// among the last Attempts answered items. Zero disables either rule.
type Recency struct {
	Days     int `yaml:"days" validate:"gte=0"`
	Attempts int `yaml:"attempts" validate:"gte=0"`
}

// WindowTier maps a topic pool size to a difficulty window half-width.
// The first tier whose MinPool is at most the pool size applies.
type WindowTier struct {
	MinPool int     `yaml:"min_pool" validate:"gte=0"`
	Width   float64 `yaml:"width" validate:"gt=0"`
}

// Mix is the share of a quiz given to each selection reason.
type Mix struct {
	Exploration float64 `yaml:"exploration" validate:"gte=0,lte=1"`
	Deliberate  float64 `yaml:"deliberate" validate:"gte=0,lte=1"`
	Review      float64 `yaml:"review" validate:"gte=0,lte=1"`
}

// Config holds selector tuning.
type Config struct {
	// TestSize is the number of items in a generated quiz.
	TestSize int `yaml:"test_size" validate:"gte=1,lte=200"`

	// ExplorationQuizzes is how many completed quizzes a student spends in
	// the exploration phase.
	ExplorationQuizzes int `yaml:"exploration_quizzes" validate:"gte=0"`

	// MaxPerTopic caps items per topic outside the last fallback level.
	MaxPerTopic int `yaml:"max_per_topic" validate:"gte=1"`

	// WeakTopics is how many lowest-theta topics get deliberate practice.
	WeakTopics int `yaml:"weak_topics" validate:"gte=1"`

	Recency Recency `yaml:"recency"`

	// Windows must be ordered by descending MinPool.
	Windows []WindowTier `yaml:"windows" validate:"min=1,dive"`

	ExplorationMix  Mix `yaml:"exploration_mix"`
	ExploitationMix Mix `yaml:"exploitation_mix"`

	// ReviewWindowDays limits review to items that fell due this recently.
	ReviewWindowDays int `yaml:"review_window_days" validate:"gte=0"`

	// RecoveryShift lowers the ranking theta of a recovery quiz.
	RecoveryShift float64 `yaml:"recovery_shift" validate:"gte=0"`

	// Concurrency bounds parallel topic queries.
	Concurrency int `yaml:"concurrency" validate:"gte=1"`
}

// DefaultConfig returns the standard selector tuning.
func DefaultConfig() Config {
	return Config{
		TestSize:           10,
		ExplorationQuizzes: 3,
		MaxPerTopic:        3,
		WeakTopics:         3,
		Recency:            Recency{Days: 7, Attempts: 50},
		Windows: []WindowTier{
			{MinPool: 30, Width: 0.5},
			{MinPool: 10, Width: 1.0},
			{MinPool: 0, Width: 1.5},
		},
		ExplorationMix:   Mix{Exploration: 0.8, Review: 0.2},
		ExploitationMix:  Mix{Exploration: 0.2, Deliberate: 0.6, Review: 0.2},
		ReviewWindowDays: 14,
		RecoveryShift:    1.0,
		Concurrency:      8,
	}
}

// WindowFor returns the difficulty window half-width for a pool of size n.
func (c Config) WindowFor(n int) float64 {
	for _, t := range c.Windows {
		if n >= t.MinPool {
			return t.Width
		}
	}
	if len(c.Windows) > 0 {
		return c.Windows[len(c.Windows)-1].Width
	}
	return 1.5
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TestSize <= 0 {
		c.TestSize = def.TestSize
	}
	if c.MaxPerTopic <= 0 {
		c.MaxPerTopic = def.MaxPerTopic
	}
	if c.WeakTopics <= 0 {
		c.WeakTopics = def.WeakTopics
	}
	if len(c.Windows) == 0 {
		c.Windows = def.Windows
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	return c
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/adaptest/internal/aggregate"
	"github.com/abhisek/adaptest/internal/breaker"
	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/logging"
	"github.com/abhisek/adaptest/internal/quiz"
	"github.com/abhisek/adaptest/internal/selector"
	"github.com/abhisek/adaptest/internal/store"
	"github.com/abhisek/adaptest/internal/topics"
)

// Config is the complete engine configuration.
type Config struct {
	Store     store.Config    `yaml:"store"`
	Log       logging.Config  `yaml:"log"`
	Estimator irt.Config      `yaml:"estimator"`
	Selector  selector.Config `yaml:"selector"`
	Breaker   breaker.Config  `yaml:"breaker"`
	Quiz      quiz.Config     `yaml:"quiz"`

	// DefaultWeight is the aggregation weight of topics without one.
	DefaultWeight float64 `yaml:"default_weight" validate:"gte=0"`

	// Topics is the catalog. When empty every topic in the item bank is
	// used with DefaultWeight.
	Topics []topics.Topic `yaml:"topics" validate:"dive"`
}

// Default returns a Config with every package's defaults.
func Default() Config {
	return Config{
		Store:         store.DefaultConfig(),
		Log:           logging.DefaultConfig(),
		Estimator:     irt.DefaultConfig(),
		Selector:      selector.DefaultConfig(),
		Breaker:       breaker.DefaultConfig(),
		Quiz:          quiz.DefaultConfig(),
		DefaultWeight: 1.0,
	}
}

// DefaultPath resolves the config file location:
// 1. ADAPTEST_CONFIG environment variable
// 2. $XDG_CONFIG_HOME/adaptest/config.yaml
// 3. ~/.config/adaptest/config.yaml
func DefaultPath() (string, error) {
	if p := os.Getenv("ADAPTEST_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "adaptest", "config.yaml"), nil
}

// Load builds the configuration from defaults, then the YAML file at path,
// then ADAPTEST_* environment variables, and validates the result. An empty
// path uses DefaultPath and tolerates a missing file.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	return load(path, explicit, os.LookupEnv)
}

func load(path string, mustExist bool, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		err := cfg.overlayFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist) && !mustExist:
		case err != nil:
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides values from ADAPTEST_* environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("ADAPTEST_STORE_BACKEND"); ok {
		c.Store.Backend = store.Backend(v)
	}
	if v, ok := lookup("ADAPTEST_LOG_MODE"); ok {
		c.Log.Mode = v
	}
	if v, ok := lookup("ADAPTEST_LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	var errs []error
	intVar := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	floatVar := func(name string, dst *float64) {
		if v, ok := lookup(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = f
		}
	}
	durationVar := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	intVar("ADAPTEST_TEST_SIZE", &c.Selector.TestSize)
	intVar("ADAPTEST_EXPLORATION_QUIZZES", &c.Selector.ExplorationQuizzes)
	intVar("ADAPTEST_RECENCY_DAYS", &c.Selector.Recency.Days)
	intVar("ADAPTEST_RECENCY_ATTEMPTS", &c.Selector.Recency.Attempts)
	intVar("ADAPTEST_BREAKER_THRESHOLD", &c.Breaker.Threshold)
	floatVar("ADAPTEST_BREAKER_FLOOR", &c.Breaker.AccuracyFloor)
	floatVar("ADAPTEST_DEFAULT_WEIGHT", &c.DefaultWeight)
	durationVar("ADAPTEST_TIMEOUT", &c.Quiz.Timeout)

	return errors.Join(errs...)
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, m := range []selector.Mix{c.Selector.ExplorationMix, c.Selector.ExploitationMix} {
		if m.Deliberate+m.Review > 1 {
			return fmt.Errorf("invalid config: selection mix %+v exceeds the whole quiz", m)
		}
	}
	for i := 1; i < len(c.Selector.Windows); i++ {
		if c.Selector.Windows[i].MinPool >= c.Selector.Windows[i-1].MinPool {
			return fmt.Errorf("invalid config: selector windows must be ordered by descending min_pool")
		}
	}
	if _, err := c.Catalog(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Catalog builds the topic catalog.
func (c Config) Catalog() (*topics.Catalog, error) {
	return topics.NewCatalog(c.Topics)
}

// WeightTable builds the aggregation weights from the catalog.
func (c Config) WeightTable() (aggregate.Table, error) {
	cat, err := c.Catalog()
	if err != nil {
		return aggregate.Table{}, err
	}
	return cat.WeightTable(c.DefaultWeight), nil
}

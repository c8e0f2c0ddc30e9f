package app

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/abhisek/adaptest/internal/aggregate"
	"github.com/abhisek/adaptest/internal/bank"
	"github.com/abhisek/adaptest/internal/breaker"
	"github.com/abhisek/adaptest/internal/config"
	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/metrics"
	"github.com/abhisek/adaptest/internal/quiz"
	"github.com/abhisek/adaptest/internal/selector"
	"github.com/abhisek/adaptest/internal/spacedrep"
	"github.com/abhisek/adaptest/internal/store"
	"github.com/abhisek/adaptest/internal/topics"
)

// App holds the wired engine: store, repositories, scoring components, and
// the quiz service built on them.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     store.KV
	Bank      *bank.Repository
	Reviews   *spacedrep.Scheduler
	Catalog   *topics.Catalog
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Lifecycle *quiz.Lifecycle
	Service   *quiz.Service
}

// New opens the configured store and wires the engine on it.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	kv, err := store.Open(cfg.Store, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a, err := NewWithStore(cfg, kv, logger)
	if err != nil {
		return nil, errors.Join(err, kv.Close())
	}
	return a, nil
}

// NewWithStore wires the engine on an already open store. The App takes
// ownership of kv.
func NewWithStore(cfg config.Config, kv store.KV, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	items := bank.NewRepository(kv)
	reviews := spacedrep.NewScheduler(kv, logger.Named("spacedrep"))
	estimator := irt.NewEstimator(cfg.Estimator)

	selOpts := []selector.Option{
		selector.WithReviews(reviews),
		selector.WithLogger(logger.Named("selector")),
	}
	if catalog.Len() > 0 {
		selOpts = append(selOpts, selector.WithTopics(catalog.Keys()))
	}

	lc := quiz.NewLifecycle(cfg.Quiz, kv, quiz.Engine{
		Selector:   selector.New(cfg.Selector, items, estimator, selOpts...),
		Estimator:  estimator,
		Aggregator: aggregate.New(catalog.WeightTable(cfg.DefaultWeight), logger.Named("aggregate")),
		Breaker:    breaker.New(cfg.Breaker),
	},
		quiz.WithOutcomes(reviews),
		quiz.WithMetrics(m),
		quiz.WithLogger(logger.Named("quiz")),
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     kv,
		Bank:      items,
		Reviews:   reviews,
		Catalog:   catalog,
		Registry:  reg,
		Metrics:   m,
		Lifecycle: lc,
		Service:   quiz.NewService(lc),
	}, nil
}

// Close flushes the logger and closes the store.
func (a *App) Close() error {
	_ = a.Logger.Sync()
	return a.Store.Close()
}

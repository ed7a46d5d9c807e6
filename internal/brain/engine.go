/*
Package brain is the decision engine.

For each query it normalizes the input to text, retrieves the best stored
record, and either answers from memory when the record is trusted enough or
runs fresh analysis and web search concurrently and merges the results. Every
answered query is handed to the learner so feedback can correct success rates
later and confident fresh analyses become new records.
*/
package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/learning"
	"github.com/khanglvm/smartfix/internal/metrics"
	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/search"
	"github.com/khanglvm/smartfix/internal/storage"
)

// Normalizer converts raw input to problem text.
type Normalizer interface {
	Normalize(ctx context.Context, in models.Input) (string, error)
}

// Analyzer produces a fresh diagnosis for a problem.
type Analyzer interface {
	GenerateAnalysis(ctx context.Context, text, deviceCategory string) (models.Analysis, error)
}

// WebSearcher looks up external pages about a problem.
type WebSearcher interface {
	SearchWeb(ctx context.Context, text string) ([]models.WebResult, error)
}

// Config holds the decision thresholds.
type Config struct {
	// ShortCircuitThreshold is the confidence a stored record must exceed to be
	// returned without fresh analysis.
	ShortCircuitThreshold float64

	// CombineThreshold is the confidence a stored record must exceed to stay the
	// primary answer after fresh analysis.
	CombineThreshold float64

	// PromoteThreshold is the fresh-analysis confidence required for promotion.
	PromoteThreshold float64

	CandidateLimit  int
	RelatedLimit    int
	AnalysisTimeout time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		ShortCircuitThreshold: 0.8,
		CombineThreshold:      0.6,
		PromoteThreshold:      learning.DefaultPromoteThreshold,
		CandidateLimit:        storage.DefaultCandidateLimit,
		RelatedLimit:          3,
		AnalysisTimeout:       30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ShortCircuitThreshold <= 0 {
		c.ShortCircuitThreshold = d.ShortCircuitThreshold
	}
	if c.CombineThreshold <= 0 {
		c.CombineThreshold = d.CombineThreshold
	}
	if c.PromoteThreshold <= 0 {
		c.PromoteThreshold = d.PromoteThreshold
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = d.CandidateLimit
	}
	if c.RelatedLimit < 0 {
		c.RelatedLimit = 0
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = d.AnalysisTimeout
	}
	return c
}

// Deps are the engine's collaborators. Only Store is required; a missing
// analyzer or web searcher behaves as a failing branch, and a missing index
// disables related-problem suggestions.
type Deps struct {
	Store       storage.KnowledgeStore
	Index       *search.Indexer
	Normalizer  Normalizer
	Analyzer    Analyzer
	WebSearcher WebSearcher
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Engine answers troubleshooting queries.
type Engine struct {
	cfg        Config
	store      storage.KnowledgeStore
	learner    *learning.Learner
	index      *search.Indexer
	normalizer Normalizer
	analyzer   Analyzer
	searcher   WebSearcher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	newID      func() string
}

// NewEngine creates an engine.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("knowledge store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	return &Engine{
		cfg:        cfg,
		store:      deps.Store,
		learner:    learning.NewLearner(deps.Store, cfg.PromoteThreshold, logger),
		index:      deps.Index,
		normalizer: deps.Normalizer,
		analyzer:   deps.Analyzer,
		searcher:   deps.WebSearcher,
		metrics:    deps.Metrics,
		logger:     logger,
		newID:      uuid.NewString,
	}, nil
}

// LoadIndex mirrors every stored record into the related-problems index.
func (e *Engine) LoadIndex(ctx context.Context) error {
	if e.index == nil {
		return nil
	}
	records, err := e.store.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load records for index: %w", err)
	}
	if err := e.index.IndexRecords(records); err != nil {
		return fmt.Errorf("failed to index records: %w", err)
	}
	e.logger.Info("related-problems index loaded", zap.Int("records", len(records)))
	return nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) indexRecord(rec models.ProblemRecord) {
	if e.index == nil {
		return
	}
	if err := e.index.IndexRecord(rec); err != nil {
		e.logger.Warn("failed to index record", zap.Int64("record_id", rec.ID), zap.Error(err))
	}
}

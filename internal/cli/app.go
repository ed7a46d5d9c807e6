/*
Package cli implements the smartfix commands.

Every command loads the configuration (default ~/.smartfix/config.yaml or
--config), opens the knowledge store, and builds the decision engine with
whichever model-backed collaborators have API keys configured.
*/
package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/brain"
	"github.com/khanglvm/smartfix/internal/config"
	"github.com/khanglvm/smartfix/internal/llm"
	"github.com/khanglvm/smartfix/internal/logging"
	"github.com/khanglvm/smartfix/internal/metrics"
	"github.com/khanglvm/smartfix/internal/normalize"
	"github.com/khanglvm/smartfix/internal/search"
	"github.com/khanglvm/smartfix/internal/storage"
	"github.com/khanglvm/smartfix/internal/websearch"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *storage.SQLiteStorage
	index   *search.Indexer
	metrics *metrics.Metrics
	engine  *brain.Engine
}

// loadConfig reads the configuration from path, or the default path when empty.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newApp wires storage, the index, the collaborators and the engine.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	dbPath, err := config.ExpandPath(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage path: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	a.store = storage.NewStorage(dbPath, logger)
	if err := a.store.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if cfg.Storage.Seed {
		if _, err := a.store.Seed(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to seed storage: %w", err)
		}
	}

	a.index, err = search.NewIndexer(logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}

	deps := brain.Deps{
		Store:   a.store,
		Index:   a.index,
		Metrics: a.metrics,
		Logger:  logger,
	}

	var transcriber normalize.Transcriber
	var reader normalize.ImageReader
	if client, err := newLLMClient(cfg, logger); err == nil {
		deps.Analyzer = client
		transcriber, reader = client, client
	} else if !errors.Is(err, llm.ErrNoAPIKey) {
		a.Close()
		return nil, err
	} else {
		logger.Info("openai api key not set, fresh analysis disabled")
	}
	deps.Normalizer = normalize.New(transcriber, reader, logger)

	if client, err := websearch.NewClient(websearch.Config{
		APIKey:   cfg.WebSearch.APIKey,
		Endpoint: cfg.WebSearch.Endpoint,
		Results:  cfg.WebSearch.Results,
		Timeout:  cfg.WebSearch.Timeout,
	}, logger); err == nil {
		deps.WebSearcher = client
	} else if !errors.Is(err, websearch.ErrNoAPIKey) {
		a.Close()
		return nil, fmt.Errorf("failed to create web search client: %w", err)
	} else {
		logger.Info("serpapi key not set, web search disabled")
	}

	a.engine, err = brain.NewEngine(brain.Config{
		ShortCircuitThreshold: cfg.Engine.ShortCircuitThreshold,
		CombineThreshold:      cfg.Engine.CombineThreshold,
		PromoteThreshold:      cfg.Engine.PromoteThreshold,
		CandidateLimit:        cfg.Engine.CandidateLimit,
		RelatedLimit:          cfg.Engine.RelatedLimit,
		AnalysisTimeout:       cfg.Engine.AnalysisTimeout,
	}, deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.engine.LoadIndex(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load search index: %w", err)
	}

	return a, nil
}

func newLLMClient(cfg *config.Config, logger *zap.Logger) (*llm.Client, error) {
	return llm.NewClient(llm.ClientConfig{
		APIKey:             cfg.OpenAI.APIKey,
		BaseURL:            cfg.OpenAI.BaseURL,
		ChatModel:          cfg.OpenAI.Model,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
		MaxRetries:         cfg.OpenAI.MaxRetries,
		RetryDelay:         cfg.OpenAI.RetryDelay,
		RequestsPerMinute:  cfg.OpenAI.RequestsPerMinute,
	}, logger)
}

// Close releases the index and the store.
func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("failed to close search index", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close storage", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/smartfix/internal/learning"
	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/search"
)

// Collaborator names used in logs and metrics.
const (
	collaboratorNormalize = "normalize"
	collaboratorAnalysis  = "analysis"
	collaboratorWebSearch = "websearch"
)

var (
	errEmptyQuery    = errors.New("empty query")
	errNoAnalyzer    = errors.New("no analyzer configured")
	errNoWebSearcher = errors.New("no web searcher configured")
)

// Process answers one query. It never returns an error: stage failures and
// panics become an error response with confidence 0.1.
func (e *Engine) Process(ctx context.Context, in models.Input) (resp Response) {
	start := time.Now()
	queryID := e.newID()
	queryText := strings.TrimSpace(in.Text)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while processing query",
				zap.String("query_id", queryID),
				zap.Any("panic", r),
			)
			resp = errorResponse(queryID, queryText, fmt.Errorf("panic: %v", r))
		}
		e.metrics.RecordDecision(resp.Source, time.Since(start))
	}()

	var err error
	resp, err = e.process(ctx, queryID, in)
	if err != nil {
		e.logger.Error("failed to process query",
			zap.String("query_id", queryID),
			zap.Error(err),
		)
		if resp.QueryText != "" {
			queryText = resp.QueryText
		}
		resp = errorResponse(queryID, queryText, err)
	}
	return resp
}

func (e *Engine) process(ctx context.Context, queryID string, in models.Input) (Response, error) {
	queryText := e.normalize(ctx, in)
	if queryText == "" {
		return Response{}, errEmptyQuery
	}

	candidates, err := e.store.FindCandidates(ctx, queryText, in.DeviceCategory, e.cfg.CandidateLimit)
	if err != nil {
		return Response{QueryText: queryText}, fmt.Errorf("failed to retrieve candidates: %w", err)
	}

	stored := e.selectBest(ctx, candidates)

	if stored != nil && stored.ConfidenceScore > e.cfg.ShortCircuitThreshold {
		resp := formatMemory(queryID, queryText, *stored)
		if err := e.learner.RecordQuery(ctx, resp.interaction(in)); err != nil {
			e.learningFailed(queryID, err)
		}
		resp.Related = e.related(queryText, in.DeviceCategory)
		return resp, nil
	}

	analysis, web := e.analyze(ctx, queryText, in.DeviceCategory)
	resp := combine(queryID, queryText, stored, analysis, web, e.cfg.CombineThreshold)

	e.learn(ctx, resp.interaction(in))
	resp.Related = e.related(queryText, in.DeviceCategory)
	return resp, nil
}

// normalize converts the input to text, falling back to the raw text on failure.
func (e *Engine) normalize(ctx context.Context, in models.Input) string {
	if e.normalizer == nil {
		return strings.TrimSpace(in.Text)
	}
	text, err := e.normalizer.Normalize(ctx, in)
	if err != nil {
		e.logger.Warn("normalization failed, using raw text",
			zap.String("input_type", in.Type),
			zap.Error(err),
		)
		e.metrics.RecordCollaboratorFailure(collaboratorNormalize)
		return strings.TrimSpace(in.Text)
	}
	return strings.TrimSpace(text)
}

// selectBest picks the best candidate and records its usage. The returned
// record reflects the incremented usage count when it can be re-read.
func (e *Engine) selectBest(ctx context.Context, candidates []models.ProblemRecord) *models.ProblemRecord {
	best, ok := search.Best(candidates)
	if !ok {
		return nil
	}

	if err := e.store.RecordUsage(ctx, best.ID); err != nil {
		e.logger.Warn("failed to record usage", zap.Int64("record_id", best.ID), zap.Error(err))
		return &best
	}
	if current, err := e.store.Get(ctx, best.ID); err == nil {
		best = current
	}
	return &best
}

// analyze runs fresh analysis and web search concurrently. Each branch
// degrades to a neutral value on failure without affecting the other.
func (e *Engine) analyze(ctx context.Context, text, deviceCategory string) (models.Analysis, []models.WebResult) {
	analysis := neutralAnalysis()
	web := []models.WebResult{}

	var g errgroup.Group

	g.Go(func() error {
		err := e.branch(ctx, collaboratorAnalysis, func(ctx context.Context) error {
			if e.analyzer == nil {
				return errNoAnalyzer
			}
			result, err := e.analyzer.GenerateAnalysis(ctx, text, deviceCategory)
			if err != nil {
				return err
			}
			analysis = result
			return nil
		})
		if err != nil {
			analysis = neutralAnalysis()
		}
		return nil
	})

	g.Go(func() error {
		err := e.branch(ctx, collaboratorWebSearch, func(ctx context.Context) error {
			if e.searcher == nil {
				return errNoWebSearcher
			}
			results, err := e.searcher.SearchWeb(ctx, text)
			if err != nil {
				return err
			}
			web = results
			return nil
		})
		if err != nil {
			web = []models.WebResult{}
		}
		return nil
	})

	_ = g.Wait()

	if strings.TrimSpace(analysis.Issue) == "" {
		analysis.Issue = unknownIssue
	}
	analysis.ConfidenceScore = models.ClampScore(analysis.ConfidenceScore)
	return analysis, web
}

// branch runs one collaborator call under the analysis timeout, converting
// errors and panics into a logged, counted failure.
func (e *Engine) branch(ctx context.Context, name string, call func(ctx context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.AnalysisTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			e.logger.Warn("collaborator failed", zap.String("collaborator", name), zap.Error(err))
			e.metrics.RecordCollaboratorFailure(name)
		}
	}()

	return call(ctx)
}

// learn records the interaction and indexes any promoted record. Failures are
// logged and never change the response.
func (e *Engine) learn(ctx context.Context, it learning.Interaction) {
	result, err := e.learner.Learn(ctx, it)
	if err != nil {
		e.learningFailed(it.QueryID, err)
		return
	}
	if result.Promoted != nil {
		e.metrics.RecordPromotion()
		e.indexRecord(*result.Promoted)
	}
}

func (e *Engine) learningFailed(queryID string, err error) {
	e.logger.Error("failed to learn from interaction",
		zap.String("query_id", queryID),
		zap.Error(err),
	)
	e.metrics.RecordLearningFailure()
}

func (e *Engine) related(text, deviceCategory string) []search.RelatedResult {
	if e.index == nil || e.cfg.RelatedLimit == 0 {
		return nil
	}
	hits, err := e.index.Related(text, deviceCategory, e.cfg.RelatedLimit)
	if err != nil {
		e.logger.Warn("related-problems lookup failed", zap.Error(err))
		return nil
	}
	return hits
}

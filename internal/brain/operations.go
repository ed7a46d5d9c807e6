package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/learning"
	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/search"
)

// Search returns the ranked stored records for a query without recording usage.
func (e *Engine) Search(ctx context.Context, query, deviceCategory string) ([]models.ProblemRecord, error) {
	records, err := e.store.FindCandidates(ctx, strings.TrimSpace(query), deviceCategory, e.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return records, nil
}

// Related returns BM25 hits for a query from the related-problems index.
func (e *Engine) Related(query, deviceCategory string, limit int) ([]search.RelatedResult, error) {
	if e.index == nil {
		return []search.RelatedResult{}, nil
	}
	return e.index.Related(strings.TrimSpace(query), deviceCategory, limit)
}

// AddRecord stores a record, replacing any record with the same problem text,
// and returns its id.
func (e *Engine) AddRecord(ctx context.Context, rec models.ProblemRecord) (int64, error) {
	id, err := e.store.Upsert(ctx, rec)
	if err != nil {
		return 0, err
	}

	stored, err := e.store.Get(ctx, id)
	if err != nil {
		e.logger.Warn("failed to read stored record for indexing", zap.Int64("record_id", id), zap.Error(err))
		return id, nil
	}
	e.indexRecord(stored)

	e.logger.Info("record stored",
		zap.Int64("record_id", id),
		zap.String("problem_text", stored.ProblemText),
	)
	return id, nil
}

// Records returns every stored record ordered by id.
func (e *Engine) Records(ctx context.Context) ([]models.ProblemRecord, error) {
	return e.store.All(ctx)
}

// Stats returns aggregate counters over the store.
func (e *Engine) Stats(ctx context.Context) (models.Stats, error) {
	return e.store.Stats(ctx)
}

// SubmitFeedback records the true outcome of a processed query.
// Duplicate submissions return learning.ErrFeedbackRecorded.
func (e *Engine) SubmitFeedback(ctx context.Context, queryID string, success bool, score *int) (learning.FeedbackResult, error) {
	result, err := e.learner.SubmitFeedback(ctx, strings.TrimSpace(queryID), success, score)

	switch {
	case errors.Is(err, learning.ErrFeedbackRecorded):
		e.metrics.RecordFeedback(learning.FeedbackDuplicate)
	case err != nil:
	case result.Status == learning.FeedbackUnknownQuery:
		e.metrics.RecordFeedback(learning.FeedbackUnknownQuery)
	case success:
		e.metrics.RecordFeedback("success")
	default:
		e.metrics.RecordFeedback("failure")
	}
	return result, err
}

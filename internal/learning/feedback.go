package learning

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/storage"
)

// Feedback statuses.
const (
	FeedbackRecorded     = "recorded"
	FeedbackUnknownQuery = "unknown_query"
	FeedbackDuplicate    = "duplicate"
)

// FeedbackResult reports the effect of a feedback submission.
type FeedbackResult struct {
	QueryID string `json:"query_id"`
	Status  string `json:"status"`

	// RecordID is the record the feedback applied to, nil for fresh-analysis answers.
	RecordID *int64 `json:"record_id,omitempty"`

	// SuccessRate is the record's recomputed success rate.
	SuccessRate *float64 `json:"success_rate,omitempty"`
}

// SubmitFeedback records the true outcome of a processed query.
//
// Feedback is accepted at most once per query id; a second submission returns
// ErrFeedbackRecorded. An unknown query id is a no-op. When the query resolved
// to a stored record, a corrected learning event is appended and the record's
// success rate is recomputed.
func (l *Learner) SubmitFeedback(ctx context.Context, queryID string, success bool, score *int) (FeedbackResult, error) {
	result := FeedbackResult{QueryID: queryID}

	if score != nil && (*score < 1 || *score > 5) {
		return result, ErrInvalidScore
	}

	query, err := l.store.GetQuery(ctx, queryID)
	if errors.Is(err, storage.ErrNotFound) {
		l.logger.Info("feedback for unknown query", zap.String("query_id", queryID))
		result.Status = FeedbackUnknownQuery
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("failed to look up query: %w", err)
	}

	marked, err := l.store.MarkFeedback(ctx, queryID, l.now())
	if err != nil {
		return result, fmt.Errorf("failed to mark feedback: %w", err)
	}
	if !marked {
		result.Status = FeedbackDuplicate
		return result, ErrFeedbackRecorded
	}

	if _, err := l.store.AppendLearningEvent(ctx, models.LearningEvent{
		QueryText:         query.QueryText,
		MatchedRecordID:   query.MatchedRecordID,
		SolutionUsed:      "feedback",
		Success:           success,
		UserFeedbackScore: score,
	}); err != nil {
		return result, fmt.Errorf("failed to append feedback event: %w", err)
	}

	result.Status = FeedbackRecorded
	if query.MatchedRecordID == nil {
		return result, nil
	}

	rate, err := l.store.RecomputeSuccessRate(ctx, *query.MatchedRecordID)
	if err != nil {
		return result, fmt.Errorf("failed to recompute success rate: %w", err)
	}
	result.RecordID = query.MatchedRecordID
	result.SuccessRate = &rate

	l.logger.Info("feedback recorded",
		zap.String("query_id", queryID),
		zap.Int64("record_id", *query.MatchedRecordID),
		zap.Bool("success", success),
		zap.Float64("success_rate", rate),
	)
	return result, nil
}

package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/storage"
)

const (
	// DefaultPromoteThreshold is the fresh-analysis confidence a result must exceed to be promoted.
	DefaultPromoteThreshold = 0.7

	// PromotedSuccessPrior is the neutral success rate given to promoted records.
	PromotedSuccessPrior = 0.5
)

var (
	// ErrFeedbackRecorded is returned when feedback for a query was already accepted.
	ErrFeedbackRecorded = errors.New("feedback already recorded for query")

	// ErrInvalidScore is returned for a feedback score outside 1..5.
	ErrInvalidScore = errors.New("feedback score must be between 1 and 5")
)

// Learner writes interaction outcomes and feedback into the knowledge store.
type Learner struct {
	store            storage.KnowledgeStore
	logger           *zap.Logger
	promoteThreshold float64
	now              func() time.Time
}

// NewLearner creates a learner. A threshold outside (0,1] falls back to DefaultPromoteThreshold.
func NewLearner(store storage.KnowledgeStore, promoteThreshold float64, logger *zap.Logger) *Learner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if promoteThreshold <= 0 || promoteThreshold > 1 {
		promoteThreshold = DefaultPromoteThreshold
	}
	return &Learner{
		store:            store,
		logger:           logger,
		promoteThreshold: promoteThreshold,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// LearnResult reports what Learn wrote.
type LearnResult struct {
	EventID int64

	// Promoted is the stored record when the interaction was promoted.
	Promoted *models.ProblemRecord
}

// RecordQuery logs an answered query so later feedback can find it.
func (l *Learner) RecordQuery(ctx context.Context, in Interaction) error {
	if err := l.store.SaveQuery(ctx, in.queryRecord()); err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	return nil
}

// Learn logs the query, appends an optimistic learning event and, when a fresh
// analysis was the primary answer with confidence above the threshold, promotes
// it into a new record.
func (l *Learner) Learn(ctx context.Context, in Interaction) (LearnResult, error) {
	var result LearnResult

	if err := l.RecordQuery(ctx, in); err != nil {
		return result, err
	}

	eventID, err := l.store.AppendLearningEvent(ctx, in.interactionEvent())
	if err != nil {
		return result, fmt.Errorf("failed to append learning event: %w", err)
	}
	result.EventID = eventID

	if in.MatchedRecordID != nil {
		if _, err := l.store.RecomputeSuccessRate(ctx, *in.MatchedRecordID); err != nil {
			return result, fmt.Errorf("failed to recompute success rate: %w", err)
		}
	}

	if !l.shouldPromote(in) {
		return result, nil
	}

	rec := in.promotedRecord()
	id, err := l.store.Upsert(ctx, rec)
	if err != nil {
		return result, fmt.Errorf("failed to promote analysis: %w", err)
	}

	promoted, err := l.store.Get(ctx, id)
	if err != nil {
		return result, fmt.Errorf("failed to read promoted record: %w", err)
	}
	result.Promoted = &promoted

	l.logger.Info("promoted fresh analysis",
		zap.Int64("record_id", id),
		zap.String("issue", rec.ProblemText),
		zap.Float64("confidence", rec.ConfidenceScore),
	)
	return result, nil
}

func (l *Learner) shouldPromote(in Interaction) bool {
	if in.Source != SourceFreshAnalysis {
		return false
	}
	if in.Confidence <= l.promoteThreshold {
		return false
	}
	return strings.TrimSpace(in.Issue) != "" && len(in.Steps) > 0
}

package storage

import (
	"context"
	"fmt"

	"github.com/khanglvm/smartfix/internal/models"
)

// Stats returns aggregate counters over records, learning events and queries.
func (s *SQLiteStorage) Stats(ctx context.Context) (models.Stats, error) {
	db, err := s.handle()
	if err != nil {
		return models.Stats{}, err
	}

	var stats models.Stats

	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(confidence_score), 0.0), COALESCE(AVG(success_rate), 0.0)
		FROM problems
	`).Scan(&stats.TotalProblems, &stats.AverageConfidence, &stats.AverageSuccessRate); err != nil {
		return models.Stats{}, fmt.Errorf("failed to aggregate problems: %w", err)
	}

	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0)
		FROM learning_events
	`).Scan(&stats.TotalLearningEvents, &stats.SuccessfulLearningEvents); err != nil {
		return models.Stats{}, fmt.Errorf("failed to aggregate learning events: %w", err)
	}

	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(feedback_at)
		FROM queries
	`).Scan(&stats.TotalQueries, &stats.QueriesWithFeedback); err != nil {
		return models.Stats{}, fmt.Errorf("failed to aggregate queries: %w", err)
	}

	if stats.TotalLearningEvents > 0 {
		stats.LearningSuccessRate = float64(stats.SuccessfulLearningEvents) / float64(stats.TotalLearningEvents) * 100
	}
	return stats, nil
}

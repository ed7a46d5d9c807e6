package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/khanglvm/smartfix/internal/models"
)

// AppendLearningEvent appends an event and returns its id.
// created_at defaults to now when zero.
func (s *SQLiteStorage) AppendLearningEvent(ctx context.Context, event models.LearningEvent) (int64, error) {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	success := 0
	if event.Success {
		success = 1
	}

	var matched, score any
	if event.MatchedRecordID != nil {
		matched = *event.MatchedRecordID
	}
	if event.UserFeedbackScore != nil {
		score = *event.UserFeedbackScore
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_events (query_text, matched_record_id, solution_used, success, user_feedback_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.QueryText, matched, event.SolutionUsed, success, score, formatTime(createdAt))
	if err != nil {
		return 0, fmt.Errorf("failed to append learning event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read learning event id: %w", err)
	}
	return id, nil
}

// RecomputeSuccessRate recomputes success_rate as successful/total over every
// event referencing the record. A record without events keeps its prior.
func (s *SQLiteStorage) RecomputeSuccessRate(ctx context.Context, recordID int64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current float64
	err = tx.QueryRowContext(ctx, "SELECT success_rate FROM problems WHERE id = ?", recordID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("record %d: %w", recordID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read record %d: %w", recordID, err)
	}

	var total, successful int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0)
		FROM learning_events
		WHERE matched_record_id = ?
	`, recordID).Scan(&total, &successful); err != nil {
		return 0, fmt.Errorf("failed to count learning events: %w", err)
	}

	if total == 0 {
		return current, nil
	}

	rate := models.ClampScore(float64(successful) / float64(total))
	if _, err := tx.ExecContext(ctx,
		"UPDATE problems SET success_rate = ?, updated_at = ? WHERE id = ?",
		rate, formatTime(s.now()), recordID,
	); err != nil {
		return 0, fmt.Errorf("failed to update success rate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit success rate: %w", err)
	}
	return rate, nil
}

// LearningEvents returns the events referencing a record, oldest first.
func (s *SQLiteStorage) LearningEvents(ctx context.Context, recordID int64) ([]models.LearningEvent, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, query_text, matched_record_id, solution_used, success, user_feedback_score, created_at
		FROM learning_events
		WHERE matched_record_id = ?
		ORDER BY id
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning events: %w", err)
	}
	defer rows.Close()

	events := []models.LearningEvent{}
	for rows.Next() {
		var (
			event     models.LearningEvent
			matched   sql.NullInt64
			score     sql.NullInt64
			success   int
			createdAt string
		)
		if err := rows.Scan(&event.ID, &event.QueryText, &matched, &event.SolutionUsed, &success, &score, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan learning event: %w", err)
		}

		event.Success = success == 1
		if matched.Valid {
			event.MatchedRecordID = models.Int64Ptr(matched.Int64)
		}
		if score.Valid {
			v := int(score.Int64)
			event.UserFeedbackScore = &v
		}
		if event.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("bad created_at for event %d: %w", event.ID, err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

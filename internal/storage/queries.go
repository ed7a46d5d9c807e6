package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/khanglvm/smartfix/internal/models"
)

// SaveQuery stores a processed query. created_at defaults to now when zero.
func (s *SQLiteStorage) SaveQuery(ctx context.Context, q models.QueryRecord) error {
	if q.QueryID == "" {
		return fmt.Errorf("%w: query_id is required", ErrInvalidRecord)
	}
	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	inputType := q.InputType
	if inputType == "" {
		inputType = "text"
	}

	var matched any
	if q.MatchedRecordID != nil {
		matched = *q.MatchedRecordID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO queries (query_id, query_text, input_type, device_category, source, matched_record_id, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, q.QueryID, q.QueryText, inputType, q.DeviceCategory, q.Source, matched, q.Confidence, formatTime(createdAt)); err != nil {
		return fmt.Errorf("failed to save query: %w", err)
	}
	return nil
}

// GetQuery returns a processed query by id.
func (s *SQLiteStorage) GetQuery(ctx context.Context, queryID string) (models.QueryRecord, error) {
	db, err := s.handle()
	if err != nil {
		return models.QueryRecord{}, err
	}

	var (
		q          models.QueryRecord
		matched    sql.NullInt64
		createdAt  string
		feedbackAt sql.NullString
	)
	err = db.QueryRowContext(ctx, `
		SELECT query_id, query_text, input_type, device_category, source, matched_record_id, confidence, created_at, feedback_at
		FROM queries
		WHERE query_id = ?
	`, queryID).Scan(&q.QueryID, &q.QueryText, &q.InputType, &q.DeviceCategory, &q.Source, &matched, &q.Confidence, &createdAt, &feedbackAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.QueryRecord{}, fmt.Errorf("query %s: %w", queryID, ErrNotFound)
	}
	if err != nil {
		return models.QueryRecord{}, fmt.Errorf("failed to get query %s: %w", queryID, err)
	}

	if matched.Valid {
		q.MatchedRecordID = models.Int64Ptr(matched.Int64)
	}
	if q.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.QueryRecord{}, fmt.Errorf("bad created_at for query %s: %w", queryID, err)
	}
	if q.FeedbackAt, err = parseNullTime(feedbackAt); err != nil {
		return models.QueryRecord{}, fmt.Errorf("bad feedback_at for query %s: %w", queryID, err)
	}
	return q, nil
}

// MarkFeedback sets feedback_at if it is not set yet.
// It returns false when the query already had feedback, and ErrNotFound for an unknown query.
func (s *SQLiteStorage) MarkFeedback(ctx context.Context, queryID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE queries SET feedback_at = ? WHERE query_id = ? AND feedback_at IS NULL",
		formatTime(at), queryID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark feedback: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark feedback: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM queries WHERE query_id = ?", queryID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("query %s: %w", queryID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up query %s: %w", queryID, err)
	}
	return false, nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/models"
	"github.com/khanglvm/smartfix/internal/search"
)

const recordColumns = `id, fingerprint, problem_text, symptoms, problem_type, device_category,
	error_codes, solution_steps, confidence_score, success_rate, usage_count,
	last_used, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Validate checks the fields a record needs before it can be stored.
func Validate(rec models.ProblemRecord) error {
	if strings.TrimSpace(rec.ProblemText) == "" {
		return fmt.Errorf("%w: problem_text is required", ErrInvalidRecord)
	}
	if len(rec.SolutionSteps) == 0 {
		return fmt.Errorf("%w: at least one solution step is required", ErrInvalidRecord)
	}
	return nil
}

// recordArgs prepares the column values shared by the insert statements.
func (s *SQLiteStorage) recordArgs(rec models.ProblemRecord) ([]any, error) {
	if err := Validate(rec); err != nil {
		return nil, err
	}

	errorCodes := rec.ErrorCodes
	if errorCodes == nil {
		errorCodes = []string{}
	}
	codesJSON, err := json.Marshal(errorCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode error codes: %w", err)
	}
	stepsJSON, err := json.Marshal(rec.SolutionSteps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode solution steps: %w", err)
	}

	now := formatTime(s.now())
	var lastUsed any
	if rec.LastUsed != nil {
		lastUsed = formatTime(*rec.LastUsed)
	}

	return []any{
		models.Fingerprint(rec.ProblemText),
		strings.TrimSpace(rec.ProblemText),
		rec.Symptoms,
		rec.ProblemType,
		rec.DeviceCategory,
		string(codesJSON),
		string(stepsJSON),
		models.ClampScore(rec.ConfidenceScore),
		models.ClampScore(rec.SuccessRate),
		rec.UsageCount,
		lastUsed,
		now,
		now,
	}, nil
}

// Upsert inserts a record or fully replaces the record with the same fingerprint.
// The existing id and created_at are kept.
func (s *SQLiteStorage) Upsert(ctx context.Context, rec models.ProblemRecord) (int64, error) {
	args, err := s.recordArgs(rec)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO problems (fingerprint, problem_text, symptoms, problem_type, device_category,
			error_codes, solution_steps, confidence_score, success_rate, usage_count,
			last_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			problem_text = excluded.problem_text,
			symptoms = excluded.symptoms,
			problem_type = excluded.problem_type,
			device_category = excluded.device_category,
			error_codes = excluded.error_codes,
			solution_steps = excluded.solution_steps,
			confidence_score = excluded.confidence_score,
			success_rate = excluded.success_rate,
			usage_count = excluded.usage_count,
			last_used = excluded.last_used,
			updated_at = excluded.updated_at
		RETURNING id
	`

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert record: %w", err)
	}
	return id, nil
}

// InsertIfAbsent inserts the record unless its fingerprint is already stored.
// It returns the id of the stored record and whether this call inserted it.
func (s *SQLiteStorage) InsertIfAbsent(ctx context.Context, rec models.ProblemRecord) (int64, bool, error) {
	args, err := s.recordArgs(rec)
	if err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return 0, false, err
	}

	query := `
		INSERT INTO problems (fingerprint, problem_text, symptoms, problem_type, device_category,
			error_codes, solution_steps, confidence_score, success_rate, usage_count,
			last_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
		RETURNING id
	`

	var id int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to insert record: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT id FROM problems WHERE fingerprint = ?", args[0]).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("failed to look up existing record: %w", err)
	}
	return id, false, nil
}

// Get returns a record by id.
func (s *SQLiteStorage) Get(ctx context.Context, id int64) (models.ProblemRecord, error) {
	db, err := s.handle()
	if err != nil {
		return models.ProblemRecord{}, err
	}

	row := db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM problems WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProblemRecord{}, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.ProblemRecord{}, fmt.Errorf("failed to get record %d: %w", id, err)
	}
	return rec, nil
}

// All returns every record ordered by id.
func (s *SQLiteStorage) All(ctx context.Context) ([]models.ProblemRecord, error) {
	return s.queryRecords(ctx, "SELECT "+recordColumns+" FROM problems ORDER BY id")
}

// FindCandidates returns up to limit records whose problem text or symptoms
// contain at least one query token, restricted to deviceCategory when set.
// A query without qualifying tokens matches every record in the category.
// Results are in ranked-list order.
func (s *SQLiteStorage) FindCandidates(ctx context.Context, query, deviceCategory string, limit int) ([]models.ProblemRecord, error) {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	category := strings.TrimSpace(deviceCategory)
	var (
		records []models.ProblemRecord
		err     error
	)
	if category == "" {
		records, err = s.queryRecords(ctx, "SELECT "+recordColumns+" FROM problems")
	} else {
		records, err = s.queryRecords(ctx,
			"SELECT "+recordColumns+" FROM problems WHERE device_category = ? COLLATE NOCASE", category)
	}
	if err != nil {
		return nil, err
	}

	tokens := search.Tokenize(query)
	matched := records[:0]
	for _, rec := range records {
		if search.Matches(tokens, rec) {
			matched = append(matched, rec)
		}
	}

	ranked := search.RankList(query, matched)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// RecordUsage increments usage_count and sets last_used to now.
// An unknown id is logged and ignored.
func (s *SQLiteStorage) RecordUsage(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}

	now := formatTime(s.now())
	result, err := s.db.ExecContext(ctx, `
		UPDATE problems
		SET usage_count = usage_count + 1, last_used = ?, updated_at = ?
		WHERE id = ?
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to record usage for %d: %w", id, err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		s.logger.Warn("record usage for unknown record", zap.Int64("record_id", id))
	}
	return nil
}

func (s *SQLiteStorage) queryRecords(ctx context.Context, query string, args ...any) ([]models.ProblemRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.ProblemRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

func scanRecord(row rowScanner) (models.ProblemRecord, error) {
	var (
		rec                  models.ProblemRecord
		codesJSON, stepsJSON string
		lastUsed             sql.NullString
		createdAt, updatedAt string
	)

	if err := row.Scan(
		&rec.ID,
		&rec.Fingerprint,
		&rec.ProblemText,
		&rec.Symptoms,
		&rec.ProblemType,
		&rec.DeviceCategory,
		&codesJSON,
		&stepsJSON,
		&rec.ConfidenceScore,
		&rec.SuccessRate,
		&rec.UsageCount,
		&lastUsed,
		&createdAt,
		&updatedAt,
	); err != nil {
		return models.ProblemRecord{}, err
	}

	if err := json.Unmarshal([]byte(codesJSON), &rec.ErrorCodes); err != nil {
		return models.ProblemRecord{}, fmt.Errorf("bad error_codes for record %d: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(stepsJSON), &rec.SolutionSteps); err != nil {
		return models.ProblemRecord{}, fmt.Errorf("bad solution_steps for record %d: %w", rec.ID, err)
	}

	var err error
	if rec.LastUsed, err = parseNullTime(lastUsed); err != nil {
		return models.ProblemRecord{}, fmt.Errorf("bad last_used for record %d: %w", rec.ID, err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.ProblemRecord{}, fmt.Errorf("bad created_at for record %d: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.ProblemRecord{}, fmt.Errorf("bad updated_at for record %d: %w", rec.ID, err)
	}

	return rec, nil
}

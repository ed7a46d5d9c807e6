/*
Package storage implements the persistent knowledge store.

It keeps problem records keyed by fingerprint, the append-only log of learning
events, and the query log used to route feedback. The database is a single
SQLite file opened through modernc.org/sqlite (a pure Go, CGo-free
implementation). Writes are serialized by a mutex; every record mutation is a
single statement or transaction so readers never see a half-updated record.
*/
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/khanglvm/smartfix/internal/models"
)

var (
	// ErrNotFound is returned when a record or query does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when the store is used before Init or after Close.
	ErrClosed = errors.New("storage is closed")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("invalid record")
)

// DefaultCandidateLimit caps FindCandidates when no positive limit is given.
const DefaultCandidateLimit = 5

// KnowledgeStore defines the persistent operations used by the engine and learner.
type KnowledgeStore interface {
	// Init opens the database and runs migrations.
	Init() error

	// Upsert inserts a record or fully replaces the one with the same fingerprint, keeping its id.
	Upsert(ctx context.Context, rec models.ProblemRecord) (int64, error)

	// InsertIfAbsent inserts a record unless its fingerprint exists. Reports whether it inserted.
	InsertIfAbsent(ctx context.Context, rec models.ProblemRecord) (int64, bool, error)

	// Get returns a record by id.
	Get(ctx context.Context, id int64) (models.ProblemRecord, error)

	// FindCandidates returns ranked records sharing a token with the query.
	FindCandidates(ctx context.Context, query, deviceCategory string, limit int) ([]models.ProblemRecord, error)

	// All returns every record ordered by id.
	All(ctx context.Context) ([]models.ProblemRecord, error)

	// RecordUsage increments usage_count and sets last_used. Unknown ids are logged and ignored.
	RecordUsage(ctx context.Context, id int64) error

	// AppendLearningEvent appends an immutable learning event.
	AppendLearningEvent(ctx context.Context, event models.LearningEvent) (int64, error)

	// RecomputeSuccessRate sets success_rate to successful/total over the record's events.
	RecomputeSuccessRate(ctx context.Context, recordID int64) (float64, error)

	// LearningEvents returns the events referencing a record, oldest first.
	LearningEvents(ctx context.Context, recordID int64) ([]models.LearningEvent, error)

	// SaveQuery stores a processed query.
	SaveQuery(ctx context.Context, q models.QueryRecord) error

	// GetQuery returns a processed query by id.
	GetQuery(ctx context.Context, queryID string) (models.QueryRecord, error)

	// MarkFeedback sets feedback_at once. Reports false if feedback was already recorded.
	MarkFeedback(ctx context.Context, queryID string, at time.Time) (bool, error)

	// Stats returns aggregate counters.
	Stats(ctx context.Context) (models.Stats, error)

	// Close closes the database connection.
	Close() error
}

// SQLiteStorage implements KnowledgeStore using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	logger   *zap.Logger
	mu       sync.Mutex
	initOnce sync.Once
	now      func() time.Time
}

// NewStorage creates a store backed by the database file at dbPath.
// The file and its directory are created on Init.
func NewStorage(dbPath string, logger *zap.Logger) *SQLiteStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStorage{
		dbPath: dbPath,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Init opens the database and runs migrations. Safe to call more than once.
func (s *SQLiteStorage) Init() error {
	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			return
		}

		dsn := s.dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			return
		}
		// One connection: SQLite allows a single writer and the mutex already serializes writes.
		db.SetMaxOpenConns(1)

		if err := db.Ping(); err != nil {
			db.Close()
			initErr = fmt.Errorf("failed to ping database: %w", err)
			return
		}
		s.db = db

		if err := s.runMigrations(); err != nil {
			db.Close()
			s.db = nil
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			return
		}

		s.logger.Info("knowledge store ready", zap.String("path", s.dbPath))
	})

	if initErr != nil {
		return initErr
	}
	_, err := s.handle()
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil
	return nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// ready reports ErrClosed once the store is closed. Callers hold s.mu.
func (s *SQLiteStorage) ready() error {
	if s.db == nil {
		return ErrClosed
	}
	return nil
}

// handle returns the open database for read paths that do not hold s.mu.
func (s *SQLiteStorage) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var _ KnowledgeStore = (*SQLiteStorage)(nil)

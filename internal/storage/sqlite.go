package storage

import (
	"fmt"

	"go.uber.org/zap"
)

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// runMigrations executes database schema migrations in order.
func (s *SQLiteStorage) runMigrations() error {
	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "knowledge_schema", up: s.migration001KnowledgeSchema},
		{version: 2, name: "query_log", up: s.migration002QueryLog},
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		s.logger.Info("running migration", zap.Int("version", m.version), zap.String("name", m.name))
		if err := m.up(); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if err := s.setMigrationVersion(m.version, m.name); err != nil {
			return err
		}
	}

	return nil
}

// createMigrationsTable creates the schema_migrations table.
func (s *SQLiteStorage) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// getCurrentMigrationVersion returns the highest applied migration version.
func (s *SQLiteStorage) getCurrentMigrationVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// setMigrationVersion records a migration as applied.
func (s *SQLiteStorage) setMigrationVersion(version int, name string) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// migration001KnowledgeSchema creates the problem and learning event tables.
func (s *SQLiteStorage) migration001KnowledgeSchema() error {
	statements := []struct {
		what string
		sql  string
	}{
		{"problems table", `
			CREATE TABLE IF NOT EXISTS problems (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				fingerprint TEXT NOT NULL UNIQUE,
				problem_text TEXT NOT NULL,
				symptoms TEXT NOT NULL DEFAULT '',
				problem_type TEXT NOT NULL DEFAULT '',
				device_category TEXT NOT NULL DEFAULT '',
				error_codes TEXT NOT NULL DEFAULT '[]',
				solution_steps TEXT NOT NULL,
				confidence_score REAL NOT NULL DEFAULT 0 CHECK (confidence_score BETWEEN 0 AND 1),
				success_rate REAL NOT NULL DEFAULT 0 CHECK (success_rate BETWEEN 0 AND 1),
				usage_count INTEGER NOT NULL DEFAULT 0,
				last_used TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`},
		{"problems category index", `CREATE INDEX IF NOT EXISTS idx_problems_category ON problems(device_category COLLATE NOCASE)`},
		{"problems type index", `CREATE INDEX IF NOT EXISTS idx_problems_type ON problems(problem_type)`},
		{"learning_events table", `
			CREATE TABLE IF NOT EXISTS learning_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				query_text TEXT NOT NULL,
				matched_record_id INTEGER REFERENCES problems(id),
				solution_used TEXT NOT NULL DEFAULT '',
				success INTEGER NOT NULL,
				user_feedback_score INTEGER,
				created_at TEXT NOT NULL
			)`},
		{"learning_events record index", `CREATE INDEX IF NOT EXISTS idx_learning_events_record ON learning_events(matched_record_id)`},
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.what, err)
		}
	}
	return nil
}

// migration002QueryLog creates the processed query log used to route feedback.
func (s *SQLiteStorage) migration002QueryLog() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS queries (
			query_id TEXT PRIMARY KEY,
			query_text TEXT NOT NULL,
			input_type TEXT NOT NULL DEFAULT 'text',
			device_category TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			matched_record_id INTEGER REFERENCES problems(id),
			confidence REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			feedback_at TEXT
		)
	`); err != nil {
		return fmt.Errorf("failed to create queries table: %w", err)
	}

	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_queries_created ON queries(created_at DESC)`); err != nil {
		return fmt.Errorf("failed to create queries created index: %w", err)
	}
	return nil
}

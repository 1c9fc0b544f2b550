// Package store provides SQLite-backed persistence for levelset.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the schema revision written by this build.
const SchemaVersion = 1

var (
	// ErrTaskNotFound indicates the task is missing, soft-deleted or already completed.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNotFound indicates a non-task row (checklist, item, quest step) is missing.
	ErrNotFound = errors.New("not found")

	// ErrSchemaMismatch indicates the database was written by a newer schema.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

// Store provides access to the levelset SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection also
	// serializes every transaction issued by this process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SchemaVersion returns the schema revision recorded in the meta table.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	return v, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 3,
	xp INTEGER NOT NULL DEFAULT 0,
	coins INTEGER NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1,
	category_id TEXT REFERENCES categories(id),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS task_completions (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL UNIQUE REFERENCES tasks(id),
	xp_awarded INTEGER NOT NULL,
	coins_awarded INTEGER NOT NULL,
	quality TEXT NOT NULL DEFAULT '',
	completed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS player_stats (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	xp INTEGER NOT NULL DEFAULT 0,
	coins INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO player_stats (id, xp, coins) VALUES (1, 0, 0);

CREATE TABLE IF NOT EXISTS quest_lines (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	completed_by TEXT,
	created_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS quest_steps (
	id TEXT PRIMARY KEY,
	quest_id TEXT NOT NULL REFERENCES quest_lines(id),
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	completed_by TEXT,
	completed_at DATETIME,
	UNIQUE (quest_id, position)
);

CREATE TABLE IF NOT EXISTS quest_step_tasks (
	step_id TEXT NOT NULL REFERENCES quest_steps(id),
	task_id TEXT NOT NULL REFERENCES tasks(id),
	PRIMARY KEY (step_id, task_id)
);

CREATE TABLE IF NOT EXISTS checklists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS checklist_items (
	id TEXT PRIMARY KEY,
	checklist_id TEXT NOT NULL REFERENCES checklists(id),
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	UNIQUE (checklist_id, position)
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	mood INTEGER NOT NULL DEFAULT 3,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_active ON tasks(active);
CREATE INDEX IF NOT EXISTS idx_quest_steps_quest_id ON quest_steps(quest_id);
CREATE INDEX IF NOT EXISTS idx_quest_step_tasks_task_id ON quest_step_tasks(task_id);
CREATE INDEX IF NOT EXISTS idx_checklist_items_checklist_id ON checklist_items(checklist_id);

-- A step is done once every task linked to it has a completion record.
CREATE TRIGGER IF NOT EXISTS trg_completion_closes_steps
AFTER INSERT ON task_completions
BEGIN
	UPDATE quest_steps
	SET status = 'done', completed_by = NEW.id, completed_at = NEW.completed_at
	WHERE status = 'open'
	  AND id IN (SELECT step_id FROM quest_step_tasks WHERE task_id = NEW.task_id)
	  AND NOT EXISTS (
		SELECT 1 FROM quest_step_tasks l
		WHERE l.step_id = quest_steps.id
		  AND NOT EXISTS (SELECT 1 FROM task_completions c WHERE c.task_id = l.task_id)
	  );
END;

-- A quest is done once every one of its steps is done.
CREATE TRIGGER IF NOT EXISTS trg_step_closes_quest
AFTER UPDATE OF status ON quest_steps
WHEN NEW.status = 'done' AND OLD.status = 'open'
BEGIN
	UPDATE quest_lines
	SET status = 'done', completed_by = NEW.completed_by, completed_at = NEW.completed_at
	WHERE id = NEW.quest_id
	  AND status = 'open'
	  AND NOT EXISTS (SELECT 1 FROM quest_steps s WHERE s.quest_id = NEW.quest_id AND s.status <> 'done');
END;
`

// migrate runs idempotent schema migrations and records the schema version.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	current, err := s.SchemaVersion(context.Background())
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("%w: database has version %d, binary supports %d", ErrSchemaMismatch, current, SchemaVersion)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(SchemaVersion),
	)
	return err
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// countedTables lists the tables reported by Counts.
var countedTables = []string{
	"tasks", "task_completions", "quest_lines", "quest_steps", "quest_step_tasks",
	"checklists", "checklist_items", "journal_entries", "categories",
}

// Counts returns the row count of every domain table.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(countedTables))
	for _, table := range countedTables {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

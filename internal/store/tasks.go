package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/git6keen/Levelset-sub001/internal/models"
	"github.com/google/uuid"
)

// TaskInput holds the normalized fields of a new task.
type TaskInput struct {
	Title       string
	Description string
	Priority    int
	XP          int
	Coins       int
	// Category is resolved by name and created on first use. Empty means none.
	Category string
}

const taskColumns = `id, title, description, priority, xp, coins, active, category_id, created_at, updated_at`

func scanTask(s scanner) (*models.Task, error) {
	var task models.Task
	var categoryID sql.NullString
	err := s.Scan(&task.ID, &task.Title, &task.Description, &task.Priority, &task.XP, &task.Coins,
		&task.Active, &categoryID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		task.CategoryID = &categoryID.String
	}
	return &task, nil
}

// CreateTask inserts a new active task. The category lookup and the insert
// share one transaction so a category is never created without its task.
func (s *Store) CreateTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	task := &models.Task{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		XP:          in.XP,
		Coins:       in.Coins,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if in.Category != "" {
		categoryID, err := resolveCategory(ctx, tx, in.Category, now)
		if err != nil {
			return nil, err
		}
		task.CategoryID = &categoryID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		task.ID, task.Title, task.Description, task.Priority, task.XP, task.Coins,
		task.CategoryID, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return task, nil
}

func resolveCategory(ctx context.Context, tx *sql.Tx, name string, now time.Time) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("query category: %w", err)
	}

	id = uuid.New().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)`, id, name, now,
	); err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

// GetTask retrieves a task by ID, active or not.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasks returns tasks ordered by priority, newest first within a priority.
func (s *Store) ListTasks(ctx context.Context, activeOnly bool, limit int) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY priority DESC, created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateTask applies a patch to an active task and returns the updated row.
func (s *Store) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *patch.Priority)
	}
	if patch.XP != nil {
		sets = append(sets, "xp = ?")
		args = append(args, *patch.XP)
	}
	if patch.Coins != nil {
		sets = append(sets, "coins = ?")
		args = append(args, *patch.Coins)
	}
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ? AND active = 1`, args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrTaskNotFound
	}

	task, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return task, nil
}

// DeactivateTask soft-deletes an active task without granting rewards.
func (s *Store) DeactivateTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET active = 0, updated_at = ? WHERE id = ? AND active = 1`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// GetStats returns the player's reward totals.
func (s *Store) GetStats(ctx context.Context) (*models.PlayerStats, error) {
	var stats models.PlayerStats
	err := s.db.QueryRowContext(ctx, `SELECT xp, coins FROM player_stats WHERE id = 1`).Scan(&stats.XP, &stats.Coins)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &stats, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/git6keen/Levelset-sub001/internal/models"
	"github.com/google/uuid"
)

// CreateQuest inserts a quest line and its ordered steps in one transaction.
func (s *Store) CreateQuest(ctx context.Context, title string, steps []string) (*models.QuestLine, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	quest := &models.QuestLine{
		ID:        uuid.New().String(),
		Title:     title,
		Status:    models.QuestStatusOpen,
		CreatedAt: now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO quest_lines (id, title, status, created_at) VALUES (?, ?, ?, ?)`,
		quest.ID, quest.Title, quest.Status, quest.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert quest: %w", err)
	}

	for i, stepTitle := range steps {
		step := models.QuestStep{
			ID:       uuid.New().String(),
			QuestID:  quest.ID,
			Position: i + 1,
			Title:    stepTitle,
			Status:   models.QuestStatusOpen,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quest_steps (id, quest_id, position, title, status) VALUES (?, ?, ?, ?, ?)`,
			step.ID, step.QuestID, step.Position, step.Title, step.Status,
		); err != nil {
			return nil, fmt.Errorf("insert quest step: %w", err)
		}
		quest.Steps = append(quest.Steps, step)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return quest, nil
}

// LinkTaskToStep attaches an active task to an open quest step. Linking the
// same pair twice is a no-op.
func (s *Store) LinkTaskToStep(ctx context.Context, stepID, taskID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM quest_steps WHERE id = ?`, stepID).Scan(&status)
	if err == sql.ErrNoRows || (err == nil && status != string(models.QuestStatusOpen)) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("query quest step: %w", err)
	}

	var active bool
	err = tx.QueryRowContext(ctx, `SELECT active FROM tasks WHERE id = ?`, taskID).Scan(&active)
	if err == sql.ErrNoRows || (err == nil && !active) {
		return ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("query task: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO quest_step_tasks (step_id, task_id) VALUES (?, ?)`, stepID, taskID,
	); err != nil {
		return fmt.Errorf("insert step link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetQuest returns a quest line with its steps and linked task IDs.
func (s *Store) GetQuest(ctx context.Context, id string) (*models.QuestLine, error) {
	var quest models.QuestLine
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, status, created_at, completed_at FROM quest_lines WHERE id = ?`, id,
	).Scan(&quest.ID, &quest.Title, &quest.Status, &quest.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query quest: %w", err)
	}
	if completedAt.Valid {
		quest.CompletedAt = &completedAt.Time
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, quest_id, position, title, status, completed_at
		FROM quest_steps WHERE quest_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query quest steps: %w", err)
	}
	for rows.Next() {
		var step models.QuestStep
		var stepDone sql.NullTime
		if err := rows.Scan(&step.ID, &step.QuestID, &step.Position, &step.Title, &step.Status, &stepDone); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan quest step: %w", err)
		}
		if stepDone.Valid {
			step.CompletedAt = &stepDone.Time
		}
		quest.Steps = append(quest.Steps, step)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Links are read after the step cursor is closed; the pool holds one connection.
	for i := range quest.Steps {
		links, err := s.db.QueryContext(ctx,
			`SELECT task_id FROM quest_step_tasks WHERE step_id = ? ORDER BY task_id`, quest.Steps[i].ID)
		if err != nil {
			return nil, fmt.Errorf("query step links: %w", err)
		}
		for links.Next() {
			var taskID string
			if err := links.Scan(&taskID); err != nil {
				links.Close()
				return nil, fmt.Errorf("scan step link: %w", err)
			}
			quest.Steps[i].TaskIDs = append(quest.Steps[i].TaskIDs, taskID)
		}
		links.Close()
	}

	return &quest, nil
}

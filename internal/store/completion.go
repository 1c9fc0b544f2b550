package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/git6keen/Levelset-sub001/internal/models"
	"github.com/google/uuid"
)

// CompleteTask runs the completion transaction for a task.
//
// The task is read, a completion record is written with the task's current
// rewards, the task is deactivated and the player totals are credited. Quest
// steps and quest lines close through triggers on the completion insert.
// Any failure rolls everything back. A task that is missing, soft-deleted or
// already completed yields ErrTaskNotFound.
func (s *Store) CompleteTask(ctx context.Context, taskID, note string) (*models.CompletionOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var xp, coins int
	var active bool
	err = tx.QueryRowContext(ctx,
		`SELECT xp, coins, active FROM tasks WHERE id = ?`, taskID,
	).Scan(&xp, &coins, &active)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	if !active {
		return nil, ErrTaskNotFound
	}

	now := time.Now().UTC()
	completion := models.TaskCompletion{
		ID:           uuid.New().String(),
		TaskID:       taskID,
		XPAwarded:    xp,
		CoinsAwarded: coins,
		Quality:      note,
		CompletedAt:  now,
	}

	// Deactivate first so a racing completion fails on the guard, not on
	// the unique constraint of the ledger.
	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET active = 0, updated_at = ? WHERE id = ? AND active = 1`,
		now, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("deactivate task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrTaskNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO task_completions (id, task_id, xp_awarded, coins_awarded, quality, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		completion.ID, completion.TaskID, completion.XPAwarded, completion.CoinsAwarded,
		completion.Quality, completion.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE player_stats SET xp = xp + ?, coins = coins + ? WHERE id = 1`, xp, coins,
	); err != nil {
		return nil, fmt.Errorf("credit rewards: %w", err)
	}

	outcome := &models.CompletionOutcome{
		Completion:      completion,
		XPGranted:       xp,
		CoinsGranted:    coins,
		StepsCompleted:  []string{},
		QuestsCompleted: []string{},
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT xp, coins FROM player_stats WHERE id = 1`,
	).Scan(&outcome.Stats.XP, &outcome.Stats.Coins); err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}

	outcome.StepsCompleted, err = collectIDs(ctx, tx,
		`SELECT id FROM quest_steps WHERE completed_by = ? ORDER BY quest_id, position`, completion.ID)
	if err != nil {
		return nil, fmt.Errorf("query cascaded steps: %w", err)
	}
	outcome.QuestsCompleted, err = collectIDs(ctx, tx,
		`SELECT id FROM quest_lines WHERE completed_by = ? ORDER BY id`, completion.ID)
	if err != nil {
		return nil, fmt.Errorf("query cascaded quests: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return outcome, nil
}

func collectIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

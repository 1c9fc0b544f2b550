package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/git6keen/Levelset-sub001/internal/models"
	"github.com/google/uuid"
)

// CreateChecklist inserts an empty checklist.
func (s *Store) CreateChecklist(ctx context.Context, name string) (*models.Checklist, error) {
	list := &models.Checklist{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checklists (id, name, created_at) VALUES (?, ?, ?)`,
		list.ID, list.Name, list.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert checklist: %w", err)
	}
	return list, nil
}

// AddChecklistItem appends an item at the next free position. The position
// read and the insert share one transaction.
func (s *Store) AddChecklistItem(ctx context.Context, checklistID, text string) (*models.ChecklistItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM checklists WHERE id = ?`, checklistID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checklist: %w", err)
	}

	var position int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM checklist_items WHERE checklist_id = ?`, checklistID,
	).Scan(&position); err != nil {
		return nil, fmt.Errorf("query next position: %w", err)
	}

	item := &models.ChecklistItem{
		ID:          uuid.New().String(),
		ChecklistID: checklistID,
		Position:    position,
		Text:        text,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checklist_items (id, checklist_id, position, text, completed) VALUES (?, ?, ?, ?, 0)`,
		item.ID, item.ChecklistID, item.Position, item.Text,
	); err != nil {
		return nil, fmt.Errorf("insert checklist item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return item, nil
}

// ToggleChecklistItem flips the completed flag of an item and returns it.
func (s *Store) ToggleChecklistItem(ctx context.Context, itemID string) (*models.ChecklistItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE checklist_items SET completed = 1 - completed WHERE id = ?`, itemID)
	if err != nil {
		return nil, fmt.Errorf("toggle checklist item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	var item models.ChecklistItem
	if err := tx.QueryRowContext(ctx,
		`SELECT id, checklist_id, position, text, completed FROM checklist_items WHERE id = ?`, itemID,
	).Scan(&item.ID, &item.ChecklistID, &item.Position, &item.Text, &item.Completed); err != nil {
		return nil, fmt.Errorf("query checklist item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &item, nil
}

// GetChecklist returns a checklist with its items in position order.
func (s *Store) GetChecklist(ctx context.Context, id string) (*models.Checklist, error) {
	var list models.Checklist
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM checklists WHERE id = ?`, id,
	).Scan(&list.ID, &list.Name, &list.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checklist: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, checklist_id, position, text, completed
		FROM checklist_items WHERE checklist_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query checklist items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.ChecklistItem
		if err := rows.Scan(&item.ID, &item.ChecklistID, &item.Position, &item.Text, &item.Completed); err != nil {
			return nil, fmt.Errorf("scan checklist item: %w", err)
		}
		list.Items = append(list.Items, item)
	}
	return &list, rows.Err()
}

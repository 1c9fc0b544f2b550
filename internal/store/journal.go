package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/git6keen/Levelset-sub001/internal/models"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// AddJournalEntry inserts a journal entry.
func (s *Store) AddJournalEntry(ctx context.Context, content string, mood int) (*models.JournalEntry, error) {
	entry := &models.JournalEntry{
		ID:        uuid.New().String(),
		Content:   content,
		Mood:      mood,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal_entries (id, content, mood, created_at) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.Content, entry.Mood, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert journal entry: %w", err)
	}
	return entry, nil
}

// SearchJournal returns up to k entries whose content contains query,
// newest first. Matching is a case-insensitive substring test using Unicode
// case folding. A blank query matches nothing.
func (s *Store) SearchJournal(ctx context.Context, query string, k int) ([]models.JournalEntry, error) {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(query))
	if needle == "" || k <= 0 {
		return []models.JournalEntry{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, mood, created_at FROM journal_entries ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query journal entries: %w", err)
	}
	defer rows.Close()

	entries := []models.JournalEntry{}
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.Scan(&e.ID, &e.Content, &e.Mood, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if !strings.Contains(fold.String(e.Content), needle) {
			continue
		}
		entries = append(entries, e)
		if len(entries) == k {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return entries, nil
}

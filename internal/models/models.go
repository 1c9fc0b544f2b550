// Package models defines the core domain types for levelset.
package models

import "time"

// QuestStatus is the derived state of a quest line or one of its steps.
type QuestStatus string

const (
	QuestStatusOpen QuestStatus = "open"
	QuestStatusDone QuestStatus = "done"
)

// Task represents a unit of work that pays out rewards when completed.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    int       `json:"priority"`
	XP          int       `json:"xp"`
	Coins       int       `json:"coins"`
	Active      bool      `json:"active"`
	CategoryID  *string   `json:"category_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskPatch carries the optional fields of a task edit. Nil means unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *int
	XP          *int
	Coins       *int
}

// TaskCompletion is the append-only ledger entry written when a task is completed.
type TaskCompletion struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	XPAwarded    int       `json:"xp_awarded"`
	CoinsAwarded int       `json:"coins_awarded"`
	Quality      string    `json:"quality,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// PlayerStats holds the running reward totals of the single implicit player.
type PlayerStats struct {
	XP    int `json:"xp"`
	Coins int `json:"coins"`
}

// CompletionOutcome is returned by the completion transaction.
type CompletionOutcome struct {
	Completion      TaskCompletion `json:"completion"`
	XPGranted       int            `json:"xp_granted"`
	CoinsGranted    int            `json:"coins_granted"`
	Stats           PlayerStats    `json:"stats"`
	StepsCompleted  []string       `json:"steps_completed"`
	QuestsCompleted []string       `json:"quests_completed"`
}

// QuestLine is an ordered set of steps.
type QuestLine struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Status      QuestStatus `json:"status"`
	Steps       []QuestStep `json:"steps,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// QuestStep is one step of a quest line, done once all of its linked tasks are completed.
type QuestStep struct {
	ID          string      `json:"id"`
	QuestID     string      `json:"quest_id"`
	Position    int         `json:"position"`
	Title       string      `json:"title"`
	Status      QuestStatus `json:"status"`
	TaskIDs     []string    `json:"task_ids,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Checklist is a named list of check items.
type Checklist struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Items     []ChecklistItem `json:"items,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ChecklistItem is a single line of a checklist.
type ChecklistItem struct {
	ID          string `json:"id"`
	ChecklistID string `json:"checklist_id"`
	Position    int    `json:"position"`
	Text        string `json:"text"`
	Completed   bool   `json:"completed"`
}

// JournalEntry is a free-form dated note.
type JournalEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Mood      int       `json:"mood"`
	CreatedAt time.Time `json:"created_at"`
}

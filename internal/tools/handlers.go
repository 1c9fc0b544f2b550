package tools

import (
	"context"
	"errors"
	"time"

	"github.com/git6keen/Levelset-sub001/internal/models"
	"github.com/git6keen/Levelset-sub001/internal/printer"
	"github.com/git6keen/Levelset-sub001/internal/store"
)

// Handler applies a validated tool call. Required arguments are guaranteed
// present; optional ones still need normalizing.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Store is the persistence surface the handlers need.
type Store interface {
	CreateTask(ctx context.Context, in store.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	DeactivateTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, activeOnly bool, limit int) ([]models.Task, error)
	CompleteTask(ctx context.Context, taskID, note string) (*models.CompletionOutcome, error)
	GetStats(ctx context.Context) (*models.PlayerStats, error)
	Counts(ctx context.Context) (map[string]int, error)
	CreateChecklist(ctx context.Context, name string) (*models.Checklist, error)
	AddChecklistItem(ctx context.Context, checklistID, text string) (*models.ChecklistItem, error)
	ToggleChecklistItem(ctx context.Context, itemID string) (*models.ChecklistItem, error)
	GetChecklist(ctx context.Context, id string) (*models.Checklist, error)
	AddJournalEntry(ctx context.Context, content string, mood int) (*models.JournalEntry, error)
	SearchJournal(ctx context.Context, query string, k int) ([]models.JournalEntry, error)
	CreateQuest(ctx context.Context, title string, steps []string) (*models.QuestLine, error)
	LinkTaskToStep(ctx context.Context, stepID, taskID string) error
	GetQuest(ctx context.Context, id string) (*models.QuestLine, error)
}

// Argument limits. Out-of-range values are clamped, never rejected.
const (
	maxTitleLen       = 200
	maxDescriptionLen = 2000
	maxCategoryLen    = 64
	maxNoteLen        = 500
	maxChecklistName  = 120
	maxItemLen        = 300
	maxJournalLen     = 5000
	maxQueryLen       = 200
	maxQuestSteps     = 20
	maxIDLen          = 64

	defaultPriority = 3
	defaultXP       = 10
	defaultCoins    = 5
	maxReward       = 1000
	defaultMood     = 3
	defaultLimit    = 20
	maxLimit        = 100
	defaultSearchK  = 5
	maxSearchK      = 50
)

var errNoPrinter = errors.New("no printer configured")

type toolSpec struct {
	def     Definition
	handler Handler
}

// Option configures the builtin handlers.
type Option func(*builtins)

// WithPrinter sends checklists.print output to sink when the caller asks.
func WithPrinter(sink printer.Sink) Option {
	return func(b *builtins) { b.printer = sink }
}

// Builtin returns the catalog definitions and their handlers, bound to st.
// Definitions and handlers are declared side by side so each name has
// exactly one handler.
func Builtin(st Store, opts ...Option) ([]Definition, map[string]Handler) {
	b := &builtins{store: st, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	specs := b.specs()

	defs := make([]Definition, 0, len(specs))
	handlers := make(map[string]Handler, len(specs))
	for _, s := range specs {
		defs = append(defs, s.def)
		handlers[s.def.Name] = s.handler
	}
	return defs, handlers
}

type builtins struct {
	store   Store
	printer printer.Sink
	now     func() time.Time
}

func (b *builtins) specs() []toolSpec {
	return []toolSpec{
		{
			def: Definition{
				Name:        "tasks.create",
				Description: "Create a task. priority 1-5 (3), xp 0-1000 (10), coins 0-1000 (5)",
				Args: []Arg{
					{Name: "title", Type: ArgString, Description: "Short title, max 200 chars", Required: true},
					{Name: "description", Type: ArgString, Description: "Longer details, max 2000 chars"},
					{Name: "priority", Type: ArgInteger, Description: "1 (low) to 5 (high), default 3"},
					{Name: "xp", Type: ArgInteger, Description: "Experience reward 0-1000, default 10"},
					{Name: "coins", Type: ArgInteger, Description: "Coin reward 0-1000, default 5"},
					{Name: "category", Type: ArgString, Description: "Category name, created on first use"},
				},
			},
			handler: b.createTask,
		},
		{
			def: Definition{
				Name:        "tasks.update",
				Description: "Edit an active task; omitted fields are unchanged",
				Args: []Arg{
					{Name: "id", Type: ArgString, Description: "Task ID", Required: true},
					{Name: "title", Type: ArgString, Description: "New title"},
					{Name: "description", Type: ArgString, Description: "New description"},
					{Name: "priority", Type: ArgInteger, Description: "New priority 1-5"},
					{Name: "xp", Type: ArgInteger, Description: "New experience reward 0-1000"},
					{Name: "coins", Type: ArgInteger, Description: "New coin reward 0-1000"},
				},
			},
			handler: b.updateTask,
		},
		{
			def: Definition{
				Name:        "tasks.complete",
				Description: "Complete a task and grant its rewards; advances linked quests",
				Args: []Arg{
					{Name: "id", Type: ArgString, Description: "Task ID", Required: true},
					{Name: "note", Type: ArgString, Description: "Optional quality note, max 500 chars"},
				},
			},
			handler: b.completeTask,
		},
		{
			def: Definition{
				Name:        "tasks.delete",
				Description: "Deactivate a task without granting rewards",
				Args: []Arg{
					{Name: "id", Type: ArgString, Description: "Task ID", Required: true},
				},
			},
			handler: b.deleteTask,
		},
		{
			def: Definition{
				Name:        "tasks.list",
				Description: "List active tasks by priority",
				Args: []Arg{
					{Name: "limit", Type: ArgInteger, Description: "1-100, default 20"},
				},
			},
			handler: b.listTasks,
		},
		{
			def: Definition{
				Name:        "checklists.create",
				Description: "Create an empty checklist",
				Args: []Arg{
					{Name: "name", Type: ArgString, Description: "Checklist name, max 120 chars", Required: true},
				},
			},
			handler: b.createChecklist,
		},
		{
			def: Definition{
				Name:        "checklists.add_item",
				Description: "Append an item to a checklist",
				Args: []Arg{
					{Name: "checklist_id", Type: ArgString, Description: "Checklist ID", Required: true},
					{Name: "text", Type: ArgString, Description: "Item text, max 300 chars", Required: true},
				},
			},
			handler: b.addChecklistItem,
		},
		{
			def: Definition{
				Name:        "checklists.toggle_item",
				Description: "Flip the checked state of a checklist item",
				Args: []Arg{
					{Name: "item_id", Type: ArgString, Description: "Item ID", Required: true},
				},
			},
			handler: b.toggleChecklistItem,
		},
		{
			def: Definition{
				Name:        "checklists.print",
				Description: "Render a checklist as fixed-width printer text",
				Args: []Arg{
					{Name: "checklist_id", Type: ArgString, Description: "Checklist ID", Required: true},
					{Name: "width", Type: ArgInteger, Description: "Columns 20-80, default 40"},
					{Name: "send", Type: ArgBoolean, Description: "Also send the text to the printer"},
				},
			},
			handler: b.printChecklist,
		},
		{
			def: Definition{
				Name:        "journal.add",
				Description: "Write a journal entry",
				Args: []Arg{
					{Name: "content", Type: ArgString, Description: "Entry text, max 5000 chars", Required: true},
					{Name: "mood", Type: ArgInteger, Description: "1 (low) to 5 (high), default 3"},
				},
			},
			handler: b.addJournalEntry,
		},
		{
			def: Definition{
				Name:        "journal.search",
				Description: "Find journal entries containing some text, newest first",
				Args: []Arg{
					{Name: "query", Type: ArgString, Description: "Text to look for, case-insensitive", Required: true},
					{Name: "k", Type: ArgInteger, Description: "Max results 1-50, default 5"},
				},
			},
			handler: b.searchJournal,
		},
		{
			def: Definition{
				Name:        "quests.create",
				Description: "Create a quest line with ordered steps",
				Args: []Arg{
					{Name: "title", Type: ArgString, Description: "Quest title", Required: true},
					{Name: "steps", Type: ArgStringArray, Description: "Step titles in order, max 20", Required: true},
				},
			},
			handler: b.createQuest,
		},
		{
			def: Definition{
				Name:        "quests.link_task",
				Description: "Link an active task to an open quest step",
				Args: []Arg{
					{Name: "step_id", Type: ArgString, Description: "Quest step ID", Required: true},
					{Name: "task_id", Type: ArgString, Description: "Task ID", Required: true},
				},
			},
			handler: b.linkTask,
		},
		{
			def: Definition{
				Name:        "quests.get",
				Description: "Show a quest line with its steps",
				Args: []Arg{
					{Name: "id", Type: ArgString, Description: "Quest ID", Required: true},
				},
			},
			handler: b.getQuest,
		},
		{
			def: Definition{
				Name:        "stats.get",
				Description: "Show reward totals and record counts",
			},
			handler: b.getStats,
		},
	}
}

func (b *builtins) createTask(ctx context.Context, args map[string]any) (any, error) {
	return b.store.CreateTask(ctx, store.TaskInput{
		Title:       stringArg(args, "title", maxTitleLen),
		Description: stringArg(args, "description", maxDescriptionLen),
		Priority:    intArg(args, "priority", defaultPriority, 1, 5),
		XP:          intArg(args, "xp", defaultXP, 0, maxReward),
		Coins:       intArg(args, "coins", defaultCoins, 0, maxReward),
		Category:    stringArg(args, "category", maxCategoryLen),
	})
}

func (b *builtins) updateTask(ctx context.Context, args map[string]any) (any, error) {
	patch := models.TaskPatch{
		Description: optionalStringArg(args, "description", maxDescriptionLen),
		Priority:    optionalIntArg(args, "priority", 1, 5),
		XP:          optionalIntArg(args, "xp", 0, maxReward),
		Coins:       optionalIntArg(args, "coins", 0, maxReward),
	}
	// A blank title would leave the task unnamed.
	if title := optionalStringArg(args, "title", maxTitleLen); title != nil && *title != "" {
		patch.Title = title
	}
	return b.store.UpdateTask(ctx, stringArg(args, "id", maxIDLen), patch)
}

func (b *builtins) completeTask(ctx context.Context, args map[string]any) (any, error) {
	return b.store.CompleteTask(ctx, stringArg(args, "id", maxIDLen), stringArg(args, "note", maxNoteLen))
}

func (b *builtins) deleteTask(ctx context.Context, args map[string]any) (any, error) {
	id := stringArg(args, "id", maxIDLen)
	if err := b.store.DeactivateTask(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "active": false}, nil
}

func (b *builtins) listTasks(ctx context.Context, args map[string]any) (any, error) {
	tasks, err := b.store.ListTasks(ctx, true, intArg(args, "limit", defaultLimit, 1, maxLimit))
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
}

func (b *builtins) createChecklist(ctx context.Context, args map[string]any) (any, error) {
	return b.store.CreateChecklist(ctx, stringArg(args, "name", maxChecklistName))
}

func (b *builtins) addChecklistItem(ctx context.Context, args map[string]any) (any, error) {
	return b.store.AddChecklistItem(ctx, stringArg(args, "checklist_id", maxIDLen), stringArg(args, "text", maxItemLen))
}

func (b *builtins) toggleChecklistItem(ctx context.Context, args map[string]any) (any, error) {
	return b.store.ToggleChecklistItem(ctx, stringArg(args, "item_id", maxIDLen))
}

func (b *builtins) printChecklist(ctx context.Context, args map[string]any) (any, error) {
	id := stringArg(args, "checklist_id", maxIDLen)
	list, err := b.store.GetChecklist(ctx, id)
	if err != nil {
		return nil, err
	}
	lines := make([]printer.Line, 0, len(list.Items))
	for _, item := range list.Items {
		lines = append(lines, printer.Line{Text: item.Text, Checked: item.Completed})
	}
	width := intArg(args, "width", printer.DefaultWidth, 20, 80)
	text := printer.FormatChecklist(list.Name, lines, width, b.now())

	sent := false
	if boolArg(args, "send") {
		if b.printer == nil {
			return nil, &printerError{err: errNoPrinter}
		}
		if err := b.printer.Send(text); err != nil {
			return nil, &printerError{err: err}
		}
		sent = true
	}
	return map[string]any{
		"checklist_id": list.ID,
		"text":         text,
		"sent":         sent,
	}, nil
}

func (b *builtins) addJournalEntry(ctx context.Context, args map[string]any) (any, error) {
	return b.store.AddJournalEntry(ctx, stringArg(args, "content", maxJournalLen), intArg(args, "mood", defaultMood, 1, 5))
}

func (b *builtins) searchJournal(ctx context.Context, args map[string]any) (any, error) {
	entries, err := b.store.SearchJournal(ctx,
		stringArg(args, "query", maxQueryLen),
		intArg(args, "k", defaultSearchK, 1, maxSearchK),
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{"entries": entries, "count": len(entries)}, nil
}

func (b *builtins) createQuest(ctx context.Context, args map[string]any) (any, error) {
	steps := stringSliceArg(args, "steps", maxQuestSteps, maxTitleLen)
	if len(steps) == 0 {
		return nil, &missingArgError{names: []string{"steps"}}
	}
	return b.store.CreateQuest(ctx, stringArg(args, "title", maxTitleLen), steps)
}

func (b *builtins) linkTask(ctx context.Context, args map[string]any) (any, error) {
	stepID := stringArg(args, "step_id", maxIDLen)
	taskID := stringArg(args, "task_id", maxIDLen)
	if err := b.store.LinkTaskToStep(ctx, stepID, taskID); err != nil {
		return nil, err
	}
	return map[string]any{"step_id": stepID, "task_id": taskID}, nil
}

func (b *builtins) getQuest(ctx context.Context, args map[string]any) (any, error) {
	return b.store.GetQuest(ctx, stringArg(args, "id", maxIDLen))
}

func (b *builtins) getStats(ctx context.Context, _ map[string]any) (any, error) {
	stats, err := b.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := b.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"stats": stats, "counts": counts}, nil
}

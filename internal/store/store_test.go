package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/git6keen/Levelset-sub001/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("Expected schema version %d, got %d", SchemaVersion, v)
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if _, err := s.CreateTask(context.Background(), TaskInput{Title: "Persisted", Priority: 3}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s.Close()

	tasks, err := s.ListTasks(context.Background(), true, 0)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("Expected 1 task after reopen, got %d", len(tasks))
	}
}

func TestNew_SchemaMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE meta SET value = '99' WHERE key = 'schema_version'`); err != nil {
		t.Fatalf("Failed to bump schema version: %v", err)
	}
	s.Close()

	_, err = New(dbPath)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Expected ErrSchemaMismatch, got %v", err)
	}
}

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	// Create
	task, err := s.CreateTask(ctx, TaskInput{Title: "Test Task", Description: "Test Description", Priority: 4, XP: 20, Coins: 7, Category: "home"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.ID == "" {
		t.Error("Task ID should not be empty")
	}
	if !task.Active {
		t.Error("New task should be active")
	}
	if task.CategoryID == nil {
		t.Fatal("Expected category to be resolved")
	}

	// Same category name resolves to the same row
	other, err := s.CreateTask(ctx, TaskInput{Title: "Other", Priority: 1, Category: "home"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if other.CategoryID == nil || *other.CategoryID != *task.CategoryID {
		t.Error("Expected category to be reused")
	}

	// Get
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Title != "Test Task" || got.XP != 20 || got.Coins != 7 {
		t.Errorf("Unexpected task: %+v", got)
	}

	// List is ordered by priority
	tasks, err := s.ListTasks(ctx, true, 10)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != task.ID {
		t.Errorf("Expected highest priority task first, got %s", tasks[0].Title)
	}

	// Update
	title := "Renamed"
	xp := 50
	updated, err := s.UpdateTask(ctx, task.ID, models.TaskPatch{Title: &title, XP: &xp})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if updated.Title != "Renamed" || updated.XP != 50 || updated.Coins != 7 {
		t.Errorf("Unexpected updated task: %+v", updated)
	}

	// Soft delete
	if err := s.DeactivateTask(ctx, task.ID); err != nil {
		t.Fatalf("DeactivateTask failed: %v", err)
	}
	if err := s.DeactivateTask(ctx, task.ID); err != ErrTaskNotFound {
		t.Errorf("Expected ErrTaskNotFound on second delete, got %v", err)
	}
	if _, err := s.UpdateTask(ctx, task.ID, models.TaskPatch{Title: &title}); err != ErrTaskNotFound {
		t.Errorf("Expected ErrTaskNotFound updating inactive task, got %v", err)
	}

	tasks, _ = s.ListTasks(ctx, true, 0)
	if len(tasks) != 1 {
		t.Errorf("Expected 1 active task, got %d", len(tasks))
	}
	tasks, _ = s.ListTasks(ctx, false, 0)
	if len(tasks) != 2 {
		t.Errorf("Expected 2 tasks in total, got %d", len(tasks))
	}

	if _, err := s.GetTask(ctx, "missing"); err != ErrTaskNotFound {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestCompleteTask(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, TaskInput{Title: "Mop kitchen", Priority: 3, XP: 15, Coins: 4})

	outcome, err := s.CompleteTask(ctx, task.ID, "spotless")
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if outcome.XPGranted != 15 || outcome.CoinsGranted != 4 {
		t.Errorf("Unexpected rewards: %+v", outcome)
	}
	if outcome.Completion.Quality != "spotless" {
		t.Errorf("Expected note to be recorded, got %q", outcome.Completion.Quality)
	}
	if outcome.Stats.XP != 15 || outcome.Stats.Coins != 4 {
		t.Errorf("Unexpected stats: %+v", outcome.Stats)
	}

	got, _ := s.GetTask(ctx, task.ID)
	if got.Active {
		t.Error("Completed task should be inactive")
	}

	// Completing again is rejected and grants nothing
	if _, err := s.CompleteTask(ctx, task.ID, ""); err != ErrTaskNotFound {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
	stats, _ := s.GetStats(ctx)
	if stats.XP != 15 {
		t.Errorf("Expected XP to stay at 15, got %d", stats.XP)
	}

	if _, err := s.CompleteTask(ctx, "missing", ""); err != ErrTaskNotFound {
		t.Errorf("Expected ErrTaskNotFound for missing task, got %v", err)
	}
}

func TestCompleteTask_SoftDeleted(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, TaskInput{Title: "Gone", Priority: 3, XP: 10})
	s.DeactivateTask(ctx, task.ID)

	if _, err := s.CompleteTask(ctx, task.ID, ""); err != ErrTaskNotFound {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
	counts, _ := s.Counts(ctx)
	if counts["task_completions"] != 0 {
		t.Errorf("Expected no completion rows, got %d", counts["task_completions"])
	}
}

func TestCompleteTask_ConcurrentDoubleCompletion(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, TaskInput{Title: "Race", Priority: 3, XP: 10, Coins: 5})

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CompleteTask(ctx, task.ID, "")
		}(i)
	}
	wg.Wait()

	successCount := 0
	notFoundCount := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, ErrTaskNotFound):
			notFoundCount++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if successCount != 1 {
		t.Errorf("Expected exactly 1 successful completion, got %d", successCount)
	}
	if notFoundCount != attempts-1 {
		t.Errorf("Expected %d ErrTaskNotFound, got %d", attempts-1, notFoundCount)
	}

	counts, _ := s.Counts(ctx)
	if counts["task_completions"] != 1 {
		t.Errorf("Expected 1 completion row, got %d", counts["task_completions"])
	}
	stats, _ := s.GetStats(ctx)
	if stats.XP != 10 || stats.Coins != 5 {
		t.Errorf("Rewards granted more than once: %+v", stats)
	}
}

func TestQuestCascade(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	t1, _ := s.CreateTask(ctx, TaskInput{Title: "T1", Priority: 3, XP: 10})
	t2, _ := s.CreateTask(ctx, TaskInput{Title: "T2", Priority: 3, XP: 10})

	quest, err := s.CreateQuest(ctx, "Q", []string{"S1", "S2"})
	if err != nil {
		t.Fatalf("CreateQuest failed: %v", err)
	}
	if len(quest.Steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(quest.Steps))
	}
	s1, s2 := quest.Steps[0], quest.Steps[1]

	if err := s.LinkTaskToStep(ctx, s1.ID, t1.ID); err != nil {
		t.Fatalf("LinkTaskToStep failed: %v", err)
	}
	if err := s.LinkTaskToStep(ctx, s2.ID, t2.ID); err != nil {
		t.Fatalf("LinkTaskToStep failed: %v", err)
	}

	// Completing T1 closes S1 only
	outcome, err := s.CompleteTask(ctx, t1.ID, "")
	if err != nil {
		t.Fatalf("CompleteTask T1 failed: %v", err)
	}
	if len(outcome.StepsCompleted) != 1 || outcome.StepsCompleted[0] != s1.ID {
		t.Errorf("Expected S1 to cascade, got %v", outcome.StepsCompleted)
	}
	if len(outcome.QuestsCompleted) != 0 {
		t.Errorf("Expected quest to stay open, got %v", outcome.QuestsCompleted)
	}

	got, _ := s.GetQuest(ctx, quest.ID)
	if got.Status != models.QuestStatusOpen {
		t.Errorf("Expected quest open, got %s", got.Status)
	}
	if got.Steps[0].Status != models.QuestStatusDone || got.Steps[1].Status != models.QuestStatusOpen {
		t.Errorf("Unexpected step statuses: %s, %s", got.Steps[0].Status, got.Steps[1].Status)
	}

	// Completing T2 closes S2 and the quest
	outcome, err = s.CompleteTask(ctx, t2.ID, "")
	if err != nil {
		t.Fatalf("CompleteTask T2 failed: %v", err)
	}
	if len(outcome.StepsCompleted) != 1 || outcome.StepsCompleted[0] != s2.ID {
		t.Errorf("Expected S2 to cascade, got %v", outcome.StepsCompleted)
	}
	if len(outcome.QuestsCompleted) != 1 || outcome.QuestsCompleted[0] != quest.ID {
		t.Errorf("Expected quest to cascade, got %v", outcome.QuestsCompleted)
	}

	got, _ = s.GetQuest(ctx, quest.ID)
	if got.Status != models.QuestStatusDone {
		t.Errorf("Expected quest done, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("Expected quest completion time")
	}
}

func TestQuestCascade_StepWaitsForAllLinkedTasks(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	a, _ := s.CreateTask(ctx, TaskInput{Title: "A", Priority: 3})
	b, _ := s.CreateTask(ctx, TaskInput{Title: "B", Priority: 3})
	quest, _ := s.CreateQuest(ctx, "Q", []string{"S1"})
	step := quest.Steps[0]
	s.LinkTaskToStep(ctx, step.ID, a.ID)
	s.LinkTaskToStep(ctx, step.ID, b.ID)

	outcome, _ := s.CompleteTask(ctx, a.ID, "")
	if len(outcome.StepsCompleted) != 0 {
		t.Errorf("Step closed before all linked tasks completed: %v", outcome.StepsCompleted)
	}

	outcome, _ = s.CompleteTask(ctx, b.ID, "")
	if len(outcome.StepsCompleted) != 1 || len(outcome.QuestsCompleted) != 1 {
		t.Errorf("Expected step and quest to close, got %+v", outcome)
	}

	got, _ := s.GetQuest(ctx, quest.ID)
	if len(got.Steps[0].TaskIDs) != 2 {
		t.Errorf("Expected 2 linked tasks, got %v", got.Steps[0].TaskIDs)
	}
}

func TestLinkTaskToStep_Errors(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, TaskInput{Title: "T", Priority: 3})
	quest, _ := s.CreateQuest(ctx, "Q", []string{"S1"})

	if err := s.LinkTaskToStep(ctx, "missing", task.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for missing step, got %v", err)
	}
	if err := s.LinkTaskToStep(ctx, quest.Steps[0].ID, "missing"); err != ErrTaskNotFound {
		t.Errorf("Expected ErrTaskNotFound for missing task, got %v", err)
	}

	// Linking twice is a no-op
	s.LinkTaskToStep(ctx, quest.Steps[0].ID, task.ID)
	if err := s.LinkTaskToStep(ctx, quest.Steps[0].ID, task.ID); err != nil {
		t.Errorf("Second link failed: %v", err)
	}

	s.CompleteTask(ctx, task.ID, "")
	if err := s.LinkTaskToStep(ctx, quest.Steps[0].ID, task.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for closed step, got %v", err)
	}
}

func TestCompleteTask_RollbackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()
	s := &Store{db: db}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT xp, coins, active FROM tasks").
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows([]string{"xp", "coins", "active"}).AddRow(10, 5, true))
	mock.ExpectExec("UPDATE tasks SET active = 0").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO task_completions").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = s.CompleteTask(context.Background(), "task-1", "")
	if err == nil {
		t.Fatal("Expected CompleteTask to fail")
	}
	if errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Storage failure must not look like a missing task: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestChecklists(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	list, err := s.CreateChecklist(ctx, "Groceries")
	if err != nil {
		t.Fatalf("CreateChecklist failed: %v", err)
	}

	first, err := s.AddChecklistItem(ctx, list.ID, "Milk")
	if err != nil {
		t.Fatalf("AddChecklistItem failed: %v", err)
	}
	second, _ := s.AddChecklistItem(ctx, list.ID, "Eggs")
	if first.Position != 1 || second.Position != 2 {
		t.Errorf("Expected positions 1 and 2, got %d and %d", first.Position, second.Position)
	}

	toggled, err := s.ToggleChecklistItem(ctx, second.ID)
	if err != nil {
		t.Fatalf("ToggleChecklistItem failed: %v", err)
	}
	if !toggled.Completed {
		t.Error("Expected item to be completed after toggle")
	}

	got, err := s.GetChecklist(ctx, list.ID)
	if err != nil {
		t.Fatalf("GetChecklist failed: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].Text != "Milk" || !got.Items[1].Completed {
		t.Errorf("Unexpected checklist: %+v", got)
	}

	if _, err := s.AddChecklistItem(ctx, "missing", "x"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := s.ToggleChecklistItem(ctx, "missing"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestChecklistPositions_Concurrent(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	list, _ := s.CreateChecklist(ctx, "Packing")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AddChecklistItem(ctx, list.ID, "item"); err != nil {
				t.Errorf("AddChecklistItem failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetChecklist(ctx, list.ID)
	for i, item := range got.Items {
		if item.Position != i+1 {
			t.Errorf("Expected position %d, got %d", i+1, item.Position)
		}
	}
}

func TestJournal(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	entry, err := s.AddJournalEntry(ctx, "Good day", 4)
	if err != nil {
		t.Fatalf("AddJournalEntry failed: %v", err)
	}
	if entry.ID == "" || entry.Mood != 4 {
		t.Errorf("Unexpected entry: %+v", entry)
	}

	counts, _ := s.Counts(ctx)
	if counts["journal_entries"] != 1 {
		t.Errorf("Expected 1 journal entry, got %d", counts["journal_entries"])
	}
}

func TestSearchJournal(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for _, content := range []string{"Walked the DOG", "Rainy day", "dog park again", "Café with Straße friends"} {
		if _, err := s.AddJournalEntry(ctx, content, 3); err != nil {
			t.Fatalf("AddJournalEntry failed: %v", err)
		}
	}

	got, err := s.SearchJournal(ctx, "dog", 5)
	if err != nil {
		t.Fatalf("SearchJournal failed: %v", err)
	}
	if len(got) != 2 || got[0].Content != "dog park again" || got[1].Content != "Walked the DOG" {
		t.Errorf("Expected newest dog entries first, got %+v", got)
	}

	got, _ = s.SearchJournal(ctx, "dog", 1)
	if len(got) != 1 {
		t.Errorf("Expected k to cap results, got %d", len(got))
	}

	got, _ = s.SearchJournal(ctx, "STRASSE", 5)
	if len(got) != 1 {
		t.Errorf("Expected case-folded match, got %d", len(got))
	}

	got, _ = s.SearchJournal(ctx, "   ", 5)
	if len(got) != 0 {
		t.Errorf("Expected blank query to match nothing, got %d", len(got))
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Ping(ctx)
	if err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func newTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

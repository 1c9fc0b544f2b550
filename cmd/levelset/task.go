package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/git6keen/Levelset-sub001/internal/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active tasks",
	RunE:  runTaskList,
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete [task-id]",
	Short: "Complete a task and collect its rewards",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskComplete,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Deactivate a task without rewards",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var (
	taskTitle    string
	taskDesc     string
	taskCategory string
	taskPriority int
	taskXP       int
	taskCoins    int
	taskNote     string
	taskLimit    int
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskCompleteCmd, taskDeleteCmd)

	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskCategory, "category", "", "Category name")
	taskAddCmd.Flags().IntVar(&taskPriority, "priority", 3, "Priority 1-5")
	taskAddCmd.Flags().IntVar(&taskXP, "xp", 10, "Experience reward")
	taskAddCmd.Flags().IntVar(&taskCoins, "coins", 5, "Coin reward")
	taskAddCmd.MarkFlagRequired("title")

	taskListCmd.Flags().IntVar(&taskLimit, "limit", 50, "Maximum number of tasks")

	taskCompleteCmd.Flags().StringVar(&taskNote, "note", "", "Optional completion note")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	toolArgs := map[string]any{
		"title":       taskTitle,
		"description": taskDesc,
		"priority":    taskPriority,
		"xp":          taskXP,
		"coins":       taskCoins,
	}
	if taskCategory != "" {
		toolArgs["category"] = taskCategory
	}

	result, err := executeTool("tasks.create", toolArgs)
	if err != nil {
		return err
	}

	var task models.Task
	if err := remarshal(result, &task); err != nil {
		return err
	}
	fmt.Printf("Created task: %s (%d xp, %d coins)\n", task.ID, task.XP, task.Coins)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet(fmt.Sprintf("/tasks?limit=%d", taskLimit))
	if err != nil {
		return err
	}

	var tasks []models.Task
	if err := json.Unmarshal(resp, &tasks); err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No active tasks")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPRIORITY\tXP\tCOINS")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", truncateID(t.ID), truncate(t.Title, 40), t.Priority, t.XP, t.Coins)
	}
	return w.Flush()
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	toolArgs := map[string]any{"id": args[0]}
	if taskNote != "" {
		toolArgs["note"] = taskNote
	}

	result, err := executeTool("tasks.complete", toolArgs)
	if err != nil {
		return err
	}

	var outcome models.CompletionOutcome
	if err := remarshal(result, &outcome); err != nil {
		return err
	}
	fmt.Printf("Completed task %s: +%d xp, +%d coins\n", args[0], outcome.XPGranted, outcome.CoinsGranted)
	fmt.Printf("Totals: %d xp, %d coins\n", outcome.Stats.XP, outcome.Stats.Coins)
	for _, id := range outcome.StepsCompleted {
		fmt.Printf("Quest step completed: %s\n", id)
	}
	for _, id := range outcome.QuestsCompleted {
		fmt.Printf("Quest completed: %s\n", id)
	}
	return nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	if _, err := executeTool("tasks.delete", map[string]any{"id": args[0]}); err != nil {
		return err
	}
	fmt.Printf("Deactivated task %s\n", args[0])
	return nil
}

// --- Helpers ---

// remarshal converts a decoded JSON value into a typed struct.
func remarshal(v any, dst any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PreviewState tracks what the user decided about a proposed tool call.
type PreviewState string

const (
	PreviewPending   PreviewState = "pending"
	PreviewRunning   PreviewState = "running"
	PreviewDone      PreviewState = "done"
	PreviewFailed    PreviewState = "failed"
	PreviewDismissed PreviewState = "dismissed"
)

// Preview is a tool call proposed by the assistant and awaiting the user.
type Preview struct {
	ID    int
	Name  string
	Args  map[string]any
	State PreviewState
}

// Summary renders the call on one line with arguments in key order.
func (p Preview) Summary() string {
	keys := make([]string, 0, len(p.Args))
	for k := range p.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(p.Args[k])
		if err != nil {
			v = []byte(fmt.Sprint(p.Args[k]))
		}
		parts = append(parts, k+"="+string(v))
	}
	return fmt.Sprintf("%s(%s)", p.Name, strings.Join(parts, ", "))
}

// PreviewQueue holds previews in arrival order. Only the oldest pending
// preview can be confirmed or dismissed.
type PreviewQueue struct {
	items  []Preview
	nextID int
}

// Add queues a new pending preview and returns its ID.
func (q *PreviewQueue) Add(name string, args map[string]any) int {
	q.nextID++
	q.items = append(q.items, Preview{ID: q.nextID, Name: name, Args: args, State: PreviewPending})
	return q.nextID
}

// Current returns the oldest pending preview.
func (q *PreviewQueue) Current() (Preview, bool) {
	for _, p := range q.items {
		if p.State == PreviewPending {
			return p, true
		}
	}
	return Preview{}, false
}

// Pending counts previews awaiting a decision.
func (q *PreviewQueue) Pending() int {
	n := 0
	for _, p := range q.items {
		if p.State == PreviewPending {
			n++
		}
	}
	return n
}

// SetState updates a preview. Unknown IDs are ignored.
func (q *PreviewQueue) SetState(id int, state PreviewState) {
	for i := range q.items {
		if q.items[i].ID == id {
			q.items[i].State = state
			return
		}
	}
}

// Prune drops previews that are no longer pending or running.
func (q *PreviewQueue) Prune() {
	kept := q.items[:0]
	for _, p := range q.items {
		if p.State == PreviewPending || p.State == PreviewRunning {
			kept = append(kept, p)
		}
	}
	q.items = kept
}

// Render draws the unresolved previews, oldest first.
func (q *PreviewQueue) Render(width int) string {
	var lines []string
	first := true
	for _, p := range q.items {
		switch p.State {
		case PreviewPending:
			marker := "  "
			style := lipgloss.NewStyle().Foreground(warningColor)
			if first {
				marker = "▶ "
				style = style.Bold(true)
				first = false
			}
			lines = append(lines, style.Render(marker+p.Summary()))
		case PreviewRunning:
			lines = append(lines, lipgloss.NewStyle().Foreground(secondaryColor).Render("… "+p.Summary()))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	lines = append(lines, helpStyle.Render("y: run the highlighted call  n: dismiss it"))
	return panelStyle.Width(max(width-4, 20)).Render(strings.Join(lines, "\n"))
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Suggestions provides autocomplete for slash commands and task references.
type Suggestions struct {
	tasks       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool
	prefix      string // "/" or "@"
}

// SuggestionItem represents a single autocomplete suggestion.
type SuggestionItem struct {
	Text        string
	Description string
	Type        string // "command" or "task"
}

var commandSuggestions = []SuggestionItem{
	{Text: "/tasks", Description: "List active tasks", Type: "command"},
	{Text: "/stats", Description: "Show rewards and record counts", Type: "command"},
	{Text: "/tools", Description: "Show the tool catalog", Type: "command"},
	{Text: "/clear", Description: "Clear the transcript", Type: "command"},
	{Text: "/help", Description: "Show key bindings", Type: "command"},
	{Text: "/quit", Description: "Leave levelset", Type: "command"},
}

// NewSuggestions creates a new suggestions handler.
func NewSuggestions() *Suggestions {
	return &Suggestions{}
}

// Update recomputes suggestions for the current input. Commands complete the
// whole input; task references complete the last word when it starts with @.
func (s *Suggestions) Update(input string) {
	switch {
	case strings.HasPrefix(input, "/") && !strings.Contains(input, " "):
		s.prefix = "/"
		s.filter(commandSuggestions, strings.ToLower(input))
	case lastWord(input) != "" && strings.HasPrefix(lastWord(input), "@"):
		s.prefix = "@"
		s.filter(s.tasks, strings.ToLower(strings.TrimPrefix(lastWord(input), "@")))
	default:
		s.prefix = ""
		s.filtered = nil
	}
	s.visible = s.prefix != ""
}

// SetTasks replaces the task references offered after @.
func (s *Suggestions) SetTasks(items []SuggestionItem) {
	s.tasks = items
}

// Accept returns input with the selected suggestion applied.
func (s *Suggestions) Accept(input string) string {
	selected := s.Selected()
	if selected == nil {
		return input
	}
	if s.prefix == "/" {
		return selected.Text
	}
	idx := strings.LastIndex(input, "@")
	return input[:idx] + selected.Text + " "
}

func (s *Suggestions) filter(items []SuggestionItem, query string) {
	s.selectedIdx = 0
	s.filtered = s.filtered[:0]
	for _, item := range items {
		if query == "" ||
			strings.Contains(strings.ToLower(item.Text), query) ||
			strings.Contains(strings.ToLower(item.Description), query) {
			s.filtered = append(s.filtered, item)
		}
	}
}

// Next moves to the next suggestion.
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion.
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion.
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.visible || len(s.filtered) == 0 || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible.
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown.
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	suggestionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1).
		Width(max(width-4, 20))

	header := "Commands"
	if s.prefix == "@" {
		header = "Tasks"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Render(header))
	b.WriteString("\n")

	// Show max 5 suggestions
	maxVisible := 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			b.WriteString(helpStyle.Render(fmt.Sprintf("  ... and %d more", len(s.filtered)-maxVisible)))
			break
		}

		var line string
		if i == s.selectedIdx {
			line = selectedStyle.Render("▶ " + item.Text + " " + item.Description)
		} else {
			line = "  " + item.Text + " " + helpStyle.Render(item.Description)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return suggestionStyle.Render(b.String())
}

func lastWord(input string) string {
	if input == "" || strings.HasSuffix(input, " ") {
		return ""
	}
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

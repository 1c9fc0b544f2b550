// Package printer renders checklists as fixed-width text for receipt printers.
package printer

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultWidth is the column count of a common 58mm thermal printer.
const DefaultWidth = 40

// Line is one checklist entry to print.
type Line struct {
	Text    string
	Checked bool
}

// FormatChecklist renders a checklist block:
//
//	========================================
//	               GROCERIES
//	========================================
//	Printed: 2026-01-02 15:04
//	----------------------------------------
//	[ ] 1. Milk
//	[x] 2. Eggs
//	----------------------------------------
//	END
//	========================================
//
// Long item text wraps on word boundaries with a hanging indent under the
// text column. The output ends with a newline.
func FormatChecklist(title string, items []Line, width int, now time.Time) string {
	if width <= 0 {
		width = DefaultWidth
	}
	bar := strings.Repeat("=", width)
	rule := strings.Repeat("-", width)

	t := strings.ToUpper(strings.TrimSpace(title))
	if t == "" {
		t = "CHECKLIST"
	}
	pad := (width - utf8.RuneCountInString(t)) / 2
	if pad < 0 {
		pad = 0
	}

	lines := []string{
		bar,
		strings.Repeat(" ", pad) + t,
		bar,
		"Printed: " + now.Format("2006-01-02 15:04"),
		rule,
	}

	for i, item := range items {
		box := "[ ]"
		if item.Checked {
			box = "[x]"
		}
		prefix := fmt.Sprintf("%s %d. ", box, i+1)
		prefixLen := utf8.RuneCountInString(prefix)
		wrapped := wrap(item.Text, width-prefixLen)
		lines = append(lines, prefix+wrapped[0])
		indent := strings.Repeat(" ", prefixLen)
		for _, extra := range wrapped[1:] {
			lines = append(lines, indent+extra)
		}
	}

	lines = append(lines, rule, "END", bar)
	return strings.Join(lines, "\n") + "\n"
}

// wrap splits text into lines of at most width runes on word boundaries.
// A single word longer than width is kept whole. It always returns at least
// one line.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(w) <= width {
			current += " " + w
			continue
		}
		lines = append(lines, current)
		current = w
	}
	return append(lines, current)
}

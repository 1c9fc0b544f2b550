package printer

import (
	"strings"
	"testing"
	"time"
)

var printedAt = time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)

func TestFormatChecklist(t *testing.T) {
	got := FormatChecklist("Demo", []Line{{Text: "Item A"}, {Text: "Item B", Checked: true}}, 40, printedAt)

	want := strings.Join([]string{
		strings.Repeat("=", 40),
		strings.Repeat(" ", 18) + "DEMO",
		strings.Repeat("=", 40),
		"Printed: 2026-01-02 15:04",
		strings.Repeat("-", 40),
		"[ ] 1. Item A",
		"[x] 2. Item B",
		strings.Repeat("-", 40),
		"END",
		strings.Repeat("=", 40),
	}, "\n") + "\n"

	if got != want {
		t.Errorf("Unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatChecklist_DefaultTitle(t *testing.T) {
	got := FormatChecklist("  ", nil, 40, printedAt)
	lines := strings.Split(got, "\n")
	if strings.TrimSpace(lines[1]) != "CHECKLIST" {
		t.Errorf("Expected default title, got %q", lines[1])
	}
}

func TestFormatChecklist_WrapsWithHangingIndent(t *testing.T) {
	text := "buy the very large bag of flour from the corner shop"
	got := FormatChecklist("x", []Line{{Text: text}}, 20, printedAt)

	var body []string
	inItem := false
	for _, l := range strings.Split(got, "\n") {
		if strings.HasPrefix(l, "[ ] 1. ") {
			inItem = true
		} else if !strings.HasPrefix(l, "       ") {
			inItem = false
		}
		if inItem {
			body = append(body, l)
		}
	}
	if len(body) < 2 {
		t.Fatalf("Expected wrapped item, got:\n%s", got)
	}
	for _, l := range body {
		if len(l) > 20 {
			t.Errorf("Line exceeds width: %q", l)
		}
	}

	var words []string
	for _, l := range body {
		words = append(words, strings.Fields(strings.TrimPrefix(l, "[ ] 1. "))...)
	}
	if strings.Join(words, " ") != text {
		t.Errorf("Wrapped text lost words: %v", words)
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"one two three", 7, []string{"one two", "three"}},
		{"supercalifragilistic", 5, []string{"supercalifragilistic"}},
	}
	for _, tt := range tests {
		got := wrap(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrap(%q, %d) = %v, want %v", tt.text, tt.width, got, tt.want)
		}
	}
}

// Package tui provides the interactive chat client for levelset.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/git6keen/Levelset-sub001/internal/relay"
	"github.com/git6keen/Levelset-sub001/internal/tools"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(warningColor).
			Padding(0, 1)

	userStyle      = lipgloss.NewStyle().Foreground(cyanColor).Bold(true)
	toolStyle      = lipgloss.NewStyle().Foreground(successColor)
	errorStyle     = lipgloss.NewStyle().Foreground(errorColor)
	onlineStyle    = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	offlineStyle   = lipgloss.NewStyle().Foreground(errorColor)
	streamingStyle = lipgloss.NewStyle().Foreground(warningColor)
)

const helpText = `Type a message and press Enter to talk to the assistant.
When it proposes a tool call, press y (with an empty input) to run it or n to dismiss it.
Esc stops a running reply. PgUp/PgDn scroll the transcript.
Commands: /tasks /stats /tools /clear /help /quit. Type @ to reference a task.`

// App is the main TUI application model.
type App struct {
	client      *Client
	input       textinput.Model
	viewport    viewport.Model
	suggestions *Suggestions
	previews    PreviewQueue
	transcript  []entry
	role        string
	width       int
	height      int

	streaming bool
	streamSeq int
	stream    <-chan tea.Msg
	cancel    context.CancelFunc

	daemonOnline bool
	version      string
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Ask the assistant, or type / for commands"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 80

	return &App{
		client:      NewClient(apiAddr),
		input:       ti,
		viewport:    viewport.New(80, 20),
		suggestions: NewSuggestions(),
		transcript:  []entry{{kind: entrySystem, text: "Welcome to levelset. Type /help for key bindings."}},
	}
}

// SetRole sets the perspective sent with every chat turn.
func (a *App) SetRole(role string) {
	a.role = role
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	if a.cancel != nil {
		a.cancel()
	}
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.checkDaemon(),
		a.fetchTasks(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := a.handleKey(msg); handled {
			a.refresh()
			return a, cmd
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = max(msg.Width-6, 10)
		a.viewport.Width = msg.Width

	case frameMsg:
		if msg.seq != a.streamSeq || !a.streaming {
			return a, nil
		}
		a.applyFrame(msg.frame)
		a.refresh()
		return a, waitForStream(a.stream)

	case streamDoneMsg:
		if msg.seq != a.streamSeq || !a.streaming {
			return a, nil
		}
		a.streaming = false
		if a.cancel != nil {
			a.cancel()
			a.cancel = nil
		}
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			a.add(entryError, "Stream failed: "+msg.err.Error())
		}
		a.refresh()
		return a, nil

	case toolResultMsg:
		a.applyToolResult(msg)
		cmds = append(cmds, a.fetchTasks())

	case daemonStatusMsg:
		a.daemonOnline = msg.err == nil && msg.health != nil && msg.health.OK
		if msg.health != nil {
			a.version = msg.health.Version
		}
		if msg.err != nil {
			a.add(entryError, "Daemon unreachable: "+msg.err.Error())
		}

	case tasksLoadedMsg:
		a.suggestions.SetTasks(msg.items)

	case commandResultMsg:
		if msg.err != nil {
			a.add(entryError, "Error: "+msg.err.Error())
		} else if msg.message != "" {
			a.add(entrySystem, msg.message)
		}
	}

	// Update input
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	a.suggestions.Update(a.input.Value())
	a.refresh()
	return a, tea.Batch(cmds...)
}

// handleKey processes keys that do not belong to the input line.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		a.stopStream()
		return tea.Quit, true

	case "esc":
		if a.streaming {
			a.stopStream()
			a.add(entrySystem, "Reply stopped.")
			return nil, true
		}

	case "pgup", "pgdown":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return cmd, true

	case "up":
		if a.suggestions.IsVisible() {
			a.suggestions.Prev()
			return nil, true
		}

	case "down":
		if a.suggestions.IsVisible() {
			a.suggestions.Next()
			return nil, true
		}

	case "tab":
		if a.suggestions.IsVisible() {
			a.acceptSuggestion()
			return nil, true
		}

	case "y", "n":
		if a.input.Value() == "" {
			if _, ok := a.previews.Current(); ok {
				if msg.String() == "y" {
					return a.confirmPreview(), true
				}
				a.dismissPreview()
				return nil, true
			}
		}

	case "enter":
		if a.suggestions.IsVisible() && a.suggestions.prefix == "@" {
			a.acceptSuggestion()
			return nil, true
		}
		if a.suggestions.IsVisible() {
			a.acceptSuggestion()
		}
		text := strings.TrimSpace(a.input.Value())
		if text == "" {
			return nil, true
		}
		a.input.SetValue("")
		a.suggestions.Update("")
		if strings.HasPrefix(text, "/") {
			return a.runCommand(text), true
		}
		if a.streaming {
			a.add(entryError, "Wait for the current reply, or press Esc to stop it.")
			a.input.SetValue(text)
			return nil, true
		}
		a.add(entryUser, text)
		return a.startStream(text), true
	}
	return nil, false
}

func (a *App) acceptSuggestion() {
	a.input.SetValue(a.suggestions.Accept(a.input.Value()))
	a.input.CursorEnd()
	a.suggestions.Update(a.input.Value())
}

// --- Streaming ---

func (a *App) startStream(text string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.streamSeq++
	a.streaming = true
	seq := a.streamSeq

	ch := make(chan tea.Msg)
	a.stream = ch
	req := relay.ChatRequest{Message: text, Role: a.role}

	go func() {
		defer close(ch)
		err := a.client.Stream(ctx, req, func(f relay.Frame) {
			select {
			case ch <- frameMsg{seq: seq, frame: f}:
			case <-ctx.Done():
			}
		})
		select {
		case ch <- streamDoneMsg{seq: seq, err: err}:
		case <-ctx.Done():
		}
	}()
	return waitForStream(ch)
}

func waitForStream(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (a *App) stopStream() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.streaming = false
	a.streamSeq++
}

func (a *App) applyFrame(f relay.Frame) {
	switch f.Type {
	case relay.FrameText:
		if n := len(a.transcript); n > 0 && a.transcript[n-1].kind == entryAssistant {
			a.transcript[n-1].text += f.Text
			return
		}
		a.add(entryAssistant, f.Text)
	case relay.FrameToolCall:
		a.previews.Add(f.Name, f.Args)
		a.add(entryTool, "Proposed "+Preview{Name: f.Name, Args: f.Args}.Summary()+" (y to run, n to dismiss)")
	case relay.FrameError:
		a.add(entryError, fmt.Sprintf("Assistant error (%s): %s", f.Code, f.Message))
	}
}

// --- Previews ---

func (a *App) confirmPreview() tea.Cmd {
	p, ok := a.previews.Current()
	if !ok {
		return nil
	}
	a.previews.SetState(p.ID, PreviewRunning)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()
		res, err := a.client.ExecuteTool(ctx, p.Name, p.Args)
		return toolResultMsg{preview: p, result: res, err: err}
	}
}

func (a *App) dismissPreview() {
	p, ok := a.previews.Current()
	if !ok {
		return
	}
	a.previews.SetState(p.ID, PreviewDismissed)
	a.previews.Prune()
	a.add(entrySystem, "Dismissed "+p.Name+".")
}

func (a *App) applyToolResult(msg toolResultMsg) {
	defer a.previews.Prune()

	if msg.err != nil {
		a.previews.SetState(msg.preview.ID, PreviewFailed)
		a.add(entryError, fmt.Sprintf("✗ %s: %v", msg.preview.Name, msg.err))
		return
	}
	if !msg.result.OK {
		a.previews.SetState(msg.preview.ID, PreviewFailed)
		a.add(entryError, "✗ "+msg.preview.Name+": "+describeFailure(msg.result.Error))
		return
	}
	a.previews.SetState(msg.preview.ID, PreviewDone)
	a.add(entryTool, "✓ "+msg.preview.Name+"\n"+describeResult(msg.result.Result))
}

func describeFailure(e *tools.Error) string {
	if e == nil {
		return "failed"
	}
	s := e.Code + ": " + e.Message
	if len(e.Missing) > 0 {
		s += " (missing " + strings.Join(e.Missing, ", ") + ")"
	}
	return s
}

// describeResult shows printable text verbatim and everything else as JSON.
func describeResult(v any) string {
	if m, ok := v.(map[string]any); ok {
		if text, ok := m["text"].(string); ok {
			return text
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// --- Commands ---

func (a *App) runCommand(text string) tea.Cmd {
	switch strings.Fields(text)[0] {
	case "/quit", "/exit":
		a.stopStream()
		return tea.Quit
	case "/clear":
		a.transcript = nil
		return nil
	case "/help":
		a.add(entrySystem, helpText)
		return nil
	case "/tasks":
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
			defer cancel()
			tasks, err := a.client.ListTasks(ctx)
			if err != nil {
				return commandResultMsg{err: err}
			}
			if len(tasks) == 0 {
				return commandResultMsg{message: "No active tasks."}
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d active tasks:", len(tasks))
			for _, t := range tasks {
				fmt.Fprintf(&b, "\n  %s  p%d  %dxp  %s", shortID(t.ID), t.Priority, t.XP, t.Title)
			}
			return commandResultMsg{message: b.String()}
		}
	case "/stats":
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
			defer cancel()
			res, err := a.client.ExecuteTool(ctx, "stats.get", nil)
			if err != nil {
				return commandResultMsg{err: err}
			}
			if !res.OK {
				return commandResultMsg{err: errors.New(describeFailure(res.Error))}
			}
			return commandResultMsg{message: describeResult(res.Result)}
		}
	case "/tools":
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
			defer cancel()
			catalog, err := a.client.Catalog(ctx)
			if err != nil {
				return commandResultMsg{err: err}
			}
			return commandResultMsg{message: strings.TrimRight(catalog, "\n")}
		}
	default:
		a.add(entryError, "Unknown command "+text+" (try /help)")
		return nil
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()
		health, err := a.client.CheckHealth(ctx)
		return daemonStatusMsg{health: health, err: err}
	}
}

func (a *App) fetchTasks() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultClientTimeout)
		defer cancel()
		tasks, err := a.client.ListTasks(ctx)
		if err != nil {
			return nil
		}
		items := make([]SuggestionItem, len(tasks))
		for i, t := range tasks {
			items[i] = SuggestionItem{Text: t.ID, Description: t.Title, Type: "task"}
		}
		return tasksLoadedMsg{items}
	}
}

// --- Rendering ---

func (a *App) add(kind entryKind, text string) {
	a.transcript = append(a.transcript, entry{kind: kind, text: text})
}

// refresh re-renders the transcript and sizes the viewport around the
// preview panel.
func (a *App) refresh() {
	if a.height > 0 {
		reserved := 6
		if panel := a.previews.Render(a.width); panel != "" {
			reserved += lipgloss.Height(panel)
		}
		if a.suggestions.IsVisible() {
			reserved += lipgloss.Height(a.suggestions.Render(a.width))
		}
		a.viewport.Height = max(a.height-reserved, 3)
	}

	atBottom := a.viewport.AtBottom()
	a.viewport.SetContent(a.renderTranscript())
	if atBottom || a.streaming {
		a.viewport.GotoBottom()
	}
}

func (a *App) renderTranscript() string {
	width := max(a.viewport.Width-2, 20)
	wrap := lipgloss.NewStyle().Width(width)

	blocks := make([]string, 0, len(a.transcript))
	for _, e := range a.transcript {
		var block string
		switch e.kind {
		case entryUser:
			block = userStyle.Render("you › ") + e.text
		case entryAssistant:
			block = e.text
		case entryTool:
			block = toolStyle.Render(e.text)
		case entryError:
			block = errorStyle.Render(e.text)
		default:
			block = helpStyle.Render(e.text)
		}
		blocks = append(blocks, wrap.Render(block))
	}
	return strings.Join(blocks, "\n\n")
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}
	header := titleStyle.Render("levelset") + "  " + daemonStatus
	if a.version != "" {
		header += "  " + helpStyle.Render("v"+a.version)
	}
	if a.streaming {
		header += "  " + streamingStyle.Render("● replying")
	}
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	b.WriteString(a.viewport.View())
	b.WriteString("\n")

	if panel := a.previews.Render(a.width); panel != "" {
		b.WriteString(panel + "\n")
	}

	b.WriteString(inputBoxStyle.Render(a.input.View()))
	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	status := fmt.Sprintf(" Pending calls: %d | Enter:send | y/n:confirm | Esc:stop | PgUp/PgDn:scroll | Ctrl+C:quit", a.previews.Pending())
	b.WriteString(statusBarStyle.Width(max(a.width, 1)).Render(status))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

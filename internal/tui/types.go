package tui

import (
	"github.com/git6keen/Levelset-sub001/internal/relay"
	"github.com/git6keen/Levelset-sub001/internal/tools"
)

// HealthResponse is the subset of GET /health the client shows.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Tools   int    `json:"tools"`
}

// entryKind tags a transcript entry.
type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryTool
	entrySystem
	entryError
)

type entry struct {
	kind entryKind
	text string
}

type frameMsg struct {
	seq   int
	frame relay.Frame
}

type streamDoneMsg struct {
	seq int
	err error
}

type toolResultMsg struct {
	preview Preview
	result  tools.Result
	err     error
}

type daemonStatusMsg struct {
	health *HealthResponse
	err    error
}

type commandResultMsg struct {
	message string
	err     error
}

type tasksLoadedMsg struct {
	items []SuggestionItem
}

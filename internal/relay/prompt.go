package relay

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultPersona introduces the assistant when none is configured.
const DefaultPersona = "You are Levelset, a friendly productivity coach. You help the user plan tasks, keep checklists, journal and progress through quests."

const toolRules = `When the user asks you to change their data, propose exactly one tool call per line, on a line of its own, as compact JSON with no code fence:
{"type":"toolcall","name":"<tool>","args":{...}}
The user confirms each proposal before anything is changed, so never claim a change has been made. Only use the tools below. Required arguments are marked with *.`

// PromptBuilder assembles the message list sent upstream.
type PromptBuilder struct {
	Persona string
	// Catalog is the rendered tool catalog.
	Catalog string
}

// Messages returns the system and user messages for one chat turn. role
// optionally names the perspective the assistant should take and extra is
// caller-supplied context appended to the system prompt.
func (p PromptBuilder) Messages(message, role, extra string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: p.System(role, extra)},
		{Role: openai.ChatMessageRoleUser, Content: message},
	}
}

// System renders the system prompt.
func (p PromptBuilder) System(role, extra string) string {
	persona := strings.TrimSpace(p.Persona)
	if persona == "" {
		persona = DefaultPersona
	}

	var b strings.Builder
	b.WriteString(persona)
	if role = strings.TrimSpace(role); role != "" {
		b.WriteString("\nFor this conversation act as the user's ")
		b.WriteString(role)
		b.WriteString(".")
	}
	b.WriteString("\n\n")
	b.WriteString(toolRules)
	b.WriteString("\n\nTools:\n")
	b.WriteString(p.Catalog)
	if extra = strings.TrimSpace(extra); extra != "" {
		b.WriteString("\nContext:\n")
		b.WriteString(extra)
		b.WriteString("\n")
	}
	return b.String()
}

package relay

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const toolCallSchema = `{
	"type": "object",
	"required": ["type", "name"],
	"properties": {
		"type": {"const": "toolcall"},
		"name": {"type": "string", "pattern": "\\S"},
		"args": {"type": "object"}
	}
}`

var toolCallValidator = jsonschema.MustCompileString("toolcall.schema.json", toolCallSchema)

// ToolCall is a tool invocation proposed by the assistant.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Detector re-chunks forwarded text into lines and reports lines that are
// a single tool-call object. It never executes anything. A Detector is not
// safe for concurrent use.
type Detector struct {
	partial strings.Builder
}

// NewDetector creates a detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Feed consumes a fragment and returns tool calls found on lines it completes.
func (d *Detector) Feed(fragment string) []ToolCall {
	d.partial.WriteString(fragment)
	buf := d.partial.String()
	idx := strings.LastIndexByte(buf, '\n')
	if idx < 0 {
		return nil
	}
	d.partial.Reset()
	d.partial.WriteString(buf[idx+1:])

	var calls []ToolCall
	for _, line := range strings.Split(buf[:idx], "\n") {
		if call, ok := ParseToolCall(line); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// Flush checks the final unterminated line.
func (d *Detector) Flush() []ToolCall {
	rest := d.partial.String()
	d.partial.Reset()
	if call, ok := ParseToolCall(rest); ok {
		return []ToolCall{call}
	}
	return nil
}

// ParseToolCall reports whether line, once trimmed, is a JSON object of the
// form {"type":"toolcall","name":"...","args":{...}}.
func ParseToolCall(line string) (ToolCall, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		return ToolCall{}, false
	}

	var doc any
	if err := json.Unmarshal([]byte(line), &doc); err != nil {
		return ToolCall{}, false
	}
	if err := toolCallValidator.Validate(doc); err != nil {
		return ToolCall{}, false
	}

	obj := doc.(map[string]any)
	call := ToolCall{Name: strings.TrimSpace(obj["name"].(string))}
	call.Args, _ = obj["args"].(map[string]any)
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	return call, true
}

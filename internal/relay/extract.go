package relay

// Extractor pulls assistant text out of one decoded upstream payload.
type Extractor func(payload map[string]any) (string, bool)

// Extractors are tried in order; the first non-empty result wins.
var Extractors = []Extractor{
	deltaContent,
	choiceText,
	messageContent,
}

// ExtractText returns the assistant text carried by payload, or "" when no
// extractor recognizes it.
func ExtractText(payload map[string]any) string {
	for _, extract := range Extractors {
		if text, ok := extract(payload); ok && text != "" {
			return text
		}
	}
	return ""
}

// deltaContent reads choices[0].delta.content from a streaming chunk.
func deltaContent(payload map[string]any) (string, bool) {
	delta, ok := firstChoice(payload)["delta"].(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := delta["content"].(string)
	return text, ok
}

// choiceText reads choices[0].text from a legacy completions chunk.
func choiceText(payload map[string]any) (string, bool) {
	text, ok := firstChoice(payload)["text"].(string)
	return text, ok
}

// messageContent reads choices[0].message.content from a non-streaming
// response, falling back to a top-level message object.
func messageContent(payload map[string]any) (string, bool) {
	if msg, ok := firstChoice(payload)["message"].(map[string]any); ok {
		if text, ok := msg["content"].(string); ok {
			return text, true
		}
	}
	if msg, ok := payload["message"].(map[string]any); ok {
		text, ok := msg["content"].(string)
		return text, ok
	}
	return "", false
}

func firstChoice(payload map[string]any) map[string]any {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil
	}
	choice, _ := choices[0].(map[string]any)
	return choice
}

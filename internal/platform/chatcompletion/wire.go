package chatcompletion

import (
	"encoding/json"

	"github.com/vaelis-ai/vaelis-api/internal/generation"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// extractOutput returns choices[0].message.content when the payload has it
// as a non-empty string, and the sanitized payload re-encoded as JSON
// otherwise.
func extractOutput(payload any) string {
	if content, ok := firstChoiceContent(payload); ok {
		return content
	}
	encoded, err := json.Marshal(generation.Sanitize(payload))
	if err != nil {
		return ""
	}
	return string(encoded)
}

func firstChoiceContent(payload any) (string, bool) {
	root, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	choices, ok := root["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := message["content"].(string)
	if !ok || content == "" {
		return "", false
	}
	return content, true
}

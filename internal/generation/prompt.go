package generation

import (
	"fmt"
	"strings"
)

// SystemMessage returns the system instruction sent ahead of the user prompt.
func SystemMessage(mode Mode) string {
	return fmt.Sprintf("You are a helpful assistant. Mode: %s", ParseMode(string(mode)))
}

// EnrichPrompt appends a sources block to prompt. With no sources the prompt
// is returned unchanged.
func EnrichPrompt(prompt string, sources []SourceItem) string {
	if len(sources) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString("Use the following sources to answer the prompt:\n")
	b.WriteString(prompt)
	b.WriteString("\n\nSources:")
	for _, s := range sources {
		fmt.Fprintf(&b, "\n- %s: %s\n  Snippet: %s", s.Title, s.URL, s.Snippet)
	}
	return b.String()
}

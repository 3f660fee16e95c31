package answer

import (
	"fmt"
	"strings"

	"github.com/kalambet/supportpilot/internal/classify"
	"github.com/kalambet/supportpilot/internal/engine"
	"github.com/kalambet/supportpilot/internal/retrieval"
)

// excerptRunes is how much of each retrieved document goes into the prompt.
const excerptRunes = 500

const promptTemplate = `You are a helpful customer support agent for %s, %s.
Answer the user's question based on the provided context from the documentation.

User Question: %s
Topic: %s

Context from Documentation:
%s

Please provide a helpful, accurate answer based on the context. If the context doesn't contain enough information to fully answer the question, say so and suggest contacting support.

Answer:`

// BuildContext renders retrieved documents as prompt context, one
// "Source/Content" entry per result separated by blank lines. Content is
// cut to its first 500 runes and always followed by "...".
func BuildContext(results []retrieval.Result) string {
	entries := make([]string, len(results))
	for i, r := range results {
		entries[i] = fmt.Sprintf("Source: %s\nContent: %s...", r.Title, excerpt(r.Content, excerptRunes))
	}
	return strings.Join(entries, "\n\n")
}

// Compose builds the messages for a grounded answer.
func Compose(p classify.Product, query, topic string, results []retrieval.Result) []engine.Message {
	return []engine.Message{
		{Role: engine.RoleSystem, Content: fmt.Sprintf("You are a helpful customer support agent for %s.", p.Name)},
		{Role: engine.RoleUser, Content: fmt.Sprintf(promptTemplate, p.Name, p.Description, query, topic, BuildContext(results))},
	}
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

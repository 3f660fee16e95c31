package classify

import (
	"fmt"
	"strings"

	"github.com/kalambet/supportpilot/internal/engine"
	"github.com/kalambet/supportpilot/internal/labels"
)

// Product names the platform whose tickets are being classified. It is
// interpolated into every prompt.
type Product struct {
	Name        string
	Description string
}

// DefaultProduct is the product the default prompts are written for.
var DefaultProduct = Product{Name: "Atlan", Description: "a data catalog platform"}

const userPromptTemplate = `Please classify the following customer support ticket for %s (%s):

Title: %s
Description: %s

Classify this ticket according to the following criteria:

1. TOPIC TAGS (choose the most relevant one):
%s
2. SENTIMENT (choose the most appropriate):
%s
3. PRIORITY (choose based on urgency and impact):
%s
Please respond in the following JSON format:
{
    "topic": "chosen_topic",
    "sentiment": "chosen_sentiment",
    "priority": "chosen_priority",
    "reasoning": "brief explanation of your classification"
}`

// BuildPrompt constructs the chat messages for classifying one ticket. The
// user message carries the ticket text, every label with its definition and
// the required JSON shape.
func BuildPrompt(p Product, title, description string) []engine.Message {
	system := fmt.Sprintf("You are an expert customer support ticket classifier for %s, %s.", p.Name, p.Description)
	user := fmt.Sprintf(userPromptTemplate,
		p.Name, p.Description,
		title, description,
		definitionList(labels.TopicDefinitions()),
		definitionList(labels.SentimentDefinitions()),
		definitionList(labels.PriorityDefinitions()),
	)
	return []engine.Message{
		{Role: engine.RoleSystem, Content: system},
		{Role: engine.RoleUser, Content: user},
	}
}

func definitionList(defs []labels.Definition) string {
	var sb strings.Builder
	for _, d := range defs {
		fmt.Fprintf(&sb, "   - %s: %s\n", d.Value, d.Description)
	}
	return sb.String()
}

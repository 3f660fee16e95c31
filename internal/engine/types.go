package engine

import "errors"

// ErrEmptyResponse is returned when the provider answers without any content.
var ErrEmptyResponse = errors.New("empty response from provider")

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions are the sampling parameters for a single completion.
// A zero MaxTokens leaves the provider default in place.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

package engine

import "context"

// Engine abstracts an inference provider (OpenAI-compatible API or a local
// Ollama server). The classifier, the embedding index and the answer
// generator depend on this interface instead of a concrete client.
type Engine interface {
	// Chat sends messages to the given model and returns the assistant's response.
	Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, error)

	// Embed returns the embedding vector for the given text using the specified model.
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Provisioner reports on and prepares the models a backend serves.
type Provisioner interface {
	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// ListModels returns the names of all available models.
	ListModels(ctx context.Context) ([]string, error)

	// HasModel reports whether the given model name is available.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}

// Backend is an Engine that can also be provisioned.
type Backend interface {
	Engine
	Provisioner
}

package integration

import "context"

// TextGenerator is the port for best-effort generative summaries.
// Callers must degrade gracefully when it errors; nothing in the engine
// depends on it succeeding.
type TextGenerator interface {
	// GenerateJSON prompts the model and returns a structured response
	// conforming to the given JSON Schema
	GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (map[string]any, error)
}

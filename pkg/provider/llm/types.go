package llm

import (
	"encoding/json"
	"fmt"
)

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name.
	Name string
}

// ResponseFormat describes a JSON schema the reply must conform to.
type ResponseFormat struct {
	// Name identifies the schema (a-z, A-Z, 0-9, underscores and dashes).
	Name string

	// Description tells the model what the structured output is for.
	Description string

	// Schema is the JSON Schema object.
	Schema map[string]any

	// Strict requests exact schema adherence where the backend supports it.
	Strict bool
}

// Instruction renders the format as a plain-text directive for backends
// without native structured output.
func (f ResponseFormat) Instruction() (string, error) {
	schema, err := json.Marshal(f.Schema)
	if err != nil {
		return "", fmt.Errorf("llm: marshal response schema %q: %w", f.Name, err)
	}
	return "Respond with a single JSON object and nothing else. " +
		"The object must conform to this JSON Schema:\n" + string(schema), nil
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int

	// SupportsStructuredOutput indicates server-side JSON schema enforcement.
	SupportsStructuredOutput bool

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}

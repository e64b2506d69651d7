package analysis

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/MrWong99/voxpulse/pkg/provider/llm"
	"github.com/MrWong99/voxpulse/pkg/types"
)

// schemaName identifies the response format sent to providers.
const schemaName = "call_analysis"

// payload is the wire shape of a model reply. Pointer fields and nil slices
// let decoding tell a missing field apart from a zero value.
type payload struct {
	Summary        *string  `json:"summary" jsonschema:"required,description=Brief summary of the call"`
	SentimentScore *float64 `json:"sentimentScore" jsonschema:"required,description=Integer from 0 (very negative) to 100 (very positive)"`
	SentimentLabel *string  `json:"sentimentLabel" jsonschema:"required"`
	ActionItems    []string `json:"actionItems" jsonschema:"required,description=Follow-up actions in order"`
	KeyTopics      []string `json:"keyTopics" jsonschema:"required,description=Key topics discussed in order"`
}

var schemaOnce = sync.OnceValues(func() (map[string]any, error) {
	r := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	m, err := schemaToMap(r.Reflect(&payload{}))
	if err != nil {
		return nil, fmt.Errorf("analysis: reflect schema: %w", err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	props, _ := m["properties"].(map[string]any)
	if label, ok := props["sentimentLabel"].(map[string]any); ok {
		enum := make([]any, len(types.SentimentLabels))
		for i, l := range types.SentimentLabels {
			enum[i] = string(l)
		}
		label["enum"] = enum
	}
	enforceStrict(m)
	return m, nil
})

// Schema returns the JSON schema every analysis reply must satisfy: an
// object with summary, sentimentScore, sentimentLabel, actionItems and
// keyTopics, all required and nothing else allowed. The returned map is a
// fresh copy.
func Schema() (map[string]any, error) {
	m, err := schemaOnce()
	if err != nil {
		return nil, err
	}
	return deepCopy(m), nil
}

// responseFormat wraps [Schema] for an [llm.CompletionRequest].
func responseFormat() (*llm.ResponseFormat, error) {
	s, err := Schema()
	if err != nil {
		return nil, err
	}
	return &llm.ResponseFormat{
		Name:        schemaName,
		Description: "Structured analysis of a customer support call transcript.",
		Schema:      s,
		Strict:      true,
	}, nil
}

func schemaToMap(s *jsonschema.Schema) (map[string]any, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// enforceStrict closes every object in the schema and marks all of its
// properties required, as strict structured output demands.
func enforceStrict(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok && len(props) > 0 {
			names := make([]string, 0, len(props))
			for name := range props {
				names = append(names, name)
			}
			slices.Sort(names)
			required := make([]any, len(names))
			for i, n := range names {
				required[i] = n
			}
			schema["required"] = required
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				enforceStrict(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		enforceStrict(items)
	}
}

// deepCopy copies the JSON-shaped value tree rooted at m.
func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		s := make([]any, len(t))
		for i := range t {
			s[i] = copyValue(t[i])
		}
		return s
	default:
		return v
	}
}

package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voxpulse/pkg/provider/llm"
)

// TestNew_Validation checks argument validation before any backend is built.
func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gemini-2.5-flash"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("gemini", ""); err == nil {
		t.Error("expected error for empty model")
	}
	_, err := New("watson", "x", anyllmlib.WithAPIKey("k"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
	if !strings.Contains(err.Error(), "gemini") {
		t.Errorf("error should list supported providers: %v", err)
	}
}

// TestBuildParams_SchemaInSystemPrompt checks that Gemini gets JSON mode and
// the schema appended to the system prompt.
func TestBuildParams_SchemaInSystemPrompt(t *testing.T) {
	p := &Provider{name: "gemini", model: "gemini-2.5-flash"}

	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Be concise.",
		Messages:     []llm.Message{{Role: "user", Content: "transcript", Name: "dashboard"}},
		ResponseFormat: &llm.ResponseFormat{
			Name:   "call_analysis",
			Schema: map[string]any{"type": "object", "required": []string{"summary"}},
		},
		Temperature: 0.3,
		MaxTokens:   512,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	sys := params.Messages[0]
	if sys.Role != anyllmlib.RoleSystem {
		t.Errorf("first message role = %q, want system", sys.Role)
	}
	content := sys.ContentString()
	if !strings.HasPrefix(content, "Be concise.\n\n") {
		t.Errorf("system prompt lost its original text: %q", content)
	}
	if !strings.Contains(content, `"required":["summary"]`) {
		t.Errorf("system prompt missing schema: %q", content)
	}

	user := params.Messages[1]
	if user.Name != "dashboard" || user.ContentString() != "transcript" {
		t.Errorf("user message not preserved: %+v", user)
	}
	if params.Temperature == nil || *params.Temperature != 0.3 {
		t.Errorf("temperature not set: %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("max tokens not set: %v", params.MaxTokens)
	}
	if params.Model != "gemini-2.5-flash" {
		t.Errorf("model = %q", params.Model)
	}
	if params.ResponseFormat == nil || params.ResponseFormat.Type != "json_object" || params.ResponseFormat.JSONSchema != nil {
		t.Errorf("response format = %+v, want JSON mode", params.ResponseFormat)
	}
}

// TestBuildParams_ResponseFormatPerBackend checks which backends receive the
// schema natively and which fall back to the system prompt.
func TestBuildParams_ResponseFormatPerBackend(t *testing.T) {
	schema := map[string]any{"type": "object", "required": []string{"summary"}}
	tests := []struct {
		backend    string
		wantType   string
		wantPrompt bool
	}{
		{"groq", "json_schema", false},
		{"mistral", "json_schema", false},
		{"ollama", "json_schema", false},
		{"deepseek", "json_schema", false},
		{"gemini", "json_object", true},
		{"anthropic", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			p := &Provider{name: tc.backend, model: "m"}
			params, err := p.buildParams(llm.CompletionRequest{
				Messages: []llm.Message{{Role: "user", Content: "transcript"}},
				ResponseFormat: &llm.ResponseFormat{
					Name:        "call_analysis",
					Description: "Structured analysis of a call.",
					Schema:      schema,
					Strict:      true,
				},
			})
			if err != nil {
				t.Fatalf("buildParams: %v", err)
			}

			gotType := ""
			if params.ResponseFormat != nil {
				gotType = params.ResponseFormat.Type
			}
			if gotType != tc.wantType {
				t.Errorf("response format type = %q, want %q", gotType, tc.wantType)
			}
			if gotPrompt := params.Messages[0].Role == anyllmlib.RoleSystem; gotPrompt != tc.wantPrompt {
				t.Errorf("system prompt present = %v, want %v", gotPrompt, tc.wantPrompt)
			}
			if tc.wantType != "json_schema" {
				return
			}
			js := params.ResponseFormat.JSONSchema
			if js == nil || js.Name != "call_analysis" || js.Description != "Structured analysis of a call." {
				t.Fatalf("json schema = %+v", js)
			}
			if js.Strict == nil || !*js.Strict {
				t.Error("strict flag not forwarded")
			}
			if js.Schema["type"] != "object" {
				t.Errorf("schema = %v", js.Schema)
			}
		})
	}
}

// TestBuildParams_NoSystemPrompt checks that an empty request carries no
// system message and keeps provider defaults.
func TestBuildParams_NoSystemPrompt(t *testing.T) {
	p := &Provider{name: "gemini", model: "gemini-2.5-flash"}

	params, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 1 || params.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages: %+v", params.Messages)
	}
	if params.Temperature != nil {
		t.Error("zero temperature should leave the default")
	}
	if params.MaxTokens != nil {
		t.Error("zero max tokens should leave the default")
	}
}

// TestBuildParams_ModelOverride checks per-request model selection.
func TestBuildParams_ModelOverride(t *testing.T) {
	p := &Provider{name: "gemini", model: "gemini-2.5-flash"}
	params, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
		Model:    "gemini-2.5-pro",
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if params.Model != "gemini-2.5-pro" {
		t.Errorf("model = %q, want gemini-2.5-pro", params.Model)
	}
}

// TestModelCapabilities checks known model families.
func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model     string
		window    int
		maxOutput int
	}{
		{"gemini-2.5-flash", 1_048_576, 8_192},
		{"gemini-2.5-pro", 1_048_576, 65_536},
		{"gemini-1.5-pro", 2_097_152, 8_192},
		{"gpt-4o", 128_000, 16_384},
		{"gpt-3.5-turbo", 16_385, 4_096},
		{"claude-3-5-sonnet-latest", 200_000, 8_192},
		{"unknown-model", 128_000, 4_096},
	}
	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			caps := modelCapabilities(tc.model)
			if caps.ContextWindow != tc.window {
				t.Errorf("context window = %d, want %d", caps.ContextWindow, tc.window)
			}
			if caps.MaxOutputTokens != tc.maxOutput {
				t.Errorf("max output = %d, want %d", caps.MaxOutputTokens, tc.maxOutput)
			}
			if caps.SupportsStructuredOutput {
				t.Error("any-llm backends describe the schema in the prompt")
			}
		})
	}
}

// TestCountTokens checks the rough estimate.
func TestCountTokens(t *testing.T) {
	p := &Provider{model: "gemini-2.5-flash"}
	n, err := p.CountTokens([]llm.Message{{Content: "1234"}, {Content: ""}})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if n != 1+4+4 {
		t.Errorf("CountTokens = %d, want 9", n)
	}
}

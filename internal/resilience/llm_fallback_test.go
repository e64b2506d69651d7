package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/voxpulse/pkg/provider/llm"
	llmmock "github.com/MrWong99/voxpulse/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"summary":"primary"}`},
	}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"summary":"secondary"}`},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != `{"summary":"primary"}` {
		t.Fatalf("content = %q", resp.Content)
	}
	if n := len(primary.Calls()); n != 1 {
		t.Fatalf("primary called %d times, want 1", n)
	}
	if n := len(secondary.Calls()); n != 0 {
		t.Fatalf("secondary called %d times, want 0", n)
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "from secondary"},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from secondary" {
		t.Fatalf("content = %q, want from secondary", resp.Content)
	}
}

func TestLLMFallback_Complete_ModelOverrideStaysOnPrimary(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "from secondary"},
	}

	fb := NewLLMFallback(primary, "gemini", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("openai", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{Model: "gemini-2.5-pro"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from secondary" {
		t.Fatalf("content = %q, want from secondary", resp.Content)
	}
	if got := primary.Calls()[0].Req.Model; got != "gemini-2.5-pro" {
		t.Errorf("primary model = %q, want gemini-2.5-pro", got)
	}
	if got := secondary.Calls()[0].Req.Model; got != "" {
		t.Errorf("fallback model = %q, want its configured default", got)
	}
}

func TestLLMFallback_Complete_NilResponseFailsOver(t *testing.T) {
	primary := &llmmock.Provider{}
	secondary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "ok"},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("content = %q, want ok", resp.Content)
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{CompleteErr: errors.New("secondary down")}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if len(primary.Calls()) != 1 || len(secondary.Calls()) != 1 {
		t.Error("each backend should be tried exactly once")
	}
}

func TestLLMFallback_OpenBreakerShortCircuits(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("down")}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})

	_, _ = fb.Complete(context.Background(), llm.CompletionRequest{})
	if fb.Healthy() {
		t.Fatal("expected the only backend to be open")
	}

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if n := len(primary.Calls()); n != 1 {
		t.Errorf("primary called %d times, want 1 (open breaker skips the call)", n)
	}
}

func TestLLMFallback_CountTokensAndCapabilities(t *testing.T) {
	primary := &llmmock.Provider{
		TokenCount:        42,
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128_000, SupportsStructuredOutput: true},
	}
	secondary := &llmmock.Provider{TokenCount: 7}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	count, err := fb.CountTokens([]llm.Message{{Role: "user", Content: "test"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
	caps := fb.Capabilities()
	if caps.ContextWindow != 128_000 || !caps.SupportsStructuredOutput {
		t.Errorf("Capabilities() = %+v", caps)
	}
	if names := fb.Names(); len(names) != 2 || names[1] != "secondary" {
		t.Errorf("Names() = %v", names)
	}
}

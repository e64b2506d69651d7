package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/voxpulse/pkg/provider/llm"
)

// errEmptyResponse is reported for a backend that returned neither a
// response nor an error.
var errEmptyResponse = errors.New("provider returned no response")

// LLMFallback implements [llm.Provider] with failover across an ordered list
// of LLM backends. Each backend has its own circuit breaker; when the primary
// fails or its breaker is open, the next healthy backend is tried once.
//
// A [llm.CompletionRequest.Model] override names a model of the primary
// backend. Fallbacks always receive the request with the override cleared
// and answer with their own configured model.
type LLMFallback struct {
	group *FallbackGroup[llmBackend]
}

type llmBackend struct {
	provider llm.Provider
	primary  bool
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(llmBackend{provider: primary, primary: true}, primaryName, cfg),
	}
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, llmBackend{provider: provider})
}

// Complete sends the request to the first healthy provider and returns its
// response.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(b llmBackend) (*llm.CompletionResponse, error) {
		r := req
		if !b.primary {
			r.Model = ""
		}
		resp, err := b.provider.Complete(ctx, r)
		if err == nil && resp == nil {
			return nil, errEmptyResponse
		}
		return resp, err
	})
}

// CountTokens uses the primary's estimate. Counting is local and does not
// participate in failover.
func (f *LLMFallback) CountTokens(messages []llm.Message) (int, error) {
	return f.group.Primary().provider.CountTokens(messages)
}

// Capabilities returns the capabilities of the primary.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	return f.group.Primary().provider.Capabilities()
}

// Healthy reports whether any backend's breaker admits calls.
func (f *LLMFallback) Healthy() bool {
	return f.group.Healthy()
}

// Names returns the backend names in attempt order.
func (f *LLMFallback) Names() []string {
	return f.group.Names()
}

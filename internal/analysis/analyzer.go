// Package analysis sends call transcripts to an LLM and turns the reply into
// a [types.AnalysisResult].
//
// The contract is total: [Analyzer.Analyze] always returns a
// usable result. Whenever the provider is missing, errors, or replies with
// something that does not satisfy the schema, the caller receives
// [Fallback] instead. There are no retries and no caching; every call is an
// independent request.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voxpulse/internal/observe"
	"github.com/MrWong99/voxpulse/pkg/provider/llm"
	"github.com/MrWong99/voxpulse/pkg/types"
)

// ErrUnavailable wraps every reason an analysis fell back.
var ErrUnavailable = errors.New("analysis unavailable")

// ErrNoProvider is reported when no LLM provider is configured, typically
// because no API key was supplied.
var ErrNoProvider = errors.New("no llm provider configured")

// Fallback returns the fixed result used whenever analysis cannot complete.
// Each call returns a fresh value; callers may modify it freely.
func Fallback() types.AnalysisResult {
	return types.AnalysisResult{
		Summary:        "Could not analyze transcript. Please check your API key.",
		SentimentScore: 50,
		SentimentLabel: types.SentimentNeutral,
		ActionItems:    []string{"Retry analysis later"},
		KeyTopics:      []string{"Error"},
	}
}

// Analyzer is the analysis requestor. It is safe for concurrent use; calls
// share no mutable state.
type Analyzer struct {
	provider     llm.Provider
	providerName string
	temperature  float64
	maxTokens    int
	metrics      *observe.Metrics
}

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithProviderName sets the label used in logs and metrics.
func WithProviderName(name string) Option {
	return func(a *Analyzer) { a.providerName = name }
}

// WithTemperature sets the sampling temperature. Zero keeps the provider default.
func WithTemperature(t float64) Option {
	return func(a *Analyzer) { a.temperature = t }
}

// WithMaxTokens caps the completion length. Zero keeps the provider default.
func WithMaxTokens(n int) Option {
	return func(a *Analyzer) { a.maxTokens = n }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// New returns an Analyzer backed by provider. A nil provider is accepted and
// makes every call return [Fallback].
func New(provider llm.Provider, opts ...Option) *Analyzer {
	a := &Analyzer{provider: provider, providerName: "llm"}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Configured reports whether a provider is attached.
func (a *Analyzer) Configured() bool {
	return a.provider != nil
}

// CallOption adjusts a single analysis call.
type CallOption func(*callConfig)

type callConfig struct {
	model string
}

// WithModel asks the provider to use model for this call only. An empty
// name keeps the provider's configured model.
func WithModel(model string) CallOption {
	return func(c *callConfig) { c.model = model }
}

// Analyze returns the analysis of transcript, or [Fallback] on any failure.
func (a *Analyzer) Analyze(ctx context.Context, transcript string, opts ...CallOption) types.AnalysisResult {
	res, _ := a.AnalyzeDetailed(ctx, transcript, opts...)
	return res
}

// AnalyzeDetailed is [Analyzer.Analyze] plus the reason for a fallback. The
// result is always usable; a non-nil error wraps [ErrUnavailable] and means
// the result is [Fallback].
func (a *Analyzer) AnalyzeDetailed(ctx context.Context, transcript string, opts ...CallOption) (types.AnalysisResult, error) {
	var cc callConfig
	for _, o := range opts {
		o(&cc)
	}

	ctx, span := observe.StartSpan(ctx, "analysis.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", a.providerName),
		attribute.Int("transcript.length", len(transcript)),
	)
	if cc.model != "" {
		span.SetAttributes(attribute.String("llm.model", cc.model))
	}

	res, err := a.run(ctx, transcript, cc)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		observe.SpanError(span, err)
		observe.Logger(ctx).Warn("transcript analysis fell back",
			"provider", a.providerName, "err", err)
		a.metrics.RecordAnalysis(ctx, observe.OutcomeFallback)
		span.SetAttributes(attribute.String("analysis.outcome", observe.OutcomeFallback))
		return Fallback(), err
	}

	a.metrics.RecordAnalysis(ctx, observe.OutcomeOK)
	span.SetAttributes(
		attribute.String("analysis.outcome", observe.OutcomeOK),
		attribute.Int("analysis.sentiment_score", res.SentimentScore),
	)
	return res, nil
}

// run performs one request/response cycle.
func (a *Analyzer) run(ctx context.Context, transcript string, cc callConfig) (res types.AnalysisResult, err error) {
	if a.provider == nil {
		return types.AnalysisResult{}, ErrNoProvider
	}

	// A misbehaving provider must not take the caller down with it.
	defer func() {
		if r := recover(); r != nil {
			a.metrics.RecordProviderError(ctx, a.providerName, "panic")
			err = fmt.Errorf("analysis: provider panic: %v", r)
		}
	}()

	format, err := responseFormat()
	if err != nil {
		return types.AnalysisResult{}, err
	}

	req := llm.CompletionRequest{
		Messages:       []llm.Message{{Role: "user", Content: BuildPrompt(transcript)}},
		Temperature:    a.temperature,
		MaxTokens:      a.maxTokens,
		ResponseFormat: format,
		Model:          cc.model,
	}

	start := time.Now()
	resp, err := a.provider.Complete(ctx, req)
	a.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		a.metrics.RecordProviderError(ctx, a.providerName, "request")
		return types.AnalysisResult{}, fmt.Errorf("analysis: complete: %w", err)
	}
	if resp == nil {
		a.metrics.RecordProviderError(ctx, a.providerName, "empty")
		return types.AnalysisResult{}, fmt.Errorf("analysis: complete: %w", errNoResponse)
	}

	res, err = parseResult(resp.Content)
	if err != nil {
		a.metrics.RecordProviderError(ctx, a.providerName, "decode")
		return types.AnalysisResult{}, fmt.Errorf("analysis: decode reply (finish_reason=%q): %w", resp.FinishReason, err)
	}
	return res, nil
}

var errNoResponse = errors.New("no response from provider")

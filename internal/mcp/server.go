// Package mcp exposes the call log to MCP clients. The server offers four
// tools: list_calls, get_call, analyze_call and call_stats.
//
// Usage:
//
//	srv := mcp.New(store, analyst)
//	mux.Handle("/mcp", srv.Handler())
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/voxpulse/internal/calls"
	"github.com/MrWong99/voxpulse/internal/dashboard"
	"github.com/MrWong99/voxpulse/internal/search"
	"github.com/MrWong99/voxpulse/pkg/types"
)

// ServerName is the implementation name announced during initialization.
const ServerName = "voxpulse"

// Server wraps an MCP server bound to a dashboard store.
type Server struct {
	store        *dashboard.Store
	analyst      *dashboard.Analyst
	activeAgents int
	version      string
	search       *search.Matcher

	srv *mcpsdk.Server
}

// Option configures a [Server].
type Option func(*Server)

// WithVersion sets the announced server version.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithActiveAgents sets the agent count reported by call_stats. Values
// below one keep the default.
func WithActiveAgents(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.activeAgents = n
		}
	}
}

// WithSearch overrides the matcher behind list_calls' query argument.
func WithSearch(m *search.Matcher) Option {
	return func(s *Server) { s.search = m }
}

// New builds the MCP server and registers its tools.
func New(store *dashboard.Store, analyst *dashboard.Analyst, opts ...Option) *Server {
	s := &Server{
		store:        store,
		analyst:      analyst,
		activeAgents: dashboard.DefaultActiveAgents,
		version:      "dev",
	}
	for _, o := range opts {
		o(s)
	}
	if s.search == nil {
		s.search = search.New()
	}
	s.srv = mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: s.version}, nil)

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "list_calls",
		Description: "List logged calls, newest first. Optionally filter by status or a search query.",
	}, s.listCalls)
	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "get_call",
		Description: "Fetch one call including its transcript and analysis.",
	}, s.getCall)
	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "analyze_call",
		Description: "Run transcript analysis for a call. Set force to re-run a finished analysis.",
	}, s.analyzeCall)
	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "call_stats",
		Description: "Aggregate statistics over the call log.",
	}, s.callStats)
	return s
}

// Handler serves the streamable HTTP transport. Every session shares the
// same server.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.srv }, nil)
}

type listCallsInput struct {
	Status string `json:"status,omitempty" jsonschema:"only return calls with this status (completed, missed, ongoing, failed)"`
	Query  string `json:"query,omitempty" jsonschema:"free text matched against id, phone, names and key topics; tolerates misspellings"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of calls to return, 0 for all"`
}

type listCallsOutput struct {
	Calls []callSummary `json:"calls"`
}

type callSummary struct {
	ID              string `json:"id"`
	CustomerName    string `json:"customerName"`
	AgentName       string `json:"agentName"`
	AgentType       string `json:"agentType"`
	Status          string `json:"status"`
	DurationSeconds int    `json:"durationSeconds"`
	Timestamp       string `json:"timestamp"`
	HasTranscript   bool   `json:"hasTranscript"`
	AnalysisState   string `json:"analysisState"`
}

type idInput struct {
	ID string `json:"id" jsonschema:"the call id, e.g. call_x92k20"`
}

type analyzeInput struct {
	ID    string `json:"id" jsonschema:"the call id"`
	Force bool   `json:"force,omitempty" jsonschema:"re-run even when an analysis already exists"`
}

type callDetail struct {
	Call       callSummary     `json:"call"`
	Transcript string          `json:"transcript,omitempty"`
	Analysis   *analysisOutput `json:"analysis,omitempty"`
}

type analysisOutput struct {
	Summary        string   `json:"summary"`
	SentimentScore int      `json:"sentimentScore"`
	SentimentLabel string   `json:"sentimentLabel"`
	ActionItems    []string `json:"actionItems"`
	KeyTopics      []string `json:"keyTopics"`
}

func (s *Server) listCalls(_ context.Context, _ *mcpsdk.CallToolRequest, in listCallsInput) (*mcpsdk.CallToolResult, listCallsOutput, error) {
	if in.Status != "" && !types.CallStatus(in.Status).IsValid() {
		return nil, listCallsOutput{}, fmt.Errorf("unknown status %q", in.Status)
	}
	out := listCallsOutput{Calls: []callSummary{}}
	for _, r := range s.search.Calls(in.Query, s.store.Calls()) {
		if in.Status != "" && string(r.Status) != in.Status {
			continue
		}
		out.Calls = append(out.Calls, summarize(r))
		if in.Limit > 0 && len(out.Calls) == in.Limit {
			break
		}
	}
	return nil, out, nil
}

func (s *Server) getCall(_ context.Context, _ *mcpsdk.CallToolRequest, in idInput) (*mcpsdk.CallToolResult, callDetail, error) {
	r, err := s.store.Call(in.ID)
	if err != nil {
		return nil, callDetail{}, err
	}
	return nil, detail(r), nil
}

func (s *Server) analyzeCall(ctx context.Context, _ *mcpsdk.CallToolRequest, in analyzeInput) (*mcpsdk.CallToolResult, callDetail, error) {
	r, err := s.analyst.Analyze(ctx, in.ID, in.Force)
	if err != nil {
		return nil, callDetail{}, err
	}
	return nil, detail(r), nil
}

func (s *Server) callStats(context.Context, *mcpsdk.CallToolRequest, struct{}) (*mcpsdk.CallToolResult, dashboard.Stats, error) {
	return nil, dashboard.ComputeStats(s.store.Calls(), s.activeAgents), nil
}

func summarize(r calls.Record) callSummary {
	return callSummary{
		ID:              r.ID,
		CustomerName:    r.CustomerName,
		AgentName:       r.AgentName,
		AgentType:       string(r.AgentType),
		Status:          string(r.Status),
		DurationSeconds: r.DurationSeconds,
		Timestamp:       r.Timestamp.UTC().Format(time.RFC3339),
		HasTranscript:   r.HasTranscript(),
		AnalysisState:   string(r.Analysis.State()),
	}
}

func detail(r calls.Record) callDetail {
	d := callDetail{Call: summarize(r), Transcript: r.Transcript}
	if res, ok := r.Analysis.Result(); ok {
		d.Analysis = &analysisOutput{
			Summary:        res.Summary,
			SentimentScore: res.SentimentScore,
			SentimentLabel: string(res.SentimentLabel),
			ActionItems:    nonNil(res.ActionItems),
			KeyTopics:      nonNil(res.KeyTopics),
		}
	}
	return d
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Package server exposes the dashboard over HTTP: a JSON API, a WebSocket
// feed of state changes, the MCP endpoint, health probes and the Prometheus
// scrape endpoint.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voxpulse/internal/calls"
	"github.com/MrWong99/voxpulse/internal/dashboard"
	"github.com/MrWong99/voxpulse/internal/health"
	"github.com/MrWong99/voxpulse/internal/observe"
	"github.com/MrWong99/voxpulse/internal/search"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Config holds the dependencies of a [Server].
type Config struct {
	Store     *dashboard.Store
	Analyst   *dashboard.Analyst
	Simulator *dashboard.Simulator

	// Health serves /healthz and /readyz. Nil skips the probes.
	Health *health.Handler

	// MCP is mounted at MCPPath when set.
	MCP     http.Handler
	MCPPath string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// MetricsHandler serves /metrics. Defaults to promhttp.Handler().
	MetricsHandler http.Handler

	// Search filters GET /api/calls?q=. Defaults to search.New().
	Search *search.Matcher

	ActiveAgents int
	DemoEmail    string

	// EventBuffer bounds the undelivered events per WebSocket client.
	// Default: 32.
	EventBuffer int
}

// Server routes HTTP requests to the dashboard.
type Server struct {
	cfg     Config
	handler http.Handler
}

// New builds the route table.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}
	if cfg.ActiveAgents == 0 {
		cfg.ActiveAgents = dashboard.DefaultActiveAgents
	}
	if cfg.Search == nil {
		cfg.Search = search.New()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 32
	}
	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/session/login", s.login)
	mux.HandleFunc("POST /api/session/logout", s.logout)
	mux.HandleFunc("GET /api/state", s.getState)
	mux.HandleFunc("PUT /api/state/tab", s.setTab)
	mux.HandleFunc("POST /api/state/dark-mode", s.toggleDarkMode)
	mux.HandleFunc("GET /api/calls", s.listCalls)
	mux.HandleFunc("POST /api/calls/simulate", s.simulate)
	mux.HandleFunc("GET /api/calls/{id}", s.getCall)
	mux.HandleFunc("POST /api/calls/{id}/analyze", s.analyzeCall)
	mux.HandleFunc("GET /api/stats", s.stats)
	mux.HandleFunc("GET /api/charts/weekly", s.weekly)
	mux.HandleFunc("GET /api/analytics", s.analytics)
	mux.HandleFunc("GET /api/settings", s.getSettings)
	mux.HandleFunc("PUT /api/settings", s.putSettings)
	mux.HandleFunc("GET /api/events", s.events)
	mux.Handle("GET /metrics", cfg.MetricsHandler)
	if cfg.Health != nil {
		cfg.Health.Register(mux)
	}
	if cfg.MCP != nil {
		path := cfg.MCPPath
		if path == "" {
			path = "/mcp"
		}
		mux.Handle(path, cfg.MCP)
	}

	s.handler = observe.Middleware(cfg.Metrics)(mux)
	return s
}

// Handler returns the root handler including the observability middleware.
func (s *Server) Handler() http.Handler { return s.handler }

// CallView is a record plus the presentation fields the UI renders.
type CallView struct {
	calls.Record
	StatusColor    dashboard.Color `json:"statusColor"`
	Duration       string          `json:"duration"`
	SentimentColor dashboard.Color `json:"sentimentColor,omitempty"`
}

func viewOf(r calls.Record) CallView {
	v := CallView{
		Record:      r,
		StatusColor: dashboard.StatusColor(r.Status),
		Duration:    dashboard.FormatDuration(r.DurationSeconds),
	}
	if res, ok := r.Analysis.Result(); ok {
		v.SentimentColor = dashboard.SentimentColor(res.SentimentScore)
	}
	return v
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Email == "" {
		req.Email = s.cfg.DemoEmail
	}
	s.dispatch(w, r, dashboard.Login{Email: req.Email, Password: req.Password})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, dashboard.Logout{})
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Store.Snapshot())
}

func (s *Server) setTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab dashboard.Tab `json:"tab"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.dispatch(w, r, dashboard.SetTab{Tab: req.Tab})
}

func (s *Server) toggleDarkMode(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, dashboard.ToggleDarkMode{})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, a dashboard.Action) {
	st, err := s.cfg.Store.Dispatch(r.Context(), a)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listCalls(w http.ResponseWriter, r *http.Request) {
	rs := s.cfg.Search.Calls(r.URL.Query().Get("q"), s.cfg.Store.Calls())
	out := make([]CallView, len(rs))
	for i, rec := range rs {
		out[i] = viewOf(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getCall(w http.ResponseWriter, r *http.Request) {
	rec, err := s.cfg.Store.Call(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(rec))
}

func (s *Server) analyzeCall(w http.ResponseWriter, r *http.Request) {
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("force: %w", err))
			return
		}
		force = b
	}
	rec, err := s.cfg.Analyst.Analyze(r.Context(), r.PathValue("id"), force)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(rec))
}

func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Simulator.Start(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ringing"})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dashboard.ComputeStats(s.cfg.Store.Calls(), s.cfg.ActiveAgents))
}

func (s *Server) weekly(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dashboard.WeeklyVolume())
}

func (s *Server) analytics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dashboard.AnalyticsFixtures())
}

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Store.Snapshot().Settings)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var req dashboard.Settings
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	st, err := s.cfg.Store.Dispatch(r.Context(), dashboard.UpdateSettings{Settings: req})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st.Settings)
}

// statusFor maps dashboard errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrCallNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrAnalysisInFlight),
		errors.Is(err, dashboard.ErrAlreadyAnalyzed),
		errors.Is(err, dashboard.ErrSimulationInFlight),
		errors.Is(err, dashboard.ErrDuplicateCall):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrNoTranscript):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dashboard.ErrInvalidTab):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. With optional set an empty body is
// accepted.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voxpulse/internal/app"
	"github.com/MrWong99/voxpulse/internal/calls"
	"github.com/MrWong99/voxpulse/internal/config"
	"github.com/MrWong99/voxpulse/pkg/provider/llm"
	llmmock "github.com/MrWong99/voxpulse/pkg/provider/llm/mock"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// testConfig returns a minimal config with defaults applied.
func testConfig() *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		MCP:    config.MCPConfig{Enabled: true},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

// recordingMirror is an in-memory calls.Mirror.
type recordingMirror struct {
	mu      sync.Mutex
	resets  int
	upserts []string
	pingErr error
}

func (m *recordingMirror) Reset(context.Context, []calls.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

func (m *recordingMirror) Upsert(_ context.Context, r calls.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, r.ID)
	return nil
}

func (m *recordingMirror) Ping(context.Context) error { return m.pingErr }

func (m *recordingMirror) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets, len(m.upserts)
}

func completion(content string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: content, FinishReason: "stop"}
}

func newApp(t *testing.T, cfg *config.Config, providers *app.Providers, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{app.WithNow(func() time.Time { return testNow })}, opts...)
	a, err := app.New(context.Background(), cfg, providers, opts...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNew_WithoutProvider(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(), nil)

	if names := a.ProviderNames(); len(names) != 0 {
		t.Errorf("ProviderNames() = %v, want none", names)
	}
	if got := len(a.Store().Calls()); got != 4 {
		t.Errorf("seeded calls = %d, want 4", got)
	}

	rec := get(t, a.Handler(), "/readyz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("/readyz = %d %s, want degraded 200", rec.Code, rec.Body)
	}
}

func TestNew_FallbackChainOrder(t *testing.T) {
	t.Parallel()
	providers := &app.Providers{
		Primary: app.NamedLLM{Name: "gemini", Provider: &llmmock.Provider{}},
		Fallbacks: []app.NamedLLM{
			{Name: "openai", Provider: &llmmock.Provider{}},
			{Name: "skipped"},
		},
	}
	a := newApp(t, testConfig(), providers)

	got := a.ProviderNames()
	if len(got) != 2 || got[0] != "gemini" || got[1] != "openai" {
		t.Errorf("ProviderNames() = %v, want [gemini openai]", got)
	}
	if rec := get(t, a.Handler(), "/readyz"); strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("/readyz = %s, want ok", rec.Body)
	}
}

func TestNew_AnalysisThroughProvider(t *testing.T) {
	t.Parallel()
	mock := &llmmock.Provider{}
	mock.CompleteResponse = completion(`{"summary":"Pricing call.","sentimentScore":82,"sentimentLabel":"Positive","actionItems":["Send quote"],"keyTopics":["Pricing"]}`)
	a := newApp(t, testConfig(), &app.Providers{Primary: app.NamedLLM{Name: "mock", Provider: mock}})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/calls/call_x92k20/analyze", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rec.Code, rec.Body)
	}
	c, err := a.Store().Call("call_x92k20")
	if err != nil {
		t.Fatal(err)
	}
	res, ok := c.Analysis.Result()
	if !ok || res.SentimentScore != 82 {
		t.Errorf("analysis = %+v", res)
	}
}

func send(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestNew_ProModelStaysWithPrimaryOnFailover(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Analysis.ProModel = "gemini-2.5-pro"
	primary := &llmmock.Provider{CompleteErr: errors.New("503 overloaded")}
	fallback := &llmmock.Provider{
		CompleteResponse: completion(`{"summary":"Pricing call.","sentimentScore":82,"sentimentLabel":"Positive","actionItems":["Send quote"],"keyTopics":["Pricing"]}`),
	}
	a := newApp(t, cfg, &app.Providers{
		Primary:   app.NamedLLM{Name: "gemini", Provider: primary},
		Fallbacks: []app.NamedLLM{{Name: "openai", Provider: fallback}},
	})

	if rec := send(t, a.Handler(), http.MethodPut, "/api/settings", `{"emailReports":true,"pushNotifications":true,"useProModel":true}`); rec.Code != http.StatusOK {
		t.Fatalf("PUT /api/settings = %d: %s", rec.Code, rec.Body)
	}
	if rec := send(t, a.Handler(), http.MethodPost, "/api/calls/call_x92k20/analyze", ""); rec.Code != http.StatusOK {
		t.Fatalf("analyze = %d: %s", rec.Code, rec.Body)
	}

	if got := primary.Calls()[0].Req.Model; got != "gemini-2.5-pro" {
		t.Errorf("primary model = %q, want gemini-2.5-pro", got)
	}
	fc := fallback.Calls()
	if len(fc) != 1 {
		t.Fatalf("fallback called %d times, want 1", len(fc))
	}
	if fc[0].Req.Model != "" {
		t.Errorf("fallback model = %q, want its configured default", fc[0].Req.Model)
	}
	c, err := a.Store().Call("call_x92k20")
	if err != nil {
		t.Fatal(err)
	}
	if res, ok := c.Analysis.Result(); !ok || res.SentimentScore != 82 {
		t.Errorf("analysis = %+v, want the fallback's result", res)
	}
}

func TestNew_OpenBreakerDegradesReadiness(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Analysis.Breaker = config.BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour}
	primary := &llmmock.Provider{CompleteErr: errors.New("quota exceeded")}
	a := newApp(t, cfg, &app.Providers{Primary: app.NamedLLM{Name: "gemini", Provider: primary}})

	if rec := get(t, a.Handler(), "/readyz"); strings.Contains(rec.Body.String(), "degraded") {
		t.Fatalf("/readyz before any failure = %s, want ok", rec.Body)
	}
	send(t, a.Handler(), http.MethodPost, "/api/calls/call_x92k20/analyze", "")

	rec := get(t, a.Handler(), "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"llm":"degraded: circuit breaker is open"`) {
		t.Errorf("/readyz = %s, want llm degraded by the open breaker", rec.Body)
	}
}

func TestNew_MCPDisabled(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MCP.Enabled = false
	a := newApp(t, cfg, nil)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/mcp status = %d, want 404 when disabled", rec.Code)
	}
}

func TestNew_MirrorPingIsOptional(t *testing.T) {
	t.Parallel()
	m := &recordingMirror{pingErr: errors.New("connection refused")}
	a := newApp(t, testConfig(), nil, app.WithMirror(m))

	rec := get(t, a.Handler(), "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200 with a degraded mirror", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "postgres") {
		t.Errorf("/readyz body %s does not mention postgres", rec.Body)
	}
}

func TestRun_ServesAndMirrors(t *testing.T) {
	t.Parallel()
	m := &recordingMirror{}
	a := newApp(t, testConfig(), nil, app.WithMirror(m))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ad := a.Addr(); ad != nil {
			addr = ad.String()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if addr == "" {
		cancel()
		t.Fatal("server never bound")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	if err != nil {
		cancel()
		t.Fatalf("GET /healthz: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if resets, _ := m.counts(); resets == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if resets, _ := m.counts(); resets != 1 {
		t.Errorf("mirror resets = %d, want 1", resets)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	a, err := app.New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

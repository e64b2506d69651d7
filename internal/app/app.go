// Package app wires all VoxPulse subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithMirror, WithNow,
// etc.). When an option is not provided, New creates real implementations
// from the config.
package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxpulse/internal/analysis"
	"github.com/MrWong99/voxpulse/internal/calls"
	"github.com/MrWong99/voxpulse/internal/config"
	"github.com/MrWong99/voxpulse/internal/dashboard"
	"github.com/MrWong99/voxpulse/internal/health"
	"github.com/MrWong99/voxpulse/internal/mcp"
	"github.com/MrWong99/voxpulse/internal/observe"
	"github.com/MrWong99/voxpulse/internal/resilience"
	"github.com/MrWong99/voxpulse/internal/server"
	"github.com/MrWong99/voxpulse/pkg/provider/llm"
)

// httpShutdownTimeout bounds the graceful HTTP drain once Run's context ends.
const httpShutdownTimeout = 5 * time.Second

// NamedLLM pairs a provider with the name used in logs, metrics and breakers.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// Providers holds the LLM backends built by main via the config registry.
// A nil Primary.Provider means analysis always falls back.
type Providers struct {
	Primary   NamedLLM
	Fallbacks []NamedLLM
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Injected or defaulted by options.
	mirror     calls.Mirror
	metrics    *observe.Metrics
	metricsH   http.Handler
	now        func() time.Time
	rng        calls.Rand
	level      *slog.LevelVar
	configPath string
	version    string

	// Subsystems, initialised in New and torn down in Shutdown.
	llm       *resilience.LLMFallback
	analyzer  *analysis.Analyzer
	store     *dashboard.Store
	simulator *dashboard.Simulator
	analyst   *dashboard.Analyst
	mcp       *mcp.Server
	health    *health.Handler
	server    *server.Server
	httpSrv   *http.Server

	mu   sync.Mutex
	addr net.Addr

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMirror injects a call mirror instead of opening one from
// mirror.postgres_dsn.
func WithMirror(m calls.Mirror) Option {
	return func(a *App) { a.mirror = m }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler sets the handler served on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// WithNow overrides the clock used for seed data and new calls.
func WithNow(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithRand overrides the randomness behind simulated calls.
func WithRand(r calls.Rand) Option {
	return func(a *App) { a.rng = r }
}

// WithLevelVar lets config reloads adjust the log level of the handler
// built by main.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithConfigPath enables hot reload of the config file at path while Run
// is active.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithVersion sets the version announced to MCP clients.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		now:       time.Now,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Mirror ───────────────────────────────────────────────────────
	if err := a.initMirror(ctx); err != nil {
		return nil, fmt.Errorf("app: init mirror: %w", err)
	}

	// ── 2. Analysis ─────────────────────────────────────────────────────
	a.initAnalysis()

	// ── 3. Dashboard ────────────────────────────────────────────────────
	a.store = dashboard.NewStore(dashboard.StoreConfig{
		Seed:    calls.Seed(a.now()),
		Mirror:  a.mirror,
		Metrics: a.metrics,
		Now:     a.now,
	})
	a.simulator = dashboard.NewSimulator(a.store, dashboard.SimulatorConfig{
		Delay: cfg.Dashboard.SimulateDelay,
		Now:   a.now,
		Rand:  a.rng,
	})
	a.analyst = dashboard.NewAnalyst(a.store, a.analyzer, cfg.Analysis.ProModel)

	// ── 4. MCP ──────────────────────────────────────────────────────────
	if cfg.MCP.Enabled {
		a.mcp = mcp.New(a.store, a.analyst,
			mcp.WithVersion(a.version),
			mcp.WithActiveAgents(cfg.Dashboard.ActiveAgents))
	}

	// ── 5. HTTP ─────────────────────────────────────────────────────────
	a.health = health.New(a.checkers()...)
	srvCfg := server.Config{
		Store:          a.store,
		Analyst:        a.analyst,
		Simulator:      a.simulator,
		Health:         a.health,
		Metrics:        a.metrics,
		MetricsHandler: a.metricsH,
		ActiveAgents:   cfg.Dashboard.ActiveAgents,
		DemoEmail:      cfg.Dashboard.DemoEmail,
	}
	if a.mcp != nil {
		srvCfg.MCP = a.mcp.Handler()
		srvCfg.MCPPath = cfg.MCP.Path
	}
	a.server = server.New(srvCfg)
	a.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initMirror opens the PostgreSQL mirror when configured and not injected.
func (a *App) initMirror(ctx context.Context) error {
	if a.mirror != nil {
		return nil
	}
	dsn := a.cfg.Mirror.PostgresDSN
	if dsn == "" {
		return nil
	}
	pm, err := calls.OpenPostgresMirror(ctx, dsn)
	if err != nil {
		return err
	}
	a.mirror = pm
	a.closers = append(a.closers, func() error {
		pm.Close()
		return nil
	})
	slog.Info("call mirror connected")
	return nil
}

// initAnalysis builds the provider fallback chain and the analyzer on top.
func (a *App) initAnalysis() {
	acfg := a.cfg.Analysis
	opts := []analysis.Option{
		analysis.WithTemperature(acfg.Temperature),
		analysis.WithMaxTokens(acfg.MaxTokens),
		analysis.WithMetrics(a.metrics),
	}

	primary := a.providers.Primary
	if primary.Provider == nil {
		slog.Warn("no llm provider configured, transcript analysis will always fall back")
		a.analyzer = analysis.New(nil, opts...)
		return
	}

	a.llm = resilience.NewLLMFallback(primary.Provider, primary.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  acfg.Breaker.MaxFailures,
			ResetTimeout: acfg.Breaker.ResetTimeout,
			HalfOpenMax:  acfg.Breaker.HalfOpenMax,
		},
		OnAttempt: func(name string, err error) {
			status := "ok"
			if err != nil {
				status = "error"
			}
			a.metrics.RecordProviderRequest(context.Background(), name, status)
		},
	})
	for _, fb := range a.providers.Fallbacks {
		if fb.Provider == nil {
			continue
		}
		a.llm.AddFallback(fb.Name, fb.Provider)
	}
	opts = append(opts, analysis.WithProviderName(primary.Name))
	a.analyzer = analysis.New(a.llm, opts...)
}

// checkers returns the readiness checks for /readyz.
func (a *App) checkers() []health.Checker {
	cs := []health.Checker{{
		Name: "dashboard",
		Check: func(context.Context) error {
			if a.store == nil {
				return errors.New("store not initialised")
			}
			return nil
		},
	}, {
		Name:     "llm",
		Optional: true,
		Check: func(context.Context) error {
			if a.llm == nil {
				return analysis.ErrNoProvider
			}
			if !a.llm.Healthy() {
				return resilience.ErrCircuitOpen
			}
			return nil
		},
	}}
	if p, ok := a.mirror.(interface{ Ping(context.Context) error }); ok {
		cs = append(cs, health.Checker{Name: "postgres", Optional: true, Check: p.Ping})
	}
	return cs
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Store returns the dashboard store.
func (a *App) Store() *dashboard.Store { return a.store }

// ProviderNames lists the analysis providers in attempt order. Empty when no
// provider is configured.
func (a *App) ProviderNames() []string {
	if a.llm == nil {
		return nil
	}
	return a.llm.Names()
}

// Addr returns the bound listen address once Run has started serving, or
// nil before that.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP, drains the mirror queue and watches the config file until
// ctx is cancelled. A cancelled context is not an error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.httpSrv.Addr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("app: watch config: %w", err)
		}
		defer w.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.store.RunMirror(gctx)
	})
	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		if err := a.serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), httpShutdownTimeout)
		defer cancel()
		return a.httpSrv.Shutdown(sctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) serve(ln net.Listener) error {
	t := a.cfg.Server.TLS
	if t == nil {
		return a.httpSrv.Serve(ln)
	}
	a.httpSrv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return a.httpSrv.ServeTLS(ln, t.CertFile, t.KeyFile)
}

// applyConfig pushes hot-reloadable settings into the running subsystems.
func (a *App) applyConfig(old, updated *config.Config) {
	d := config.Diff(old, updated)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", string(d.NewLogLevel))
	}
	if d.SimulateDelayChanged {
		a.simulator.SetDelay(d.NewSimulateDelay)
		slog.Info("simulate delay changed", "delay", a.simulator.Delay())
	}
	if d.ProModelChanged {
		a.analyst.SetProModel(d.NewProModel)
		slog.Info("pro model changed", "model", d.NewProModel)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart to take effect", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the simulator and the store, then runs the closers in
// order. It respects the context deadline: if ctx expires before all
// closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.simulator.Close()
		a.store.Close()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

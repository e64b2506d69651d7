// Command voxpulse is the main entry point for the VoxPulse call analytics
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voxpulse/internal/app"
	"github.com/MrWong99/voxpulse/internal/config"
	"github.com/MrWong99/voxpulse/internal/observe"
	"github.com/MrWong99/voxpulse/pkg/provider/llm"
	"github.com/MrWong99/voxpulse/pkg/provider/llm/anyllm"
	"github.com/MrWong99/voxpulse/pkg/provider/llm/mock"
	"github.com/MrWong99/voxpulse/pkg/provider/llm/openai"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", true, "reload hot-reloadable settings when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxpulse: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxpulse: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(newLogger(level))

	slog.Info("voxpulse starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observe.Setup(ctx, observe.TelemetryConfig{
		ServiceName:       "voxpulse",
		ServiceVersion:    version,
		RuntimeCollectors: true,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, providers)

	opts := []app.Option{
		app.WithLevelVar(level),
		app.WithVersion(version),
		app.WithMetrics(telemetry.Metrics),
		app.WithMetricsHandler(telemetry.Handler),
	}
	if *watch {
		opts = append(opts, app.WithConfigPath(*configPath))
	}
	application, err := app.New(ctx, cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// keylessProviders run locally and need no API key.
var keylessProviders = map[string]bool{
	"ollama":    true,
	"llamacpp":  true,
	"llamafile": true,
	"mock":      true,
}

// registerBuiltinProviders wires all built-in LLM factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// openai goes through the official SDK for strict structured outputs.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// Everything else shares the any-llm pattern: optional APIKey + optional
	// BaseURL.
	for _, providerName := range []string{
		"gemini", "anthropic", "deepseek", "mistral", "groq",
		"ollama", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// mock answers every request with a fixed neutral analysis. Handy for
	// demos without network access.
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &mock.Provider{CompleteResponse: &llm.CompletionResponse{
			Content:      `{"summary":"Demo analysis.","sentimentScore":60,"sentimentLabel":"Neutral","actionItems":["Review call"],"keyTopics":["Demo"]}`,
			FinishReason: "stop",
		}}, nil
	})

	for _, name := range reg.LLMNames() {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

// buildProviders instantiates the primary LLM and its fallbacks. A primary
// that needs a key but has none is left unset so analysis degrades to the
// fallback result instead of failing at startup.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	primary, err := createLLM(reg, cfg.Providers.LLM)
	if err != nil {
		return nil, err
	}
	ps.Primary = primary

	for _, entry := range cfg.Providers.LLMFallbacks {
		fb, err := createLLM(reg, entry)
		if err != nil {
			return nil, err
		}
		if fb.Provider != nil {
			ps.Fallbacks = append(ps.Fallbacks, fb)
		}
	}
	return ps, nil
}

func createLLM(reg *config.Registry, entry config.ProviderEntry) (app.NamedLLM, error) {
	named := app.NamedLLM{Name: entry.Name}
	if entry.Name == "" {
		return named, nil
	}
	if entry.APIKey == "" && !keylessProviders[entry.Name] {
		slog.Warn("no api key for llm provider, skipping", "name", entry.Name, "env", config.APIKeyEnv)
		return named, nil
	}
	p, err := reg.CreateLLM(entry)
	switch {
	case errors.Is(err, config.ErrProviderNotRegistered):
		slog.Warn("llm provider not implemented, skipping", "name", entry.Name)
		return named, nil
	case err != nil:
		return named, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
	}
	named.Provider = p
	slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	return named, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, ps *app.Providers) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        VoxPulse, startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	llmName := cfg.Providers.LLM.Name
	if ps.Primary.Provider == nil {
		llmName = ""
	}
	printRow("LLM", providerLabel(llmName, cfg.Providers.LLM.Model))
	printRow("Fallbacks", fmt.Sprintf("%d", len(ps.Fallbacks)))
	if cfg.Analysis.ProModel != "" {
		printRow("Pro model", cfg.Analysis.ProModel)
	}
	if cfg.Mirror.PostgresDSN != "" {
		printRow("Mirror", "postgres")
	} else {
		printRow("Mirror", "(disabled)")
	}
	if cfg.MCP.Enabled {
		printRow("MCP", cfg.MCP.Path)
	} else {
		printRow("MCP", "(disabled)")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(name, model string) string {
	switch {
	case name == "":
		return "(not configured)"
	case model != "":
		return name + " / " + model
	default:
		return name
	}
}

func printRow(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optDuration parses a duration string such as "30s" from provider Options.
// Returns 0 when absent or malformed.
func optDuration(opts map[string]any, key string) time.Duration {
	d, err := time.ParseDuration(optString(opts, key))
	if err != nil {
		return 0
	}
	return d
}

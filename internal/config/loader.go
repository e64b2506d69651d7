package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidLLMProviders lists the provider names the default registry knows.
// Used by [Validate] to warn about unrecognised names.
var ValidLLMProviders = []string{"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "mock"}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr    = ":8080"
	DefaultLLMProvider   = "gemini"
	DefaultSimulateDelay = 2 * time.Second
	DefaultActiveAgents  = 3
	DefaultMCPPath       = "/mcp"
	DefaultDemoEmail     = "demo@voxpulse.ai"
)

// Load reads the YAML configuration file at path, fills defaults, resolves
// the API key from the environment and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	ApplyEnv(cfg, os.Getenv)
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. It does not consult the environment. An empty
// document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields that have a default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Providers.LLM.Name == "" {
		cfg.Providers.LLM.Name = DefaultLLMProvider
	}
	if cfg.Dashboard.SimulateDelay == 0 {
		cfg.Dashboard.SimulateDelay = DefaultSimulateDelay
	}
	if cfg.Dashboard.ActiveAgents == 0 {
		cfg.Dashboard.ActiveAgents = DefaultActiveAgents
	}
	if cfg.Dashboard.DemoEmail == "" {
		cfg.Dashboard.DemoEmail = DefaultDemoEmail
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = DefaultMCPPath
	}
}

// ApplyEnv copies the API_KEY environment variable into the primary LLM
// entry when the file leaves its api_key empty.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg.Providers.LLM.APIKey == "" {
		cfg.Providers.LLM.APIKey = getenv(APIKeyEnv)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("providers.llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		prefix := fmt.Sprintf("providers.llm_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(prefix, fb.Name)
	}

	a := cfg.Analysis
	if a.Temperature < 0 || a.Temperature > 2 {
		errs = append(errs, fmt.Errorf("analysis.temperature %.2f is out of range [0, 2]", a.Temperature))
	}
	if a.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_tokens %d must not be negative", a.MaxTokens))
	}
	if a.Breaker.MaxFailures < 0 || a.Breaker.HalfOpenMax < 0 || a.Breaker.ResetTimeout < 0 {
		errs = append(errs, errors.New("analysis.breaker values must not be negative"))
	}

	if cfg.Dashboard.SimulateDelay < 0 {
		errs = append(errs, fmt.Errorf("dashboard.simulate_delay %s must not be negative", cfg.Dashboard.SimulateDelay))
	}
	if cfg.Dashboard.ActiveAgents < 0 {
		errs = append(errs, fmt.Errorf("dashboard.active_agents %d must not be negative", cfg.Dashboard.ActiveAgents))
	}

	if cfg.MCP.Path != "" && !strings.HasPrefix(cfg.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not in
// [ValidLLMProviders].
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidLLMProviders, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidLLMProviders,
	)
}

package main

import (
	"testing"
	"time"

	"github.com/MrWong99/voxpulse/internal/config"
)

func TestBuildProviders(t *testing.T) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	tests := []struct {
		name          string
		cfg           config.ProvidersConfig
		wantPrimary   bool
		wantFallbacks int
	}{
		{
			name: "missing key leaves primary unset",
			cfg:  config.ProvidersConfig{LLM: config.ProviderEntry{Name: "gemini"}},
		},
		{
			name:        "keyless mock",
			cfg:         config.ProvidersConfig{LLM: config.ProviderEntry{Name: "mock"}},
			wantPrimary: true,
		},
		{
			name:        "openai with key",
			cfg:         config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"}},
			wantPrimary: true,
		},
		{
			name: "unregistered name is skipped",
			cfg: config.ProvidersConfig{
				LLM:          config.ProviderEntry{Name: "mock"},
				LLMFallbacks: []config.ProviderEntry{{Name: "acme", APIKey: "k"}, {Name: "mock"}},
			},
			wantPrimary:   true,
			wantFallbacks: 1,
		},
		{
			name: "empty config",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ps, err := buildProviders(&config.Config{Providers: tc.cfg}, reg)
			if err != nil {
				t.Fatalf("buildProviders: %v", err)
			}
			if got := ps.Primary.Provider != nil; got != tc.wantPrimary {
				t.Errorf("primary set = %v, want %v", got, tc.wantPrimary)
			}
			if len(ps.Fallbacks) != tc.wantFallbacks {
				t.Errorf("fallbacks = %d, want %d", len(ps.Fallbacks), tc.wantFallbacks)
			}
		})
	}
}

func TestOptHelpers(t *testing.T) {
	opts := map[string]any{"organization": "org-1", "timeout": "45s", "bad": 3}
	if got := optString(opts, "organization"); got != "org-1" {
		t.Errorf("optString = %q", got)
	}
	if got := optString(opts, "bad"); got != "" {
		t.Errorf("optString non-string = %q", got)
	}
	if got := optString(nil, "x"); got != "" {
		t.Errorf("optString nil map = %q", got)
	}
	if got := optDuration(opts, "timeout"); got != 45*time.Second {
		t.Errorf("optDuration = %v", got)
	}
	if got := optDuration(opts, "missing"); got != 0 {
		t.Errorf("optDuration missing = %v", got)
	}
}

func TestProviderLabel(t *testing.T) {
	if got := providerLabel("", "x"); got != "(not configured)" {
		t.Errorf("got %q", got)
	}
	if got := providerLabel("gemini", "gemini-2.5-flash"); got != "gemini / gemini-2.5-flash" {
		t.Errorf("got %q", got)
	}
}

package eventpush

import (
	"os"
	"path/filepath"
	"testing"

	"galaxy-core/internal/config"
)

func TestConfigFromServerFiltersTargets(t *testing.T) {
	scfg := config.ServerConfig{
		PushEnabled:     true,
		PushWorkers:     2,
		PushRetryMax:    3,
		PushRetryBaseMS: 200,
		PushTargetsJSON: `[
		  {"platform":"Discord","endpoint":"https://a","scope_type":"session","scope_value":"s1","event_allowlist":[" session_end "],"enabled":true},
		  {"platform":"feishu","endpoint":"","enabled":true},
		  {"platform":"discord","endpoint":"https://b","scope_type":"galaxy","enabled":true},
		  {"platform":"webhook","endpoint":"https://c","enabled":false}
		]`,
	}
	cfg, err := ConfigFromServer(scfg)
	if err != nil {
		t.Fatalf("config parse failed: %v", err)
	}
	if len(cfg.Targets) != 1 {
		t.Fatalf("expected 1 filtered target, got %d", len(cfg.Targets))
	}
	got := cfg.Targets[0]
	if got.Platform != "discord" || got.EventAllowlist[0] != "SESSION_END" {
		t.Fatalf("unexpected target: %+v", got)
	}
	if cfg.RetryBase.Milliseconds() != 200 || cfg.Workers != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestConfigFromServerDefaultsScopeToAll(t *testing.T) {
	cfg, err := ConfigFromServer(config.ServerConfig{
		PushEnabled:     true,
		PushTargetsJSON: `[{"platform":"webhook","endpoint":"https://hooks.example","enabled":true}]`,
	})
	if err != nil {
		t.Fatalf("config parse failed: %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].ScopeType != ScopeAll {
		t.Fatalf("unexpected targets: %+v", cfg.Targets)
	}
	if cfg.Workers != 2 || cfg.RetryBase <= 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestConfigFromServerUsesTargetsPathFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	fileJSON := `[{"platform":"discord","endpoint":"https://from-file","enabled":true}]`
	if err := os.WriteFile(path, []byte(fileJSON), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := ConfigFromServer(config.ServerConfig{
		PushEnabled:     true,
		PushTargetsPath: path,
		PushTargetsJSON: `[{"platform":"discord","endpoint":"https://from-env","enabled":true}]`,
	})
	if err != nil {
		t.Fatalf("config parse failed: %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Endpoint != "https://from-file" {
		t.Fatalf("expected endpoint from file, got %+v", cfg.Targets)
	}
}

func TestConfigFromServerErrors(t *testing.T) {
	if _, err := ConfigFromServer(config.ServerConfig{
		PushEnabled:     true,
		PushTargetsPath: filepath.Join(t.TempDir(), "missing.json"),
	}); err == nil {
		t.Fatal("expected read error for missing targets path")
	}
	if _, err := ConfigFromServer(config.ServerConfig{PushEnabled: true, PushTargetsJSON: "{"}); err == nil {
		t.Fatal("expected parse error")
	}
	cfg, err := ConfigFromServer(config.ServerConfig{PushTargetsJSON: "{"})
	if err != nil || cfg.Enabled {
		t.Fatalf("disabled push must ignore targets: %+v %v", cfg, err)
	}
}

func TestConfigFromServerRejectsUnknownKeys(t *testing.T) {
	_, err := ConfigFromServer(config.ServerConfig{
		PushEnabled:     true,
		PushTargetsJSON: `[{"platform":"webhook","endpoint":"https://x","enabeld":true}]`,
	})
	if err == nil {
		t.Fatal("expected error for misspelt key")
	}
}

func TestTargetNormalize(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		reason string
	}{
		{"ok", Target{Platform: " Webhook ", Endpoint: "https://x", Enabled: true}, ""},
		{"unknown platform", Target{Platform: "slack", Endpoint: "https://x", Enabled: true}, "unknown platform"},
		{"bare session scope", Target{Platform: "discord", Endpoint: "https://x", ScopeType: "session", Enabled: true}, "session scope without session id"},
		{"disabled", Target{Platform: "discord", Endpoint: "https://x"}, "disabled"},
	}
	for _, tt := range tests {
		got, reason := tt.target.normalize()
		if reason != tt.reason {
			t.Fatalf("%s: reason %q, want %q", tt.name, reason, tt.reason)
		}
		if reason == "" && (got.Platform != "webhook" || got.ScopeType != ScopeAll) {
			t.Fatalf("%s: unexpected target %+v", tt.name, got)
		}
	}
}

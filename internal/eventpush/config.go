package eventpush

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"galaxy-core/internal/config"

	"github.com/rs/zerolog/log"
)

func ConfigFromServer(cfg config.ServerConfig) (Config, error) {
	out := Config{
		Enabled:             cfg.PushEnabled,
		Workers:             cfg.PushWorkers,
		RetryMax:            cfg.PushRetryMax,
		RetryBase:           time.Duration(cfg.PushRetryBaseMS) * time.Millisecond,
		FailureThreshold:    3,
		CircuitOpenDuration: 30 * time.Second,
		RequestTimeout:      5 * time.Second,
		DispatchBuffer:      1024,
	}
	if !out.Enabled {
		return out, nil
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.RetryMax < 0 {
		out.RetryMax = 0
	}
	if out.RetryBase <= 0 {
		out.RetryBase = 500 * time.Millisecond
	}

	jsonRaw, err := loadTargetsJSON(cfg)
	if err != nil {
		return Config{}, err
	}
	if jsonRaw == "" {
		return out, nil
	}
	targets, err := parseTargetsJSON(jsonRaw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	return out, nil
}

func loadTargetsJSON(cfg config.ServerConfig) (string, error) {
	path := strings.TrimSpace(cfg.PushTargetsPath)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read push targets path %q: %w", path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(cfg.PushTargetsJSON), nil
}

var knownPlatforms = map[string]bool{"discord": true, "feishu": true, "webhook": true}

// parseTargetsJSON decodes the target list. Unknown keys are an error so a
// misspelt field never silently disables a target; unusable entries are
// logged and skipped.
func parseTargetsJSON(jsonRaw string) ([]Target, error) {
	dec := json.NewDecoder(strings.NewReader(jsonRaw))
	dec.DisallowUnknownFields()
	var targets []Target
	if err := dec.Decode(&targets); err != nil {
		return nil, fmt.Errorf("parse push targets: %w", err)
	}
	filtered := make([]Target, 0, len(targets))
	for i, target := range targets {
		target, reason := target.normalize()
		if reason != "" {
			if target.Enabled {
				log.Warn().Int("index", i).Str("platform", target.Platform).Str("reason", reason).Msg("push target skipped")
			}
			continue
		}
		filtered = append(filtered, target)
	}
	return filtered, nil
}

func (t Target) normalize() (Target, string) {
	t.Platform = strings.ToLower(strings.TrimSpace(t.Platform))
	t.Endpoint = strings.TrimSpace(t.Endpoint)
	t.ScopeType = strings.ToLower(strings.TrimSpace(t.ScopeType))
	t.ScopeValue = strings.TrimSpace(t.ScopeValue)
	if t.ScopeType == "" {
		t.ScopeType = ScopeAll
	}
	for i, name := range t.EventAllowlist {
		t.EventAllowlist[i] = strings.ToUpper(strings.TrimSpace(name))
	}
	switch {
	case !t.Enabled:
		return t, "disabled"
	case !knownPlatforms[t.Platform]:
		return t, "unknown platform"
	case t.Endpoint == "":
		return t, "missing endpoint"
	case t.ScopeType != ScopeAll && t.ScopeType != ScopeSession:
		return t, "unknown scope"
	case t.ScopeType == ScopeSession && t.ScopeValue == "":
		return t, "session scope without session id"
	}
	return t, ""
}

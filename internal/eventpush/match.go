package eventpush

import (
	"slices"
	"strings"

	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/gameclock"
)

// Wants reports whether ev should be delivered to t. Session-scoped targets
// only see their own session. An empty allowlist means every event except
// TIME_TICK, which goes out only when named.
func (t Target) Wants(ev eventbus.Event) bool {
	if !t.Enabled {
		return false
	}
	switch t.ScopeType {
	case ScopeAll:
	case ScopeSession:
		if t.ScopeValue == "" || t.ScopeValue != ev.SessionID {
			return false
		}
	default:
		return false
	}
	if len(t.EventAllowlist) == 0 {
		return !strings.EqualFold(ev.Event, gameclock.EventTimeTick)
	}
	return slices.ContainsFunc(t.EventAllowlist, func(name string) bool {
		return name != "" && strings.EqualFold(name, ev.Event)
	})
}

func matchTargets(targets []Target, ev eventbus.Event) []Target {
	var out []Target
	for _, t := range targets {
		if t.Wants(ev) {
			out = append(out, t)
		}
	}
	return out
}

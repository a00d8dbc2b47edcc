package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/ledger"

	"github.com/rs/zerolog/log"
)

const (
	EventCommandExecuted   = "COMMAND_EXECUTED"
	EventCommandFailed     = "COMMAND_FAILED"
	EventCommandRolledBack = "COMMAND_ROLLED_BACK"

	refType = "command"
)

var ErrInvalidDefinition = errors.New("invalid_command_definition")

type Ledger interface {
	Debit(ctx context.Context, c ledger.Charge) (ledger.Debit, error)
	Refund(ctx context.Context, d ledger.Debit) error
}

type Publisher interface {
	Publish(event, sessionID string, data any) eventbus.Event
}

type ExecStats struct {
	Executed   int64 `json:"executed"`
	Failed     int64 `json:"failed"`
	RolledBack int64 `json:"rolledBack"`
}

type Stats struct {
	Commands     int                  `json:"commands"`
	ByCostType   map[string]int       `json:"byCostType"`
	Capabilities map[string]int       `json:"capabilities"`
	Executions   map[string]ExecStats `json:"executions"`
}

type ExecutedEvent struct {
	CommandID   string           `json:"commandId"`
	ExecutionID string           `json:"executionId"`
	SessionID   string           `json:"sessionId"`
	ActorID     string           `json:"actorId"`
	Consumed    map[string]int64 `json:"consumed,omitempty"`
	Substituted bool             `json:"substituted,omitempty"`
}

type FailedEvent struct {
	CommandID string `json:"commandId"`
	SessionID string `json:"sessionId"`
	ActorID   string `json:"actorId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type RolledBackEvent struct {
	CommandID   string           `json:"commandId"`
	ExecutionID string           `json:"executionId"`
	SessionID   string           `json:"sessionId"`
	ActorID     string           `json:"actorId"`
	Restored    map[string]int64 `json:"restored,omitempty"`
	Message     string           `json:"message"`
	RefundError string           `json:"refundError,omitempty"`
}

// Registry is safe for concurrent use. Catalogue changes take a write lock;
// Execute only holds the read lock long enough to look the command up.
type Registry struct {
	ledger Ledger
	bus    Publisher

	mu           sync.RWMutex
	commands     map[string]Command
	capabilities map[string]map[string]struct{}

	statsMu sync.Mutex
	stats   map[string]*ExecStats
}

func NewRegistry(l Ledger, bus Publisher) *Registry {
	return &Registry{
		ledger:       l,
		bus:          bus,
		commands:     map[string]Command{},
		capabilities: map[string]map[string]struct{}{},
		stats:        map[string]*ExecStats{},
	}
}

func validateDefinition(def Definition) error {
	switch {
	case def.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidDefinition)
	case def.CostAmount < 0:
		return fmt.Errorf("%w: %s: negative cost", ErrInvalidDefinition, def.ID)
	case def.CostAmount > 0 && (def.CostType == "" || def.CostType == CostNone):
		return fmt.Errorf("%w: %s: cost without cost type", ErrInvalidDefinition, def.ID)
	}
	return nil
}

// Register adds cmd to the catalogue. A command with the same id is replaced
// and a warning is logged.
func (r *Registry) Register(cmd Command) error {
	def := cmd.Definition()
	if err := validateDefinition(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[def.ID]; exists {
		log.Warn().Str("command_id", def.ID).Msg("command already registered; overwriting")
		r.unindexLocked(def.ID)
	}
	r.commands[def.ID] = cmd
	for _, capTag := range def.RequiredCapabilities {
		ids := r.capabilities[capTag]
		if ids == nil {
			ids = map[string]struct{}{}
			r.capabilities[capTag] = ids
		}
		ids[def.ID] = struct{}{}
	}
	log.Debug().Str("command_id", def.ID).Str("cost_type", def.CostType).Int64("cost", def.CostAmount).Msg("command registered")
	return nil
}

// RegisterAll registers every command, stopping at the first invalid one.
func (r *Registry) RegisterAll(cmds ...Command) error {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[id]; !ok {
		return false
	}
	r.unindexLocked(id)
	delete(r.commands, id)
	return true
}

func (r *Registry) unindexLocked(id string) {
	for _, capTag := range r.commands[id].Definition().RequiredCapabilities {
		ids := r.capabilities[capTag]
		delete(ids, id)
		if len(ids) == 0 {
			delete(r.capabilities, capTag)
		}
	}
}

func (r *Registry) Get(id string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

func (r *Registry) Meta(id string) (Definition, bool) {
	cmd, ok := r.Get(id)
	if !ok {
		return Definition{}, false
	}
	return cmd.Definition(), true
}

// ByCapability lists definitions tagged with capTag, sorted by id.
func (r *Registry) ByCapability(capTag string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.capabilities[capTag]))
	for id := range r.capabilities[capTag] {
		out = append(out, r.commands[id].Definition())
	}
	sortDefinitions(out)
	return out
}

func (r *Registry) AllMeta() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd.Definition())
	}
	sortDefinitions(out)
	return out
}

func sortDefinitions(defs []Definition) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	out := Stats{
		Commands:     len(r.commands),
		ByCostType:   map[string]int{},
		Capabilities: make(map[string]int, len(r.capabilities)),
		Executions:   map[string]ExecStats{},
	}
	for _, cmd := range r.commands {
		costType := cmd.Definition().CostType
		if costType == "" {
			costType = CostNone
		}
		out.ByCostType[costType]++
	}
	for capTag, ids := range r.capabilities {
		out.Capabilities[capTag] = len(ids)
	}
	r.mu.RUnlock()

	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	for id, s := range r.stats {
		out.Executions[id] = *s
	}
	return out
}

// Clear empties the catalogue and the execution counters.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.commands = map[string]Command{}
	r.capabilities = map[string]map[string]struct{}{}
	r.mu.Unlock()

	r.statsMu.Lock()
	r.stats = map[string]*ExecStats{}
	r.statsMu.Unlock()
}

func (r *Registry) record(id string, fn func(*ExecStats)) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	s := r.stats[id]
	if s == nil {
		s = &ExecStats{}
		r.stats[id] = s
	}
	fn(s)
}

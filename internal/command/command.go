// Package command is the catalogue feature modules register their commands
// in, and the pipeline that runs them against an actor's ledger.
package command

import (
	"context"

	"galaxy-core/internal/ledger"
)

// Cost types besides a plain counter name.
const (
	CostNone = ledger.CostNone
	CostBoth = ledger.CostBoth
)

type Definition struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	CostType             string   `json:"costType"`
	CostAmount           int64    `json:"costAmount"`
	RequiredCapabilities []string `json:"requiredCapabilities,omitempty"`
	Description          string   `json:"description,omitempty"`
}

type ExecContext struct {
	SessionID string         `json:"sessionId"`
	ActorID   string         `json:"actorId"`
	Args      map[string]any `json:"args,omitempty"`
}

// Command is one action an actor can take. Validate must not mutate
// anything; Execute runs after the cost has been debited and a returned
// error rolls that debit back.
type Command interface {
	Definition() Definition
	Validate(ctx context.Context, ec ExecContext) error
	Execute(ctx context.Context, ec ExecContext) (map[string]any, error)
}

// Func builds a Command from closures. A nil ValidateFn accepts everything.
type Func struct {
	Def        Definition
	ValidateFn func(ctx context.Context, ec ExecContext) error
	ExecuteFn  func(ctx context.Context, ec ExecContext) (map[string]any, error)
}

func (f Func) Definition() Definition { return f.Def }

func (f Func) Validate(ctx context.Context, ec ExecContext) error {
	if f.ValidateFn == nil {
		return nil
	}
	return f.ValidateFn(ctx, ec)
}

func (f Func) Execute(ctx context.Context, ec ExecContext) (map[string]any, error) {
	if f.ExecuteFn == nil {
		return nil, nil
	}
	return f.ExecuteFn(ctx, ec)
}

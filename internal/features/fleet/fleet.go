// Package fleet is a sample feature module: a handful of commands priced in
// each cost type, plus daily and monthly upkeep hooks on the game clock.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"galaxy-core/internal/command"
	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/gameclock"
	"galaxy-core/internal/ledger"

	"github.com/rs/zerolog/log"
)

const (
	CmdIssueDecree    = "issue_decree"
	CmdMoveFleet      = "move_fleet"
	CmdJointOperation = "joint_operation"
	CmdInspect        = "inspect"
)

var (
	errMissingArg = errors.New("missing argument")
	errSameSystem = errors.New("fleet is already in the target system")
)

// Module wires the fleet commands into a registry and its hooks onto a bus.
type Module struct {
	unsubscribe func()
}

// Register adds the commands to reg and subscribes the upkeep hooks.
func Register(reg *command.Registry, bus *eventbus.Bus) (*Module, error) {
	if err := reg.RegisterAll(Commands()...); err != nil {
		return nil, err
	}
	m := &Module{}
	m.unsubscribe = bus.Handle(m.onCalendar, gameclock.EventDayStart, gameclock.EventMonthStart)
	return m, nil
}

func (m *Module) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *Module) onCalendar(ev eventbus.Event) {
	switch data := ev.Data.(type) {
	case gameclock.DayStartEvent:
		log.Debug().Str("session_id", data.SessionID).Int("year", data.Year).Int("month", data.Month).Int("day", data.Day).Msg("fleet daily upkeep")
	case gameclock.MonthStartEvent:
		log.Info().Str("session_id", data.SessionID).Int("year", data.Year).Int("month", data.Month).Msg("fleet monthly upkeep")
	}
}

func Commands() []command.Command {
	return []command.Command{
		command.Func{
			Def: command.Definition{
				ID:                   CmdIssueDecree,
				Name:                 "Issue decree",
				CostType:             ledger.CounterPCP,
				CostAmount:           4,
				RequiredCapabilities: []string{"court"},
				Description:          "Proclaims a decree across the actor's territory.",
			},
			ValidateFn: requireArgs("text"),
			ExecuteFn: func(_ context.Context, ec command.ExecContext) (map[string]any, error) {
				return map[string]any{"decree": strings.TrimSpace(argString(ec, "text"))}, nil
			},
		},
		command.Func{
			Def: command.Definition{
				ID:                   CmdMoveFleet,
				Name:                 "Move fleet",
				CostType:             ledger.CounterMCP,
				CostAmount:           2,
				RequiredCapabilities: []string{"navy"},
				Description:          "Orders a fleet to another star system.",
			},
			ValidateFn: func(ctx context.Context, ec command.ExecContext) error {
				if err := requireArgs("fleet_id", "from", "to")(ctx, ec); err != nil {
					return err
				}
				if argString(ec, "from") == argString(ec, "to") {
					return errSameSystem
				}
				return nil
			},
			ExecuteFn: func(_ context.Context, ec command.ExecContext) (map[string]any, error) {
				return map[string]any{
					"fleet_id": argString(ec, "fleet_id"),
					"system":   argString(ec, "to"),
				}, nil
			},
		},
		command.Func{
			Def: command.Definition{
				ID:                   CmdJointOperation,
				Name:                 "Joint operation",
				CostType:             ledger.CostBoth,
				CostAmount:           3,
				RequiredCapabilities: []string{"court", "navy"},
				Description:          "A coordinated political and military action.",
			},
			ValidateFn: requireArgs("target"),
			ExecuteFn: func(_ context.Context, ec command.ExecContext) (map[string]any, error) {
				return map[string]any{"target": argString(ec, "target")}, nil
			},
		},
		command.Func{
			Def: command.Definition{
				ID:          CmdInspect,
				Name:        "Inspect",
				CostType:    ledger.CostNone,
				Description: "Reports the actor's standing without spending anything.",
			},
			ExecuteFn: func(_ context.Context, ec command.ExecContext) (map[string]any, error) {
				return map[string]any{"session_id": ec.SessionID, "actor_id": ec.ActorID}, nil
			},
		},
	}
}

func requireArgs(names ...string) func(context.Context, command.ExecContext) error {
	return func(_ context.Context, ec command.ExecContext) error {
		for _, name := range names {
			if strings.TrimSpace(argString(ec, name)) == "" {
				return fmt.Errorf("%w: %s", errMissingArg, name)
			}
		}
		return nil
	}
}

func argString(ec command.ExecContext, name string) string {
	v, _ := ec.Args[name].(string)
	return v
}

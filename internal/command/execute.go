package command

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"galaxy-core/internal/ledger"
	"galaxy-core/internal/store"

	"github.com/rs/zerolog/log"
)

// Execute runs commandID for ec.ActorID. The pipeline is lookup, validate,
// debit, then the command body; a body error or panic refunds exactly what
// was debited before the failure is reported.
func (r *Registry) Execute(ctx context.Context, commandID string, ec ExecContext) Result {
	cmd, ok := r.Get(commandID)
	if !ok {
		return r.fail(commandID, ec, failure(CodeUnknownCommand, fmt.Sprintf("unknown command %q", commandID)))
	}
	def := cmd.Definition()

	if err := safeValidate(ctx, cmd, ec); err != nil {
		return r.fail(commandID, ec, failure(CodeValidationFailed, err.Error()))
	}

	executionID := store.NewID()
	debit, err := r.ledger.Debit(ctx, ledger.Charge{
		ActorID:  ec.ActorID,
		CostType: def.CostType,
		Amount:   def.CostAmount,
		RefType:  refType,
		RefID:    executionID,
	})
	if err != nil {
		return r.fail(commandID, ec, debitFailure(err))
	}

	data, err := safeExecute(ctx, cmd, ec)
	if err != nil {
		return r.rollback(ctx, commandID, executionID, ec, debit, err)
	}

	r.record(commandID, func(s *ExecStats) { s.Executed++ })
	metricExecutedTotal.Add(1)
	res := Result{
		Success:     true,
		Code:        CodeOK,
		Data:        data,
		Consumed:    debit.Amounts,
		Substituted: debit.Substituted,
	}
	r.bus.Publish(EventCommandExecuted, ec.SessionID, ExecutedEvent{
		CommandID:   commandID,
		ExecutionID: executionID,
		SessionID:   ec.SessionID,
		ActorID:     ec.ActorID,
		Consumed:    debit.Amounts,
		Substituted: debit.Substituted,
	})
	log.Debug().
		Str("command_id", commandID).
		Str("execution_id", executionID).
		Str("actor_id", ec.ActorID).
		Interface("consumed", debit.Amounts).
		Bool("substituted", debit.Substituted).
		Msg("command executed")
	return res
}

func debitFailure(err error) Result {
	switch {
	case errors.Is(err, ledger.ErrInsufficient):
		return failure(CodeInsufficientResource, err.Error())
	case errors.Is(err, ledger.ErrContention):
		return failure(CodeContention, "ledger busy; retry")
	case errors.Is(err, ledger.ErrLedgerNotFound):
		return failure(CodeUnknownActor, err.Error())
	case errors.Is(err, ledger.ErrUnknownCounter):
		return failure(CodeUnknownCounter, err.Error())
	default:
		return failure(CodeLedgerUnavailable, err.Error())
	}
}

func (r *Registry) fail(commandID string, ec ExecContext, res Result) Result {
	if res.Code != CodeUnknownCommand {
		r.record(commandID, func(s *ExecStats) { s.Failed++ })
	}
	metricFailedTotal.Add(1)
	metricFailuresByCode.Add(res.Code, 1)
	r.bus.Publish(EventCommandFailed, ec.SessionID, FailedEvent{
		CommandID: commandID,
		SessionID: ec.SessionID,
		ActorID:   ec.ActorID,
		Code:      res.Code,
		Message:   res.Message,
	})
	log.Debug().
		Str("command_id", commandID).
		Str("actor_id", ec.ActorID).
		Str("code", res.Code).
		Str("message", res.Message).
		Msg("command rejected")
	return res
}

func (r *Registry) rollback(ctx context.Context, commandID, executionID string, ec ExecContext, debit ledger.Debit, cause error) Result {
	// The refund must land even when the caller has gone away.
	refundErr := r.ledger.Refund(context.WithoutCancel(ctx), debit)

	r.record(commandID, func(s *ExecStats) { s.RolledBack++ })
	metricRolledBackTotal.Add(1)
	ev := RolledBackEvent{
		CommandID:   commandID,
		ExecutionID: executionID,
		SessionID:   ec.SessionID,
		ActorID:     ec.ActorID,
		Restored:    debit.Amounts,
		Message:     cause.Error(),
	}
	if refundErr != nil {
		ev.RefundError = refundErr.Error()
		ev.Restored = nil
	}
	r.bus.Publish(EventCommandRolledBack, ec.SessionID, ev)
	log.Warn().
		Err(cause).
		Str("command_id", commandID).
		Str("execution_id", executionID).
		Str("actor_id", ec.ActorID).
		Interface("restored", ev.Restored).
		Msg("command failed; debit rolled back")

	return r.fail(commandID, ec, failure(CodeExecutionFailed, cause.Error()))
}

func safeValidate(ctx context.Context, cmd Command, ec ExecContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			metricPanicsTotal.Add(1)
			log.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Str("command_id", cmd.Definition().ID).Msg("command validate panic")
			err = fmt.Errorf("validate panic: %v", p)
		}
	}()
	return cmd.Validate(ctx, ec)
}

func safeExecute(ctx context.Context, cmd Command, ec ExecContext) (data map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			metricPanicsTotal.Add(1)
			log.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Str("command_id", cmd.Definition().ID).Msg("command execute panic")
			data = nil
			err = fmt.Errorf("execute panic: %v", p)
		}
	}()
	return cmd.Execute(ctx, ec)
}

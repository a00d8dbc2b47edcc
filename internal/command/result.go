package command

import (
	"errors"
	"fmt"
)

const (
	CodeOK                   = "ok"
	CodeUnknownCommand       = "unknown_command"
	CodeValidationFailed     = "validation_failed"
	CodeInsufficientResource = "insufficient_resource"
	CodeContention           = "contention"
	CodeExecutionFailed      = "execution_failed"
	CodeLedgerUnavailable    = "ledger_unavailable"
	// CodeUnknownActor and CodeUnknownCounter are configuration errors: the
	// actor has no ledger, or lacks the counter the command is priced in.
	CodeUnknownActor   = "unknown_actor"
	CodeUnknownCounter = "unknown_counter"
)

var (
	ErrUnknownCommand    = errors.New(CodeUnknownCommand)
	ErrValidation        = errors.New(CodeValidationFailed)
	ErrInsufficient      = errors.New(CodeInsufficientResource)
	ErrContention        = errors.New(CodeContention)
	ErrExecution         = errors.New(CodeExecutionFailed)
	ErrLedgerUnavailable = errors.New(CodeLedgerUnavailable)
	ErrUnknownActor      = errors.New(CodeUnknownActor)
	ErrUnknownCounter    = errors.New(CodeUnknownCounter)
)

var codeErrors = map[string]error{
	CodeUnknownCommand:       ErrUnknownCommand,
	CodeValidationFailed:     ErrValidation,
	CodeInsufficientResource: ErrInsufficient,
	CodeContention:           ErrContention,
	CodeExecutionFailed:      ErrExecution,
	CodeLedgerUnavailable:    ErrLedgerUnavailable,
	CodeUnknownActor:         ErrUnknownActor,
	CodeUnknownCounter:       ErrUnknownCounter,
}

// Result is what Execute reports for every call; it never panics or returns
// a bare error.
type Result struct {
	Success     bool             `json:"success"`
	Code        string           `json:"code"`
	Message     string           `json:"message,omitempty"`
	Data        map[string]any   `json:"data,omitempty"`
	Consumed    map[string]int64 `json:"consumed,omitempty"`
	Substituted bool             `json:"substituted,omitempty"`
}

// Err maps a failed result onto the package sentinels so callers can use
// errors.Is. It is nil for a successful result.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	base, ok := codeErrors[r.Code]
	if !ok {
		base = ErrExecution
	}
	if r.Message == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, r.Message)
}

// Retryable reports whether the same call may succeed if simply repeated.
func (r Result) Retryable() bool {
	return r.Code == CodeContention
}

func failure(code, msg string) Result {
	return Result{Code: code, Message: msg}
}

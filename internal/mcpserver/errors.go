package mcpserver

import (
	"errors"
	"fmt"

	"galaxy-core/internal/command"
	"galaxy-core/internal/gameclock"
	"galaxy-core/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

// commandResult keeps the registry's own result shape for failures, so
// clients see the same code and message the REST API returns.
func commandResult(res command.Result) *mcp.CallToolResult {
	if res.Success {
		return toolResult(res)
	}
	out := toolError(res.Code, res.Message)
	out.StructuredContent = map[string]any{
		"error":  map[string]any{"code": res.Code, "message": res.Message},
		"result": res,
	}
	return out
}

func mapDomainError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return toolError("internal_error", "unknown error")
	case errors.Is(err, gameclock.ErrUnknownSession), errors.Is(err, store.ErrNotFound):
		return toolError("not_found", err.Error())
	case errors.Is(err, gameclock.ErrNotRegistered):
		return toolError("session_not_registered", err.Error())
	case errors.Is(err, gameclock.ErrSessionFinished):
		return toolError("session_finished", err.Error())
	default:
		return toolError("internal_error", err.Error())
	}
}

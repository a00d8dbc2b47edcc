package mcpserver

import (
	"context"

	"galaxy-core/internal/command"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerClockTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"clock_status",
			mcp.WithDescription("Game clock status and every registered session"),
		),
		s.handleClockStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"session_info",
			mcp.WithDescription("Tick, in-game date and pause state of one session"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleSessionInfo,
	)
}

func (s *Server) registerCommandTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_commands",
			mcp.WithDescription("List registered commands with their costs"),
			mcp.WithString("capability", mcp.Description("Optional capability tag filter")),
		),
		s.handleListCommands,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"execute_command",
			mcp.WithDescription("Run a command for an actor, spending its command points"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithString("actor_id", mcp.Required(), mcp.Description("Acting actor id")),
			mcp.WithString("command_id", mcp.Required(), mcp.Description("Command id from list_commands")),
			mcp.WithObject("args", mcp.Description("Command arguments")),
		),
		s.handleExecuteCommand,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"actor_ledger",
			mcp.WithDescription("Current command point balances of an actor"),
			mcp.WithString("actor_id", mcp.Required(), mcp.Description("Actor id")),
		),
		s.handleActorLedger,
	)
}

func (s *Server) handleClockStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(s.engine.Status()), nil
}

func (s *Server) handleSessionInfo(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	info, err := s.engine.SessionInfo(sessionID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(info), nil
}

func (s *Server) handleListCommands(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var items []command.Definition
	if capTag := request.GetString("capability", ""); capTag != "" {
		items = s.registry.ByCapability(capTag)
	} else {
		items = s.registry.AllMeta()
	}
	return toolResult(map[string]any{"items": items}), nil
}

func (s *Server) handleExecuteCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	actorID, err := request.RequireString("actor_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	commandID, err := request.RequireString("command_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	args, _ := request.GetArguments()["args"].(map[string]any)
	res := s.registry.Execute(ctx, commandID, command.ExecContext{
		SessionID: sessionID,
		ActorID:   actorID,
		Args:      args,
	})
	return commandResult(res), nil
}

func (s *Server) handleActorLedger(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actorID, err := request.RequireString("actor_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	led, err := s.ledgers.GetActorLedger(ctx, actorID)
	if err != nil {
		return mapDomainError(err), nil
	}
	balances := make(map[string]any, len(led.Counters))
	for name, c := range led.Counters {
		balances[name] = map[string]any{"balance": c.Balance, "max": c.Max}
	}
	return toolResult(map[string]any{"actor_id": led.ActorID, "session_id": led.SessionID, "counters": balances}), nil
}

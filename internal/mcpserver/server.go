// Package mcpserver exposes the game clock and command registry as MCP tools,
// so agent clients can drive actors without speaking the REST API.
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"galaxy-core/internal/command"
	"galaxy-core/internal/gameclock"
	"galaxy-core/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "galaxy-core"
	serverVersion = "0.1.0"

	sessionClockScheme = "session://"
	sessionClockSuffix = "/clock"
)

type LedgerReader interface {
	GetActorLedger(ctx context.Context, actorID string) (*store.ActorLedger, error)
}

type Server struct {
	engine   *gameclock.Engine
	registry *command.Registry
	ledgers  LedgerReader

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(engine *gameclock.Engine, registry *command.Registry, ledgers LedgerReader) *Server {
	mcpSrv := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		engine:     engine,
		registry:   registry,
		ledgers:    ledgers,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerClockTools()
	s.registerCommandTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			sessionClockScheme+"{session_id}"+sessionClockSuffix,
			"session_clock",
			mcp.WithTemplateDescription("Current tick and in-game date of a registered session"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := string(request.Params.URI)
			if !strings.HasPrefix(raw, sessionClockScheme) || !strings.HasSuffix(raw, sessionClockSuffix) {
				return nil, nil
			}
			sessionID := strings.TrimSuffix(strings.TrimPrefix(raw, sessionClockScheme), sessionClockSuffix)
			if sessionID == "" {
				return nil, nil
			}
			info, err := s.engine.SessionInfo(sessionID)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(info)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

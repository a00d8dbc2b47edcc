package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"testing"

	"galaxy-core/internal/calendar"
	"galaxy-core/internal/command"
	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/features/fleet"
	"galaxy-core/internal/gameclock"
	"galaxy-core/internal/ledger"
	"galaxy-core/internal/store"
	"galaxy-core/internal/store/memory"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store, string) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	bus := eventbus.New(16)
	engine := gameclock.New(st, bus, gameclock.Options{})
	reg := command.NewRegistry(ledger.New(st, ledger.Options{}), bus)
	mod, err := fleet.Register(reg, bus)
	if err != nil {
		t.Fatalf("register fleet: %v", err)
	}
	t.Cleanup(mod.Close)

	sess := &store.GameSession{
		TickPeriodMs:       1000,
		AccelerationFactor: 24,
		Epoch:              calendar.GameDate{Year: 184, Month: 1, Day: 1},
	}
	if err := st.CreateGameSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := engine.Register(ctx, sess.ID); err != nil {
		t.Fatalf("register session: %v", err)
	}
	err = st.EnsureActorLedger(ctx, store.ActorLedger{
		ActorID:   "alliance",
		SessionID: sess.ID,
		Counters: map[string]store.Counter{
			ledger.CounterPCP: {Balance: 3, Max: 24},
			ledger.CounterMCP: {Balance: 3, Max: 24},
		},
	})
	if err != nil {
		t.Fatalf("ensure ledger: %v", err)
	}

	httpSrv := httptest.NewServer(New(engine, reg, st).Handler())
	t.Cleanup(httpSrv.Close)
	return httpSrv, st, sess.ID
}

func TestMCPServerToolsAndFlows(t *testing.T) {
	httpSrv, st, sessionID := newTestServer(t)
	mcpClient, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	defer closeClient()

	tools := mustListTools(t, mcpClient)
	assertToolNames(t, tools,
		"clock_status",
		"session_info",
		"list_commands",
		"execute_command",
		"actor_ledger",
	)

	for _, toolName := range []string{"clock_status", "list_commands"} {
		res := mustCallTool(t, mcpClient, toolName, map[string]any{})
		if res.IsError {
			t.Fatalf("%s expected success, got: %v", toolName, res.StructuredContent)
		}
	}

	info := mapFromStructured(t, mustCallTool(t, mcpClient, "session_info", map[string]any{"session_id": sessionID}))
	if asString(info["sessionId"]) != sessionID {
		t.Fatalf("unexpected session info: %v", info)
	}

	res := mustCallTool(t, mcpClient, "execute_command", map[string]any{
		"session_id": sessionID,
		"actor_id":   "alliance",
		"command_id": fleet.CmdMoveFleet,
		"args":       map[string]any{"fleet_id": "13th", "from": "heinessen", "to": "iserlohn"},
	})
	if res.IsError {
		t.Fatalf("execute_command expected success, got: %v", res.StructuredContent)
	}
	led, err := st.GetActorLedger(context.Background(), "alliance")
	if err != nil {
		t.Fatalf("get ledger: %v", err)
	}
	if led.Balance(ledger.CounterMCP) != 1 {
		t.Fatalf("expected mcp 1, got %d", led.Balance(ledger.CounterMCP))
	}

	ledgerRes := mapFromStructured(t, mustCallTool(t, mcpClient, "actor_ledger", map[string]any{"actor_id": "alliance"}))
	if asString(ledgerRes["session_id"]) != sessionID {
		t.Fatalf("unexpected ledger payload: %v", ledgerRes)
	}
}

func TestMCPServerToolErrors(t *testing.T) {
	httpSrv, _, sessionID := newTestServer(t)
	mcpClient, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	defer closeClient()

	assertToolErrorCode(t, mustCallTool(t, mcpClient, "session_info", map[string]any{"session_id": "missing"}), "session_not_registered")
	assertToolErrorCode(t, mustCallTool(t, mcpClient, "actor_ledger", map[string]any{"actor_id": "nobody"}), "not_found")
	assertToolErrorCode(t, mustCallTool(t, mcpClient, "execute_command", map[string]any{"session_id": sessionID}), "invalid_request")
	assertToolErrorCode(t, mustCallTool(t, mcpClient, "execute_command", map[string]any{
		"session_id": sessionID,
		"actor_id":   "alliance",
		"command_id": fleet.CmdIssueDecree,
		"args":       map[string]any{"text": "martial law"},
	}), command.CodeInsufficientResource)
	assertToolErrorCode(t, mustCallTool(t, mcpClient, "execute_command", map[string]any{
		"session_id": sessionID,
		"actor_id":   "alliance",
		"command_id": "warp_drive",
	}), command.CodeUnknownCommand)
}

func TestMCPServerSessionClockResource(t *testing.T) {
	httpSrv, _, sessionID := newTestServer(t)
	mcpClient, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	defer closeClient()

	res, err := mcpClient.ReadResource(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "session://" + sessionID + "/clock"},
	})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(res.Contents) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Contents))
	}
	var text string
	switch c := res.Contents[0].(type) {
	case mcp.TextResourceContents:
		text = c.Text
	case *mcp.TextResourceContents:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		t.Fatalf("decode resource: %v", err)
	}
	if asString(info["sessionId"]) != sessionID {
		t.Fatalf("unexpected resource payload: %v", info)
	}
}

func newMCPClient(t *testing.T, endpoint string) (*client.Client, func()) {
	t.Helper()
	ctx := context.Background()
	trans, err := transport.NewStreamableHTTP(endpoint)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := trans.Start(ctx); err != nil {
		t.Fatalf("transport start: %v", err)
	}
	c := client.NewClient(trans)
	_, err = c.Initialize(ctx, mcp.InitializeRequest{Params: mcp.InitializeParams{ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION}})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, func() { _ = trans.Close() }
}

func mustListTools(t *testing.T, c *client.Client) []mcp.Tool {
	t.Helper()
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	return res.Tools
}

func assertToolNames(t *testing.T, tools []mcp.Tool, expected ...string) {
	t.Helper()
	got := make([]string, 0, len(tools))
	for _, tool := range tools {
		got = append(got, tool.Name)
	}
	sort.Strings(got)
	sort.Strings(expected)
	if len(got) != len(expected) {
		t.Fatalf("tool count mismatch got=%v expected=%v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Fatalf("tool list mismatch got=%v expected=%v", got, expected)
		}
	}
}

func mustCallTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := c.CallTool(context.Background(), mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		t.Fatalf("call tool %s: %v", name, err)
	}
	return res
}

func assertToolErrorCode(t *testing.T, res *mcp.CallToolResult, want string) {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected tool error %q, got success: %v", want, res.StructuredContent)
	}
	payload := mapFromStructured(t, res)
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("error payload missing 'error': %v", payload)
	}
	got := asString(errObj["code"])
	if got != want {
		t.Fatalf("error code=%q want=%q payload=%v", got, want, payload)
	}
}

func mapFromStructured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	b, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

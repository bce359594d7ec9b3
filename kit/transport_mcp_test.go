package kit

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestRegisterMCPTool_TransportIsMCP(t *testing.T) {
	// WHAT: Endpoints called through MCP see "mcp" as their transport.
	// WHY: Tool call logs carry the transport field.
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "transport",
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, _ any) (any, error) {
		return GetTransport(ctx), nil
	}, func(*mcp.CallToolRequest) (*MCPDecodeResult, error) {
		return &MCPDecodeResult{}, nil
	})

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "transport", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok || text.Text != `"mcp"` {
		t.Fatalf("transport: got %+v", res.Content[0])
	}
}

package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/gagstock/kit"
	"github.com/hazyhaar/gagstock/stock/inventory"
)

// RegisterMCP registers the read-only tracker tools on an MCP server.
func (t *Tracker) RegisterMCP(srv *mcp.Server) {
	t.registerStockTool(srv)
	t.registerWeatherTool(srv)
	t.registerStatusTool(srv)
	t.registerSubscriptionsTool(srv)
}

// NewMCPServer returns an MCP server with every tracker tool registered.
func (t *Tracker) NewMCPServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "gagstock", Version: version}, nil)
	t.RegisterMCP(srv)
	return srv
}

// register wraps endpoint with panic recovery and call logging before
// handing it to kit.
func (t *Tracker) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, kit.Chain(recoverTool, t.logTool(tool.Name))(endpoint), decode)
}

func recoverTool(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("internal error: %v", r)
			}
		}()
		return next(ctx, req)
	}
}

func (t *Tracker) logTool(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			log := t.logger.With("tool", name, "transport", kit.GetTransport(ctx), "took", time.Since(start))
			if err != nil {
				log.Warn("tracker: tool failed", "error", err)
			} else {
				log.Debug("tracker: tool called")
			}
			return resp, err
		}
	}
}

func inputSchema(properties map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

// decodeArgs tolerates a missing arguments object.
func decodeArgs(req *mcp.CallToolRequest, v any) error {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, v)
}

func noArgs(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return &kit.MCPDecodeResult{}, nil
}

// --- stock ---

type stockRequest struct {
	Category string `json:"category,omitempty"`
}

func (t *Tracker) registerStockTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "gagstock_stock",
		Description: "Current shop stock. Returns all three categories, or one when category is set.",
		InputSchema: inputSchema(map[string]any{
			"category": map[string]any{"type": "string", "enum": []any{"seeds", "gear", "eggs"}, "description": "Restrict to one category"},
		}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*stockRequest)
		snap := t.Stock()
		if r.Category == "" {
			return snap, nil
		}
		c, ok := inventory.ParseCategory(r.Category)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", r.Category)
		}
		return snap.Bucket(c), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r stockRequest
		if err := decodeArgs(req, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	t.register(srv, tool, endpoint, decode)
}

// --- weather ---

func (t *Tracker) registerWeatherTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "gagstock_weather",
		Description: "Current in-game weather.",
		InputSchema: inputSchema(map[string]any{}),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return t.Weather(), nil
	}
	t.register(srv, tool, endpoint, noArgs)
}

// --- status ---

func (t *Tracker) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "gagstock_status",
		Description: "Service status: uptime, socket connections, data freshness and next scheduled run.",
		InputSchema: inputSchema(map[string]any{}),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return t.Status(), nil
	}
	t.register(srv, tool, endpoint, noArgs)
}

// --- subscriptions ---

type subscriptionStats struct {
	Clients int      `json:"clients"`
	Items   []string `json:"items"`
}

func (t *Tracker) registerSubscriptionsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "gagstock_subscriptions",
		Description: "Number of clients with notifications and the distinct items they watch.",
		InputSchema: inputSchema(map[string]any{}),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		clients, items := t.registry.Stats()
		if items == nil {
			items = []string{}
		}
		return subscriptionStats{Clients: clients, Items: items}, nil
	}
	t.register(srv, tool, endpoint, noArgs)
}

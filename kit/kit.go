// Package kit holds the transport-neutral endpoint type shared by the
// HTTP API and the MCP tools, plus request-scoped context values.
package kit

import "context"

// Endpoint is one query or command, independent of the transport that
// decoded it.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so that the first one is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

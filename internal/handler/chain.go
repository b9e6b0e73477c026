package handler

import (
	"github.com/conduit-lang/waypoint/internal/endpoint"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Middleware wraps an endpoint handler. It receives the endpoint's merged
// metadata and returns the wrapped handler, or nil to leave it unchanged.
type Middleware func(exchange.Handler, endpoint.Metadata) exchange.Handler

// Chain represents a composable chain of middleware
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{
		middlewares: middlewares,
	}
}

// Apply wraps h with every middleware in the chain. Middleware is applied
// in reverse order so that the first declared middleware runs first.
func (c *Chain) Apply(h exchange.Handler, meta endpoint.Metadata) exchange.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		m := c.middlewares[i]
		if m == nil {
			continue
		}
		if wrapped := m(h, meta); wrapped != nil {
			h = wrapped
		}
	}
	return h
}

// Package dispatch compiles a routing table into an immutable lookup
// structure and serves requests against it.
//
// A request path is split into segments and URL-decoded, then matched
// against the table with literal segments preferred over variables. The
// candidates for the request method (plus routes declared for every
// method) are filtered by their variable constraints and match
// predicates: exactly one acceptance invokes the route, none means not
// found, more than one is an ambiguity error for that request.
//
// A Dispatcher is safe for concurrent use by any number of goroutines.
package dispatch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/handler"
	"github.com/conduit-lang/waypoint/internal/route"
	"github.com/conduit-lang/waypoint/internal/table"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Options configures a Dispatcher
type Options struct {
	Strategy Strategy
	// Async makes transports call HandleAsync instead of Handle
	Async bool
	// Timeout bounds HandleAsync; zero disables it
	Timeout time.Duration
	Logger  *zap.Logger
}

// Dispatcher maps requests to compiled handlers
type Dispatcher struct {
	table   *table.Table
	entries []table.Entry
	matcher matcher
	opts    Options
	logger  *zap.Logger
}

// Match is the result of a successful lookup
type Match struct {
	Entry table.Entry
	// Request is the original request with its path variables bound
	Request *exchange.Request
}

// New compiles t for lookup
func New(t *table.Table, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	entries := t.Entries()
	return &Dispatcher{
		table:   t,
		entries: entries,
		matcher: newMatcher(opts.Strategy, entries),
		opts:    opts,
		logger:  logger,
	}
}

// Table returns the routing table the dispatcher was compiled from
func (d *Dispatcher) Table() *table.Table {
	return d.table
}

// Async reports whether the dispatcher is configured for asynchronous use
func (d *Dispatcher) Async() bool {
	return d.opts.Async
}

// Strategy returns the lookup strategy in use
func (d *Dispatcher) Strategy() Strategy {
	return d.opts.Strategy
}

// Lookup finds the single route accepting req. It returns ErrNotFound,
// an *AmbiguityError or a *MalformedPathError when there is none.
func (d *Dispatcher) Lookup(req *exchange.Request) (*Match, error) {
	segments, err := route.Split(req.Path)
	if err != nil {
		return nil, &MalformedPathError{Path: req.Path, Err: err}
	}

	var accepted []*Match
	for _, c := range d.matcher.candidates(req.Method, segments) {
		bound := *req
		bound.PathParams = bindVars(c, segments)
		if c.entry.Match != nil && !c.entry.Match(&bound) {
			continue
		}
		accepted = append(accepted, &Match{Entry: *c.entry, Request: &bound})
	}

	switch len(accepted) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return accepted[0], nil
	}

	names := make([]string, len(accepted))
	for i, m := range accepted {
		names[i] = m.Entry.Name()
	}
	return nil, &AmbiguityError{Method: req.Method, Path: req.Path, Candidates: names}
}

// bindVars binds path variables by position
func bindVars(c *candidate, segments []string) map[string]string {
	params := make(map[string]string, len(c.vars))
	for name, i := range c.vars {
		params[name] = segments[i]
	}
	return params
}

// Handle dispatches req on the calling goroutine. It returns nil when no
// route matches; every other outcome, failures included, is a response.
func (d *Dispatcher) Handle(req *exchange.Request) (resp *exchange.Response) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("dispatch panicked",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.String("panic", handler.PanicMessage(p)),
			)
			resp = exchange.InternalError(handler.PanicMessage(p))
		}
	}()

	m, failure := d.resolve(req)
	if m == nil {
		return failure
	}
	return m.Entry.Handler(m.Request)
}

// HandleAsync dispatches req on a separate goroutine. The returned channel
// receives exactly one value: nil when no route matches, otherwise the
// response. With a timeout configured a 504 is delivered as soon as it
// elapses and the request context is cancelled; the endpoint is not
// interrupted beyond that.
func (d *Dispatcher) HandleAsync(req *exchange.Request) <-chan *exchange.Response {
	out := make(chan *exchange.Response, 1)

	m, failure := d.safeResolve(req)
	if m == nil {
		out <- failure
		return out
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if d.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(m.Request.Context(), d.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(m.Request.Context())
	}
	work := handler.Bridge(m.Entry.Handler)(m.Request.WithContext(ctx))

	go func() {
		defer cancel()
		select {
		case resp := <-work:
			out <- resp
		case <-ctx.Done():
			d.logger.Warn("request abandoned",
				zap.String("endpoint", m.Entry.Name()),
				zap.Duration("timeout", d.opts.Timeout),
				zap.Error(ctx.Err()),
			)
			out <- exchange.GatewayTimeout()
		}
	}()
	return out
}

// safeResolve is resolve with predicate panics contained
func (d *Dispatcher) safeResolve(req *exchange.Request) (m *Match, failure *exchange.Response) {
	defer func() {
		if p := recover(); p != nil {
			m = nil
			failure = exchange.InternalError(handler.PanicMessage(p))
		}
	}()
	return d.resolve(req)
}

// resolve performs the lookup and converts lookup errors into responses
func (d *Dispatcher) resolve(req *exchange.Request) (*Match, *exchange.Response) {
	m, err := d.Lookup(req)
	if err == nil {
		return m, nil
	}

	var (
		ambiguous *AmbiguityError
		malformed *MalformedPathError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case errors.As(err, &ambiguous):
		d.logger.Error("ambiguous route",
			zap.String("method", ambiguous.Method),
			zap.String("path", ambiguous.Path),
			zap.Strings("candidates", ambiguous.Candidates),
		)
		return nil, exchange.Failure(http.StatusInternalServerError, exchange.CodeAmbiguousRoute,
			ambiguous.Error(), map[string]interface{}{"candidates": ambiguous.Candidates})
	case errors.As(err, &malformed):
		return nil, exchange.Failure(http.StatusBadRequest, exchange.CodeMalformedPath, malformed.Error(), nil)
	default:
		return nil, exchange.InternalError(err.Error())
	}
}

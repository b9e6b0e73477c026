// Package handler assembles the compiled handler of an endpoint.
//
// From the innermost layer out, a compiled handler consists of the call
// adapter (argument binding and invocation), the optional validation stage,
// the namespace and endpoint middleware chain, the location stage that
// records the effective base path, and a diagnostic wrap that logs and
// contains failures.
package handler

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/endpoint"
	berrors "github.com/conduit-lang/waypoint/internal/errors"
	"github.com/conduit-lang/waypoint/internal/resolve"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Options configures handler assembly
type Options struct {
	// Validator is consulted for endpoints that declare a schema
	Validator Validator
	Logger    *zap.Logger
}

// Assemble builds the compiled handler of ep. The bindings must come from
// resolve.Compile for the same endpoint.
func Assemble(ep endpoint.Endpoint, bindings []resolve.Binding, middleware []Middleware, opts Options) (exchange.Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sig, err := analyze(ep.Func.Fn, len(bindings))
	if err != nil {
		return nil, berrors.New(berrors.PhaseAssemble, berrors.ErrInvalidSignature, err.Error()).
			WithNamespace(ep.Namespace).WithFunction(ep.Func.Name)
	}

	names := make([]string, len(bindings))
	for i, b := range bindings {
		names[i] = b.Param.Symbol()
	}
	h := newCallAdapter(sig, resolve.Bind(bindings), names)

	if schema := ep.Meta.Schema(); schema != nil {
		if opts.Validator == nil {
			return nil, berrors.New(berrors.PhaseAssemble, berrors.ErrInvalidMetadata,
				"schema declared but no validator configured").
				WithNamespace(ep.Namespace).WithFunction(ep.Func.Name)
		}
		h = validation(opts.Validator, schema, h)
	}

	h = NewChain(middleware...).Apply(h, ep.Meta)
	h = withLocation(ep.Context, h)
	h = diagnose(logger.With(zap.String("namespace", ep.Namespace)), ep.Name(), h)
	return h, nil
}

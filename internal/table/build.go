package table

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/endpoint"
	berrors "github.com/conduit-lang/waypoint/internal/errors"
	"github.com/conduit-lang/waypoint/internal/handler"
	"github.com/conduit-lang/waypoint/internal/resolve"
	"github.com/conduit-lang/waypoint/internal/spec"
)

// Options configures a build
type Options struct {
	// Root is the context every spec is mounted under
	Root string
	// Resolvers is the default resolver map; resolve.Defaults() when nil
	Resolvers *resolve.Map
	// Middleware is the default middleware inherited by every spec
	Middleware []handler.Middleware
	Validator  handler.Validator
	Logger     *zap.Logger
}

// Build runs the whole compilation pipeline: it expands the specs, extracts
// the endpoints of each namespace, compiles their argument resolvers,
// assembles their handlers and collects the result into a table. Every
// endpoint-level failure is collected; the returned error is then an
// errors.List.
func Build(registry *endpoint.Registry, specs []spec.NamespaceSpec, opts Options) (*Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := resolve.Defaults()
	if opts.Resolvers != nil {
		defaults = *opts.Resolvers
	}

	mounts, err := spec.Expand(opts.Root, defaults, opts.Middleware, specs)
	if err != nil {
		return nil, err
	}

	extractor := endpoint.NewExtractor(registry)
	hopts := handler.Options{Validator: opts.Validator, Logger: logger}

	var (
		errs    berrors.List
		entries []Entry
	)
	for _, mount := range mounts {
		endpoints, err := extractor.Extract(mount.Namespace, mount.Context)
		if err != nil {
			collect(&errs, err, mount.Position)
			continue
		}

		for _, ep := range endpoints {
			entry, err := compileEndpoint(ep, mount, hopts)
			if err != nil {
				collect(&errs, err, mount.Position)
				continue
			}
			logger.Debug("compiled route",
				zap.String("method", entry.Method),
				zap.String("path", entry.Path.String()),
				zap.String("endpoint", entry.Name()),
			)
			entries = append(entries, entry)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	t, err := New(entries)
	if err != nil {
		return nil, err
	}
	logger.Info("routing table compiled", zap.Int("routes", t.Len()), zap.Int("namespaces", len(mounts)))
	return t, nil
}

func compileEndpoint(ep endpoint.Endpoint, mount spec.Entry, opts handler.Options) (Entry, error) {
	bindings, err := resolve.Compile(ep.Func.Params, ep.Path, mount.Resolvers)
	if err != nil {
		if be, ok := err.(*berrors.BuildError); ok {
			be.WithNamespace(ep.Namespace).WithFunction(ep.Func.Name)
		}
		return Entry{}, err
	}

	h, err := handler.Assemble(ep, bindings, mount.Middleware, opts)
	if err != nil {
		return Entry{}, err
	}

	match, _ := ep.Meta.Match()
	return Entry{
		Method:    ep.Method,
		Path:      ep.Path,
		Handler:   h,
		Meta:      ep.Meta,
		Match:     match,
		Namespace: ep.Namespace,
		Function:  ep.Func.Name,
		Operation: ep.Operation,
		Bindings:  bindings,
	}, nil
}

// collect adds err to errs, tagging build errors with the spec position
func collect(errs *berrors.List, err error, position string) {
	switch e := err.(type) {
	case *berrors.BuildError:
		if e.Spec == "" {
			e.WithSpec(position)
		}
		errs.Add(e)
	case berrors.List:
		for _, be := range e {
			if be.Spec == "" {
				be.WithSpec(position)
			}
			errs.Add(be)
		}
	default:
		errs.Add(berrors.New(berrors.PhaseTable, berrors.ErrNamespaceLoad, "").WithSpec(position).Wrap(err))
	}
}

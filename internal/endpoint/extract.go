package endpoint

import (
	"fmt"

	berrors "github.com/conduit-lang/waypoint/internal/errors"
	"github.com/conduit-lang/waypoint/internal/route"
)

// Endpoint is a function mapped to a method and absolute path
type Endpoint struct {
	Namespace string
	Func      Func
	Operation Operation
	Method    string
	// Context is the namespace context the endpoint was extracted under
	Context route.Path
	// Path is Context followed by the endpoint's relative path
	Path route.Path
	Meta Metadata
}

// Name returns the qualified endpoint name, "namespace/function"
func (e Endpoint) Name() string {
	return e.Namespace + "/" + e.Func.Name
}

// Extractor extracts endpoints from registered namespaces. Namespace
// metadata is evaluated once per extractor.
type Extractor struct {
	registry *Registry
	loaded   map[string]Metadata
}

// NewExtractor creates an extractor over the registry
func NewExtractor(registry *Registry) *Extractor {
	return &Extractor{
		registry: registry,
		loaded:   make(map[string]Metadata),
	}
}

// Extract returns the endpoints of namespace id mounted under context.
// Functions that are neither routed nor conventional are skipped.
func (x *Extractor) Extract(id string, context route.Path) ([]Endpoint, error) {
	ns, ok := x.registry.Lookup(id)
	if !ok {
		return nil, berrors.New(berrors.PhaseExtract, berrors.ErrNamespaceLoad,
			"namespace is not registered").WithNamespace(id)
	}

	nsMeta, err := x.namespaceMeta(ns)
	if err != nil {
		return nil, err
	}

	var errs berrors.List
	endpoints := make([]Endpoint, 0, len(ns.Funcs))
	for _, fn := range ns.Funcs {
		if fn.Private {
			continue
		}
		ep, ok, err := extractFunc(ns.ID, fn, nsMeta, context)
		if err != nil {
			errs.Add(err.WithNamespace(ns.ID).WithFunction(fn.Name))
			continue
		}
		if ok {
			endpoints = append(endpoints, ep)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return endpoints, nil
}

func (x *Extractor) namespaceMeta(ns *Namespace) (Metadata, error) {
	if meta, ok := x.loaded[ns.ID]; ok {
		return meta, nil
	}

	meta := Merge(ns.Meta)
	if ns.Load != nil {
		loaded, err := ns.Load()
		if err != nil {
			return nil, berrors.New(berrors.PhaseExtract, berrors.ErrNamespaceLoad,
				"metadata loader failed").WithNamespace(ns.ID).Wrap(err)
		}
		meta = Merge(meta, loaded)
	}
	// Doc strings describe the namespace, never its endpoints
	meta = meta.Without(KeyDoc)

	x.loaded[ns.ID] = meta
	return meta, nil
}

func extractFunc(nsID string, fn Func, nsMeta Metadata, context route.Path) (Endpoint, bool, *berrors.BuildError) {
	decl, explicit, err := fn.Meta.Route()
	if err != nil {
		return Endpoint{}, false, berrors.New(berrors.PhaseExtract, berrors.ErrInvalidRoute, err.Error())
	}

	op := OpCustom
	if !explicit {
		conv, ok := Convention(fn.Name)
		if !ok {
			return Endpoint{}, false, nil
		}
		op = conv
		decl, _ = conv.Decl()
	}

	method, rel, err := decl.Compile()
	if err != nil {
		return Endpoint{}, false, berrors.Newf(berrors.PhaseExtract, berrors.ErrInvalidRoute,
			"%s", decl).Wrap(err)
	}

	abs, err := route.Join(context, rel)
	if err != nil {
		return Endpoint{}, false, berrors.Newf(berrors.PhaseExtract, berrors.ErrInvalidRoute,
			"%s under context %s", decl, context).Wrap(err)
	}

	meta := Merge(nsMeta, fn.Meta)
	meta[KeyRoute] = route.Decl{Method: method, Path: rel.String(), Constraints: decl.Constraints}
	meta[KeyEndpoint] = nsID + "/" + fn.Name
	if _, err := meta.Match(); err != nil {
		return Endpoint{}, false, berrors.New(berrors.PhaseExtract, berrors.ErrInvalidMetadata, err.Error())
	}

	return Endpoint{
		Namespace: nsID,
		Func:      fn,
		Operation: op,
		Method:    method,
		Context:   context,
		Path:      abs,
		Meta:      meta,
	}, true, nil
}

// String renders the endpoint as "METHOD /path -> namespace/function"
func (e Endpoint) String() string {
	return fmt.Sprintf("%s %s -> %s", e.Method, e.Path, e.Name())
}

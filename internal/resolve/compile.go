package resolve

import (
	"fmt"
	"sort"
	"strings"

	berrors "github.com/conduit-lang/waypoint/internal/errors"
	"github.com/conduit-lang/waypoint/internal/route"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Source records how a parameter was resolved
type Source int

const (
	// FromPath binds a route variable
	FromPath Source = iota
	// FromTag binds through a resolver factory
	FromTag
	// FromDirect binds a directly configured resolver
	FromDirect
)

// String returns the string representation of Source
func (s Source) String() string {
	switch s {
	case FromPath:
		return "path"
	case FromTag:
		return "tag"
	case FromDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// Binding is the compiled resolver of one parameter
type Binding struct {
	Param    Param
	Source   Source
	Tag      string // factory tag, when Source is FromTag
	Resolver Resolver
}

// Binder resolves every argument of an endpoint in declaration order
type Binder func(*exchange.Request) ([]interface{}, error)

// Compile chooses one resolver per parameter. Priority: a route variable
// with the same name, then a single resolver tag, then a direct resolver
// in m. Failures are returned as *errors.BuildError carrying the symbol;
// callers add the namespace and function identity.
func Compile(params []Param, path route.Path, m Map) ([]Binding, error) {
	bindings := make([]Binding, 0, len(params))
	for i, p := range params {
		b, err := compileParam(p, path, m)
		if err != nil {
			if be, ok := err.(*berrors.BuildError); ok && be.Symbol == "" {
				be.WithSymbol(fmt.Sprintf("#%d", i))
			}
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func compileParam(p Param, path route.Path, m Map) (Binding, error) {
	if p.IsDestructured() && p.Alias == "" {
		return Binding{}, berrors.Newf(berrors.PhaseResolve, berrors.ErrMissingAlias,
			"destructuring pattern %v needs an alias", p.Keys)
	}

	sym := p.Symbol()
	if sym == "" {
		return Binding{}, berrors.New(berrors.PhaseResolve, berrors.ErrUnresolvableArgument,
			"parameter has no name")
	}

	if path.HasVar(sym) {
		return Binding{Param: p, Source: FromPath, Resolver: pathVar(sym)}, nil
	}

	tag, arg, err := selectTag(p, m)
	if err != nil {
		return Binding{}, err.WithSymbol(sym)
	}
	if tag != "" {
		r, ferr := m.Factories[tag](p, arg)
		if ferr != nil {
			return Binding{}, berrors.Newf(berrors.PhaseResolve, berrors.ErrFactoryFailed,
				"factory %q", tag).WithSymbol(sym).Wrap(ferr)
		}
		if r == nil {
			return Binding{}, berrors.Newf(berrors.PhaseResolve, berrors.ErrFactoryFailed,
				"factory %q returned no resolver", tag).WithSymbol(sym)
		}
		return Binding{Param: p, Source: FromTag, Tag: tag, Resolver: r}, nil
	}

	if r, ok := m.Direct[sym]; ok && r != nil {
		return Binding{Param: p, Source: FromDirect, Resolver: r}, nil
	}

	return Binding{}, berrors.Newf(berrors.PhaseResolve, berrors.ErrUnresolvableArgument,
		"no route variable, resolver tag, or resolver named %q", sym).WithSymbol(sym)
}

// selectTag returns the single active factory tag of p, if any
func selectTag(p Param, m Map) (string, interface{}, *berrors.BuildError) {
	var active []string
	for tag, arg := range p.Tags {
		if b, ok := arg.(bool); ok && !b {
			continue
		}
		if _, ok := m.Factories[tag]; !ok {
			return "", nil, berrors.Newf(berrors.PhaseResolve, berrors.ErrUnknownTag,
				"no resolver factory for tag %q", tag)
		}
		active = append(active, tag)
	}

	switch len(active) {
	case 0:
		return "", nil, nil
	case 1:
	default:
		sort.Strings(active)
		return "", nil, berrors.Newf(berrors.PhaseResolve, berrors.ErrConflictingTags,
			"tags %s all target one parameter", strings.Join(active, ", "))
	}

	tag := active[0]
	arg := p.Tags[tag]
	if b, ok := arg.(bool); ok && b {
		arg = p.Symbol()
	}
	return tag, arg, nil
}

func pathVar(name string) Resolver {
	return func(r *exchange.Request) (interface{}, error) {
		return r.PathParams[name], nil
	}
}

// Bind combines compiled bindings into one Binder
func Bind(bindings []Binding) Binder {
	resolvers := make([]Resolver, len(bindings))
	names := make([]string, len(bindings))
	for i, b := range bindings {
		resolvers[i] = b.Resolver
		names[i] = b.Param.Symbol()
	}
	return func(r *exchange.Request) ([]interface{}, error) {
		args := make([]interface{}, len(resolvers))
		for i, resolve := range resolvers {
			v, err := resolve(r)
			if err != nil {
				return nil, &ArgumentError{Name: names[i], Err: err}
			}
			args[i] = v
		}
		return args, nil
	}
}

// ArgumentError reports a resolver failure for one argument
type ArgumentError struct {
	Name string
	Err  error
}

// Error implements the error interface
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %v", e.Name, e.Err)
}

// Unwrap returns the resolver error
func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// Package spec expands a tree of namespace specs into a flat list of fully
// resolved entries. Contexts are concatenated, resolver maps merged and
// middleware inherited from parent to child.
package spec

import (
	"fmt"

	berrors "github.com/conduit-lang/waypoint/internal/errors"
	"github.com/conduit-lang/waypoint/internal/handler"
	"github.com/conduit-lang/waypoint/internal/resolve"
	"github.com/conduit-lang/waypoint/internal/route"
)

// NamespaceSpec declares where a namespace is mounted and what it inherits
type NamespaceSpec struct {
	// Context is an optional path fragment such as "/widgets/:id"
	Context string
	// Namespace identifies a registered namespace
	Namespace string
	// Resolvers are merged over the inherited resolver map
	Resolvers *resolve.Map
	// Middleware replaces the inherited middleware when non-nil
	Middleware []handler.Middleware
	// Children inherit this spec's context, resolvers and middleware
	Children []NamespaceSpec
}

// Entry is one fully resolved namespace mount
type Entry struct {
	Context    route.Path
	Namespace  string
	Resolvers  resolve.Map
	Middleware []handler.Middleware
	// Position locates the spec in the declaration tree
	Position string
}

// Expand flattens specs under the root context. Each spec yields one entry,
// parents before their children, in declaration order.
func Expand(root string, defaults resolve.Map, middleware []handler.Middleware, specs []NamespaceSpec) ([]Entry, error) {
	rootPath, err := route.Parse(root)
	if err != nil {
		return nil, berrors.New(berrors.PhaseExpand, berrors.ErrInvalidContext,
			fmt.Sprintf("root context %q", root)).WithSpec("root").Wrap(err)
	}

	parent := Entry{
		Context:    rootPath,
		Resolvers:  defaults.Clone(),
		Middleware: middleware,
	}

	var entries []Entry
	for i, s := range specs {
		entries, err = expand(entries, parent, s, fmt.Sprintf("specs[%d]", i))
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func expand(entries []Entry, parent Entry, s NamespaceSpec, position string) ([]Entry, error) {
	if s.Namespace == "" {
		return nil, berrors.New(berrors.PhaseExpand, berrors.ErrMissingNamespace,
			"spec does not name a namespace").WithSpec(position)
	}

	fragment, err := route.Parse(s.Context)
	if err != nil {
		return nil, berrors.New(berrors.PhaseExpand, berrors.ErrInvalidContext,
			fmt.Sprintf("context %q", s.Context)).WithSpec(position).WithNamespace(s.Namespace).Wrap(err)
	}
	context, err := route.Join(parent.Context, fragment)
	if err != nil {
		return nil, berrors.New(berrors.PhaseExpand, berrors.ErrInvalidContext,
			fmt.Sprintf("context %q under %s", s.Context, parent.Context)).
			WithSpec(position).WithNamespace(s.Namespace).Wrap(err)
	}

	resolvers := parent.Resolvers
	if s.Resolvers != nil {
		resolvers = parent.Resolvers.Merge(*s.Resolvers)
	}

	middleware := parent.Middleware
	if s.Middleware != nil {
		middleware = s.Middleware
	}

	entry := Entry{
		Context:    context,
		Namespace:  s.Namespace,
		Resolvers:  resolvers,
		Middleware: middleware,
		Position:   position,
	}
	entries = append(entries, entry)

	for i, child := range s.Children {
		entries, err = expand(entries, entry, child, fmt.Sprintf("%s.children[%d]", position, i))
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Package endpoint declares namespaces of endpoint functions and extracts
// routed endpoints from them.
//
// Namespaces are registered explicitly in a Registry. A function becomes an
// endpoint when its metadata declares a route or its name follows the REST
// convention table (index, show, create, update, patch, destroy).
package endpoint

import (
	"fmt"
	"sort"

	"github.com/conduit-lang/waypoint/internal/resolve"
)

// Func declares one exposed function of a namespace
type Func struct {
	Name string
	// Fn is the Go function invoked with the resolved arguments
	Fn     interface{}
	Params []resolve.Param
	Meta   Metadata
	// Private functions are never exposed as endpoints
	Private bool
}

// Namespace groups functions that share metadata
type Namespace struct {
	ID   string
	Meta Metadata
	// Load evaluates namespace metadata lazily; it runs at most once per
	// build and its result is merged over Meta
	Load  func() (Metadata, error)
	Funcs []Func
}

// NewNamespace creates an empty namespace
func NewNamespace(id string, meta Metadata) *Namespace {
	return &Namespace{ID: id, Meta: meta}
}

// Add appends functions to the namespace
func (n *Namespace) Add(fns ...Func) *Namespace {
	n.Funcs = append(n.Funcs, fns...)
	return n
}

// Handle declares a function with its parameters
func (n *Namespace) Handle(name string, fn interface{}, params ...resolve.Param) *Namespace {
	return n.Add(Func{Name: name, Fn: fn, Params: params})
}

// Route declares a function with an explicit route and metadata
func (n *Namespace) Route(name string, meta Metadata, fn interface{}, params ...resolve.Param) *Namespace {
	return n.Add(Func{Name: name, Fn: fn, Params: params, Meta: meta})
}

// Registry holds every namespace a spec may reference
type Registry struct {
	namespaces map[string]*Namespace
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{namespaces: make(map[string]*Namespace)}
}

// Register adds namespaces to the registry
func (r *Registry) Register(namespaces ...*Namespace) error {
	for _, ns := range namespaces {
		if ns == nil || ns.ID == "" {
			return fmt.Errorf("namespace must have an id")
		}
		if _, exists := r.namespaces[ns.ID]; exists {
			return fmt.Errorf("namespace %q already registered", ns.ID)
		}
		r.namespaces[ns.ID] = ns
	}
	return nil
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(namespaces ...*Namespace) *Registry {
	if err := r.Register(namespaces...); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the namespace with the given id
func (r *Registry) Lookup(id string) (*Namespace, bool) {
	ns, ok := r.namespaces[id]
	return ns, ok
}

// IDs returns the registered namespace ids in sorted order
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.namespaces))
	for id := range r.namespaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

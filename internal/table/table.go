// Package table compiles namespace specs into the routing table: the
// ordered, read-only list of every (method, path, handler, metadata)
// entry. The table is the input of the dispatcher and the source of truth
// for route introspection and documentation export.
package table

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/waypoint/internal/endpoint"
	"github.com/conduit-lang/waypoint/internal/resolve"
	"github.com/conduit-lang/waypoint/internal/route"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Entry is one compiled route
type Entry struct {
	Method    string
	Path      route.Path
	Handler   exchange.Handler
	Meta      endpoint.Metadata
	Match     endpoint.MatchFunc
	Namespace string
	Function  string
	Operation endpoint.Operation
	Bindings  []resolve.Binding
}

// Name returns the qualified route name, "namespace/function"
func (e Entry) Name() string {
	return e.Namespace + "/" + e.Function
}

// fingerprint identifies the entry's content independent of handler identity
func (e Entry) fingerprint() string {
	return fmt.Sprintf("%s %s %s match=%t", e.Method, e.Path, e.Name(), e.Match != nil)
}

// Table is the immutable routing table
type Table struct {
	entries []Entry
	byName  map[string]int
}

// New creates a table from entries, rejecting unguarded duplicates
func New(entries []Entry) (*Table, error) {
	if err := checkDuplicates(entries); err != nil {
		return nil, err
	}
	t := &Table{
		entries: append([]Entry(nil), entries...),
		byName:  make(map[string]int, len(entries)),
	}
	for i, e := range t.entries {
		if _, exists := t.byName[e.Name()]; !exists {
			t.byName[e.Name()] = i
		}
	}
	return t, nil
}

// Entries returns a copy of the entries in table order
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of entries
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup returns the entry with the given qualified name
func (t *Table) Lookup(name string) (Entry, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Equal reports whether both tables hold the same routes, ignoring order
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.entries) != len(o.entries) {
		return false
	}
	a := t.fingerprints()
	b := o.fingerprints()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *Table) fingerprints() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.fingerprint()
	}
	sort.Strings(out)
	return out
}

// URL renders the path of a named route with the given variables
func (t *Table) URL(name string, vars map[string]string) (string, error) {
	e, ok := t.Lookup(name)
	if !ok {
		return "", fmt.Errorf("route not found: %s", name)
	}
	url, err := e.Path.Render(vars)
	if err != nil {
		return "", fmt.Errorf("route %s: %w", name, err)
	}
	return url, nil
}

// URLFor is like URL but prefixes the mount path recorded in ctx, so the
// result is correct from inside a handler reached via loopback
func (t *Table) URLFor(ctx context.Context, name string, vars map[string]string) (string, error) {
	url, err := t.URL(name, vars)
	if err != nil {
		return "", err
	}
	mount := strings.TrimSuffix(exchange.MountPath(ctx), "/")
	if mount == "" {
		return url, nil
	}
	if url == "/" {
		return mount, nil
	}
	return mount + url, nil
}

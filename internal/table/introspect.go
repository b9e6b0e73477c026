package table

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conduit-lang/waypoint/internal/endpoint"
	"github.com/conduit-lang/waypoint/internal/resolve"
)

// RouteInfo provides metadata about a route for introspection
type RouteInfo struct {
	Method     string           `json:"method"`
	Pattern    string           `json:"pattern"`
	Name       string           `json:"name"`
	Namespace  string           `json:"namespace"`
	Function   string           `json:"function"`
	Operation  string           `json:"operation"`
	Summary    string           `json:"summary,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
	HasSchema  bool             `json:"has_schema"`
	Guarded    bool             `json:"guarded"`
	Parameters []RouteParameter `json:"parameters"`
}

// RouteParameter describes a parameter of a route
type RouteParameter struct {
	Name   string `json:"name"`
	Source string `json:"source"` // path, tag, direct
	Tag    string `json:"tag,omitempty"`
}

// Routes returns introspection records for every documented route.
// Entries flagged no-doc are omitted.
func (t *Table) Routes() []RouteInfo {
	routes := make([]RouteInfo, 0, len(t.entries))
	for _, e := range t.entries {
		if e.Meta.NoDoc() {
			continue
		}
		routes = append(routes, info(e))
	}
	return routes
}

// AllRoutes returns introspection records for every route, no-doc
// entries included
func (t *Table) AllRoutes() []RouteInfo {
	routes := make([]RouteInfo, len(t.entries))
	for i, e := range t.entries {
		routes[i] = info(e)
	}
	return routes
}

func info(e Entry) RouteInfo {
	params := make([]RouteParameter, 0, len(e.Bindings))
	for _, b := range e.Bindings {
		params = append(params, RouteParameter{
			Name:   b.Param.Symbol(),
			Source: b.Source.String(),
			Tag:    tagOf(b),
		})
	}
	return RouteInfo{
		Method:     e.Method,
		Pattern:    e.Path.String(),
		Name:       e.Name(),
		Namespace:  e.Namespace,
		Function:   e.Function,
		Operation:  e.Operation.String(),
		Summary:    e.Meta.String(endpoint.KeySummary),
		Tags:       e.Meta.Strings(endpoint.KeyTags),
		HasSchema:  e.Meta.Schema() != nil,
		Guarded:    e.Match != nil,
		Parameters: params,
	}
}

func tagOf(b resolve.Binding) string {
	if b.Source == resolve.FromTag {
		return b.Tag
	}
	return ""
}

// RouteList returns a formatted list of all routes
func (t *Table) RouteList() string {
	var sb strings.Builder
	sb.WriteString("Registered Routes:\n")
	sb.WriteString(strings.Repeat("-", 80) + "\n")
	sb.WriteString(fmt.Sprintf("%-8s %-40s %-30s\n", "METHOD", "PATTERN", "NAME"))
	sb.WriteString(strings.Repeat("-", 80) + "\n")

	for _, e := range t.entries {
		sb.WriteString(fmt.Sprintf("%-8s %-40s %-30s\n", e.Method, e.Path.String(), e.Name()))
	}

	return sb.String()
}

// MarshalJSON exports the documented routes
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Routes())
}

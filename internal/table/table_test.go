package table

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/waypoint/internal/endpoint"
	berrors "github.com/conduit-lang/waypoint/internal/errors"
	"github.com/conduit-lang/waypoint/internal/handler"
	"github.com/conduit-lang/waypoint/internal/resolve"
	"github.com/conduit-lang/waypoint/internal/route"
	"github.com/conduit-lang/waypoint/internal/spec"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

func registry() *endpoint.Registry {
	widgets := endpoint.NewNamespace("widgets", endpoint.Metadata{endpoint.KeyTags: []string{"widgets"}})
	widgets.Handle("index", func() []string { return nil })
	widgets.Handle("show", func(id int) int { return id }, resolve.P("id"))
	widgets.Route("create", endpoint.Metadata{
		endpoint.KeySummary: "Create a widget",
		endpoint.KeySchema:  "widget",
	}, func(body interface{}) interface{} { return body }, resolve.P("body"))
	widgets.Route("search", endpoint.Metadata{
		endpoint.KeyRoute: route.Get("/search"),
		endpoint.KeyNoDoc: true,
	}, func(q string) string { return q }, resolve.Tagged("q", resolve.TagQuery, true))

	parts := endpoint.NewNamespace("parts", nil)
	parts.Handle("show", func(widgetID, id string) string { return widgetID + "/" + id },
		resolve.P("widget-id"), resolve.P("id"))

	return endpoint.NewRegistry().MustRegister(widgets, parts)
}

var acceptAll = handler.ValidatorFunc(func(_ interface{}, req *exchange.Request) (*exchange.Request, *exchange.Response) {
	return req, nil
})

func specs() []spec.NamespaceSpec {
	return []spec.NamespaceSpec{{
		Context:   "/widgets",
		Namespace: "widgets",
		Children: []spec.NamespaceSpec{
			{Context: "/:widget-id/parts", Namespace: "parts"},
		},
	}}
}

func build(t *testing.T, root string) *Table {
	t.Helper()
	tbl, err := Build(registry(), specs(), Options{Root: root, Validator: acceptAll})
	require.NoError(t, err)
	return tbl
}

func TestBuild(t *testing.T) {
	tbl := build(t, "/api")
	assert.Equal(t, 5, tbl.Len())

	tests := []struct {
		name    string
		method  string
		pattern string
		op      endpoint.Operation
	}{
		{name: "widgets/index", method: http.MethodGet, pattern: "/api/widgets", op: endpoint.OpIndex},
		{name: "widgets/show", method: http.MethodGet, pattern: "/api/widgets/:id", op: endpoint.OpShow},
		{name: "widgets/create", method: http.MethodPost, pattern: "/api/widgets", op: endpoint.OpCreate},
		{name: "widgets/search", method: http.MethodGet, pattern: "/api/widgets/search", op: endpoint.OpCustom},
		{name: "parts/show", method: http.MethodGet, pattern: "/api/widgets/:widget-id/parts/:id", op: endpoint.OpShow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := tbl.Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.method, e.Method)
			assert.Equal(t, tt.pattern, e.Path.String())
			assert.Equal(t, tt.op, e.Operation)
			assert.NotNil(t, e.Handler)
		})
	}

	_, ok := tbl.Lookup("widgets/destroy")
	assert.False(t, ok)
}

func TestBuild_HandlersAreCallable(t *testing.T) {
	tbl := build(t, "")
	e, ok := tbl.Lookup("parts/show")
	require.True(t, ok)

	req := exchange.NewRequest(http.MethodGet, "/widgets/7/parts/3")
	req.PathParams = map[string]string{"widget-id": "7", "id": "3"}
	resp := e.Handler(req)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "7/3", resp.Body)
}

func TestBuild_Deterministic(t *testing.T) {
	a := build(t, "/api")
	b := build(t, "/api")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(build(t, "")))

	var none *Table
	assert.True(t, none.Equal(nil))
	assert.False(t, a.Equal(nil))
}

func TestBuild_Errors(t *testing.T) {
	noop := func() {}
	ns := func(id string, fns ...endpoint.Func) *endpoint.Namespace {
		return endpoint.NewNamespace(id, nil).Add(fns...)
	}
	fn := func(name string, meta endpoint.Metadata, f interface{}, params ...resolve.Param) endpoint.Func {
		return endpoint.Func{Name: name, Meta: meta, Fn: f, Params: params}
	}
	failing := resolve.NewMap().WithFactory("failing", func(resolve.Param, interface{}) (resolve.Resolver, error) {
		return nil, fmt.Errorf("nope")
	})

	tests := []struct {
		name     string
		ns       *endpoint.Namespace
		spec     spec.NamespaceSpec
		wantCode string
	}{
		{
			name:     "missing namespace",
			ns:       ns("a"),
			spec:     spec.NamespaceSpec{Context: "/a"},
			wantCode: berrors.ErrMissingNamespace,
		},
		{
			name:     "invalid context",
			ns:       ns("a"),
			spec:     spec.NamespaceSpec{Context: "/{", Namespace: "a"},
			wantCode: berrors.ErrInvalidContext,
		},
		{
			name:     "unregistered namespace",
			ns:       ns("a"),
			spec:     spec.NamespaceSpec{Namespace: "ghost"},
			wantCode: berrors.ErrNamespaceLoad,
		},
		{
			name:     "invalid metadata",
			ns:       ns("a", fn("f", endpoint.Metadata{endpoint.KeyRoute: "GET /", endpoint.KeyMatch: 1}, noop)),
			spec:     spec.NamespaceSpec{Namespace: "a"},
			wantCode: berrors.ErrInvalidMetadata,
		},
		{
			name:     "invalid route",
			ns:       ns("a", fn("f", endpoint.Metadata{endpoint.KeyRoute: "BREW /pot"}, noop)),
			spec:     spec.NamespaceSpec{Namespace: "a"},
			wantCode: berrors.ErrInvalidRoute,
		},
		{
			name:     "unresolvable argument",
			ns:       ns("a", fn("index", nil, func(string) {}, resolve.P("store"))),
			spec:     spec.NamespaceSpec{Namespace: "a"},
			wantCode: berrors.ErrUnresolvableArgument,
		},
		{
			name:     "destructured without alias",
			ns:       ns("a", fn("index", nil, func(interface{}) {}, resolve.Destructured("", "x"))),
			spec:     spec.NamespaceSpec{Namespace: "a"},
			wantCode: berrors.ErrMissingAlias,
		},
		{
			name: "conflicting tags",
			ns: ns("a", fn("index", nil, func(string) {},
				resolve.Tagged("q", resolve.TagQuery, true).With(resolve.TagHeader, true))),
			spec:     spec.NamespaceSpec{Namespace: "a"},
			wantCode: berrors.ErrConflictingTags,
		},
		{
			name:     "unknown tag",
			ns:       ns("a", fn("index", nil, func(string) {}, resolve.Tagged("q", "cookie", true))),
			spec:     spec.NamespaceSpec{Namespace: "a"},
			wantCode: berrors.ErrUnknownTag,
		},
		{
			name:     "invalid signature",
			ns:       ns("a", fn("index", nil, func(a, b string) {}, resolve.P("body"))),
			spec:     spec.NamespaceSpec{Namespace: "a"},
			wantCode: berrors.ErrInvalidSignature,
		},
		{
			name:     "duplicate route",
			ns:       ns("a", fn("index", nil, noop), fn("list", endpoint.Metadata{endpoint.KeyRoute: "GET /"}, noop)),
			spec:     spec.NamespaceSpec{Namespace: "a"},
			wantCode: berrors.ErrDuplicateRoute,
		},
		{
			name:     "factory failed",
			ns:       ns("a", fn("index", nil, func(string) {}, resolve.Tagged("q", "failing", true))),
			spec:     spec.NamespaceSpec{Namespace: "a", Resolvers: &failing},
			wantCode: berrors.ErrFactoryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := endpoint.NewRegistry().MustRegister(tt.ns)
			_, err := Build(reg, []spec.NamespaceSpec{tt.spec}, Options{})
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, &berrors.BuildError{Code: tt.wantCode}), err.Error())
			assert.Equal(t, tt.wantCode, berrors.Code(err))
		})
	}
}

func TestBuild_CollectsErrorsAcrossSpecs(t *testing.T) {
	a := endpoint.NewNamespace("a", nil).Handle("index", func(string) {}, resolve.P("x"))
	b := endpoint.NewNamespace("b", nil).Handle("index", func(string) {}, resolve.P("y"))
	reg := endpoint.NewRegistry().MustRegister(a, b)

	_, err := Build(reg, []spec.NamespaceSpec{{Namespace: "a"}, {Namespace: "b"}}, Options{})
	var list berrors.List
	require.ErrorAs(t, err, &list)
	require.Len(t, list, 2)

	tests := []struct {
		spec, namespace, symbol string
	}{
		{spec: "specs[0]", namespace: "a", symbol: "x"},
		{spec: "specs[1]", namespace: "b", symbol: "y"},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.spec, list[i].Spec)
		assert.Equal(t, tt.namespace, list[i].Namespace)
		assert.Equal(t, "index", list[i].Function)
		assert.Equal(t, tt.symbol, list[i].Symbol)
	}
}

func TestBuild_DefaultResolversReplaced(t *testing.T) {
	ns := endpoint.NewNamespace("a", nil).Handle("index", func(string) {}, resolve.P("body"))
	reg := endpoint.NewRegistry().MustRegister(ns)
	empty := resolve.NewMap()

	_, err := Build(reg, []spec.NamespaceSpec{{Namespace: "a"}}, Options{Resolvers: &empty})
	assert.Equal(t, berrors.ErrUnresolvableArgument, berrors.Code(err))
}

func entry(method, path, name string, match endpoint.MatchFunc) Entry {
	return Entry{Method: method, Path: route.MustParse(path), Namespace: "ns", Function: name, Match: match}
}

func TestNew_Duplicates(t *testing.T) {
	always := func(*exchange.Request) bool { return true }

	tests := []struct {
		name    string
		entries []Entry
		wantErr int
	}{
		{
			name:    "same method and path",
			entries: []Entry{entry("GET", "/w/:id", "a", nil), entry("GET", "/w/:id", "b", nil)},
			wantErr: 2,
		},
		{
			name:    "variable names do not matter",
			entries: []Entry{entry("GET", "/w/:id", "a", nil), entry("GET", "/w/:name", "b", nil)},
			wantErr: 2,
		},
		{
			name:    "method all collides",
			entries: []Entry{entry("*", "/w", "a", nil), entry("DELETE", "/w", "b", nil)},
			wantErr: 2,
		},
		{
			name:    "one guarded",
			entries: []Entry{entry("GET", "/w", "a", always), entry("GET", "/w", "b", nil)},
			wantErr: 1,
		},
		{
			name:    "all guarded",
			entries: []Entry{entry("GET", "/w", "a", always), entry("GET", "/w", "b", always)},
		},
		{
			name:    "different methods",
			entries: []Entry{entry("GET", "/w", "a", nil), entry("POST", "/w", "b", nil)},
		},
		{
			name:    "constraints do not matter",
			entries: []Entry{entry("GET", "/x/:id{[0-9]+}", "num", nil), entry("GET", "/x/:slug", "slug", nil)},
			wantErr: 2,
		},
		{
			name:    "constrained and guarded",
			entries: []Entry{entry("GET", "/x/:id{[0-9]+}", "num", always), entry("GET", "/x/:slug", "slug", always)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries)
			if tt.wantErr == 0 {
				assert.NoError(t, err)
				return
			}
			var list berrors.List
			require.ErrorAs(t, err, &list)
			assert.Len(t, list, tt.wantErr)
			assert.Equal(t, berrors.ErrDuplicateRoute, list[0].Code)
		})
	}
}

func TestTable_URL(t *testing.T) {
	tbl := build(t, "")

	tests := []struct {
		name    string
		route   string
		vars    map[string]string
		want    string
		wantErr string
	}{
		{name: "static", route: "widgets/index", want: "/widgets"},
		{name: "variable", route: "widgets/show", vars: map[string]string{"id": "42"}, want: "/widgets/42"},
		{name: "escaped", route: "parts/show", vars: map[string]string{"widget-id": "a/b", "id": "1"}, want: "/widgets/a%2Fb/parts/1"},
		{name: "missing variable", route: "widgets/show", wantErr: "missing value"},
		{name: "unknown route", route: "widgets/nope", wantErr: "route not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tbl.URL(tt.route, tt.vars)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTable_URLFor(t *testing.T) {
	tbl := build(t, "")
	ctx := exchange.WithLocation(context.Background(), exchange.Location{MountPath: "/api/"})

	got, err := tbl.URLFor(ctx, "widgets/show", map[string]string{"id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "/api/widgets/1", got)

	got, err = tbl.URLFor(context.Background(), "widgets/index", nil)
	require.NoError(t, err)
	assert.Equal(t, "/widgets", got)

	_, err = tbl.URLFor(ctx, "ghost/index", nil)
	assert.Error(t, err)
}

func TestTable_Introspection(t *testing.T) {
	tbl := build(t, "")

	routes := tbl.Routes()
	assert.Len(t, routes, 4, "no-doc routes are hidden")
	assert.Len(t, tbl.AllRoutes(), 5)

	var create RouteInfo
	for _, r := range routes {
		if r.Name == "widgets/create" {
			create = r
		}
	}
	assert.Equal(t, "Create a widget", create.Summary)
	assert.True(t, create.HasSchema)
	assert.Equal(t, []string{"widgets"}, create.Tags)
	assert.Equal(t, []RouteParameter{{Name: "body", Source: "direct"}}, create.Parameters)

	for _, r := range tbl.AllRoutes() {
		if r.Name == "widgets/search" {
			assert.Equal(t, []RouteParameter{{Name: "q", Source: "tag", Tag: resolve.TagQuery}}, r.Parameters)
		}
	}

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	var decoded []RouteInfo
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, routes, decoded)

	list := tbl.RouteList()
	assert.Contains(t, list, "Registered Routes:")
	assert.Contains(t, list, "widgets/search")
}

func TestTable_EntriesIsACopy(t *testing.T) {
	tbl := build(t, "")
	entries := tbl.Entries()
	entries[0].Function = "changed"
	assert.NotEqual(t, "changed", tbl.Entries()[0].Function)
}

// Package demo is a small widget catalog built on the endpoint compiler.
// It exercises REST conventions, nested contexts with path variables,
// tagged and injected parameters, schema validation, predicates and the
// rate-limit, auth and cache stages over an injected *sql.DB.
package demo

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/endpoint"
	"github.com/conduit-lang/waypoint/internal/handler"
	"github.com/conduit-lang/waypoint/internal/resolve"
	"github.com/conduit-lang/waypoint/internal/route"
	"github.com/conduit-lang/waypoint/internal/spec"
	"github.com/conduit-lang/waypoint/internal/table"
	"github.com/conduit-lang/waypoint/internal/validate"
	"github.com/conduit-lang/waypoint/internal/web/auth"
	"github.com/conduit-lang/waypoint/internal/web/cache"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
	"github.com/conduit-lang/waypoint/internal/web/ratelimit"
)

// Resource names injected into every request by the transport
const (
	ResourceDB     = "db"
	ResourceTokens = "tokens"
)

// Deps are the collaborators the demo stages need
type Deps struct {
	// Driver names the database dialect of the injected *sql.DB
	Driver  string
	Tokens  *auth.TokenService
	Limiter ratelimit.RateLimiter
	// FailOpen lets requests through when the limiter is unavailable
	FailOpen bool
	// Cache stores responses of endpoints declaring a cache policy; nil
	// disables the cache stage
	Cache  cache.Store
	Logger *zap.Logger
}

// Registry registers the demo namespaces
func Registry() *endpoint.Registry {
	widgets := endpoint.NewNamespace("widgets", endpoint.Metadata{
		endpoint.KeyDoc:  "Widget catalog",
		endpoint.KeyTags: []string{"widgets"},
	}).
		Add(endpoint.Func{
			Name:   "index",
			Fn:     listWidgets,
			Params: []resolve.Param{resolve.P("ctx"), resolve.P("store"), resolve.Tagged("limit", resolve.TagQuery, true), resolve.Tagged("offset", resolve.TagQuery, true)},
			Meta:   endpoint.Metadata{endpoint.KeySummary: "List widgets"},
		}).
		Add(endpoint.Func{
			Name:   "show",
			Fn:     showWidget,
			Params: []resolve.Param{resolve.P("ctx"), resolve.P("store"), resolve.P("id")},
			Meta:   endpoint.Metadata{endpoint.KeySummary: "Show a widget"},
		}).
		Add(endpoint.Func{
			Name:   "create",
			Fn:     createWidget,
			Params: []resolve.Param{resolve.P("ctx"), resolve.P("store"), resolve.P("input")},
			Meta: endpoint.Metadata{
				endpoint.KeySummary: "Create a widget",
				endpoint.KeySchema:  WidgetInput{},
				endpoint.KeyAuth:    map[string]interface{}{"permission": string(auth.WidgetsWrite)},
			},
		}).
		Add(endpoint.Func{
			Name:   "update",
			Fn:     updateWidget,
			Params: []resolve.Param{resolve.P("ctx"), resolve.P("store"), resolve.P("id"), resolve.P("input")},
			Meta: endpoint.Metadata{
				endpoint.KeySchema: WidgetInput{},
				endpoint.KeyAuth:   map[string]interface{}{"permission": string(auth.WidgetsWrite)},
			},
		}).
		Add(endpoint.Func{
			Name:   "destroy",
			Fn:     destroyWidget,
			Params: []resolve.Param{resolve.P("ctx"), resolve.P("store"), resolve.P("id")},
			Meta:   endpoint.Metadata{endpoint.KeyAuth: "admin"},
		}).
		Add(endpoint.Func{Name: "page-size", Fn: func() int { return defaultPageSize }, Private: true})

	parts := endpoint.NewNamespace("parts", endpoint.Metadata{endpoint.KeyTags: []string{"parts"}}).
		Add(endpoint.Func{
			Name:   "index",
			Fn:     listParts,
			Params: []resolve.Param{resolve.P("ctx"), resolve.P("store"), resolve.P("widget-id")},
		}).
		Add(endpoint.Func{
			Name:   "create",
			Fn:     createPart,
			Params: []resolve.Param{resolve.P("ctx"), resolve.P("store"), resolve.P("widget-id"), resolve.P("input")},
			Meta: endpoint.Metadata{
				endpoint.KeySchema:    PartInput{},
				endpoint.KeyAuth:      map[string]interface{}{"permission": string(auth.PartsWrite)},
				endpoint.KeyRateLimit: map[string]interface{}{"limit": 30, "window": "1m"},
			},
		})

	sessions := endpoint.NewNamespace("sessions", nil).
		Add(endpoint.Func{
			Name: "create",
			Fn:   createSession,
			Params: []resolve.Param{
				resolve.P("ctx"), resolve.P("store"),
				resolve.Tagged("tokens", resolve.TagInject, ResourceTokens),
				resolve.P("input"),
			},
			Meta: endpoint.Metadata{
				endpoint.KeySchema:    LoginInput{},
				endpoint.KeyRateLimit: map[string]interface{}{"limit": 10, "window": "1m"},
			},
		}).
		Route("whoami", endpoint.Metadata{endpoint.KeyRoute: route.Get("/me"), endpoint.KeyAuth: true},
			whoami, resolve.Tagged("principal", resolve.TagInject, auth.ResourcePrincipal))

	system := endpoint.NewNamespace("system", endpoint.Metadata{
		endpoint.KeyNoDoc: true,
		endpoint.KeyCache: "30s",
	}).
		Route("status-v1", endpoint.Metadata{
			endpoint.KeyRoute: route.Get("/status"),
			endpoint.KeyMatch: acceptsVersion("1"),
		}, statusV1).
		Route("status-v2", endpoint.Metadata{
			endpoint.KeyRoute: route.Get("/status"),
			endpoint.KeyMatch: acceptsVersion("2"),
		}, statusV2, resolve.Tagged("mount", resolve.TagRequest, "mount"))

	return endpoint.NewRegistry().MustRegister(widgets, parts, sessions, system)
}

// Specs mounts the demo namespaces. Parts nest under a widget so that
// GET /widgets/:widget-id/parts lists the parts of one widget.
func Specs() []spec.NamespaceSpec {
	return []spec.NamespaceSpec{
		{
			Context:   "/widgets",
			Namespace: "widgets",
			Children: []spec.NamespaceSpec{
				{Context: "/:widget-id{[0-9]+}/parts", Namespace: "parts"},
			},
		},
		{Context: "/sessions", Namespace: "sessions"},
		{Namespace: "system"},
	}
}

// Resolvers extends the built-in resolver map with a "store" resolver
// that wraps the injected database handle
func Resolvers(driver string) resolve.Map {
	return resolve.Defaults().WithDirect("store", func(req *exchange.Request) (interface{}, error) {
		db, ok := req.Resources[ResourceDB].(*sql.DB)
		if !ok || db == nil {
			return nil, exchange.NewStatusError(http.StatusInternalServerError, exchange.CodeInternal,
				"database was not injected")
		}
		return NewStore(db, driver), nil
	})
}

// Middleware returns the endpoint stages every demo route inherits
func Middleware(deps Deps) []handler.Middleware {
	mw := []handler.Middleware{
		ratelimit.Stage(ratelimit.Config{Limiter: deps.Limiter, FailOpen: deps.FailOpen, Logger: deps.Logger}),
		auth.Stage(deps.Tokens, deps.Logger),
	}
	if deps.Cache != nil {
		mw = append(mw, cache.Stage(cache.Config{Store: deps.Cache, Logger: deps.Logger}))
	}
	return mw
}

// Build compiles the demo routing table mounted under root
func Build(root string, deps Deps) (*table.Table, error) {
	resolvers := Resolvers(deps.Driver)
	return table.Build(Registry(), Specs(), table.Options{
		Root:       root,
		Resolvers:  &resolvers,
		Middleware: Middleware(deps),
		Validator:  validate.New(),
		Logger:     deps.Logger,
	})
}

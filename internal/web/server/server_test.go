package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/waypoint/internal/dispatch"
	"github.com/conduit-lang/waypoint/internal/endpoint"
	"github.com/conduit-lang/waypoint/internal/resolve"
	"github.com/conduit-lang/waypoint/internal/route"
	"github.com/conduit-lang/waypoint/internal/spec"
	"github.com/conduit-lang/waypoint/internal/table"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
	"github.com/conduit-lang/waypoint/internal/web/profiling"
)

func buildDispatcher(t *testing.T, greeting string, async bool) *dispatch.Dispatcher {
	t.Helper()

	ns := endpoint.NewNamespace("widgets", nil).
		Handle("show", func(id string) map[string]string {
			return map[string]string{"id": id, "greeting": greeting}
		}, resolve.P("id")).
		Handle("create", func(ctx context.Context, name string) *exchange.Response {
			return exchange.Created(exchange.URI(ctx, name), map[string]string{"name": name})
		}, resolve.P("ctx"), resolve.Tagged("name", "param", true)).
		Route("echo", endpoint.Metadata{endpoint.KeyRoute: route.Post("/echo")},
			func(body interface{}) interface{} { return body },
			resolve.P("body")).
		Route("boom", endpoint.Metadata{endpoint.KeyRoute: route.Get("/boom")},
			func() error { panic("kaboom") })

	registry := endpoint.NewRegistry().MustRegister(ns)
	tbl, err := table.Build(registry, []spec.NamespaceSpec{
		{Context: "/widgets", Namespace: "widgets"},
	}, table.Options{})
	require.NoError(t, err)
	return dispatch.New(tbl, dispatch.Options{Async: async, Timeout: time.Second})
}

func TestAdapter(t *testing.T) {
	for _, async := range []bool{false, true} {
		name := "sync"
		if async {
			name = "async"
		}
		t.Run(name, func(t *testing.T) {
			a := NewAdapter(buildDispatcher(t, "hi", async), AdapterOptions{MountPath: "/api/"})
			srv := httptest.NewServer(NewRouter(a, RouterOptions{ExposeRoutes: true}))
			defer srv.Close()

			tests := []struct {
				name        string
				method      string
				path        string
				contentType string
				body        string
				status      int
				contains    string
			}{
				{name: "show decodes path variable", method: http.MethodGet, path: "/api/widgets/a%20b", status: http.StatusOK, contains: `"id":"a b"`},
				{name: "create from json body", method: http.MethodPost, path: "/api/widgets", contentType: "application/json", body: `{"name":"gear"}`, status: http.StatusCreated, contains: `"name":"gear"`},
				{name: "create from form", method: http.MethodPost, path: "/api/widgets", contentType: "application/x-www-form-urlencoded", body: "name=cog", status: http.StatusCreated, contains: `"name":"cog"`},
				{name: "echo returns decoded body", method: http.MethodPost, path: "/api/widgets/echo", contentType: "application/json", body: `[1,2]`, status: http.StatusOK, contains: `[1,2]`},
				{name: "invalid json", method: http.MethodPost, path: "/api/widgets", contentType: "application/json", body: `{`, status: http.StatusBadRequest, contains: `bad_request`},
				{name: "panic becomes 500", method: http.MethodGet, path: "/api/widgets/boom", status: http.StatusInternalServerError, contains: "kaboom"},
				{name: "unknown route", method: http.MethodGet, path: "/api/gadgets", status: http.StatusNotFound, contains: "not_found"},
				{name: "outside mount", method: http.MethodGet, path: "/widgets/1", status: http.StatusNotFound},
				{name: "health", method: http.MethodGet, path: "/healthz", status: http.StatusOK, contains: `"routes":4`},
				{name: "routes", method: http.MethodGet, path: "/_routes", status: http.StatusOK, contains: `widgets/show`},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
					require.NoError(t, err)
					if tt.contentType != "" {
						req.Header.Set("Content-Type", tt.contentType)
					}
					resp, err := http.DefaultClient.Do(req)
					require.NoError(t, err)
					defer resp.Body.Close()

					assert.Equal(t, tt.status, resp.StatusCode)
					assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
					if tt.contains != "" {
						var buf strings.Builder
						_, err := io.Copy(&buf, resp.Body)
						require.NoError(t, err)
						assert.Contains(t, buf.String(), tt.contains)
					}
				})
			}
		})
	}
}

func TestAdapter_CreatedLocationUsesMountPath(t *testing.T) {
	a := NewAdapter(buildDispatcher(t, "hi", false), AdapterOptions{MountPath: "/api"})

	req := httptest.NewRequest(http.MethodPost, "/api/widgets?name=gear", nil)
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/widgets/gear", rec.Header().Get("Location"))
}

func TestAdapter_Swap(t *testing.T) {
	a := NewAdapter(buildDispatcher(t, "first", false), AdapterOptions{})
	h := NewRouter(a, RouterOptions{})

	get := func() map[string]string {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	assert.Equal(t, "first", get()["greeting"])
	old := a.Swap(buildDispatcher(t, "second", false))
	assert.NotNil(t, old)
	assert.Equal(t, "second", get()["greeting"])
}

func TestRouter_Profile(t *testing.T) {
	a := NewAdapter(buildDispatcher(t, "hi", false), AdapterOptions{})

	tests := []struct {
		name    string
		profile *profiling.Config
		status  int
	}{
		{name: "mounted", profile: &profiling.Config{Path: "/debug/pprof"}, status: http.StatusOK},
		{name: "not mounted", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(a, RouterOptions{Profile: tt.profile})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/stats", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAdapter_Resources(t *testing.T) {
	ns := endpoint.NewNamespace("res", nil).
		Route("get", endpoint.Metadata{endpoint.KeyRoute: route.Get("/")},
			func(db string) string { return db },
			resolve.Tagged("db", "inject", "db"))
	tbl, err := table.Build(endpoint.NewRegistry().MustRegister(ns),
		[]spec.NamespaceSpec{{Namespace: "res"}}, table.Options{})
	require.NoError(t, err)

	a := NewAdapter(dispatch.New(tbl, dispatch.Options{}), AdapterOptions{
		Resources: map[string]interface{}{"db": "handle"},
	})
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "handle", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	cfg := DefaultConfig(h)
	cfg.Address = "127.0.0.1:0"

	srv, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	gs := NewGracefulShutdown(srv, time.Second, nil)
	hookRan := false
	gs.RegisterHook(func(context.Context) error {
		hookRan = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()

	resp, err := http.Get("http://" + srv.Addr())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.True(t, hookRan)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	_, err = New(&Config{})
	assert.Error(t, err)
}

package demo

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/waypoint/internal/cli/config"
	"github.com/conduit-lang/waypoint/internal/dispatch"
	"github.com/conduit-lang/waypoint/internal/table"
	"github.com/conduit-lang/waypoint/internal/web/auth"
	"github.com/conduit-lang/waypoint/internal/web/cache"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
	"github.com/conduit-lang/waypoint/internal/web/ratelimit"
)

type testApp struct {
	table      *table.Table
	dispatcher *dispatch.Dispatcher
	db         *sql.DB
	store      *Store
	tokens     *auth.TokenService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db, "sqlite3")
	require.NoError(t, store.Migrate(ctx))

	tokens, err := auth.NewTokenService("demo-secret", time.Hour)
	require.NoError(t, err)

	limiter := ratelimit.NewTokenBucket(0)
	t.Cleanup(func() { limiter.Close() })

	tbl, err := Build("", Deps{Driver: "sqlite3", Tokens: tokens, Limiter: limiter})
	require.NoError(t, err)

	return &testApp{
		table:      tbl,
		dispatcher: dispatch.New(tbl, dispatch.Options{}),
		db:         db,
		store:      store,
		tokens:     tokens,
	}
}

func (a *testApp) token(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := a.tokens.GenerateToken("1", "ada@example.com", roles)
	require.NoError(t, err)
	return token
}

type call struct {
	method string
	path   string
	token  string
	header map[string]string
	body   map[string]interface{}
	remote string
}

func (a *testApp) do(c call) *exchange.Response {
	req := exchange.NewRequest(c.method, c.path)
	req.RemoteAddr = c.remote
	req.Resources[ResourceDB] = a.db
	req.Resources[ResourceTokens] = a.tokens
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	if c.body != nil {
		req.Body = c.body
		for k, v := range c.body {
			req.Params[k] = v
		}
	}
	return a.dispatcher.Handle(req)
}

func TestBuild_Routes(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, 11, app.table.Len())

	tests := []struct {
		name   string
		method string
		vars   []string
		segs   int
	}{
		{name: "widgets/index", method: http.MethodGet, segs: 1},
		{name: "widgets/show", method: http.MethodGet, vars: []string{"id"}, segs: 2},
		{name: "widgets/destroy", method: http.MethodDelete, vars: []string{"id"}, segs: 2},
		{name: "parts/index", method: http.MethodGet, vars: []string{"widget-id"}, segs: 3},
		{name: "parts/create", method: http.MethodPost, vars: []string{"widget-id"}, segs: 3},
		{name: "sessions/whoami", method: http.MethodGet, segs: 2},
		{name: "system/status-v2", method: http.MethodGet, segs: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := app.table.Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.method, entry.Method)
			assert.Len(t, entry.Path, tt.segs)
			if tt.vars == nil {
				assert.Empty(t, entry.Path.Vars())
			} else {
				assert.Equal(t, tt.vars, entry.Path.Vars())
			}
		})
	}

	_, ok := app.table.Lookup("widgets/page-size")
	assert.False(t, ok, "private functions are not exposed")
}

func TestBuild_Deterministic(t *testing.T) {
	deps := Deps{Driver: "sqlite3", Limiter: ratelimit.NewTokenBucket(0)}
	first, err := Build("/api", deps)
	require.NoError(t, err)
	second, err := Build("/api", deps)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestApp_Widgets(t *testing.T) {
	app := newTestApp(t)
	editor := app.token(t, "editor")
	admin := app.token(t, "admin")

	resp := app.do(call{method: http.MethodPost, path: "/widgets", body: map[string]interface{}{"name": "gear", "price": 2.5}})
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = app.do(call{method: http.MethodPost, path: "/widgets", token: app.token(t, "viewer"), body: map[string]interface{}{"name": "gear"}})
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = app.do(call{method: http.MethodPost, path: "/widgets", token: editor, body: map[string]interface{}{"price": -1}})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	body, ok := resp.Body.(*exchange.ErrorBody)
	require.True(t, ok, "got %T", resp.Body)
	assert.Equal(t, exchange.CodeValidationFailed, body.Code)

	resp = app.do(call{method: http.MethodPost, path: "/widgets", token: editor, body: map[string]interface{}{"name": "gear", "price": 2.5}})
	require.Equal(t, http.StatusCreated, resp.Status)
	created := resp.Body.(*Widget)
	assert.Equal(t, "gear", created.Name)
	assert.Equal(t, "/widgets/1", resp.Header.Get("Location"))

	_, err := app.store.CreateWidget(context.Background(), "cog", 1)
	require.NoError(t, err)

	resp = app.do(call{method: http.MethodGet, path: "/widgets/1"})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, &Widget{ID: 1, Name: "gear", Price: 2.5}, resp.Body)

	resp = app.do(call{method: http.MethodGet, path: "/widgets?limit=1&offset=1"})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []Widget{{ID: 2, Name: "cog", Price: 1}}, resp.Body)

	resp = app.do(call{method: http.MethodGet, path: "/widgets/99"})
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp = app.do(call{method: http.MethodGet, path: "/widgets/abc"})
	assert.Equal(t, http.StatusBadRequest, resp.Status, "id must coerce to int64")

	resp = app.do(call{method: http.MethodPut, path: "/widgets/1", token: editor, body: map[string]interface{}{"name": "sprocket", "price": 4}})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, &Widget{ID: 1, Name: "sprocket", Price: 4}, resp.Body)

	resp = app.do(call{method: http.MethodDelete, path: "/widgets/1", token: editor})
	assert.Equal(t, http.StatusForbidden, resp.Status, "destroy requires the admin role")

	resp = app.do(call{method: http.MethodDelete, path: "/widgets/1", token: admin})
	assert.Equal(t, http.StatusNoContent, resp.Status)

	resp = app.do(call{method: http.MethodDelete, path: "/widgets/1", token: admin})
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestApp_NestedParts(t *testing.T) {
	app := newTestApp(t)
	editor := app.token(t, "editor")

	w, err := app.store.CreateWidget(context.Background(), "gear", 1)
	require.NoError(t, err)

	resp := app.do(call{method: http.MethodPost, path: "/widgets/1/parts", token: editor, remote: "10.0.0.1:5000",
		body: map[string]interface{}{"name": "tooth", "quantity": 12}})
	require.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "/widgets/1/parts/1", resp.Header.Get("Location"))
	assert.Equal(t, "30", resp.Header.Get("X-RateLimit-Limit"))

	resp = app.do(call{method: http.MethodGet, path: "/widgets/1/parts"})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []Part{{ID: 1, WidgetID: w.ID, Name: "tooth", Quantity: 12}}, resp.Body)

	resp = app.do(call{method: http.MethodGet, path: "/widgets/7/parts"})
	assert.Equal(t, http.StatusNotFound, resp.Status)

	assert.Nil(t, app.do(call{method: http.MethodGet, path: "/widgets/x/parts"}), "constraint rejects non-numeric ids")
}

func TestApp_Sessions(t *testing.T) {
	app := newTestApp(t)

	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	_, err = app.store.CreateUser(context.Background(), "ada@example.com", hash, []string{"editor"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
	}{
		{name: "valid credentials", body: map[string]interface{}{"email": "ada@example.com", "password": "correct horse"}, status: http.StatusCreated},
		{name: "wrong password", body: map[string]interface{}{"email": "ada@example.com", "password": "nope"}, status: http.StatusUnauthorized},
		{name: "unknown user", body: map[string]interface{}{"email": "bob@example.com", "password": "x"}, status: http.StatusUnauthorized},
		{name: "invalid email", body: map[string]interface{}{"email": "ada", "password": "x"}, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := app.do(call{method: http.MethodPost, path: "/sessions", body: tt.body})
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.Status)
		})
	}

	resp := app.do(call{method: http.MethodPost, path: "/sessions",
		body: map[string]interface{}{"email": "ada@example.com", "password": "correct horse"}})
	require.Equal(t, http.StatusCreated, resp.Status)
	s := resp.Body.(session)

	resp = app.do(call{method: http.MethodGet, path: "/sessions/me", token: s.Token})
	require.Equal(t, http.StatusOK, resp.Status)
	p := resp.Body.(*auth.Principal)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, []string{"editor"}, p.Roles)

	resp = app.do(call{method: http.MethodGet, path: "/sessions/me"})
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestApp_SessionsRateLimited(t *testing.T) {
	app := newTestApp(t)
	login := call{method: http.MethodPost, path: "/sessions", remote: "10.0.0.9:4000",
		body: map[string]interface{}{"email": "ghost@example.com", "password": "x"}}

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusUnauthorized, app.do(login).Status)
	}
	resp := app.do(login)
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	login.remote = "10.0.0.10:4000"
	assert.Equal(t, http.StatusUnauthorized, app.do(login).Status, "other clients keep their budget")
}

func TestApp_VersionedStatus(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name    string
		version string
		want    string
		status  int
	}{
		{name: "no header selects v1", want: "1", status: http.StatusOK},
		{name: "explicit v1", version: "1", want: "1", status: http.StatusOK},
		{name: "explicit v2", version: "2", want: "2", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := call{method: http.MethodGet, path: "/status"}
			if tt.version != "" {
				c.header = map[string]string{"Accept-Version": tt.version}
			}
			resp := app.do(c)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.want, resp.Body.(status).Version)
		})
	}

	resp := app.do(call{method: http.MethodGet, path: "/status", header: map[string]string{"Accept-Version": "3"}})
	assert.Nil(t, resp, "no candidate accepts v3")
}

func TestApp_CachedStatus(t *testing.T) {
	store := cache.NewMemory(0)
	defer store.Close()

	tbl, err := Build("", Deps{Driver: "sqlite3", Limiter: ratelimit.NewTokenBucket(0), Cache: store})
	require.NoError(t, err)
	d := dispatch.New(tbl, dispatch.Options{})

	get := func(version string) *exchange.Response {
		req := exchange.NewRequest(http.MethodGet, "/status")
		req.Header.Set("Accept-Version", version)
		return d.Handle(req)
	}

	assert.Equal(t, "MISS", get("1").Header.Get("X-Cache"))
	assert.Equal(t, "MISS", get("2").Header.Get("X-Cache"), "each version is cached separately")
	hit := get("2")
	assert.Equal(t, "HIT", hit.Header.Get("X-Cache"))
	assert.JSONEq(t, `{"version":"2","status":"ok"}`, string(hit.Body.(json.RawMessage)))
	assert.Equal(t, 2, store.Len())
}

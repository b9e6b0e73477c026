package route

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		vars    []string
		wantErr string
	}{
		{name: "empty", in: "", want: "/"},
		{name: "root", in: "/", want: "/"},
		{name: "literal and variable", in: "/widgets/:id", want: "/widgets/:id", vars: []string{"id"}},
		{name: "leading slash optional", in: "widgets/:id", want: "/widgets/:id", vars: []string{"id"}},
		{name: "trailing slash keeps empty literal", in: "/widgets/", want: "/widgets/"},
		{name: "constraint", in: "/:id{[0-9]+}", want: "/:id{[0-9]+}", vars: []string{"id"}},
		{name: "slash inside constraint", in: "/:path{a/b}", want: "/:path{a/b}", vars: []string{"path"}},
		{name: "dashed variable", in: "/:widget-id/parts", want: "/:widget-id/parts", vars: []string{"widget-id"}},
		{name: "empty variable name", in: "/:", wantErr: "invalid variable name"},
		{name: "duplicate variable", in: "/:id/:id", wantErr: `duplicate variable "id"`},
		{name: "bad constraint", in: "/:id{[}", wantErr: "invalid constraint"},
		{name: "unbalanced brace", in: "/:id{[0-9]", wantErr: "unbalanced '{'"},
		{name: "stray closing brace", in: "/a}", wantErr: "unbalanced '}'"},
		{name: "braces in literal", in: "/a{b}", wantErr: "braces outside a variable"},
		{name: "constraint not at end", in: "/:id{a}b", wantErr: "constraint must end the segment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
			assert.Equal(t, tt.vars, p.Vars())
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("/:id/:id") })
	assert.NotPanics(t, func() { MustParse("/widgets") })
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "empty", raw: "", want: nil},
		{name: "root", raw: "/", want: nil},
		{name: "plain", raw: "/widgets/42", want: []string{"widgets", "42"}},
		{name: "decodes each segment", raw: "/a%20b/c", want: []string{"a b", "c"}},
		{name: "escaped slash stays in segment", raw: "/a%2Fb/c", want: []string{"a/b", "c"}},
		{name: "empty segment kept", raw: "/a//b", want: []string{"a", "", "b"}},
		{name: "trailing slash", raw: "/a/", want: []string{"a", ""}},
		{name: "bad escape", raw: "/%zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeclCompile(t *testing.T) {
	tests := []struct {
		name       string
		decl       Decl
		wantMethod string
		wantPath   string
		wantErr    string
	}{
		{name: "get", decl: Get("/:id"), wantMethod: http.MethodGet, wantPath: "/:id"},
		{name: "lower case method", decl: Decl{Method: "post", Path: ""}, wantMethod: http.MethodPost, wantPath: "/"},
		{name: "any", decl: Decl{Method: "*", Path: "/x"}, wantMethod: MethodAll, wantPath: "/x"},
		{name: "constraint", decl: Decl{Method: "get", Path: "/:id", Constraints: map[string]string{"id": "[0-9]+"}}, wantMethod: http.MethodGet, wantPath: "/:id{[0-9]+}"},
		{name: "unknown method", decl: Decl{Method: "FETCH"}, wantErr: "unknown method"},
		{name: "empty method", decl: Decl{Path: "/x"}, wantErr: "empty method"},
		{name: "bad path", decl: Get("/:"), wantErr: `path "/:"`},
		{name: "constraint without variable", decl: Decl{Method: "GET", Path: "/x", Constraints: map[string]string{"id": "[0-9]+"}}, wantErr: `unknown variable "id"`},
		{name: "bad constraint", decl: Decl{Method: "GET", Path: "/:id", Constraints: map[string]string{"id": "("}}, wantErr: "invalid constraint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, path, err := tt.decl.Compile()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, method)
			assert.Equal(t, tt.wantPath, path.String())
		})
	}
}

func TestJoin(t *testing.T) {
	p, err := Join(MustParse("/api"), MustParse("/widgets/:id"), MustParse("/parts"))
	require.NoError(t, err)
	assert.Equal(t, "/api/widgets/:id/parts", p.String())
	assert.Equal(t, map[string]int{"id": 2}, p.VarIndex())
	assert.True(t, p.HasVar("id"))
	assert.False(t, p.HasVar("widget"))

	_, err = Join(MustParse("/:id"), MustParse("/:id"))
	assert.ErrorContains(t, err, `duplicate variable "id"`)
}

func TestShape(t *testing.T) {
	assert.Equal(t, MustParse("/w/:id").Shape(), MustParse("/w/:name").Shape())
	assert.Equal(t, MustParse("/w/:id{[0-9]+}").Shape(), MustParse("/w/:id").Shape())
	assert.NotEqual(t, MustParse("/w/:id").Shape(), MustParse("/w/id").Shape())
	assert.Equal(t, "/", Path{}.Shape())
}

func TestRender(t *testing.T) {
	p := MustParse("/widgets/:id{[a-z ]+}/parts")

	got, err := p.Render(map[string]string{"id": "a b"})
	require.NoError(t, err)
	assert.Equal(t, "/widgets/a%20b/parts", got)

	_, err = p.Render(nil)
	assert.ErrorContains(t, err, "missing value")

	_, err = p.Render(map[string]string{"id": "42"})
	assert.ErrorContains(t, err, "rejected by constraint")

	root, err := Path{}.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "/", root)
}

func TestTermAccepts(t *testing.T) {
	p := MustParse("/:id{[0-9]+}")
	assert.True(t, p[0].Accepts("42"))
	assert.False(t, p[0].Accepts("4a"), "constraints are anchored")
	assert.True(t, Var("x").Accepts("anything"))
	assert.True(t, p.Equal(MustParse(":id{[0-9]+}")))
}

package profiling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMount(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		prefix string
	}{
		{name: "default path", cfg: Config{}, prefix: "/debug/pprof"},
		{name: "custom path", cfg: Config{Path: "/_internal/pprof"}, prefix: "/_internal/pprof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			Mount(r, tt.cfg)

			for _, path := range []string{"/", "/cmdline", "/goroutine?debug=1", "/heap", "/stats"} {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.prefix+path, nil))
				assert.Equal(t, http.StatusOK, rec.Code, path)
			}

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other/heap", nil))
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestStatsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Positive(t, stats.Goroutines)
	assert.Positive(t, stats.NumCPU)
	assert.Positive(t, stats.Sys)
}

package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/web/middleware"
	"github.com/conduit-lang/waypoint/internal/web/profiling"
)

// RouterOptions configures NewRouter
type RouterOptions struct {
	// ExposeRoutes serves the routing table as JSON at /_routes
	ExposeRoutes bool
	// Profile mounts the pprof endpoints when set
	Profile *profiling.Config
	Logger  *zap.Logger
}

// NewRouter mounts the adapter under its mount path on a chi router with
// request ids, access logging, panic recovery and a /healthz probe
func NewRouter(a *Adapter, opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(logger, "/healthz"),
		middleware.Recovery(logger),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		d := a.Dispatcher()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"routes":   d.Table().Len(),
			"strategy": d.Strategy().String(),
		})
	})
	if opts.ExposeRoutes {
		r.Get("/_routes", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, a.Dispatcher().Table())
		})
	}

	if opts.Profile != nil {
		profiling.Mount(r, *opts.Profile)
	}

	if a.MountPath() == "" {
		r.NotFound(a.ServeHTTP)
		r.MethodNotAllowed(a.ServeHTTP)
	} else {
		r.Handle(a.MountPath(), a)
		r.Handle(a.MountPath()+"/*", a)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package profiling mounts the net/http/pprof handlers and a runtime
// stats probe on a chi router. The endpoints expose goroutine stacks and
// memory contents; enable them on internal listeners only.
package profiling

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"
)

// Config holds profiling configuration
type Config struct {
	// Path is the URL prefix of the profiling endpoints
	Path string
	// BlockRate and MutexFraction are applied to the runtime when mounting;
	// zero leaves the runtime setting untouched
	BlockRate     int
	MutexFraction int
}

// DefaultConfig returns the default profiling configuration
func DefaultConfig() Config {
	return Config{Path: "/debug/pprof"}
}

var profiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

// Mount registers the pprof handlers under cfg.Path, and runtime stats
// at cfg.Path + "/stats"
func Mount(r chi.Router, cfg Config) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if cfg.BlockRate > 0 {
		runtime.SetBlockProfileRate(cfg.BlockRate)
	}
	if cfg.MutexFraction > 0 {
		runtime.SetMutexProfileFraction(cfg.MutexFraction)
	}

	r.Route(cfg.Path, func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		for _, name := range profiles {
			r.Handle("/"+name, pprof.Handler(name))
		}
		r.Get("/stats", StatsHandler)
	})
}

// Stats is a snapshot of runtime counters
type Stats struct {
	Goroutines int    `json:"goroutines"`
	NumCPU     int    `json:"num_cpu"`
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

// ReadStats reads the current runtime counters
func ReadStats() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		Goroutines: runtime.NumGoroutine(),
		NumCPU:     runtime.NumCPU(),
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// StatsHandler serves ReadStats as JSON
func StatsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ReadStats())
}

// Package server is the HTTP transport for a dispatcher: it decodes
// net/http requests into exchange requests, writes exchange responses
// back, and serves them on a chi router with graceful shutdown.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/dispatch"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// DefaultMaxBodyBytes bounds decoded request bodies
const DefaultMaxBodyBytes = 4 << 20

// AdapterOptions configures an Adapter
type AdapterOptions struct {
	// MountPath is the prefix the dispatcher is mounted under
	MountPath string
	// Resources are injected into every request
	Resources    map[string]interface{}
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// Adapter serves a dispatcher over net/http. The dispatcher can be
// replaced at any time with Swap; in-flight requests finish on the one
// they started with.
type Adapter struct {
	current   atomic.Pointer[dispatch.Dispatcher]
	mount     string
	resources map[string]interface{}
	maxBody   int64
	logger    *zap.Logger
}

// NewAdapter creates an adapter serving d
func NewAdapter(d *dispatch.Dispatcher, opts AdapterOptions) *Adapter {
	a := &Adapter{
		mount:     strings.TrimSuffix(opts.MountPath, "/"),
		resources: opts.Resources,
		maxBody:   opts.MaxBodyBytes,
		logger:    opts.Logger,
	}
	if a.maxBody <= 0 {
		a.maxBody = DefaultMaxBodyBytes
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.current.Store(d)
	return a
}

// Dispatcher returns the dispatcher currently serving requests
func (a *Adapter) Dispatcher() *dispatch.Dispatcher {
	return a.current.Load()
}

// Swap installs d and returns the dispatcher it replaced
func (a *Adapter) Swap(d *dispatch.Dispatcher) *dispatch.Dispatcher {
	return a.current.Swap(d)
}

// MountPath returns the prefix the adapter strips from request paths
func (a *Adapter) MountPath() string {
	return a.mount
}

// ServeHTTP implements http.Handler
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, failure := a.decode(r)
	if failure != nil {
		a.write(w, failure)
		return
	}

	d := a.current.Load()
	var resp *exchange.Response
	if d.Async() {
		resp = <-d.HandleAsync(req)
	} else {
		resp = d.Handle(req)
	}
	if resp == nil {
		resp = notFound(r)
	}
	a.write(w, resp)
}

// decode converts r into an exchange request relative to the mount path
func (a *Adapter) decode(r *http.Request) (*exchange.Request, *exchange.Response) {
	path := r.URL.EscapedPath()
	if a.mount != "" {
		rest, ok := strings.CutPrefix(path, a.mount)
		if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
			return nil, notFound(r)
		}
		path = rest
	}

	query := r.URL.Query()
	req := &exchange.Request{
		Method:     r.Method,
		Path:       path,
		Query:      query,
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
		Params:     make(map[string]interface{}, len(query)),
		Resources:  make(map[string]interface{}, len(a.resources)),
		MountPath:  a.mount,
	}
	for k, v := range a.resources {
		req.Resources[k] = v
	}
	mergeValues(req.Params, query)

	if err := a.decodeBody(r, req); err != nil {
		return nil, exchange.BadRequest(err.Error(), nil)
	}
	return req.WithContext(r.Context()), nil
}

// decodeBody fills Body from JSON or form payloads; JSON objects and form
// fields are also merged into Params
func (a *Adapter) decodeBody(r *http.Request, req *exchange.Request) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(nil, r.Body, a.maxBody)

	switch mediaType {
	case "application/json":
		dec := json.NewDecoder(body)
		dec.UseNumber()
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("invalid JSON body: %w", err)
		}
		req.Body = v
		if obj, ok := v.(map[string]interface{}); ok {
			for k, val := range obj {
				req.Params[k] = val
			}
		}
	case "application/x-www-form-urlencoded":
		r.Body = body
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("invalid form body: %w", err)
		}
		req.Body = r.PostForm
		mergeValues(req.Params, r.PostForm)
	default:
		raw, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("failed to read body: %w", err)
		}
		if len(raw) > 0 {
			req.Body = raw
		}
	}
	return nil
}

func mergeValues(dst map[string]interface{}, values map[string][]string) {
	for k, v := range values {
		if len(v) == 1 {
			dst[k] = v[0]
		} else {
			dst[k] = v
		}
	}
}

// write encodes resp onto w
func (a *Adapter) write(w http.ResponseWriter, resp *exchange.Response) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	switch body := resp.Body.(type) {
	case nil:
		w.WriteHeader(status)
	case []byte:
		setDefault(w, "application/octet-stream")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	case string:
		setDefault(w, "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	case io.Reader:
		setDefault(w, "application/octet-stream")
		w.WriteHeader(status)
		_, _ = io.Copy(w, body)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			a.logger.Error("failed to encode response", zap.Error(err))
			w.Header().Del("Content-Length")
			a.write(w, exchange.InternalError("failed to encode response"))
			return
		}
		setDefault(w, "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write(data)
	}
}

func setDefault(w http.ResponseWriter, contentType string) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", contentType)
	}
}

func notFound(r *http.Request) *exchange.Response {
	return exchange.Failure(http.StatusNotFound, exchange.CodeNotFound,
		fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path), nil)
}

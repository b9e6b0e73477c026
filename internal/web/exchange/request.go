// Package exchange defines the request and response values that flow
// through compiled handlers. Wire decoding and encoding belong to the
// transport adapter; handlers only ever see these values.
package exchange

import (
	"context"
	"net/http"
	"net/url"
)

// Request is the request descriptor handed to the dispatcher
type Request struct {
	Method string
	// Path is the raw, still-escaped path relative to MountPath
	Path   string
	Query  url.Values
	Header http.Header
	// RemoteAddr is the network address of the client, when known
	RemoteAddr string
	// Params is the generic parameter bag filled by the transport adapter
	Params map[string]interface{}
	Body   interface{}
	// Resources holds externally injected dependencies such as a database handle
	Resources map[string]interface{}
	// MountPath is the prefix under which the dispatcher is mounted
	MountPath string
	// PathParams holds URL-decoded path variables bound by the dispatcher
	PathParams map[string]string
	// Input holds the decoded value produced by the validation stage
	Input interface{}

	ctx context.Context
}

// NewRequest creates a request for the given method and raw path
func NewRequest(method, path string) *Request {
	u, err := url.Parse(path)
	req := &Request{
		Method:    method,
		Path:      path,
		Query:     url.Values{},
		Header:    http.Header{},
		Params:    make(map[string]interface{}),
		Resources: make(map[string]interface{}),
	}
	if err == nil {
		req.Path = u.EscapedPath()
		req.Query = u.Query()
		for k, v := range req.Query {
			if len(v) == 1 {
				req.Params[k] = v[0]
			} else {
				req.Params[k] = v
			}
		}
	}
	return req
}

// Context returns the request context, never nil
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of r with its context changed to ctx
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("nil context")
	}
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// Clone returns a copy of r whose maps can be modified independently
func (r *Request) Clone() *Request {
	r2 := *r
	r2.Query = cloneValues(r.Query)
	r2.Header = r.Header.Clone()
	r2.Params = cloneMap(r.Params)
	r2.Resources = cloneMap(r.Resources)
	if r.PathParams != nil {
		r2.PathParams = make(map[string]string, len(r.PathParams))
		for k, v := range r.PathParams {
			r2.PathParams[k] = v
		}
	}
	return &r2
}

// PathParam returns the decoded path variable with the given name
func (r *Request) PathParam(name string) string {
	return r.PathParams[name]
}

// Resource returns the injected resource with the given name
func (r *Request) Resource(name string) (interface{}, bool) {
	v, ok := r.Resources[name]
	return v, ok
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package resolve

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Built-in factory tags
const (
	TagHeader  = "header"
	TagQuery   = "query"
	TagParam   = "param"
	TagPath    = "path"
	TagInject  = "inject"
	TagRequest = "request"
)

// Defaults returns the built-in resolver map
func Defaults() Map {
	return Map{
		Direct: map[string]Resolver{
			"request": func(r *exchange.Request) (interface{}, error) { return r, nil },
			"ctx":     func(r *exchange.Request) (interface{}, error) { return r.Context(), nil },
			"params":  func(r *exchange.Request) (interface{}, error) { return r.Params, nil },
			"headers": func(r *exchange.Request) (interface{}, error) { return r.Header, nil },
			"query":   func(r *exchange.Request) (interface{}, error) { return r.Query, nil },
			"body":    func(r *exchange.Request) (interface{}, error) { return r.Body, nil },
			"input":   func(r *exchange.Request) (interface{}, error) { return r.Input, nil },
		},
		Factories: map[string]Factory{
			TagHeader:  HeaderFactory,
			TagQuery:   QueryFactory,
			TagParam:   ParamFactory,
			TagPath:    PathFactory,
			TagInject:  InjectFactory,
			TagRequest: RequestFactory,
		},
	}
}

// HeaderFactory resolves a request header. The tag argument names the
// header; a parameter named user-agent reads User-Agent.
func HeaderFactory(p Param, arg interface{}) (Resolver, error) {
	name, err := stringArg(arg)
	if err != nil {
		return nil, err
	}
	key := http.CanonicalHeaderKey(strings.ReplaceAll(name, "_", "-"))
	required := p.Required()
	return func(r *exchange.Request) (interface{}, error) {
		values := r.Header.Values(key)
		if len(values) == 0 {
			if required {
				return nil, missing("header", key)
			}
			return nil, nil
		}
		return values[0], nil
	}, nil
}

// QueryFactory resolves a query parameter. Repeated parameters resolve to
// a []string, single ones to a string.
func QueryFactory(p Param, arg interface{}) (Resolver, error) {
	name, err := stringArg(arg)
	if err != nil {
		return nil, err
	}
	required := p.Required()
	return func(r *exchange.Request) (interface{}, error) {
		values := r.Query[name]
		switch len(values) {
		case 0:
			if required {
				return nil, missing("query parameter", name)
			}
			return nil, nil
		case 1:
			return values[0], nil
		default:
			return append([]string(nil), values...), nil
		}
	}, nil
}

// ParamFactory resolves an entry of the generic parameter bag
func ParamFactory(p Param, arg interface{}) (Resolver, error) {
	name, err := stringArg(arg)
	if err != nil {
		return nil, err
	}
	required := p.Required()
	return func(r *exchange.Request) (interface{}, error) {
		v, ok := r.Params[name]
		if !ok && required {
			return nil, missing("parameter", name)
		}
		return v, nil
	}, nil
}

// PathFactory resolves a path variable under a different parameter name
func PathFactory(p Param, arg interface{}) (Resolver, error) {
	name, err := stringArg(arg)
	if err != nil {
		return nil, err
	}
	return func(r *exchange.Request) (interface{}, error) {
		v, ok := r.PathParams[name]
		if !ok {
			return nil, nil
		}
		return v, nil
	}, nil
}

// InjectFactory resolves an externally injected resource. A resource that
// was not injected is a server-side failure.
func InjectFactory(p Param, arg interface{}) (Resolver, error) {
	name, err := stringArg(arg)
	if err != nil {
		return nil, err
	}
	return func(r *exchange.Request) (interface{}, error) {
		v, ok := r.Resources[name]
		if !ok {
			return nil, exchange.NewStatusError(http.StatusInternalServerError, exchange.CodeInternal,
				fmt.Sprintf("resource %q was not injected", name))
		}
		return v, nil
	}, nil
}

var requestFields = map[string]Resolver{
	"request": func(r *exchange.Request) (interface{}, error) { return r, nil },
	"method":  func(r *exchange.Request) (interface{}, error) { return r.Method, nil },
	"path":    func(r *exchange.Request) (interface{}, error) { return r.Path, nil },
	"query":   func(r *exchange.Request) (interface{}, error) { return r.Query, nil },
	"headers": func(r *exchange.Request) (interface{}, error) { return r.Header, nil },
	"params":  func(r *exchange.Request) (interface{}, error) { return r.Params, nil },
	"body":    func(r *exchange.Request) (interface{}, error) { return r.Body, nil },
	"input":   func(r *exchange.Request) (interface{}, error) { return r.Input, nil },
	"context": func(r *exchange.Request) (interface{}, error) { return r.Context(), nil },
	"mount":   func(r *exchange.Request) (interface{}, error) { return r.MountPath, nil },
}

// RequestFactory resolves a field of the request itself. The tag argument
// names the field; an unknown field fails the build.
func RequestFactory(p Param, arg interface{}) (Resolver, error) {
	name, err := stringArg(arg)
	if err != nil {
		return nil, err
	}
	r, ok := requestFields[name]
	if !ok {
		return nil, fmt.Errorf("unknown request field %q", name)
	}
	return r, nil
}

func stringArg(arg interface{}) (string, error) {
	s, ok := arg.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("tag argument must be a non-empty string, got %T", arg)
	}
	return s, nil
}

func missing(kind, name string) error {
	return exchange.NewStatusError(http.StatusBadRequest, exchange.CodeBadRequest,
		fmt.Sprintf("missing required %s %q", kind, name))
}

package endpoint

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/conduit-lang/waypoint/internal/route"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Well-known metadata keys
const (
	KeyRoute     = "route"
	KeySchema    = "schema"
	KeyMatch     = "match"
	KeyNoDoc     = "no-doc"
	KeyDoc       = "doc"
	KeySummary   = "summary"
	KeyTags      = "tags"
	KeyRateLimit = "rate-limit"
	KeyAuth      = "auth"
	KeyCache     = "cache"
	// KeyEndpoint is set by the extractor to the endpoint name "ns/fn"
	KeyEndpoint  = "endpoint"
)

// MatchFunc decides at request time whether a candidate endpoint accepts
// the request
type MatchFunc func(*exchange.Request) bool

// Metadata is the merged, free-form description of an endpoint
type Metadata map[string]interface{}

// Merge deep-merges the given maps, later maps winning. Nested maps are
// merged recursively; every other value is replaced. Inputs are not
// modified.
func Merge(maps ...Metadata) Metadata {
	out := Metadata{}
	for _, m := range maps {
		mergeInto(out, m)
	}
	return out
}

func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		srcMap, srcIsMap := asMap(v)
		dstMap, dstIsMap := asMap(dst[k])
		if srcIsMap && dstIsMap {
			merged := make(map[string]interface{}, len(dstMap)+len(srcMap))
			mergeInto(merged, dstMap)
			mergeInto(merged, srcMap)
			dst[k] = merged
			continue
		}
		if srcIsMap {
			cp := make(map[string]interface{}, len(srcMap))
			mergeInto(cp, srcMap)
			dst[k] = cp
			continue
		}
		dst[k] = v
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Metadata:
		return m, true
	}
	return nil, false
}

// Without returns a copy of m without the given keys
func (m Metadata) Without(keys ...string) Metadata {
	out := Merge(m)
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Route returns the route declaration, if any
func (m Metadata) Route() (route.Decl, bool, error) {
	v, ok := m[KeyRoute]
	if !ok || v == nil {
		return route.Decl{}, false, nil
	}
	switch d := v.(type) {
	case route.Decl:
		return d, true, nil
	case *route.Decl:
		return *d, true, nil
	case string:
		return parseDeclString(d)
	}
	return route.Decl{}, false, fmt.Errorf("route must be a route.Decl, got %T", v)
}

// parseDeclString accepts the "METHOD /path" shorthand
func parseDeclString(s string) (route.Decl, bool, error) {
	var method, path string
	n, _ := fmt.Sscan(s, &method, &path)
	switch n {
	case 1:
		return route.Decl{Method: method}, true, nil
	case 2:
		return route.Decl{Method: method, Path: path}, true, nil
	}
	return route.Decl{}, false, fmt.Errorf("cannot parse route %q", s)
}

// Match returns the match predicate, if any
func (m Metadata) Match() (MatchFunc, error) {
	v, ok := m[KeyMatch]
	if !ok || v == nil {
		return nil, nil
	}
	switch f := v.(type) {
	case MatchFunc:
		return f, nil
	case func(*exchange.Request) bool:
		return f, nil
	}
	return nil, fmt.Errorf("match must be a func(*exchange.Request) bool, got %T", v)
}

// Schema returns the validation schema reference, if any
func (m Metadata) Schema() interface{} {
	return m[KeySchema]
}

// NoDoc reports whether the endpoint is excluded from documentation. The
// entry may be a bool or a string such as "true" read from config.
func (m Metadata) NoDoc() bool {
	return cast.ToBool(m[KeyNoDoc])
}

// String returns a string entry, or "" when absent
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Strings returns a string list entry, or nil when absent or not a list
func (m Metadata) Strings(key string) []string {
	switch v := m[key].(type) {
	case nil:
		return nil
	case []string:
		return v
	case string:
		return []string{v}
	default:
		s, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil
		}
		return s
	}
}

// Map returns a nested map entry, or nil when absent
func (m Metadata) Map(key string) map[string]interface{} {
	nested, _ := asMap(m[key])
	return nested
}

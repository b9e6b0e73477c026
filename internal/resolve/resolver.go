// Package resolve compiles endpoint parameters into argument resolvers.
//
// Every parameter of an endpoint is bound to exactly one Resolver at build
// time. Request handling then only runs the precompiled resolvers in order;
// nothing is searched per request and a parameter that cannot be resolved
// fails the build instead of the request.
package resolve

import (
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Resolver extracts one argument value from a request
type Resolver func(*exchange.Request) (interface{}, error)

// Factory produces a Resolver specialized to one parameter. arg is the
// value of the resolver tag; a literal true has already been replaced by
// the parameter's own name.
type Factory func(p Param, arg interface{}) (Resolver, error)

// Param describes one endpoint parameter
type Param struct {
	// Name is the parameter name used for resolution
	Name string
	// Keys marks a destructured parameter and lists the keys it consumes.
	// Destructured parameters resolve by Alias.
	Keys []string
	// Alias names a destructured parameter
	Alias string
	// Tags maps resolver factory names to their argument
	Tags map[string]interface{}
	// Meta is free-form metadata passed through to factories
	Meta map[string]interface{}
}

// P declares a plain parameter
func P(name string) Param {
	return Param{Name: name}
}

// Tagged declares a parameter resolved by the named factory
func Tagged(name, tag string, arg interface{}) Param {
	return Param{Name: name, Tags: map[string]interface{}{tag: arg}}
}

// Destructured declares a destructured parameter resolved by alias
func Destructured(alias string, keys ...string) Param {
	if keys == nil {
		keys = []string{}
	}
	return Param{Keys: keys, Alias: alias}
}

// IsDestructured reports whether the parameter is a destructuring pattern
func (p Param) IsDestructured() bool {
	return p.Keys != nil
}

// Symbol returns the name the parameter resolves by
func (p Param) Symbol() string {
	if p.IsDestructured() {
		return p.Alias
	}
	return p.Name
}

// Required reports whether Meta marks the parameter as required
func (p Param) Required() bool {
	req, _ := p.Meta["required"].(bool)
	return req
}

// With returns a copy of the parameter with an extra tag
func (p Param) With(tag string, arg interface{}) Param {
	tags := make(map[string]interface{}, len(p.Tags)+1)
	for k, v := range p.Tags {
		tags[k] = v
	}
	tags[tag] = arg
	p.Tags = tags
	return p
}

// WithMeta returns a copy of the parameter with an extra metadata entry
func (p Param) WithMeta(key string, value interface{}) Param {
	meta := make(map[string]interface{}, len(p.Meta)+1)
	for k, v := range p.Meta {
		meta[k] = v
	}
	meta[key] = value
	p.Meta = meta
	return p
}

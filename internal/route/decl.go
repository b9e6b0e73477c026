package route

import (
	"fmt"
	"net/http"
	"strings"
)

// MethodAll matches any request method
const MethodAll = "*"

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodConnect: true,
	http.MethodTrace:   true,
	MethodAll:          true,
}

// Decl is a route declaration as written in endpoint metadata
type Decl struct {
	Method string
	Path   string
	// Constraints restricts variables by regular expression, keyed by name
	Constraints map[string]string
}

// Get declares a GET route
func Get(path string) Decl { return Decl{Method: http.MethodGet, Path: path} }

// Post declares a POST route
func Post(path string) Decl { return Decl{Method: http.MethodPost, Path: path} }

// Put declares a PUT route
func Put(path string) Decl { return Decl{Method: http.MethodPut, Path: path} }

// Patch declares a PATCH route
func Patch(path string) Decl { return Decl{Method: http.MethodPatch, Path: path} }

// Delete declares a DELETE route
func Delete(path string) Decl { return Decl{Method: http.MethodDelete, Path: path} }

// NormalizeMethod upper-cases and validates a method name
func NormalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		return "", fmt.Errorf("empty method")
	}
	if !knownMethods[m] {
		return "", fmt.Errorf("unknown method %q", method)
	}
	return m, nil
}

// Compile validates the declaration and returns its method and relative path
func (d Decl) Compile() (string, Path, error) {
	method, err := NormalizeMethod(d.Method)
	if err != nil {
		return "", nil, err
	}
	path, err := Parse(d.Path)
	if err != nil {
		return "", nil, fmt.Errorf("path %q: %w", d.Path, err)
	}
	for name, expr := range d.Constraints {
		found := false
		for i, t := range path {
			if t.IsVar() && t.Value == name {
				re, err := compileConstraint(expr)
				if err != nil {
					return "", nil, fmt.Errorf("variable %q: %w", name, err)
				}
				path[i].Constraint = re
				found = true
			}
		}
		if !found {
			return "", nil, fmt.Errorf("constraint for unknown variable %q", name)
		}
	}
	return method, path, nil
}

// String renders the declaration as "METHOD /path"
func (d Decl) String() string {
	return d.Method + " " + d.Path
}

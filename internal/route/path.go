// Package route parses path declarations into terms and splits request
// paths into segments. A path is an ordered list of terms; each term is
// either a literal segment or a named variable that matches any single
// segment, optionally restricted by a constraint.
package route

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// TermKind distinguishes literal and variable terms
type TermKind int

const (
	// Literal matches exactly one segment equal to Value
	Literal TermKind = iota
	// Variable matches any single segment and binds it to Value
	Variable
)

// Term is one element of a path
type Term struct {
	Kind       TermKind
	Value      string
	Constraint *regexp.Regexp
}

// Lit creates a literal term
func Lit(s string) Term {
	return Term{Kind: Literal, Value: s}
}

// Var creates a variable term
func Var(name string) Term {
	return Term{Kind: Variable, Value: name}
}

// IsVar reports whether the term is a variable
func (t Term) IsVar() bool {
	return t.Kind == Variable
}

// Accepts reports whether a decoded segment satisfies the term's constraint
func (t Term) Accepts(segment string) bool {
	return t.Constraint == nil || t.Constraint.MatchString(segment)
}

// String renders the term the way it is declared
func (t Term) String() string {
	if t.Kind == Literal {
		return t.Value
	}
	if t.Constraint != nil {
		return ":" + t.Value + "{" + unanchor(t.Constraint.String()) + "}"
	}
	return ":" + t.Value
}

// Path is an ordered list of terms
type Path []Term

var varName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Parse parses a path fragment such as "/widgets/:id{[0-9]+}/parts".
// The leading slash is optional; "" and "/" parse to the empty path.
// A trailing slash yields a trailing empty literal.
func Parse(s string) (Path, error) {
	if s == "" || s == "/" {
		return Path{}, nil
	}
	s = strings.TrimPrefix(s, "/")

	segments, err := splitDeclared(s)
	if err != nil {
		return nil, err
	}

	path := make(Path, 0, len(segments))
	seen := make(map[string]bool)
	for _, seg := range segments {
		term, err := parseTerm(seg)
		if err != nil {
			return nil, err
		}
		if term.IsVar() {
			if seen[term.Value] {
				return nil, fmt.Errorf("duplicate variable %q", term.Value)
			}
			seen[term.Value] = true
		}
		path = append(path, term)
	}
	return path, nil
}

// MustParse is like Parse but panics on error
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("route: %v", err))
	}
	return p
}

// splitDeclared splits on '/' outside of constraint braces
func splitDeclared(s string) ([]string, error) {
	var segments []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced '}' in %q", s)
			}
		case '/':
			if depth == 0 {
				segments = append(segments, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '{' in %q", s)
	}
	return append(segments, s[start:]), nil
}

func parseTerm(seg string) (Term, error) {
	if !strings.HasPrefix(seg, ":") {
		if strings.ContainsAny(seg, "{}") {
			return Term{}, fmt.Errorf("braces outside a variable in segment %q", seg)
		}
		return Lit(seg), nil
	}

	name := seg[1:]
	var constraint string
	if i := strings.IndexByte(name, '{'); i >= 0 {
		if !strings.HasSuffix(name, "}") {
			return Term{}, fmt.Errorf("constraint must end the segment %q", seg)
		}
		constraint = name[i+1 : len(name)-1]
		name = name[:i]
	}
	if !varName.MatchString(name) {
		return Term{}, fmt.Errorf("invalid variable name %q", name)
	}

	term := Var(name)
	if constraint != "" {
		re, err := compileConstraint(constraint)
		if err != nil {
			return Term{}, fmt.Errorf("variable %q: %w", name, err)
		}
		term.Constraint = re
	}
	return term, nil
}

func compileConstraint(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid constraint: %w", err)
	}
	return re, nil
}

func unanchor(expr string) string {
	expr = strings.TrimPrefix(expr, "^(?:")
	return strings.TrimSuffix(expr, ")$")
}

// Join concatenates paths, rejecting variable names that appear twice
func Join(paths ...Path) (Path, error) {
	n := 0
	for _, p := range paths {
		n += len(p)
	}
	out := make(Path, 0, n)
	seen := make(map[string]bool)
	for _, p := range paths {
		for _, t := range p {
			if t.IsVar() {
				if seen[t.Value] {
					return nil, fmt.Errorf("duplicate variable %q", t.Value)
				}
				seen[t.Value] = true
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// String renders the path, "/" for the empty path
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	parts := make([]string, len(p))
	for i, t := range p {
		parts[i] = t.String()
	}
	return "/" + strings.Join(parts, "/")
}

// Shape renders the path with variable names and constraints erased. Two
// paths with different shapes never match the same request path.
func (p Path) Shape() string {
	if len(p) == 0 {
		return "/"
	}
	parts := make([]string, len(p))
	for i, t := range p {
		if t.IsVar() {
			parts[i] = ":"
		} else {
			parts[i] = url.PathEscape(t.Value)
		}
	}
	return "/" + strings.Join(parts, "/")
}

// Vars returns the variable names in order
func (p Path) Vars() []string {
	var vars []string
	for _, t := range p {
		if t.IsVar() {
			vars = append(vars, t.Value)
		}
	}
	return vars
}

// VarIndex maps each variable name to its segment position
func (p Path) VarIndex() map[string]int {
	idx := make(map[string]int)
	for i, t := range p {
		if t.IsVar() {
			idx[t.Value] = i
		}
	}
	return idx
}

// HasVar reports whether the path declares a variable with the given name
func (p Path) HasVar(name string) bool {
	for _, t := range p {
		if t.IsVar() && t.Value == name {
			return true
		}
	}
	return false
}

// Render substitutes variables with escaped values from vars
func (p Path) Render(vars map[string]string) (string, error) {
	if len(p) == 0 {
		return "/", nil
	}
	parts := make([]string, len(p))
	for i, t := range p {
		if !t.IsVar() {
			parts[i] = url.PathEscape(t.Value)
			continue
		}
		v, ok := vars[t.Value]
		if !ok {
			return "", fmt.Errorf("missing value for variable %q", t.Value)
		}
		if !t.Accepts(v) {
			return "", fmt.Errorf("value %q rejected by constraint of %q", v, t.Value)
		}
		parts[i] = url.PathEscape(v)
	}
	return "/" + strings.Join(parts, "/"), nil
}

// Equal reports whether two paths are identical, constraints included
func (p Path) Equal(o Path) bool {
	return p.String() == o.String()
}

// Package errors defines the build-time errors raised while compiling
// namespace specs into a routing table. Every BuildError carries the
// identity of the offending spec, namespace, function and symbol so that a
// misconfiguration halts startup with enough context to fix it.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildError is a fatal configuration error found while compiling
type BuildError struct {
	Phase     string // "expand", "extract", "resolve", "assemble", "table"
	Code      string // "B001", "B002", etc.
	Message   string // Human-readable message
	Spec      string // Position of the spec in the declaration tree, e.g. specs[0].children[1]
	Namespace string
	Function  string
	Symbol    string
	Err       error // Underlying cause, if any
}

// New creates a BuildError for the given phase and code
func New(phase, code, message string) *BuildError {
	return &BuildError{
		Phase:   phase,
		Code:    code,
		Message: message,
	}
}

// Newf creates a BuildError with a formatted message
func Newf(phase, code, format string, args ...interface{}) *BuildError {
	return New(phase, code, fmt.Sprintf(format, args...))
}

// Error implements the error interface
func (e *BuildError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code)
	sb.WriteString(" ")
	sb.WriteString(e.Phase)
	sb.WriteString(": ")

	location := e.location()
	if location != "" {
		sb.WriteString(location)
		sb.WriteString(": ")
	}

	sb.WriteString(Title(e.Code))
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *BuildError) location() string {
	parts := make([]string, 0, 4)
	if e.Spec != "" {
		parts = append(parts, "spec="+e.Spec)
	}
	if e.Namespace != "" {
		parts = append(parts, "namespace="+e.Namespace)
	}
	if e.Function != "" {
		parts = append(parts, "function="+e.Function)
	}
	if e.Symbol != "" {
		parts = append(parts, "symbol="+e.Symbol)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a BuildError with the same code.
// A target with an empty code matches any BuildError.
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// WithSpec sets the spec position
func (e *BuildError) WithSpec(spec string) *BuildError {
	e.Spec = spec
	return e
}

// WithNamespace sets the namespace identity
func (e *BuildError) WithNamespace(ns string) *BuildError {
	e.Namespace = ns
	return e
}

// WithFunction sets the function identity
func (e *BuildError) WithFunction(fn string) *BuildError {
	e.Function = fn
	return e
}

// WithSymbol sets the symbol identity
func (e *BuildError) WithSymbol(sym string) *BuildError {
	e.Symbol = sym
	return e
}

// Wrap sets the underlying cause
func (e *BuildError) Wrap(err error) *BuildError {
	e.Err = err
	return e
}

// MarshalJSON implements json.Marshaler
func (e *BuildError) MarshalJSON() ([]byte, error) {
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(struct {
		Phase     string `json:"phase"`
		Code      string `json:"code"`
		Title     string `json:"title"`
		Message   string `json:"message"`
		Spec      string `json:"spec,omitempty"`
		Namespace string `json:"namespace,omitempty"`
		Function  string `json:"function,omitempty"`
		Symbol    string `json:"symbol,omitempty"`
		Cause     string `json:"cause,omitempty"`
	}{
		Phase:     e.Phase,
		Code:      e.Code,
		Title:     Title(e.Code),
		Message:   e.Message,
		Spec:      e.Spec,
		Namespace: e.Namespace,
		Function:  e.Function,
		Symbol:    e.Symbol,
		Cause:     cause,
	})
}

// Code returns the code of err if it is a BuildError or a List of them.
// For a List the code of the first error is returned.
func Code(err error) string {
	switch e := err.(type) {
	case *BuildError:
		return e.Code
	case List:
		if len(e) > 0 {
			return e[0].Code
		}
	}
	return ""
}

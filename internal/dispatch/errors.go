package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Lookup when no route accepts the request
var ErrNotFound = errors.New("no route matches the request")

// AmbiguityError is returned when more than one candidate accepts a request
type AmbiguityError struct {
	Method     string
	Path       string
	Candidates []string
}

// Error implements the error interface
func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("%s %s is accepted by %d routes: %s",
		e.Method, e.Path, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// MalformedPathError is returned when the request path cannot be decoded
type MalformedPathError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("malformed path %q: %v", e.Path, e.Err)
}

// Unwrap returns the decoding error
func (e *MalformedPathError) Unwrap() error {
	return e.Err
}

package errors

import "strings"

// List collects every BuildError found during one compilation
type List []*BuildError

// Add appends err to the list
func (l *List) Add(err *BuildError) {
	*l = append(*l, err)
}

// Err returns nil for an empty list and the list otherwise
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Error implements the error interface
func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (l List) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}

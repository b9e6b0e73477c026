package handler

import (
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Validator checks a request against a schema reference. It returns the
// request to continue with, or a failure response that ends the request.
type Validator interface {
	Validate(schema interface{}, req *exchange.Request) (*exchange.Request, *exchange.Response)
}

// ValidatorFunc adapts a function to the Validator interface
type ValidatorFunc func(schema interface{}, req *exchange.Request) (*exchange.Request, *exchange.Response)

// Validate implements Validator
func (f ValidatorFunc) Validate(schema interface{}, req *exchange.Request) (*exchange.Request, *exchange.Response) {
	return f(schema, req)
}

// validation runs v before next whenever the endpoint declares a schema
func validation(v Validator, schema interface{}, next exchange.Handler) exchange.Handler {
	return func(req *exchange.Request) *exchange.Response {
		updated, failure := v.Validate(schema, req)
		if failure != nil {
			return failure
		}
		if updated == nil {
			updated = req
		}
		return next(updated)
	}
}

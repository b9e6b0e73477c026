package exchange

import (
	"net/http"
)

// Response is the value produced by a compiled handler
type Response struct {
	Status int
	Header http.Header
	Body   interface{}
}

// Handler is a compiled endpoint handler
type Handler func(*Request) *Response

// AsyncHandler delivers its response on a single-value channel
type AsyncHandler func(*Request) <-chan *Response

// NewResponse creates a response with the given status and body
func NewResponse(status int, body interface{}) *Response {
	return &Response{
		Status: status,
		Header: http.Header{},
		Body:   body,
	}
}

// OK creates a 200 response
func OK(body interface{}) *Response {
	return NewResponse(http.StatusOK, body)
}

// Created creates a 201 response with a Location header
func Created(location string, body interface{}) *Response {
	resp := NewResponse(http.StatusCreated, body)
	if location != "" {
		resp.Header.Set("Location", location)
	}
	return resp
}

// NoContent creates a 204 response
func NoContent() *Response {
	return NewResponse(http.StatusNoContent, nil)
}

// WithHeader sets a header on the response and returns it
func (r *Response) WithHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set(key, value)
	return r
}

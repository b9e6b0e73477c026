package handler

import (
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Bridge runs a synchronous handler on its own goroutine and delivers the
// response on a single-value channel. A panic becomes a 500 response.
func Bridge(h exchange.Handler) exchange.AsyncHandler {
	return func(req *exchange.Request) <-chan *exchange.Response {
		ch := make(chan *exchange.Response, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					ch <- exchange.InternalError(PanicMessage(p))
				}
			}()
			ch <- h(req)
		}()
		return ch
	}
}

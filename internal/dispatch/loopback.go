package dispatch

import (
	"context"
	"net/http"

	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Loopback dispatches req in-process on behalf of the handler running
// with ctx. The mount path recorded in ctx carries over to req so that
// URIs generated by the nested handler resolve against the same prefix,
// however deeply loopback calls nest. A missing route yields a 404.
func Loopback(ctx context.Context, d *Dispatcher, req *exchange.Request) *exchange.Response {
	r := req.WithContext(ctx)
	if r.MountPath == "" {
		r.MountPath = exchange.MountPath(ctx)
	}
	resp := d.Handle(r)
	if resp == nil {
		return exchange.Failure(http.StatusNotFound, exchange.CodeNotFound,
			"no route for "+req.Method+" "+req.Path, nil)
	}
	return resp
}

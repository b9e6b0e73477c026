package handler

import (
	"strings"

	"github.com/conduit-lang/waypoint/internal/route"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// withLocation records the mount path and the namespace base path in the
// request context before calling next
func withLocation(context route.Path, next exchange.Handler) exchange.Handler {
	return func(req *exchange.Request) *exchange.Response {
		mount := strings.TrimSuffix(req.MountPath, "/")
		base, err := context.Render(req.PathParams)
		if err != nil {
			base = context.String()
		}
		if base == "/" {
			base = ""
		}

		loc := exchange.Location{
			MountPath: mount,
			BasePath:  mount + base,
		}
		return next(req.WithContext(exchange.WithLocation(req.Context(), loc)))
	}
}

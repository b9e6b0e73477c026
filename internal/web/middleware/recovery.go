package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Recovery turns a panic escaping the handler into a structured 500. The
// dispatcher contains endpoint panics itself; this guards the transport.
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Error("panic recovered",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("panic", fmt.Sprint(p)),
					zap.Stack("stack"),
				)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(exchange.ErrorBody{
					Error:   "server_error",
					Message: "An unexpected error occurred",
					Code:    exchange.CodeInternal,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}

package handler

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// diagnose logs the outcome of every call and converts panics into a
// structured 500 response
func diagnose(logger *zap.Logger, name string, next exchange.Handler) exchange.Handler {
	return func(req *exchange.Request) (resp *exchange.Response) {
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				msg := PanicMessage(p)
				logger.Error("endpoint panicked",
					zap.String("endpoint", name),
					zap.String("method", req.Method),
					zap.String("path", req.Path),
					zap.String("panic", msg),
					zap.ByteString("stack", debug.Stack()),
				)
				resp = exchange.InternalError(msg)
			}
		}()

		resp = next(req)
		if resp == nil {
			resp = exchange.NoContent()
		}

		if resp.Status >= http.StatusInternalServerError {
			fields := []zap.Field{
				zap.String("endpoint", name),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Int("status", resp.Status),
			}
			if body, ok := resp.Body.(*exchange.ErrorBody); ok {
				fields = append(fields, zap.String("error", body.Message))
			}
			logger.Error("endpoint failed", fields...)
		} else {
			logger.Debug("endpoint completed",
				zap.String("endpoint", name),
				zap.Int("status", resp.Status),
				zap.Duration("duration", time.Since(start)),
			)
		}
		return resp
	}
}

// PanicMessage renders a recovered panic value as a message
func PanicMessage(p interface{}) string {
	switch v := p.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

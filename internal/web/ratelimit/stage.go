package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/endpoint"
	"github.com/conduit-lang/waypoint/internal/handler"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// KeyFunc extracts the client part of the rate limit key from a request
type KeyFunc func(*exchange.Request) string

// Config configures the rate limit stage
type Config struct {
	Limiter RateLimiter
	// KeyFunc identifies the client; defaults to ClientIP
	KeyFunc KeyFunc
	// FailOpen allows the request when the limiter returns an error
	FailOpen bool
	Logger   *zap.Logger
}

// Stage returns endpoint middleware enforcing the "rate-limit" metadata
// entry. Endpoints without the entry are left unwrapped. An unparseable
// entry makes the endpoint answer 500 rather than run unlimited.
func Stage(cfg Config) handler.Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(next exchange.Handler, meta endpoint.Metadata) exchange.Handler {
		v, ok := meta[endpoint.KeyRateLimit]
		if !ok || v == nil {
			return nil
		}
		policy, err := ParsePolicy(v)
		if err != nil {
			msg := "invalid rate-limit: " + err.Error()
			return func(*exchange.Request) *exchange.Response {
				return exchange.InternalError(msg)
			}
		}
		scope := routeScope(meta)

		return func(req *exchange.Request) *exchange.Response {
			client := cfg.KeyFunc(req)
			if client == "" {
				return next(req)
			}

			info, err := cfg.Limiter.Allow(req.Context(), scope+":"+client, policy)
			if err != nil {
				cfg.Logger.Warn("rate limit check failed",
					zap.String("scope", scope),
					zap.Error(err),
				)
				if cfg.FailOpen {
					return next(req)
				}
				return exchange.InternalError("Rate limit check failed")
			}

			if !info.Allowed {
				retryAfter := int64(time.Until(info.ResetAt).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}
				resp := exchange.Failure(http.StatusTooManyRequests, exchange.CodeTooManyRequests,
					"Rate limit exceeded", nil)
				setHeaders(resp, info)
				resp.Header.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				return resp
			}

			resp := next(req)
			if resp != nil {
				setHeaders(resp, info)
			}
			return resp
		}
	}
}

func setHeaders(resp *exchange.Response, info *RateLimitInfo) {
	resp.WithHeader("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	resp.WithHeader("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	resp.WithHeader("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
}

// routeScope keys limits by endpoint so endpoints do not share a budget
func routeScope(meta endpoint.Metadata) string {
	if name := meta.String(endpoint.KeyEndpoint); name != "" {
		return name
	}
	if d, ok, err := meta.Route(); ok && err == nil {
		return d.String()
	}
	return "global"
}

// ClientIP identifies the client by X-Forwarded-For, then X-Real-IP, then
// the remote address
func ClientIP(req *exchange.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := req.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := req.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

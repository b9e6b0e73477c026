package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/endpoint"
	"github.com/conduit-lang/waypoint/internal/handler"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Config configures the cache stage
type Config struct {
	Store  Store
	Logger *zap.Logger
}

// Stage returns endpoint middleware honoring the "cache" metadata entry.
// Successful GET and HEAD responses are stored for the policy TTL and
// replayed with an ETag; a matching If-None-Match yields 304. Store
// failures are logged and the endpoint runs uncached.
func Stage(cfg Config) handler.Middleware {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(next exchange.Handler, meta endpoint.Metadata) exchange.Handler {
		policy, ok, err := ParsePolicy(meta[endpoint.KeyCache])
		if err != nil {
			msg := "invalid cache: " + err.Error()
			return func(*exchange.Request) *exchange.Response {
				return exchange.InternalError(msg)
			}
		}
		if !ok {
			return nil
		}
		scope := meta.String(endpoint.KeyEndpoint)
		logger := cfg.Logger.With(zap.String("endpoint", scope))

		return func(req *exchange.Request) *exchange.Response {
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(req)
			}
			key := Key(scope, req, policy.Vary)
			ifNoneMatch := req.Header.Get("If-None-Match")

			data, err := cfg.Store.Get(req.Context(), key)
			switch {
			case err == nil:
				var e entry
				if err := json.Unmarshal(data, &e); err == nil {
					return e.response(ifNoneMatch, "HIT")
				}
				logger.Warn("discarding unreadable cache entry", zap.String("key", key))
			case !IsMiss(err):
				logger.Warn("cache lookup failed", zap.Error(err))
			}

			resp := next(req)
			e, ok := newEntry(resp)
			if !ok {
				return resp
			}
			if data, err := json.Marshal(e); err == nil {
				// the entry outlives a request cancelled after the handler ran
				ctx := context.WithoutCancel(req.Context())
				if err := cfg.Store.Set(ctx, key, data, policy.TTL); err != nil {
					logger.Warn("cache store failed", zap.Error(err))
				}
			}
			if NotModified(ifNoneMatch, e.ETag) {
				return e.response(ifNoneMatch, "MISS")
			}
			return resp.WithHeader("ETag", e.ETag).WithHeader("X-Cache", "MISS")
		}
	}
}

// Key derives the cache key of req for an endpoint from its path, its
// sorted query and the named request headers
func Key(scope string, req *exchange.Request, vary []string) string {
	h := sha256.New()
	io.WriteString(h, req.Path)
	io.WriteString(h, "?")
	io.WriteString(h, req.Query.Encode())
	for _, name := range vary {
		io.WriteString(h, "\n"+strings.ToLower(name)+":")
		io.WriteString(h, strings.Join(req.Header.Values(name), ","))
	}
	return scope + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

const (
	kindNone  = "none"
	kindJSON  = "json"
	kindText  = "text"
	kindBytes = "bytes"
)

// entry is the stored form of a response
type entry struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Kind   string      `json:"kind"`
	Body   []byte      `json:"body,omitempty"`
	ETag   string      `json:"etag"`
}

// newEntry captures resp when it is a cacheable 200 response. Streams and
// responses setting cookies are not cached.
func newEntry(resp *exchange.Response) (entry, bool) {
	if resp == nil || (resp.Status != http.StatusOK && resp.Status != 0) {
		return entry{}, false
	}
	if resp.Header.Get("Set-Cookie") != "" {
		return entry{}, false
	}

	e := entry{Status: http.StatusOK, Header: resp.Header.Clone()}
	switch body := resp.Body.(type) {
	case nil:
		e.Kind = kindNone
	case string:
		e.Kind, e.Body = kindText, []byte(body)
	case []byte:
		e.Kind, e.Body = kindBytes, body
	case io.Reader:
		return entry{}, false
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return entry{}, false
		}
		e.Kind, e.Body = kindJSON, data
	}
	e.ETag = ETag(e.Body)
	return e, true
}

// response rebuilds the stored response, or a 304 when ifNoneMatch
// matches its ETag
func (e entry) response(ifNoneMatch, state string) *exchange.Response {
	if NotModified(ifNoneMatch, e.ETag) {
		return exchange.NewResponse(http.StatusNotModified, nil).
			WithHeader("ETag", e.ETag).
			WithHeader("X-Cache", state)
	}

	var body interface{}
	switch e.Kind {
	case kindJSON:
		body = json.RawMessage(e.Body)
	case kindText:
		body = string(e.Body)
	case kindBytes:
		body = e.Body
	}
	resp := exchange.NewResponse(e.Status, body)
	for k, vs := range e.Header {
		for _, v := range vs {
			resp.Header.Add(k, v)
		}
	}
	resp.Header.Set("ETag", e.ETag)
	resp.Header.Set("X-Cache", state)
	return resp
}

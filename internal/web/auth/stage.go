package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/endpoint"
	"github.com/conduit-lang/waypoint/internal/handler"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

// Requirement is what an endpoint demands of its caller
type Requirement struct {
	// Roles accepts a caller holding any of them; empty accepts any role
	Roles []string
	// Permission must be granted by one of the caller's roles
	Permission Permission
}

// ParseRequirement reads a requirement from an "auth" metadata value:
// true, a role name, a list of role names, or a map with "roles" and
// "permission" keys. A false value reports ok == false.
func ParseRequirement(v interface{}) (req Requirement, ok bool, err error) {
	switch val := v.(type) {
	case nil:
		return Requirement{}, false, nil
	case bool:
		return Requirement{}, val, nil
	case Requirement:
		return val, true, nil
	case string:
		return Requirement{Roles: []string{val}}, true, nil
	case []string:
		return Requirement{Roles: val}, true, nil
	case map[string]interface{}:
		if r, present := val["roles"]; present {
			roles, err := cast.ToStringSliceE(r)
			if err != nil {
				return Requirement{}, false, fmt.Errorf("invalid roles: %w", err)
			}
			req.Roles = roles
		}
		if p, present := val["permission"]; present {
			req.Permission = Permission(cast.ToString(p))
		}
		return req, true, nil
	}
	return Requirement{}, false, fmt.Errorf("auth must be a bool, role, role list or map, got %T", v)
}

// Allows reports whether principal satisfies the requirement
func (r Requirement) Allows(p *Principal) bool {
	if p == nil {
		return false
	}
	if len(r.Roles) > 0 {
		matched := false
		for _, role := range r.Roles {
			if p.HasRole(role) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if r.Permission != "" && !RolesHavePermission(p.Roles, r.Permission) {
		return false
	}
	return true
}

// Stage returns endpoint middleware enforcing the "auth" metadata entry.
// A missing or invalid bearer token answers 401, an insufficient one 403.
// The principal is recorded in the request context and exposed as the
// "principal" resource.
func Stage(tokens *TokenService, logger *zap.Logger) handler.Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next exchange.Handler, meta endpoint.Metadata) exchange.Handler {
		requirement, ok, err := ParseRequirement(meta[endpoint.KeyAuth])
		if err != nil {
			msg := "invalid auth: " + err.Error()
			return func(*exchange.Request) *exchange.Response {
				return exchange.InternalError(msg)
			}
		}
		if !ok {
			return nil
		}

		return func(req *exchange.Request) *exchange.Response {
			token, found := bearerToken(req.Header.Get("Authorization"))
			if !found {
				return unauthorized("Missing bearer token")
			}
			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Debug("token rejected", zap.Error(err))
				return unauthorized("Invalid or expired token")
			}

			principal := &Principal{Subject: claims.Subject, Email: claims.Email, Roles: claims.Roles}
			if !requirement.Allows(principal) {
				return exchange.Failure(http.StatusForbidden, exchange.CodeForbidden,
					"Insufficient permissions", nil)
			}

			authed := req.Clone().WithContext(WithPrincipal(req.Context(), principal))
			if authed.Resources == nil {
				authed.Resources = make(map[string]interface{})
			}
			authed.Resources[ResourcePrincipal] = principal
			return next(authed)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(message string) *exchange.Response {
	resp := exchange.Failure(http.StatusUnauthorized, exchange.CodeUnauthorized, message, nil)
	return resp.WithHeader("WWW-Authenticate", `Bearer realm="waypoint"`)
}

// Package ratelimit limits how often a client may call an endpoint. Limits
// are declared per endpoint through the "rate-limit" metadata key and
// enforced by the stage returned from Stage.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// RateLimiter defines the interface for rate limiting implementations
type RateLimiter interface {
	// Allow records one request for key under policy and reports whether
	// it is allowed
	Allow(ctx context.Context, key string, policy Policy) (*RateLimitInfo, error)
}

// RateLimitInfo contains information about the current rate limit state
type RateLimitInfo struct {
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Remaining is the number of requests remaining in the current window
	Remaining int
	// ResetAt is when the rate limit window resets
	ResetAt time.Time
	// Allowed indicates whether the request should be allowed
	Allowed bool
}

// Policy is the limit declared by one endpoint
type Policy struct {
	Limit  int
	Window time.Duration
}

// Validate checks that the policy is usable
func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return errors.New("limit must be greater than 0")
	}
	if p.Window <= 0 {
		return errors.New("window must be greater than 0")
	}
	return nil
}

// ParsePolicy reads a policy from a metadata value. It accepts a Policy, a
// bare request count per minute, or a map with "limit" and "window" keys
// where window is a duration string or a number of seconds.
func ParsePolicy(v interface{}) (Policy, error) {
	var p Policy
	switch val := v.(type) {
	case Policy:
		p = val
	case *Policy:
		p = *val
	case map[string]interface{}:
		limit, err := cast.ToIntE(val["limit"])
		if err != nil {
			return Policy{}, fmt.Errorf("invalid limit: %w", err)
		}
		p.Limit = limit
		p.Window = time.Minute
		if w, ok := val["window"]; ok {
			window, err := parseWindow(w)
			if err != nil {
				return Policy{}, err
			}
			p.Window = window
		}
	default:
		limit, err := cast.ToIntE(v)
		if err != nil {
			return Policy{}, fmt.Errorf("rate-limit must be a policy, map or count, got %T", v)
		}
		p = Policy{Limit: limit, Window: time.Minute}
	}
	return p, p.Validate()
}

func parseWindow(v interface{}) (time.Duration, error) {
	switch w := v.(type) {
	case time.Duration:
		return w, nil
	case string:
		d, err := time.ParseDuration(w)
		if err != nil {
			return 0, fmt.Errorf("invalid window: %w", err)
		}
		return d, nil
	}
	secs, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("invalid window: %w", err)
	}
	return time.Duration(secs) * time.Second, nil
}

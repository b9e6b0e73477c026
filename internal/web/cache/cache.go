// Package cache stores successful endpoint responses in memory or redis
// and replays them, with ETag revalidation, for endpoints that declare a
// "cache" metadata entry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// DefaultTTL applies when an endpoint enables caching without a duration
const DefaultTTL = 5 * time.Minute

// Store is a byte-oriented cache backend
type Store interface {
	// Get returns ErrMiss when the key is absent or expired
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ErrMiss is returned by Store.Get for absent keys
var ErrMiss = errors.New("cache miss")

// IsMiss reports whether err is a cache miss
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Policy is the parsed "cache" metadata entry of an endpoint
type Policy struct {
	TTL time.Duration
	// Vary lists request headers that are part of the cache key
	Vary []string
}

// ParsePolicy reads a "cache" metadata value: true, a duration, a
// duration string, a number of seconds, or a map with "ttl" and "vary"
// keys. false and nil report ok == false.
func ParsePolicy(v interface{}) (p Policy, ok bool, err error) {
	switch val := v.(type) {
	case nil:
		return Policy{}, false, nil
	case bool:
		return Policy{TTL: DefaultTTL}, val, nil
	case Policy:
		p = val
	case map[string]interface{}:
		p.TTL = DefaultTTL
		if t, present := val["ttl"]; present {
			if p.TTL, err = parseTTL(t); err != nil {
				return Policy{}, false, err
			}
		}
		if vary, present := val["vary"]; present {
			if p.Vary, err = cast.ToStringSliceE(vary); err != nil {
				return Policy{}, false, fmt.Errorf("invalid vary: %w", err)
			}
		}
	default:
		if p.TTL, err = parseTTL(v); err != nil {
			return Policy{}, false, err
		}
	}
	if p.TTL <= 0 {
		return Policy{}, false, fmt.Errorf("cache ttl must be positive, got %s", p.TTL)
	}
	return p, true, nil
}

func parseTTL(v interface{}) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			return 0, fmt.Errorf("invalid ttl: %w", err)
		}
		return d, nil
	}
	secs, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("cache must be a bool, duration, seconds or map, got %T", v)
	}
	return time.Duration(secs) * time.Second, nil
}

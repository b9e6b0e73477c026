package exchange

import (
	"context"
	"net/url"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey int

const (
	locationKey contextKey = iota
)

// Location records where a compiled handler lives, so that URIs generated
// inside the handler stay correct even when it was reached via loopback.
type Location struct {
	// MountPath is the prefix the dispatcher is mounted under
	MountPath string
	// BasePath is MountPath plus the handler's namespace context with its
	// variables bound to the values of the current request
	BasePath string
}

// WithLocation records loc in ctx
func WithLocation(ctx context.Context, loc Location) context.Context {
	return context.WithValue(ctx, locationKey, loc)
}

// GetLocation extracts the recorded location from ctx
func GetLocation(ctx context.Context) (Location, bool) {
	loc, ok := ctx.Value(locationKey).(Location)
	return loc, ok
}

// MountPath returns the mount path recorded in ctx, or "" when none
func MountPath(ctx context.Context) string {
	loc, _ := GetLocation(ctx)
	return loc.MountPath
}

// URI joins the recorded base path with the given relative segments,
// escaping each segment
func URI(ctx context.Context, segments ...string) string {
	loc, _ := GetLocation(ctx)
	base := strings.TrimSuffix(loc.BasePath, "/")
	if len(segments) == 0 {
		if base == "" {
			return "/"
		}
		return base
	}
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return base + "/" + strings.Join(escaped, "/")
}

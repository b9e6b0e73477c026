package route

import (
	"fmt"
	"net/url"
	"strings"
)

// Split splits a raw request path into URL-decoded segments. The path is
// split before decoding, so an escaped slash stays inside its segment.
// "" and "/" yield no segments; empty segments are kept.
func Split(raw string) ([]string, error) {
	if raw == "" || raw == "/" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "/")

	parts := strings.Split(raw, "/")
	for i, part := range parts {
		if !strings.Contains(part, "%") {
			continue
		}
		decoded, err := url.PathUnescape(part)
		if err != nil {
			return nil, fmt.Errorf("malformed path segment %q: %w", part, err)
		}
		parts[i] = decoded
	}
	return parts, nil
}

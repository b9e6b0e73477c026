package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ETag returns a strong entity tag for content
func ETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:16]) + `"`
}

// parseIfNoneMatch splits an If-None-Match header into its entity tags
func parseIfNoneMatch(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if header == "*" {
		return []string{"*"}
	}

	var tags []string
	for i := 0; i < len(header); {
		for i < len(header) && (header[i] == ' ' || header[i] == ',') {
			i++
		}
		if i >= len(header) {
			break
		}

		weak := strings.HasPrefix(header[i:], "W/")
		if weak {
			i += 2
		}
		if i >= len(header) || header[i] != '"' {
			// skip to the next tag
			for i < len(header) && header[i] != ',' {
				i++
			}
			continue
		}
		end := strings.IndexByte(header[i+1:], '"')
		if end < 0 {
			break
		}
		tag := header[i : i+end+2]
		if weak {
			tag = "W/" + tag
		}
		tags = append(tags, tag)
		i += end + 2
	}
	return tags
}

// NotModified reports whether an If-None-Match header matches etag using
// weak comparison
func NotModified(ifNoneMatch, etag string) bool {
	tags := parseIfNoneMatch(ifNoneMatch)
	if len(tags) == 1 && tags[0] == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range tags {
		if strings.TrimPrefix(tag, "W/") == want {
			return true
		}
	}
	return false
}

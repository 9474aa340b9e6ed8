package views

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ETag returns a quoted entity tag for body. Weak tags carry the W/ prefix.
func ETag(body []byte, strong bool) string {
	sum := sha256.Sum256(body)
	tag := `"` + hex.EncodeToString(sum[:16]) + `"`
	if strong {
		return tag
	}
	return "W/" + tag
}

// MatchETag reports whether an If-None-Match header value matches etag using
// the weak comparison function.
func MatchETag(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}

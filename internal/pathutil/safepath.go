package pathutil

import "strings"

// HasDotSegments reports whether any path segment is "." or "..".
// Index keys come from clean archive entry names, so such paths can
// never match; rejecting them up front keeps traversal probes out of
// the serving path entirely.
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// Package httpcond implements the conditional-request and byte-range
// primitives of RFC 7232 and RFC 7233 needed to serve immutable resources:
// precondition evaluation, entity-tag comparison, and single-range parsing.
package httpcond

import (
	"net/http"
	"strings"
	"time"
)

// Evaluate applies the RFC 7232 section 6 precedence over the request's
// conditional headers and returns the candidate status for a resource with
// the given validators: one of 200, 206, 304, or 412.
//
// lastModified must already be truncated to whole seconds (HTTP dates have
// second resolution). rangeRequested reports whether a parsed, syntactically
// valid Range header accompanies the request; whether the range is actually
// satisfiable is the caller's decision on a 206 candidate.
func Evaluate(r *http.Request, lastModified time.Time, etag string, rangeRequested bool) int {
	h := r.Header
	readOnly := r.Method == http.MethodGet || r.Method == http.MethodHead

	// If-Match, else If-Unmodified-Since
	if im := h.Get("If-Match"); im != "" {
		if !Match(im, etag, true) {
			return http.StatusPreconditionFailed
		}
	} else if ius := h.Get("If-Unmodified-Since"); ius != "" {
		if t, err := http.ParseTime(ius); err == nil && lastModified.After(t) {
			return http.StatusPreconditionFailed
		}
	}

	// If-None-Match, else If-Modified-Since (GET/HEAD only)
	if inm := h.Get("If-None-Match"); inm != "" {
		if Match(inm, etag, false) {
			if readOnly {
				return http.StatusNotModified
			}
			return http.StatusPreconditionFailed
		}
	} else if ims := h.Get("If-Modified-Since"); ims != "" && readOnly {
		if t, err := http.ParseTime(ims); err == nil &&
			!t.After(time.Now()) && !lastModified.After(t) {
			return http.StatusNotModified
		}
	}

	if rangeRequested {
		if ir := h.Get("If-Range"); ir != "" && !ifRangeMatches(ir, etag, lastModified) {
			// validator changed underneath the client; send the full body
			return http.StatusOK
		}
		return http.StatusPartialContent
	}
	return http.StatusOK
}

// Match reports whether etag matches any member of the header's tag list.
// The wildcard "*" matches any current representation. Strong comparison
// (If-Match, If-Range) never matches weak tags; weak comparison
// (If-None-Match) ignores the weakness prefix on both sides.
func Match(header, etag string, strong bool) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strong {
			if strings.HasPrefix(candidate, "W/") || strings.HasPrefix(etag, "W/") {
				continue
			}
			if candidate == etag {
				return true
			}
			continue
		}
		if strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

// ifRangeMatches reports whether the If-Range validator identifies the
// current representation. Entity tags use strong comparison; dates must
// equal the representation's Last-Modified exactly.
func ifRangeMatches(header, etag string, lastModified time.Time) bool {
	if strings.HasPrefix(header, `"`) || strings.HasPrefix(header, "W/") {
		return Match(header, etag, true)
	}
	t, err := http.ParseTime(header)
	return err == nil && t.Equal(lastModified)
}

// FormatTime renders t as an HTTP-date header value.
func FormatTime(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

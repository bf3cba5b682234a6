package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ArchiveInfo reports the identity of the archive backing the server.
type ArchiveInfo interface {
	// Digest is the hex SHA-256 of the archive bytes.
	Digest() string
	// Path is the filesystem location the archive was opened from.
	Path() string
}

// ArchiveHeaders stamps every response with the digest of the serving
// archive so cached responses can be traced back to the exact build that
// produced them.
func ArchiveHeaders(info ArchiveInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if info != nil {
				if d := info.Digest(); d != "" {
					// short digest keeps the header compact
					if len(d) > 12 {
						d = d[:12]
					}
					w.Header().Set("X-Archive-Digest", d)
				}
				if span := trace.SpanFromContext(r.Context()); span != nil && span.IsRecording() {
					if d := info.Digest(); d != "" {
						span.SetAttributes(attribute.String("archive.digest", d))
					}
					if p := info.Path(); p != "" {
						span.SetAttributes(attribute.String("archive.path", p))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

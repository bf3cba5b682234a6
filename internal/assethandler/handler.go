// Package assethandler serves indexed archive resources over HTTP with
// RFC 7232 conditional and RFC 7233 byte-range support.
package assethandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwhitford/zipserve/internal/pathutil"
)

type Handler struct {
	opts Options
}

func New(opts *Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: *opts}, nil
}

// Serve resolves the request against the index and, on a hit, writes
// exactly one terminal response and returns 0. On a miss it writes
// nothing and returns 404 for the caller to handle; directory-like paths
// that exist only as namespace prefixes miss like any other absent name.
//
// The lookup key is the chi wildcard capture when the route was matched
// with a trailing "*" parameter, otherwise the request path verbatim
// (mount with http.StripPrefix when using the handler outside chi).
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) int {
	name := chi.URLParam(r, "*")
	if name == "" {
		name = r.URL.Path
	}
	// index keys are clean archive names; dot segments can never match
	if pathutil.HasDotSegments(name) {
		return http.StatusNotFound
	}
	res, ok := h.opts.Index.Lookup(name)
	if !ok {
		return http.StatusNotFound
	}
	h.respond(w, r, res)
	return 0
}

// ServeHTTP adapts Serve for direct router use: only GET and HEAD reach
// the responder, and a miss becomes a plain 404.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		h.observe(http.StatusMethodNotAllowed, 0)
		return
	}
	if status := h.Serve(w, r); status > 0 {
		w.Header().Set("Cache-Control", "no-store")
		http.Error(w, http.StatusText(status), status)
		h.observe(status, 0)
	}
}

func (h *Handler) observe(status int, bytes int64) {
	if h.opts.OnServe != nil {
		h.opts.OnServe(status, bytes)
	}
}

// Package assethttp mounts asset handlers onto the site router.
package assethttp

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Mount pairs a URL prefix with the handler serving it. Several mounts
// with distinct prefixes may coexist; each owns an independent index.
type Mount struct {
	// Route is the URL prefix, e.g. "/static".
	Route string
	// Handler serves the wildcard remainder of the path.
	Handler http.Handler
}

type Routes struct {
	mounts []Mount
}

func New(mounts ...Mount) *Routes {
	return &Routes{mounts: mounts}
}

// RegisterRoutes attaches every mount with a trailing-wildcard pattern so
// the captured "*" parameter becomes the index lookup key.
func (rt *Routes) RegisterRoutes(r chi.Router) {
	for _, m := range rt.mounts {
		route := "/" + strings.Trim(m.Route, "/")
		if route == "/" {
			r.Get("/*", m.Handler.ServeHTTP)
			r.Head("/*", m.Handler.ServeHTTP)
			continue
		}
		r.Route(route, func(sr chi.Router) {
			sr.Get("/*", m.Handler.ServeHTTP)
			sr.Head("/*", m.Handler.ServeHTTP)
		})
	}
}

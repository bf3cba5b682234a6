package httpmw

import (
	"net/http"

	"github.com/mwhitford/zipserve/internal/log"
	"github.com/mwhitford/zipserve/internal/xerrors"
)

// Recover converts panics in downstream handlers into a 500 response.
// onPanic, if non-nil, is invoked on every recovered panic (metrics hook).
// http.ErrAbortHandler is re-raised so net/http keeps its abort semantics.
func Recover(base log.Logger, onPanic func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				if onPanic != nil {
					onPanic()
				}

				var err error
				if e, ok := rec.(error); ok {
					err = xerrors.Wrap(e, "panic")
				} else {
					err = xerrors.Newf("panic: %v", rec)
				}

				base.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				).Error(r.Context(), err, "httpserver panic recovered")

				// Headers may already be on the wire; this write is best
				// effort.
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

package assethttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// echoHandler writes the chi wildcard capture so tests can see the key
// the asset handler would look up.
type echoHandler struct{}

func (echoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(chi.URLParam(r, "*")))
}

func TestRegisterRoutes_WildcardCapture(t *testing.T) {
	r := chi.NewRouter()
	New(Mount{Route: "/static", Handler: echoHandler{}}).RegisterRoutes(r)

	cases := []struct{ path, want string }{
		{"/static/app.js", "app.js"},
		{"/static/css/site.css", "css/site.css"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", tc.path, rec.Code)
		}
		if rec.Body.String() != tc.want {
			t.Errorf("GET %s captured %q, want %q", tc.path, rec.Body.String(), tc.want)
		}
	}
}

func TestRegisterRoutes_MultipleMounts(t *testing.T) {
	r := chi.NewRouter()
	New(
		Mount{Route: "/static", Handler: echoHandler{}},
		Mount{Route: "/docs/", Handler: echoHandler{}},
	).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/guide.html", nil))
	if rec.Body.String() != "guide.html" {
		t.Errorf("docs capture = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unmounted path status = %d", rec.Code)
	}
}

func TestRegisterRoutes_RootMount(t *testing.T) {
	r := chi.NewRouter()
	New(Mount{Route: "/", Handler: echoHandler{}}).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/app.js", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("root mount HEAD status = %d", rec.Code)
	}
}

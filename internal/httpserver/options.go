package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwhitford/zipserve/internal/httpmw"
	"github.com/mwhitford/zipserve/internal/log"
	"github.com/mwhitford/zipserve/internal/probe"
)

type Options struct {
	Logger log.Logger
	Port   int

	UseRecoverMW bool
	OnPanic      func() // recovered-panic hook (metrics)

	MetricsMW   func(http.Handler) http.Handler
	RateLimitMW func(http.Handler) http.Handler

	ClientIPOpts httpmw.ClientIPOptions

	Health    probe.Probe
	Readiness probe.Probe

	// ArchiveInfo stamps X-Archive-Digest on every response when set.
	ArchiveInfo httpmw.ArchiveInfo

	// AssetRoutes registers the asset mounts on the router.
	AssetRoutes func(chi.Router)
}

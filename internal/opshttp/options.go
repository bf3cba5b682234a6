// Package opshttp runs the admin HTTP server: metrics, health probes,
// and optional pprof. It binds a separate port so none of it is ever
// reachable through the public asset listener.
package opshttp

import (
	"net/http"

	"github.com/mwhitford/zipserve/internal/probe"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      probe.Probe
	Readiness   probe.Probe
}

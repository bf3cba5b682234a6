package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mwhitford/zipserve/internal/assethandler"
	"github.com/mwhitford/zipserve/internal/assethttp"
	"github.com/mwhitford/zipserve/internal/assets"
	"github.com/mwhitford/zipserve/internal/bundle"
	"github.com/mwhitford/zipserve/internal/cfg"
	"github.com/mwhitford/zipserve/internal/httpmw"
	"github.com/mwhitford/zipserve/internal/httpserver"
	"github.com/mwhitford/zipserve/internal/log"
	"github.com/mwhitford/zipserve/internal/metrics"
	"github.com/mwhitford/zipserve/internal/opshttp"
	"github.com/mwhitford/zipserve/internal/otelx"
	"github.com/mwhitford/zipserve/internal/probe"
	"github.com/mwhitford/zipserve/internal/prof"
	"github.com/mwhitford/zipserve/internal/ratelimit"
	v "github.com/mwhitford/zipserve/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, build_date=%s, go=%s, dirty=%v)\n",
			v.AppName, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from environment variables with prefix ZIPSERVE_ and validate
	cfg.FillFromEnv(flag.CommandLine, "ZIPSERVE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:             v.AppName,
		Version:         vi.Version,
		Commit:          vi.Commit,
		Level:           lvl,
		StacktraceLevel: stLvl,
		JSONFormat:      conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"archive_path", conf.ArchivePath,
		"mounts", conf.Mounts,
	)

	// Setup pyroscope profiling
	stopProf, profErr := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"source":    "go-agent",
		},
	})
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	// Setup otel for tracing
	// Insecure because we only write to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", &vi)
	m.SetProfilingActive(conf.EnablePyroscope && profErr == nil)

	// Open the serving archive: an explicit file, or the archive appended
	// to this executable.
	var arch *bundle.Archive
	if conf.ArchivePath != "" {
		arch, err = bundle.Open(conf.ArchivePath)
	} else {
		arch, err = bundle.FromExecutable()
	}
	if err != nil {
		L.Error(ctx, err, "failed to open serving archive", "archive_path", conf.ArchivePath)
		os.Exit(1)
	}
	defer arch.Close()

	m.SetArchive(arch.Digest(), arch.Path())
	L.Info(ctx, "serving archive opened",
		"archive_path", arch.Path(),
		"archive_digest", arch.Digest(),
		"entries", len(arch.Entries()),
	)

	// Build one index + handler per mount. Construction fails hard: a
	// bad mount table is a deploy error, not something to limp past.
	specs, err := cfg.ParseMounts(conf.Mounts)
	if err != nil {
		L.Error(ctx, err, "invalid mount table", "mounts", conf.Mounts)
		os.Exit(1)
	}

	var mounts []assethttp.Mount
	for _, spec := range specs {
		idx := assets.NewIndex(spec.Base, arch)
		h, err := assethandler.New(&assethandler.Options{
			Logger:       L.With("handler", "assets", "route", spec.Route),
			Index:        idx,
			Source:       arch,
			CacheControl: conf.CacheControl,
			OnServe:      m.ObserveAssetServe,
		})
		if err != nil {
			L.Error(ctx, err, "failed to create asset handler", "route", spec.Route)
			os.Exit(1)
		}
		m.SetAssetsIndexed(spec.Route, idx.Len())
		L.Info(ctx, "asset mount ready",
			"route", spec.Route,
			"base", idx.Base(),
			"resources", idx.Len(),
		)
		mounts = append(mounts, assethttp.Mount{Route: spec.Route, Handler: h})
	}
	assetRoutes := assethttp.New(mounts...)

	// Readiness gates on shutdown drain; the index is immutable after
	// startup so there is nothing else to re-check per request.
	var gate probe.ShutdownGate
	readiness := probe.Multi(gate.Probe())

	limiter := ratelimit.New(ctx,
		ratelimit.WithRate(conf.RateLimitPerSecond, conf.RateLimitBurst),
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, new visitors pass unlimited until eviction")
		}),
	)

	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		Health:       probe.Static(true, ""),
		Readiness:    readiness,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  limiter.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		ArchiveInfo:  arch,
		AssetRoutes:  func(r chi.Router) { assetRoutes.RegisterRoutes(r) },
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// Admin listener: metrics, health, pprof. The middleware rejects
	// non-private peers in case the port is ever exposed by accident.
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      probe.Static(true, ""),
		Readiness:   readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		// log and continue, worst case systemd kills us after its timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// block until signal
	sigCtx, stopSig := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSig()
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness so load balancers stop sending new requests
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining")

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(15 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
	os.Exit(0)
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when we run under Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}

package opshttp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mwhitford/zipserve/internal/log"
	"github.com/mwhitford/zipserve/internal/probe"
)

func getFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", ":0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func startOps(t *testing.T, opts Options) int {
	t.Helper()
	if opts.Port == 0 {
		opts.Port = getFreePort(t)
	}
	ctx := context.Background()
	stop, err := Start(ctx, log.Nop(), opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { stop(ctx) })
	return opts.Port
}

func opsGet(t *testing.T, port int, path string) *http.Response {
	t.Helper()
	addr := fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
	resp, err := http.Get(addr)
	if err != nil {
		t.Fatalf("GET %s: %v", addr, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestStart_HealthEndpoints(t *testing.T) {
	port := startOps(t, Options{
		Health:    probe.Static(true, ""),
		Readiness: probe.Static(false, "index not built"),
	})

	resp := opsGet(t, port, "/-/healthy")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthy status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "ok") {
		t.Fatalf("healthy body = %q", body)
	}

	resp = opsGet(t, port, "/-/ready")
	body = readBody(t, resp)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("ready status = %d, want 503", resp.StatusCode)
	}
	if !strings.Contains(body, "index not built") {
		t.Fatalf("ready body = %q, want reason", body)
	}
}

func TestStart_ReadinessGate(t *testing.T) {
	var gate probe.ShutdownGate
	port := startOps(t, Options{
		Readiness: gate.Probe(),
	})

	resp := opsGet(t, port, "/-/ready")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("initially: status = %d, want 200", resp.StatusCode)
	}

	gate.Set("draining")
	resp = opsGet(t, port, "/-/ready")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("after drain: status = %d, want 503", resp.StatusCode)
	}
}

func TestStart_MetricsEndpoint(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("# HELP fake_metric\n"))
	})

	port := startOps(t, Options{Metrics: metricsHandler})

	resp := opsGet(t, port, "/metrics")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "fake_metric") {
		t.Fatalf("body = %q", body)
	}
}

func TestStart_MetricsEndpoint_Nil(t *testing.T) {
	port := startOps(t, Options{})

	resp := opsGet(t, port, "/metrics")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStart_PprofToggle(t *testing.T) {
	port := startOps(t, Options{EnablePprof: true})
	resp := opsGet(t, port, "/debug/pprof/")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enabled: status = %d, want 200", resp.StatusCode)
	}

	port = startOps(t, Options{EnablePprof: false})
	resp = opsGet(t, port, "/debug/pprof/")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("disabled: status = %d, want 404", resp.StatusCode)
	}
}

func TestStart_StopIdempotent(t *testing.T) {
	port := getFreePort(t)
	ctx := context.Background()

	stop, err := Start(ctx, log.Nop(), Options{Port: port})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := stop(ctx); err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}
	}
}

func TestStart_PortConflict(t *testing.T) {
	port := getFreePort(t)
	ctx := context.Background()

	stop1, err := Start(ctx, log.Nop(), Options{Port: port})
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer stop1(ctx)

	if _, err := Start(ctx, log.Nop(), Options{Port: port}); err == nil {
		t.Fatal("expected error for port conflict")
	}
}

func TestStart_GracefulShutdown(t *testing.T) {
	port := getFreePort(t)
	ctx := context.Background()

	stop, err := Start(ctx, log.Nop(), Options{
		Port:   port,
		Health: probe.Static(true, ""),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp := opsGet(t, port, "/-/healthy")
	resp.Body.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := stop(shutdownCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	addr := fmt.Sprintf("http://127.0.0.1:%d/-/healthy", port)
	if _, err := http.Get(addr); err == nil {
		t.Fatal("server still accepting connections after shutdown")
	}
}

// requireNonPublicNetwork

func guardedOK(t *testing.T, remoteAddr string) int {
	t.Helper()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := requireNonPublicNetwork(log.Nop(), inner)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/-/healthy", http.NoBody)
	req.RemoteAddr = remoteAddr
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireNonPublicNetwork(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		want       int
	}{
		{"loopback", "127.0.0.1:12345", http.StatusOK},
		{"ipv6 loopback", "[::1]:12345", http.StatusOK},
		{"private 10", "10.0.0.1:8080", http.StatusOK},
		{"private 172", "172.16.0.1:8080", http.StatusOK},
		{"private 192", "192.168.1.1:8080", http.StatusOK},
		{"link local", "169.254.1.1:8080", http.StatusOK},
		{"public", "203.0.113.1:80", http.StatusForbidden},
		{"ipv4-mapped public", "[::ffff:8.8.8.8]:12345", http.StatusForbidden},
		{"ipv4-mapped private", "[::ffff:10.0.0.1]:12345", http.StatusOK},
		{"bad addr", "not-an-address", http.StatusForbidden},
		{"empty addr", "", http.StatusForbidden},
		{"invalid ip", "999.999.999.999:8080", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := guardedOK(t, tc.remoteAddr); got != tc.want {
				t.Errorf("remote %q status = %d, want %d", tc.remoteAddr, got, tc.want)
			}
		})
	}
}

// Package httpmw provides the HTTP middleware for the public-facing
// asset server.
//
// Middleware is composed in a fixed order in httpserver.NewHandler:
// security headers, recovery, request ID, client IP extraction, rate
// limiting, OTEL tracing, archive identity headers, metrics, structured
// logging, and the chi router. Each middleware is an independent function
// that can be tested, reordered, or removed individually.
//
// User-supplied data (query strings, user agents) is kept out of log
// records to avoid log injection and PII retention.
package httpmw

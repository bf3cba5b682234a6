// Package ratelimit is middleware for per-ip rate limiting.
//
// Simple in-memory implementation, not shared between instances.
//
// What this protects against:
//   - a single ip flooding the server (connection/goroutine exhaustion)
//   - gives visibility into who is hammering the asset mounts
//   - one log entry per offender to prevent log spam, metrics count every
//     denied request
//
// What this does NOT protect against:
//   - distributed attacks across many ips
//   - bandwidth-bill attacks, inbound data is already accepted by the
//     time this runs
//
// The server holds no sessions or database connections, so this exists
// to mitigate resource exhaustion and surface abuse, not to be a WAF.
package ratelimit

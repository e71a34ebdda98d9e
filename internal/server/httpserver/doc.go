// Package httpserver serves the snapshot store over HTTP.
//
// NewRouter wraps every route of a handler.Handler in the middleware
// chain (request IDs, panic recovery, tracing, metrics, access logging,
// per-client rate limiting and, for admin routes, a network allowlist).
// Server listens on TCP or a Unix socket, optionally with TLS, and shuts
// down gracefully when its context ends.
package httpserver

// Package connection is the snapctl client for a running snapctl serve.
//
// A server address is host:port, an http:// or https:// URL, or
// unix:PATH for a local socket. Responses are unwrapped from the
// server's JSON envelope; failures come back as *APIError.
package connection

package connection

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// UnixPrefix marks a server address as a Unix socket path.
const UnixPrefix = "unix:"

// socketHost is the placeholder host used in URLs sent over a socket.
const socketHost = "http://snapctl"

// socketPath returns the socket path of a unix:PATH address.
func socketPath(server string) (string, bool) {
	return strings.CutPrefix(server, UnixPrefix)
}

// unixTransport dials path for every request, whatever the URL host.
func unixTransport(path string) *http.Transport {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", path)
		},
		MaxIdleConns:    4,
		IdleConnTimeout: 30 * time.Second,
	}
}

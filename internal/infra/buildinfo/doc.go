// Package buildinfo exposes build-time version information.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/trajsnap/internal/infra/buildinfo.Version=v1.0.0"
//
// When they are left at their defaults, Get fills Commit and BuildTime
// from the VCS stamp the Go toolchain embeds in the binary.
package buildinfo

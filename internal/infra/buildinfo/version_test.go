package buildinfo

import (
	"runtime"
	"runtime/debug"
	"testing"
)

func withBuildInfo(t *testing.T, settings ...debug.BuildSetting) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestGet(t *testing.T) {
	withBuildInfo(t)
	info := Get()

	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
}

func TestGet_VCSFallback(t *testing.T) {
	withBuildInfo(t,
		debug.BuildSetting{Key: "vcs.revision", Value: "abc123"},
		debug.BuildSetting{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
	)

	tests := []struct {
		name       string
		commit     string
		wantCommit string
	}{
		{"default uses vcs stamp", "unknown", "abc123"},
		{"ldflags win", "deadbeef", "deadbeef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := Commit
			Commit = tt.commit
			defer func() { Commit = orig }()

			info := Get()
			if info.Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", info.Commit, tt.wantCommit)
			}
			if BuildTime == "unknown" && info.BuildTime != "2026-01-02T03:04:05Z" {
				t.Errorf("BuildTime = %q, want vcs time", info.BuildTime)
			}
		})
	}
}

func TestString(t *testing.T) {
	withBuildInfo(t)
	i := Get()
	want := i.Version + " (" + i.Commit + ") built at " + i.BuildTime
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

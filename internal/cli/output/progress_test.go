package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBar_Render(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, "Backup")
	bar.SetTotal(100)
	bar.Increment(50)

	out := buf.String()
	if !strings.Contains(out, "Backup") || !strings.Contains(out, "50%") {
		t.Errorf("render = %q", out)
	}

	bar.Finish()
	if !strings.Contains(buf.String(), "100%") {
		t.Error("Finish() should show 100%")
	}
}

func TestProgressBar_UnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, "Upload")
	bar.Increment(2048)
	if !strings.Contains(buf.String(), "Upload 2.0 KB") {
		t.Errorf("render = %q", buf.String())
	}
}

func TestCounter(t *testing.T) {
	var buf bytes.Buffer
	bar := NewCounter(&buf, "Import")
	bar.SetTotal(4)
	bar.Increment(1)
	if !strings.Contains(buf.String(), "(1/4)") {
		t.Errorf("render = %q", buf.String())
	}
}

func TestProgressBar_Writer(t *testing.T) {
	var out, dst bytes.Buffer
	bar := NewProgressBar(&out, "Copy")
	w := bar.Writer(&dst)
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if dst.String() != "hello" {
		t.Errorf("dst = %q", dst.String())
	}
	if bar.current != 5 {
		t.Errorf("current = %d, want 5", bar.current)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1099511627776, "1.0 TB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.input); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

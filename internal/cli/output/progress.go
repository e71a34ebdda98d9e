package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// ProgressBar draws a single-line progress indicator. Amounts are shown as
// bytes unless the bar was made with NewCounter.
type ProgressBar struct {
	w       io.Writer
	title   string
	total   int64
	current int64
	width   int
	unit    func(int64) string
	mu      sync.Mutex
}

// NewProgressBar creates a progress bar measured in bytes.
func NewProgressBar(w io.Writer, title string) *ProgressBar {
	return &ProgressBar{w: w, title: title, width: 40, unit: formatBytes}
}

// NewCounter creates a progress bar measured in items.
func NewCounter(w io.Writer, title string) *ProgressBar {
	p := NewProgressBar(w, title)
	p.unit = func(n int64) string { return strconv.FormatInt(n, 10) }
	return p
}

// SetTotal sets the expected total. Zero means unknown.
func (p *ProgressBar) SetTotal(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// Increment adds n to the current amount and redraws.
func (p *ProgressBar) Increment(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current += n
	p.render()
}

// Finish draws the final state and ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total > 0 {
		p.current = p.total
	}
	p.render()
	fmt.Fprintln(p.w)
}

// Writer returns a writer that forwards to dst and advances the bar by
// every byte written.
func (p *ProgressBar) Writer(dst io.Writer) io.Writer {
	return &progressWriter{dst: dst, bar: p}
}

type progressWriter struct {
	dst io.Writer
	bar *ProgressBar
}

func (pw *progressWriter) Write(b []byte) (int, error) {
	n, err := pw.dst.Write(b)
	pw.bar.Increment(int64(n))
	return n, err
}

func (p *ProgressBar) render() {
	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %s", p.title, p.unit(p.current))
		return
	}

	percent := min(float64(p.current)/float64(p.total), 1)
	filled := int(float64(p.width) * percent)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	fmt.Fprintf(p.w, "\r%s [%s] %3.0f%% (%s/%s)",
		p.title, bar, percent*100, p.unit(p.current), p.unit(p.total))
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

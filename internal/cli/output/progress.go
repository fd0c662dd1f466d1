package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressBar draws a percentage bar with the current step message.
// Report matches the snapshot progress callback, so a bar can be handed
// directly to an export or import.
type ProgressBar struct {
	w       io.Writer
	title   string
	width   int
	percent int
	message string
	done    bool
	mu      sync.Mutex
}

// NewProgressBar creates a new progress bar.
func NewProgressBar(w io.Writer, title string) *ProgressBar {
	return &ProgressBar{
		w:     w,
		title: title,
		width: 30,
	}
}

// Report updates the bar. Percentages outside 0..100 are clamped and the
// bar never moves backwards.
func (p *ProgressBar) Report(message string, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	percent = max(0, min(100, percent))
	if percent > p.percent {
		p.percent = percent
	}
	p.message = message
	p.render()
}

// Percent returns the last rendered percentage.
func (p *ProgressBar) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent
}

// Finish completes the line. Later reports are ignored.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render() {
	filled := p.width * p.percent / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)
	fmt.Fprintf(p.w, "\r\033[K%s [%s] %3d%% %s", p.title, bar, p.percent, p.message)
}

// formatBytes formats bytes to human readable string.
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

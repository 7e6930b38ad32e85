package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
)

// Progress tracks and displays rendering progress. Besides the counts it
// sums the time workers spent per region or tile and the point cache
// lookups of sparse and cellular bases.
type Progress struct {
	startTime time.Time
	output    io.Writer
	unit      string
	total     int
	completed int
	failed    int
	busy      time.Duration
	slowest   Result
	cache     basis.CacheStats
	mu        sync.RWMutex
	enabled   bool
}

// NewProgress creates a new progress tracker. unit names the counted
// items, e.g. "regions" or "tiles".
func NewProgress(total int, unit string, enabled bool) *Progress {
	return &Progress{
		total:     total,
		unit:      unit,
		startTime: time.Now(),
		output:    os.Stderr,
		enabled:   enabled,
	}
}

// Update records the completion of last.
func (p *Progress) Update(last Result, completed, total, failed int) {
	p.mu.Lock()
	p.completed = completed
	p.total = total
	p.failed = failed
	if last.Err == nil {
		p.busy += last.Elapsed
		if last.Elapsed > p.slowest.Elapsed {
			p.slowest = last
		}
	}
	p.cache = p.cache.Add(last.Cache)
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Print displays the current progress to output.
func (p *Progress) Print() {
	p.mu.RLock()
	completed := p.completed
	total := p.total
	failed := p.failed
	cache := p.cache
	startTime := p.startTime
	p.mu.RUnlock()

	elapsed := time.Since(startTime)

	var rate float64
	var eta time.Duration
	if completed > 0 {
		rate = float64(completed) / elapsed.Seconds()
		remaining := total - completed
		if rate > 0 {
			eta = time.Duration(float64(remaining)/rate) * time.Second
		}
	}

	barWidth := 30
	progress := 0.0
	if total > 0 {
		progress = float64(completed) / float64(total)
	}
	filledWidth := int(progress * float64(barWidth))
	bar := strings.Repeat("█", filledWidth) + strings.Repeat("░", barWidth-filledWidth)

	line := fmt.Sprintf("\r[%s] %d/%d %s", bar, completed, total, p.unit)
	if failed > 0 {
		line += fmt.Sprintf(" (%d failed)", failed)
	}
	line += fmt.Sprintf(" - %.1f %s/sec", rate, p.unit)
	if cache.Hits+cache.Misses > 0 {
		line += fmt.Sprintf(" - cache %.0f%%", 100*cache.HitRate())
	}
	if eta > 0 && completed < total {
		line += fmt.Sprintf(" - ETA: %s", formatDuration(eta))
	}
	if completed == total {
		line += fmt.Sprintf(" - Done in %s", formatDuration(elapsed))
	}

	// clear leftovers of a longer previous line
	line += "          "

	fmt.Fprint(p.output, line)
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Summary returns a summary string of the completed work: counts and
// throughput, the mean and worst render time per region or tile, and the
// point cache hit rate when the basis has one.
func (p *Progress) Summary() string {
	p.mu.RLock()
	completed := p.completed
	total := p.total
	failed := p.failed
	busy := p.busy
	slowest := p.slowest
	cache := p.cache
	startTime := p.startTime
	p.mu.RUnlock()

	elapsed := time.Since(startTime)
	successful := completed - failed

	var rate float64
	if elapsed.Seconds() > 0 {
		rate = float64(completed) / elapsed.Seconds()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rendered %d/%d %s (%d failed) in %s (%.1f %s/sec)",
		successful, total, p.unit, failed, formatDuration(elapsed), rate, p.unit)
	if successful > 0 {
		fmt.Fprintf(&b, ", %s average, slowest %s in %s",
			formatTaskTime(busy/time.Duration(successful)), slowest.Task, formatTaskTime(slowest.Elapsed))
	}
	if n := cache.Hits + cache.Misses; n > 0 {
		fmt.Fprintf(&b, ", point cache %.1f%% of %d lookups", 100*cache.HitRate(), n)
	}
	return b.String()
}

// formatTaskTime formats the render time of one region or tile, which is
// usually well below a second.
func formatTaskTime(d time.Duration) string {
	if d >= time.Second {
		return formatDuration(d)
	}
	return d.Round(100 * time.Microsecond).String()
}

// formatDuration formats a whole-run duration.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}

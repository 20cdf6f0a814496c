// Package progress reports the progress of long transfers like the root
// file system download on a single, continuously rewritten terminal line.
package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Reporter counts the bytes written to it and prints the transfer rate once
// per Interval while Report runs.
type Reporter struct {
	Out      io.Writer
	Interval time.Duration // defaults to one second

	transferred atomic.Uint64
	total       atomic.Uint64

	mu     sync.Mutex
	status string
}

// Write counts p; use it with io.TeeReader.
func (p *Reporter) Write(b []byte) (int, error) {
	p.transferred.Add(uint64(len(b)))
	return len(b), nil
}

// Reset returns the number of bytes transferred so far and starts over.
func (p *Reporter) Reset() uint64 {
	return p.transferred.Swap(0)
}

func (p *Reporter) SetStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

// SetTotal sets the expected transfer size. With 0, only the rate is shown.
func (p *Reporter) SetTotal(total uint64) {
	p.total.Store(total)
}

func (p *Reporter) getStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// line formats one progress line.
func (p *Reporter) line(transferred, bytesPerInterval uint64, interval time.Duration) string {
	rate := BPS(uint64(float64(bytesPerInterval) / interval.Seconds()))
	status := rate
	if total := p.total.Load(); total > 0 {
		pct := float64(transferred) / float64(total) * 100
		status = fmt.Sprintf("%02.2f%% of %s, downloading at %s",
			pct,
			Bytes(total),
			rate)
	}
	return fmt.Sprintf("\r[%s] %s                 ", p.getStatus(), status)
}

// Report prints progress until ctx is canceled.
func (p *Reporter) Report(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := p.transferred.Load()
	for {
		select {
		case <-ticker.C:
			transferred := p.transferred.Load()
			if transferred < last {
				// reset in the meantime
				last = 0
			}
			fmt.Fprint(p.Out, p.line(transferred, transferred-last, interval))
			last = transferred
		case <-ctx.Done():
			return
		}
	}
}

// BPS formats a transfer rate.
func BPS(bps uint64) string {
	switch {
	case bps > (1024 * 1024):
		return fmt.Sprintf("%.f MiB/s", float64(bps)/1024/1024)
	case bps > 1024:
		return fmt.Sprintf("%.f KiB/s", float64(bps)/1024)
	default:
		return fmt.Sprintf("%d B/s", bps)
	}
}

// Bytes formats a size.
func Bytes(bytes uint64) string {
	switch {
	case bytes > (1024 * 1024):
		return fmt.Sprintf("%.f MiB", float64(bytes)/1024/1024)
	case bytes > 1024:
		return fmt.Sprintf("%.f KiB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// Package cli provides the interactive rendering layer for textdedup's
// command-line interface: a throttled, optionally colored progress line.
package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/sumatoshi-tech/textdedup/internal/dedup/pipeline"
	"github.com/sumatoshi-tech/textdedup/pkg/alg/stats"
)

// progressInterval is the minimum time between two rendered progress lines.
// The first and final ticks always render regardless of this throttle.
const progressInterval = 100 * time.Millisecond

// emaAlpha smooths the bytes/sec and units/sec readings (progress since the
// last rendered line over the time since it) so the printed rate doesn't
// jitter between two adjacent file sizes.
const emaAlpha = 0.3

// Progress renders pipeline.Snapshot ticks to a writer, throttled to at most
// one line every progressInterval, under a lock (pipeline may call OnProgress
// from any worker goroutine).
type Progress struct {
	mu       sync.Mutex
	w        io.Writer
	noColor  bool
	start    time.Time
	lastTick time.Time
	lastSeen Snapshot
	bytesEMA *stats.EMA
	unitsEMA *stats.EMA
	ticks    int
}

// Snapshot is a type alias so callers of this package don't need to import
// internal/dedup/pipeline directly just to hold the progress state.
type Snapshot = pipeline.Snapshot

// NewProgress creates a Progress renderer writing to w.
func NewProgress(w io.Writer, noColor bool) *Progress {
	now := time.Now()

	return &Progress{
		w:        w,
		noColor:  noColor,
		start:    now,
		bytesEMA: stats.NewEMA(emaAlpha),
		unitsEMA: stats.NewEMA(emaAlpha),
	}
}

// OnProgress is the callback pipeline.Run invokes after every file. It
// throttles rendering to progressInterval, except the very first and the
// final tick (detected by the caller via Final).
func (p *Progress) OnProgress(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()

	first := p.ticks == 0
	p.ticks++

	since := p.lastTick
	if since.IsZero() {
		since = p.start
	}

	elapsed := now.Sub(since).Seconds()
	if elapsed > 0 {
		deltaBytes := float64(s.BytesProcessed - p.lastSeen.BytesProcessed)
		deltaUnits := float64(s.UniqueUnits + s.DuplicateUnits - p.lastSeen.UniqueUnits - p.lastSeen.DuplicateUnits)
		p.bytesEMA.Update(deltaBytes / elapsed)
		p.unitsEMA.Update(deltaUnits / elapsed)
	}

	if !first && now.Sub(p.lastTick) < progressInterval {
		return
	}

	p.lastTick = now
	p.lastSeen = s
	p.render(s)
}

// Final renders the closing summary line unconditionally, bypassing the throttle.
func (p *Progress) Final(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastSeen = s
	p.render(s)
	fmt.Fprintln(p.w)
}

func (p *Progress) render(s Snapshot) {
	label := "processed"
	if !p.noColor {
		label = color.CyanString("processed")
	}

	fmt.Fprintf(p.w, "\r%s=%d written=%d unique=%d dup=%d errors=%d approx_unique=%d rate=%s/s units/s=%.0f",
		label, s.Processed, s.FilesWritten, s.UniqueUnits, s.DuplicateUnits, s.Errors, s.ApproxUnique,
		humanize.Bytes(uint64(max64(p.bytesEMA.Value(), 0))), p.unitsEMA.Value())
}

func max64(v float64, floor float64) float64 {
	if v < floor {
		return floor
	}

	return v
}

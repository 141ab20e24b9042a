package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/parcelxfer/parcel/scheduler"
)

// spinner frames, matching the pack's keshon-bvc progress tracker.
var spinner = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickInterval governs the terminal redraw rate.
const tickInterval = 100 * time.Millisecond

// Renderer ticks against a Scheduler's Progress Counters and redraws a
// single status line until Finish is called.
type Renderer struct {
	total     uint64
	label     string
	prog      *scheduler.Progress
	startTime time.Time
	done      chan struct{}
	mu        sync.Mutex
}

// New starts a Renderer for a transfer of total bytes, labeled label
// (typically the file name), reading live counts from prog.
func New(total uint64, label string, prog *scheduler.Progress) *Renderer {
	r := &Renderer{
		total:     total,
		label:     label,
		prog:      prog,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
	go r.render()
	return r
}

func (r *Renderer) render() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-r.done:
			elapsed := time.Since(r.startTime)
			fmt.Printf("\r✓ %s (%d bytes, %s)          \n",
				r.label, r.total, elapsed.Round(time.Millisecond))
			return

		case <-ticker.C:
			bytes := r.prog.BytesReceived()
			percent := 0.0
			if r.total > 0 {
				percent = float64(bytes) / float64(r.total) * 100
			}
			fmt.Printf("\r%s %s [%d/%d bytes] %.0f%%  ",
				spinner[frame%len(spinner)], r.label, bytes, r.total, percent)
			frame++
		}
	}
}

// Finish stops the renderer and prints the final status line.
func (r *Renderer) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
		return // already finished
	default:
		close(r.done)
	}
	time.Sleep(1 * time.Millisecond)
}

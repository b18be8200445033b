package smoothing

import (
	"fmt"
	"sort"
)

// Mode selects how a Window combines its samples.
type Mode string

const (
	ModeMedian Mode = "median"
	ModeMean   Mode = "mean"
)

// ParseMode converts a config string to a Mode. Empty means median.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMedian:
		return ModeMedian, nil
	case ModeMean:
		return ModeMean, nil
	default:
		return "", fmt.Errorf("smoothing: unknown mode %q: want median|mean", s)
	}
}

// Window is a bounded FIFO of recent samples. The zero value is not usable;
// call NewWindow.
type Window struct {
	mode    Mode
	samples []float64 // oldest first
	size    int
	scratch []float64
}

// NewWindow returns a Window holding at most size samples.
// A size below 1 is treated as 1, which passes samples through unchanged.
func NewWindow(size int, mode Mode) *Window {
	if size < 1 {
		size = 1
	}
	if mode == "" {
		mode = ModeMedian
	}
	return &Window{
		mode:    mode,
		samples: make([]float64, 0, size),
		size:    size,
		scratch: make([]float64, 0, size),
	}
}

// Add inserts v and returns the smoothed value over the current contents.
func (w *Window) Add(v float64) float64 {
	if len(w.samples) >= w.size {
		w.samples = append(w.samples[:0], w.samples[len(w.samples)-w.size+1:]...)
	}
	w.samples = append(w.samples, v)
	return w.Value()
}

// Value returns the smoothed value without inserting. It is 0 when empty.
func (w *Window) Value() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	if w.mode == ModeMean {
		var sum float64
		for _, s := range w.samples {
			sum += s
		}
		return sum / float64(len(w.samples))
	}
	w.scratch = append(w.scratch[:0], w.samples...)
	sort.Float64s(w.scratch)
	n := len(w.scratch)
	if n%2 == 1 {
		return w.scratch[n/2]
	}
	return (w.scratch[n/2-1] + w.scratch[n/2]) / 2
}

// Len returns the number of buffered samples.
func (w *Window) Len() int { return len(w.samples) }

// Cap returns the window size.
func (w *Window) Cap() int { return w.size }

// Mode returns the combining strategy.
func (w *Window) Mode() Mode { return w.mode }

// Reset drops all samples.
func (w *Window) Reset() { w.samples = w.samples[:0] }

// Reconfigure changes the size and mode, keeping the newest samples that fit.
func (w *Window) Reconfigure(size int, mode Mode) {
	if size < 1 {
		size = 1
	}
	if mode != "" {
		w.mode = mode
	}
	if len(w.samples) > size {
		w.samples = append([]float64(nil), w.samples[len(w.samples)-size:]...)
	}
	w.size = size
}

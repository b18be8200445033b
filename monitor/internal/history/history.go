package history

import (
	"fmt"
	"time"

	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// Defaults used when a zero Config field is passed to New.
const (
	DefaultWindow       = 60 * time.Second
	DefaultAverageGuard = 60 * time.Second
)

// Config controls the rate windows.
type Config struct {
	// Window is the span of the sliding current-rate view.
	Window time.Duration

	// AverageGuard is the session age below which AverageRate reports the
	// current rate instead of Total / elapsed minutes.
	AverageGuard time.Duration
}

// History is the blink log of one session.
type History struct {
	cfg     Config
	start   time.Time
	total   []time.Time
	recent  []time.Time
	lastTS  time.Time
	clamped uint64
}

// New returns an empty History whose session starts at start.
func New(cfg Config, start time.Time) *History {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.AverageGuard < 0 {
		cfg.AverageGuard = 0
	}
	return &History{cfg: cfg, start: start}
}

// Config returns the active configuration.
func (h *History) Config() Config { return h.cfg }

// SetConfig changes the windows. Existing entries are kept.
func (h *History) SetConfig(cfg Config) {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.AverageGuard < 0 {
		cfg.AverageGuard = 0
	}
	h.cfg = cfg
}

// Record appends ev to both logs. A timestamp earlier than the previous entry
// is clamped to it so the logs stay non-decreasing.
func (h *History) Record(ev types.BlinkEvent) {
	ts := ev.Timestamp
	if len(h.total) > 0 && ts.Before(h.lastTS) {
		ts = h.lastTS
		h.clamped++
	}
	h.lastTS = ts
	h.total = append(h.total, ts)
	h.recent = append(h.recent, ts)
}

// Prune removes recent entries at or before now-Window and returns how many
// were removed. Total is never affected.
func (h *History) Prune(now time.Time) int {
	cutoff := now.Add(-h.cfg.Window)
	i := 0
	for i < len(h.recent) && !h.recent[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return 0
	}
	h.recent = append(h.recent[:0], h.recent[i:]...)
	return i
}

// CurrentRate returns the number of blinks in (now-Window, now].
func (h *History) CurrentRate(now time.Time) int {
	cutoff := now.Add(-h.cfg.Window)
	n := 0
	for _, ts := range h.recent {
		if ts.After(cutoff) && !ts.After(now) {
			n++
		}
	}
	return n
}

// AverageRate returns blinks per minute over the whole session, or the
// current rate while the session is younger than AverageGuard.
func (h *History) AverageRate(now time.Time) float64 {
	elapsed := h.SessionDuration(now)
	if elapsed < h.cfg.AverageGuard || elapsed <= 0 {
		return float64(h.CurrentRate(now))
	}
	return float64(len(h.total)) / elapsed.Minutes()
}

// Total returns the number of blinks recorded since the session started.
func (h *History) Total() int { return len(h.total) }

// Recent returns the number of entries currently held in the recent log,
// which may include entries not yet pruned.
func (h *History) Recent() int { return len(h.recent) }

// Clamped returns how many timestamps were moved forward by Record.
func (h *History) Clamped() uint64 { return h.clamped }

// Timestamps returns a copy of the total log.
func (h *History) Timestamps() []time.Time {
	out := make([]time.Time, len(h.total))
	copy(out, h.total)
	return out
}

// Start returns the session start time.
func (h *History) Start() time.Time { return h.start }

// SessionDuration returns the time since the session started, never negative.
func (h *History) SessionDuration(now time.Time) time.Duration {
	d := now.Sub(h.start)
	if d < 0 {
		return 0
	}
	return d
}

// Reset clears both logs and restarts the session at now.
func (h *History) Reset(now time.Time) {
	h.start = now
	h.total = nil
	h.recent = nil
	h.lastTS = time.Time{}
	h.clamped = 0
}

// FormatDuration renders d as m:ss, e.g. "12:05".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

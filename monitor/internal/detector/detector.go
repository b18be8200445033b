package detector

import (
	"log/slog"
	"math"
	"time"

	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// Config holds the detector tunables.
type Config struct {
	// CloseThreshold is the EAR below which the eye counts as closing.
	CloseThreshold float64

	// ReopenBuffer is added to CloseThreshold before a reopen is accepted.
	ReopenBuffer float64

	// MinBlinkInterval is the minimum gap between two emitted blinks.
	MinBlinkInterval time.Duration

	// ConfirmationDelay, when positive, makes every close provisional until
	// the delay has passed with the eye still closed.
	ConfirmationDelay time.Duration

	// ConsecutiveFrames is how many sub-threshold frames in a row are needed
	// before a close is considered. Values below 1 mean 1.
	ConsecutiveFrames int
}

// ReopenThreshold is the EAR at or above which a closed eye reopens.
func (c Config) ReopenThreshold() float64 {
	return c.CloseThreshold + c.ReopenBuffer
}

// Result describes what one call to Process did.
type Result struct {
	// Event is the blink emitted by this call, if any. It may come from a
	// confirmation that fell due before this frame.
	Event *types.BlinkEvent

	// ConfirmAt is set when this frame opened a provisional close; the caller
	// should call Confirm at that time.
	ConfirmAt time.Time

	// Skipped is true when the sample was invalid and ignored.
	Skipped bool

	// Changed is true when the eye state flipped on this frame.
	Changed bool

	State types.EyeState
}

// Stats are cumulative counters since the last Reset.
type Stats struct {
	Frames    uint64 `json:"frames"`
	Skipped   uint64 `json:"skipped"`
	Blinks    uint64 `json:"blinks"`
	Discarded uint64 `json:"discarded"`
}

// Detector is the blink state machine.
type Detector struct {
	cfg Config

	state      types.EyeState
	below      int // consecutive sub-threshold frames
	lastEAR    float64
	lastBlink  time.Time
	hasBlinked bool

	// Provisional close awaiting confirmation.
	pending    bool
	pendingAt  time.Time
	pendingEAR float64
	confirmAt  time.Time

	stats Stats
}

// New returns a Detector in the open state.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg, state: types.EyeOpen}
}

// Config returns the active configuration.
func (d *Detector) Config() Config { return d.cfg }

// SetConfig replaces the tunables without touching the current state.
// A pending confirmation keeps its original deadline.
func (d *Detector) SetConfig(cfg Config) { d.cfg = cfg }

// State returns the current eye state.
func (d *Detector) State() types.EyeState { return d.state }

// LastEAR returns the most recent valid sample, or 0 before the first one.
func (d *Detector) LastEAR() float64 { return d.lastEAR }

// Stats returns the cumulative counters.
func (d *Detector) Stats() Stats { return d.stats }

// PendingConfirmation returns the deadline of a provisional close, if any.
func (d *Detector) PendingConfirmation() (time.Time, bool) {
	return d.confirmAt, d.pending
}

// Reset returns the detector to its initial state and clears the counters.
func (d *Detector) Reset() {
	*d = Detector{cfg: d.cfg, state: types.EyeOpen}
}

// Process feeds one smoothed EAR sample taken at now.
func (d *Detector) Process(ear float64, now time.Time) Result {
	if math.IsNaN(ear) || math.IsInf(ear, 0) || ear < 0 {
		d.stats.Skipped++
		return Result{Skipped: true, State: d.state}
	}
	d.stats.Frames++

	var res Result
	if d.pending && !now.Before(d.confirmAt) {
		res.Event = d.Confirm(now)
	}

	d.lastEAR = ear
	if ear < d.cfg.CloseThreshold {
		d.below++
	} else {
		d.below = 0
	}

	switch d.state {
	case types.EyeOpen:
		if d.below < d.required() || d.sinceLastBlink(now) < d.cfg.MinBlinkInterval {
			break
		}
		d.state = types.EyeClosed
		d.below = 0
		res.Changed = true

		if d.cfg.ConfirmationDelay <= 0 {
			res.Event = d.emit(now, ear)
			break
		}
		if d.pending {
			// The earlier provisional close reopened before its deadline.
			d.stats.Discarded++
		}
		d.pending = true
		d.pendingAt = now
		d.pendingEAR = ear
		d.confirmAt = now.Add(d.cfg.ConfirmationDelay)
		res.ConfirmAt = d.confirmAt
		slog.Debug("detector: provisional close", "ear", ear, "confirm_at", d.confirmAt)

	case types.EyeClosed:
		if ear >= d.cfg.ReopenThreshold() {
			d.state = types.EyeOpen
			res.Changed = true
		}
	}

	res.State = d.state
	return res
}

// Confirm resolves a provisional close once its deadline has been reached.
// It returns the blink if the eye is still closed and below threshold, and
// nil if the close was noise, nothing is pending, or the deadline is ahead.
func (d *Detector) Confirm(now time.Time) *types.BlinkEvent {
	if !d.pending || now.Before(d.confirmAt) {
		return nil
	}
	d.pending = false
	if d.state == types.EyeClosed && d.lastEAR < d.cfg.CloseThreshold {
		return d.emit(d.pendingAt, d.pendingEAR)
	}
	d.stats.Discarded++
	slog.Debug("detector: provisional close discarded", "ear", d.lastEAR)
	return nil
}

func (d *Detector) emit(at time.Time, ear float64) *types.BlinkEvent {
	d.lastBlink = at
	d.hasBlinked = true
	d.stats.Blinks++
	return &types.BlinkEvent{Timestamp: at, EAR: ear}
}

func (d *Detector) required() int {
	if d.cfg.ConsecutiveFrames < 1 {
		return 1
	}
	return d.cfg.ConsecutiveFrames
}

// sinceLastBlink returns the time since the last emitted blink. Before the
// first blink the debounce is always satisfied; a regressing clock yields 0.
func (d *Detector) sinceLastBlink(now time.Time) time.Duration {
	if !d.hasBlinked {
		return math.MaxInt64
	}
	elapsed := now.Sub(d.lastBlink)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

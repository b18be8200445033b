package session

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/blinkwatch/blinkwatch/monitor/internal/alerts"
	"github.com/blinkwatch/blinkwatch/monitor/internal/clock"
	"github.com/blinkwatch/blinkwatch/monitor/internal/config"
	"github.com/blinkwatch/blinkwatch/monitor/internal/detector"
	"github.com/blinkwatch/blinkwatch/monitor/internal/geometry"
	"github.com/blinkwatch/blinkwatch/monitor/internal/history"
	"github.com/blinkwatch/blinkwatch/monitor/internal/smoothing"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

var (
	// ErrBusy is returned when a frame arrives while another is in flight.
	ErrBusy = errors.New("session: frame already in flight")

	// ErrStopped is returned for frames sent to a session that is not running.
	ErrStopped = errors.New("session: not running")

	// ErrInvalidTarget is returned by SetTarget for a negative or non-finite rate.
	ErrInvalidTarget = errors.New("session: invalid target rate")
)

// RateSource selects which rate the alert check compares with the target.
type RateSource string

const (
	RateCurrent RateSource = "current"
	RateAverage RateSource = "average"
)

// Observer is notified when the effect signal flips.
type Observer interface {
	OnSignal(types.SignalChange)
}

// BlinkObserver is optionally implemented by observers that also want every
// blink.
type BlinkObserver interface {
	OnBlink(sessionID string, ev types.BlinkEvent)
}

// FrameResult describes what one frame did.
type FrameResult struct {
	// Skipped is true when the frame had no usable eye landmarks.
	Skipped  bool              `json:"skipped"`
	EAR      float64           `json:"ear,omitempty"`
	Smoothed float64           `json:"smoothed_ear,omitempty"`
	State    types.EyeState    `json:"eye_state"`
	Blink    *types.BlinkEvent `json:"blink,omitempty"`
}

// notes collects observer notifications produced under the lock.
type notes struct {
	id     string
	blinks []types.BlinkEvent
	signal *types.SignalChange
}

// Session is one monitoring session. It is safe for concurrent use.
type Session struct {
	clk clock.Clock

	inFlight atomic.Bool
	dropped  atomic.Uint64

	mu        sync.Mutex
	id        string
	running   bool
	gen       uint64
	observers []Observer

	points *smoothing.Points
	window *smoothing.Window
	det    *detector.Detector
	hist   *history.History
	trig   *alerts.Trigger

	rateSource    RateSource
	pruneInterval time.Duration
	checkInterval time.Duration

	prune, check, followUp, confirm, revert task

	frames     uint64
	noFace     uint64
	missing    uint64
	lastFrame  time.Time
	lastFace   time.Time
	lastEAR    float64
	lastSmooth float64
}

// New creates a stopped Session configured from cfg.
func New(cfg *config.Config, clk clock.Clock) *Session {
	if clk == nil {
		clk = clock.Real{}
	}
	now := clk.Now()
	s := &Session{
		clk:    clk,
		id:     uuid.NewString(),
		points: smoothing.NewPoints(cfg.Smoothing.PositionWindow),
		window: smoothing.NewWindow(cfg.Smoothing.Window, smoothingMode(cfg)),
		det:    detector.New(detectorConfig(cfg)),
		hist:   history.New(historyConfig(cfg), now),
		trig:   alerts.New(alertConfig(cfg)),
	}
	s.applyIntervals(cfg)
	return s
}

// Subscribe registers o for signal changes, and for blinks when o also
// implements BlinkObserver.
func (s *Session) Subscribe(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// ID returns the identifier of the current session run. It changes on Start
// and Reset.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Running reports whether the session accepts frames.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins a fresh session run and schedules the periodic timers.
// Starting a running session is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	n := s.resetLocked(s.clk.Now())
	s.mu.Unlock()

	slog.Info("session: started", "id", n.id)
	s.notify(n)
}

// Stop cancels every timer. Frames are rejected with ErrStopped until the
// next Start. History and counters stay readable.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.gen++
	s.cancelAllLocked()
	slog.Info("session: stopped", "id", s.id, "total_blinks", s.hist.Total())
}

// Reset clears history, alert state and the detector, and restarts the
// session clock. Timers are cancelled and, when running, rescheduled.
func (s *Session) Reset() {
	s.mu.Lock()
	n := s.resetLocked(s.clk.Now())
	s.mu.Unlock()

	slog.Info("session: reset", "id", n.id)
	s.notify(n)
}

// resetLocked returns a hide notification when the effect was visible.
func (s *Session) resetLocked(now time.Time) notes {
	wasVisible := s.trig.Signal().Visible
	oldID := s.id

	s.gen++
	s.cancelAllLocked()

	s.id = uuid.NewString()
	s.points.Reset()
	s.window.Reset()
	s.det.Reset()
	s.hist.Reset(now)
	s.trig.Reset()
	s.frames, s.noFace, s.missing = 0, 0, 0
	s.lastFrame, s.lastFace = time.Time{}, time.Time{}
	s.lastEAR, s.lastSmooth = 0, 0
	s.dropped.Store(0)

	if s.running {
		s.schedulePruneLocked()
		s.scheduleCheckLocked()
	}

	n := notes{id: s.id}
	if wasVisible {
		n.signal = &types.SignalChange{
			SessionID: oldID,
			Signal:    s.trig.Signal(),
			State:     types.AlertNormal,
			Target:    s.trig.Config().TargetRate,
			At:        now,
		}
	}
	return n
}

// ProcessFrame runs one landmark frame through the pipeline. A frame without
// usable eye landmarks is skipped without touching detector state.
func (s *Session) ProcessFrame(f types.Frame) (FrameResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		return FrameResult{}, ErrBusy
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return FrameResult{}, ErrStopped
	}

	now := s.clk.Now()
	s.frames++
	s.lastFrame = now
	n := notes{id: s.id}

	left, right, ok := geometry.EyesFromFrame(f)
	if !ok {
		if f.HasFace() {
			s.missing++
		} else {
			s.noFace++
		}
		res := FrameResult{Skipped: true, State: s.det.State()}
		s.mu.Unlock()
		return res, nil
	}
	if s.points.Enabled() {
		left = s.points.SmoothEye(left, types.LeftEyeMesh)
		right = s.points.SmoothEye(right, types.RightEyeMesh)
	}
	avg, ok := geometry.AverageEAR(left, right)
	if !ok {
		s.missing++
		res := FrameResult{Skipped: true, State: s.det.State()}
		s.mu.Unlock()
		return res, nil
	}
	s.lastFace = now

	smoothed := s.window.Add(avg)
	s.lastEAR, s.lastSmooth = avg, smoothed

	dr := s.det.Process(smoothed, now)
	if !dr.ConfirmAt.IsZero() {
		s.scheduleLocked(&s.confirm, dr.ConfirmAt.Sub(now), s.onConfirmLocked)
	}
	res := FrameResult{EAR: avg, Smoothed: smoothed, State: dr.State, Skipped: dr.Skipped}
	if dr.Event != nil {
		s.hist.Record(*dr.Event)
		n.blinks = append(n.blinks, *dr.Event)
		ev := *dr.Event
		res.Blink = &ev
		slog.Debug("session: blink", "id", s.id, "ear", ev.EAR, "total", s.hist.Total())
	}
	s.mu.Unlock()

	s.notify(n)
	return res, nil
}

// Dropped returns how many frames were rejected with ErrBusy since the last
// reset.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

// Signal returns what the presenter should currently show.
func (s *Session) Signal() types.Signal { return s.trig.Signal() }

// Activations returns the activation log, newest first.
func (s *Session) Activations() []*alerts.Activation { return s.trig.Recent() }

// SetTarget changes the target blink rate at runtime. It takes effect at the
// next alert check.
func (s *Session) SetTarget(rate float64) error {
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return ErrInvalidTarget
	}
	s.trig.SetTarget(rate)
	slog.Info("session: target rate changed", "target", rate)
	return nil
}

// Apply hot-swaps every tunable from cfg without resetting the session.
// A runtime SetTarget is overwritten by the configured target.
func (s *Session) Apply(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.det.SetConfig(detectorConfig(cfg))
	s.window.Reconfigure(cfg.Smoothing.Window, smoothingMode(cfg))
	if cfg.Smoothing.PositionWindow != s.points.Size() {
		s.points = smoothing.NewPoints(cfg.Smoothing.PositionWindow)
	}
	s.hist.SetConfig(historyConfig(cfg))
	s.trig.SetConfig(alertConfig(cfg))

	oldPrune, oldCheck := s.pruneInterval, s.checkInterval
	s.applyIntervals(cfg)
	if s.running && (oldPrune != s.pruneInterval || oldCheck != s.checkInterval) {
		s.schedulePruneLocked()
		s.scheduleCheckLocked()
	}
	slog.Info("session: config applied",
		"preset", cfg.Preset,
		"close_threshold", cfg.Detector.CloseThreshold,
		"target_rate", cfg.Alert.TargetRate,
		"rate_source", s.rateSource,
	)
}

func (s *Session) applyIntervals(cfg *config.Config) {
	s.rateSource = RateSource(cfg.Alert.RateSource)
	if s.rateSource != RateAverage {
		s.rateSource = RateCurrent
	}
	s.pruneInterval = cfg.Rate.PruneInterval
	if s.pruneInterval <= 0 {
		s.pruneInterval = config.DefaultPruneInterval
	}
	s.checkInterval = cfg.Alert.CheckInterval
	if s.checkInterval <= 0 {
		s.checkInterval = config.DefaultCheckInterval
	}
}

// notify delivers n to observers. Must be called without the lock held.
func (s *Session) notify(n notes) {
	if len(n.blinks) == 0 && n.signal == nil {
		return
	}
	s.mu.Lock()
	obs := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range obs {
		if bo, ok := o.(BlinkObserver); ok {
			for _, ev := range n.blinks {
				bo.OnBlink(n.id, ev)
			}
		}
		if n.signal != nil {
			o.OnSignal(*n.signal)
		}
	}
}

package alerts

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blinkwatch/blinkwatch/pkg/types"
)

const (
	maxHistoryLen = 200

	DefaultTargetRate        = 15
	DefaultSustainedBelow    = 3 * time.Second
	DefaultStartupGrace      = 10 * time.Second
	DefaultPulseDuration     = 150 * time.Millisecond
	DefaultSustainedDuration = time.Second
)

// Config holds the trigger tunables.
type Config struct {
	TargetRate        float64
	SustainedBelow    time.Duration
	StartupGrace      time.Duration
	Effect            types.EffectKind
	PulseDuration     time.Duration
	SustainedDuration time.Duration
}

// DefaultConfig returns the tunables used when none are configured.
func DefaultConfig() Config {
	return Config{
		TargetRate:        DefaultTargetRate,
		SustainedBelow:    DefaultSustainedBelow,
		StartupGrace:      DefaultStartupGrace,
		Effect:            types.EffectPulse,
		PulseDuration:     DefaultPulseDuration,
		SustainedDuration: DefaultSustainedDuration,
	}
}

// EffectDuration is how long the configured effect stays visible.
func (c Config) EffectDuration() time.Duration {
	if c.Effect == types.EffectSustained {
		return c.SustainedDuration
	}
	return c.PulseDuration
}

func (c Config) kind() types.EffectKind {
	if c.Effect.Valid() {
		return c.Effect
	}
	return types.EffectPulse
}

// Activation records one period during which the effect was shown.
type Activation struct {
	ID        string           `json:"id"`
	Kind      types.EffectKind `json:"kind"`
	Rate      float64          `json:"rate"`
	Target    float64          `json:"target"`
	FiredAt   time.Time        `json:"fired_at"`
	ClearedAt *time.Time       `json:"cleared_at,omitempty"`
	Reason    string           `json:"reason,omitempty"` // "expired" | "recovered" | "grace" | "reset"
	State     string           `json:"state"`            // "active" | "cleared"
}

// Outcome describes the result of one Evaluate or Expire call.
type Outcome struct {
	State  types.AlertState
	Signal types.Signal
	// Changed reports whether the visible signal flipped.
	Changed bool
	// RevertAt is set when the trigger just became active.
	RevertAt time.Time
	// CheckAt is set when the trigger just became pending: the earliest time
	// a further Evaluate could activate it.
	CheckAt time.Time
	// Activation is a copy of the activation opened or closed by this call.
	Activation *Activation
}

// Trigger is the alert state machine.
type Trigger struct {
	mu           sync.Mutex
	cfg          Config
	state        types.AlertState
	pendingSince time.Time
	revertAt     time.Time
	current      *Activation
	history      []*Activation
	activations  uint64
}

// New creates a Trigger in the normal state.
func New(cfg Config) *Trigger {
	return &Trigger{cfg: cfg, state: types.AlertNormal}
}

// Config returns the active tunables.
func (t *Trigger) Config() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// SetConfig replaces the tunables. The current state is kept; a changed
// effect duration applies from the next activation.
func (t *Trigger) SetConfig(cfg Config) {
	t.mu.Lock()
	t.cfg = cfg
	t.mu.Unlock()
}

// SetTarget changes only the target rate.
func (t *Trigger) SetTarget(rate float64) {
	t.mu.Lock()
	t.cfg.TargetRate = rate
	t.mu.Unlock()
}

// State returns the current state and, when pending, the time it started.
func (t *Trigger) State() (types.AlertState, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.pendingSince
}

// Signal returns what the presenter should currently show.
func (t *Trigger) Signal() types.Signal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.signalLocked()
}

// Activations returns the number of activations since creation or Reset.
func (t *Trigger) Activations() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activations
}

// Evaluate runs one periodic check against rate.
func (t *Trigger) Evaluate(now time.Time, sessionElapsed time.Duration, rate float64) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasVisible := t.state == types.AlertActive
	var out Outcome

	// An auto-revert that was not delivered in time is applied first.
	expired := false
	if t.state == types.AlertActive && !t.revertAt.IsZero() && !now.Before(t.revertAt) {
		out.Activation = t.expireLocked(t.revertAt)
		expired = true
	}

	switch {
	case sessionElapsed < t.cfg.StartupGrace:
		if a := t.normalLocked(now, "grace"); a != nil {
			out.Activation = a
		}

	case rate < t.cfg.TargetRate:
		switch t.state {
		case types.AlertNormal:
			t.state = types.AlertPending
			t.pendingSince = now
			out.CheckAt = now.Add(t.cfg.SustainedBelow)
			slog.Debug("alerts: rate below target", "rate", rate, "target", t.cfg.TargetRate)
		case types.AlertPending:
			if now.Sub(t.pendingSince) >= t.cfg.SustainedBelow {
				out.Activation = t.activateLocked(now, rate)
				out.RevertAt = t.revertAt
			}
		}

	default:
		if a := t.normalLocked(now, "recovered"); a != nil {
			out.Activation = a
		}
	}

	// Re-activation after a late revert needs its own follow-up check.
	if expired && t.state == types.AlertPending && now.Sub(t.pendingSince) < t.cfg.SustainedBelow {
		out.CheckAt = t.pendingSince.Add(t.cfg.SustainedBelow)
	}
	out.State = t.state
	out.Signal = t.signalLocked()
	out.Changed = wasVisible != out.Signal.Visible
	return out
}

// Expire applies the auto-revert: an active trigger goes back to pending with
// pendingSince = now. It is a no-op in any other state.
func (t *Trigger) Expire(now time.Time) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out Outcome
	if t.state == types.AlertActive {
		out.Activation = t.expireLocked(now)
		out.Changed = true
		out.CheckAt = now.Add(t.cfg.SustainedBelow)
	}
	out.State = t.state
	out.Signal = t.signalLocked()
	return out
}

// Reset returns to normal and clears the activation log.
func (t *Trigger) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = types.AlertNormal
	t.pendingSince = time.Time{}
	t.revertAt = time.Time{}
	t.current = nil
	t.history = nil
	t.activations = 0
}

// Recent returns copies of the open activation and the logged ones, newest
// first.
func (t *Trigger) Recent() []*Activation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Activation, 0, len(t.history)+1)
	if t.current != nil {
		cp := *t.current
		out = append(out, &cp)
	}
	for i := len(t.history) - 1; i >= 0; i-- {
		cp := *t.history[i]
		out = append(out, &cp)
	}
	return out
}

func (t *Trigger) signalLocked() types.Signal {
	return types.Signal{
		Visible: t.state == types.AlertActive,
		Kind:    t.cfg.kind(),
	}
}

func (t *Trigger) activateLocked(now time.Time, rate float64) *Activation {
	t.state = types.AlertActive
	t.revertAt = now.Add(t.cfg.EffectDuration())
	t.activations++
	t.current = &Activation{
		ID:      uuid.NewString(),
		Kind:    t.cfg.kind(),
		Rate:    rate,
		Target:  t.cfg.TargetRate,
		FiredAt: now,
		State:   "active",
	}
	slog.Warn("alerts: effect activated",
		"rate", rate,
		"target", t.cfg.TargetRate,
		"kind", t.current.Kind,
		"revert_at", t.revertAt,
	)
	cp := *t.current
	return &cp
}

func (t *Trigger) expireLocked(at time.Time) *Activation {
	t.state = types.AlertPending
	t.pendingSince = at
	t.revertAt = time.Time{}
	return t.closeLocked(at, "expired")
}

// normalLocked moves to normal, closing any open activation.
func (t *Trigger) normalLocked(now time.Time, reason string) *Activation {
	if t.state == types.AlertNormal {
		return nil
	}
	if t.state == types.AlertActive {
		slog.Info("alerts: effect cleared", "reason", reason)
	}
	t.state = types.AlertNormal
	t.pendingSince = time.Time{}
	t.revertAt = time.Time{}
	return t.closeLocked(now, reason)
}

func (t *Trigger) closeLocked(at time.Time, reason string) *Activation {
	a := t.current
	if a == nil {
		return nil
	}
	t.current = nil
	cleared := at
	a.ClearedAt = &cleared
	a.Reason = reason
	a.State = "cleared"

	t.history = append(t.history, a)
	if len(t.history) > maxHistoryLen {
		t.history = t.history[len(t.history)-maxHistoryLen:]
	}
	cp := *a
	return &cp
}

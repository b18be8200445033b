package session

import (
	"log/slog"
	"time"

	"github.com/blinkwatch/blinkwatch/monitor/internal/clock"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// task is a session-owned timer handle. seq changes whenever the task is
// cancelled or rescheduled, so a callback that already left the clock but
// lost the race for the lock sees a stale seq and does nothing.
type task struct {
	t   clock.Timer
	seq uint64
}

func (tk *task) cancel() {
	if tk.t != nil {
		tk.t.Stop()
		tk.t = nil
	}
	tk.seq++
}

// scheduleLocked (re)arms tk to run fn under the lock after d.
func (s *Session) scheduleLocked(tk *task, d time.Duration, fn func(now time.Time) notes) {
	tk.cancel()
	seq, gen := tk.seq, s.gen
	tk.t = s.clk.AfterFunc(d, func() {
		s.mu.Lock()
		if gen != s.gen || seq != tk.seq || !s.running {
			s.mu.Unlock()
			return
		}
		tk.t = nil
		n := fn(s.clk.Now())
		s.mu.Unlock()
		s.notify(n)
	})
}

func (s *Session) cancelAllLocked() {
	s.prune.cancel()
	s.check.cancel()
	s.followUp.cancel()
	s.confirm.cancel()
	s.revert.cancel()
}

func (s *Session) schedulePruneLocked() {
	s.scheduleLocked(&s.prune, s.pruneInterval, s.onPruneLocked)
}

func (s *Session) scheduleCheckLocked() {
	s.scheduleLocked(&s.check, s.checkInterval, s.onCheckLocked)
}

func (s *Session) onPruneLocked(now time.Time) notes {
	if removed := s.hist.Prune(now); removed > 0 {
		slog.Debug("session: pruned blink history", "removed", removed, "recent", s.hist.Recent())
	}
	s.schedulePruneLocked()
	return notes{id: s.id}
}

func (s *Session) onCheckLocked(now time.Time) notes {
	n := s.evaluateLocked(now)
	s.scheduleCheckLocked()
	return n
}

func (s *Session) onFollowUpLocked(now time.Time) notes {
	return s.evaluateLocked(now)
}

func (s *Session) onConfirmLocked(now time.Time) notes {
	n := notes{id: s.id}
	if ev := s.det.Confirm(now); ev != nil {
		s.hist.Record(*ev)
		n.blinks = append(n.blinks, *ev)
		slog.Debug("session: blink confirmed", "id", s.id, "ear", ev.EAR)
	}
	return n
}

func (s *Session) onRevertLocked(now time.Time) notes {
	out := s.trig.Expire(now)
	if !out.CheckAt.IsZero() {
		s.scheduleLocked(&s.followUp, out.CheckAt.Sub(now), s.onFollowUpLocked)
	}
	n := notes{id: s.id}
	if out.Changed {
		n.signal = s.changeLocked(out.Signal, out.State, s.rateLocked(now), now)
	}
	return n
}

// evaluateLocked runs one alert check and arms the timers it asks for.
func (s *Session) evaluateLocked(now time.Time) notes {
	rate := s.rateLocked(now)
	out := s.trig.Evaluate(now, s.hist.SessionDuration(now), rate)

	switch out.State {
	case types.AlertNormal:
		s.followUp.cancel()
		s.revert.cancel()
	case types.AlertPending:
		if !out.CheckAt.IsZero() {
			s.scheduleLocked(&s.followUp, out.CheckAt.Sub(now), s.onFollowUpLocked)
		}
	}
	if !out.RevertAt.IsZero() {
		s.followUp.cancel()
		s.scheduleLocked(&s.revert, out.RevertAt.Sub(now), s.onRevertLocked)
	}

	slog.Debug("session: alert check",
		"rate", rate,
		"source", s.rateSource,
		"state", out.State,
	)

	n := notes{id: s.id}
	if out.Changed {
		n.signal = s.changeLocked(out.Signal, out.State, rate, now)
	}
	return n
}

func (s *Session) rateLocked(now time.Time) float64 {
	if s.rateSource == RateAverage {
		return s.hist.AverageRate(now)
	}
	return float64(s.hist.CurrentRate(now))
}

func (s *Session) changeLocked(sig types.Signal, state types.AlertState, rate float64, now time.Time) *types.SignalChange {
	return &types.SignalChange{
		SessionID: s.id,
		Signal:    sig,
		State:     state,
		Rate:      rate,
		Target:    s.trig.Config().TargetRate,
		At:        now,
	}
}

package session

import (
	"time"

	"github.com/blinkwatch/blinkwatch/monitor/internal/history"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// Stats is a point-in-time view of the session for the API, the WebSocket
// hub and the metrics endpoint.
type Stats struct {
	SessionID       string           `json:"session_id"`
	Running         bool             `json:"running"`
	StartedAt       time.Time        `json:"started_at"`
	SessionDuration string           `json:"session_duration"`
	SessionSeconds  float64          `json:"session_seconds"`
	CurrentRate     int              `json:"current_rate"`
	AverageRate     float64          `json:"average_rate"`
	TotalBlinks     int              `json:"total_blinks"`
	TargetRate      float64          `json:"target_rate"`
	RateSource      RateSource       `json:"rate_source"`
	EyeState        types.EyeState   `json:"eye_state"`
	LastEAR         float64          `json:"last_ear"`
	SmoothedEAR     float64          `json:"smoothed_ear"`
	AlertState      types.AlertState `json:"alert_state"`
	PendingSince    *time.Time       `json:"pending_since,omitempty"`
	Signal          types.Signal     `json:"signal"`
	Frames          uint64           `json:"frames"`
	NoFace          uint64           `json:"no_face_frames"`
	Missing         uint64           `json:"missing_landmark_frames"`
	Dropped         uint64           `json:"dropped_frames"`
	Discarded       uint64           `json:"discarded_blinks"`
	Clamped         uint64           `json:"clamped_timestamps"`
	Activations     uint64           `json:"activations"`
	LastFrameAt     *time.Time       `json:"last_frame_at,omitempty"`
	LastFaceAt      *time.Time       `json:"last_face_at,omitempty"`
	StartupGrace    time.Duration    `json:"-"`
	Now             time.Time        `json:"-"`
}

// Snapshot returns the current Stats.
func (s *Session) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	dur := s.hist.SessionDuration(now)
	state, since := s.trig.State()
	tcfg := s.trig.Config()

	st := Stats{
		SessionID:       s.id,
		Running:         s.running,
		StartedAt:       s.hist.Start(),
		SessionDuration: history.FormatDuration(dur),
		SessionSeconds:  dur.Seconds(),
		CurrentRate:     s.hist.CurrentRate(now),
		AverageRate:     s.hist.AverageRate(now),
		TotalBlinks:     s.hist.Total(),
		TargetRate:      tcfg.TargetRate,
		RateSource:      s.rateSource,
		EyeState:        s.det.State(),
		LastEAR:         s.lastEAR,
		SmoothedEAR:     s.lastSmooth,
		AlertState:      state,
		Signal:          s.trig.Signal(),
		Frames:          s.frames,
		NoFace:          s.noFace,
		Missing:         s.missing,
		Dropped:         s.dropped.Load(),
		Discarded:       s.det.Stats().Discarded,
		Clamped:         s.hist.Clamped(),
		Activations:     s.trig.Activations(),
		StartupGrace:    tcfg.StartupGrace,
		Now:             now,
	}
	if state == types.AlertPending {
		st.PendingSince = &since
	}
	if !s.lastFrame.IsZero() {
		t := s.lastFrame
		st.LastFrameAt = &t
	}
	if !s.lastFace.IsZero() {
		t := s.lastFace
		st.LastFaceAt = &t
	}
	return st
}

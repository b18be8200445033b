package api

import (
	"fmt"
	"sort"
	"time"

	"github.com/blinkwatch/blinkwatch/monitor/internal/session"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// noFaceAfter is how long frames may arrive without a usable face before the
// no_face hint is raised.
const noFaceAfter = 5 * time.Second

// DiagnosticHint is one human-readable insight about the session.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional number tied to the hint (e.g. blinks per minute).
	Value *float64 `json:"value,omitempty"`
}

var levelOrder = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints from a stats snapshot, critical first.
func computeDiagnostics(st session.Stats) []DiagnosticHint {
	hints := make([]DiagnosticHint, 0, 4)

	if !st.Running {
		return append(hints, DiagnosticHint{
			Key:   "stopped",
			Level: "info",
			Title: "Not monitoring",
			Detail: "The session is stopped, so frames are rejected and no alerts are evaluated. " +
				"Start or reset the session to begin monitoring.",
		})
	}

	if st.LastFrameAt == nil {
		return append(hints, DiagnosticHint{
			Key:   "no_frames",
			Level: "info",
			Title: "Waiting for frames",
			Detail: "No landmark frames have arrived yet. Send frames to POST /api/v1/frames " +
				"or stream them over /ws/landmarks.",
		})
	}

	if st.LastFaceAt == nil || st.Now.Sub(*st.LastFaceAt) > noFaceAfter {
		detail := "Frames are arriving but none of the recent ones held a usable pair of eyes. " +
			"Blinks cannot be counted until a face is visible again, so the blink rate will drift down."
		hints = append(hints, DiagnosticHint{
			Key:    "no_face",
			Level:  "warning",
			Title:  "No face detected",
			Detail: detail,
		})
	}

	warming := time.Duration(st.SessionSeconds*float64(time.Second)) < st.StartupGrace
	if warming {
		left := st.StartupGrace - time.Duration(st.SessionSeconds*float64(time.Second))
		hints = append(hints, DiagnosticHint{
			Key:   "warming_up",
			Level: "info",
			Title: "Warming up",
			Detail: fmt.Sprintf("Alerts are held back for the first %s of a session while the blink rate settles. "+
				"About %.0f seconds to go.", st.StartupGrace, left.Seconds()),
		})
	}

	rate := float64(st.CurrentRate)
	if st.RateSource == session.RateAverage {
		rate = st.AverageRate
	}
	switch {
	case st.AlertState == types.AlertActive:
		v := rate
		hints = append(hints, DiagnosticHint{
			Key:   "effect_active",
			Level: "critical",
			Title: "Blink reminder showing",
			Detail: fmt.Sprintf("The blink rate has stayed at %.0f per minute, below the target of %.0f, "+
				"long enough to show the %s effect.", rate, st.TargetRate, st.Signal.Kind),
			Value: &v,
		})
	case !warming && rate < st.TargetRate:
		v := rate
		hints = append(hints, DiagnosticHint{
			Key:   "low_rate",
			Level: "warning",
			Title: fmt.Sprintf("%.0f blinks/min", rate),
			Detail: fmt.Sprintf("The blink rate is %.0f per minute against a target of %.0f. "+
				"If it stays low the reminder effect will be shown.", rate, st.TargetRate),
			Value: &v,
		})
	}

	if st.Dropped > 0 {
		v := float64(st.Dropped)
		level := "info"
		if total := st.Frames + st.Dropped; total > 0 && float64(st.Dropped)/float64(total) > 0.1 {
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "dropped_frames",
			Level: level,
			Title: fmt.Sprintf("%d frames dropped", st.Dropped),
			Detail: "Some frames arrived while the previous one was still being processed and were dropped. " +
				"Lower the capture rate if this keeps growing.",
			Value: &v,
		})
	}

	if st.Discarded > 0 {
		v := float64(st.Discarded)
		hints = append(hints, DiagnosticHint{
			Key:   "noisy_closures",
			Level: "info",
			Title: fmt.Sprintf("%d closures ignored", st.Discarded),
			Detail: "Short dips in eye openness reopened before the confirmation delay and were " +
				"treated as landmark noise rather than blinks.",
			Value: &v,
		})
	}

	if len(hints) == 0 {
		v := rate
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "Blink rate healthy",
			Detail: fmt.Sprintf("%.0f blinks per minute, at or above the target of %.0f.", rate, st.TargetRate),
			Value:  &v,
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelOrder[hints[i].Level] < levelOrder[hints[j].Level]
	})
	return hints
}

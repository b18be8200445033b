package types

import (
	"math"
	"time"
)

// EyePoints is the number of landmarks that describe one eye.
const EyePoints = 6

// FaceMeshPoints is the size of a full MediaPipe face mesh (without irises).
const FaceMeshPoints = 468

// Canonical positions inside an EyeLandmarks slice.
const (
	OuterCorner = 0
	UpperOuter  = 1
	UpperInner  = 2
	InnerCorner = 3
	LowerInner  = 4
	LowerOuter  = 5
)

// Face mesh indices for each eye, in canonical order.
var (
	LeftEyeMesh  = [EyePoints]int{362, 385, 387, 263, 373, 380}
	RightEyeMesh = [EyePoints]int{33, 160, 158, 133, 153, 144}
)

// Landmark is one detected point, normalized to the source frame (0-1).
// Z is optional and zero when the detector does not report depth.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Valid reports whether every coordinate is a finite number.
func (l Landmark) Valid() bool {
	return finite(l.X) && finite(l.Y) && finite(l.Z)
}

// EyeLandmarks holds the six points of one eye in canonical order:
// outer corner, upper outer, upper inner, inner corner, lower inner, lower outer.
type EyeLandmarks []Landmark

// Frame is the landmark output of one processed camera frame.
//
// Either Mesh carries a full face mesh and the eyes are extracted from it, or
// Left and Right carry the eye points directly. A frame with neither means no
// face was found.
type Frame struct {
	Left  EyeLandmarks `json:"left,omitempty"`
	Right EyeLandmarks `json:"right,omitempty"`
	Mesh  []Landmark   `json:"mesh,omitempty"`
}

// HasFace reports whether the frame carries any landmark data at all.
func (f Frame) HasFace() bool {
	return len(f.Mesh) > 0 || len(f.Left) > 0 || len(f.Right) > 0
}

// EyeState is the detector's view of the eyes.
type EyeState string

const (
	EyeOpen   EyeState = "open"
	EyeClosed EyeState = "closed"
)

// BlinkEvent is emitted once per accepted open -> closed transition.
type BlinkEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EAR       float64   `json:"ear"`
}

// AlertState is the state of the low-rate alert trigger.
type AlertState string

const (
	AlertNormal  AlertState = "normal"
	AlertPending AlertState = "pending"
	AlertActive  AlertState = "active"
)

// EffectKind selects how the presenter surfaces the corrective effect.
type EffectKind string

const (
	// EffectPulse is a short flash.
	EffectPulse EffectKind = "pulse"
	// EffectSustained is a longer cue such as a blur.
	EffectSustained EffectKind = "sustained"
)

// Valid reports whether k is a known effect kind.
func (k EffectKind) Valid() bool {
	return k == EffectPulse || k == EffectSustained
}

// Signal is what the presenter observes: whether the effect is shown and which.
type Signal struct {
	Visible bool       `json:"visible"`
	Kind    EffectKind `json:"effect_kind"`
}

// SignalChange is published whenever the visible signal flips.
type SignalChange struct {
	SessionID string     `json:"session_id"`
	Signal    Signal     `json:"signal"`
	State     AlertState `json:"state"`
	Rate      float64    `json:"rate"`
	Target    float64    `json:"target"`
	At        time.Time  `json:"at"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

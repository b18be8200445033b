package geometry

import (
	"math"

	"github.com/blinkwatch/blinkwatch/pkg/types"
)

// SentinelOpen is returned for eyes that cannot be measured.
const SentinelOpen = 1.0

// minHorizontal is the corner distance below which an eye is degenerate.
const minHorizontal = 1e-9

// Distance returns the Euclidean distance between a and b over x, y and z.
func Distance(a, b types.Landmark) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Valid reports whether eye holds exactly six finite points.
func Valid(eye types.EyeLandmarks) bool {
	if len(eye) != types.EyePoints {
		return false
	}
	for _, p := range eye {
		if !p.Valid() {
			return false
		}
	}
	return true
}

// EAR computes the eye aspect ratio of one eye.
// Missing points or a near-zero horizontal distance return SentinelOpen.
func EAR(eye types.EyeLandmarks) float64 {
	if !Valid(eye) {
		return SentinelOpen
	}
	horizontal := Distance(eye[types.OuterCorner], eye[types.InnerCorner])
	if horizontal < minHorizontal {
		return SentinelOpen
	}
	verticalA := Distance(eye[types.UpperOuter], eye[types.LowerOuter])
	verticalB := Distance(eye[types.UpperInner], eye[types.LowerInner])
	return (verticalA + verticalB) / (2 * horizontal)
}

// AverageEAR returns the mean EAR of both eyes. ok is false when either eye
// is missing, in which case the frame should be skipped.
func AverageEAR(left, right types.EyeLandmarks) (avg float64, ok bool) {
	if !Valid(left) || !Valid(right) {
		return 0, false
	}
	return (EAR(left) + EAR(right)) / 2, true
}

// EyesFromFrame extracts both eyes from f. A full face mesh takes precedence
// over the direct eye fields. ok is false when the frame has no usable face.
func EyesFromFrame(f types.Frame) (left, right types.EyeLandmarks, ok bool) {
	if len(f.Mesh) >= types.FaceMeshPoints {
		left = pick(f.Mesh, types.LeftEyeMesh)
		right = pick(f.Mesh, types.RightEyeMesh)
	} else {
		left, right = f.Left, f.Right
	}
	if !Valid(left) || !Valid(right) {
		return nil, nil, false
	}
	return left, right, true
}

func pick(mesh []types.Landmark, idx [types.EyePoints]int) types.EyeLandmarks {
	eye := make(types.EyeLandmarks, types.EyePoints)
	for i, j := range idx {
		eye[i] = mesh[j]
	}
	return eye
}

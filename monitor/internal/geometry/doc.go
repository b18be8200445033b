// Package geometry turns eye landmarks into the Eye Aspect Ratio (EAR), the
// scalar openness measure the blink detector runs on.
//
// For the six canonical points p0..p5 of one eye:
//
//	EAR = (|p1-p5| + |p2-p4|) / (2 * |p0-p3|)
//
// Larger values mean a more open eye; typical open eyes sit around 0.25-0.35
// and closed eyes below 0.15.
//
// A degenerate eye (corners on top of each other) or an eye with missing or
// non-finite points yields SentinelOpen instead of an error, so a single bad
// frame reads as "open" and can never produce a blink on its own.
//
// EyesFromFrame extracts the two eyes from a Frame, either from a full face
// mesh (LeftEyeMesh / RightEyeMesh indices) or from the direct eye fields.
package geometry

// Package detector implements the blink state machine that turns a smoothed
// EAR signal into discrete BlinkEvents.
//
// States: open (initial) and closed.
//
//   - open -> closed when the EAR stays below CloseThreshold for
//     ConsecutiveFrames frames and at least MinBlinkInterval has passed since
//     the last emitted blink (debounce). With ConfirmationDelay == 0 the blink
//     is emitted on that frame. Otherwise the close is provisional: Process
//     returns the confirmation deadline and Confirm emits the blink only if
//     the eye is still closed and below threshold by then.
//   - closed -> open when the EAR reaches CloseThreshold + ReopenBuffer
//     (hysteresis). Reopening never emits.
//
// Invalid samples (NaN, Inf, negative) are skipped without touching state.
// Negative elapsed intervals from a regressing clock count as zero.
//
// Detector is not safe for concurrent use; the owning session serializes
// access. Time is always passed in explicitly so tests control the clock.
package detector

// Package session ties the blink pipeline together for one monitored subject.
//
// A Session owns, per subject and never globally: the landmark position
// smoother, the EAR window, the blink detector, the blink history and the
// alert trigger. ProcessFrame runs one frame through
//
//	frame -> position smoothing -> EAR -> EAR window -> detector -> history
//
// and the session's own timers drive pruning, the periodic alert check, the
// follow-up check when the trigger turns pending, detector confirmations and
// the effect auto-revert.
//
// Concurrency: frames are guarded by a single in-flight flag, so an
// overlapping ProcessFrame fails fast with ErrBusy and is counted as dropped.
// All state changes happen under one mutex, so a recorded blink is always
// visible to the next prune or alert check. Timers are created through a
// clock.Clock; Stop and Reset cancel every one of them and bump a generation
// counter so a callback that already fired becomes a no-op. Observers are
// called after the mutex is released.
package session

// Package clock abstracts wall time and delayed callbacks so the monitoring
// session can own its timers and tests can drive them deterministically.
//
// Real wraps time.Now and time.AfterFunc. Manual is a hand-advanced clock:
// Advance moves time forward and runs every callback whose deadline has been
// reached, in deadline order, on the calling goroutine.
package clock

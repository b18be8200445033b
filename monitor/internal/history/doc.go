// Package history keeps the blink log of one monitoring session and derives
// blink-rate metrics from it.
//
// Two views are kept:
//   - the total log, unbounded for the session, which drives Total and the
//     session-average rate;
//   - the recent log, pruned to a sliding window (60s by default), which
//     drives the current rate.
//
// Prune only ever touches the recent log. CurrentRate counts entries inside
// (now-Window, now] at query time, so it is correct no matter how often Prune
// runs; Prune just bounds memory.
//
// AverageRate divides Total by the elapsed session minutes. While the session
// is younger than AverageGuard it falls back to CurrentRate, so the first
// seconds of a session cannot report absurd ratios.
//
// History is not safe for concurrent use; the owning session serializes
// access. Every method takes now explicitly so tests control the clock.
package history

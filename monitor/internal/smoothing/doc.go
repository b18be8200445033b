// Package smoothing reduces frame-to-frame jitter before blink detection.
//
// Window is a fixed-capacity FIFO over the most recent averaged EAR samples.
// Add inserts a sample (evicting the oldest once full) and returns the
// smoothed value: the median by default, which shrugs off single-frame
// spikes, or the plain mean. The buffer never holds more than its capacity.
//
// Points smooths landmark positions per landmark index. Its ring buffers live
// in one arena owned by the caller (one per monitoring session), so two
// sessions never share history.
package smoothing

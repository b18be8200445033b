// Package config loads the blinkwatch configuration from config.yaml.
//
// Sections:
//   - preset     named tuning profile: default | sensitive | strict
//   - detector   blink state machine thresholds and debounce
//   - smoothing  EAR window size/mode and optional landmark position smoothing
//   - rate       sliding window, prune cadence and first-minute average guard
//   - alert      target rate, delays, rate source and effect kind/durations
//   - server     HTTP port, WebSocket broadcast cadence and API-key auth
//   - presenter  webhook targets for signal changes
//   - log        slog level and format
//
// Load(path) starts from the defaults, overlays the selected preset, then
// unmarshals the file so explicit values win over the preset, and finally
// validates. Watch re-runs Load whenever the file changes.
package config

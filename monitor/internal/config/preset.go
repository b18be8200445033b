package config

import (
	"fmt"
	"time"
)

// Preset names.
const (
	PresetDefault   = "default"
	PresetSensitive = "sensitive"
	PresetStrict    = "strict"
)

// applyPreset overlays the named profile on cfg. Presets change numbers only.
func applyPreset(cfg *Config, name string) error {
	switch name {
	case PresetDefault, "":
		cfg.Preset = PresetDefault

	case PresetSensitive:
		// Catches shallow or fast blinks; more prone to noise.
		cfg.Preset = PresetSensitive
		cfg.Detector.CloseThreshold = 0.23
		cfg.Detector.MinBlinkInterval = 150 * time.Millisecond
		cfg.Smoothing.Window = 2

	case PresetStrict:
		// Requires a deeper, confirmed closure.
		cfg.Preset = PresetStrict
		cfg.Detector.CloseThreshold = 0.19
		cfg.Detector.ReopenBuffer = 0.03
		cfg.Detector.MinBlinkInterval = 250 * time.Millisecond
		cfg.Detector.ConfirmationDelay = 50 * time.Millisecond
		cfg.Detector.ConsecutiveFrames = 2
		cfg.Smoothing.Window = 5

	default:
		return fmt.Errorf("preset %q unknown: want default|sensitive|strict", name)
	}
	return nil
}

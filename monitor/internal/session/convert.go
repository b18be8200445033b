package session

import (
	"github.com/blinkwatch/blinkwatch/monitor/internal/alerts"
	"github.com/blinkwatch/blinkwatch/monitor/internal/config"
	"github.com/blinkwatch/blinkwatch/monitor/internal/detector"
	"github.com/blinkwatch/blinkwatch/monitor/internal/history"
	"github.com/blinkwatch/blinkwatch/monitor/internal/smoothing"
	"github.com/blinkwatch/blinkwatch/pkg/types"
)

func detectorConfig(c *config.Config) detector.Config {
	return detector.Config{
		CloseThreshold:    c.Detector.CloseThreshold,
		ReopenBuffer:      c.Detector.ReopenBuffer,
		MinBlinkInterval:  c.Detector.MinBlinkInterval,
		ConfirmationDelay: c.Detector.ConfirmationDelay,
		ConsecutiveFrames: c.Detector.ConsecutiveFrames,
	}
}

func historyConfig(c *config.Config) history.Config {
	return history.Config{
		Window:       c.Rate.Window,
		AverageGuard: c.Rate.AverageGuard,
	}
}

func alertConfig(c *config.Config) alerts.Config {
	return alerts.Config{
		TargetRate:        c.Alert.TargetRate,
		SustainedBelow:    c.Alert.SustainedBelow,
		StartupGrace:      c.Alert.StartupGrace,
		Effect:            types.EffectKind(c.Alert.Effect),
		PulseDuration:     c.Alert.PulseDuration,
		SustainedDuration: c.Alert.SustainedDuration,
	}
}

// smoothingMode falls back to median for an unknown mode; config validation
// rejects those before they get here.
func smoothingMode(c *config.Config) smoothing.Mode {
	m, err := smoothing.ParseMode(c.Smoothing.Mode)
	if err != nil {
		return smoothing.ModeMedian
	}
	return m
}

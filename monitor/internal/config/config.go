package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultHTTPPort          = 8080
	DefaultBroadcastInterval = time.Second
	DefaultCloseThreshold    = 0.21
	DefaultReopenBuffer      = 0.02
	DefaultMinBlinkInterval  = 200 * time.Millisecond
	DefaultSmoothingWindow   = 3
	DefaultRateWindow        = 60 * time.Second
	DefaultPruneInterval     = time.Second
	DefaultAverageGuard      = 60 * time.Second
	DefaultTargetRate        = 15
	DefaultSustainedBelow    = 3 * time.Second
	DefaultStartupGrace      = 10 * time.Second
	DefaultCheckInterval     = 10 * time.Second
	DefaultPulseDuration     = 150 * time.Millisecond
	DefaultSustainedDuration = time.Second
	DefaultBufferSize        = 64
)

// Config is the full blinkwatch configuration.
type Config struct {
	// Preset selects a named tuning profile applied before the file's own
	// values: default | sensitive | strict.
	Preset    string          `yaml:"preset"`
	Detector  DetectorConfig  `yaml:"detector"`
	Smoothing SmoothingConfig `yaml:"smoothing"`
	Rate      RateConfig      `yaml:"rate"`
	Alert     AlertConfig     `yaml:"alert"`
	Server    ServerConfig    `yaml:"server"`
	Presenter PresenterConfig `yaml:"presenter"`
	Log       LogConfig       `yaml:"log"`
}

// DetectorConfig tunes the blink state machine.
type DetectorConfig struct {
	// CloseThreshold is the EAR below which the eye counts as closed.
	CloseThreshold float64 `yaml:"close_threshold"`

	// ReopenBuffer is added to CloseThreshold to get the reopen level.
	ReopenBuffer float64 `yaml:"reopen_buffer"`

	// MinBlinkInterval is the shortest accepted gap between two blinks.
	MinBlinkInterval time.Duration `yaml:"min_blink_interval"`

	// ConfirmationDelay holds a provisional close before it is emitted.
	// Zero emits immediately.
	ConfirmationDelay time.Duration `yaml:"confirmation_delay"`

	// ConsecutiveFrames is how many sub-threshold frames close the eye.
	ConsecutiveFrames int `yaml:"consecutive_frames"`
}

// SmoothingConfig tunes the EAR window and landmark position smoothing.
type SmoothingConfig struct {
	Window int `yaml:"window"`

	// Mode is one of: median | mean.
	Mode string `yaml:"mode"`

	// PositionWindow averages each landmark over this many frames; 0 disables.
	PositionWindow int `yaml:"position_window"`
}

// RateConfig tunes the blink history.
type RateConfig struct {
	Window        time.Duration `yaml:"window"`
	PruneInterval time.Duration `yaml:"prune_interval"`

	// AverageGuard is the session age below which the average rate falls
	// back to the current rate.
	AverageGuard time.Duration `yaml:"average_guard"`
}

// AlertConfig tunes the low-rate trigger.
type AlertConfig struct {
	// TargetRate is the expected blinks per minute.
	TargetRate     float64       `yaml:"target_rate"`
	SustainedBelow time.Duration `yaml:"sustained_below"`
	StartupGrace   time.Duration `yaml:"startup_grace"`
	CheckInterval  time.Duration `yaml:"check_interval"`

	// RateSource is one of: current | average.
	RateSource string `yaml:"rate_source"`

	// Effect is one of: pulse | sustained.
	Effect            string        `yaml:"effect"`
	PulseDuration     time.Duration `yaml:"pulse_duration"`
	SustainedDuration time.Duration `yaml:"sustained_duration"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port for the REST API, ingest and WebSocket hub.
	HTTPPort int `yaml:"http_port"`

	// BroadcastInterval is how often stats are pushed to WebSocket clients.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// PresenterConfig lists webhook targets notified on signal changes.
type PresenterConfig struct {
	Webhooks   []WebhookConfig `yaml:"webhooks"`
	BufferSize int             `yaml:"buffer_size"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes: defaults, then the preset, then the
// document itself, then validation.
func Parse(data []byte) (*Config, error) {
	var probe struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg := Defaults()
	if err := applyPreset(cfg, probe.Preset); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Preset: PresetDefault,
		Detector: DetectorConfig{
			CloseThreshold:    DefaultCloseThreshold,
			ReopenBuffer:      DefaultReopenBuffer,
			MinBlinkInterval:  DefaultMinBlinkInterval,
			ConsecutiveFrames: 1,
		},
		Smoothing: SmoothingConfig{
			Window: DefaultSmoothingWindow,
			Mode:   "median",
		},
		Rate: RateConfig{
			Window:        DefaultRateWindow,
			PruneInterval: DefaultPruneInterval,
			AverageGuard:  DefaultAverageGuard,
		},
		Alert: AlertConfig{
			TargetRate:        DefaultTargetRate,
			SustainedBelow:    DefaultSustainedBelow,
			StartupGrace:      DefaultStartupGrace,
			CheckInterval:     DefaultCheckInterval,
			RateSource:        "current",
			Effect:            "pulse",
			PulseDuration:     DefaultPulseDuration,
			SustainedDuration: DefaultSustainedDuration,
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			BroadcastInterval: DefaultBroadcastInterval,
			Auth:              AuthConfig{Mode: "none"},
		},
		Presenter: PresenterConfig{
			BufferSize: DefaultBufferSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// validate checks structural constraints on the parsed configuration.
// Tunables are checked only for non-negativity; they are not cross-checked.
func validate(cfg *Config) error {
	d := cfg.Detector
	if d.CloseThreshold < 0 {
		return fmt.Errorf("detector.close_threshold must not be negative")
	}
	if d.ReopenBuffer < 0 {
		return fmt.Errorf("detector.reopen_buffer must not be negative")
	}
	if d.MinBlinkInterval < 0 {
		return fmt.Errorf("detector.min_blink_interval must not be negative")
	}
	if d.ConfirmationDelay < 0 {
		return fmt.Errorf("detector.confirmation_delay must not be negative")
	}
	if d.ConsecutiveFrames < 0 {
		return fmt.Errorf("detector.consecutive_frames must not be negative")
	}

	s := cfg.Smoothing
	if s.Window < 0 {
		return fmt.Errorf("smoothing.window must not be negative")
	}
	switch s.Mode {
	case "median", "mean", "":
	default:
		return fmt.Errorf("smoothing.mode %q unknown: want median|mean", s.Mode)
	}
	if s.PositionWindow < 0 {
		return fmt.Errorf("smoothing.position_window must not be negative")
	}

	r := cfg.Rate
	if r.Window <= 0 {
		return fmt.Errorf("rate.window must be positive")
	}
	if r.PruneInterval <= 0 {
		return fmt.Errorf("rate.prune_interval must be positive")
	}
	if r.AverageGuard < 0 {
		return fmt.Errorf("rate.average_guard must not be negative")
	}

	a := cfg.Alert
	if a.TargetRate < 0 {
		return fmt.Errorf("alert.target_rate must not be negative")
	}
	if a.SustainedBelow < 0 {
		return fmt.Errorf("alert.sustained_below must not be negative")
	}
	if a.StartupGrace < 0 {
		return fmt.Errorf("alert.startup_grace must not be negative")
	}
	if a.CheckInterval <= 0 {
		return fmt.Errorf("alert.check_interval must be positive")
	}
	switch a.RateSource {
	case "current", "average":
	default:
		return fmt.Errorf("alert.rate_source %q unknown: want current|average", a.RateSource)
	}
	switch a.Effect {
	case "pulse", "sustained":
	default:
		return fmt.Errorf("alert.effect %q unknown: want pulse|sustained", a.Effect)
	}
	if a.PulseDuration < 0 || a.SustainedDuration < 0 {
		return fmt.Errorf("alert effect durations must not be negative")
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}

	for i, wh := range cfg.Presenter.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("presenter.webhooks[%d].type %q unknown: want slack|teams|http", i, wh.Type)
		}
	}
	if cfg.Presenter.BufferSize < 0 {
		return fmt.Errorf("presenter.buffer_size must not be negative")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}
	return nil
}

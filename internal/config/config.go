package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"camera-color-judge/internal/application"
	"camera-color-judge/internal/domain"
)

// Config is the complete application configuration
type Config struct {
	Device    DeviceConfig   `yaml:"device"`
	Capture   CaptureConfig  `yaml:"capture"`
	Sampling  SamplingConfig `yaml:"sampling"`
	UI        UIConfig       `yaml:"ui"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
	Snapshots SnapshotConfig `yaml:"snapshots"`
	Log       LogConfig      `yaml:"log"`
}

// DeviceConfig selects the capture source
type DeviceConfig struct {
	Driver string `yaml:"driver"` // mediadevices, gocv, ffmpeg, synthetic
	Index  int    `yaml:"index"`
	ID     string `yaml:"id"`
	Source string `yaml:"source"` // file or URL for the ffmpeg driver
	Width  int    `yaml:"width"`  // requested device resolution, 0 = driver default
	Height int    `yaml:"height"`
}

// CaptureConfig contains frame pipeline settings
type CaptureConfig struct {
	TargetWidth      int           `yaml:"target_width"`
	TargetHeight     int           `yaml:"target_height"`
	FrameInterval    time.Duration `yaml:"frame_interval"`
	ReadRetryBackoff time.Duration `yaml:"read_retry_backoff"`
	StopTimeout      time.Duration `yaml:"stop_timeout"`
}

// SamplingConfig contains classifier settings
type SamplingConfig struct {
	Period time.Duration `yaml:"period"`
}

// UIConfig selects the render surface
type UIConfig struct {
	Mode        string `yaml:"mode"`   // window, web, headless
	Listen      string `yaml:"listen"` // web surface address
	StreamFPS   int    `yaml:"stream_fps"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	AutoConnect bool   `yaml:"auto_connect"`
}

// MQTTConfig contains result sink settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// SnapshotConfig contains snapshot writer settings
type SnapshotConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Debug  bool   `yaml:"debug"`
	Format string `yaml:"format"` // text, json
}

// UI modes
const (
	ModeWindow   = "window"
	ModeWeb      = "web"
	ModeHeadless = "headless"
)

var drivers = map[string]bool{
	"mediadevices": true,
	"gocv":         true,
	"ffmpeg":       true,
	"synthetic":    true,
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Driver: "mediadevices",
		},
		Capture: CaptureConfig{
			TargetWidth:   application.DefaultTargetWidth,
			TargetHeight:  application.DefaultTargetHeight,
			FrameInterval: application.DefaultFrameInterval,
			StopTimeout:   application.DefaultStopTimeout,
		},
		Sampling: SamplingConfig{
			Period: application.DefaultSamplePeriod,
		},
		UI: UIConfig{
			Mode:        ModeWindow,
			Listen:      "localhost:8080",
			StreamFPS:   15,
			JPEGQuality: 75,
		},
		MQTT: MQTTConfig{
			Broker:   "localhost:1883",
			ClientID: "colorjudge",
		},
		Snapshots: SnapshotConfig{
			Dir: "snapshots",
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, Validate(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration and fills derived defaults
func Validate(cfg *Config) error {
	if !drivers[cfg.Device.Driver] {
		return fmt.Errorf("device.driver %q is not one of mediadevices, gocv, ffmpeg, synthetic", cfg.Device.Driver)
	}
	if cfg.Device.Driver == "ffmpeg" && cfg.Device.Source == "" {
		return fmt.Errorf("device.source is required for the ffmpeg driver")
	}
	if cfg.Device.Index < 0 {
		return fmt.Errorf("device.index must be >= 0")
	}
	if cfg.Device.Width < 0 || cfg.Device.Height < 0 {
		return fmt.Errorf("device.width and device.height must be >= 0")
	}

	if cfg.Capture.TargetWidth <= 0 || cfg.Capture.TargetHeight <= 0 {
		return fmt.Errorf("capture target size must be > 0, got %dx%d", cfg.Capture.TargetWidth, cfg.Capture.TargetHeight)
	}
	if cfg.Capture.FrameInterval < 0 || cfg.Capture.ReadRetryBackoff < 0 {
		return fmt.Errorf("capture intervals must be >= 0")
	}
	if cfg.Capture.StopTimeout <= 0 {
		cfg.Capture.StopTimeout = application.DefaultStopTimeout
	}

	if cfg.Sampling.Period <= 0 {
		return fmt.Errorf("sampling.period must be > 0")
	}

	switch cfg.UI.Mode {
	case ModeWindow, ModeWeb, ModeHeadless:
	default:
		return fmt.Errorf("ui.mode %q is not one of window, web, headless", cfg.UI.Mode)
	}
	if cfg.UI.StreamFPS <= 0 {
		return fmt.Errorf("ui.stream_fps must be > 0")
	}
	if cfg.UI.JPEGQuality < 1 || cfg.UI.JPEGQuality > 100 {
		return fmt.Errorf("ui.jpeg_quality must be in [1, 100]")
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "colorjudge"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = fmt.Sprintf("colorjudge/%s", cfg.MQTT.ClientID)
	}

	if cfg.Snapshots.Dir == "" {
		cfg.Snapshots.Dir = "snapshots"
	}

	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", cfg.Log.Format)
	}

	return nil
}

// DeviceConfig converts the device section for the camera manager
func (c *Config) DeviceConfig() domain.DeviceConfig {
	return domain.DeviceConfig{
		Driver: c.Device.Driver,
		Index:  c.Device.Index,
		ID:     c.Device.ID,
		Source: c.Device.Source,
		Width:  c.Device.Width,
		Height: c.Device.Height,
	}
}

// ServiceOptions converts the pipeline sections for the color judge service
func (c *Config) ServiceOptions() application.Options {
	return application.Options{
		Device:           c.DeviceConfig(),
		TargetWidth:      c.Capture.TargetWidth,
		TargetHeight:     c.Capture.TargetHeight,
		FrameInterval:    c.Capture.FrameInterval,
		SamplePeriod:     c.Sampling.Period,
		ReadRetryBackoff: c.Capture.ReadRetryBackoff,
		StopTimeout:      c.Capture.StopTimeout,
	}
}

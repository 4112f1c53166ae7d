package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"camera-color-judge/internal/application"
	"camera-color-judge/internal/config"
	"camera-color-judge/internal/domain"
	"camera-color-judge/internal/infrastructure/streaming"
	"camera-color-judge/internal/infrastructure/window"
)

// SnapshotSaver stores the current frame
type SnapshotSaver interface {
	Save(update domain.Update) (string, error)
}

// Emitter is a result sink with a broker connection
type Emitter interface {
	Connect(ctx context.Context) error
	Close() error
}

// CLI is the command line front end of the application
type CLI struct {
	service   *application.ColorJudgeService
	logger    application.Logger
	config    *Config
	snapshots SnapshotSaver
	emitter   Emitter
	out       io.Writer
}

// Config holds the command line flags. Flags given explicitly override
// the values of the YAML file.
type Config struct {
	ConfigPath  string
	Debug       bool
	LogFormat   string
	ListDevices bool
	Mode        string
	Driver      string
	DeviceIndex int
	DeviceID    string
	Source      string
	Listen      string
	AutoConnect bool
	MQTTBroker  string

	// Settings is the merged configuration, filled by Resolve
	Settings *config.Config

	set map[string]bool
}

// NewCLI creates the command line interface
func NewCLI(service *application.ColorJudgeService, logger application.Logger) *CLI {
	return &CLI{
		service: service,
		logger:  logger,
		out:     os.Stdout,
	}
}

// SetConfig sets the configuration directly
func (c *CLI) SetConfig(config *Config) {
	c.config = config
}

// SetSnapshots enables snapshots from the render surfaces
func (c *CLI) SetSnapshots(snapshots SnapshotSaver) {
	c.snapshots = snapshots
}

// SetEmitter connects emitter on Run and closes it on exit
func (c *CLI) SetEmitter(emitter Emitter) {
	c.emitter = emitter
}

// ParseFlags parses the process command line
func (c *CLI) ParseFlags() *Config {
	config, err := ParseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	c.config = config
	return config
}

// ParseArgs parses args with fs
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	config := &Config{}

	fs.StringVar(&config.ConfigPath, "config", "", "path to a YAML configuration file")
	fs.BoolVar(&config.Debug, "debug", false, "enable debug logging")
	fs.StringVar(&config.LogFormat, "log-format", "text", "log format: text or json")
	fs.BoolVar(&config.ListDevices, "list-devices", false, "list available cameras and exit")
	fs.StringVar(&config.Mode, "mode", "window", "render surface: window, web or headless")
	fs.StringVar(&config.Driver, "driver", "mediadevices", "capture driver: mediadevices, gocv, ffmpeg or synthetic")
	fs.IntVar(&config.DeviceIndex, "index", 0, "camera index, used when -device is empty")
	fs.StringVar(&config.DeviceID, "device", "", "camera device ID")
	fs.StringVar(&config.Source, "source", "", "video file or URL for the ffmpeg driver")
	fs.StringVar(&config.Listen, "listen", "localhost:8080", "web surface address")
	fs.BoolVar(&config.AutoConnect, "connect", false, "connect to the camera on start")
	fs.StringVar(&config.MQTTBroker, "mqtt", "", "MQTT broker host:port, enables result publishing")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	config.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { config.set[f.Name] = true })
	return config, nil
}

// Resolve loads the YAML file and applies the explicitly given flags
func (c *Config) Resolve() (*config.Config, error) {
	settings, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}

	if c.set["debug"] {
		settings.Log.Debug = c.Debug
	}
	if c.set["log-format"] {
		settings.Log.Format = c.LogFormat
	}
	if c.set["mode"] {
		settings.UI.Mode = c.Mode
	}
	if c.set["driver"] {
		settings.Device.Driver = c.Driver
	}
	if c.set["index"] {
		settings.Device.Index = c.DeviceIndex
	}
	if c.set["device"] {
		settings.Device.ID = c.DeviceID
	}
	if c.set["source"] {
		settings.Device.Source = c.Source
	}
	if c.set["listen"] {
		settings.UI.Listen = c.Listen
	}
	if c.set["connect"] {
		settings.UI.AutoConnect = c.AutoConnect
	}
	if c.set["mqtt"] {
		settings.MQTT.Enabled = c.MQTTBroker != ""
		settings.MQTT.Broker = c.MQTTBroker
	}

	if err := config.Validate(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c.Settings = settings
	return settings, nil
}

// Run starts the selected render surface and blocks until it closes or
// the process is interrupted
func (c *CLI) Run() error {
	if c.config.ListDevices {
		return c.listDevices()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := c.config.Settings
	defer c.service.Disconnect()

	if c.emitter != nil {
		if err := c.emitter.Connect(ctx); err != nil {
			c.logger.Error("result publishing disabled", "error", err)
		}
		defer c.emitter.Close()
	}

	if settings.UI.AutoConnect || settings.UI.Mode == config.ModeHeadless {
		if err := c.service.Connect(); err != nil {
			if settings.UI.Mode == config.ModeHeadless {
				return err
			}
			c.logger.Warn("camera not connected, use the Connect button to retry", "error", err)
		}
	}

	switch settings.UI.Mode {
	case config.ModeWindow:
		return window.Run(ctx, c.service, c.snapshots, settings.Capture.TargetWidth, settings.Capture.TargetHeight, c.logger)

	case config.ModeWeb:
		server := streaming.NewWebServer(c.service, c.snapshots, c.logger, streaming.Options{
			Listen:      settings.UI.Listen,
			StreamFPS:   settings.UI.StreamFPS,
			JPEGQuality: settings.UI.JPEGQuality,
		})
		if err := server.Start(); err != nil {
			return err
		}
		c.logger.Info("open the web surface", "url", fmt.Sprintf("http://%s/", settings.UI.Listen))
		<-ctx.Done()
		c.logger.Info("interrupt received, shutting down")
		return server.Stop()

	default:
		<-ctx.Done()
		c.logger.Info("interrupt received, shutting down")
		return nil
	}
}

// listDevices prints the available capture devices
func (c *CLI) listDevices() error {
	devices, err := c.service.ListDevices()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Available devices:")
	for i, device := range devices {
		fmt.Fprintf(c.out, "[%d] %s (%s) id=%s\n", i, device.Label, device.Kind, device.ID)
	}
	return nil
}

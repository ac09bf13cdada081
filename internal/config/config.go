package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	display "github.com/BeatGlow/inkpet"
)

// Supported display drivers.
const (
	DriverEPD2in13V4 = "epd2in13v4"
	DriverMock       = "mock"
)

// Supported button edges.
const (
	EdgeFalling = "falling" // pull-up, press pulls the line low
	EdgeRising  = "rising"  // pull-down, press pulls the line high
)

// Config represents the top-level inkpet.yml configuration
type Config struct {
	Device       DeviceConfig  `yaml:"device"`
	Display      DisplayConfig `yaml:"display"`
	Buttons      ButtonsConfig `yaml:"buttons"`
	Timing       TimingConfig  `yaml:"timing"`
	Paths        PathsConfig   `yaml:"paths"`
	QueueSize    int           `yaml:"queue_size"`
	Debug        bool          `yaml:"debug"`
	MockHardware bool          `yaml:"mock_hardware"` // Forces the mock display driver
}

// DeviceConfig describes the clock and its pet
type DeviceConfig struct {
	Name       string `yaml:"name"`
	Timezone   string `yaml:"timezone"`
	TimeFormat int    `yaml:"time_format"` // 12 or 24, overridden by the settings document
	PetName    string `yaml:"pet_name"`
	PetType    string `yaml:"pet_type"`
}

// DisplayConfig selects and wires the display driver
type DisplayConfig struct {
	Driver      string        `yaml:"driver"`
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	Rotation    string        `yaml:"rotation"`
	SPIBus      int           `yaml:"spi_bus"`
	SPIDevice   int           `yaml:"spi_device"`
	SPISpeedHz  uint32        `yaml:"spi_speed_hz"`
	ResetPin    string        `yaml:"reset_pin"`
	DCPin       string        `yaml:"dc_pin"`
	BusyPin     string        `yaml:"busy_pin"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	SnapshotDir string        `yaml:"snapshot_dir,omitempty"`
}

// ButtonsConfig maps the three logical buttons to GPIO lines
type ButtonsConfig struct {
	ReturnPin       string        `yaml:"return_pin"`
	ActionPin       string        `yaml:"action_pin"`
	GoPin           string        `yaml:"go_pin"`
	Edge            string        `yaml:"edge"`
	Debounce        time.Duration `yaml:"debounce"`
	AdvanceThrottle time.Duration `yaml:"advance_throttle"`
}

// TimingConfig holds the orchestrator timers
type TimingConfig struct {
	Tick                time.Duration `yaml:"tick"`
	Settle              time.Duration `yaml:"settle"`
	FullRefreshInterval time.Duration `yaml:"full_refresh_interval"` // Anti-ghosting
	FailureThreshold    int           `yaml:"failure_threshold"`
	FlagPollInterval    time.Duration `yaml:"flag_poll_interval"`
	ClockInterval       time.Duration `yaml:"clock_interval"`
	AnimationInterval   time.Duration `yaml:"animation_interval"`
	PetUpdateInterval   time.Duration `yaml:"pet_update_interval"`
	StatsFlushInterval  time.Duration `yaml:"stats_flush_interval"`
}

// PathsConfig holds the shared directories
type PathsConfig struct {
	DataDir   string `yaml:"data_dir"`
	FlagDir   string `yaml:"flag_dir"`
	OutboxDir string `yaml:"outbox_dir"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:       "bunny_clock",
			Timezone:   "America/Mexico_City",
			TimeFormat: 24,
			PetName:    "Fluffy",
			PetType:    "bunny",
		},
		Display: DisplayConfig{
			Driver:      DriverEPD2in13V4,
			Width:       250,
			Height:      122,
			Rotation:    "90",
			SPISpeedHz:  display.DefaultSPIConfig.SpeedHz,
			ResetPin:    display.DefaultResetPin,
			DCPin:       display.DefaultDCPin,
			BusyPin:     display.DefaultBusyPin,
			BusyTimeout: 10 * time.Second,
		},
		Buttons: ButtonsConfig{
			ReturnPin:       "GPIO6",
			ActionPin:       "GPIO13",
			GoPin:           "GPIO19",
			Edge:            EdgeFalling,
			Debounce:        200 * time.Millisecond,
			AdvanceThrottle: 300 * time.Millisecond,
		},
		Timing: TimingConfig{
			Tick:                100 * time.Millisecond,
			Settle:              200 * time.Millisecond,
			FullRefreshInterval: 5 * time.Minute,
			FailureThreshold:    3,
			FlagPollInterval:    250 * time.Millisecond,
			ClockInterval:       time.Second,
			AnimationInterval:   5 * time.Second,
			PetUpdateInterval:   time.Hour,
			StatsFlushInterval:  time.Minute,
		},
		Paths: PathsConfig{
			DataDir:   "./data",
			FlagDir:   "/tmp/eink_flags",
			OutboxDir: "/tmp/eink_outbox",
		},
		QueueSize: 32,
	}
}

// Load reads, parses and validates the configuration at path. An empty path
// yields the defaults. Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err = yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"INKPET_MOCK_HARDWARE", &c.MockHardware},
		{"INKPET_DEBUG", &c.Debug},
	} {
		if v, ok := lookup(b.key); ok && v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", b.key, err)
			}
			*b.dst = parsed
		}
	}

	for _, s := range []struct {
		key string
		dst *string
	}{
		{"INKPET_DATA_DIR", &c.Paths.DataDir},
		{"INKPET_FLAG_DIR", &c.Paths.FlagDir},
		{"DEVICE_NAME", &c.Device.Name},
		{"DEVICE_TIMEZONE", &c.Device.Timezone},
	} {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	return nil
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	if c.Device.Name == "" {
		return errors.New("device.name is required")
	}
	if c.Device.TimeFormat != 12 && c.Device.TimeFormat != 24 {
		return fmt.Errorf("device.time_format must be 12 or 24, got %d", c.Device.TimeFormat)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("device.timezone: %w", err)
	}

	if err := c.Display.validate(); err != nil {
		return err
	}
	if err := c.Buttons.validate(); err != nil {
		return err
	}
	if err := c.Timing.validate(); err != nil {
		return err
	}

	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir is required")
	}
	if c.Paths.FlagDir == "" {
		return errors.New("paths.flag_dir is required")
	}
	if c.Paths.OutboxDir == "" {
		return errors.New("paths.outbox_dir is required")
	}
	if c.Paths.FlagDir == c.Paths.OutboxDir {
		return errors.New("paths.outbox_dir must differ from paths.flag_dir")
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be >= 1, got %d", c.QueueSize)
	}
	return nil
}

func (c *DisplayConfig) validate() error {
	switch c.Driver {
	case DriverEPD2in13V4, DriverMock:
	default:
		return fmt.Errorf("display.driver: unsupported driver %q (expected %s or %s)", c.Driver, DriverEPD2in13V4, DriverMock)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("display: invalid size %dx%d", c.Width, c.Height)
	}
	if _, err := display.ParseRotation(c.Rotation); err != nil {
		return fmt.Errorf("display.rotation: %w", err)
	}
	if c.BusyTimeout <= 0 {
		return fmt.Errorf("display.busy_timeout must be positive, got %s", c.BusyTimeout)
	}
	return nil
}

func (c *ButtonsConfig) validate() error {
	if c.ReturnPin == "" || c.ActionPin == "" || c.GoPin == "" {
		return errors.New("buttons: return_pin, action_pin and go_pin are required")
	}
	if c.Edge != EdgeFalling && c.Edge != EdgeRising {
		return fmt.Errorf("buttons.edge must be %q or %q, got %q", EdgeFalling, EdgeRising, c.Edge)
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("buttons.debounce must be positive, got %s", c.Debounce)
	}
	if c.AdvanceThrottle < c.Debounce {
		return fmt.Errorf("buttons.advance_throttle (%s) must be >= buttons.debounce (%s)", c.AdvanceThrottle, c.Debounce)
	}
	return nil
}

func (c *TimingConfig) validate() error {
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"tick", c.Tick},
		{"settle", c.Settle},
		{"full_refresh_interval", c.FullRefreshInterval},
		{"flag_poll_interval", c.FlagPollInterval},
		{"clock_interval", c.ClockInterval},
		{"animation_interval", c.AnimationInterval},
		{"pet_update_interval", c.PetUpdateInterval},
		{"stats_flush_interval", c.StatsFlushInterval},
	} {
		if d.value <= 0 {
			return fmt.Errorf("timing.%s must be positive, got %s", d.name, d.value)
		}
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("timing.failure_threshold must be >= 1, got %d", c.FailureThreshold)
	}
	if c.Settle >= c.FullRefreshInterval {
		return fmt.Errorf("timing.settle (%s) must be shorter than timing.full_refresh_interval (%s)", c.Settle, c.FullRefreshInterval)
	}
	if c.FlagPollInterval >= time.Second {
		return fmt.Errorf("timing.flag_poll_interval must be under one second, got %s", c.FlagPollInterval)
	}
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Device.Timezone)
}

// DriverName is the display driver in effect, mock_hardware wins over
// display.driver.
func (c *Config) DriverName() string {
	if c.MockHardware {
		return DriverMock
	}
	return c.Display.Driver
}

// SurfaceConfig converts the display section for the display drivers.
func (c *DisplayConfig) SurfaceConfig() *display.Config {
	rotation, _ := display.ParseRotation(c.Rotation)
	return &display.Config{
		Width:       c.Width,
		Height:      c.Height,
		Rotation:    rotation,
		BusyTimeout: c.BusyTimeout,
		SnapshotDir: c.SnapshotDir,
	}
}

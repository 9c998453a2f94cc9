package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/joydrive/internal/adc"
	"github.com/san-kum/joydrive/internal/control"
	"github.com/san-kum/joydrive/internal/dynamo"
	"github.com/san-kum/joydrive/internal/integrators"
	"github.com/san-kum/joydrive/internal/logging"
	"github.com/san-kum/joydrive/internal/normalize"
	"github.com/san-kum/joydrive/internal/physics"
	"github.com/san-kum/joydrive/internal/vehicle"
)

const (
	DefaultPollMs       = 100
	DefaultMaxBackoffMs = 2000
	DefaultButtonLine   = 21
	DefaultSPIDevice    = "/dev/spidev0.0"
	DefaultSPISpeedHz   = 1350000
	DefaultSerialBaud   = 115200
	DefaultDt           = 1.0 / 60
	DefaultMass         = 600
	DefaultWheelRadius  = 0.5
	DefaultRestLength   = 0.1
	DefaultFrictionSlip = 20
	DefaultDBPath       = "joydrive.db"
)

// Transport kinds.
const (
	TransportSPI    = "spi"
	TransportSerial = "serial"
	TransportFake   = "fake"
)

type Config struct {
	Device  DeviceConfig   `yaml:"device"`
	Axes    AxesConfig     `yaml:"axes"`
	Control control.Tuning `yaml:"control"`
	Vehicle VehicleConfig  `yaml:"vehicle"`
	Physics PhysicsConfig  `yaml:"physics"`
	Record  RecordConfig   `yaml:"record"`
	Log     LogConfig      `yaml:"log"`
}

type DeviceConfig struct {
	Transport    string `yaml:"transport"`
	SPIDevice    string `yaml:"spi_device"`
	SPISpeedHz   uint32 `yaml:"spi_speed_hz"`
	SerialPort   string `yaml:"serial_port"`
	SerialBaud   int    `yaml:"serial_baud"`
	GPIOChip     string `yaml:"gpio_chip"`
	ButtonLine   int    `yaml:"button_line"`
	Pull         string `yaml:"pull"`
	ActiveHigh   bool   `yaml:"active_high"`
	NoButton     bool   `yaml:"no_button"`
	PollMs       int    `yaml:"poll_ms"`
	MaxBackoffMs int    `yaml:"max_backoff_ms"`
}

type AxesConfig struct {
	Vx   int                   `yaml:"vx"`
	Vy   int                   `yaml:"vy"`
	CalX normalize.Calibration `yaml:"vx_calibration"`
	CalY normalize.Calibration `yaml:"vy_calibration"`
}

type VehicleConfig struct {
	Preset         string             `yaml:"preset"`
	Mass           float64            `yaml:"mass"`
	Spawn          dynamo.Vec3        `yaml:"spawn"`
	WheelRadius    float64            `yaml:"wheel_radius"`
	RestLength     float64            `yaml:"rest_length"`
	FrictionSlip   float64            `yaml:"friction_slip"`
	Suspension     vehicle.Suspension `yaml:"suspension"`
	vehicle.Params `yaml:",inline"`
}

type PhysicsConfig struct {
	Dt         float64 `yaml:"dt"`
	Gravity    float64 `yaml:"gravity"`
	Integrator string  `yaml:"integrator"`
	TestWorld  bool    `yaml:"test_world"`
}

type RecordConfig struct {
	Enabled bool         `yaml:"enabled"`
	DBPath  string       `yaml:"db_path"`
	Influx  InfluxConfig `yaml:"influx"`
}

type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	GELF  string `yaml:"gelf"`
}

// DefaultConfig mirrors the reference rig: an MCP3008 with the throttle on
// CH0 and steering on CH1, the click switch on GPIO21 pulled down.
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Transport:    TransportSPI,
			SPIDevice:    DefaultSPIDevice,
			SPISpeedHz:   DefaultSPISpeedHz,
			SerialBaud:   DefaultSerialBaud,
			GPIOChip:     "gpiochip0",
			ButtonLine:   DefaultButtonLine,
			Pull:         "down",
			ActiveHigh:   true,
			PollMs:       DefaultPollMs,
			MaxBackoffMs: DefaultMaxBackoffMs,
		},
		Axes: AxesConfig{
			Vx:   int(adc.CH1),
			Vy:   int(adc.CH0),
			CalX: normalize.DefaultCalibration(),
			CalY: normalize.DefaultCalibration(),
		},
		Control: control.DefaultTuning(),
		Vehicle: VehicleConfig{
			Preset:       "default",
			Mass:         DefaultMass,
			Spawn:        dynamo.Vec3{X: 20, Y: 5, Z: 10},
			WheelRadius:  DefaultWheelRadius,
			RestLength:   DefaultRestLength,
			FrictionSlip: DefaultFrictionSlip,
			Suspension:   vehicle.DefaultSuspension(),
			Params:       vehicle.DefaultParams(),
		},
		Physics: PhysicsConfig{
			Dt:         DefaultDt,
			Gravity:    physics.DefaultGravity,
			Integrator: "rk4",
			TestWorld:  true,
		},
		Record: RecordConfig{
			DBPath: DefaultDBPath,
			Influx: InfluxConfig{
				URL:    "http://localhost:8086",
				Org:    "joydrive",
				Bucket: "joydrive",
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrConfiguration, path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every section and returns the first problem as a
// *dynamo.ConfigError.
func (c *Config) Validate() error {
	switch c.Device.Transport {
	case TransportSPI, TransportFake:
	case TransportSerial:
		if c.Device.SerialPort == "" {
			return dynamo.Configf("device.serial_port", "required for the serial transport")
		}
	default:
		return dynamo.Configf("device.transport", "unknown transport %q", c.Device.Transport)
	}
	if c.Device.PollMs <= 0 {
		return dynamo.Configf("device.poll_ms", "must be positive, got %d", c.Device.PollMs)
	}
	if c.Device.MaxBackoffMs < c.Device.PollMs {
		return dynamo.Configf("device.max_backoff_ms", "%d is below the poll interval", c.Device.MaxBackoffMs)
	}
	if _, err := adc.ParsePull(c.Device.Pull); err != nil {
		return dynamo.Configf("device.pull", "%v", err)
	}

	vx, vy := adc.Channel(c.Axes.Vx), adc.Channel(c.Axes.Vy)
	if c.Axes.Vx < 0 || !vx.Valid() {
		return dynamo.Configf("axes.vx", "channel %d out of range", c.Axes.Vx)
	}
	if c.Axes.Vy < 0 || !vy.Valid() {
		return dynamo.Configf("axes.vy", "channel %d out of range", c.Axes.Vy)
	}
	if vx == vy {
		return dynamo.Configf("axes", "vx and vy share channel %s", vx)
	}
	if err := c.Axes.CalX.Validate(); err != nil {
		return err
	}
	if err := c.Axes.CalY.Validate(); err != nil {
		return err
	}

	if err := c.Control.Validate(); err != nil {
		return err
	}

	if c.Vehicle.Mass <= 0 {
		return dynamo.Configf("vehicle.mass", "must be positive, got %g", c.Vehicle.Mass)
	}
	if c.Vehicle.WheelRadius <= 0 || c.Vehicle.RestLength < 0 {
		return dynamo.Configf("vehicle.wheel_radius", "wheel geometry %g/%g is invalid", c.Vehicle.WheelRadius, c.Vehicle.RestLength)
	}
	if c.Vehicle.FrictionSlip <= 0 {
		return dynamo.Configf("vehicle.friction_slip", "must be positive, got %g", c.Vehicle.FrictionSlip)
	}
	if c.Vehicle.BrakeForce < 0 {
		return dynamo.Configf("vehicle.brake_force", "must not be negative, got %g", c.Vehicle.BrakeForce)
	}
	if err := c.Vehicle.Suspension.Validate(); err != nil {
		return err
	}

	if c.Physics.Dt <= 0 || c.Physics.Dt > 0.1 {
		return dynamo.Configf("physics.dt", "%g not in (0, 0.1]", c.Physics.Dt)
	}
	if _, err := integrators.ByName(c.Physics.Integrator); err != nil {
		return err
	}

	if c.Record.Enabled && c.Record.DBPath == "" {
		return dynamo.Configf("record.db_path", "required when recording")
	}
	if c.Record.Influx.Enabled && (c.Record.Influx.URL == "" || c.Record.Influx.Bucket == "") {
		return dynamo.Configf("record.influx", "url and bucket are required")
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Device.PollMs) * time.Millisecond
}

func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.Device.MaxBackoffMs) * time.Millisecond
}

// Channels returns the channels bound to Vx and Vy.
func (c *Config) Channels() (vx, vy adc.Channel) {
	return adc.Channel(c.Axes.Vx), adc.Channel(c.Axes.Vy)
}

func (c *Config) InitOptions() adc.InitOptions {
	pull, _ := adc.ParsePull(c.Device.Pull)
	return adc.InitOptions{
		PollInterval: c.PollInterval(),
		InterruptPin: c.Device.ButtonLine,
		Pull:         pull,
	}
}

// Transport builds the configured transport. It is not initialized.
func (c *Config) Transport() (adc.Transport, error) {
	var button adc.ButtonLine
	if !c.Device.NoButton {
		button = adc.NewGPIOLine(c.Device.GPIOChip)
	}
	switch c.Device.Transport {
	case TransportSPI:
		return adc.NewDevice("mcp3008", adc.NewMCP3008(c.Device.SPIDevice, c.Device.SPISpeedHz), button), nil
	case TransportSerial:
		return adc.NewDevice("serial", adc.NewSerialBridge(c.Device.SerialPort, c.Device.SerialBaud), button), nil
	case TransportFake:
		return adc.NewFake(), nil
	}
	return nil, dynamo.Configf("device.transport", "unknown transport %q", c.Device.Transport)
}

// BuildVehicle assembles the physics vehicle. Wheels are added before the
// friction slip is applied, and everything happens before the vehicle
// joins a world.
func (c *Config) BuildVehicle() (*physics.Vehicle, error) {
	integ, err := integrators.ByName(c.Physics.Integrator)
	if err != nil {
		return nil, err
	}
	v := physics.NewVehicle(c.Vehicle.Mass, c.Vehicle.Spawn)
	v.SetIntegrator(integ)
	for _, w := range vehicle.StandardWheels(c.Vehicle.WheelRadius, c.Vehicle.RestLength) {
		v.AddWheel(w)
	}
	if err := vehicle.ConfigureSuspension(v, c.Vehicle.Suspension); err != nil {
		return nil, err
	}
	if err := vehicle.ConfigureWheelFriction(v, c.Vehicle.FrictionSlip); err != nil {
		return nil, err
	}
	return v, nil
}

// BuildWorld returns the physics world, with the reference floor and ball
// when TestWorld is set.
func (c *Config) BuildWorld(log zerolog.Logger) *physics.World {
	if c.Physics.TestWorld {
		return physics.NewTestWorld(c.Physics.Gravity, log)
	}
	return physics.NewWorld(c.Physics.Gravity, 0, log)
}

func (c *Config) StepInterval() time.Duration {
	return time.Duration(c.Physics.Dt * float64(time.Second))
}

func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:    c.Log.Level,
		File:     c.Log.File,
		GELFAddr: c.Log.GELF,
	}
}

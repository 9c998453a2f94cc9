package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// JOYDRIVE_DEVICE_TRANSPORT=fake.
const EnvPrefix = "JOYDRIVE"

type override struct {
	key   string
	apply func(c *Config, v *viper.Viper)
}

var overrides = []override{
	{"device.transport", func(c *Config, v *viper.Viper) { c.Device.Transport = v.GetString("device.transport") }},
	{"device.spi_device", func(c *Config, v *viper.Viper) { c.Device.SPIDevice = v.GetString("device.spi_device") }},
	{"device.serial_port", func(c *Config, v *viper.Viper) { c.Device.SerialPort = v.GetString("device.serial_port") }},
	{"device.serial_baud", func(c *Config, v *viper.Viper) { c.Device.SerialBaud = v.GetInt("device.serial_baud") }},
	{"device.gpio_chip", func(c *Config, v *viper.Viper) { c.Device.GPIOChip = v.GetString("device.gpio_chip") }},
	{"device.button_line", func(c *Config, v *viper.Viper) { c.Device.ButtonLine = v.GetInt("device.button_line") }},
	{"device.active_high", func(c *Config, v *viper.Viper) { c.Device.ActiveHigh = v.GetBool("device.active_high") }},
	{"device.no_button", func(c *Config, v *viper.Viper) { c.Device.NoButton = v.GetBool("device.no_button") }},
	{"device.poll_ms", func(c *Config, v *viper.Viper) { c.Device.PollMs = v.GetInt("device.poll_ms") }},
	{"axes.vx", func(c *Config, v *viper.Viper) { c.Axes.Vx = v.GetInt("axes.vx") }},
	{"axes.vy", func(c *Config, v *viper.Viper) { c.Axes.Vy = v.GetInt("axes.vy") }},
	{"control.base_force", func(c *Config, v *viper.Viper) { c.Control.BaseForce = v.GetFloat64("control.base_force") }},
	{"control.release_ratio", func(c *Config, v *viper.Viper) { c.Control.ReleaseRatio = v.GetFloat64("control.release_ratio") }},
	{"vehicle.mass", func(c *Config, v *viper.Viper) { c.Vehicle.Mass = v.GetFloat64("vehicle.mass") }},
	{"vehicle.brake_force", func(c *Config, v *viper.Viper) { c.Vehicle.BrakeForce = v.GetFloat64("vehicle.brake_force") }},
	{"physics.dt", func(c *Config, v *viper.Viper) { c.Physics.Dt = v.GetFloat64("physics.dt") }},
	{"physics.integrator", func(c *Config, v *viper.Viper) { c.Physics.Integrator = v.GetString("physics.integrator") }},
	{"record.enabled", func(c *Config, v *viper.Viper) { c.Record.Enabled = v.GetBool("record.enabled") }},
	{"record.db_path", func(c *Config, v *viper.Viper) { c.Record.DBPath = v.GetString("record.db_path") }},
	{"record.influx.enabled", func(c *Config, v *viper.Viper) { c.Record.Influx.Enabled = v.GetBool("record.influx.enabled") }},
	{"record.influx.url", func(c *Config, v *viper.Viper) { c.Record.Influx.URL = v.GetString("record.influx.url") }},
	{"record.influx.token", func(c *Config, v *viper.Viper) { c.Record.Influx.Token = v.GetString("record.influx.token") }},
	{"log.level", func(c *Config, v *viper.Viper) { c.Log.Level = v.GetString("log.level") }},
	{"log.file", func(c *Config, v *viper.Viper) { c.Log.File = v.GetString("log.file") }},
	{"log.gelf", func(c *Config, v *viper.Viper) { c.Log.GELF = v.GetString("log.gelf") }},
}

// NewViper returns a viper instance reading JOYDRIVE_* environment
// variables. Cobra flags are bound onto it with BindPFlag under the same
// dotted keys.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Overlay applies every key set in v on top of cfg. A vehicle.preset key
// is applied first so that individual keys can refine it.
func Overlay(cfg *Config, v *viper.Viper) error {
	if v.IsSet("vehicle.preset") {
		if err := cfg.ApplyPreset(v.GetString("vehicle.preset")); err != nil {
			return err
		}
	}
	for _, o := range overrides {
		if v.IsSet(o.key) {
			o.apply(cfg, v)
		}
	}
	return nil
}

// Keys lists the keys Overlay understands.
func Keys() []string {
	keys := []string{"vehicle.preset"}
	for _, o := range overrides {
		keys = append(keys, o.key)
	}
	return keys
}

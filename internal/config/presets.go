package config

import (
	"sort"

	"github.com/san-kum/joydrive/internal/dynamo"
	"github.com/san-kum/joydrive/internal/vehicle"
)

// Preset is a named vehicle tuning.
type Preset struct {
	Description  string
	Mass         float64
	Suspension   vehicle.Suspension
	FrictionSlip float64
	BaseForce    float64
	BrakeForce   float64
}

var Presets = map[string]*Preset{
	"default": {
		Description:  "soft road car",
		Mass:         DefaultMass,
		Suspension:   vehicle.DefaultSuspension(),
		FrictionSlip: DefaultFrictionSlip,
		BaseForce:    2000,
		BrakeForce:   300,
	},
	"f1": {
		Description: "stiff, light and grippy",
		Mass:        450,
		Suspension: vehicle.Suspension{
			Stiffness:   200,
			Compression: 0.3,
			Damping:     0.5,
			MaxForce:    1 << 20,
		},
		FrictionSlip: 40,
		BaseForce:    4000,
		BrakeForce:   900,
	},
	"offroad": {
		Description: "long travel, low grip",
		Mass:        900,
		Suspension: vehicle.Suspension{
			Stiffness:   15,
			Compression: 0.6,
			Damping:     2,
			MaxForce:    1 << 20,
		},
		FrictionSlip: 8,
		BaseForce:    3000,
		BrakeForce:   400,
	},
}

func GetPreset(name string) *Preset {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset overwrites the vehicle tuning of c with the named preset.
func (c *Config) ApplyPreset(name string) error {
	p := GetPreset(name)
	if p == nil {
		return dynamo.Configf("vehicle.preset", "unknown preset %q", name)
	}
	c.Vehicle.Preset = name
	c.Vehicle.Mass = p.Mass
	c.Vehicle.Suspension = p.Suspension
	c.Vehicle.FrictionSlip = p.FrictionSlip
	c.Vehicle.BrakeForce = p.BrakeForce
	c.Control.BaseForce = p.BaseForce
	return nil
}

// Package normalize maps raw converter readings onto a signed axis value.
package normalize

import (
	"math"

	"github.com/san-kum/joydrive/internal/dynamo"
)

// Signal is a normalized axis reading. Value lies in [-1, 1]; AtRest is
// set when the reading falls inside the deadband, in which case Value is 0.
type Signal struct {
	Value  float64
	AtRest bool
}

// Rest is the signal of an untouched stick.
var Rest = Signal{AtRest: true}

// Calibration describes the raw range of one axis.
type Calibration struct {
	Center   float64 `yaml:"center"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	Deadband float64 `yaml:"deadband"`
}

// DefaultCalibration fits a 10-bit converter with the stick resting at
// mid-scale.
func DefaultCalibration() Calibration {
	return Calibration{
		Center:   512,
		Min:      0,
		Max:      1023,
		Deadband: 0.05,
	}
}

func (c Calibration) Validate() error {
	if !(c.Min < c.Center && c.Center < c.Max) {
		return dynamo.Configf("calibration", "need min < center < max, got %.1f/%.1f/%.1f", c.Min, c.Center, c.Max)
	}
	if c.Deadband < 0 || c.Deadband >= 1 {
		return dynamo.Configf("calibration.deadband", "%.3f not in [0,1)", c.Deadband)
	}
	return nil
}

// halfSpan is the larger distance from center to either end. Using one
// scale on both sides keeps Normalize symmetric around the center.
func (c Calibration) halfSpan() float64 {
	return math.Max(c.Center-c.Min, c.Max-c.Center)
}

// Normalize converts a raw reading. It is monotonic non-decreasing in raw
// and readings outside [Min, Max] saturate at ±1.
func (c Calibration) Normalize(raw int) Signal {
	span := c.halfSpan()
	if span <= 0 {
		return Rest
	}
	v := (float64(raw) - c.Center) / span
	v = math.Max(-1, math.Min(1, v))
	if math.Abs(v) <= c.Deadband {
		return Rest
	}
	return Signal{Value: v}
}

// Raw is the inverse of Normalize outside the deadband, rounded to the
// nearest integer reading. The keyboard joystick uses it to synthesize
// converter readings.
func (c Calibration) Raw(v float64) int {
	v = math.Max(-1, math.Min(1, v))
	raw := math.Round(c.Center + v*c.halfSpan())
	return int(math.Max(c.Min, math.Min(c.Max, raw)))
}

// CalibrateCenter returns c with Center set to the mean of samples taken
// while the stick rests. Samples are expected inside (Min, Max).
func (c Calibration) CalibrateCenter(samples []int) (Calibration, error) {
	if len(samples) == 0 {
		return c, dynamo.Configf("calibration", "no samples")
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s)
	}
	out := c
	out.Center = math.Round(sum / float64(len(samples)))
	if err := out.Validate(); err != nil {
		return c, err
	}
	return out, nil
}

// Spread reports the largest distance of any sample from center, in
// normalized units. A deadband smaller than this lets jitter through.
func (c Calibration) Spread(samples []int) float64 {
	span := c.halfSpan()
	if span <= 0 {
		return 0
	}
	worst := 0.0
	for _, s := range samples {
		worst = math.Max(worst, math.Abs(float64(s)-c.Center)/span)
	}
	return worst
}

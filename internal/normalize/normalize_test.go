package normalize

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/joydrive/internal/dynamo"
)

func TestNormalizeCenterIsRest(t *testing.T) {
	c := DefaultCalibration()
	s := c.Normalize(int(c.Center))
	if s.Value != 0 || !s.AtRest {
		t.Errorf("expected rest at center, got %+v", s)
	}
}

func TestNormalizeDeadband(t *testing.T) {
	c := DefaultCalibration()
	tests := []struct {
		raw    int
		atRest bool
	}{
		{512, true},
		{530, true},
		{490, true},
		{560, false},
		{460, false},
		{1023, false},
		{0, false},
	}

	for _, tt := range tests {
		s := c.Normalize(tt.raw)
		if s.AtRest != tt.atRest {
			t.Errorf("raw %d: expected atRest=%v, got %+v", tt.raw, tt.atRest, s)
		}
		if s.AtRest && s.Value != 0 {
			t.Errorf("raw %d: resting signal must be 0, got %f", tt.raw, s.Value)
		}
	}
}

func TestNormalizeMonotonic(t *testing.T) {
	c := DefaultCalibration()
	prev := c.Normalize(-50).Value
	for raw := -49; raw <= 1100; raw++ {
		v := c.Normalize(raw).Value
		if v < prev {
			t.Fatalf("not monotonic at raw %d: %f < %f", raw, v, prev)
		}
		if v < -1 || v > 1 {
			t.Fatalf("raw %d: value %f out of range", raw, v)
		}
		prev = v
	}
}

func TestNormalizeSymmetric(t *testing.T) {
	c := DefaultCalibration()
	for d := 0; d <= 500; d += 25 {
		hi := c.Normalize(int(c.Center) + d).Value
		lo := c.Normalize(int(c.Center) - d).Value
		if math.Abs(hi+lo) > 1e-12 {
			t.Errorf("offset %d: %f and %f are not symmetric", d, hi, lo)
		}
	}
}

func TestNormalizeSaturates(t *testing.T) {
	c := DefaultCalibration()
	if v := c.Normalize(5000).Value; v != 1 {
		t.Errorf("expected 1, got %f", v)
	}
	if v := c.Normalize(-5000).Value; v != -1 {
		t.Errorf("expected -1, got %f", v)
	}
}

func TestRawRoundTrip(t *testing.T) {
	c := DefaultCalibration()
	for _, v := range []float64{-1, -0.5, 0.3, 0.8, 1} {
		got := c.Normalize(c.Raw(v)).Value
		if math.Abs(got-v) > 2.0/512 {
			t.Errorf("value %f: round trip gave %f", v, got)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cal     Calibration
		wantErr bool
	}{
		{"default", DefaultCalibration(), false},
		{"center below min", Calibration{Center: -1, Min: 0, Max: 1023}, true},
		{"inverted range", Calibration{Center: 500, Min: 1023, Max: 0}, true},
		{"deadband too wide", Calibration{Center: 512, Min: 0, Max: 1023, Deadband: 1}, true},
		{"negative deadband", Calibration{Center: 512, Min: 0, Max: 1023, Deadband: -0.1}, true},
	}

	for _, tt := range tests {
		err := tt.cal.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: expected error=%v, got %v", tt.name, tt.wantErr, err)
		}
		if err != nil && !errors.Is(err, dynamo.ErrConfiguration) {
			t.Errorf("%s: expected configuration error, got %v", tt.name, err)
		}
	}
}

func TestCalibrateCenter(t *testing.T) {
	c := DefaultCalibration()
	got, err := c.CalibrateCenter([]int{500, 502, 498, 504})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Center != 501 {
		t.Errorf("expected center 501, got %f", got.Center)
	}
	if !got.Normalize(501).AtRest {
		t.Error("calibrated center should be at rest")
	}

	if _, err := c.CalibrateCenter(nil); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := c.CalibrateCenter([]int{1023, 1023}); err == nil {
		t.Error("expected error when center reaches max")
	}
}

func TestSpread(t *testing.T) {
	c := DefaultCalibration()
	if s := c.Spread([]int{512, 520, 500}); math.Abs(s-12.0/512) > 1e-12 {
		t.Errorf("expected spread %f, got %f", 12.0/512, s)
	}
}

package adc

import (
	"errors"
	"testing"

	"github.com/san-kum/joydrive/internal/dynamo"
)

type stubConverter struct {
	openErr error
	values  map[Channel]int
	readErr error
	closed  bool
}

func (s *stubConverter) Open(InitOptions) error { return s.openErr }
func (s *stubConverter) Read(ch Channel) (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	return s.values[ch], nil
}
func (s *stubConverter) Close() error { s.closed = true; return nil }

type stubButton struct {
	openErr error
	pin     int
	pull    Pull
	level   bool
}

func (s *stubButton) Open(pin int, pull Pull) error {
	s.pin, s.pull = pin, pull
	return s.openErr
}
func (s *stubButton) Level() (bool, error) { return s.level, nil }
func (s *stubButton) Close() error         { return nil }

func TestParseChannel(t *testing.T) {
	tests := []struct {
		in      string
		want    Channel
		wantErr bool
	}{
		{"CH_0", CH0, false},
		{"ch_1", CH1, false},
		{"CH7", CH7, false},
		{"5", CH5, false},
		{"8", 0, true},
		{"-1", 0, true},
		{"joystick", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseChannel(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestDeviceInitFailure(t *testing.T) {
	conv := &stubConverter{openErr: errors.New("no such device")}
	d := NewDevice("mcp3008", conv, nil)

	err := d.Init(InitOptions{})
	if err == nil {
		t.Fatal("expected init error")
	}
	if !errors.Is(err, dynamo.ErrDeviceInit) {
		t.Errorf("expected ErrDeviceInit, got %v", err)
	}
	var initErr *DeviceInitError
	if !errors.As(err, &initErr) || initErr.Device != "mcp3008" {
		t.Errorf("expected DeviceInitError for mcp3008, got %v", err)
	}
	if d.Initialized() {
		t.Error("device should not be initialized")
	}
}

func TestDeviceButtonFailureClosesConverter(t *testing.T) {
	conv := &stubConverter{}
	btn := &stubButton{openErr: errors.New("busy")}
	d := NewDevice("joystick", conv, btn)

	if err := d.Init(InitOptions{InterruptPin: 21, Pull: PullDown}); err == nil {
		t.Fatal("expected init error")
	}
	if !conv.closed {
		t.Error("converter should be closed when the button line fails")
	}
	if btn.pin != 21 || btn.pull != PullDown {
		t.Errorf("button opened with pin=%d pull=%s", btn.pin, btn.pull)
	}
}

func TestDeviceRead(t *testing.T) {
	conv := &stubConverter{values: map[Channel]int{CH0: 700, CH1: 2000}}
	btn := &stubButton{level: true}
	d := NewDevice("joystick", conv, btn)

	if _, err := d.ReadChannel(CH0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized before init, got %v", err)
	}

	if err := d.Init(InitOptions{}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	v, err := d.ReadChannel(CH0)
	if err != nil || v != 700 {
		t.Errorf("expected 700, got %d (%v)", v, err)
	}

	_, err = d.ReadChannel(CH1)
	if !errors.Is(err, dynamo.ErrTransport) {
		t.Errorf("out of range reading should be a transport error, got %v", err)
	}

	_, err = d.ReadChannel(Channel(9))
	if !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("expected ErrInvalidChannel, got %v", err)
	}

	level, err := d.ReadButton()
	if err != nil || !level {
		t.Errorf("expected pressed button, got %v (%v)", level, err)
	}
}

func TestFakeFailures(t *testing.T) {
	f := NewFake()
	if err := f.Init(InitOptions{}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	f.Set(CH0, 900)
	f.Set(CH1, 5000)

	if v, _ := f.ReadChannel(CH1); v != MaxRaw {
		t.Errorf("expected clamp to %d, got %d", MaxRaw, v)
	}

	f.FailChannel(CH0, errors.New("crc"))
	if _, err := f.ReadChannel(CH0); !errors.Is(err, dynamo.ErrTransport) {
		t.Errorf("expected transport error, got %v", err)
	}
	if _, err := f.ReadChannel(CH1); err != nil {
		t.Errorf("other channel should still read, got %v", err)
	}

	f.FailChannel(CH0, nil)
	if v, err := f.ReadChannel(CH0); err != nil || v != 900 {
		t.Errorf("expected 900 after clearing failure, got %d (%v)", v, err)
	}

	f.FailAll(ErrUnavailable)
	if _, err := f.ReadChannel(CH1); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if f.Reads(CH1) != 3 {
		t.Errorf("expected 3 reads of CH1, got %d", f.Reads(CH1))
	}
}

func TestParsePull(t *testing.T) {
	for in, want := range map[string]Pull{"up": PullUp, "DOWN": PullDown, "": PullOff, "none": PullOff} {
		got, err := ParsePull(in)
		if err != nil || got != want {
			t.Errorf("%q: expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParsePull("sideways"); err == nil {
		t.Error("expected error for unknown pull")
	}
}

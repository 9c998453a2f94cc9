package adc

import (
	"sync"
)

// Fake is an in-memory Transport. Readings, button level and failures are
// set by the owner; it is safe for concurrent use.
type Fake struct {
	mu          sync.Mutex
	values      [NumChannels]int
	button      bool
	initialized bool
	initErr     error
	chanErr     map[Channel]error
	allErr      error
	buttonErr   error
	reads       [NumChannels]int
	opts        InitOptions
}

// NewFake returns a Fake with every channel resting at the center of the
// 10-bit range.
func NewFake() *Fake {
	f := &Fake{chanErr: make(map[Channel]error)}
	for i := range f.values {
		f.values[i] = (MaxRaw + 1) / 2
	}
	return f
}

func (f *Fake) Init(opts InitOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return &DeviceInitError{Device: "fake", Err: f.initErr}
	}
	f.initialized = true
	f.opts = opts
	return nil
}

func (f *Fake) Initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

// Options returns the options of the last successful Init.
func (f *Fake) Options() InitOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts
}

func (f *Fake) ReadChannel(ch Channel) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !ch.Valid() {
		return 0, &TransportError{Channel: ch, Err: ErrInvalidChannel}
	}
	f.reads[ch]++
	if !f.initialized {
		return 0, &TransportError{Channel: ch, Err: ErrNotInitialized}
	}
	if f.allErr != nil {
		return 0, &TransportError{Channel: ch, Err: f.allErr}
	}
	if err := f.chanErr[ch]; err != nil {
		return 0, &TransportError{Channel: ch, Err: err}
	}
	return f.values[ch], nil
}

func (f *Fake) ReadButton() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allErr != nil {
		return false, f.allErr
	}
	if f.buttonErr != nil {
		return false, f.buttonErr
	}
	return f.button, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = false
	return nil
}

// Set stores the raw reading of ch, clamped to [0, MaxRaw].
func (f *Fake) Set(ch Channel, raw int) {
	if raw < 0 {
		raw = 0
	} else if raw > MaxRaw {
		raw = MaxRaw
	}
	f.mu.Lock()
	f.values[ch] = raw
	f.mu.Unlock()
}

func (f *Fake) Value(ch Channel) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[ch]
}

func (f *Fake) SetButton(level bool) {
	f.mu.Lock()
	f.button = level
	f.mu.Unlock()
}

// FailInit makes the next Init fail with err.
func (f *Fake) FailInit(err error) {
	f.mu.Lock()
	f.initErr = err
	f.mu.Unlock()
}

// FailChannel makes reads of ch fail with err; nil clears the failure.
func (f *Fake) FailChannel(ch Channel, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.chanErr, ch)
		return
	}
	f.chanErr[ch] = err
}

// FailAll makes every read fail with err; nil restores the transport.
func (f *Fake) FailAll(err error) {
	f.mu.Lock()
	f.allErr = err
	f.mu.Unlock()
}

func (f *Fake) FailButton(err error) {
	f.mu.Lock()
	f.buttonErr = err
	f.mu.Unlock()
}

// Reads returns how many times ch was read.
func (f *Fake) Reads(ch Channel) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[ch]
}

package viz

import (
	"fmt"
	"sync"

	"github.com/san-kum/joydrive/internal/pipeline"
)

// Feed keeps the latest cycle and a short event log for the dashboard. It
// is a pipeline.CycleObserver.
type Feed struct {
	mu     sync.Mutex
	last   pipeline.Frame
	seen   bool
	log    []string
	max    int
	errors int
}

func NewFeed(maxLines int) *Feed {
	if maxLines <= 0 {
		maxLines = 8
	}
	return &Feed{max: maxLines}
}

func (f *Feed) OnCycle(fr pipeline.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last, f.seen = fr, true
	f.errors += len(fr.Errs)
	for _, ev := range fr.Events {
		f.log = append(f.log, fmt.Sprintf("#%d %s", fr.Cycle, ev))
	}
	if n := len(f.log); n > f.max {
		f.log = append(f.log[:0], f.log[n-f.max:]...)
	}
}

// Last returns the latest cycle, if any ran.
func (f *Feed) Last() (pipeline.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.seen
}

// Log returns the latest event lines, oldest first.
func (f *Feed) Log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func (f *Feed) Errors() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors
}

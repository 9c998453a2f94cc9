package control_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/joydrive/internal/control"
	"github.com/san-kum/joydrive/internal/normalize"
)

func sig(v float64) normalize.Signal {
	return normalize.Signal{Value: v, AtRest: v == 0}
}

var rest = normalize.Rest

func kinds(events []control.Event) []control.Kind {
	out := make([]control.Kind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

var _ = Describe("Dispatcher state machine", func() {
	var (
		d   *control.Dispatcher
		now time.Time
	)

	BeforeEach(func() {
		var err error
		d, err = control.New(control.DefaultTuning())
		Expect(err).NotTo(HaveOccurred())
		now = time.Unix(1700000000, 0)
	})

	step := func(x, y normalize.Signal) []control.Event {
		now = now.Add(100 * time.Millisecond)
		return d.Step(x, y, now)
	}

	It("starts in None", func() {
		Expect(d.State()).To(Equal(control.None))
	})

	Context("when the stick rests", func() {
		It("neutralizes once on the first rest cycle", func() {
			Expect(kinds(step(rest, rest))).To(Equal([]control.Kind{control.Neutralize}))
			Expect(step(rest, rest)).To(BeEmpty())
			Expect(step(rest, rest)).To(BeEmpty())
			Expect(d.State()).To(Equal(control.Neutral))
		})

		It("neutralizes once per rest episode", func() {
			seq := []struct{ x, y normalize.Signal }{
				{rest, rest}, {rest, rest},
				{rest, sig(0.5)}, {rest, sig(0.6)},
				{rest, rest}, {rest, rest}, {rest, rest},
				{sig(-0.4), rest},
				{rest, rest},
			}
			var neutralCycles []uint64
			for _, s := range seq {
				for _, ev := range step(s.x, s.y) {
					if ev.Kind == control.Neutralize {
						neutralCycles = append(neutralCycles, ev.Cycle)
					}
				}
			}
			Expect(neutralCycles).To(Equal([]uint64{1, 5, 9}))
		})

		It("stays neutral while the stick wiggles below the thresholds", func() {
			step(rest, rest)
			Expect(step(sig(0.07), sig(-0.06))).To(BeEmpty())
			Expect(d.State()).To(Equal(control.Neutral))
			Expect(step(rest, rest)).To(BeEmpty())
		})
	})

	Context("when both axes are deflected", func() {
		It("fires forward and steer right in the same cycle", func() {
			events := step(sig(0.5), sig(0.8))
			Expect(kinds(events)).To(ConsistOf(control.Forward, control.SteerRight))
			Expect(d.State()).To(Equal(control.AcceleratingForward))
		})

		It("gives Vy priority for the state", func() {
			step(sig(-0.9), sig(-0.3))
			Expect(d.State()).To(Equal(control.AcceleratingBackward))
		})

		It("releases the axis that returns while the other stays active", func() {
			step(sig(0.5), sig(0.5))
			events := step(rest, sig(0.5))
			Expect(events).To(HaveLen(1))
			Expect(events[0].Kind).To(Equal(control.SteerRight))
			Expect(events[0].Release).To(BeTrue())
			Expect(events[0].Angle).To(BeZero())
			Expect(d.State()).To(Equal(control.AcceleratingForward))
		})
	})

	Context("hysteresis", func() {
		It("keeps an action until the release threshold", func() {
			Expect(kinds(step(rest, sig(0.15)))).To(Equal([]control.Kind{control.Forward}))

			events := step(rest, sig(0.09))
			Expect(kinds(events)).To(Equal([]control.Kind{control.Forward}))
			Expect(events[0].Release).To(BeFalse())
			Expect(d.State()).To(Equal(control.AcceleratingForward))

			events = step(rest, sig(0.07))
			Expect(events).To(HaveLen(1))
			Expect(events[0].Release).To(BeTrue())
			Expect(d.State()).To(Equal(control.None))

			Expect(step(rest, sig(0.09))).To(BeEmpty())
			Expect(d.State()).To(Equal(control.None))
		})
	})

	It("suppresses identical consecutive events", func() {
		Expect(step(sig(0.3), sig(0.5))).To(HaveLen(2))
		Expect(step(sig(0.3), sig(0.5))).To(BeEmpty())
		Expect(kinds(step(sig(0.3), sig(0.6)))).To(Equal([]control.Kind{control.Forward}))
	})

	It("does not change state on click", func() {
		step(rest, sig(0.5))
		ev := d.Click(now)
		Expect(ev.Kind).To(Equal(control.Click))
		Expect(ev.Cycle).To(Equal(uint64(1)))
		Expect(d.State()).To(Equal(control.AcceleratingForward))
	})

	It("returns to None on reset", func() {
		step(rest, rest)
		d.Reset()
		Expect(d.State()).To(Equal(control.None))
		Expect(kinds(step(rest, rest))).To(Equal([]control.Kind{control.Neutralize}))
	})
})

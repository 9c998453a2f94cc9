package automation

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/adc"
	"github.com/san-kum/joydrive/internal/control"
	"github.com/san-kum/joydrive/internal/dynamo"
	"github.com/san-kum/joydrive/internal/normalize"
	"github.com/san-kum/joydrive/internal/pipeline"
	"github.com/san-kum/joydrive/internal/sampler"
)

type countingWorld struct{ steps int }

func (w *countingWorld) Step(dt float64) error {
	w.steps++
	return nil
}

func newRunner(t *testing.T) (*Runner, *countingWorld) {
	t.Helper()
	fake := adc.NewFake()
	if err := fake.Init(adc.InitOptions{PollInterval: 100 * time.Millisecond}); err != nil {
		t.Fatalf("init fake: %v", err)
	}
	s := sampler.New(fake, sampler.WithPollInterval(100*time.Millisecond))
	d, err := control.New(control.DefaultTuning())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	l := pipeline.New(s, d, pipeline.WithButton(true))
	for _, ch := range []adc.Channel{adc.CH0, adc.CH1} {
		if err := l.RegisterChannel(ch); err != nil {
			t.Fatalf("register %s: %v", ch, err)
		}
	}
	if err := l.RegisterVy(adc.CH0); err != nil {
		t.Fatal(err)
	}
	if err := l.RegisterVx(adc.CH1); err != nil {
		t.Fatal(err)
	}

	w := &countingWorld{}
	return &Runner{
		Loop:       l,
		Fake:       fake,
		Vx:         adc.CH1,
		Vy:         adc.CH0,
		CalX:       normalize.DefaultCalibration(),
		CalY:       normalize.DefaultCalibration(),
		ActiveHigh: true,
		Interval:   100 * time.Millisecond,
		World:      w,
		Start:      time.Unix(1700000000, 0),
		Log:        zerolog.Nop(),
	}, w
}

func TestRunScenario(t *testing.T) {
	r, world := newRunner(t)
	sc := &Scenario{
		Name: "basic",
		Steps: []ScenarioStep{
			{Label: "launch", Vy: 0.8, DurationMs: 300},
			{Label: "jump", Press: true, DurationMs: 100},
			{Label: "unplugged", Fail: true, DurationMs: 200},
			{DurationMs: 100},
		},
	}

	res, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Cycles != 7 {
		t.Errorf("cycles = %d, want 7", res.Cycles)
	}
	if world.steps != 7 {
		t.Errorf("world steps = %d, want 7", world.steps)
	}
	if len(res.Steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(res.Steps))
	}

	launch := res.Steps[0]
	if launch.Events["forward"] == 0 {
		t.Errorf("launch events = %v, want forward", launch.Events)
	}
	if launch.State != control.AcceleratingForward.String() {
		t.Errorf("launch state = %s", launch.State)
	}

	jump := res.Steps[1]
	if jump.Events["click"] != 1 {
		t.Errorf("clicks = %d, want 1", jump.Events["click"])
	}
	if jump.Events["neutralize"] != 1 {
		t.Errorf("neutralize = %d, want 1", jump.Events["neutralize"])
	}

	unplugged := res.Steps[2]
	if unplugged.Failed != 2 {
		t.Errorf("failed = %d, want 2", unplugged.Failed)
	}
	if unplugged.Errors == 0 {
		t.Error("expected transport errors")
	}
	if res.Steps[3].Label != "step 4" {
		t.Errorf("default label = %q", res.Steps[3].Label)
	}
	if res.Steps[3].Failed != 0 {
		t.Error("transport not restored after the fail step")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r, _ := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Run(ctx, &Scenario{Steps: []ScenarioStep{{Fail: true, DurationMs: 500}}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Cycles != 0 {
		t.Errorf("cycles = %d, want 0", res.Cycles)
	}
	if _, err := r.Fake.ReadChannel(adc.CH0); err != nil {
		t.Errorf("transport still failing: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		steps []ScenarioStep
	}{
		{"empty", nil},
		{"zero duration", []ScenarioStep{{Vy: 0.5}}},
		{"out of range", []ScenarioStep{{Vx: 1.5, DurationMs: 100}}},
		{"negative jitter", []ScenarioStep{{Jitter: -1, DurationMs: 100}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &Scenario{Steps: tt.steps}
			if err := sc.Validate(); !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("Validate() = %v, want a configuration error", err)
			}
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slalom.yaml")
	doc := `name: slalom
seed: 7
steps:
  - {label: launch, vy: 0.8, duration_ms: 2000}
  - {label: left, vy: 0.6, vx: -0.7, duration_ms: 800, jitter: 4}
  - {label: jump, press: true, duration_ms: 300}
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.Name != "slalom" || sc.Seed != 7 || len(sc.Steps) != 3 {
		t.Errorf("got %+v", sc)
	}
	if sc.Steps[1].Vx != -0.7 || sc.Steps[1].Jitter != 4 || !sc.Steps[2].Press {
		t.Errorf("steps = %+v", sc.Steps)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("steps: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenario(bad); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("bad yaml: err = %v", err)
	}
}

func TestJitterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		if j := jitter(rng, 3); j < -3 || j > 3 {
			t.Fatalf("jitter %d outside ±3", j)
		}
	}
	if jitter(rng, 0) != 0 {
		t.Error("zero jitter must not perturb")
	}
}

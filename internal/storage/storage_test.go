package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/joydrive/internal/control"
	"github.com/san-kum/joydrive/internal/dynamo"
	"github.com/san-kum/joydrive/internal/normalize"
	"github.com/san-kum/joydrive/internal/physics"
	"github.com/san-kum/joydrive/internal/pipeline"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fakeTracker struct {
	pos dynamo.Vec3
}

func (f *fakeTracker) Snapshot() []physics.VehicleState {
	return []physics.VehicleState{{Position: f.pos, Speed: 1}}
}

func frame(cycle uint64, events ...control.Kind) pipeline.Frame {
	f := pipeline.Frame{
		Cycle: cycle,
		At:    time.Unix(1700000000, 0).Add(time.Duration(cycle) * 100 * time.Millisecond),
		RawX:  512,
		RawY:  900,
		X:     normalize.Rest,
		Y:     normalize.Signal{Value: 0.75},
		State: control.AcceleratingForward,
	}
	for _, k := range events {
		f.Events = append(f.Events, control.Event{Kind: k, Cycle: cycle})
	}
	return f
}

func TestRecorderRoundTrip(t *testing.T) {
	s := openStore(t)
	tracker := &fakeTracker{}

	rec, err := NewRecorder(s, "lap", "sim", "default", WithTracker(tracker), WithBatch(2))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	points := []dynamo.Vec3{{X: 0, Z: 0}, {X: 3, Z: 0}, {X: 3, Z: 0}, {X: 3, Z: 4}, {X: 3, Y: 1, Z: 4}}
	for i, p := range points {
		tracker.pos = p
		kinds := []control.Kind{control.Forward}
		if i == 2 {
			kinds = append(kinds, control.Click)
		}
		rec.OnCycle(frame(uint64(i+1), kinds...))
	}

	run, err := rec.Close(3, map[string]float64{"effort": 1.5})
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	if run.Cycles != 5 {
		t.Errorf("expected 5 cycles, got %d", run.Cycles)
	}
	if run.Events != 6 || run.Clicks != 1 {
		t.Errorf("expected 6 events and 1 click, got %d %d", run.Events, run.Clicks)
	}
	if run.Distance != 7 {
		t.Errorf("expected ground distance 7, got %f", run.Distance)
	}
	if !strings.HasPrefix(run.Path, "LINESTRING") {
		t.Errorf("expected WKT linestring, got %q", run.Path)
	}

	loaded, err := s.LoadRun(run.ID)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if loaded.Skipped != 3 || loaded.Metrics["effort"] != 1.5 {
		t.Errorf("unexpected run %+v", loaded)
	}

	frames, err := s.LoadFrames(run.ID)
	if err != nil {
		t.Fatalf("load frames: %v", err)
	}
	if len(frames) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(frames))
	}
	if frames[2].Events != "forward,click" {
		t.Errorf("unexpected events %q", frames[2].Events)
	}
	if frames[0].State != control.AcceleratingForward.String() {
		t.Errorf("unexpected state %q", frames[0].State)
	}
	if !frames[4].Tracked || frames[4].PosY != 1 {
		t.Errorf("expected tracked frame, got %+v", frames[4])
	}

	rec.OnCycle(frame(6))
	frames, _ = s.LoadFrames(run.ID)
	if len(frames) != 5 {
		t.Errorf("frames recorded after Close: %d", len(frames))
	}
}

func TestGroundTrackNeedsTwoPoints(t *testing.T) {
	track := GroundTrack([]FrameRecord{{Tracked: true, PosX: 1, PosZ: 1}, {Tracked: false}})
	if !track.IsEmpty() {
		t.Errorf("expected empty track, got %s", track.AsText())
	}
	if track.Length() != 0 {
		t.Errorf("expected zero length, got %f", track.Length())
	}
}

func TestListAndDeleteRuns(t *testing.T) {
	s := openStore(t)
	now := time.Now()
	first, _ := s.CreateRun("a", "joystick", "default", now)
	second, _ := s.CreateRun("b", "sim", "f1", now)

	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID {
		t.Errorf("expected newest first, got %+v", runs)
	}

	if err := s.AddFrames(first.ID, []FrameRecord{{Cycle: 1}, {Cycle: 2}}); err != nil {
		t.Fatalf("add frames: %v", err)
	}
	if err := s.DeleteRun(first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.LoadRun(first.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	frames, _ := s.LoadFrames(first.ID)
	if len(frames) != 0 {
		t.Errorf("expected frames deleted, got %d", len(frames))
	}
	if err := s.DeleteRun(999); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	s := openStore(t)
	run, _ := s.CreateRun("export", "sim", "default", time.Now())
	if err := s.AddFrames(run.ID, []FrameRecord{{Cycle: 2, RawY: 800}, {Cycle: 1, RawY: 700}}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := s.ExportJSON(&buf, run.ID); err != nil {
		t.Fatalf("export: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.Run.Name != "export" || len(data.Frames) != 2 {
		t.Fatalf("unexpected export %+v", data)
	}
	if data.Frames[0].Cycle != 1 {
		t.Errorf("expected frames in cycle order, got %d first", data.Frames[0].Cycle)
	}
}

func TestPoint(t *testing.T) {
	f := frame(7, control.Forward)
	f.Duration = 2 * time.Millisecond
	p := Point(f)

	if p.Name() != measurement {
		t.Errorf("unexpected measurement %s", p.Name())
	}
	fields := map[string]interface{}{}
	for _, field := range p.FieldList() {
		fields[field.Key] = field.Value
	}
	if fields["events"] != int64(1) {
		t.Errorf("expected 1 event, got %v", fields["events"])
	}
	if fields["duration_ms"] != 2.0 {
		t.Errorf("expected 2ms, got %v", fields["duration_ms"])
	}
}

func TestExporterBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx.lp.gz")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e, err := NewExporter(ctx, InfluxOptions{
		URL:        "http://127.0.0.1:1",
		Org:        "joydrive",
		Bucket:     "joydrive",
		BackupPath: path,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	e.OnCycle(frame(1, control.Forward))
	e.OnCycle(frame(2))
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if e.Points() != 2 {
		t.Errorf("expected 2 points, got %d", e.Points())
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	zr, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], measurement+",state=") {
		t.Errorf("unexpected line %q", lines[0])
	}
}

func TestExporterWithoutBackupFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := NewExporter(ctx, InfluxOptions{URL: "http://127.0.0.1:1"}, zerolog.Nop()); err == nil {
		t.Error("expected error without backup path")
	}
}

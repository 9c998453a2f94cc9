package export

import (
	"errors"
	"strings"
	"testing"

	"github.com/peterstace/simplefeatures/geom"
)

func track(coords ...float64) geom.LineString {
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}

func TestParseTrack(t *testing.T) {
	ls, err := ParseTrack("LINESTRING(0 0,3 0,3 4)")
	if err != nil {
		t.Fatalf("ParseTrack: %v", err)
	}
	if got := ls.Length(); got != 7 {
		t.Errorf("length = %v, want 7", got)
	}

	for _, wkt := range []string{"", "LINESTRING EMPTY", "POINT(1 2)"} {
		if _, err := ParseTrack(wkt); !errors.Is(err, ErrNoTrack) {
			t.Errorf("ParseTrack(%q) = %v, want ErrNoTrack", wkt, err)
		}
	}
	if _, err := ParseTrack("LINESTRING(0"); err == nil {
		t.Error("expected a parse error")
	}
}

func TestTrackSVG(t *testing.T) {
	svg, err := TrackSVG(track(0, 0, 10, 0, 10, 10), 200, 100, "#00ff00")
	if err != nil {
		t.Fatalf("TrackSVG: %v", err)
	}
	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Error("not a complete svg document")
	}
	if got := strings.Count(svg, " L"); got != 2 {
		t.Errorf("path segments = %d, want 2", got)
	}
	if !strings.Contains(svg, `stroke="#00ff00"`) {
		t.Error("stroke color missing")
	}

	if _, err := TrackSVG(geom.LineString{}, 200, 100, "#fff"); !errors.Is(err, ErrNoTrack) {
		t.Errorf("empty track: err = %v", err)
	}
}

func TestTrackCanvas(t *testing.T) {
	c, err := TrackCanvas(track(0, 0, 10, 0), 20, 5)
	if err != nil {
		t.Fatalf("TrackCanvas: %v", err)
	}
	lit := 0
	for y := 0; y < c.Height*4; y++ {
		for x := 0; x < c.Width*2; x++ {
			if c.IsSet(x, y) {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatal("nothing drawn")
	}

	svg := CanvasToSVG(c, 4, "#ffffff")
	if got := strings.Count(svg, "<circle"); got != lit {
		t.Errorf("circles = %d, want one per lit dot (%d)", got, lit)
	}
}

func TestCanvasToSVGNil(t *testing.T) {
	if got := CanvasToSVG(nil, 1, "#fff"); got != "" {
		t.Errorf("got %q", got)
	}
}

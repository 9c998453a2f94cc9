// Package export renders a run's ground track as SVG or as a Braille
// canvas.
package export

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/san-kum/joydrive/internal/viz"
)

var ErrNoTrack = errors.New("run has no ground track")

// ParseTrack decodes the WKT path stored with a run.
func ParseTrack(wkt string) (geom.LineString, error) {
	if wkt == "" {
		return geom.LineString{}, ErrNoTrack
	}
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("parse track: %w", err)
	}
	ls, ok := g.AsLineString()
	if !ok || ls.IsEmpty() {
		return geom.LineString{}, ErrNoTrack
	}
	return ls, nil
}

type bounds struct {
	minX, maxX, minZ, maxZ float64
}

// trackBounds returns the padded extent of the points, at least one meter
// on each side.
func trackBounds(pts []geom.XY) bounds {
	b := bounds{pts[0].X, pts[0].X, pts[0].Y, pts[0].Y}
	for _, p := range pts {
		b.minX, b.maxX = math.Min(b.minX, p.X), math.Max(b.maxX, p.X)
		b.minZ, b.maxZ = math.Min(b.minZ, p.Y), math.Max(b.maxZ, p.Y)
	}
	rx := math.Max(b.maxX-b.minX, 1)
	rz := math.Max(b.maxZ-b.minZ, 1)
	b.minX -= rx * 0.1
	b.maxX += rx * 0.1
	b.minZ -= rz * 0.1
	b.maxZ += rz * 0.1
	return b
}

func points(track geom.LineString) []geom.XY {
	seq := track.Coordinates()
	pts := make([]geom.XY, seq.Length())
	for i := range pts {
		pts[i] = seq.GetXY(i)
	}
	return pts
}

// TrackSVG draws the track as a single path. Ground x runs right and z
// runs up. The start is marked with a dot.
func TrackSVG(track geom.LineString, width, height int, stroke string) (string, error) {
	pts := points(track)
	if len(pts) < 2 {
		return "", ErrNoTrack
	}
	b := trackBounds(pts)
	rx, rz := b.maxX-b.minX, b.maxZ-b.minZ

	project := func(p geom.XY) (float64, float64) {
		return (p.X - b.minX) / rx * float64(width),
			float64(height) - (p.Y-b.minZ)/rz*float64(height)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, stroke)

	for i, p := range pts {
		x, y := project(p)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")

	sx, sy := project(pts[0])
	fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"3\" fill=\"%s\"/>\n</svg>", sx, sy, stroke)
	return sb.String(), nil
}

// TrackCanvas draws the track onto a Braille canvas of w x h cells,
// scaled to fit.
func TrackCanvas(track geom.LineString, w, h int) (*viz.Canvas, error) {
	pts := points(track)
	if len(pts) < 2 {
		return nil, ErrNoTrack
	}
	b := trackBounds(pts)
	vp := viz.Viewport{
		CenterX: (b.minX + b.maxX) / 2,
		CenterZ: (b.minZ + b.maxZ) / 2,
		Width:   w*2 - 1,
		Height:  h*4 - 1,
	}
	vp.PixelsPerMeter = math.Min(float64(vp.Width)/(b.maxX-b.minX), float64(vp.Height)/(b.maxZ-b.minZ))

	c := viz.NewCanvas(w, h)
	x0, y0 := vp.Project(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		x1, y1 := vp.Project(p.X, p.Y)
		c.DrawLine(x0, y0, x1, y1)
		x0, y0 = x1, y1
	}
	return c, nil
}

// braille dot bits by row and column, matching viz.Canvas.
var dotBits = [4][2]int{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// CanvasToSVG renders every lit dot of a Braille canvas as a circle.
func CanvasToSVG(canvas *viz.Canvas, scale float64, fill string) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="%s">
`, width, height, width, height, fill)

	dotRadius := scale * 0.4
	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			r := canvas.Grid[row][col]
			if r <= 0x2800 {
				continue
			}
			pattern := int(r - 0x2800)
			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&dotBits[dy][dx] != 0 {
						cx := baseX + float64(dx)*scale + scale/2
						cy := baseY + float64(dy)*scale + scale/2
						fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", cx, cy, dotRadius)
					}
				}
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

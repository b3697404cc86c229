package geo

import (
	"errors"
	"math"

	"github.com/Softhook/elite-sub000/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Silhouettes are handled as open vertex rings in world coordinates; the
// closing vertex is added only when converting to a geom.Polygon.

// ErrInvalidRing is returned when a vertex ring cannot form a polygon.
var ErrInvalidRing = errors.New("ring needs at least 3 finite vertices")

// Transform rotates local offsets by angle and translates them to origin.
func Transform(origin core.Vec2, angle float64, local []core.Vec2) []core.Vec2 {
	sin, cos := math.Sincos(angle)
	out := make([]core.Vec2, len(local))
	for i, v := range local {
		out[i] = core.Vec2{
			X: origin.X + v.X*cos - v.Y*sin,
			Y: origin.Y + v.X*sin + v.Y*cos,
		}
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the vertices.
func Bounds(vs []core.Vec2) core.Rect {
	if len(vs) == 0 {
		return core.Rect{}
	}
	r := core.Rect{Min: vs[0], Max: vs[0]}
	for _, v := range vs[1:] {
		r.Min.X = math.Min(r.Min.X, v.X)
		r.Min.Y = math.Min(r.Min.Y, v.Y)
		r.Max.X = math.Max(r.Max.X, v.X)
		r.Max.Y = math.Max(r.Max.Y, v.Y)
	}
	return r
}

// Polygon converts an open vertex ring into a polygon. The ring must be
// closed-able into a simple ring; self-intersecting outlines are rejected.
func Polygon(vs []core.Vec2) (geom.Polygon, error) {
	if len(vs) < 3 {
		return geom.Polygon{}, ErrInvalidRing
	}
	flat := make([]float64, 0, (len(vs)+1)*2)
	for _, v := range vs {
		if !v.IsFinite() {
			return geom.Polygon{}, ErrInvalidRing
		}
		flat = append(flat, v.X, v.Y)
	}
	flat = append(flat, vs[0].X, vs[0].Y)

	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.Polygon{}, err
	}
	return geom.NewPolygon([]geom.LineString{ring})
}

// Ring returns the exterior ring of p as open vertices, without the
// closing point. An empty polygon yields nil.
func Ring(p geom.Polygon) []core.Vec2 {
	if p.IsEmpty() {
		return nil
	}
	seq := p.ExteriorRing().Coordinates()
	n := seq.Length() - 1
	if n < 3 {
		return nil
	}
	out := make([]core.Vec2, n)
	for i := range out {
		xy := seq.GetXY(i)
		out[i] = core.Vec2{X: xy.X, Y: xy.Y}
	}
	return out
}

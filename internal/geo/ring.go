package geo

import (
	"fmt"

	"github.com/Softhook/elite-sub000/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ParseRing decodes a GeoJSON Polygon into its open exterior ring.
// Input format: {"type":"Polygon","coordinates":[[[x1,y1],...,[x1,y1]]]}
func ParseRing(input []byte) ([]core.Vec2, error) {
	g, err := geom.UnmarshalGeoJSON(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ring GeoJSON: %w", err)
	}
	poly, ok := g.AsPolygon()
	if !ok {
		return nil, fmt.Errorf("ring must be a Polygon, got %s", g.Type())
	}
	ring := Ring(poly)
	if ring == nil {
		return nil, ErrInvalidRing
	}
	return ring, nil
}

// FormatRing encodes a vertex ring as a GeoJSON Polygon, the format read
// by ParseRing. The ring must form a valid polygon.
func FormatRing(vs []core.Vec2) ([]byte, error) {
	poly, err := Polygon(vs)
	if err != nil {
		return nil, err
	}
	return poly.MarshalJSON()
}

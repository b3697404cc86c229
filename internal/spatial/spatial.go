// Package spatial indexes descriptor anchors for radius queries.
//
// Anchors never move, so indexes are built once and are read-only after
// construction.
package spatial

import (
	"fmt"
	"math"

	"github.com/Softhook/elite-sub000/pkg/core"
)

const (
	KindLinear = "linear"
	KindGrid   = "grid"
)

// Index returns the ids of all points within radius of center.
type Index interface {
	// Query appends matching ids to buf[:0] and returns it. Order is
	// unspecified.
	Query(center core.Vec2, radius float64, buf []int) []int
	Len() int
}

// New builds an index of the given kind. ids[i] is the id of points[i].
func New(kind string, ids []int, points []core.Vec2, cellSize float64) (Index, error) {
	if len(ids) != len(points) {
		return nil, fmt.Errorf("ids and points differ in length: %d != %d", len(ids), len(points))
	}
	switch kind {
	case "", KindLinear:
		return NewLinear(ids, points), nil
	case KindGrid:
		if !(cellSize > 0) || math.IsInf(cellSize, 0) {
			return nil, fmt.Errorf("invalid grid cell size %v", cellSize)
		}
		return NewGrid(ids, points, cellSize), nil
	default:
		return nil, fmt.Errorf("unknown index kind %q", kind)
	}
}

type entry struct {
	id int
	at core.Vec2
}

// Linear scans every point on each query.
type Linear struct {
	entries []entry
}

func NewLinear(ids []int, points []core.Vec2) *Linear {
	l := &Linear{entries: make([]entry, len(ids))}
	for i, id := range ids {
		l.entries[i] = entry{id: id, at: points[i]}
	}
	return l
}

func (l *Linear) Query(center core.Vec2, radius float64, buf []int) []int {
	buf = buf[:0]
	for _, e := range l.entries {
		if e.at.Dist(center) <= radius {
			buf = append(buf, e.id)
		}
	}
	return buf
}

func (l *Linear) Len() int { return len(l.entries) }

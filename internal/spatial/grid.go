package spatial

import (
	"math"

	"github.com/Softhook/elite-sub000/pkg/core"
)

type cell struct{ x, y int }

// Grid buckets points into square cells so a query only visits the cells
// overlapping its bounding square.
type Grid struct {
	size  float64
	cells map[cell][]entry
	n     int
	// bounds of occupied cells, used to clip huge query radii
	lo, hi cell
}

func NewGrid(ids []int, points []core.Vec2, cellSize float64) *Grid {
	g := &Grid{size: cellSize, cells: make(map[cell][]entry), n: len(ids)}
	for i, id := range ids {
		c := g.cellOf(points[i])
		if i == 0 {
			g.lo, g.hi = c, c
		}
		g.lo = cell{min(g.lo.x, c.x), min(g.lo.y, c.y)}
		g.hi = cell{max(g.hi.x, c.x), max(g.hi.y, c.y)}
		g.cells[c] = append(g.cells[c], entry{id: id, at: points[i]})
	}
	return g
}

func (g *Grid) cellOf(p core.Vec2) cell {
	return cell{int(math.Floor(p.X / g.size)), int(math.Floor(p.Y / g.size))}
}

func (g *Grid) Query(center core.Vec2, radius float64, buf []int) []int {
	buf = buf[:0]
	if g.n == 0 || !(radius >= 0) || !center.IsFinite() {
		return buf
	}

	from := g.clip(center.Sub(core.Vec2{X: radius, Y: radius}))
	to := g.clip(center.Add(core.Vec2{X: radius, Y: radius}))
	for x := from.x; x <= to.x; x++ {
		for y := from.y; y <= to.y; y++ {
			for _, e := range g.cells[cell{x, y}] {
				if e.at.Dist(center) <= radius {
					buf = append(buf, e.id)
				}
			}
		}
	}
	return buf
}

// clip maps p to its cell, clamped to the occupied cell range.
func (g *Grid) clip(p core.Vec2) cell {
	fx := math.Max(float64(g.lo.x), math.Min(float64(g.hi.x), math.Floor(p.X/g.size)))
	fy := math.Max(float64(g.lo.y), math.Min(float64(g.hi.y), math.Floor(p.Y/g.size)))
	return cell{int(fx), int(fy)}
}

func (g *Grid) Len() int { return g.n }

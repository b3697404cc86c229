package spatial

import (
	"math"
	"slices"
	"testing"

	"github.com/Softhook/elite-sub000/internal/rng"
	"github.com/Softhook/elite-sub000/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPoints(n int, spread float64, seed uint64) ([]int, []core.Vec2) {
	src := rng.New(seed)
	ids := make([]int, n)
	pts := make([]core.Vec2, n)
	for i := range pts {
		ids[i] = i
		pts[i] = core.Vec2{X: rng.Uniform(src, -spread, spread), Y: rng.Uniform(src, -spread, spread)}
	}
	return ids, pts
}

func TestNew(t *testing.T) {
	ids, pts := randomPoints(10, 100, 1)

	tests := []struct {
		name     string
		kind     string
		cellSize float64
		wantErr  bool
	}{
		{"default", "", 0, false},
		{"linear", KindLinear, 0, false},
		{"grid", KindGrid, 50, false},
		{"grid zero cell", KindGrid, 0, true},
		{"grid nan cell", KindGrid, math.NaN(), true},
		{"unknown", "quadtree", 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := New(tt.kind, ids, pts, tt.cellSize)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 10, idx.Len())
		})
	}

	_, err := New(KindLinear, ids[:3], pts, 0)
	require.Error(t, err)
}

func TestLinear_Query(t *testing.T) {
	ids := []int{4, 9, 2}
	pts := []core.Vec2{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 30, Y: 0}}
	idx := NewLinear(ids, pts)

	got := idx.Query(core.Vec2{}, 10, nil)
	assert.ElementsMatch(t, []int{4, 9}, got)

	assert.Empty(t, idx.Query(core.Vec2{X: 100}, 5, got))
	assert.Empty(t, idx.Query(core.Vec2{}, -1, nil))
}

func TestGrid_MatchesLinear(t *testing.T) {
	ids, pts := randomPoints(400, 1000, 7)
	linear := NewLinear(ids, pts)
	src := rng.New(99)

	for _, cellSize := range []float64{25, 200, 5000} {
		grid := NewGrid(ids, pts, cellSize)
		var a, b []int
		for range 200 {
			center := core.Vec2{X: rng.Uniform(src, -1500, 1500), Y: rng.Uniform(src, -1500, 1500)}
			radius := rng.Uniform(src, 0, 800)

			a = linear.Query(center, radius, a)
			b = grid.Query(center, radius, b)
			slices.Sort(a)
			slices.Sort(b)
			require.Equal(t, a, b, "cell=%v center=%v radius=%v", cellSize, center, radius)
		}

		all := grid.Query(core.Vec2{}, math.Inf(1), nil)
		assert.Len(t, all, 400)
	}
}

func TestGrid_Empty(t *testing.T) {
	grid := NewGrid(nil, nil, 100)
	assert.Zero(t, grid.Len())
	assert.Empty(t, grid.Query(core.Vec2{}, 1000, nil))
	assert.Empty(t, NewGrid([]int{1}, []core.Vec2{{}}, 100).Query(core.Vec2{X: math.NaN()}, 10, nil))
}

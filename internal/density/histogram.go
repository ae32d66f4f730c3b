package density

import (
	"math"

	"github.com/banshee-data/fieldheat/internal/geometry"
	"gonum.org/v1/gonum/floats"
)

// Histogram accumulates point weights into an ny×nx grid (row = y bin).
// Bins are half-open except the last on each axis, which also includes its
// right edge. Points outside the edges, or with a non-finite coordinate, are
// ignored. When uniform is true every point weighs 1.
func Histogram(points []geometry.Point, xEdges, yEdges []float64, uniform bool) [][]float64 {
	nx, ny := len(xEdges)-1, len(yEdges)-1
	h := newGrid(ny, nx, 0)
	for _, p := range points {
		i := binIndex(xEdges, p.X)
		j := binIndex(yEdges, p.Y)
		if i < 0 || j < 0 {
			continue
		}
		w := p.Weight
		if uniform {
			w = 1
		}
		h[j][i] += w
	}
	return h
}

// binIndex returns the bin holding v, or -1 when v is outside the edges.
func binIndex(edges []float64, v float64) int {
	if math.IsNaN(v) || len(edges) < 2 {
		return -1
	}
	last := len(edges) - 1
	if v == edges[last] {
		return last - 1
	}
	return floats.Within(edges, v)
}

func newGrid(ny, nx int, fill float64) [][]float64 {
	g := make([][]float64, ny)
	for j := range g {
		row := make([]float64, nx)
		if fill != 0 {
			for i := range row {
				row[i] = fill
			}
		}
		g[j] = row
	}
	return g
}

package density

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/banshee-data/fieldheat/internal/geometry"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// displayQuantile is the upper clip of the presentation colour range.
const displayQuantile = 0.99

// Grid is one smoothed occupancy map. Values is indexed [y][x] and holds
// NaN outside the field mask.
type Grid struct {
	Values [][]float64
	XEdges []float64
	YEdges []float64
	Mask   [][]bool

	// Points is the number of input points that contributed to the grid.
	Points int
}

// Estimator produces grids for one fixed field template.
type Estimator struct {
	Field geometry.Field

	// UniformWeights ignores point weights and counts each point once.
	UniformWeights bool

	mask [][]bool
}

// NewEstimator precomputes the field mask.
func NewEstimator(field geometry.Field) *Estimator {
	return &Estimator{Field: field, mask: field.Mask()}
}

// Estimate builds the grid for a set of mapped points. An empty point set
// yields a grid of zeros inside the mask.
func (e *Estimator) Estimate(points []geometry.Point) *Grid {
	xEdges, yEdges := e.Field.XEdges(), e.Field.YEdges()
	values := Histogram(points, xEdges, yEdges, e.UniformWeights)
	GaussianFilter(values, e.Field.Sigma)

	mask := e.mask
	if mask == nil {
		mask = e.Field.Mask()
	}
	for j, row := range values {
		for i := range row {
			if !mask[j][i] {
				row[i] = math.NaN()
			}
		}
	}
	return &Grid{Values: values, XEdges: xEdges, YEdges: yEdges, Mask: mask, Points: len(points)}
}

// NX returns the number of columns.
func (g *Grid) NX() int { return len(g.XEdges) - 1 }

// NY returns the number of rows.
func (g *Grid) NY() int { return len(g.YEdges) - 1 }

// finiteValues returns the finite in-mask values.
func (g *Grid) finiteValues() []float64 {
	var vals []float64
	for j, row := range g.Values {
		for i, v := range row {
			if g.Mask[j][i] && !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
	}
	return vals
}

// Sum returns the total in-mask weight.
func (g *Grid) Sum() float64 {
	return floats.Sum(g.finiteValues())
}

// Max returns the largest in-mask value, or 0 for an empty grid.
func (g *Grid) Max() float64 {
	vals := g.finiteValues()
	if len(vals) == 0 {
		return 0
	}
	return floats.Max(vals)
}

// DisplayRange returns the conventional colour range [0, P99] over finite
// in-mask values. ok is false when the grid has no finite values. This is a
// presentation helper; it does not change Values.
func (g *Grid) DisplayRange() (lo, hi float64, ok bool) {
	vals := g.finiteValues()
	if len(vals) == 0 {
		return 0, 0, false
	}
	sort.Float64s(vals)
	return 0, stat.Quantile(displayQuantile, stat.LinInterp, vals, nil), true
}

// nullable encodes NaN and ±Inf as JSON null.
type nullable float64

func (v nullable) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

type gridJSON struct {
	NX     int          `json:"nx"`
	NY     int          `json:"ny"`
	XEdges []float64    `json:"x_edges"`
	YEdges []float64    `json:"y_edges"`
	Values [][]nullable `json:"values"`
	Mask   [][]bool     `json:"mask"`
	Points int          `json:"points"`
}

// MarshalJSON writes values row-major ([y][x]) with out-of-mask cells null.
func (g *Grid) MarshalJSON() ([]byte, error) {
	out := gridJSON{
		NX:     g.NX(),
		NY:     g.NY(),
		XEdges: g.XEdges,
		YEdges: g.YEdges,
		Mask:   g.Mask,
		Points: g.Points,
		Values: make([][]nullable, len(g.Values)),
	}
	for j, row := range g.Values {
		r := make([]nullable, len(row))
		for i, v := range row {
			r[i] = nullable(v)
		}
		out.Values[j] = r
	}
	return json.Marshal(out)
}

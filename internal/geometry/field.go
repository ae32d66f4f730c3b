package geometry

import (
	"fmt"
	"math"

	"github.com/banshee-data/fieldheat/internal/config"
	"gonum.org/v1/gonum/floats"
)

// Field is the elliptical playing-surface template with its histogram grid.
// A and B are the semi-axes in metres; the grid spans [-A,A]×[-B,B] with
// NX columns and NY rows. Sigma is the smoothing width in bin units.
type Field struct {
	A, B   float64
	NX, NY int
	Sigma  float64
}

// FieldConfigFromAnalytics builds the field template from the analytics config.
func FieldConfigFromAnalytics(cfg *config.AnalyticsConfig) Field {
	return Field{
		A:     cfg.GetSemiMajorMeters(),
		B:     cfg.GetSemiMinorMeters(),
		NX:    cfg.GetGridNX(),
		NY:    cfg.GetGridNY(),
		Sigma: cfg.GetSmoothingSigma(),
	}
}

// Validate reports an unusable template.
func (f Field) Validate() error {
	if !(f.A > 0) || !(f.B > 0) || math.IsInf(f.A, 0) || math.IsInf(f.B, 0) {
		return fmt.Errorf("field semi-axes must be positive and finite, got a=%v b=%v", f.A, f.B)
	}
	if f.NX < 1 || f.NY < 1 {
		return fmt.Errorf("grid resolution must be at least 1x1, got %dx%d", f.NX, f.NY)
	}
	return nil
}

// XEdges returns the NX+1 bin edges along x.
func (f Field) XEdges() []float64 { return linspace(-f.A, f.A, f.NX+1) }

// YEdges returns the NY+1 bin edges along y.
func (f Field) YEdges() []float64 { return linspace(-f.B, f.B, f.NY+1) }

// InField reports whether (x, y) lies on or inside the ellipse.
func (f Field) InField(x, y float64) bool {
	return (x*x)/(f.A*f.A)+(y*y)/(f.B*f.B) <= 1.0
}

// Mask returns an NY×NX grid (row = y bin) that is true where the cell
// centre lies inside the ellipse.
func (f Field) Mask() [][]bool {
	xc := centres(f.XEdges())
	yc := centres(f.YEdges())
	mask := make([][]bool, f.NY)
	for j, y := range yc {
		row := make([]bool, f.NX)
		for i, x := range xc {
			row[i] = f.InField(x, y)
		}
		mask[j] = row
	}
	return mask
}

// LeftFocus and RightFocus are the goal-end reference points at (∓A, 0).
func (f Field) LeftFocus() Point  { return Point{X: -f.A} }
func (f Field) RightFocus() Point { return Point{X: f.A} }

// linspace matches numpy.linspace with endpoint=true: the last value is
// exactly hi.
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	floats.Span(out, lo, hi)
	out[n-1] = hi
	return out
}

func centres(edges []float64) []float64 {
	out := make([]float64, len(edges)-1)
	for i := range out {
		out[i] = (edges[i] + edges[i+1]) / 2
	}
	return out
}

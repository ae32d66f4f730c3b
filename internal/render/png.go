package render

import (
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/fieldheat/internal/density"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	pngWidth     = 11 * vg.Inch
	pngHeight    = 8 * vg.Inch
	ovalSegments = 600
)

// gridXYZ adapts a density grid to plotter.GridXYZ. Columns are x bins and
// rows are y bins; X and Y return bin centres.
type gridXYZ struct {
	g *density.Grid
}

func (a gridXYZ) Dims() (c, r int)   { return a.g.NX(), a.g.NY() }
func (a gridXYZ) Z(c, r int) float64 { return a.g.Values[r][c] }
func (a gridXYZ) X(c int) float64    { return (a.g.XEdges[c] + a.g.XEdges[c+1]) / 2 }
func (a gridXYZ) Y(r int) float64    { return (a.g.YEdges[r] + a.g.YEdges[r+1]) / 2 }

// displayMax is the colour scale ceiling: the P99 display range, or 1 when
// the grid has no positive values.
func displayMax(g *density.Grid) float64 {
	_, hi, ok := g.DisplayRange()
	if !ok || !(hi > 0) || math.IsInf(hi, 0) {
		return 1
	}
	return hi
}

// ovalXYs traces the field ellipse.
func ovalXYs(a, b float64) plotter.XYs {
	pts := make(plotter.XYs, ovalSegments)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / float64(ovalSegments)
		pts[i] = plotter.XY{X: a * math.Cos(t), Y: b * math.Sin(t)}
	}
	return pts
}

// HeatmapPlot draws g over a filled oval with semi-axes a and b. Values above
// the P99 ceiling clip to the top colour; cells outside the mask are left
// transparent.
func HeatmapPlot(g *density.Grid, a, b float64, title string) (*plot.Plot, error) {
	if g == nil || g.NX() < 1 || g.NY() < 1 {
		return nil, fmt.Errorf("empty grid")
	}

	p := plot.New()
	p.Title.Text = title
	p.HideAxes()
	p.X.Min, p.X.Max = -a, a
	p.Y.Min, p.Y.Max = -b, b

	oval, err := plotter.NewPolygon(ovalXYs(a, b))
	if err != nil {
		return nil, fmt.Errorf("oval: %w", err)
	}
	oval.Color = fieldColour
	oval.LineStyle.Width = 0
	p.Add(oval)

	pal := heatPalette()
	colours := pal.Colors()
	hm := plotter.NewHeatMap(gridXYZ{g: g}, pal)
	hm.Min = 0
	hm.Max = displayMax(g)
	hm.Underflow = colours[0]
	hm.Overflow = colours[len(colours)-1]
	hm.NaN = nil
	p.Add(hm)

	return p, nil
}

// WritePNG renders g as a PNG to w.
func WritePNG(w io.Writer, g *density.Grid, a, b float64, title string) error {
	p, err := HeatmapPlot(g, a, b, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

package render

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/banshee-data/fieldheat/internal/density"
	"github.com/banshee-data/fieldheat/internal/report"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// maxHTMLCells caps the cells per chart; larger grids are block-averaged.
const maxHTMLCells = 12000

// HTMLOptions configures the report page.
type HTMLOptions struct {
	// AssetsHost overrides the echarts script location; empty keeps the
	// library default.
	AssetsHost string
}

func (o HTMLOptions) initOpts(title, height string) opts.Initialization {
	return opts.Initialization{PageTitle: title, Width: "900px", Height: height, AssetsHost: o.AssetsHost}
}

// heatmapChart builds an echarts heatmap of one grid. Out-of-mask cells are
// omitted.
func heatmapChart(g *density.Grid, title, subtitle string, o HTMLOptions) *charts.HeatMap {
	step := 1
	for (g.NX()/step)*(g.NY()/step) > maxHTMLCells {
		step++
	}
	nx, ny := g.NX()/step, g.NY()/step

	xs := make([]string, nx)
	for i := range xs {
		xs[i] = strconv.FormatFloat((g.XEdges[i*step]+g.XEdges[(i+1)*step])/2, 'f', 1, 64)
	}
	ys := make([]string, ny)
	for j := range ys {
		ys[j] = strconv.FormatFloat((g.YEdges[j*step]+g.YEdges[(j+1)*step])/2, 'f', 1, 64)
	}

	data := make([]opts.HeatMapData, 0, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v, ok := blockMean(g, i*step, j*step, step)
			if !ok {
				continue
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{i, j, v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(o.initOpts(title, "700px")),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys, Name: "Y (m)", NameLocation: "middle", NameGap: 35}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(displayMax(g)),
			InRange:    &opts.VisualMapInRange{Color: viridisStops},
		}),
	)
	hm.SetXAxis(xs).AddSeries(title, data)
	return hm
}

// blockMean averages the in-mask cells of a step×step block.
func blockMean(g *density.Grid, i0, j0, step int) (float64, bool) {
	var sum float64
	n := 0
	for j := j0; j < j0+step; j++ {
		for i := i0; i < i0+step; i++ {
			v := g.Values[j][i]
			if !g.Mask[j][i] || math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// speedChart plots each profiled entity's average and max speed.
func speedChart(a *report.Analytics, o HTMLOptions) *charts.Bar {
	u := a.Units()
	ids := make([]string, len(a.Profiles))
	avg := make([]opts.BarData, len(a.Profiles))
	top := make([]opts.BarData, len(a.Profiles))
	for i, p := range a.Profiles {
		ids[i] = strconv.FormatInt(p.EntityID, 10)
		avg[i] = opts.BarData{Value: round2(p.AverageSpeed)}
		top[i] = opts.BarData{Value: round2(p.MaxSpeed)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(o.initOpts("Speeds", "480px")),
		charts.WithTitleOpts(opts.Title{Title: "Entity speeds", Subtitle: fmt.Sprintf("mode=%s units=%s", a.Mode, u.SpeedLabel())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "entity", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: u.SpeedLabel()}),
	)
	bar.SetXAxis(ids).
		AddSeries("average", avg).
		AddSeries("max", top)
	return bar
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// WriteHTML renders the report page: the overall and zone heatmaps and, when
// there are profiles, the speed chart.
func WriteHTML(w io.Writer, a *report.Analytics, o HTMLOptions) error {
	page := components.NewPage()
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	page.PageTitle = "fieldheat: " + a.Label

	if a.Overall != nil {
		page.AddCharts(heatmapChart(a.Overall, "Overall",
			fmt.Sprintf("label=%s points=%d", a.Label, a.Overall.Points), o))
	}
	for _, zg := range a.Zones {
		page.AddCharts(heatmapChart(zg.Grid, string(zg.Zone),
			fmt.Sprintf("points=%d", zg.Grid.Points), o))
	}
	if len(a.Profiles) > 0 {
		page.AddCharts(speedChart(a, o))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

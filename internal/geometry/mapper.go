package geometry

import (
	"math"

	"github.com/banshee-data/fieldheat/internal/ingest"
)

const (
	// boxPadding is the fraction of each span added on both sides.
	boxPadding = 0.02
	// minSpan keeps degenerate boxes invertible.
	minSpan = 1e-9
)

// Point is a mapped field position in metres with its density weight.
type Point struct {
	X, Y   float64
	Weight float64
}

// BoundingBox is the padded raw-coordinate extent of one dataset.
type BoundingBox struct {
	XMin, XMax float64
	YMin, YMax float64
}

// ComputeBoundingBox returns the padded extent of every record centre.
// It returns false when the dataset has no records.
func ComputeBoundingBox(ds *ingest.Dataset) (BoundingBox, bool) {
	if ds.Empty() {
		return BoundingBox{}, false
	}
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, r := range ds.Records {
		xmin = math.Min(xmin, r.CX)
		xmax = math.Max(xmax, r.CX)
		ymin = math.Min(ymin, r.CY)
		ymax = math.Max(ymax, r.CY)
	}
	dx := math.Max(xmax-xmin, minSpan)
	dy := math.Max(ymax-ymin, minSpan)
	return BoundingBox{
		XMin: xmin - dx*boxPadding,
		XMax: xmax + dx*boxPadding,
		YMin: ymin - dy*boxPadding,
		YMax: ymax + dy*boxPadding,
	}, true
}

// Mapper projects raw coordinates onto the field using one fixed box.
// It is read-only after construction and safe for concurrent use.
type Mapper struct {
	Box   BoundingBox
	Field Field
}

// NewMapper fixes the box and field for a run.
func NewMapper(box BoundingBox, field Field) *Mapper {
	return &Mapper{Box: box, Field: field}
}

// Map converts a raw (x, y) into field metres.
func (m *Mapper) Map(x, y float64) (float64, float64) {
	a, b := m.Field.A, m.Field.B
	xm := (x-m.Box.XMin)/math.Max(minSpan, m.Box.XMax-m.Box.XMin)*(2*a) - a
	ym := (y-m.Box.YMin)/math.Max(minSpan, m.Box.YMax-m.Box.YMin)*(2*b) - b
	return xm, ym
}

// MapRecord maps a record centre and attaches its density weight.
func (m *Mapper) MapRecord(r ingest.Record) Point {
	x, y := m.Map(r.CX, r.CY)
	return Point{X: x, Y: y, Weight: r.Weight()}
}

// MapRecords maps every record, preserving order.
func (m *Mapper) MapRecords(recs []ingest.Record) []Point {
	out := make([]Point, len(recs))
	for i, r := range recs {
		out[i] = m.MapRecord(r)
	}
	return out
}

package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SchemaKind identifies which export layout a table uses.
type SchemaKind int

const (
	SchemaBoundingBox SchemaKind = iota
	SchemaTracking
)

func (s SchemaKind) String() string {
	switch s {
	case SchemaBoundingBox:
		return "bounding_box"
	case SchemaTracking:
		return "tracking"
	}
	return "unknown"
}

// Column layouts of the two recognised exports.
var (
	BoundingBoxColumns = []string{
		"frame_id", "player_id", "timestamp_s",
		"x1", "y1", "x2", "y2", "cx", "cy", "w", "h", "confidence",
	}
	TrackingColumns = []string{
		"frame_id", "track_id", "x", "y",
		"width", "height", "conf", "class_id", "visibility",
	}
)

// SchemaError reports a table from which no detection centre can be derived.
// It lists, for each known layout, the columns that layout needs and the
// table lacks.
type SchemaError struct {
	MissingBoundingBox []string
	MissingTracking    []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unrecognised detection schema: bounding-box layout missing [%s]; tracking layout missing [%s]",
		strings.Join(e.MissingBoundingBox, ", "), strings.Join(e.MissingTracking, ", "))
}

// DetectSchema picks the layout from the header. Any tracker-only column
// (track_id, x, width) selects the tracking layout.
func DetectSchema(header []string) SchemaKind {
	cols := columnIndex(header)
	for _, c := range []string{"track_id", "x", "width"} {
		if _, ok := cols[c]; ok {
			return SchemaTracking
		}
	}
	return SchemaBoundingBox
}

// Normalize converts a table into a sorted unified dataset.
// A table with zero usable rows yields an empty dataset, not an error.
func Normalize(t *Table) (*Dataset, error) {
	cols := columnIndex(t.Header)
	cxSrc, okX := centreSource(cols, "cx", "x1", "x2", "x", "width")
	cySrc, okY := centreSource(cols, "cy", "y1", "y2", "y", "height")
	if !okX || !okY {
		return nil, &SchemaError{
			MissingBoundingBox: missingColumns(cols, BoundingBoxColumns),
			MissingTracking:    missingColumns(cols, TrackingColumns),
		}
	}

	schema := DetectSchema(t.Header)
	var normalize func(row []string) Record
	switch schema {
	case SchemaTracking:
		normalize = trackingNormalizer(cols)
	default:
		normalize = boundingBoxNormalizer(cols)
	}

	records := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := normalize(row)
		rec.CX = cxSrc(row)
		rec.CY = cySrc(row)
		if !isFinite(rec.CX) || !isFinite(rec.CY) {
			continue
		}
		records = append(records, rec)
	}

	ds := NewDataset(schema, records)
	ds.InputRows = len(t.Rows)
	return ds, nil
}

// boundingBoxNormalizer maps bounding-box export rows. player_id falls back
// to track_id and confidence to conf when those columns exist.
func boundingBoxNormalizer(cols map[string]int) func([]string) Record {
	entityCol := firstPresent(cols, "player_id", "track_id")
	confCol := firstPresent(cols, "confidence", "conf")
	wCol := firstPresent(cols, "w", "width")
	hCol := firstPresent(cols, "h", "height")
	return func(row []string) Record {
		return Record{
			FrameID:    intCell(row, cols, "frame_id"),
			EntityID:   intCell(row, cols, entityCol),
			TimestampS: floatCell(row, cols, "timestamp_s"),
			X1:         floatCell(row, cols, "x1"),
			Y1:         floatCell(row, cols, "y1"),
			X2:         floatCell(row, cols, "x2"),
			Y2:         floatCell(row, cols, "y2"),
			W:          floatCell(row, cols, wCol),
			H:          floatCell(row, cols, hCol),
			Confidence: confidenceCell(row, cols, confCol),
			ClassID:    intCell(row, cols, "class_id"),
			Visibility: floatCell(row, cols, "visibility"),
		}
	}
}

// trackingNormalizer maps tracker export rows: track_id becomes the entity
// id unless a player_id column is also present, width/height fill w/h and
// conf fills confidence.
func trackingNormalizer(cols map[string]int) func([]string) Record {
	entityCol := firstPresent(cols, "player_id", "track_id")
	confCol := firstPresent(cols, "confidence", "conf")
	wCol := firstPresent(cols, "w", "width")
	hCol := firstPresent(cols, "h", "height")
	return func(row []string) Record {
		x := floatCell(row, cols, "x")
		y := floatCell(row, cols, "y")
		w := floatCell(row, cols, wCol)
		h := floatCell(row, cols, hCol)
		rec := Record{
			FrameID:    intCell(row, cols, "frame_id"),
			EntityID:   intCell(row, cols, entityCol),
			TimestampS: floatCell(row, cols, "timestamp_s"),
			X1:         floatCell(row, cols, "x1"),
			Y1:         floatCell(row, cols, "y1"),
			X2:         floatCell(row, cols, "x2"),
			Y2:         floatCell(row, cols, "y2"),
			W:          w,
			H:          h,
			Confidence: confidenceCell(row, cols, confCol),
			ClassID:    intCell(row, cols, "class_id"),
			Visibility: floatCell(row, cols, "visibility"),
		}
		// Tracker boxes are top-left + size; fill corners when not exported.
		if _, ok := cols["x1"]; !ok {
			rec.X1, rec.X2 = x, x+w
		}
		if _, ok := cols["y1"]; !ok {
			rec.Y1, rec.Y2 = y, y+h
		}
		return rec
	}
}

// centreSource returns a cell reader for one centre axis: the explicit
// column, else the midpoint of the corner pair, else origin + size/2.
func centreSource(cols map[string]int, centre, lo, hi, origin, size string) (func([]string) float64, bool) {
	if _, ok := cols[centre]; ok {
		return func(row []string) float64 { return floatCell(row, cols, centre) }, true
	}
	if hasAll(cols, lo, hi) {
		return func(row []string) float64 {
			return (floatCell(row, cols, lo) + floatCell(row, cols, hi)) / 2
		}, true
	}
	if hasAll(cols, origin, size) {
		return func(row []string) float64 {
			return floatCell(row, cols, origin) + floatCell(row, cols, size)/2
		}, true
	}
	return nil, false
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func hasAll(cols map[string]int, names ...string) bool {
	for _, n := range names {
		if _, ok := cols[n]; !ok {
			return false
		}
	}
	return true
}

func firstPresent(cols map[string]int, names ...string) string {
	for _, n := range names {
		if _, ok := cols[n]; ok {
			return n
		}
	}
	return ""
}

func missingColumns(cols map[string]int, required []string) []string {
	var missing []string
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

func cell(row []string, cols map[string]int, name string) (string, bool) {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[i]), true
}

// floatCell coerces a cell to float64; absent or non-numeric cells are NaN.
func floatCell(row []string, cols map[string]int, name string) float64 {
	s, ok := cell(row, cols, name)
	if !ok || s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// confidenceCell is floatCell restricted to [0, 1]; anything outside is NaN.
func confidenceCell(row []string, cols map[string]int, name string) float64 {
	v := floatCell(row, cols, name)
	if !ValidConfidence(v) {
		return math.NaN()
	}
	return v
}

// intCell coerces a cell to an integral ID. "7" and "7.0" are accepted;
// fractional, non-finite or non-numeric cells are invalid.
func intCell(row []string, cols map[string]int, name string) ID {
	s, ok := cell(row, cols, name)
	if !ok || s == "" {
		return ID{}
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return SomeID(v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return ID{}
	}
	return SomeID(int64(f))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

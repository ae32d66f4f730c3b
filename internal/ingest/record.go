package ingest

import (
	"math"
	"sort"
)

// ID is an optional integer column value (frame, entity or class id).
type ID struct {
	Value int64
	Valid bool
}

// SomeID returns a valid ID holding v.
func SomeID(v int64) ID { return ID{Value: v, Valid: true} }

// Record is one detection in the unified column set. Missing float columns
// hold NaN.
type Record struct {
	FrameID    ID
	EntityID   ID
	TimestampS float64

	X1, Y1, X2, Y2 float64
	CX, CY         float64
	W, H           float64

	Confidence float64
	ClassID    ID
	Visibility float64
}

// ValidConfidence reports whether c is a usable confidence in [0, 1].
func ValidConfidence(c float64) bool {
	return c >= 0 && c <= 1
}

// Weight returns the record's density weight: its confidence, or 1.0 when
// the confidence is missing. Normalize nulls confidences outside [0, 1], and
// Weight treats any that reach it by another route the same way.
func (r Record) Weight() float64 {
	if !ValidConfidence(r.Confidence) {
		return 1.0
	}
	return r.Confidence
}

// Dataset is an ordered, immutable set of unified records for one input.
// Records are sorted by (frame_id, timestamp_s, entity_id) with missing
// values last; the sort is stable so equal keys keep input order.
type Dataset struct {
	Schema  SchemaKind
	Records []Record

	// InputRows counts data rows seen before dropping rows without a centre.
	InputRows int
}

// NewDataset sorts records into trajectory order and wraps them.
// The slice is copied.
func NewDataset(schema SchemaKind, records []Record) *Dataset {
	recs := make([]Record, len(records))
	copy(recs, records)
	sort.SliceStable(recs, func(i, j int) bool {
		return recordLess(recs[i], recs[j])
	})
	return &Dataset{Schema: schema, Records: recs, InputRows: len(records)}
}

// Len returns the number of usable records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Empty reports whether the dataset has no usable records.
func (d *Dataset) Empty() bool { return d.Len() == 0 }

// DroppedRows returns the number of input rows discarded during normalisation.
func (d *Dataset) DroppedRows() int {
	if d == nil {
		return 0
	}
	return d.InputRows - len(d.Records)
}

// MaxFrameID returns the largest valid frame id.
func (d *Dataset) MaxFrameID() (int64, bool) {
	var maxID int64
	found := false
	for _, r := range d.Records {
		if r.FrameID.Valid && (!found || r.FrameID.Value > maxID) {
			maxID = r.FrameID.Value
			found = true
		}
	}
	return maxID, found
}

// EntityIDs returns the distinct valid entity ids in ascending order.
func (d *Dataset) EntityIDs() []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, r := range d.Records {
		if !r.EntityID.Valid {
			continue
		}
		if _, ok := seen[r.EntityID.Value]; ok {
			continue
		}
		seen[r.EntityID.Value] = struct{}{}
		ids = append(ids, r.EntityID.Value)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ByEntity groups records by valid entity id, preserving dataset order
// within each group. Records without an entity id are skipped.
func (d *Dataset) ByEntity() map[int64][]Record {
	groups := make(map[int64][]Record)
	for _, r := range d.Records {
		if !r.EntityID.Valid {
			continue
		}
		groups[r.EntityID.Value] = append(groups[r.EntityID.Value], r)
	}
	return groups
}

// Filter returns a new dataset holding the records for which keep is true.
// Order is preserved and InputRows carries over.
func (d *Dataset) Filter(keep func(Record) bool) *Dataset {
	out := &Dataset{Schema: d.Schema, InputRows: d.InputRows}
	for _, r := range d.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

func recordLess(a, b Record) bool {
	if c := compareID(a.FrameID, b.FrameID); c != 0 {
		return c < 0
	}
	if c := compareFloat(a.TimestampS, b.TimestampS); c != 0 {
		return c < 0
	}
	return compareID(a.EntityID, b.EntityID) < 0
}

// compareID orders valid ids ascending and invalid ids last.
func compareID(a, b ID) int {
	switch {
	case a.Valid && b.Valid:
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	case a.Valid:
		return -1
	case b.Valid:
		return 1
	}
	return 0
}

// compareFloat orders numbers ascending and NaN last.
func compareFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

package kinematics

import (
	"errors"
	"math"

	"github.com/banshee-data/fieldheat/internal/ingest"
)

// ErrNoSamples is returned by Path for an entity with no records.
var ErrNoSamples = errors.New("no samples for entity")

// PathPoint is one raw sample of an entity's movement. Missing values are nil.
type PathPoint struct {
	FrameID    *int64   `json:"frame_id"`
	Timestamp  *float64 `json:"timestamp_s"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Confidence *float64 `json:"confidence"`
}

// Path lists the entity's samples in dataset order.
func Path(ds *ingest.Dataset, entityID int64) ([]PathPoint, error) {
	var out []PathPoint
	for _, r := range ds.Records {
		if !r.EntityID.Valid || r.EntityID.Value != entityID {
			continue
		}
		out = append(out, pathPoint(r))
	}
	if len(out) == 0 {
		return nil, ErrNoSamples
	}
	return out, nil
}

// Paths lists the samples of every identified entity, keyed by id.
func Paths(ds *ingest.Dataset) map[int64][]PathPoint {
	out := make(map[int64][]PathPoint)
	for id, recs := range ds.ByEntity() {
		pts := make([]PathPoint, len(recs))
		for i, r := range recs {
			pts[i] = pathPoint(r)
		}
		out[id] = pts
	}
	return out
}

func pathPoint(r ingest.Record) PathPoint {
	p := PathPoint{X: r.CX, Y: r.CY}
	if r.FrameID.Valid {
		v := r.FrameID.Value
		p.FrameID = &v
	}
	if finite(r.TimestampS) {
		p.Timestamp = ptr(r.TimestampS)
	}
	if finite(r.Confidence) {
		p.Confidence = ptr(r.Confidence)
	}
	return p
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

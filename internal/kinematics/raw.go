package kinematics

import (
	"math"

	"github.com/banshee-data/fieldheat/internal/ingest"
	"github.com/banshee-data/fieldheat/internal/units"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// computeRaw measures an entity in source units. Every consecutive pair adds
// its distance; a pair contributes a speed only when time advances. The
// average is the mean of the step speeds.
func computeRaw(id int64, recs []ingest.Record, datasetMaxFrame int64) Profile {
	var distances, speeds []float64
	for i := 1; i < len(recs); i++ {
		prev, cur := recs[i-1], recs[i]
		d := math.Hypot(cur.CX-prev.CX, cur.CY-prev.CY)
		distances = append(distances, d)
		if dt := cur.TimestampS - prev.TimestampS; dt > 0 {
			speeds = append(speeds, d/dt)
		}
	}

	p := Profile{
		EntityID:      id,
		Mode:          ModeRaw,
		Units:         units.Pixel,
		FrameCount:    len(recs),
		TotalTimeS:    timeSpan(recs),
		TotalDistance: floats.Sum(distances),
	}
	if len(speeds) > 0 {
		p.AverageSpeed = stat.Mean(speeds, nil)
		p.MaxSpeed = floats.Max(speeds)
	}

	participation := 0.0
	if datasetMaxFrame > 0 {
		participation = float64(len(recs)) / float64(datasetMaxFrame)
	}
	p.Participation = &participation
	p.Confidence = summariseConfidence(recs)
	return p
}

// summariseConfidence returns nil when no record has a finite confidence.
func summariseConfidence(recs []ingest.Record) *ConfidenceSummary {
	var conf []float64
	for _, r := range recs {
		if !math.IsNaN(r.Confidence) && !math.IsInf(r.Confidence, 0) {
			conf = append(conf, r.Confidence)
		}
	}
	if len(conf) == 0 {
		return nil
	}
	return &ConfidenceSummary{
		Mean: stat.Mean(conf, nil),
		Min:  floats.Min(conf),
		Max:  floats.Max(conf),
	}
}

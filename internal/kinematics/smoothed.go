package kinematics

import (
	"math"

	"github.com/banshee-data/fieldheat/internal/ingest"
	"github.com/banshee-data/fieldheat/internal/units"
	"gonum.org/v1/gonum/floats"
)

// SmoothPositions applies a causal moving average: sample i is the mean of
// samples max(0, i-window+1)..i. A window below 1 is treated as 1.
func SmoothPositions(recs []ingest.Record, window int) []Position {
	if window < 1 {
		window = 1
	}
	out := make([]Position, len(recs))
	for i := range recs {
		start := max(0, i-window+1)
		var sx, sy float64
		for _, r := range recs[start : i+1] {
			sx += r.CX
			sy += r.CY
		}
		n := float64(i - start + 1)
		out[i] = Position{X: sx / n, Y: sy / n}
	}
	return out
}

// computeSmoothed measures an entity in metres over smoothed positions.
// A step is accepted only when time advances and its speed does not exceed
// MaxSpeedMps; rejected steps add neither distance nor speed.
func computeSmoothed(id int64, recs []ingest.Record, cfg Config) Profile {
	smoothed := SmoothPositions(recs, cfg.Window)

	var total float64
	var speeds []float64
	rejected := 0
	for i := 1; i < len(smoothed); i++ {
		d := math.Hypot(smoothed[i].X-smoothed[i-1].X, smoothed[i].Y-smoothed[i-1].Y) * cfg.MetresPerUnit
		dt := recs[i].TimestampS - recs[i-1].TimestampS
		if dt > 0 && d/dt <= cfg.MaxSpeedMps {
			total += d
			speeds = append(speeds, d/dt)
			continue
		}
		rejected++
	}

	p := Profile{
		EntityID:      id,
		Mode:          ModeSmoothed,
		Units:         units.Metric,
		FrameCount:    len(recs),
		TotalTimeS:    timeSpan(recs),
		TotalDistance: total,
		AcceptedSteps: len(speeds),
		RejectedSteps: rejected,
		Smoothed:      smoothed,
	}
	if elapsed := recs[len(recs)-1].TimestampS - recs[0].TimestampS; elapsed > 0 {
		p.AverageSpeed = total / elapsed
	}
	if len(speeds) > 0 {
		p.MaxSpeed = floats.Max(speeds)
	}
	p.SpeedUnits = cfg.SpeedUnits
	if p.SpeedUnits == "" {
		p.SpeedUnits = units.KMPH
	}
	p.AverageSpeedConverted = ptr(units.ConvertSpeed(p.AverageSpeed, p.SpeedUnits))
	p.MaxSpeedConverted = ptr(units.ConvertSpeed(p.MaxSpeed, p.SpeedUnits))
	return p
}

// Package zones splits mapped field points into back_50, midfield and
// forward_50 by distance to the two goal foci.
package zones

import (
	"math"

	"github.com/banshee-data/fieldheat/internal/config"
	"github.com/banshee-data/fieldheat/internal/geometry"
)

// Zone names one field region. The string value is also the output file stem.
type Zone string

const (
	Back50    Zone = "back_50"
	Midfield  Zone = "midfield"
	Forward50 Zone = "forward_50"
)

// All lists the zones in output order.
var All = []Zone{Back50, Midfield, Forward50}

// Partitioner classifies points against circles of Radius metres centred on
// the field's left (back) and right (forward) foci.
type Partitioner struct {
	Field  geometry.Field
	Radius float64
}

// ConfigFromAnalytics builds a partitioner for the field from the config.
func ConfigFromAnalytics(cfg *config.AnalyticsConfig, field geometry.Field) Partitioner {
	return Partitioner{Field: field, Radius: cfg.GetZoneRadiusMeters()}
}

// Assignment holds the points of each zone in input order.
type Assignment struct {
	Back50    []geometry.Point
	Midfield  []geometry.Point
	Forward50 []geometry.Point
}

// Points returns the subset for z.
func (a Assignment) Points(z Zone) []geometry.Point {
	switch z {
	case Back50:
		return a.Back50
	case Midfield:
		return a.Midfield
	case Forward50:
		return a.Forward50
	}
	return nil
}

// NonEmpty returns the zones that received at least one point, in All order.
func (a Assignment) NonEmpty() []Zone {
	var out []Zone
	for _, z := range All {
		if len(a.Points(z)) > 0 {
			out = append(out, z)
		}
	}
	return out
}

func (p Partitioner) distances(pt geometry.Point) (left, right float64) {
	lf, rf := p.Field.LeftFocus(), p.Field.RightFocus()
	return math.Hypot(pt.X-lf.X, pt.Y-lf.Y), math.Hypot(pt.X-rf.X, pt.Y-rf.Y)
}

// Classify reports membership of the two goal zones. Both may be true when
// the capture circles overlap; a point in neither is midfield.
func (p Partitioner) Classify(pt geometry.Point) (back, forward bool) {
	left, right := p.distances(pt)
	return left <= p.Radius, right <= p.Radius
}

// Partition evaluates back_50 and forward_50 independently over every point,
// so a point inside both circles appears in both. midfield is every point in
// neither.
func (p Partitioner) Partition(points []geometry.Point) Assignment {
	var a Assignment
	for _, pt := range points {
		back, forward := p.Classify(pt)
		if back {
			a.Back50 = append(a.Back50, pt)
		}
		if forward {
			a.Forward50 = append(a.Forward50, pt)
		}
		if !back && !forward {
			a.Midfield = append(a.Midfield, pt)
		}
	}
	return a
}

// StrictPartition assigns each point to exactly one zone. A point inside
// both circles goes to the nearer focus, with exact ties going to back_50.
func (p Partitioner) StrictPartition(points []geometry.Point) Assignment {
	var a Assignment
	for _, pt := range points {
		left, right := p.distances(pt)
		back, forward := left <= p.Radius, right <= p.Radius
		switch {
		case back && forward:
			if left <= right {
				a.Back50 = append(a.Back50, pt)
			} else {
				a.Forward50 = append(a.Forward50, pt)
			}
		case back:
			a.Back50 = append(a.Back50, pt)
		case forward:
			a.Forward50 = append(a.Forward50, pt)
		default:
			a.Midfield = append(a.Midfield, pt)
		}
	}
	return a
}

package zones

import (
	"testing"

	"github.com/banshee-data/fieldheat/internal/config"
	"github.com/banshee-data/fieldheat/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aflPartitioner() Partitioner {
	field := geometry.FieldConfigFromAnalytics(config.EmptyAnalyticsConfig())
	return ConfigFromAnalytics(config.EmptyAnalyticsConfig(), field)
}

func TestClassifyFociAndCentre(t *testing.T) {
	t.Parallel()

	p := aflPartitioner()
	require.Equal(t, 50.0, p.Radius)

	tests := []struct {
		name         string
		pt           geometry.Point
		back, fwd    bool
		wantMidfield bool
	}{
		{"left focus", geometry.Point{X: -p.Field.A}, true, false, false},
		{"right focus", geometry.Point{X: p.Field.A}, false, true, false},
		{"centre", geometry.Point{}, false, false, true},
		{"exactly on back radius", geometry.Point{X: -p.Field.A + 50}, true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			back, fwd := p.Classify(tt.pt)
			assert.Equal(t, tt.back, back)
			assert.Equal(t, tt.fwd, fwd)

			a := p.Partition([]geometry.Point{tt.pt})
			assert.Equal(t, tt.wantMidfield, len(a.Midfield) == 1)
		})
	}
}

func TestPartitionKeepsOverlap(t *testing.T) {
	t.Parallel()

	// A short field: the two 50m circles overlap around the centre.
	p := Partitioner{Field: geometry.Field{A: 40, B: 30, NX: 10, NY: 10}, Radius: 50}
	points := []geometry.Point{
		{X: 0, Y: 0},   // both circles
		{X: -35, Y: 0}, // back only
		{X: 35, Y: 0},  // forward only
		{X: 0, Y: 45},  // neither
		{X: 0.5, Y: 0}, // both, nearer right
	}

	a := p.Partition(points)
	assert.Len(t, a.Back50, 3)
	assert.Len(t, a.Forward50, 3)
	assert.Len(t, a.Midfield, 1)
	assert.Greater(t, len(a.Back50)+len(a.Forward50)+len(a.Midfield), len(points))
	assert.Equal(t, All, a.NonEmpty())

	strict := p.StrictPartition(points)
	assert.Equal(t, []geometry.Point{{X: 0, Y: 0}, {X: -35, Y: 0}}, strict.Back50)
	assert.Equal(t, []geometry.Point{{X: 35, Y: 0}, {X: 0.5, Y: 0}}, strict.Forward50)
	assert.Len(t, strict.Midfield, 1)
	assert.Equal(t, len(points), len(strict.Back50)+len(strict.Forward50)+len(strict.Midfield))
}

func TestNonEmptySkipsEmptyZones(t *testing.T) {
	t.Parallel()

	p := aflPartitioner()
	a := p.Partition([]geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 1}})
	assert.Equal(t, []Zone{Midfield}, a.NonEmpty())
	assert.Nil(t, a.Points(Back50))
	assert.Nil(t, a.Points(Zone("unknown")))
}

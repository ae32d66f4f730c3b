// Package report assembles the grids and kinematic profiles of one dataset
// into a single immutable Analytics value.
package report

import (
	"fmt"
	"sort"

	"github.com/banshee-data/fieldheat/internal/density"
	"github.com/banshee-data/fieldheat/internal/geometry"
	"github.com/banshee-data/fieldheat/internal/kinematics"
	"github.com/banshee-data/fieldheat/internal/units"
	"github.com/banshee-data/fieldheat/internal/zones"
)

// EntityGrid is the occupancy map of one entity.
type EntityGrid struct {
	EntityID int64
	Grid     *density.Grid
}

// ZoneGrid is the occupancy map of one zone.
type ZoneGrid struct {
	Zone zones.Zone
	Grid *density.Grid
}

// Summary counts what went into a result.
type Summary struct {
	Schema      string             `json:"schema"`
	InputRows   int                `json:"input_rows"`
	Records     int                `json:"records"`
	DroppedRows int                `json:"dropped_rows"`
	Entities    int                `json:"entities"`
	MaxFrameID  int64              `json:"max_frame_id"`
	ZonePoints  map[zones.Zone]int `json:"zone_points"`
}

// Analytics is the complete result for one dataset. Entities are in
// ascending id order and Zones in zones.All order; only non-empty zones
// appear. Callers must not modify it.
type Analytics struct {
	Label   string
	Mode    kinematics.Mode
	Field   geometry.Field
	Box     geometry.BoundingBox
	Summary Summary

	Overall  *density.Grid
	Entities []EntityGrid
	Zones    []ZoneGrid
	Profiles []kinematics.Profile
	Paths    map[int64][]kinematics.PathPoint
}

// Parts are the independently computed pieces handed to Assemble.
type Parts struct {
	Label    string
	Mode     kinematics.Mode
	Field    geometry.Field
	Box      geometry.BoundingBox
	Summary  Summary
	Overall  *density.Grid
	Entities []EntityGrid
	Zones    []ZoneGrid
	Profiles []kinematics.Profile
	Paths    map[int64][]kinematics.PathPoint
}

// Assemble orders the parts and checks their keys. There is no
// cross-filtering: an entity may have a grid and no profile, or the reverse.
func Assemble(p Parts) (*Analytics, error) {
	entities := append([]EntityGrid(nil), p.Entities...)
	sort.SliceStable(entities, func(i, j int) bool { return entities[i].EntityID < entities[j].EntityID })
	for i := 1; i < len(entities); i++ {
		if entities[i].EntityID == entities[i-1].EntityID {
			return nil, fmt.Errorf("duplicate grid for entity %d", entities[i].EntityID)
		}
	}

	order := make(map[zones.Zone]int, len(zones.All))
	for i, z := range zones.All {
		order[z] = i
	}
	zoneGrids := make([]ZoneGrid, 0, len(p.Zones))
	for _, zg := range p.Zones {
		if _, ok := order[zg.Zone]; !ok {
			return nil, fmt.Errorf("unknown zone %q", zg.Zone)
		}
		if zg.Grid == nil || zg.Grid.Points == 0 {
			continue
		}
		zoneGrids = append(zoneGrids, zg)
	}
	sort.SliceStable(zoneGrids, func(i, j int) bool { return order[zoneGrids[i].Zone] < order[zoneGrids[j].Zone] })

	profiles := append([]kinematics.Profile(nil), p.Profiles...)
	sort.SliceStable(profiles, func(i, j int) bool { return profiles[i].EntityID < profiles[j].EntityID })

	return &Analytics{
		Label:    p.Label,
		Mode:     p.Mode,
		Field:    p.Field,
		Box:      p.Box,
		Summary:  p.Summary,
		Overall:  p.Overall,
		Entities: entities,
		Zones:    zoneGrids,
		Profiles: profiles,
		Paths:    p.Paths,
	}, nil
}

// Empty reports a dataset that had no usable records.
func (a *Analytics) Empty() bool {
	return a == nil || a.Summary.Records == 0
}

// Units is the unit system of the profiles.
func (a *Analytics) Units() units.System { return a.Mode.Units() }

// EntityGrid returns the grid for id.
func (a *Analytics) EntityGrid(id int64) (*density.Grid, bool) {
	i := sort.Search(len(a.Entities), func(i int) bool { return a.Entities[i].EntityID >= id })
	if i < len(a.Entities) && a.Entities[i].EntityID == id {
		return a.Entities[i].Grid, true
	}
	return nil, false
}

// ZoneGrid returns the grid for z, if that zone had points.
func (a *Analytics) ZoneGrid(z zones.Zone) (*density.Grid, bool) {
	for _, zg := range a.Zones {
		if zg.Zone == z {
			return zg.Grid, true
		}
	}
	return nil, false
}

// Profile returns the kinematic profile for id.
func (a *Analytics) Profile(id int64) (kinematics.Profile, bool) {
	i := sort.Search(len(a.Profiles), func(i int) bool { return a.Profiles[i].EntityID >= id })
	if i < len(a.Profiles) && a.Profiles[i].EntityID == id {
		return a.Profiles[i], true
	}
	return kinematics.Profile{}, false
}

package report

import (
	"github.com/banshee-data/fieldheat/internal/kinematics"
)

// UnitLabels names the distance and speed units of a document.
type UnitLabels struct {
	System   string `json:"system"`
	Distance string `json:"distance"`
	Speed    string `json:"speed"`
}

// EntityEntry is one row of the analytics document.
type EntityEntry struct {
	EntityID   int64               `json:"entity_id"`
	GridPoints int                 `json:"grid_points"`
	Heatmap    string              `json:"heatmap,omitempty"`
	Profile    *kinematics.Profile `json:"kinematics,omitempty"`
}

// Document is the JSON form of an Analytics without the grid values.
type Document struct {
	Label    string            `json:"label"`
	Mode     kinematics.Mode   `json:"mode"`
	Units    UnitLabels        `json:"units"`
	Summary  Summary           `json:"summary"`
	Overall  string            `json:"overall_heatmap,omitempty"`
	Zones    map[string]string `json:"zones"`
	Entities []EntityEntry     `json:"entities"`
}

// Document builds the analytics table. ext, when non-empty, is appended to
// each heatmap stem to name its file.
func (a *Analytics) Document(ext string) Document {
	u := a.Units()
	doc := Document{
		Label:   a.Label,
		Mode:    a.Mode,
		Units:   UnitLabels{System: string(u), Distance: u.DistanceLabel(), Speed: u.SpeedLabel()},
		Summary: a.Summary,
		Zones:   make(map[string]string, len(a.Zones)),
	}
	name := func(r HeatmapRef) string {
		if ext == "" {
			return ""
		}
		return r.Stem + ext
	}
	if a.Overall != nil {
		doc.Overall = name(OverallRef())
	}
	for _, zg := range a.Zones {
		doc.Zones[string(zg.Zone)] = name(ZoneRef(zg.Zone))
	}

	// Union of gridded and profiled entities, ascending.
	i, j := 0, 0
	for i < len(a.Entities) || j < len(a.Profiles) {
		var e EntityEntry
		switch {
		case j >= len(a.Profiles) || (i < len(a.Entities) && a.Entities[i].EntityID < a.Profiles[j].EntityID):
			e = a.entityEntry(a.Entities[i], nil, name)
			i++
		case i >= len(a.Entities) || a.Profiles[j].EntityID < a.Entities[i].EntityID:
			p := a.Profiles[j]
			e = EntityEntry{EntityID: p.EntityID, Profile: &p}
			j++
		default:
			p := a.Profiles[j]
			e = a.entityEntry(a.Entities[i], &p, name)
			i++
			j++
		}
		doc.Entities = append(doc.Entities, e)
	}
	return doc
}

func (a *Analytics) entityEntry(eg EntityGrid, p *kinematics.Profile, name func(HeatmapRef) string) EntityEntry {
	e := EntityEntry{EntityID: eg.EntityID, Profile: p, Heatmap: name(EntityRef(eg.EntityID))}
	if eg.Grid != nil {
		e.GridPoints = eg.Grid.Points
	}
	return e
}

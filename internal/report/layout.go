package report

import (
	"path"
	"strconv"

	"github.com/banshee-data/fieldheat/internal/zones"
)

// HeatmapKind groups grids in the output tree.
type HeatmapKind string

const (
	KindOverall HeatmapKind = "overall"
	KindEntity  HeatmapKind = "per_id"
	KindZone    HeatmapKind = "zones"
)

// HeatmapRef addresses one grid of a result by kind and key.
type HeatmapRef struct {
	Kind HeatmapKind `json:"kind"`
	Key  string      `json:"key"`
	Stem string      `json:"stem"`
}

// OverallRef is the overall grid's address.
func OverallRef() HeatmapRef {
	return HeatmapRef{Kind: KindOverall, Key: "overall", Stem: path.Join("overall", "overall")}
}

// EntityRef is the address of an entity grid: per_id/id_<ID>.
func EntityRef(id int64) HeatmapRef {
	key := strconv.FormatInt(id, 10)
	return HeatmapRef{Kind: KindEntity, Key: key, Stem: path.Join("per_id", "id_"+key)}
}

// ZoneRef is the address of a zone grid: zones/<zone>.
func ZoneRef(z zones.Zone) HeatmapRef {
	return HeatmapRef{Kind: KindZone, Key: string(z), Stem: path.Join("zones", string(z))}
}

// Refs lists every grid present in a, overall first.
func (a *Analytics) Refs() []HeatmapRef {
	refs := []HeatmapRef{OverallRef()}
	for _, eg := range a.Entities {
		refs = append(refs, EntityRef(eg.EntityID))
	}
	for _, zg := range a.Zones {
		refs = append(refs, ZoneRef(zg.Zone))
	}
	return refs
}

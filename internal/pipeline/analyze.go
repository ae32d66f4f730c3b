package pipeline

import (
	"context"
	"fmt"

	"github.com/banshee-data/fieldheat/internal/density"
	"github.com/banshee-data/fieldheat/internal/geometry"
	"github.com/banshee-data/fieldheat/internal/ingest"
	"github.com/banshee-data/fieldheat/internal/kinematics"
	"github.com/banshee-data/fieldheat/internal/monitoring"
	"github.com/banshee-data/fieldheat/internal/report"
	"github.com/banshee-data/fieldheat/internal/zones"
	"golang.org/x/sync/errgroup"
)

// Stage names recorded in StageStats.
const (
	StageLoad       = "load"
	StageGrids      = "grids"
	StageKinematics = "kinematics"
	StageSinkPrefix = "sink:"
)

// Analyze computes the full result for one dataset. An empty dataset gives
// an empty result, not an error. stats may be nil.
func Analyze(ctx context.Context, label string, ds *ingest.Dataset, s Settings, stats *monitoring.StageStats) (*report.Analytics, error) {
	if ds == nil {
		ds = &ingest.Dataset{}
	}
	summary := summarise(ds)
	parts := report.Parts{
		Label:   label,
		Mode:    s.Kinematics.Mode,
		Field:   s.Field,
		Summary: summary,
	}
	if ds.Empty() {
		monitoring.Logf("%s: no usable records (%d input rows)", label, summary.InputRows)
		return report.Assemble(parts)
	}

	box, _ := geometry.ComputeBoundingBox(ds)
	mapper := geometry.NewMapper(box, s.Field)
	est := density.NewEstimator(s.Field)
	est.UniformWeights = s.UniformWeights

	points := make([]geometry.Point, len(ds.Records))
	byEntity := make(map[int64][]geometry.Point)
	for i, r := range ds.Records {
		points[i] = mapper.MapRecord(r)
		if r.EntityID.Valid {
			byEntity[r.EntityID.Value] = append(byEntity[r.EntityID.Value], points[i])
		}
	}
	assignment := s.Zones.Partition(points)
	for _, z := range zones.All {
		summary.ZonePoints[z] = len(assignment.Points(z))
	}

	ids := ds.EntityIDs()
	entityGrids := make([]report.EntityGrid, len(ids))
	nonEmpty := assignment.NonEmpty()
	zoneGrids := make([]report.ZoneGrid, len(nonEmpty))
	var overall *density.Grid
	var profiles []kinematics.Profile

	done := stats.Start(StageGrids)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Workers, 1))

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		overall = est.Estimate(points)
		return nil
	})
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entityGrids[i] = report.EntityGrid{EntityID: id, Grid: est.Estimate(byEntity[id])}
			return nil
		})
	}
	for i, z := range nonEmpty {
		i, z := i, z
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			zoneGrids[i] = report.ZoneGrid{Zone: z, Grid: est.Estimate(assignment.Points(z))}
			return nil
		})
	}
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		finish := stats.Start(StageKinematics)
		var err error
		profiles, err = kinematics.Compute(ds, s.Kinematics)
		finish(err)
		if err != nil {
			return fmt.Errorf("kinematics: %w", err)
		}
		return nil
	})

	err := g.Wait()
	done(err)
	if err != nil {
		return nil, err
	}

	monitoring.Debugf("%s: %d records, %d entities, %d zones, %d profiles",
		label, len(points), len(ids), len(nonEmpty), len(profiles))

	parts.Box = box
	parts.Summary = summary
	parts.Overall = overall
	parts.Entities = entityGrids
	parts.Zones = zoneGrids
	parts.Profiles = profiles
	parts.Paths = kinematics.Paths(ds)
	return report.Assemble(parts)
}

func summarise(ds *ingest.Dataset) report.Summary {
	s := report.Summary{
		Schema:      ds.Schema.String(),
		InputRows:   ds.InputRows,
		Records:     ds.Len(),
		DroppedRows: ds.DroppedRows(),
		Entities:    len(ds.EntityIDs()),
		ZonePoints:  make(map[zones.Zone]int, len(zones.All)),
	}
	if maxFrame, ok := ds.MaxFrameID(); ok {
		s.MaxFrameID = maxFrame
	}
	return s
}

package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/fieldheat/internal/config"
	"github.com/banshee-data/fieldheat/internal/density"
	"github.com/banshee-data/fieldheat/internal/fsutil"
	"github.com/banshee-data/fieldheat/internal/kinematics"
	"github.com/banshee-data/fieldheat/internal/monitoring"
	"github.com/banshee-data/fieldheat/internal/report"
	"github.com/banshee-data/fieldheat/internal/security"
)

// File names under each label directory.
const (
	AnalyticsFile = "analytics.json"
	ReportFile    = "report.html"
)

// HeatmapFile is the JSON written next to each heatmap PNG.
type HeatmapFile struct {
	Label      string                 `json:"label"`
	Kind       report.HeatmapKind     `json:"kind"`
	Key        string                 `json:"key"`
	DisplayMax float64                `json:"display_max"`
	Grid       *density.Grid          `json:"grid"`
	Profile    *kinematics.Profile    `json:"kinematics,omitempty"`
	Path       []kinematics.PathPoint `json:"path,omitempty"`
}

// Writer lays a result out under <OutDir>/<label>/. It implements the
// pipeline's Sink interface.
type Writer struct {
	FS     fsutil.FileSystem
	OutDir string
	PNG    bool
	HTML   bool
	HTMLOptions

	// Confine rejects label directories that resolve outside OutDir on
	// the real filesystem, e.g. through a symlink.
	Confine bool
}

// NewWriter creates a writer from the output settings of cfg.
func NewWriter(fs fsutil.FileSystem, cfg *config.AnalyticsConfig) *Writer {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	_, onDisk := fs.(fsutil.OSFileSystem)
	return &Writer{
		FS:      fs,
		OutDir:  cfg.GetOutDir(),
		PNG:     cfg.GetRenderPNG(),
		HTML:    cfg.GetRenderHTML(),
		Confine: onDisk,
	}
}

// Name identifies the sink in stage statistics.
func (w *Writer) Name() string { return "render" }

// LabelDir returns the output directory of a label.
func (w *Writer) LabelDir(label string) string {
	return filepath.Join(w.OutDir, label)
}

// Write emits every grid, analytics.json and, when enabled, report.html.
// An empty result writes only analytics.json.
func (w *Writer) Write(ctx context.Context, a *report.Analytics) error {
	dir := w.LabelDir(a.Label)
	if w.Confine {
		if err := security.WithinDirectory(dir, w.OutDir); err != nil {
			return err
		}
	}
	if err := w.FS.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ext := ".json"
	if w.PNG {
		ext = ".png"
	}
	if err := w.writeJSON(filepath.Join(dir, AnalyticsFile), a.Document(ext), true); err != nil {
		return err
	}
	if a.Empty() {
		return nil
	}

	for _, ref := range a.Refs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.writeHeatmap(dir, a, ref); err != nil {
			return fmt.Errorf("%s: %w", ref.Stem, err)
		}
	}

	if w.HTML {
		var buf bytes.Buffer
		if err := WriteHTML(&buf, a, w.HTMLOptions); err != nil {
			return err
		}
		if err := w.FS.WriteFile(filepath.Join(dir, ReportFile), buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	monitoring.Debugf("%s: wrote %d heatmaps to %s", a.Label, len(a.Refs()), dir)
	return nil
}

func (w *Writer) writeHeatmap(dir string, a *report.Analytics, ref report.HeatmapRef) error {
	g, title := w.lookup(a, ref)
	if g == nil {
		return fmt.Errorf("no grid for %s %s", ref.Kind, ref.Key)
	}

	base := filepath.Join(dir, filepath.FromSlash(ref.Stem))
	if err := w.FS.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	file := HeatmapFile{
		Label:      a.Label,
		Kind:       ref.Kind,
		Key:        ref.Key,
		DisplayMax: displayMax(g),
		Grid:       g,
	}
	if ref.Kind == report.KindEntity {
		id := a.Entities[entityIndex(a, ref)].EntityID
		if p, ok := a.Profile(id); ok {
			file.Profile = &p
		}
		file.Path = a.Paths[id]
	}
	if err := w.writeJSON(base+".json", file, false); err != nil {
		return err
	}

	if !w.PNG {
		return nil
	}
	return w.create(base+".png", func(out io.Writer) error {
		return WritePNG(out, g, a.Field.A, a.Field.B, title)
	})
}

func (w *Writer) lookup(a *report.Analytics, ref report.HeatmapRef) (*density.Grid, string) {
	switch ref.Kind {
	case report.KindOverall:
		return a.Overall, fmt.Sprintf("%s - Overall", a.Label)
	case report.KindEntity:
		if i := entityIndex(a, ref); i >= 0 {
			return a.Entities[i].Grid, fmt.Sprintf("%s - ID %s", a.Label, ref.Key)
		}
	case report.KindZone:
		for _, zg := range a.Zones {
			if string(zg.Zone) == ref.Key {
				return zg.Grid, fmt.Sprintf("%s - %s", a.Label, ref.Key)
			}
		}
	}
	return nil, ""
}

func entityIndex(a *report.Analytics, ref report.HeatmapRef) int {
	for i, eg := range a.Entities {
		if report.EntityRef(eg.EntityID).Key == ref.Key {
			return i
		}
	}
	return -1
}

func (w *Writer) writeJSON(path string, v interface{}, indent bool) error {
	return w.create(path, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		if indent {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(v)
	})
}

// create writes a file through fn, closing it even when fn fails.
func (w *Writer) create(path string, fn func(io.Writer) error) (err error) {
	f, err := w.FS.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

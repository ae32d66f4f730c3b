package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/fieldheat/internal/fsutil"
	"github.com/banshee-data/fieldheat/internal/ingest"
	"github.com/banshee-data/fieldheat/internal/monitoring"
	"github.com/banshee-data/fieldheat/internal/report"
)

// Sink consumes a finished result: an output writer, a result store.
type Sink interface {
	Name() string
	Write(ctx context.Context, a *report.Analytics) error
}

// Input names one dataset file and the label of its output namespace.
type Input struct {
	Path  string
	Label string
}

// ParseInput splits "path[:label]". The label defaults to the file name
// without its extension.
func ParseInput(arg string) Input {
	path, label := arg, ""
	if i := strings.LastIndex(arg, ":"); i > 0 && !strings.ContainsAny(arg[i+1:], `/\`) {
		path, label = arg[:i], arg[i+1:]
	}
	if label == "" {
		base := filepath.Base(path)
		label = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return Input{Path: path, Label: label}
}

// ValidateLabel rejects labels that cannot name an output directory.
func ValidateLabel(label string) error {
	switch {
	case label == "", label == ".", label == "..":
		return fmt.Errorf("invalid label %q", label)
	case strings.ContainsAny(label, `/\`):
		return fmt.Errorf("label %q must not contain path separators", label)
	}
	return nil
}

// DatasetResult is the outcome of one batch item: either Analytics or Err.
type DatasetResult struct {
	Input     Input
	Analytics *report.Analytics
	Err       error
}

// OK reports whether the dataset succeeded.
func (r DatasetResult) OK() bool { return r.Err == nil }

// Failed counts the failed results.
func Failed(results []DatasetResult) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Runner loads datasets, analyses them and hands results to its sinks.
type Runner struct {
	Settings Settings
	FS       fsutil.FileSystem
	Sinks    []Sink
	Stats    *monitoring.StageStats
}

// NewRunner creates a runner. A nil fs reads from the OS filesystem.
func NewRunner(settings Settings, fs fsutil.FileSystem, stats *monitoring.StageStats, sinks ...Sink) *Runner {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Runner{Settings: settings, FS: fs, Sinks: sinks, Stats: stats}
}

// Run processes one dataset end to end.
func (r *Runner) Run(ctx context.Context, in Input) (*report.Analytics, error) {
	if err := ValidateLabel(in.Label); err != nil {
		return nil, err
	}

	done := r.Stats.Start(StageLoad)
	ds, err := ingest.LoadFile(r.FS, in.Path)
	done(err)
	if err != nil {
		return nil, err
	}
	if n := ds.DroppedRows(); n > 0 {
		monitoring.Logf("%s: dropped %d of %d rows without a usable centre", in.Label, n, ds.InputRows)
	}

	a, err := Analyze(ctx, in.Label, ds, r.Settings, r.Stats)
	if err != nil {
		return nil, err
	}

	for _, sink := range r.Sinks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		finish := r.Stats.Start(StageSinkPrefix + sink.Name())
		err := sink.Write(ctx, a)
		finish(err)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sink.Name(), err)
		}
	}
	return a, nil
}

// RunBatch processes inputs in order. A failing dataset is logged and
// recorded in its result; the rest still run. Once ctx is cancelled the
// remaining inputs fail with the context error. A label already used
// earlier in the batch is rejected so namespaces never collide.
func (r *Runner) RunBatch(ctx context.Context, inputs []Input) []DatasetResult {
	results := make([]DatasetResult, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		results[i].Input = in
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		if seen[in.Label] {
			results[i].Err = fmt.Errorf("duplicate label %q", in.Label)
			monitoring.Logf("[%s] failed: %v", in.Label, results[i].Err)
			continue
		}
		seen[in.Label] = true

		monitoring.Logf("[%s] processing %s", in.Label, in.Path)
		a, err := r.Run(ctx, in)
		if err != nil {
			var schemaErr *ingest.SchemaError
			if errors.As(err, &schemaErr) {
				monitoring.Logf("[%s] rejected input: %v", in.Label, err)
			} else {
				monitoring.Logf("[%s] failed: %v", in.Label, err)
			}
			results[i].Err = err
			continue
		}
		results[i].Analytics = a
		monitoring.Logf("[%s] done: %d records, %d entities, %d profiles",
			in.Label, a.Summary.Records, len(a.Entities), len(a.Profiles))
	}
	return results
}

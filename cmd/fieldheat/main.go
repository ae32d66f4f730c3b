// Command fieldheat turns player-detection exports into occupancy heatmaps
// and kinematic summaries.
//
// Usage:
//
//	fieldheat [flags] path[:label] ...
//
// Each input is written under <out-dir>/<label>/. The label defaults to the
// file name without its extension.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/fieldheat/internal/config"
	"github.com/banshee-data/fieldheat/internal/fsutil"
	"github.com/banshee-data/fieldheat/internal/monitoring"
	"github.com/banshee-data/fieldheat/internal/pipeline"
	"github.com/banshee-data/fieldheat/internal/render"
	"github.com/banshee-data/fieldheat/internal/store"
	"github.com/banshee-data/fieldheat/internal/timeutil"
	"github.com/banshee-data/fieldheat/internal/version"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}

// options holds the parsed command line. Pointer fields are nil when the
// flag was not given, so they never mask file or environment settings.
type options struct {
	configPath string
	version    bool
	verbose    bool
	inputs     []string

	outDir     *string
	sigma      *float64
	mode       *string
	speedUnits *string
	dbPath     *string
	workers    *int
	noPNG      bool
	noHTML     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fset := flag.NewFlagSet("fieldheat", flag.ContinueOnError)
	fset.SetOutput(stderr)

	var o options
	outDir := fset.String("out-dir", "", "output directory (default from config: outputs)")
	sigma := fset.Float64("sigma", 0, "Gaussian smoothing sigma in grid cells")
	mode := fset.String("mode", "", "kinematics mode: raw or smoothed")
	speedUnits := fset.String("speed-units", "", "smoothed-mode speed units: mps, mph, kmph or kph")
	dbPath := fset.String("db", "", "SQLite result store path (disabled when empty)")
	workers := fset.Int("workers", 0, "parallel grid workers per dataset")
	fset.StringVar(&o.configPath, "config", "", "analytics config JSON (default "+config.DefaultConfigPath+" when present)")
	fset.BoolVar(&o.noPNG, "no-png", false, "skip PNG heatmaps")
	fset.BoolVar(&o.noHTML, "no-html", false, "skip the HTML report")
	fset.BoolVar(&o.verbose, "v", false, "verbose logging")
	fset.BoolVar(&o.version, "version", false, "print version and exit")
	fset.Usage = func() {
		fmt.Fprintf(stderr, "Usage: fieldheat [flags] path[:label] ...\n\nFlags:\n")
		fset.PrintDefaults()
	}
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out-dir":
			o.outDir = outDir
		case "sigma":
			o.sigma = sigma
		case "mode":
			o.mode = mode
		case "speed-units":
			o.speedUnits = speedUnits
		case "db":
			o.dbPath = dbPath
		case "workers":
			o.workers = workers
		}
	})
	o.inputs = fset.Args()
	return &o, nil
}

// loadConfig layers defaults, the config file, FIELDHEAT_* variables and
// finally the command line.
func loadConfig(o *options, lookup func(string) (string, bool)) (*config.AnalyticsConfig, error) {
	cfg := config.EmptyAnalyticsConfig()
	path := o.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		loaded, err := config.LoadAnalyticsConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	if o.outDir != nil {
		cfg.OutDir = o.outDir
	}
	if o.sigma != nil {
		cfg.SmoothingSigma = o.sigma
	}
	if o.mode != nil {
		cfg.KinematicsMode = o.mode
	}
	if o.speedUnits != nil {
		cfg.SpeedUnits = o.speedUnits
	}
	if o.dbPath != nil {
		cfg.StorePath = o.dbPath
	}
	if o.workers != nil {
		cfg.Workers = o.workers
	}
	if o.noPNG {
		off := false
		cfg.RenderPNG = &off
	}
	if o.noHTML {
		off := false
		cfg.RenderHTML = &off
	}
	return cfg, cfg.Validate()
}

// run executes one invocation and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup func(string) (string, bool)) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.version {
		fmt.Fprintf(stdout, "fieldheat %s\n", version.String())
		return 0
	}
	if len(o.inputs) == 0 {
		fmt.Fprintln(stderr, "Usage: fieldheat [flags] path[:label] ...")
		return 2
	}
	monitoring.SetVerbose(o.verbose)

	cfg, err := loadConfig(o, lookup)
	if err != nil {
		fmt.Fprintf(stderr, "configuration: %v\n", err)
		return 2
	}
	settings, err := pipeline.SettingsFromAnalytics(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "configuration: %v\n", err)
		return 2
	}

	osfs := fsutil.OSFileSystem{}
	clock := timeutil.RealClock{}
	sinks := []pipeline.Sink{render.NewWriter(osfs, cfg)}
	if dbPath := cfg.GetStorePath(); dbPath != "" {
		st, err := store.Open(dbPath, clock)
		if err != nil {
			fmt.Fprintf(stderr, "open result store: %v\n", err)
			return 1
		}
		defer st.Close()
		sinks = append(sinks, st)
	}

	inputs := make([]pipeline.Input, 0, len(o.inputs))
	for _, arg := range o.inputs {
		inputs = append(inputs, pipeline.ParseInput(arg))
	}

	stats := monitoring.NewStageStats(clock)
	runner := pipeline.NewRunner(settings, osfs, stats, sinks...)
	results := runner.RunBatch(ctx, inputs)
	stats.LogSummary()

	failed := pipeline.Failed(results)
	for _, r := range results {
		if r.OK() {
			fmt.Fprintf(stdout, "%s\tok\t%d records\t%d entities\n", r.Input.Label, r.Analytics.Summary.Records, len(r.Analytics.Entities))
		} else {
			fmt.Fprintf(stdout, "%s\tfailed\t%v\n", r.Input.Label, r.Err)
		}
	}
	if failed > 0 {
		fmt.Fprintf(stderr, "%d of %d datasets failed\n", failed, len(results))
		return 1
	}
	return 0
}

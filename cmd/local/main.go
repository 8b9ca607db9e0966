package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nemanja-m/diskmr/internal/shared/config"
	"github.com/nemanja-m/diskmr/internal/shared/logging"
	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/input"
	"github.com/nemanja-m/diskmr/pkg/jobs"
	"github.com/nemanja-m/diskmr/pkg/local"
	"github.com/nemanja-m/diskmr/pkg/sink"

	_ "github.com/nemanja-m/diskmr/examples/grep"
	_ "github.com/nemanja-m/diskmr/examples/wordcount"
)

func main() {
	params := core.Params{}

	var (
		inputPattern = flag.String("input", "", "input files glob pattern (supports **)")
		output       = flag.String("output", "", "output directory")
		format       = flag.String("format", string(sink.KindText), "output format: text or dir")
		jobName      = flag.String("job", "", "job to run (e.g., wordcount, grep)")
		workers      = flag.Int("workers", 0, "number of workers (overrides config)")
		configPath   = flag.String("config", "", "path to engine config file")
	)
	flag.Func("param", "job parameter as key=value (repeatable)", func(s string) error {
		key, value, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return fmt.Errorf("expected key=value, got %q", s)
		}
		params[key] = value
		return nil
	})
	flag.Parse()

	cfg, err := config.LoadEngine(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewFormattedLogger(os.Stdout, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	if *inputPattern == "" {
		logger.Fatal("Input pattern must be specified using the -input flag")
	}
	if *output == "" {
		logger.Fatal("Output directory must be specified using the -output flag")
	}
	if *workers < 0 {
		logger.Fatal("Number of workers must be >= 0")
	}
	kind := sink.Kind(*format)
	if kind != sink.KindText && kind != sink.KindDir {
		logger.Fatal("Unsupported output format", "format", *format)
	}

	job, err := jobs.Get(*jobName)
	if err != nil {
		logger.Fatal("Unknown job", "job", *jobName, "available", jobs.List())
	}

	base, pattern := doublestar.SplitPattern(filepath.ToSlash(*inputPattern))
	partition, err := input.Discover(*jobName, filepath.FromSlash(base), pattern)
	if err != nil {
		logger.Fatal("Failed to discover input files", "input", *inputPattern, "error", err)
	}

	jobParams := job.Params.Clone()
	for key, value := range params {
		jobParams[key] = value
	}

	control := local.Control{
		Workers:                cfg.Engine.Workers,
		MapBlockBytes:          cfg.Engine.MapBlockBytes,
		MapBufferBytes:         cfg.Engine.MapBufferBytes,
		MapSpillThresholdBytes: cfg.Engine.MapSpillThresholdBytes,
		ReduceBlockBytes:       cfg.Engine.ReduceBlockBytes,
		ReduceBufferBytes:      cfg.Engine.ReduceBufferBytes,
		TempRoot:               cfg.Engine.TempRoot,
		Logger:                 logger,
	}
	if *workers > 0 {
		control.Workers = *workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting job",
		"job", *jobName,
		"input", *inputPattern,
		"num_input_files", len(partition.Files),
		"output", *output,
		"format", kind,
		"workers", control.Workers,
	)

	result, err := local.Run(ctx, local.Job{
		Name:       *jobName,
		Input:      []input.Partition{partition},
		Setup:      job.Setup,
		Map:        job.Map,
		Reduce:     job.Reduce,
		Params:     jobParams,
		OutputSpec: &sink.Spec{Kind: kind, Path: *output},
		Control:    control,
	})
	if err != nil {
		logger.Fatal("Job failed", "error", err)
	}

	logger.Info("Job completed successfully",
		"run_id", result.RunID.String(),
		"job_id", result.JobID,
		"workspace", result.Workspace,
		"counters", result.Counters,
	)
}

// Package local runs MapReduce jobs on local or shared-mount disk. The map
// phase spills key-grouped emissions into a content-addressed store inside a
// per-job workspace; after every map task has returned, the reduce phase
// regroups that store by key and runs the job's combiner over it, and the
// reduced records are drained into the job's sink.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nemanja-m/diskmr/internal/shared/logging"
	"github.com/nemanja-m/diskmr/pkg/combine"
	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/counter"
	"github.com/nemanja-m/diskmr/pkg/input"
	"github.com/nemanja-m/diskmr/pkg/partition"
	"github.com/nemanja-m/diskmr/pkg/sink"
	"github.com/nemanja-m/diskmr/pkg/store"
	"github.com/nemanja-m/diskmr/pkg/workspace"
)

const (
	DefaultBlockBytes  = 64 << 20
	DefaultBufferBytes = 10 << 20

	// JobLogFile is written to the workspace log directory when no logger is
	// injected.
	JobLogFile = "job.log"

	CounterField = "kvProcessed"
	MapGroup     = "map"
	ReduceGroup  = "reduce"
)

var (
	ErrNothingToReduce = errors.New("nothing to reduce: map phase produced no output")
	ErrNoMapFunc       = errors.New("map function must be specified")
)

// Control tunes job execution. Zero fields take their defaults.
type Control struct {
	// Workers is the size of the worker pool. One or less runs every task
	// sequentially and aborts on the first failure.
	Workers int

	MapBlockBytes          int64
	MapBufferBytes         int64
	MapSpillThresholdBytes int64
	ReduceBlockBytes       int64
	ReduceBufferBytes      int64

	// TempRoot holds the job workspaces. Defaults to os.TempDir().
	TempRoot string

	Logger logging.Logger
}

func (c Control) withDefaults() Control {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MapBlockBytes <= 0 {
		c.MapBlockBytes = DefaultBlockBytes
	}
	if c.MapBufferBytes <= 0 {
		c.MapBufferBytes = DefaultBufferBytes
	}
	if c.MapSpillThresholdBytes <= 0 {
		c.MapSpillThresholdBytes = DefaultBufferBytes
	}
	if c.ReduceBlockBytes <= 0 {
		c.ReduceBlockBytes = DefaultBlockBytes
	}
	if c.ReduceBufferBytes <= 0 {
		c.ReduceBufferBytes = DefaultBufferBytes
	}
	return c
}

type Job struct {
	Name  string
	Input []input.Partition

	Setup core.SetupFunc
	Map   core.MapFunc
	// Reduce defaults to combine.Passthrough.
	Reduce *combine.Combiner

	Params core.Params

	// Output is a ready sink. When nil, OutputSpec describes the sink to
	// build once the number of output keys is known; when both are nil the
	// output is collected in memory. Sinks built by the engine are closed
	// by it; a supplied Output is left open for the caller.
	Output     sink.Sink
	OutputSpec *sink.Spec

	Control Control
}

type Result struct {
	RunID     uuid.UUID
	JobID     int
	Workspace string

	Output   sink.Sink
	Counters counter.Totals
	// Final holds the combiner's finalized value, if it has a Finalize step.
	Final any
}

type Engine struct {
	job      Job
	control  Control
	combiner *combine.Combiner

	ws     *workspace.Workspace
	logger logging.Logger
	runID  uuid.UUID

	mapStore    *store.Store
	reduceStore *store.Store
}

func NewEngine(job Job) *Engine {
	combiner := job.Reduce
	if combiner == nil {
		combiner = combine.Passthrough()
	}
	return &Engine{
		job:      job,
		control:  job.Control.withDefaults(),
		combiner: combiner,
	}
}

// Run executes job to completion.
func Run(ctx context.Context, job Job) (*Result, error) {
	return NewEngine(job).Run(ctx)
}

// Run executes the job. On failure the workspace is left in place for
// inspection; on success its scratch trees are removed and the completion
// marker is written.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	files, err := e.validate()
	if err != nil {
		return nil, err
	}

	e.ws, err = workspace.Create(e.control.TempRoot)
	if err != nil {
		return nil, err
	}
	closeLog, err := e.openLogger()
	if err != nil {
		return nil, err
	}
	defer closeLog()

	e.runID = uuid.New()
	e.mapStore = store.New(e.ws.MapDir(), false)
	e.reduceStore = store.New(e.ws.ReduceDir(), true)

	e.logger.Info("Starting job",
		"run_id", e.runID.String(),
		"job_id", e.ws.ID,
		"name", e.job.Name,
		"workspace", e.ws.Root,
		"combiner", e.combiner.Name,
		"num_input_files", len(files),
		"workers", e.control.Workers,
	)

	result, err := e.run(ctx, files)
	if err != nil {
		e.logger.Error("Job failed", "run_id", e.runID.String(), "job_id", e.ws.ID, "error", err)
		return nil, err
	}

	e.logger.Info("Job completed", "run_id", e.runID.String(), "job_id", e.ws.ID, "counters", result.Counters)
	return result, nil
}

func (e *Engine) run(ctx context.Context, files []input.File) (*Result, error) {
	if err := e.runMapPhase(ctx, files); err != nil {
		return nil, err
	}

	buckets, err := e.mapStore.Buckets()
	if err != nil {
		return nil, err
	}
	if len(buckets) == 0 {
		return nil, ErrNothingToReduce
	}

	if err := e.runReducePhase(ctx, buckets); err != nil {
		return nil, err
	}

	out, err := e.materialize()
	if err != nil {
		return nil, err
	}

	totals, err := counter.Aggregate(e.ws.CountersDir())
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     e.runID,
		JobID:     e.ws.ID,
		Workspace: e.ws.Root,
		Output:    out,
		Counters:  totals,
	}
	if e.combiner.Finalize != nil {
		result.Final, err = e.combiner.Finalize(out)
		if err != nil {
			return nil, fmt.Errorf("error finalizing output: %w", err)
		}
	}

	if err := e.ws.Complete(); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) runMapPhase(ctx context.Context, files []input.File) error {
	groups := input.Split(files, e.control.MapBlockBytes, e.control.Workers)
	e.logger.Info("Planned map phase", "job_id", e.ws.ID, "num_map_tasks", len(groups))

	tasks := make([]Task, len(groups))
	for i, group := range groups {
		taskID := fmt.Sprintf("map-%04d", i+1)
		tasks[i] = func() error {
			e.logger.Info("Starting map task", "task_id", taskID, "blocks", len(input.Blocks(group)))
			if err := e.runMapTask(taskID, group); err != nil {
				e.logger.Error("Error running map task", "task_id", taskID, "error", err)
				return fmt.Errorf("map task %s: %w", taskID, err)
			}
			e.logger.Info("Completed map task", "task_id", taskID)
			return nil
		}
	}
	return e.runTasks(ctx, tasks)
}

func (e *Engine) runReducePhase(ctx context.Context, buckets []store.Bucket) error {
	sizes := make([]int64, len(buckets))
	for i, bucket := range buckets {
		sizes[i] = bucket.Size
	}
	plan := partition.Blocks(sizes, e.control.ReduceBlockBytes, e.control.Workers)
	e.logger.Info("Planned reduce phase", "job_id", e.ws.ID, "num_keys", len(buckets), "num_reduce_tasks", len(plan))

	tasks := make([]Task, len(plan))
	for i, block := range plan {
		taskID := fmt.Sprintf("reduce-%04d", i+1)
		assigned := make([]store.Bucket, len(block))
		for j, idx := range block {
			assigned[j] = buckets[idx]
		}
		tasks[i] = func() error {
			e.logger.Info("Starting reduce task", "task_id", taskID, "num_keys", len(assigned))
			if err := e.runReduceTask(taskID, assigned); err != nil {
				e.logger.Error("Error running reduce task", "task_id", taskID, "error", err)
				return fmt.Errorf("reduce task %s: %w", taskID, err)
			}
			e.logger.Info("Completed reduce task", "task_id", taskID)
			return nil
		}
	}
	return e.runTasks(ctx, tasks)
}

// runTasks runs every task and returns once all have finished. This is the
// barrier between phases.
func (e *Engine) runTasks(ctx context.Context, tasks []Task) error {
	if e.control.Workers <= 1 {
		for _, task := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := task(); err != nil {
				return err
			}
		}
		return nil
	}

	pool := NewPool(e.control.Workers)
	pool.Start()
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		pool.Submit(task)
	}
	if err := pool.Close(); err != nil {
		return err
	}
	return ctx.Err()
}

func (e *Engine) validate() ([]input.File, error) {
	if e.job.Map == nil {
		return nil, ErrNoMapFunc
	}
	if err := e.combiner.Validate(); err != nil {
		return nil, err
	}
	if err := e.combiner.CheckSink(e.outputKind()); err != nil {
		return nil, err
	}
	return input.Files(e.job.Input)
}

func (e *Engine) outputKind() sink.Kind {
	switch {
	case e.job.Output != nil:
		return e.job.Output.Kind()
	case e.job.OutputSpec != nil:
		return e.job.OutputSpec.Kind
	default:
		return sink.KindMemory
	}
}

func (e *Engine) openLogger() (func(), error) {
	if e.control.Logger != nil {
		e.logger = e.control.Logger
		return func() {}, nil
	}

	f, err := os.Create(filepath.Join(e.ws.LogDir(), JobLogFile))
	if err != nil {
		return nil, fmt.Errorf("error creating job log: %w", err)
	}
	e.logger = logging.NewSlogLoggerTo(f, slog.LevelInfo)
	return func() { f.Close() }, nil
}

package local

import (
	"fmt"

	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/counter"
	"github.com/nemanja-m/diskmr/pkg/input"
)

func (e *Engine) runMapTask(taskID string, files []input.File) error {
	emitter := &taskEmitter{
		writer:   e.mapStore.Writer(taskID),
		counters: counter.New(e.ws.CountersDir(), taskID),
		keyOf:    e.combiner.MapKey,
	}

	params := e.job.Params.Clone()
	if e.job.Setup != nil {
		if err := e.job.Setup(params); err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
	}

	for _, sub := range input.Split(files, e.control.MapBufferBytes, 1) {
		keys, values, err := input.Load(sub)
		if err != nil {
			return err
		}

		ctx := &core.MapContext{
			TaskID:  taskID,
			Keys:    keys,
			Values:  values,
			Params:  params.Clone(),
			Emitter: emitter,
		}
		if err := e.job.Map(ctx); err != nil {
			return err
		}

		if err := emitter.Counter(MapGroup, CounterField, int64(len(keys))); err != nil {
			return err
		}
		if err := emitter.spillIfFull(e.control.MapSpillThresholdBytes); err != nil {
			return err
		}
	}

	return emitter.Flush()
}

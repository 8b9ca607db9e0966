package local

import (
	"fmt"

	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/counter"
	"github.com/nemanja-m/diskmr/pkg/partition"
	"github.com/nemanja-m/diskmr/pkg/store"
)

func (e *Engine) runReduceTask(taskID string, buckets []store.Bucket) error {
	emitter := &taskEmitter{
		writer:   e.reduceStore.Writer(taskID),
		counters: counter.New(e.ws.CountersDir(), taskID),
	}

	params := e.job.Params.Clone()
	if e.job.Setup != nil {
		if err := e.job.Setup(params); err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
	}

	reduction := e.combiner.Instantiate()
	for _, bucket := range buckets {
		key, err := e.mapStore.Key(bucket)
		if err != nil {
			return err
		}

		ctx := &core.ReduceContext{
			TaskID:  taskID,
			Key:     key,
			Params:  params,
			Emitter: emitter,
		}
		if err := reduction.Pre(ctx); err != nil {
			return err
		}
		for _, block := range partition.Blocks(store.ChunkSizes(bucket.Chunks), e.control.ReduceBufferBytes, 1) {
			chunks := make([]store.Chunk, len(block))
			for i, idx := range block {
				chunks[i] = bucket.Chunks[idx]
			}
			values, err := store.ReadValues(chunks)
			if err != nil {
				return err
			}

			ctx.Values = values
			if err := reduction.Reduce(ctx); err != nil {
				return err
			}
		}
		ctx.Values = nil
		if err := reduction.Post(ctx); err != nil {
			return err
		}

		if err := emitter.Counter(ReduceGroup, CounterField, 1); err != nil {
			return err
		}
		if err := emitter.spillIfFull(e.control.MapSpillThresholdBytes); err != nil {
			return err
		}
	}

	return emitter.Flush()
}

// Package combine defines the reduction protocol run for every key during the
// reduce phase, together with the built-in combiners.
//
// A reduction is a three phase state machine over one key's grouped values:
// Pre initializes the accumulator, Reduce folds one sub-block of values into
// it and Post finalizes and emits. Reduce may run any number of times per key
// and must give the same result however the values are split into
// sub-blocks.
package combine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/sink"
)

// SyntheticKey replaces every map-side key when a combiner does not group.
const SyntheticKey = "1"

var ErrSinkNotAccepted = errors.New("sink kind not accepted by combiner")

type Phase func(ctx *core.ReduceContext) error

// Reduction holds the phases of one reduce task. The phases are closures over
// a shared accumulator, so a Reduction must never be shared between tasks.
type Reduction struct {
	Pre    Phase
	Reduce Phase
	Post   Phase
}

type Combiner struct {
	Name string

	// New builds a fresh Reduction for each reduce task.
	New func() Reduction

	// Group is false for combiners that aggregate every value of the job
	// under SyntheticKey.
	Group bool

	// Sinks lists the accepted output kinds. Empty accepts any kind.
	Sinks []sink.Kind

	// Finalize optionally post-processes the materialized output once the
	// job has finished.
	Finalize func(out sink.Sink) (any, error)
}

func (c *Combiner) Validate() error {
	if c.New == nil {
		return fmt.Errorf("combiner %q has no reduction", c.Name)
	}
	return nil
}

func (c *Combiner) Accepts(kind sink.Kind) bool {
	return len(c.Sinks) == 0 || slices.Contains(c.Sinks, kind)
}

// CheckSink returns ErrSinkNotAccepted when kind is not accepted.
func (c *Combiner) CheckSink(kind sink.Kind) error {
	if c.Accepts(kind) {
		return nil
	}
	return fmt.Errorf("%w: %s does not write to %q (accepts %v)", ErrSinkNotAccepted, c.Name, kind, c.Sinks)
}

// MapKey is the key a map-side collect stores value under.
func (c *Combiner) MapKey(key any) any {
	if c.Group {
		return key
	}
	return SyntheticKey
}

// Instantiate returns a Reduction whose missing phases are no-ops.
func (c *Combiner) Instantiate() Reduction {
	r := c.New()
	if r.Pre == nil {
		r.Pre = noop
	}
	if r.Reduce == nil {
		r.Reduce = noop
	}
	if r.Post == nil {
		r.Post = noop
	}
	return r
}

// Apply runs a full pre/reduce/post cycle for one key over the given value
// sub-blocks.
func Apply(r Reduction, ctx *core.ReduceContext, blocks ...[]any) error {
	if err := r.Pre(ctx); err != nil {
		return err
	}
	for _, values := range blocks {
		ctx.Values = values
		if err := r.Reduce(ctx); err != nil {
			return err
		}
	}
	ctx.Values = nil
	return r.Post(ctx)
}

func noop(*core.ReduceContext) error {
	return nil
}

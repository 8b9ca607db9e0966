package combine

import (
	"fmt"

	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/sink"
)

// Passthrough emits every incoming value unchanged under its key. It is the
// reduction used when a job supplies none.
func Passthrough() *Combiner {
	return &Combiner{
		Name:  "passthrough",
		Group: true,
		New: func() Reduction {
			return Reduction{
				Reduce: func(ctx *core.ReduceContext) error {
					for _, value := range ctx.Values {
						if err := ctx.Collect(ctx.Key, value); err != nil {
							return err
						}
					}
					return nil
				},
			}
		},
	}
}

// Collect gathers a key's values and emits each one as its own record once
// the key is complete. Output is only valid in memory.
func Collect() *Combiner {
	return &Combiner{
		Name:  "collect",
		Group: true,
		Sinks: []sink.Kind{sink.KindMemory},
		New: func() Reduction {
			var acc []any
			return Reduction{
				Pre: func(*core.ReduceContext) error {
					acc = nil
					return nil
				},
				Reduce: func(ctx *core.ReduceContext) error {
					acc = append(acc, ctx.Values...)
					return nil
				},
				Post: func(ctx *core.ReduceContext) error {
					for _, value := range acc {
						if err := ctx.Collect(ctx.Key, value); err != nil {
							return err
						}
					}
					return nil
				},
			}
		},
	}
}

// GroupedCollect emits one record per key holding all of the key's values.
func GroupedCollect() *Combiner {
	return &Combiner{
		Name:  "grouped-collect",
		Group: true,
		Sinks: []sink.Kind{sink.KindMemory, sink.KindDir},
		New: func() Reduction {
			var acc []any
			return Reduction{
				Pre: func(*core.ReduceContext) error {
					acc = []any{}
					return nil
				},
				Reduce: func(ctx *core.ReduceContext) error {
					acc = append(acc, ctx.Values...)
					return nil
				},
				Post: func(ctx *core.ReduceContext) error {
					return ctx.Collect(ctx.Key, acc)
				},
			}
		},
	}
}

// RowConcat concatenates rows per key. A value is either a single row or a
// list of rows; lists are flattened one level.
func RowConcat() *Combiner {
	return &Combiner{
		Name:  "row-concat",
		Group: true,
		Sinks: []sink.Kind{sink.KindMemory, sink.KindDir, sink.KindText},
		New: func() Reduction {
			var rows []any
			return Reduction{
				Pre: func(*core.ReduceContext) error {
					rows = []any{}
					return nil
				},
				Reduce: func(ctx *core.ReduceContext) error {
					for _, value := range ctx.Values {
						if list, ok := value.([]any); ok {
							rows = append(rows, list...)
						} else {
							rows = append(rows, value)
						}
					}
					return nil
				},
				Post: func(ctx *core.ReduceContext) error {
					return ctx.Collect(ctx.Key, rows)
				},
			}
		},
	}
}

// Mean computes the elementwise mean of numeric scalars or equally sized
// vectors across the whole job.
func Mean() *Combiner {
	return &Combiner{
		Name:     "mean",
		Group:    false,
		Sinks:    []sink.Kind{sink.KindMemory},
		Finalize: unwrapSingleton,
		New: func() Reduction {
			var (
				sum    []float64
				count  int
				scalar bool
			)
			return Reduction{
				Pre: func(*core.ReduceContext) error {
					sum, count, scalar = nil, 0, false
					return nil
				},
				Reduce: func(ctx *core.ReduceContext) error {
					for _, value := range ctx.Values {
						vec, isScalar, err := toVector(value)
						if err != nil {
							return err
						}
						if sum == nil {
							sum = make([]float64, len(vec))
							scalar = isScalar
						}
						if err := addScaled(sum, vec, 1); err != nil {
							return err
						}
						count++
					}
					return nil
				},
				Post: func(ctx *core.ReduceContext) error {
					if count == 0 {
						return nil
					}
					mean := scale(sum, 1/float64(count))
					if scalar {
						return ctx.Collect(ctx.Key, mean[0])
					}
					return ctx.Collect(ctx.Key, mean)
				},
			}
		},
	}
}

// MeanCoef computes the n-weighted mean of model coefficients. Every value is
// a map {"coef": vector, "n": count}; the result has the same shape with the
// weighted mean coefficients and the total count.
func MeanCoef() *Combiner {
	return &Combiner{
		Name:     "mean-coef",
		Group:    false,
		Sinks:    []sink.Kind{sink.KindMemory},
		Finalize: unwrapSingleton,
		New: func() Reduction {
			var (
				weighted []float64
				total    float64
			)
			return Reduction{
				Pre: func(*core.ReduceContext) error {
					weighted, total = nil, 0
					return nil
				},
				Reduce: func(ctx *core.ReduceContext) error {
					for _, value := range ctx.Values {
						fit, ok := value.(map[string]any)
						if !ok {
							return fmt.Errorf("mean-coef expects {coef, n} maps, got %T", value)
						}
						coef, _, err := toVector(fit["coef"])
						if err != nil {
							return fmt.Errorf("invalid coef: %w", err)
						}
						n, err := toFloat(fit["n"])
						if err != nil {
							return fmt.Errorf("invalid n: %w", err)
						}
						if weighted == nil {
							weighted = make([]float64, len(coef))
						}
						if err := addScaled(weighted, coef, n); err != nil {
							return err
						}
						total += n
					}
					return nil
				},
				Post: func(ctx *core.ReduceContext) error {
					if total == 0 {
						return nil
					}
					return ctx.Collect(ctx.Key, map[string]any{
						"coef": scale(weighted, 1/total),
						"n":    total,
					})
				},
			}
		},
	}
}

// unwrapSingleton returns the only value of an in-memory output, or every
// value when there are several.
func unwrapSingleton(out sink.Sink) (any, error) {
	mem, ok := out.(*sink.Memory)
	if !ok {
		return nil, fmt.Errorf("cannot finalize %q output", out.Kind())
	}
	records := mem.Records()
	if len(records) == 1 {
		return records[0].Value, nil
	}
	values := make([]any, len(records))
	for i, record := range records {
		values[i] = record.Value
	}
	return values, nil
}

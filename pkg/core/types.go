package core

// KeyValue is a single emitted record. Keys and values hold JSON-like data:
// nil, bool, numbers, strings, slices and string-keyed maps.
type KeyValue struct {
	Key   any
	Value any
}

// Emitter is the set of primitives bound into every task context.
type Emitter interface {
	Collect(key, value any) error
	Counter(group, field string, delta int64) error
	Flush() error
}

// MapContext is the private execution context of one map task. Keys and
// Values are parallel slices holding the records of the current sub-block.
type MapContext struct {
	TaskID string
	Keys   []any
	Values []any
	Params Params

	Emitter
}

// ReduceContext is the private execution context of one reduce task. Values
// holds the current sub-block of the values grouped under Key.
type ReduceContext struct {
	TaskID string
	Key    any
	Values []any
	Params Params

	Emitter
}

type SetupFunc func(params Params) error

type MapFunc func(ctx *MapContext) error

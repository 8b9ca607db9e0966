package local

import (
	"github.com/nemanja-m/diskmr/pkg/counter"
	"github.com/nemanja-m/diskmr/pkg/store"
)

// taskEmitter binds collect, counter and flush to one task's store writer
// and counter directory.
type taskEmitter struct {
	writer   *store.Writer
	counters *counter.Counters
	keyOf    func(key any) any
}

func (t *taskEmitter) Collect(key, value any) error {
	if t.keyOf != nil {
		key = t.keyOf(key)
	}
	return t.writer.Collect(key, value)
}

func (t *taskEmitter) Counter(group, field string, delta int64) error {
	return t.counters.Increment(group, field, delta)
}

func (t *taskEmitter) Flush() error {
	return t.writer.Flush()
}

// spillIfFull flushes once buffered emissions exceed threshold.
func (t *taskEmitter) spillIfFull(threshold int64) error {
	if int64(t.writer.BufferedBytes()) > threshold {
		return t.writer.Flush()
	}
	return nil
}

package local

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_TaskExecution(t *testing.T) {
	p := NewPool(2)
	p.Start()

	var called int32
	p.Submit(func() error { atomic.AddInt32(&called, 1); return nil })
	p.Submit(func() error { atomic.AddInt32(&called, 1); return nil })

	// close and wait for tasks
	require.NoError(t, p.Close())
	require.Equal(t, int32(2), atomic.LoadInt32(&called))
}

func TestPool_CloseWaitsForLongTask(t *testing.T) {
	p := NewPool(1)
	p.Start()

	var done int32
	p.Submit(func() error {
		time.Sleep(50 * time.Millisecond)
		atomic.StoreInt32(&done, 1)
		return nil
	})

	// Close should wait for the running task to finish
	require.NoError(t, p.Close())
	require.Equal(t, int32(1), atomic.LoadInt32(&done))
}

func TestPool_CloseSurfacesTaskErrors(t *testing.T) {
	p := NewPool(3)
	p.Start()

	errA := errors.New("task a failed")
	errB := errors.New("task b failed")
	var completed int32
	p.Submit(func() error { return errA })
	p.Submit(func() error { atomic.AddInt32(&completed, 1); return nil })
	p.Submit(func() error { return errB })

	err := p.Close()
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)
	require.Equal(t, int32(1), atomic.LoadInt32(&completed))
}

func TestPool_NonPositiveWorkers(t *testing.T) {
	p := NewPool(0)
	p.Start()

	var called int32
	p.Submit(func() error { atomic.AddInt32(&called, 1); return nil })
	require.NoError(t, p.Close())
	require.Equal(t, int32(1), atomic.LoadInt32(&called))
}

func TestPool_SubmitAfterClosePanics(t *testing.T) {
	p := NewPool(1)
	p.Start()
	require.NoError(t, p.Close())

	// Submitting after close will panic; ensure it does and recover
	didPanic := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				didPanic = true
			}
		}()
		p.Submit(func() error { return nil })
	}()
	require.True(t, didPanic)
}

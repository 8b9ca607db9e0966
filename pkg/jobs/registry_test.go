package jobs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/diskmr/pkg/combine"
	"github.com/nemanja-m/diskmr/pkg/core"
)

func TestRegistry(t *testing.T) {
	t.Cleanup(func() { registry = make(map[string]Job) })

	noop := func(*core.MapContext) error { return nil }

	require.NoError(t, Register("b-job", Job{Map: noop}))
	require.NoError(t, Register("a-job", Job{Map: noop, Reduce: combine.Collect()}))
	require.Error(t, Register("a-job", Job{Map: noop}))
	require.Error(t, Register("no-map", Job{}))

	job, err := Get("a-job")
	require.NoError(t, err)
	require.Equal(t, "collect", job.Reduce.Name)

	_, err = Get("missing")
	require.Error(t, err)

	require.Equal(t, []string{"a-job", "b-job"}, List())
}

package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type counterParam struct {
	n int
}

func (c *counterParam) Clone() any {
	return &counterParam{n: c.n}
}

func TestParams_CloneIsDeep(t *testing.T) {
	original := Params{
		"weights": []float64{1, 2},
		"nested":  map[string]any{"list": []any{"a", "b"}},
		"custom":  &counterParam{n: 1},
		"scalar":  3,
	}

	clone := original.Clone()
	clone["weights"].([]float64)[0] = 100
	clone["nested"].(map[string]any)["list"].([]any)[0] = "z"
	clone["custom"].(*counterParam).n = 42
	clone["scalar"] = 4

	require.Equal(t, []float64{1, 2}, original["weights"])
	require.Equal(t, "a", original["nested"].(map[string]any)["list"].([]any)[0])
	require.Equal(t, 1, original["custom"].(*counterParam).n)
	require.Equal(t, 3, original["scalar"])
}

func TestParams_CloneNil(t *testing.T) {
	var p Params
	clone := p.Clone()
	require.NotNil(t, clone)
	require.Empty(t, clone)
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name          string
		key           string
		numPartitions int
	}{
		{name: "single partition", key: "abc", numPartitions: 1},
		{name: "many partitions", key: "abc", numPartitions: 7},
		{name: "empty key", key: "", numPartitions: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Partition(tt.key, tt.numPartitions)
			require.GreaterOrEqual(t, got, 0)
			require.Less(t, got, tt.numPartitions)
			require.Equal(t, got, Partition(tt.key, tt.numPartitions))
		})
	}

	require.Equal(t, 0, Partition("abc", 0))
}

func TestContentHash_Stable(t *testing.T) {
	a := ContentHash([]byte("key"))
	b := ContentHash([]byte("key"))
	c := ContentHash([]byte("other"))

	require.Len(t, a, 32)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

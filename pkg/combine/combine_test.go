package combine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/sink"
)

type recordingEmitter struct {
	records []core.KeyValue
}

func (e *recordingEmitter) Collect(key, value any) error {
	e.records = append(e.records, core.KeyValue{Key: key, Value: value})
	return nil
}

func (e *recordingEmitter) Counter(string, string, int64) error { return nil }
func (e *recordingEmitter) Flush() error                        { return nil }

func run(t *testing.T, c *Combiner, key any, blocks ...[]any) []core.KeyValue {
	t.Helper()
	emitter := &recordingEmitter{}
	ctx := &core.ReduceContext{Key: key, Emitter: emitter}
	require.NoError(t, Apply(c.Instantiate(), ctx, blocks...))
	return emitter.records
}

func TestCombiners_AssociativeAcrossSplits(t *testing.T) {
	rows := []any{
		map[string]any{"x": 1.0},
		[]any{map[string]any{"x": 2.0}, map[string]any{"x": 3.0}},
		map[string]any{"x": 4.0},
		map[string]any{"x": 5.0},
	}
	fits := []any{
		map[string]any{"coef": []any{1.0, 2.0}, "n": 10.0},
		map[string]any{"coef": []any{3.0, 0.0}, "n": 30.0},
		map[string]any{"coef": []any{-1.0, 4.0}, "n": 60.0},
	}

	tests := []struct {
		name     string
		combiner *Combiner
		values   []any
	}{
		{name: "passthrough", combiner: Passthrough(), values: []any{1.0, "a", 3.0}},
		{name: "collect", combiner: Collect(), values: []any{1.0, "a", 3.0}},
		{name: "grouped collect", combiner: GroupedCollect(), values: []any{1.0, "a", 3.0}},
		{name: "row concat", combiner: RowConcat(), values: rows},
		{name: "mean scalars", combiner: Mean(), values: []any{1.0, 2.0, 6.0, 7.0}},
		{name: "mean vectors", combiner: Mean(), values: []any{[]any{1.0, 2.0}, []any{3.0, 4.0}, []any{5.0, 0.0}}},
		{name: "mean coef", combiner: MeanCoef(), values: fits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := run(t, tt.combiner, "k", tt.values)
			require.NotEmpty(t, want)

			for k := 0; k <= len(tt.values); k++ {
				got := run(t, tt.combiner, "k", tt.values[:k], tt.values[k:])
				require.InDeltaMapValues(t, toMap(want), toMap(got), 1e-9, "split at %d", k)
				require.Equal(t, len(want), len(got))
			}
		})
	}
}

func TestMeanCoef_WeightedAverage(t *testing.T) {
	out := run(t, MeanCoef(), SyntheticKey, []any{
		map[string]any{"coef": []float64{1, 2}, "n": 10},
		map[string]any{"coef": []any{3.0, 0.0}, "n": 30.0},
	})
	require.Len(t, out, 1)

	fit := out[0].Value.(map[string]any)
	require.InDeltaSlice(t, []float64{(10*1 + 30*3) / 40.0, (10 * 2) / 40.0}, fit["coef"], 1e-12)
	require.Equal(t, 40.0, fit["n"])
}

func TestMeanCoef_RejectsMalformed(t *testing.T) {
	emitter := &recordingEmitter{}
	ctx := &core.ReduceContext{Key: "k", Emitter: emitter}

	err := Apply(MeanCoef().Instantiate(), ctx, []any{1.0})
	require.Error(t, err)

	err = Apply(MeanCoef().Instantiate(), ctx, []any{map[string]any{"coef": []any{"a"}, "n": 1.0}})
	require.Error(t, err)
}

func TestMean_MismatchedVectors(t *testing.T) {
	ctx := &core.ReduceContext{Key: "k", Emitter: &recordingEmitter{}}
	err := Apply(Mean().Instantiate(), ctx, []any{[]any{1.0}, []any{1.0, 2.0}})
	require.Error(t, err)
}

func TestMean_ScalarResult(t *testing.T) {
	out := run(t, Mean(), "k", []any{1, 2.0}, []any{int64(6)})
	require.Equal(t, []core.KeyValue{{Key: "k", Value: 3.0}}, out)
}

func TestReduction_StateResetsBetweenKeys(t *testing.T) {
	r := RowConcat().Instantiate()
	emitter := &recordingEmitter{}

	ctx := &core.ReduceContext{Key: "a", Emitter: emitter}
	require.NoError(t, Apply(r, ctx, []any{"r1", "r2"}))
	ctx.Key = "b"
	require.NoError(t, Apply(r, ctx, []any{"r3"}))

	require.Equal(t, []core.KeyValue{
		{Key: "a", Value: []any{"r1", "r2"}},
		{Key: "b", Value: []any{"r3"}},
	}, emitter.records)
}

func TestCombiner_Sinks(t *testing.T) {
	require.True(t, Passthrough().Accepts(sink.KindText))
	require.True(t, MeanCoef().Accepts(sink.KindMemory))
	require.ErrorIs(t, MeanCoef().CheckSink(sink.KindDir), ErrSinkNotAccepted)
	require.NoError(t, RowConcat().CheckSink(sink.KindDir))
}

func TestCombiner_MapKey(t *testing.T) {
	require.Equal(t, "setosa", RowConcat().MapKey("setosa"))
	require.Equal(t, SyntheticKey, MeanCoef().MapKey("partition-3"))
}

func TestCombiner_InstantiateFillsMissingPhases(t *testing.T) {
	c := &Combiner{Name: "empty", New: func() Reduction { return Reduction{} }}
	require.NoError(t, c.Validate())
	require.Empty(t, run(t, c, "k", []any{1.0}))

	require.Error(t, (&Combiner{Name: "broken"}).Validate())
}

func TestFinalize_UnwrapSingleton(t *testing.T) {
	mem := sink.NewMemory()
	require.NoError(t, mem.Append([]core.KeyValue{{Key: SyntheticKey, Value: 2.5}}))

	got, err := MeanCoef().Finalize(mem)
	require.NoError(t, err)
	require.Equal(t, 2.5, got)

	require.NoError(t, mem.Append([]core.KeyValue{{Key: SyntheticKey, Value: 3.5}}))
	got, err = Mean().Finalize(mem)
	require.NoError(t, err)
	require.Equal(t, []any{2.5, 3.5}, got)
}

// toMap flattens emitted records into comparable numeric leaves.
func toMap(records []core.KeyValue) map[string]float64 {
	out := make(map[string]float64)
	for i, record := range records {
		flatten(out, string(rune('a'+i)), record.Value)
	}
	return out
}

func flatten(out map[string]float64, prefix string, v any) {
	switch t := v.(type) {
	case float64:
		out[prefix] = t
	case []float64:
		for i, f := range t {
			out[prefix+"/"+string(rune('0'+i))] = f
		}
	case []any:
		out[prefix+"#len"] = float64(len(t))
		for i, elem := range t {
			flatten(out, prefix+"/"+string(rune('0'+i)), elem)
		}
	case map[string]any:
		for k, elem := range t {
			flatten(out, prefix+"."+k, elem)
		}
	case string:
		out[prefix+"="+t] = 1
	}
}

package combine

import "fmt"

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// toVector accepts a number or a list of numbers. The flag reports a scalar.
func toVector(v any) ([]float64, bool, error) {
	switch vec := v.(type) {
	case []float64:
		return vec, false, nil
	case []any:
		out := make([]float64, len(vec))
		for i, elem := range vec {
			f, err := toFloat(elem)
			if err != nil {
				return nil, false, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = f
		}
		return out, false, nil
	default:
		f, err := toFloat(v)
		if err != nil {
			return nil, false, err
		}
		return []float64{f}, true, nil
	}
}

func addScaled(acc, vec []float64, weight float64) error {
	if len(acc) != len(vec) {
		return fmt.Errorf("vector length mismatch: %d != %d", len(vec), len(acc))
	}
	for i := range acc {
		acc[i] += weight * vec[i]
	}
	return nil
}

func scale(vec []float64, factor float64) []float64 {
	out := make([]float64, len(vec))
	for i := range vec {
		out[i] = vec[i] * factor
	}
	return out
}

package core

// Cloner is implemented by parameter values that know how to deep copy
// themselves.
type Cloner interface {
	Clone() any
}

// Params are user bindings exposed to map and reduce routines. Each task
// works on its own deep copy so mutations never leak between tasks.
type Params map[string]any

func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	clone := make(Params, len(p))
	for name, value := range p {
		clone[name] = deepCopy(value)
	}
	return clone
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case Cloner:
		return v.Clone()
	case Params:
		return v.Clone()
	case map[string]any:
		m := make(map[string]any, len(v))
		for key, elem := range v {
			m[key] = deepCopy(elem)
		}
		return m
	case []any:
		s := make([]any, len(v))
		for i, elem := range v {
			s[i] = deepCopy(elem)
		}
		return s
	case []float64:
		return append([]float64(nil), v...)
	case []int:
		return append([]int(nil), v...)
	case []string:
		return append([]string(nil), v...)
	case []byte:
		return append([]byte(nil), v...)
	default:
		return v
	}
}

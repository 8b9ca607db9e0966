// Package codec serializes keys, values and key/value records with protocol
// buffers. Arbitrary JSON-like data is carried as structpb values and written
// to files as size-delimited message streams so they can be appended to.
package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"reflect"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nemanja-m/diskmr/pkg/core"
)

var (
	marshalOptions   = proto.MarshalOptions{Deterministic: true}
	delimOptions     = protodelim.MarshalOptions{MarshalOptions: marshalOptions}
	unmarshalOptions = protodelim.UnmarshalOptions{MaxSize: -1}
)

// ToValue converts a Go value into its protobuf representation. Integers
// beyond MaxExactInt in magnitude fail with ErrInexactInt.
func ToValue(v any) (*structpb.Value, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	value, err := structpb.NewValue(normalized)
	if err != nil {
		return nil, fmt.Errorf("unsupported value %T: %w", v, err)
	}
	return value, nil
}

// FromValue converts a protobuf value back into plain Go data. Numbers are
// always returned as float64.
func FromValue(v *structpb.Value) any {
	return v.AsInterface()
}

// MarshalKey serializes a key deterministically, so equal keys always produce
// identical bytes and therefore identical content hashes.
func MarshalKey(key any) ([]byte, error) {
	value, err := ToValue(key)
	if err != nil {
		return nil, err
	}
	return marshalOptions.Marshal(value)
}

func UnmarshalKey(data []byte) (any, error) {
	var value structpb.Value
	if err := proto.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("error decoding key: %w", err)
	}
	return FromValue(&value), nil
}

// Size reports the encoded size of a value.
func Size(v *structpb.Value) int {
	return marshalOptions.Size(v)
}

// WriteValues appends values to w as a size-delimited stream.
func WriteValues(w io.Writer, values []*structpb.Value) error {
	for _, value := range values {
		if _, err := delimOptions.MarshalTo(w, value); err != nil {
			return err
		}
	}
	return nil
}

// ReadValues reads a stream written by WriteValues until EOF.
func ReadValues(r io.Reader) ([]any, error) {
	br := bufio.NewReader(r)
	var values []any
	for {
		var value structpb.Value
		err := unmarshalOptions.UnmarshalFrom(br, &value)
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, fmt.Errorf("error decoding value stream: %w", err)
		}
		values = append(values, FromValue(&value))
	}
}

// WriteRecords appends key/value records to w, each encoded as a two element
// list.
func WriteRecords(w io.Writer, records []core.KeyValue) error {
	values := make([]*structpb.Value, 0, len(records))
	for _, record := range records {
		pair, err := ToValue([]any{record.Key, record.Value})
		if err != nil {
			return err
		}
		values = append(values, pair)
	}
	return WriteValues(w, values)
}

// ReadRecords reads a stream written by WriteRecords.
func ReadRecords(r io.Reader) ([]core.KeyValue, error) {
	values, err := ReadValues(r)
	if err != nil {
		return nil, err
	}
	records := make([]core.KeyValue, 0, len(values))
	for i, value := range values {
		pair, ok := value.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("malformed record at position %d", i)
		}
		records = append(records, core.KeyValue{Key: pair[0], Value: pair[1]})
	}
	return records, nil
}

// MaxExactInt is the largest integer magnitude a protobuf number value holds
// without rounding.
const MaxExactInt = 1 << 53

var ErrInexactInt = errors.New("integer out of exact float64 range")

// normalize rewrites typed slices, maps, pointers and named scalar types into
// the shapes accepted by structpb.NewValue. Integers that would be rounded
// are rejected so distinct keys never encode to the same bytes.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return t, nil
	case core.Params:
		v = map[string]any(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			elem, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			elem, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = elem
		}
		return out, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n > MaxExactInt || n < -MaxExactInt {
			return nil, fmt.Errorf("%w: %d", ErrInexactInt, n)
		}
		return n, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > MaxExactInt {
			return nil, fmt.Errorf("%w: %d", ErrInexactInt, n)
		}
		return n, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return v, nil
}

// Package sink defines the destinations that receive a job's final records.
package sink

import (
	"errors"
	"fmt"

	"github.com/nemanja-m/diskmr/pkg/core"
)

type Kind string

const (
	// KindMemory collects records in memory.
	KindMemory Kind = "memory"
	// KindDir writes binned part files of protobuf key/value records.
	KindDir Kind = "dir"
	// KindText writes binned part files of tab separated lines.
	KindText Kind = "text"
)

// KeysPerBin is the number of distinct output keys one bin is sized for.
const KeysPerBin = 1000

var ErrUnknownKind = errors.New("unknown sink kind")

// Sink receives materialized output records. Only the output materializer
// writes to a sink, so implementations need not be safe for concurrent use.
type Sink interface {
	Kind() Kind
	Append(records []core.KeyValue) error
	Close() error
}

// Spec describes a sink to be constructed once the number of output keys is
// known.
type Spec struct {
	Kind Kind
	Path string
}

// BinsFor estimates the bin count for a number of distinct keys: one bin per
// started KeysPerBin keys, at least one.
func BinsFor(numKeys int) int {
	return max(1, (numKeys+KeysPerBin-1)/KeysPerBin)
}

// Open constructs the sink described by spec.
func Open(spec Spec, bins int) (Sink, error) {
	switch spec.Kind {
	case KindMemory:
		return NewMemory(), nil
	case KindDir, KindText:
		return NewDir(spec.Path, spec.Kind, bins)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
}

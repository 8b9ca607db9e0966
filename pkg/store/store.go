// Package store implements the key-partitioned intermediate store shared by
// the map and reduce executors. Its on-disk layout is
//
//	<root>/<keyHash>/<taskID>/{key.meta, value-0001, value-0002, ...}
//
// Every task writes only beneath its own <taskID> directories, so concurrent
// writers of the same key never collide and no locking is needed.
package store

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/nemanja-m/diskmr/pkg/codec"
	"github.com/nemanja-m/diskmr/pkg/core"
)

const (
	KeyFile     = "key.meta"
	ChunkPrefix = "value-"
)

// ErrNoKey is returned when no task directory of a bucket holds key metadata.
var ErrNoKey = errors.New("bucket has no key metadata")

// Store is a handle on one store tree. A tagged store keeps every value next
// to its key inside the chunks instead of writing key metadata, so its
// buckets can be drained as key/value records directly.
type Store struct {
	root   string
	tagged bool
}

func New(root string, tagged bool) *Store {
	return &Store{root: root, tagged: tagged}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) Tagged() bool {
	return s.tagged
}

// Chunk is one spilled value file.
type Chunk struct {
	Task  string
	Index int
	Path  string
	Size  int64
}

// Bucket groups every chunk written for one key, across all tasks. Buckets
// are only complete once every writer has returned.
type Bucket struct {
	Hash   string
	Size   int64
	Tasks  []string
	Chunks []Chunk
}

// Buckets lists the store's buckets ordered by hash.
func (s *Store) Buckets() ([]Bucket, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error listing buckets: %w", err)
	}

	var buckets []Bucket
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		bucket, err := s.bucket(entry.Name())
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

func (s *Store) bucket(hash string) (Bucket, error) {
	bucket := Bucket{Hash: hash}

	tasks, err := os.ReadDir(filepath.Join(s.root, hash))
	if err != nil {
		return bucket, fmt.Errorf("error reading bucket %s: %w", hash, err)
	}
	for _, task := range tasks {
		if !task.IsDir() {
			continue
		}
		bucket.Tasks = append(bucket.Tasks, task.Name())

		chunks, err := listChunks(filepath.Join(s.root, hash, task.Name()))
		if err != nil {
			return bucket, err
		}
		for i := range chunks {
			chunks[i].Task = task.Name()
			bucket.Size += chunks[i].Size
		}
		bucket.Chunks = append(bucket.Chunks, chunks...)
	}
	return bucket, nil
}

// Key reads a bucket's key. Every task directory holds an identical copy, so
// the first one found is used.
func (s *Store) Key(bucket Bucket) (any, error) {
	for _, task := range bucket.Tasks {
		data, err := os.ReadFile(filepath.Join(s.root, bucket.Hash, task, KeyFile))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error reading key of bucket %s: %w", bucket.Hash, err)
		}
		return codec.UnmarshalKey(data)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoKey, bucket.Hash)
}

// ReadValues concatenates the values of the given chunks in order.
func ReadValues(chunks []Chunk) ([]any, error) {
	var values []any
	for _, chunk := range chunks {
		f, err := os.Open(chunk.Path)
		if err != nil {
			return nil, err
		}
		chunkValues, err := codec.ReadValues(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading chunk %s: %w", chunk.Path, err)
		}
		values = append(values, chunkValues...)
	}
	return values, nil
}

// ReadRecords concatenates the key/value records of chunks from a tagged
// store.
func ReadRecords(chunks []Chunk) ([]core.KeyValue, error) {
	var records []core.KeyValue
	for _, chunk := range chunks {
		f, err := os.Open(chunk.Path)
		if err != nil {
			return nil, err
		}
		chunkRecords, err := codec.ReadRecords(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading chunk %s: %w", chunk.Path, err)
		}
		records = append(records, chunkRecords...)
	}
	return records, nil
}

// ChunkSizes returns the sizes of chunks, for block planning.
func ChunkSizes(chunks []Chunk) []int64 {
	sizes := make([]int64, len(chunks))
	for i, chunk := range chunks {
		sizes[i] = chunk.Size
	}
	return sizes
}

func listChunks(dir string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error listing chunks in %s: %w", dir, err)
	}

	var chunks []Chunk
	for _, entry := range entries {
		index, ok := chunkIndex(entry.Name())
		if !ok || entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, Chunk{
			Index: index,
			Path:  filepath.Join(dir, entry.Name()),
			Size:  info.Size(),
		})
	}

	slices.SortFunc(chunks, func(left, right Chunk) int {
		return cmp.Compare(left.Index, right.Index)
	})
	return chunks, nil
}

func chunkIndex(name string) (int, bool) {
	suffix, ok := strings.CutPrefix(name, ChunkPrefix)
	if !ok {
		return 0, false
	}
	index, err := strconv.Atoi(suffix)
	if err != nil || index <= 0 {
		return 0, false
	}
	return index, true
}

func chunkName(index int) string {
	return fmt.Sprintf("%s%04d", ChunkPrefix, index)
}

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nemanja-m/diskmr/pkg/codec"
	"github.com/nemanja-m/diskmr/pkg/core"
)

// Writer buffers the emissions of one task and spills them into the store.
// A Writer is owned by a single task and is not safe for concurrent use.
type Writer struct {
	store  *Store
	taskID string

	buffers map[string][]*structpb.Value
	known   map[string]struct{}
	size    int
}

func (s *Store) Writer(taskID string) *Writer {
	return &Writer{
		store:   s,
		taskID:  taskID,
		buffers: make(map[string][]*structpb.Value),
		known:   make(map[string]struct{}),
	}
}

// Collect buffers value under key. The first time the task sees a key it
// creates the task's directory in the key's bucket and records the key there.
func (w *Writer) Collect(key, value any) error {
	keyBytes, err := codec.MarshalKey(key)
	if err != nil {
		return fmt.Errorf("error encoding key: %w", err)
	}
	hash := core.ContentHash(keyBytes)

	if _, ok := w.known[hash]; !ok {
		if err := w.initBucket(hash, keyBytes); err != nil {
			return err
		}
		w.known[hash] = struct{}{}
	}

	var encoded *structpb.Value
	if w.store.tagged {
		encoded, err = codec.ToValue([]any{key, value})
	} else {
		encoded, err = codec.ToValue(value)
	}
	if err != nil {
		return fmt.Errorf("error encoding value: %w", err)
	}

	w.buffers[hash] = append(w.buffers[hash], encoded)
	w.size += codec.Size(encoded)
	return nil
}

// BufferedBytes is the encoded size of every value not yet flushed.
func (w *Writer) BufferedBytes() int {
	return w.size
}

// Flush writes one new chunk per key with buffered values and empties the
// buffer. Flushing an empty buffer creates no files.
func (w *Writer) Flush() error {
	hashes := make([]string, 0, len(w.buffers))
	for hash, values := range w.buffers {
		if len(values) > 0 {
			hashes = append(hashes, hash)
		}
	}
	slices.Sort(hashes)

	for _, hash := range hashes {
		if err := w.spill(hash, w.buffers[hash]); err != nil {
			return err
		}
		delete(w.buffers, hash)
	}
	w.size = 0
	return nil
}

func (w *Writer) spill(hash string, values []*structpb.Value) error {
	dir := w.taskDir(hash)
	index, err := nextChunkIndex(dir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, chunkName(index))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("error creating chunk: %w", err)
	}
	if err := codec.WriteValues(f, values); err != nil {
		f.Close()
		return fmt.Errorf("error writing chunk %s: %w", path, err)
	}
	return f.Close()
}

func (w *Writer) initBucket(hash string, keyBytes []byte) error {
	dir := w.taskDir(hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating bucket directory: %w", err)
	}
	if w.store.tagged {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, KeyFile), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error creating key metadata: %w", err)
	}
	if _, err := f.Write(keyBytes); err != nil {
		f.Close()
		return fmt.Errorf("error writing key metadata: %w", err)
	}
	return f.Close()
}

func (w *Writer) taskDir(hash string) string {
	return filepath.Join(w.store.root, hash, w.taskID)
}

func nextChunkIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("error scanning chunks in %s: %w", dir, err)
	}
	last := 0
	for _, entry := range entries {
		if index, ok := chunkIndex(entry.Name()); ok {
			last = max(last, index)
		}
	}
	return last + 1, nil
}

package sink

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nemanja-m/diskmr/pkg/codec"
	"github.com/nemanja-m/diskmr/pkg/core"
)

// partPattern matches the part files of both directory kinds.
const partPattern = "part-[0-9][0-9][0-9][0-9].{kv,tsv}"

// Dir routes records to bins by key hash and appends them to one part file
// per bin. Part files left in the directory by an earlier run are removed
// when the sink is created.
type Dir struct {
	path  string
	kind  Kind
	bins  int
	files map[int]*partFile
}

type partFile struct {
	file *os.File
	w    *bufio.Writer
}

func NewDir(path string, kind Kind, bins int) (*Dir, error) {
	if kind != KindDir && kind != KindText {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if path == "" {
		return nil, errors.New("output path must be specified")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}
	if err := removeParts(path); err != nil {
		return nil, err
	}
	return &Dir{
		path:  path,
		kind:  kind,
		bins:  max(bins, 1),
		files: make(map[int]*partFile),
	}, nil
}

func (d *Dir) Kind() Kind {
	return d.kind
}

func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) Bins() int {
	return d.bins
}

func (d *Dir) Append(records []core.KeyValue) error {
	for _, record := range records {
		keyBytes, err := codec.MarshalKey(record.Key)
		if err != nil {
			return err
		}
		part, err := d.part(core.Partition(core.ContentHash(keyBytes), d.bins))
		if err != nil {
			return err
		}
		if err := d.write(part.w, record); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dir) write(w *bufio.Writer, record core.KeyValue) error {
	if d.kind == KindDir {
		return codec.WriteRecords(w, []core.KeyValue{record})
	}

	key, err := formatText(record.Key)
	if err != nil {
		return err
	}
	value, err := formatText(record.Value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\t%s\n", key, value)
	return err
}

// Files lists the part files written so far.
func (d *Dir) Files() []string {
	var files []string
	for bin := range d.bins {
		if part, ok := d.files[bin]; ok {
			files = append(files, part.file.Name())
		}
	}
	return files
}

func (d *Dir) Close() error {
	var errs []error
	for _, part := range d.files {
		errs = append(errs, part.w.Flush(), part.file.Close())
	}
	return errors.Join(errs...)
}

func (d *Dir) part(bin int) (*partFile, error) {
	if part, ok := d.files[bin]; ok {
		return part, nil
	}

	ext := "kv"
	if d.kind == KindText {
		ext = "tsv"
	}
	name := filepath.Join(d.path, fmt.Sprintf("part-%04d.%s", bin, ext))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	part := &partFile{file: f, w: bufio.NewWriter(f)}
	d.files[bin] = part
	return part, nil
}

func removeParts(path string) error {
	matches, err := doublestar.Glob(os.DirFS(path), partPattern)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(filepath.Join(path, match)); err != nil {
			return fmt.Errorf("error removing stale part file: %w", err)
		}
	}
	return nil
}

// formatText renders a key or value for the text sink. Strings are written
// raw unless they contain a line or field separator or start with a quote,
// in which case they are JSON quoted like every non-string value.
func formatText(v any) (string, error) {
	if s, ok := v.(string); ok && !needsQuoting(s) {
		return s, nil
	}
	value, err := codec.ToValue(v)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(codec.FromValue(value))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func needsQuoting(s string) bool {
	return strings.ContainsAny(s, "\t\n\r") || strings.HasPrefix(s, `"`)
}

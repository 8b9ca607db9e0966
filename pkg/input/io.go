package input

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nemanja-m/diskmr/pkg/codec"
	"github.com/nemanja-m/diskmr/pkg/core"
)

const (
	DefaultBufferSize = 1024 * 1024 // 1MB

	// RecordExt marks protobuf key/value record files.
	RecordExt = ".kv"
	// TSVExt marks text files of key<TAB>value lines.
	TSVExt = ".tsv"
)

type Line struct {
	Filename string
	Number   int
	Text     string
}

func ReadLines(filePath string, bufferSize ...int) ([]Line, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if len(bufferSize) == 0 {
		bufferSize = []int{DefaultBufferSize}
	}
	buffer := make([]byte, bufferSize[0])

	scanner := bufio.NewScanner(file)
	scanner.Buffer(buffer, bufferSize[0])

	var lines []Line
	for i := 1; scanner.Scan(); i++ {
		lines = append(lines, Line{
			Filename: filePath,
			Number:   i,
			Text:     scanner.Text(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// ReadRecords loads every record of a whole record file. The format follows
// the extension: ".kv" protobuf records, ".tsv" key<TAB>value lines, and
// anything else plain text lines keyed by "file:line".
func ReadRecords(filePath string) ([]core.KeyValue, error) {
	switch filepath.Ext(filePath) {
	case RecordExt:
		f, err := os.Open(filePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return codec.ReadRecords(f)
	case TSVExt:
		return readTSV(filePath)
	default:
		lines, err := ReadLines(filePath)
		if err != nil {
			return nil, err
		}
		records := make([]core.KeyValue, len(lines))
		for i, line := range lines {
			records[i] = core.KeyValue{
				Key:   fmt.Sprintf("%s:%d", line.Filename, line.Number),
				Value: line.Text,
			}
		}
		return records, nil
	}
}

// Load reads the records of files and returns them as parallel key and value
// slices.
func Load(files []File) ([]any, []any, error) {
	var keys, values []any
	for _, file := range files {
		records, err := ReadRecords(file.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading %s: %w", file.Path, err)
		}
		for _, record := range records {
			keys = append(keys, record.Key)
			values = append(values, record.Value)
		}
	}
	return keys, values, nil
}

// WriteRecords writes a ".kv" record file readable by ReadRecords.
func WriteRecords(filePath string, records []core.KeyValue) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	if err := codec.WriteRecords(w, records); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func readTSV(filePath string) ([]core.KeyValue, error) {
	lines, err := ReadLines(filePath)
	if err != nil {
		return nil, err
	}

	records := make([]core.KeyValue, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		key, value, found := strings.Cut(line.Text, "\t")
		if !found {
			return nil, fmt.Errorf("malformed record at %s:%d", filePath, line.Number)
		}
		records = append(records, core.KeyValue{Key: unquoteField(key), Value: unquoteField(value)})
	}
	return records, nil
}

// unquoteField decodes a JSON quoted string field. The text sink quotes
// strings holding tabs or newlines so they survive the line format.
func unquoteField(field string) string {
	if !strings.HasPrefix(field, `"`) {
		return field
	}
	var s string
	if err := json.Unmarshal([]byte(field), &s); err != nil {
		return field
	}
	return s
}

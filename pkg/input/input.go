// Package input describes the partitions a job reads and plans how their
// record files are split into blocks.
package input

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nemanja-m/diskmr/pkg/partition"
)

// Partition is a named source partition: a base location and its ordered
// record files with their byte sizes. Files are relative to Base.
type Partition struct {
	Name  string
	Base  string
	Files []string
	Sizes []int64
}

func (p Partition) Validate() error {
	if len(p.Files) != len(p.Sizes) {
		return fmt.Errorf("partition %q lists %d files but %d sizes", p.Name, len(p.Files), len(p.Sizes))
	}
	return nil
}

// Discover builds a partition from the regular files under base matching any
// of the glob patterns. Patterns are relative to base and support "**".
func Discover(name, base string, patterns ...string) (Partition, error) {
	p := Partition{Name: name, Base: base}
	fsys := os.DirFS(base)

	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return p, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if _, ok := seen[match]; ok {
				continue
			}
			info, err := os.Lstat(filepath.Join(base, match))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[match] = struct{}{}
			p.Files = append(p.Files, match)
		}
	}
	slices.Sort(p.Files)

	p.Sizes = make([]int64, len(p.Files))
	for i, file := range p.Files {
		info, err := os.Stat(filepath.Join(base, file))
		if err != nil {
			return p, err
		}
		p.Sizes[i] = info.Size()
	}
	return p, nil
}

// File is one record file of a partition.
type File struct {
	Partition string
	Path      string
	Size      int64
}

// Files flattens partitions into their record files, in order.
func Files(partitions []Partition) ([]File, error) {
	var files []File
	for _, p := range partitions {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		for i, name := range p.Files {
			files = append(files, File{
				Partition: p.Name,
				Path:      filepath.Join(p.Base, name),
				Size:      p.Sizes[i],
			})
		}
	}
	return files, nil
}

// Split groups files into contiguous runs of roughly sizePerBlock bytes, at
// least minParallel of them when there are enough files.
func Split(files []File, sizePerBlock int64, minParallel int) [][]File {
	sizes := make([]int64, len(files))
	for i, file := range files {
		sizes[i] = file.Size
	}

	var groups [][]File
	for _, block := range partition.Blocks(sizes, sizePerBlock, minParallel) {
		group := make([]File, len(block))
		for i, idx := range block {
			group[i] = files[idx]
		}
		groups = append(groups, group)
	}
	return groups
}

// Block is a contiguous subset of one partition's files.
type Block struct {
	Partition string
	Files     []string
	Sizes     []int64
}

// Blocks regroups files by the partition they come from.
func Blocks(files []File) []Block {
	var blocks []Block
	for _, file := range files {
		if n := len(blocks); n == 0 || blocks[n-1].Partition != file.Partition {
			blocks = append(blocks, Block{Partition: file.Partition})
		}
		last := &blocks[len(blocks)-1]
		last.Files = append(last.Files, file.Path)
		last.Sizes = append(last.Sizes, file.Size)
	}
	return blocks
}

func (b Block) Size() int64 {
	var total int64
	for _, size := range b.Sizes {
		total += size
	}
	return total
}

package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	// tmpDir/
	//   file1.kv
	//   file2.kv
	//   subdir/
	//     file3.kv
	//     file4.log
	//   emptydir.kv/
	//   symlink.kv -> file1.kv
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "file1.kv"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "file2.kv"), []byte("bb"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "subdir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "subdir", "file3.kv"), []byte("ccc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "subdir", "file4.log"), []byte("dddd"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "emptydir.kv"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(tmpDir, "file1.kv"), filepath.Join(tmpDir, "symlink.kv")))

	tests := []struct {
		name      string
		patterns  []string
		wantFiles []string
		wantSizes []int64
	}{
		{
			name:      "wildcard",
			patterns:  []string{"*.kv"},
			wantFiles: []string{"file1.kv", "file2.kv"},
			wantSizes: []int64{1, 2},
		},
		{
			name:      "recursive",
			patterns:  []string{"**/*.kv"},
			wantFiles: []string{"file1.kv", "file2.kv", "subdir/file3.kv"},
			wantSizes: []int64{1, 2, 3},
		},
		{
			name:      "overlapping patterns are deduplicated",
			patterns:  []string{"**/*", "subdir/*.log"},
			wantFiles: []string{"file1.kv", "file2.kv", "subdir/file3.kv", "subdir/file4.log"},
			wantSizes: []int64{1, 2, 3, 4},
		},
		{
			name:      "no matches",
			patterns:  []string{"*.missing"},
			wantFiles: nil,
			wantSizes: []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Discover("iris", tmpDir, tt.patterns...)
			require.NoError(t, err)
			require.Equal(t, "iris", p.Name)
			require.Equal(t, tt.wantFiles, p.Files)
			require.Equal(t, tt.wantSizes, p.Sizes)
			require.NoError(t, p.Validate())
		})
	}
}

func TestDiscover_InvalidPattern(t *testing.T) {
	_, err := Discover("bad", t.TempDir(), "[invalid")
	require.Error(t, err)
}

func TestFiles_ValidatesPartitions(t *testing.T) {
	_, err := Files([]Partition{{Name: "p", Files: []string{"a"}}})
	require.Error(t, err)

	files, err := Files([]Partition{
		{Name: "p1", Base: "/data/p1", Files: []string{"a.kv", "b.kv"}, Sizes: []int64{1, 2}},
		{Name: "p2", Base: "/data/p2", Files: []string{"c.kv"}, Sizes: []int64{3}},
	})
	require.NoError(t, err)
	require.Equal(t, []File{
		{Partition: "p1", Path: "/data/p1/a.kv", Size: 1},
		{Partition: "p1", Path: "/data/p1/b.kv", Size: 2},
		{Partition: "p2", Path: "/data/p2/c.kv", Size: 3},
	}, files)
}

func TestSplitAndBlocks(t *testing.T) {
	files := []File{
		{Partition: "p1", Path: "a", Size: 10},
		{Partition: "p1", Path: "b", Size: 10},
		{Partition: "p2", Path: "c", Size: 10},
		{Partition: "p2", Path: "d", Size: 10},
	}

	groups := Split(files, 30, 1)
	require.Len(t, groups, 2)
	require.Equal(t, files[:2], groups[0])
	require.Equal(t, files[2:], groups[1])

	blocks := Blocks(files[1:])
	require.Equal(t, []Block{
		{Partition: "p1", Files: []string{"b"}, Sizes: []int64{10}},
		{Partition: "p2", Files: []string{"c", "d"}, Sizes: []int64{10, 10}},
	}, blocks)
	require.Equal(t, int64(20), blocks[1].Size())

	require.Empty(t, Split(nil, 10, 4))
}

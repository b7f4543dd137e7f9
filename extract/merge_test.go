package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkfile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestMergeTreesRenamesWhenDestMissing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dest := filepath.Join(dir, "dest")
	mkfile(t, filepath.Join(src, "a.txt"), "a")

	require.NoError(t, MergeTrees(src, dest))
	content, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(content))
	assert.NoDirExists(t, src)
}

func TestMergeTreesCaseInsensitiveDirCollision(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dest := filepath.Join(dir, "dest")
	mkfile(t, filepath.Join(dest, "Include", "windows.h"), "existing")
	mkfile(t, filepath.Join(src, "include", "new.h"), "new")

	require.NoError(t, MergeTrees(src, dest))

	// "include" merged into the existing "Include" (case-insensitive match),
	// not created as a sibling directory.
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["Include"])
	assert.False(t, names["include"])

	_, err = os.Stat(filepath.Join(dest, "Include", "windows.h"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dest, "Include", "new.h"))
	assert.NoError(t, err)
}

func TestMergeTreesFileOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dest := filepath.Join(dir, "dest")
	mkfile(t, filepath.Join(dest, "a.txt"), "old")
	mkfile(t, filepath.Join(src, "a.txt"), "new")

	require.NoError(t, MergeTrees(src, dest))
	content, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

// P7: merging is associative over case-variant-only directory collisions.
func TestMergeTreesAssociative(t *testing.T) {
	build := func(t *testing.T, base string) (a, b, c string) {
		a = filepath.Join(base, "a")
		b = filepath.Join(base, "b")
		c = filepath.Join(base, "c")
		mkfile(t, filepath.Join(a, "TREE", "one.txt"), "1")
		mkfile(t, filepath.Join(b, "tree", "two.txt"), "2")
		mkfile(t, filepath.Join(c, "Tree", "three.txt"), "3")
		return
	}

	dir1 := t.TempDir()
	a, b, c := build(t, dir1)
	bc := filepath.Join(dir1, "bc")
	require.NoError(t, os.Rename(b, bc))
	require.NoError(t, MergeTrees(c, bc))
	require.NoError(t, MergeTrees(a, bc))

	dir2 := t.TempDir()
	a2, b2, c2 := build(t, dir2)
	ab := filepath.Join(dir2, "ab")
	require.NoError(t, os.Rename(a2, ab))
	require.NoError(t, MergeTrees(b2, ab))
	require.NoError(t, MergeTrees(c2, ab))

	treeDirName := func(t *testing.T, base string) string {
		entries, err := os.ReadDir(base)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		return entries[0].Name()
	}
	bcTree := treeDirName(t, bc)
	abTree := treeDirName(t, ab)

	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		content1, err := os.ReadFile(filepath.Join(bc, bcTree, name))
		require.NoError(t, err)
		content2, err := os.ReadFile(filepath.Join(ab, abTree, name))
		require.NoError(t, err)
		assert.Equal(t, content1, content2)
	}
}

package walker

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	sort.Strings(out)
	return out
}

func TestWalk_DefaultIgnores(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "docs", "b.md"), "b")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(root, "node_modules", "x.js"), "x")
	writeFile(t, filepath.Join(root, "empty.txt"), "")

	files, err := Collect([]string{root}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "docs/b.md"}, relPaths(files))
}

func TestWalk_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, IgnoreFile), "# comment\ndrafts\n*.log\n")
	writeFile(t, filepath.Join(root, "keep.txt"), "k")
	writeFile(t, filepath.Join(root, "run.log"), "l")
	writeFile(t, filepath.Join(root, "drafts", "d.txt"), "d")
	writeFile(t, filepath.Join(root, "drafts2", "e.txt"), "e")

	files, err := Collect([]string{root}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"drafts2/e.txt", "keep.txt"}, relPaths(files))
}

func TestWalk_AcceptAndSingleFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "b.pdf"), "b")

	onlyPDF := func(p string) bool { return strings.HasSuffix(p, ".pdf") }
	files, err := Collect([]string{root}, onlyPDF)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.pdf"}, relPaths(files))

	files, err = Collect([]string{filepath.Join(root, "a.txt")}, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].RelPath)
	assert.Equal(t, int64(1), files[0].Size)
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := Collect([]string{filepath.Join(t.TempDir(), "nope")}, nil)
	assert.Error(t, err)
}

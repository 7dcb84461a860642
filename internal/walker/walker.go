// Package walker discovers the files below a set of input paths.
package walker

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileInfo holds metadata about a discovered file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
}

// MaxFileSize is the largest file considered (64 MB).
const MaxFileSize = 64 << 20

// IgnoreFile names the per-directory ignore list.
const IgnoreFile = ".ragchatignore"

// defaultIgnores are used when no ignore file exists.
var defaultIgnores = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"__pycache__",
	".idea",
	".vscode",
	".DS_Store",
	IgnoreFile,
}

// Walk traverses the tree rooted at root and sends discovered files on the
// returned channel. root may also be a single file. Files for which accept
// returns false are skipped, as are symlinks, empty files and files larger
// than MaxFileSize. A nil accept admits every file.
func Walk(root string, accept func(path string) bool) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}
		st, err := os.Stat(absRoot)
		if err != nil {
			errs <- err
			return
		}
		if !st.IsDir() {
			if st.Mode().IsRegular() && st.Size() > 0 && st.Size() <= MaxFileSize && (accept == nil || accept(absRoot)) {
				files <- FileInfo{Path: absRoot, RelPath: filepath.Base(absRoot), Size: st.Size()}
			}
			return
		}

		ignores := loadIgnorePatterns(absRoot)

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip errors, keep walking
			}

			rel, _ := filepath.Rel(absRoot, path)
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if path == absRoot {
					return nil
				}
				if matchesIgnore(d.Name(), rel, ignores) {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if matchesIgnore(d.Name(), rel, ignores) {
				return nil
			}
			if accept != nil && !accept(path) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() > MaxFileSize || info.Size() == 0 {
				return nil
			}

			files <- FileInfo{Path: path, RelPath: rel, Size: info.Size()}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// Collect walks every root and returns the discovered files in walk order.
func Collect(roots []string, accept func(path string) bool) ([]FileInfo, error) {
	var out []FileInfo
	for _, root := range roots {
		files, errs := Walk(root, accept)
		for f := range files {
			out = append(out, f)
		}
		if err := <-errs; err != nil {
			return out, err
		}
	}
	return out, nil
}

// loadIgnorePatterns reads the ignore file from the root directory.
func loadIgnorePatterns(root string) []string {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return defaultIgnores
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) == 0 {
		return defaultIgnores
	}
	return append(patterns, IgnoreFile)
}

// matchesIgnore checks if a name or relative path matches any ignore pattern.
func matchesIgnore(name, relPath string, patterns []string) bool {
	for _, p := range patterns {
		if name == p {
			return true
		}
		// Path prefix match (e.g. "drafts/old").
		if strings.HasPrefix(relPath, p+"/") || relPath == p {
			return true
		}
		if matched, _ := filepath.Match(p, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}

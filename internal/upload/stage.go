// Package upload prepares user-supplied files for extraction: directories
// are walked, archives expanded into a staging area, and inline context is
// gated by a token budget before it is stored for a session.
package upload

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/walker"
)

// maxExpandedBytes bounds the total size written when expanding one archive.
const maxExpandedBytes = 1 << 30

// Failure is an input that could not be staged.
type Failure struct {
	Path string
	Err  error
}

// Staged is the flat list of files produced from a set of inputs.
type Staged struct {
	// Dir holds expanded archive members. It is empty when nothing was
	// expanded.
	Dir      string
	Files    []string
	Failures []Failure
}

// Cleanup removes expanded archive members.
func (s *Staged) Cleanup() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// Stage flattens paths into individual files. Directories are walked and
// archives are expanded below a fresh directory in stagingDir. An input that
// cannot be staged is recorded in Failures and does not stop the others.
func Stage(paths []string, stagingDir string) (*Staged, error) {
	st := &Staged{}
	for _, p := range paths {
		files, err := walker.Collect([]string{p}, nil)
		if err != nil {
			st.Failures = append(st.Failures, Failure{Path: p, Err: err})
			continue
		}
		for _, f := range files {
			format := archiveFormat(f.Path)
			if format == "" {
				st.Files = append(st.Files, f.Path)
				continue
			}
			if st.Dir == "" {
				st.Dir = filepath.Join(stagingDir, uuid.NewString())
				if err := os.MkdirAll(st.Dir, 0o755); err != nil {
					return st, &domain.StorageWriteError{Op: "create staging dir", Path: st.Dir, Err: err}
				}
			}
			members, err := expand(f.Path, format, st.Dir)
			if err != nil {
				logger.Warn("skipping archive %s: %v", f.Path, err)
				st.Failures = append(st.Failures, Failure{Path: f.Path, Err: &domain.ExtractionError{Path: f.Path, Err: err}})
				continue
			}
			st.Files = append(st.Files, members...)
		}
	}
	return st, nil
}

func archiveFormat(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	switch {
	case mt.Is("application/zip"):
		return "zip"
	case mt.Is("application/gzip"):
		return "tgz"
	case mt.Is("application/x-tar"):
		return "tar"
	}
	return ""
}

// expand unpacks archive into its own directory below stagingDir and
// returns the regular files it contained.
func expand(archive, format, stagingDir string) ([]string, error) {
	dest := filepath.Join(stagingDir, uuid.NewString())
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	budget := &byteBudget{left: maxExpandedBytes}

	var err error
	switch format {
	case "zip":
		err = expandZip(archive, dest, budget)
	case "tgz":
		err = expandTarGz(archive, dest, budget)
	case "tar":
		err = expandTar(archive, dest, budget)
	}
	if err != nil {
		os.RemoveAll(dest)
		return nil, err
	}

	files, err := walker.Collect([]string{dest}, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out, nil
}

func expandZip(archive, dest string, budget *byteBudget) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if !zf.Mode().IsRegular() {
			continue
		}
		target, err := safeJoin(dest, zf.Name)
		if err != nil {
			return err
		}
		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", zf.Name, err)
		}
		err = writeMember(target, rc, budget)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func expandTarGz(archive, dest string, budget *byteBudget) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()
	return readTar(tar.NewReader(gz), dest, budget)
}

func expandTar(archive, dest string, budget *byteBudget) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()
	return readTar(tar.NewReader(f), dest, budget)
}

func readTar(tr *tar.Reader, dest string, budget *byteBudget) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		if err := writeMember(target, tr, budget); err != nil {
			return err
		}
	}
}

// safeJoin resolves an archive member name below dest, rejecting names that
// would escape it.
func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive member %q escapes the extraction directory", name)
	}
	target := filepath.Join(dest, clean)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive member %q escapes the extraction directory", name)
	}
	return target, nil
}

type byteBudget struct {
	left int64
}

func writeMember(target string, r io.Reader, budget *byteBudget) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(r, budget.left+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	budget.left -= n
	if budget.left < 0 {
		return fmt.Errorf("archive expands beyond %d bytes", int64(maxExpandedBytes))
	}
	return nil
}

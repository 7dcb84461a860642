package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the content type of a file as seen by the extractor.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindArchive
	KindSourceCode
	KindJSON
	KindText
	KindSQLite
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindArchive:
		return "archive"
	case KindSourceCode:
		return "source"
	case KindJSON:
		return "json"
	case KindText:
		return "text"
	case KindSQLite:
		return "sqlite"
	}
	return "unknown"
}

var sourceCodeExtensions = map[string]bool{
	".py": true, ".java": true, ".c": true, ".cpp": true, ".cs": true, ".js": true,
	".ts": true, ".html": true, ".css": true, ".php": true, ".rb": true, ".swift": true,
	".go": true, ".kt": true, ".rs": true, ".lua": true, ".pl": true, ".sh": true,
	".bat": true, ".sql": true, ".r": true, ".m": true, ".f": true, ".fs": true,
	".scala": true, ".clj": true, ".hs": true, ".erl": true, ".xml": true,
	".json": true, ".jsonl": true, ".h": true, ".hpp": true, ".cc": true,
	".tsx": true, ".jsx": true, ".mjs": true, ".cjs": true, ".pyi": true,
}

var archiveMIMEs = []string{"application/zip", "application/gzip", "application/x-tar"}

// IsSourceCode reports whether the path has a known source-code extension.
func IsSourceCode(path string) bool {
	return sourceCodeExtensions[strings.ToLower(filepath.Ext(path))]
}

// Classify sniffs the file's content and returns its Kind and detected MIME
// type. Source code is recognised by extension once the content is known
// not to be a PDF or archive.
func Classify(path string) (Kind, string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return KindUnknown, "", fmt.Errorf("detect type of %s: %w", path, err)
	}
	mime := mt.String()

	switch {
	case mt.Is("application/pdf"):
		return KindPDF, mime, nil
	case isArchive(mt):
		return KindArchive, mime, nil
	case IsSourceCode(path):
		return KindSourceCode, mime, nil
	case mt.Is("application/json") || mt.Is("application/javascript") || mt.Is("text/javascript"):
		return KindJSON, mime, nil
	case isText(mt):
		return KindText, mime, nil
	case mt.Is("application/vnd.sqlite3") || mt.Is("application/x-sqlite3"):
		return KindSQLite, mime, nil
	}
	return KindUnknown, mime, nil
}

// IsArchive reports whether the file at path is a zip, gzip or tar archive.
func IsArchive(path string) bool {
	k, _, err := Classify(path)
	return err == nil && k == KindArchive
}

func isArchive(mt *mimetype.MIME) bool {
	for _, a := range archiveMIMEs {
		if mt.Is(a) {
			return true
		}
	}
	return false
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return false
}

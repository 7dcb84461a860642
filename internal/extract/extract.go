// Package extract classifies uploaded files by content and converts them to
// plain text. A failure on one file never aborts a batch.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

// Result is the outcome of extracting a single file.
type Result struct {
	Path string
	Kind Kind
	Text string
	Err  error
}

// Extractor converts files to text.
type Extractor struct {
	pdf PDFConverter
}

// New creates an extractor that uses pdf for PDF files. A nil converter
// makes PDFs unsupported.
func New(pdf PDFConverter) *Extractor {
	return &Extractor{pdf: pdf}
}

// Extract returns the normalised text of the file at path. Unsupported
// types yield *domain.UnsupportedContentError, parser failures
// *domain.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	text, _, err := e.extract(ctx, path)
	return text, err
}

// ExtractBatch extracts every path independently and reports per-file
// results in input order.
func (e *Extractor) ExtractBatch(ctx context.Context, paths []string) []Result {
	results := make([]Result, 0, len(paths))
	for _, p := range paths {
		text, kind, err := e.extract(ctx, p)
		if err != nil {
			logger.Warn("skipping %s: %v", p, err)
		}
		results = append(results, Result{Path: p, Kind: kind, Text: text, Err: err})
	}
	return results
}

func (e *Extractor) extract(ctx context.Context, path string) (string, Kind, error) {
	kind, mime, err := Classify(path)
	if err != nil {
		return "", KindUnknown, &domain.ExtractionError{Path: path, Err: err}
	}
	logger.Debug("classified %s as %s (%s)", path, kind, mime)

	switch kind {
	case KindPDF:
		text, err := e.convertPDF(ctx, path)
		return text, kind, err
	case KindSourceCode, KindJSON, KindText:
		text, err := readText(path)
		return text, kind, err
	case KindArchive:
		return "", kind, &domain.UnsupportedContentError{
			Path:     path,
			MIMEType: mime,
			Reason:   "Archives must be expanded before extraction.",
		}
	case KindSQLite:
		return "", kind, &domain.UnsupportedContentError{
			Path:     path,
			MIMEType: mime,
			Reason:   "sqlite Databases are not supported yet. If you need this, open a Github Issue. Or try the raw SQL text queries.",
		}
	}
	return "", kind, &domain.UnsupportedContentError{
		Path:     path,
		MIMEType: mime,
		Reason:   fmt.Sprintf("Unknown file type %s. If you need this, open a Github Issue.", mime),
	}
}

// convertPDF isolates the converter: errors and panics both come back as
// an ExtractionError for this file only.
func (e *Extractor) convertPDF(ctx context.Context, path string) (text string, err error) {
	if e.pdf == nil {
		return "", &domain.UnsupportedContentError{
			Path:     path,
			MIMEType: "application/pdf",
			Reason:   "PDF support is not configured. " + InstallInstructions(),
		}
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &domain.ExtractionError{Path: path, Err: fmt.Errorf("pdf converter panicked: %v", r)}
		}
	}()
	text, err = e.pdf.Convert(ctx, path)
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	return text, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	s := string(data)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return s, nil
}

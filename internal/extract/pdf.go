package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// ErrPDFToolNotFound indicates the PDF converter binary is not on PATH.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// PDFConverter turns a PDF file into normalised Markdown-like text.
type PDFConverter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// Pdftotext converts PDFs with poppler's pdftotext in a child process, so a
// crashing parser cannot take the caller down with it.
type Pdftotext struct {
	command string
	timeout time.Duration
	runner  CommandRunner
}

// NewPdftotext creates a converter that runs command with the given timeout.
func NewPdftotext(command string, timeout time.Duration) *Pdftotext {
	return NewPdftotextWithRunner(command, timeout, execRunner{})
}

// NewPdftotextWithRunner creates a converter with a custom command runner.
func NewPdftotextWithRunner(command string, timeout time.Duration, runner CommandRunner) *Pdftotext {
	if command == "" {
		command = "pdftotext"
	}
	return &Pdftotext{command: command, timeout: timeout, runner: runner}
}

// CheckAvailable returns ErrPDFToolNotFound if the converter is not installed.
func (p *Pdftotext) CheckAvailable() error {
	if _, err := exec.LookPath(p.command); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to install the converter.
func InstallInstructions() string {
	return "PDF support requires pdftotext (poppler).\n" +
		"  macOS:  brew install poppler\n" +
		"  Debian: apt install poppler-utils"
}

// Convert runs the converter and normalises its output.
func (p *Pdftotext) Convert(ctx context.Context, path string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	out, err := p.runner.Run(ctx, p.command, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("pdftotext timed out after %s: %w", p.timeout, ctx.Err())
		}
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return NormalizePDFText(string(out)), nil
}

var (
	hyphenBreak     = regexp.MustCompile(`(\p{L})-\n\s*(\p{Ll})`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
	numberedHeading = regexp.MustCompile(`^(\d+(\.\d+)*)\.?\s+\p{Lu}[^.]{0,80}$`)
	abstractHeading = regexp.MustCompile(`(?i)^abstract[.:]?$`)
)

// NormalizePDFText turns layout text into Markdown-like text: form feeds
// become paragraph breaks, hyphenated line breaks are joined, trailing
// whitespace is dropped and headings are marked with '#'.
func NormalizePDFText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\f", "\n\n")
	s = hyphenBreak.ReplaceAllString(s, "$1$2")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimSpace(line)
		switch {
		case abstractHeading.MatchString(trimmed):
			line = "## Abstract"
		case numberedHeading.MatchString(trimmed):
			number := strings.TrimSuffix(strings.Fields(trimmed)[0], ".")
			depth := strings.Count(number, ".") + 2
			if depth > 6 {
				depth = 6
			}
			line = strings.Repeat("#", depth) + " " + trimmed
		}
		lines[i] = line
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

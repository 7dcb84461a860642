package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/extract"
	"ragchat/internal/logger"
	"ragchat/internal/session"
)

// TokenCounter counts tokens with the inference server's tokenizer.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// InlineResult reports what an inline upload stored.
type InlineResult struct {
	Files    []string
	Tokens   int
	Failures []Failure
}

// Handler stores uploaded files as one-shot context for a session.
type Handler struct {
	extractor  *extract.Extractor
	tokens     TokenCounter
	pending    session.Store
	maxTokens  int
	stagingDir string
}

// NewHandler creates a handler. A non-positive maxTokens disables the
// budget check.
func NewHandler(extractor *extract.Extractor, tokens TokenCounter, pending session.Store, maxTokens int, stagingDir string) *Handler {
	return &Handler{
		extractor:  extractor,
		tokens:     tokens,
		pending:    pending,
		maxTokens:  maxTokens,
		stagingDir: stagingDir,
	}
}

// Inline extracts paths and stores their text as the pending upload of
// token, replacing any earlier one. Files that fail are reported and
// skipped. Text over the token budget is rejected with
// domain.ErrContextTooLarge and nothing is stored.
func (h *Handler) Inline(ctx context.Context, token string, paths []string) (*InlineResult, error) {
	if token == "" {
		return nil, session.ErrEmptyToken
	}
	staged, err := Stage(paths, h.stagingDir)
	defer func() {
		if cerr := staged.Cleanup(); cerr != nil {
			logger.Warn("remove staging dir %s: %v", staged.Dir, cerr)
		}
	}()
	if err != nil {
		return nil, err
	}

	res := &InlineResult{Failures: staged.Failures}
	var texts, names []string
	for _, r := range h.extractor.ExtractBatch(ctx, staged.Files) {
		if r.Err != nil {
			res.Failures = append(res.Failures, Failure{Path: r.Path, Err: r.Err})
			continue
		}
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		texts = append(texts, r.Text)
		names = append(names, filepath.Base(r.Path))
		res.Files = append(res.Files, r.Path)
	}
	if len(texts) == 0 {
		return res, fmt.Errorf("%w: no text could be extracted", domain.ErrInvalidInput)
	}

	contents := strings.Join(texts, "\n\n")
	if h.tokens != nil {
		n, err := h.tokens.CountTokens(ctx, contents)
		if err != nil {
			return res, fmt.Errorf("count tokens: %w", err)
		}
		res.Tokens = n
		if h.maxTokens > 0 && n > h.maxTokens {
			return res, fmt.Errorf("%w: %d tokens, limit is %d", domain.ErrContextTooLarge, n, h.maxTokens)
		}
	}

	upload := domain.PendingUpload{Contents: contents, SourceFilename: strings.Join(names, ", ")}
	if err := h.pending.Put(token, upload); err != nil {
		return res, fmt.Errorf("store pending upload: %w", err)
	}
	logger.Debug("stored %d file(s), %d tokens as pending context", len(names), res.Tokens)
	return res, nil
}

// Package rag assembles the context block injected ahead of a user's
// question and renders the chat messages around it.
package rag

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/llm"
	"ragchat/internal/retrieval"
	"ragchat/internal/session"
)

// DefaultSystemPrompt is used when no prompt is configured.
const DefaultSystemPrompt = `You are a helpful research assistant. Answer the user's questions using the context they provide when it is relevant.

Keep answers concise and grounded in the provided context. If the context doesn't contain enough information to answer, say so.`

const passagePrefix = "\n\nThis is one piece of context:\n"

// Source describes one piece of assembled context.
type Source struct {
	SourceFile string
	Position   string
	Collection string
	Score      float64
	Upload     bool
}

// Context is the result of one assembly. Text joins the Retrieved and
// Upload blocks, in that order.
type Context struct {
	Text      string
	Retrieved string
	Upload    string
	Sources   []Source
}

// Empty reports whether nothing was assembled.
func (c Context) Empty() bool { return c.Text == "" }

// Assembler merges retrieved passages with any pending upload of a session.
// It does not enforce a token budget; uploads are rejected before they are
// stored.
type Assembler struct {
	pipeline *retrieval.Pipeline
	pending  session.Store
	numDocs  int
}

// New creates an assembler that retrieves numDocs passages per turn.
func New(pipeline *retrieval.Pipeline, pending session.Store, numDocs int) *Assembler {
	return &Assembler{pipeline: pipeline, pending: pending, numDocs: numDocs}
}

// Assemble builds the context for query. Retrieved text comes first and the
// pending upload of token second, separated by a blank line. The upload is
// consumed only once retrieval has succeeded. A nil searcher skips
// retrieval.
func (a *Assembler) Assemble(ctx context.Context, query, token string, searcher retrieval.Searcher) (Context, error) {
	var out Context
	var blocks []string

	if searcher != nil {
		passages, err := a.pipeline.Retrieve(ctx, query, searcher, a.numDocs)
		if err != nil {
			return Context{}, fmt.Errorf("retrieve context: %w", err)
		}
		var b strings.Builder
		for _, p := range passages {
			b.WriteString(passagePrefix)
			b.WriteString(p.Content)
			out.Sources = append(out.Sources, Source{
				SourceFile: p.SourceFile,
				Position:   p.Position,
				Collection: p.Collection,
				Score:      p.Score,
			})
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			out.Retrieved = text
			blocks = append(blocks, text)
		}
	}

	if token != "" && a.pending != nil {
		upload, err := a.pending.Pop(token)
		if err != nil {
			return Context{}, fmt.Errorf("consume pending upload: %w", err)
		}
		if upload != nil {
			if text := strings.TrimSpace(upload.Contents); text != "" {
				out.Upload = text
				blocks = append(blocks, text)
				out.Sources = append(out.Sources, Source{SourceFile: upload.SourceFilename, Upload: true})
			}
		}
	}

	out.Text = strings.Join(blocks, "\n\n")
	return out, nil
}

// ContextExchange is the user/assistant pair that carries assembled context
// in a conversation. It is empty for empty context.
func ContextExchange(text string) []llm.Message {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return []llm.Message{
		{Role: "user", Content: "This is the context: " + text},
		{Role: "assistant", Content: "OK"},
	}
}

// BuildMessages renders the messages for one turn: system prompt, prior
// history, the context exchange and finally the question.
func BuildMessages(c Context, history []llm.Message, question, systemPrompt string) []llm.Message {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	msgs := []llm.Message{{Role: "system", Content: systemPrompt}}
	msgs = append(msgs, history...)
	msgs = append(msgs, ContextExchange(c.Text)...)
	msgs = append(msgs, llm.Message{Role: "user", Content: question})
	return msgs
}

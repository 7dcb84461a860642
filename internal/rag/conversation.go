package rag

import (
	"context"
	"fmt"

	"ragchat/internal/llm"
	"ragchat/internal/retrieval"
	"ragchat/internal/session"
)

// Chatter generates an assistant reply, streaming deltas to onDelta.
type Chatter interface {
	Chat(ctx context.Context, msgs []llm.Message, onDelta func(string)) (string, error)
}

// Answer is the outcome of one conversation turn.
type Answer struct {
	Reply   string
	Sources []Source
}

// Conversation runs turns against a session's durable history.
type Conversation struct {
	assembler    *Assembler
	history      session.History
	chat         Chatter
	systemPrompt string
}

// NewConversation creates a conversation runner. An empty systemPrompt uses
// DefaultSystemPrompt.
func NewConversation(assembler *Assembler, history session.History, chat Chatter, systemPrompt string) *Conversation {
	return &Conversation{assembler: assembler, history: history, chat: chat, systemPrompt: systemPrompt}
}

// Ask answers question for the session token. Retrieved passages are
// context for this turn only. A consumed upload is written to history before
// generation starts, so it stays part of the conversation even if generation
// fails. The question and reply are appended once generation succeeds.
func (c *Conversation) Ask(ctx context.Context, token, question string, searcher retrieval.Searcher, onDelta func(string)) (*Answer, error) {
	if token == "" {
		return nil, session.ErrEmptyToken
	}
	prior, err := c.history.History(token)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	assembled, err := c.assembler.Assemble(ctx, question, token, searcher)
	if err != nil {
		return nil, err
	}
	msgs := BuildMessages(assembled, prior, question, c.systemPrompt)

	if exchange := ContextExchange(assembled.Upload); len(exchange) > 0 {
		if err := c.history.AppendHistory(token, exchange...); err != nil {
			return nil, fmt.Errorf("save context: %w", err)
		}
	}

	reply, err := c.chat.Chat(ctx, msgs, onDelta)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	err = c.history.AppendHistory(token,
		llm.Message{Role: "user", Content: question},
		llm.Message{Role: "assistant", Content: reply},
	)
	if err != nil {
		return nil, fmt.Errorf("save reply: %w", err)
	}
	return &Answer{Reply: reply, Sources: assembled.Sources}, nil
}

// Reset forgets the conversation of token.
func (c *Conversation) Reset(token string) error {
	return c.history.ClearHistory(token)
}

// Package session keeps one-shot uploaded context per session token until
// the next conversation turn consumes it.
package session

import (
	"errors"
	"sync"

	"ragchat/internal/domain"
	"ragchat/internal/llm"
)

// ErrEmptyToken is returned for operations on an empty session token.
var ErrEmptyToken = errors.New("empty session token")

// Store holds at most one pending upload per token. Pop removes and returns
// it so it is delivered at most once.
type Store interface {
	Get(token string) (*domain.PendingUpload, error)
	Put(token string, upload domain.PendingUpload) error
	Pop(token string) (*domain.PendingUpload, error)
}

// History keeps the conversation of a session. Consumed uploads become part
// of it.
type History interface {
	History(token string) ([]llm.Message, error)
	AppendHistory(token string, msgs ...llm.Message) error
	ClearHistory(token string) error
}

// MemoryStore is a process-local Store and History.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]domain.PendingUpload
	history map[string][]llm.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending: make(map[string]domain.PendingUpload),
		history: make(map[string][]llm.Message),
	}
}

func (s *MemoryStore) Get(token string) (*domain.PendingUpload, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.pending[token]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *MemoryStore) Put(token string, upload domain.PendingUpload) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[token] = upload
	return nil
}

func (s *MemoryStore) Pop(token string) (*domain.PendingUpload, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.pending[token]
	if !ok {
		return nil, nil
	}
	delete(s.pending, token)
	return &u, nil
}

func (s *MemoryStore) History(token string) ([]llm.Message, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.history[token]...), nil
}

func (s *MemoryStore) AppendHistory(token string, msgs ...llm.Message) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[token] = append(s.history[token], msgs...)
	return nil
}

func (s *MemoryStore) ClearHistory(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, token)
	return nil
}

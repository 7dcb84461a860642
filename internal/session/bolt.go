package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"ragchat/internal/domain"
	"ragchat/internal/llm"
)

var (
	pendingBucket = []byte("pending")
	historyBucket = []byte("history")
)

// BoltStore persists pending uploads and conversation history in a bbolt
// file so separate CLI invocations of one session share them.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the store at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{pendingBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create session buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(token string) (*domain.PendingUpload, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	var upload *domain.PendingUpload
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		upload, err = decode(tx.Bucket(pendingBucket).Get([]byte(token)))
		return err
	})
	return upload, err
}

func (s *BoltStore) Put(token string, upload domain.PendingUpload) error {
	if token == "" {
		return ErrEmptyToken
	}
	data, err := json.Marshal(upload)
	if err != nil {
		return fmt.Errorf("marshal pending upload: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pendingBucket).Put([]byte(token), data)
	})
	if err != nil {
		return &domain.StorageWriteError{Op: "put pending upload", Path: s.db.Path(), Err: err}
	}
	return nil
}

func (s *BoltStore) Pop(token string) (*domain.PendingUpload, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	var upload *domain.PendingUpload
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket)
		key := []byte(token)
		var err error
		if upload, err = decode(b.Get(key)); err != nil || upload == nil {
			return err
		}
		return b.Delete(key)
	})
	if err != nil {
		return nil, err
	}
	return upload, nil
}

func (s *BoltStore) History(token string) ([]llm.Message, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	var msgs []llm.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(historyBucket).Get([]byte(token))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &msgs)
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return msgs, nil
}

func (s *BoltStore) AppendHistory(token string, msgs ...llm.Message) error {
	if token == "" {
		return ErrEmptyToken
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket)
		var all []llm.Message
		if data := b.Get([]byte(token)); data != nil {
			if err := json.Unmarshal(data, &all); err != nil {
				return fmt.Errorf("decode history: %w", err)
			}
		}
		data, err := json.Marshal(append(all, msgs...))
		if err != nil {
			return err
		}
		return b.Put([]byte(token), data)
	})
	if err != nil {
		return &domain.StorageWriteError{Op: "append history", Path: s.db.Path(), Err: err}
	}
	return nil
}

func (s *BoltStore) ClearHistory(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).Delete([]byte(token))
	})
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func decode(data []byte) (*domain.PendingUpload, error) {
	if data == nil {
		return nil, nil
	}
	var u domain.PendingUpload
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode pending upload: %w", err)
	}
	return &u, nil
}

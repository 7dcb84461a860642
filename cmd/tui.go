package cmd

import (
	"github.com/google/uuid"

	"ragchat/internal/tui"
)

func runTUI() error {
	a, err := newApp(cfg, 0)
	if err != nil {
		return err
	}
	defer a.close()

	return tui.Run(tui.Config{
		Manager:      a.manager,
		Indexer:      a.indexer,
		Uploads:      a.uploads,
		Conversation: a.conversation,
		OllamaURL:    cfg.Embedding.URL,
		DefaultModel: cfg.Embedding.DefaultModel,
		User:         cfg.User,
		Token:        uuid.NewString(),
	})
}

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"

	"ragchat/internal/chunker"
	"ragchat/internal/chunker/languages"
	"ragchat/internal/collection"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedder"
	"ragchat/internal/extract"
	"ragchat/internal/index"
	"ragchat/internal/llm"
	"ragchat/internal/logger"
	"ragchat/internal/rag"
	"ragchat/internal/rerank"
	"ragchat/internal/retrieval"
	"ragchat/internal/session"
	"ragchat/internal/upload"
)

// app wires the services every command shares.
type app struct {
	cfg          *config.Config
	manager      *collection.Manager
	extractor    *extract.Extractor
	selector     *chunker.Selector
	indexer      *index.Indexer
	sessions     *session.BoltStore
	llm          *llm.Client
	pipeline     *retrieval.Pipeline
	assembler    *rag.Assembler
	conversation *rag.Conversation
	uploads      *upload.Handler
}

func newApp(cfg *config.Config, workers int) (*app, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pdf := extract.NewPdftotext(cfg.PDF.Command, cfg.PDFTimeout())
	if err := pdf.CheckAvailable(); err != nil {
		logger.Debug("%v\n%s", err, extract.InstallInstructions())
	}
	extractor := extract.New(pdf)
	selector := chunker.NewSelector(languages.NewRegistry(), cfg.RAG.ChunkSize, cfg.RAG.SectionChunkSize)

	manager := collection.New(collection.Options{
		DataDir:      cfg.DataDir,
		DefaultModel: cfg.Embedding.DefaultModel,
		PublicDelete: cfg.Collections.PublicDelete,
		Admins:       cfg.Collections.Admins,
	}, embedder.NewOllamaRegistry(cfg.Embedding.URL, cfg.EmbeddingTimeout()))

	sessions, err := session.OpenBolt(cfg.SessionPath())
	if err != nil {
		manager.Close()
		return nil, err
	}

	var reranker rerank.Reranker
	if cfg.Reranker.URL != "" {
		reranker = rerank.NewHTTPReranker(cfg.Reranker.URL, cfg.Reranker.Model, cfg.RerankerTimeout())
	}
	pipeline := retrieval.New(reranker)
	client := llm.NewClient(cfg.Inference.URL, cfg.Inference.Model, cfg.InferenceTimeout())
	assembler := rag.New(pipeline, sessions, cfg.RAG.NumDocs)

	return &app{
		cfg:          cfg,
		manager:      manager,
		extractor:    extractor,
		selector:     selector,
		indexer:      index.New(index.Config{Workers: workers, StagingDir: cfg.StagingDir()}, manager, extractor, selector),
		sessions:     sessions,
		llm:          client,
		pipeline:     pipeline,
		assembler:    assembler,
		conversation: rag.NewConversation(assembler, sessions, client, cfg.Inference.SystemPrompt),
		uploads:      upload.NewHandler(extractor, client, sessions, cfg.RAG.MaxInlineTokens, cfg.StagingDir()),
	}, nil
}

func (a *app) close() {
	if err := a.manager.Close(); err != nil {
		logger.Warn("close collections: %v", err)
	}
	if err := a.sessions.Close(); err != nil {
		logger.Warn("close session store: %v", err)
	}
}

// openCollection resolves ref, either a collection name or its hashed id,
// in the user's namespace first and then the common one.
func (a *app) openCollection(ctx context.Context, ref string) (*collection.Handle, error) {
	return openCollection(ctx, a.manager, ref, a.cfg.User, nil)
}

// openCollection opens ref in ns, or with the default lookup when ns is nil.
func openCollection(ctx context.Context, m *collection.Manager, ref, user string, ns *collection.Namespace) (*collection.Handle, error) {
	if ns != nil {
		return m.OpenIn(ctx, collectionID(ref), *ns)
	}
	return m.Open(ctx, collectionID(ref), user)
}

// deleteCollection deletes ref as user from ns, or from wherever the
// default lookup finds it when ns is nil.
func deleteCollection(m *collection.Manager, ref, user string, ns *collection.Namespace) (string, error) {
	id := collectionID(ref)
	if ns != nil {
		return id, m.DeleteIn(id, *ns, user)
	}
	return id, m.Delete(id, user)
}

// namespaceFlags turns --public and --owner into a pinned namespace. Neither
// set means the default user-then-common lookup.
func namespaceFlags(public bool, owner string) (*collection.Namespace, error) {
	switch {
	case public && owner != "":
		return nil, fmt.Errorf("%w: --public and --owner are exclusive", domain.ErrInvalidInput)
	case public:
		return &collection.Namespace{Public: true}, nil
	case owner != "":
		return &collection.Namespace{Owner: owner}, nil
	}
	return nil, nil
}

func collectionID(ref string) string {
	if len(ref) == 32 {
		if _, err := hex.DecodeString(ref); err == nil {
			return ref
		}
	}
	return collection.HashName(ref)
}

func printFailures(failures []upload.Failure) {
	for _, f := range failures {
		fmt.Printf("  ✗ %s: %v\n", f.Path, f.Err)
	}
}

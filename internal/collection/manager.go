// Package collection manages named, persistent collections of embedded
// chunks. Public collections share the common namespace; private ones live
// under their owner's user namespace. Each collection is a directory holding
// a config.json record and a sqlite-vec index, and is permanently bound to
// the embedding model it was created with.
package collection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedder"
	"ragchat/internal/logger"
	"ragchat/internal/store"
)

// Options configures a Manager.
type Options struct {
	// DataDir holds the common/ and user/ namespaces.
	DataDir string
	// DefaultModel is bound to newly created collections.
	DefaultModel string
	// PublicDelete is one of the config.PublicDelete* policies.
	PublicDelete string
	Admins       []string
}

// Listing groups visible collections by namespace.
type Listing struct {
	Common []domain.Collection
	User   []domain.Collection
}

// Manager creates, opens, lists and deletes collections.
type Manager struct {
	opts      Options
	embedders *embedder.Registry

	locks keyedMutex

	mu      sync.Mutex
	handles map[string]*Handle
}

// New creates a Manager. Embedders are looked up per collection model.
func New(opts Options, embedders *embedder.Registry) *Manager {
	if opts.PublicDelete == "" {
		opts.PublicDelete = config.PublicDeleteAny
	}
	return &Manager{
		opts:      opts,
		embedders: embedders,
		handles:   make(map[string]*Handle),
	}
}

func (m *Manager) namespaceDir(vis domain.Visibility, username string) string {
	if vis == domain.VisibilityPublic {
		return filepath.Join(m.opts.DataDir, "common")
	}
	return filepath.Join(m.opts.DataDir, "user", username)
}

// List returns all public collections plus username's private ones, sorted
// by name. Collections with a missing or corrupt record are skipped.
func (m *Manager) List(username string) (Listing, error) {
	var l Listing
	var err error
	if l.Common, err = m.scan(domain.VisibilityPublic, ""); err != nil {
		return Listing{}, err
	}
	if username != "" && validSegment(username) {
		if l.User, err = m.scan(domain.VisibilityPrivate, username); err != nil {
			return Listing{}, err
		}
	}
	return l, nil
}

func (m *Manager) scan(vis domain.Visibility, username string) ([]domain.Collection, error) {
	root := m.namespaceDir(vis, username)
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	var out []domain.Collection
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		rec, _, err := readRecord(filepath.Join(root, e.Name()), vis, username)
		if err != nil {
			logger.Warn("skipping collection %s: %v", filepath.Join(root, e.Name()), err)
			continue
		}
		out = append(out, rec.collection())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].HashedName < out[j].HashedName
	})
	return out, nil
}

// OpenOrCreate opens the collection called name in the requested namespace,
// creating it with the default embedding model if it does not exist. An
// existing collection keeps the model it was created with.
func (m *Manager) OpenOrCreate(ctx context.Context, name, username string, public bool) (*Handle, error) {
	return m.openOrCreate(ctx, name, username, public, "")
}

// OpenOrCreateWithModel is OpenOrCreate with an explicit embedding model. An
// existing collection bound to a different model yields a
// *domain.ModelMismatchError.
func (m *Manager) OpenOrCreateWithModel(ctx context.Context, name, username string, public bool, model string) (*Handle, error) {
	h, err := m.openOrCreate(ctx, name, username, public, model)
	if err != nil {
		return nil, err
	}
	if model != "" && h.Collection.EmbeddingModel != model {
		return nil, &domain.ModelMismatchError{Collection: h.Collection.HashedName, Want: h.Collection.EmbeddingModel, Got: model}
	}
	return h, nil
}

func (m *Manager) openOrCreate(ctx context.Context, name, username string, public bool, model string) (*Handle, error) {
	if model == "" {
		model = m.opts.DefaultModel
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is empty", domain.ErrInvalidInput)
	}
	vis := domain.VisibilityPrivate
	if public {
		vis = domain.VisibilityPublic
	} else if !validSegment(username) {
		return nil, fmt.Errorf("%w: private collections need a valid username, got %q", domain.ErrInvalidInput, username)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hashed := HashName(name)
	dir := filepath.Join(m.namespaceDir(vis, username), hashed)

	unlock := m.locks.lock(dir)
	defer unlock()

	if h := m.cached(dir); h != nil {
		return h, nil
	}

	owner := ""
	if vis == domain.VisibilityPrivate {
		owner = username
	}
	rec, err := m.load(dir, vis, owner)
	switch {
	case err == nil:
		return m.openLocked(dir, rec)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	createdBy := ""
	if vis == domain.VisibilityPublic {
		createdBy = username
	}
	rec = &record{
		SchemaVersion: schemaVersion,
		Model:         model,
		Name:          name,
		HashedName:    hashed,
		Visibility:    vis,
		Owner:         owner,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().UTC(),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &domain.StorageWriteError{Op: "create collection", Path: dir, Err: err}
	}
	h, err := m.openLocked(dir, rec)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	if err := h.store.SetMeta(store.MetaEmbeddingModel, rec.Model); err != nil {
		m.dropLocked(dir)
		os.RemoveAll(dir)
		return nil, &domain.StorageWriteError{Op: "bind model", Path: dir, Err: err}
	}
	// The record goes last: a directory without one is never listed.
	if err := writeRecord(dir, rec); err != nil {
		m.dropLocked(dir)
		os.RemoveAll(dir)
		return nil, err
	}
	logger.Info("created %s collection %q (%s) with model %s", vis, name, hashed, rec.Model)
	return h, nil
}

// Namespace pins a collection lookup to one namespace: the common one when
// Public is set, otherwise the private namespace of Owner.
type Namespace struct {
	Public bool
	Owner  string
}

// Open loads an existing collection by hashed name, looking in username's
// namespace first and then in the common one.
func (m *Manager) Open(ctx context.Context, hashed, username string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, vis, owner, err := m.locate(hashed, username)
	if err != nil {
		return nil, err
	}
	return m.open(hashed, dir, vis, owner)
}

// OpenIn loads an existing collection from ns only.
func (m *Manager) OpenIn(ctx context.Context, hashed string, ns Namespace) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, vis, owner, err := m.locateIn(hashed, ns)
	if err != nil {
		return nil, err
	}
	return m.open(hashed, dir, vis, owner)
}

func (m *Manager) open(hashed, dir string, vis domain.Visibility, owner string) (*Handle, error) {
	unlock := m.locks.lock(dir)
	defer unlock()

	if h := m.cached(dir); h != nil {
		return h, nil
	}
	rec, err := m.load(dir, vis, owner)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, hashed)
	}
	if err != nil {
		return nil, err
	}
	return m.openLocked(dir, rec)
}

// Delete removes a collection. Private collections may be deleted by their
// owner or an admin; public ones according to the PublicDelete policy. The
// collection disappears from listings before its files are removed.
//
// The collection is looked up in username's namespace, then the common one.
// An admin also reaches another user's private collection when exactly one
// user has it; use DeleteIn to name the namespace otherwise.
func (m *Manager) Delete(hashed, username string) error {
	dir, vis, owner, err := m.locate(hashed, username)
	if errors.Is(err, domain.ErrCollectionNotFound) && m.isAdmin(username) {
		dir, vis, owner, err = m.locateAnyUser(hashed)
	}
	if err != nil {
		return err
	}
	return m.remove(hashed, dir, vis, owner, username)
}

// DeleteIn is Delete for the collection in ns.
func (m *Manager) DeleteIn(hashed string, ns Namespace, username string) error {
	dir, vis, owner, err := m.locateIn(hashed, ns)
	if err != nil {
		return err
	}
	return m.remove(hashed, dir, vis, owner, username)
}

func (m *Manager) remove(hashed, dir string, vis domain.Visibility, owner, username string) error {
	unlock := m.locks.lock(dir)
	defer unlock()

	rec, _, err := readRecord(dir, vis, owner)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, hashed)
	}
	// A corrupt record still identifies a directory its namespace owner may remove.
	if err != nil && vis == domain.VisibilityPublic && !m.isAdmin(username) {
		return err
	}
	if err := m.authorizeDelete(vis, rec, owner, username); err != nil {
		return err
	}

	m.dropLocked(dir)

	tombstone := filepath.Join(filepath.Dir(dir), ".trash-"+hashed+"-"+uuid.NewString())
	if err := os.Rename(dir, tombstone); err != nil {
		return &domain.StorageWriteError{Op: "unlink collection", Path: dir, Err: err}
	}
	if err := os.RemoveAll(tombstone); err != nil {
		return &domain.StorageWriteError{Op: "remove collection", Path: tombstone, Err: err}
	}
	logger.Info("deleted %s collection %s", vis, hashed)
	return nil
}

func (m *Manager) authorizeDelete(vis domain.Visibility, rec *record, owner, username string) error {
	if username == "" {
		return fmt.Errorf("%w: deleting a collection requires a user", domain.ErrPermissionDenied)
	}
	if vis == domain.VisibilityPrivate {
		if username == owner || m.isAdmin(username) {
			return nil
		}
		return fmt.Errorf("%w: %s is not the owner", domain.ErrPermissionDenied, username)
	}
	switch m.opts.PublicDelete {
	case config.PublicDeleteAny:
		return nil
	case config.PublicDeleteOwner:
		if (rec != nil && rec.CreatedBy != "" && rec.CreatedBy == username) || m.isAdmin(username) {
			return nil
		}
		return fmt.Errorf("%w: only the creator or an admin may delete this public collection", domain.ErrPermissionDenied)
	default:
		if m.isAdmin(username) {
			return nil
		}
		return fmt.Errorf("%w: only an admin may delete public collections", domain.ErrPermissionDenied)
	}
}

func (m *Manager) isAdmin(username string) bool {
	for _, a := range m.opts.Admins {
		if a == username {
			return true
		}
	}
	return false
}

// locate finds the directory of hashed, user namespace first.
func (m *Manager) locate(hashed, username string) (dir string, vis domain.Visibility, owner string, err error) {
	if !validSegment(hashed) {
		return "", "", "", fmt.Errorf("%w: invalid collection id %q", domain.ErrInvalidInput, hashed)
	}
	if username != "" && validSegment(username) {
		dir = filepath.Join(m.namespaceDir(domain.VisibilityPrivate, username), hashed)
		if isDir(dir) {
			return dir, domain.VisibilityPrivate, username, nil
		}
	}
	dir = filepath.Join(m.namespaceDir(domain.VisibilityPublic, ""), hashed)
	if isDir(dir) {
		return dir, domain.VisibilityPublic, "", nil
	}
	return "", "", "", fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, hashed)
}

// locateIn finds the directory of hashed in ns only.
func (m *Manager) locateIn(hashed string, ns Namespace) (dir string, vis domain.Visibility, owner string, err error) {
	if !validSegment(hashed) {
		return "", "", "", fmt.Errorf("%w: invalid collection id %q", domain.ErrInvalidInput, hashed)
	}
	vis = domain.VisibilityPublic
	if !ns.Public {
		if !validSegment(ns.Owner) {
			return "", "", "", fmt.Errorf("%w: invalid username %q", domain.ErrInvalidInput, ns.Owner)
		}
		vis, owner = domain.VisibilityPrivate, ns.Owner
	}
	dir = filepath.Join(m.namespaceDir(vis, owner), hashed)
	if !isDir(dir) {
		return "", "", "", fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, hashed)
	}
	return dir, vis, owner, nil
}

// locateAnyUser finds hashed among all private namespaces. It fails when
// more than one user has the collection.
func (m *Manager) locateAnyUser(hashed string) (dir string, vis domain.Visibility, owner string, err error) {
	if !validSegment(hashed) {
		return "", "", "", fmt.Errorf("%w: invalid collection id %q", domain.ErrInvalidInput, hashed)
	}
	root := filepath.Join(m.opts.DataDir, "user")
	entries, err := os.ReadDir(root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", "", "", fmt.Errorf("read %s: %w", root, err)
	}
	var owners []string
	for _, e := range entries {
		if e.IsDir() && isDir(filepath.Join(root, e.Name(), hashed)) {
			owners = append(owners, e.Name())
		}
	}
	switch len(owners) {
	case 0:
		return "", "", "", fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, hashed)
	case 1:
		return filepath.Join(root, owners[0], hashed), domain.VisibilityPrivate, owners[0], nil
	default:
		return "", "", "", fmt.Errorf("%w: %s exists for users %s; name the owner",
			domain.ErrInvalidInput, hashed, strings.Join(owners, ", "))
	}
}

// load reads the record in dir and persists a legacy upgrade. Caller holds
// the directory lock.
func (m *Manager) load(dir string, vis domain.Visibility, owner string) (*record, error) {
	rec, migrated, err := readRecord(dir, vis, owner)
	if err != nil {
		return nil, err
	}
	if migrated {
		if err := writeRecord(dir, rec); err != nil {
			logger.Warn("could not upgrade record in %s: %v", dir, err)
		} else {
			logger.Info("upgraded legacy record in %s", dir)
		}
	}
	return rec, nil
}

func (m *Manager) openLocked(dir string, rec *record) (*Handle, error) {
	st, err := store.Open(filepath.Join(dir, indexFile))
	if err != nil {
		return nil, fmt.Errorf("open index for %s: %w", rec.HashedName, err)
	}
	h := &Handle{
		Collection: rec.collection(),
		dir:        dir,
		store:      st,
		embedder:   m.embedders.Get(rec.Model),
	}
	m.mu.Lock()
	m.handles[dir] = h
	m.mu.Unlock()
	return h, nil
}

// Live reports whether h is still the open handle of its collection. Handles
// of deleted collections are not.
func (m *Manager) Live(h *Handle) bool {
	return h != nil && m.cached(h.dir) == h
}

func (m *Manager) cached(dir string) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handles[dir]
}

// dropLocked closes and forgets the open handle for dir, if any.
func (m *Manager) dropLocked(dir string) {
	m.mu.Lock()
	h := m.handles[dir]
	delete(m.handles, dir)
	m.mu.Unlock()
	if h != nil {
		h.close()
	}
}

// AddChunks embeds chunks with the collection's model and appends them to
// its index. The write is committed before AddChunks returns.
func (m *Manager) AddChunks(ctx context.Context, h *Handle, chunks []domain.Chunk) error {
	return m.add(ctx, h, nil, chunks)
}

// AddFile is AddChunks that also records the source file in the ledger so
// a later upload of the same content can be skipped.
func (m *Manager) AddFile(ctx context.Context, h *Handle, file store.FileRecord, chunks []domain.Chunk) error {
	return m.add(ctx, h, &file, chunks)
}

// AddEmbedded appends chunks with vectors computed by the caller. model must
// be the collection's model.
func (m *Manager) AddEmbedded(h *Handle, model string, chunks []domain.Chunk, vectors [][]float32) error {
	if h == nil {
		return fmt.Errorf("%w: nil collection", domain.ErrInvalidInput)
	}
	if model != h.Collection.EmbeddingModel {
		return &domain.ModelMismatchError{Collection: h.Collection.HashedName, Want: h.Collection.EmbeddingModel, Got: model}
	}
	return m.insert(h, nil, chunks, vectors)
}

func (m *Manager) add(ctx context.Context, h *Handle, file *store.FileRecord, chunks []domain.Chunk) error {
	if h == nil {
		return fmt.Errorf("%w: nil collection", domain.ErrInvalidInput)
	}
	var vectors [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		var err error
		vectors, err = h.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
	}
	return m.insert(h, file, chunks, vectors)
}

func (m *Manager) insert(h *Handle, file *store.FileRecord, chunks []domain.Chunk, vectors [][]float32) error {
	unlock := m.locks.lock(h.dir)
	defer unlock()

	if !m.Live(h) {
		return fmt.Errorf("%w: %s was deleted", domain.ErrCollectionNotFound, h.Collection.HashedName)
	}
	return h.store.InsertChunks(h.Collection.EmbeddingModel, file, chunks, vectors)
}

// Close closes every open collection.
func (m *Manager) Close() error {
	m.mu.Lock()
	handles := m.handles
	m.handles = make(map[string]*Handle)
	m.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// keyedMutex serialises work per storage path.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

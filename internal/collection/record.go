package collection

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ragchat/internal/domain"
)

const (
	recordFile    = "config.json"
	indexFile     = "index.db"
	schemaVersion = 2
)

// ErrCorruptRecord indicates a metadata record that cannot be trusted.
var ErrCorruptRecord = errors.New("corrupt collection record")

// HashName derives a collection's storage id from its display name. The same
// name always maps to the same id.
func HashName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])[:32]
}

// record is the config.json side-record stored next to each index. Records
// written before schema_version existed only carry model, name and
// hashed_name. Owner is the namespace user and stays empty for public
// collections; CreatedBy names whoever created a public one.
type record struct {
	SchemaVersion int               `json:"schema_version"`
	Model         string            `json:"model"`
	Name          string            `json:"name"`
	HashedName    string            `json:"hashed_name"`
	Visibility    domain.Visibility `json:"visibility"`
	Owner         string            `json:"owner"`
	CreatedBy     string            `json:"created_by,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (r *record) collection() domain.Collection {
	return domain.Collection{
		Name:           r.Name,
		HashedName:     r.HashedName,
		EmbeddingModel: r.Model,
		Visibility:     r.Visibility,
		Owner:          r.Owner,
		CreatedBy:      r.CreatedBy,
	}
}

// readRecord loads and validates the record in dir. Legacy records are
// upgraded in memory and reported with migrated set; the caller decides
// whether to persist the upgrade.
func readRecord(dir string, vis domain.Visibility, owner string) (rec *record, migrated bool, err error) {
	data, err := os.ReadFile(filepath.Join(dir, recordFile))
	if err != nil {
		return nil, false, err
	}
	rec = &record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, dir, err)
	}

	switch {
	case rec.SchemaVersion == 0:
		rec.SchemaVersion = schemaVersion
		rec.Visibility = vis
		if vis == domain.VisibilityPrivate {
			rec.Owner = owner
		}
		migrated = true
	case rec.SchemaVersion == 1:
		// Version 1 kept the creator of a public collection in owner.
		rec.SchemaVersion = schemaVersion
		if vis == domain.VisibilityPublic && rec.Owner != "" {
			rec.CreatedBy, rec.Owner = rec.Owner, ""
		}
		migrated = true
	case rec.SchemaVersion > schemaVersion:
		return nil, false, fmt.Errorf("%w: %s: schema version %d is newer than supported %d",
			ErrCorruptRecord, dir, rec.SchemaVersion, schemaVersion)
	}

	if err := rec.validate(filepath.Base(dir), vis, owner); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, dir, err)
	}
	return rec, migrated, nil
}

func (r *record) validate(dirName string, vis domain.Visibility, owner string) error {
	switch {
	case r.Model == "":
		return errors.New("missing model")
	case r.Name == "":
		return errors.New("missing name")
	case r.HashedName != dirName:
		return fmt.Errorf("hashed_name %q does not match directory %q", r.HashedName, dirName)
	case r.Visibility != vis:
		return fmt.Errorf("visibility %q stored in %s namespace", r.Visibility, vis)
	case vis == domain.VisibilityPrivate && r.Owner != owner:
		return fmt.Errorf("owner %q stored under user %q", r.Owner, owner)
	case vis == domain.VisibilityPublic && r.Owner != "":
		return fmt.Errorf("public collection has owner %q", r.Owner)
	}
	return nil
}

// writeRecord replaces the record in dir atomically.
func writeRecord(dir string, rec *record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return &domain.StorageWriteError{Op: "create record", Path: dir, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return &domain.StorageWriteError{Op: "write record", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return &domain.StorageWriteError{Op: "sync record", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &domain.StorageWriteError{Op: "close record", Path: tmpPath, Err: err}
	}
	target := filepath.Join(dir, recordFile)
	if err := os.Rename(tmpPath, target); err != nil {
		cleanup()
		return &domain.StorageWriteError{Op: "rename record", Path: target, Err: err}
	}
	return nil
}

// validSegment reports whether s can be used as a single path element.
func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." || strings.HasPrefix(s, ".") {
		return false
	}
	return !strings.ContainsAny(s, `/\`+"\x00")
}

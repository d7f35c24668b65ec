// Package store implements the Persistence Store: crash-safe, atomically
// written JSON files for discussions, their listing index, and periodic
// backups.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"symposium/internal/domain"
	"symposium/internal/domain/discussion"
)

const (
	schemaVersion  = 1
	discussionsDir = "discussions"
	backupsDir     = "backups"
	indexFile      = "index.json"
	metadataFile   = "metadata.json"
)

// metadata is the small root-level counters file (spec §4.3).
type metadata struct {
	SchemaVersion    int        `json:"schema_version"`
	DiscussionCount  int        `json:"discussion_count"`
	LastBackupAt     *time.Time `json:"last_backup_at,omitempty"`
}

// Store is the on-disk Discussion repository. Every discussion file write,
// and the index rewrite that follows it, is serialized under Store's lock to
// avoid torn reads (spec §5).
type Store struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	index map[string]discussion.IndexEntry
}

// Open creates the directory layout under root if absent and loads the
// existing index, if any.
func Open(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{root, filepath.Join(root, discussionsDir), filepath.Join(root, backupsDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", dir, err)
		}
	}

	s := &Store{root: root, logger: logger, index: make(map[string]discussion.IndexEntry)}

	indexPath := filepath.Join(root, discussionsDir, indexFile)
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, s.writeIndexLocked()
		}
		return nil, fmt.Errorf("store: read index: %w", err)
	}
	if err := json.Unmarshal(data, &s.index); err != nil {
		return nil, fmt.Errorf("store: parse index: %w", err)
	}
	return s, nil
}

func (s *Store) discussionPath(id string) string {
	return filepath.Join(s.root, discussionsDir, id+".json")
}

// writeAtomic writes data to path by writing a sibling temp file then
// renaming it over the destination, so a crash mid-write never leaves a
// truncated file (spec §4.3).
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Save serializes d and writes it atomically, then updates the index.
// Failures are logged, never returned to the turn loop — callers that need
// strict error visibility use SaveStrict.
func (s *Store) Save(d *discussion.Discussion) {
	if err := s.SaveStrict(d); err != nil {
		s.logger.Error("persist discussion failed", "discussion_id", d.ID, "error", err)
	}
}

// SaveStrict is Save's error-returning counterpart, used at points where a
// failure must be surfaced (e.g. the initial Create call).
func (s *Store) SaveStrict(d *discussion.Discussion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", d.ID, err)
	}
	// Preserve any forward-compatible fields a newer build wrote that this
	// build's struct doesn't know about, rather than silently discarding
	// them on the next save.
	data, err = mergeUnknownFields(s.discussionPath(d.ID), data)
	if err != nil {
		return err
	}

	if err := writeAtomic(s.discussionPath(d.ID), data); err != nil {
		return fmt.Errorf("store: write %s: %w", d.ID, err)
	}

	s.index[d.ID] = discussion.IndexEntryFrom(d)
	return s.writeIndexLocked()
}

// mergeUnknownFields copies any top-level JSON keys present on disk but
// absent from the freshly marshaled struct back into it, using gjson/sjson
// rather than map[string]interface{} round-tripping.
func mergeUnknownFields(existingPath string, fresh []byte) ([]byte, error) {
	existing, err := os.ReadFile(existingPath)
	if err != nil {
		return fresh, nil // nothing on disk yet, nothing to preserve
	}
	result := gjson.ParseBytes(existing)
	if !result.IsObject() {
		return fresh, nil
	}

	out := fresh
	result.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if gjson.GetBytes(fresh, k).Exists() {
			return true
		}
		var setErr error
		out, setErr = sjson.SetRawBytes(out, k, []byte(value.Raw))
		if setErr != nil {
			return false
		}
		return true
	})
	return out, nil
}

// writeIndexLocked persists the in-memory index; callers must hold s.mu.
func (s *Store) writeIndexLocked() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal index: %w", err)
	}
	return writeAtomic(filepath.Join(s.root, discussionsDir, indexFile), data)
}

// Load reads and rehydrates a discussion by id. Returns domain.ErrNotFound
// if the index has no entry for id.
func (s *Store) Load(id string) (*discussion.Discussion, error) {
	s.mu.Lock()
	_, indexed := s.index[id]
	s.mu.Unlock()
	if !indexed {
		return nil, fmt.Errorf("%w: discussion %s", domain.ErrNotFound, id)
	}

	data, err := os.ReadFile(s.discussionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: discussion %s file missing", domain.ErrPersistence, id)
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrPersistence, id, err)
	}

	var d discussion.Discussion
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrPersistence, id, err)
	}
	if d.Messages == nil {
		d.Messages = []discussion.Message{}
	}
	return &d, nil
}

// Delete removes the discussion file and its index entry.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return fmt.Errorf("%w: discussion %s", domain.ErrNotFound, id)
	}
	delete(s.index, id)
	if err := s.writeIndexLocked(); err != nil {
		return err
	}
	if err := os.Remove(s.discussionPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrPersistence, id, err)
	}
	return nil
}

// List returns every index entry, sorted is left to the caller.
func (s *Store) List() []discussion.IndexEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]discussion.IndexEntry, 0, len(s.index))
	for _, e := range s.index {
		out = append(out, e)
	}
	return out
}

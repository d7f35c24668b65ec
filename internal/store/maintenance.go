package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"symposium/internal/domain/discussion"
)

// DefaultBackupRetention is the number of backup snapshots kept (spec §4.3).
const DefaultBackupRetention = 10

// AutoSaveInterval is how often RunAutoSave persists every active discussion.
const AutoSaveInterval = 30 * time.Second

// ActiveSource supplies the live, in-memory discussions the orchestrator
// currently owns, so AutoSave can persist them without the store reaching
// back into orchestrator internals.
type ActiveSource func() []*discussion.Discussion

// RunAutoSave blocks, saving every discussion active() returns every
// AutoSaveInterval, until ctx is cancelled.
func (s *Store) RunAutoSave(ctx context.Context, active ActiveSource) {
	ticker := time.NewTicker(AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, d := range active() {
				s.Save(d)
			}
		}
	}
}

// Backup snapshots every discussion file, the index, and metadata.json into
// a new timestamped directory, then prunes older snapshots beyond
// DefaultBackupRetention (spec §4.3).
func (s *Store) Backup() error {
	ts := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	dest := filepath.Join(s.root, backupsDir, "backup-"+ts)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("store: create backup dir: %w", err)
	}

	s.mu.Lock()
	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	// Each discussion file is independent, so copying them is embarrassingly
	// parallel; errgroup runs one goroutine per file (no concurrency limit)
	// and propagates the first copy failure instead of hand-rolling a
	// WaitGroup + error channel.
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := copyFile(s.discussionPath(id), filepath.Join(dest, id+".json")); err != nil {
				return fmt.Errorf("store: backup %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := copyFile(filepath.Join(s.root, discussionsDir, indexFile), filepath.Join(dest, indexFile)); err != nil {
		return fmt.Errorf("store: backup index: %w", err)
	}
	if err := s.touchMetadataBackedUpAt(); err != nil {
		return err
	}
	if err := copyFile(filepath.Join(s.root, metadataFile), filepath.Join(dest, metadataFile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: backup metadata: %w", err)
	}

	return s.pruneBackups(DefaultBackupRetention)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// pruneBackups keeps the keep most recent backup directories by
// lexicographic name (the RFC3339-safe timestamp in the name sorts
// chronologically) and deletes the rest.
func (s *Store) pruneBackups(keep int) error {
	entries, err := os.ReadDir(filepath.Join(s.root, backupsDir))
	if err != nil {
		return fmt.Errorf("store: list backups: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "backup-") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) <= keep {
		return nil
	}
	for _, name := range names[:len(names)-keep] {
		if err := os.RemoveAll(filepath.Join(s.root, backupsDir, name)); err != nil {
			return fmt.Errorf("store: prune backup %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) touchMetadataBackedUpAt() error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	m := metadata{SchemaVersion: schemaVersion, DiscussionCount: len(s.index), LastBackupAt: &now}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}
	return writeAtomic(filepath.Join(s.root, metadataFile), data)
}

// Cleanup removes discussion files present on disk but absent from the
// index (orphans), per spec §4.3's invariant that the index is the source
// of truth for existence.
func (s *Store) Cleanup() (removed []string, err error) {
	s.mu.Lock()
	known := make(map[string]struct{}, len(s.index))
	for id := range s.index {
		known[id] = struct{}{}
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.root, discussionsDir))
	if err != nil {
		return nil, fmt.Errorf("store: list discussions dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == indexFile {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		if _, ok := known[id]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, discussionsDir, e.Name())); err != nil {
			return removed, fmt.Errorf("store: remove orphan %s: %w", e.Name(), err)
		}
		removed = append(removed, id)
	}
	return removed, nil
}

// Writable reports whether the store's root directory currently accepts
// writes, for the HTTP adapter's aggregate health endpoint.
func (s *Store) Writable() error {
	probe := filepath.Join(s.root, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("store: root not writable: %w", err)
	}
	return os.Remove(probe)
}

// RecoverFromCrash resets any discussion left in "running" or
// "summarizing" to "stopped" and persists it, without auto-resuming
// (spec §4.3 crash recovery). Call once at startup before the orchestrator
// accepts requests.
func (s *Store) RecoverFromCrash() (recovered []string, err error) {
	for _, entry := range s.List() {
		if !entry.Status.Active() {
			continue
		}
		d, loadErr := s.Load(entry.ID)
		if loadErr != nil {
			return recovered, fmt.Errorf("store: recover %s: %w", entry.ID, loadErr)
		}
		d.Status = discussion.StatusStopped
		d.Error = "interrupted by restart"
		if saveErr := s.SaveStrict(d); saveErr != nil {
			return recovered, fmt.Errorf("store: recover %s: %w", entry.ID, saveErr)
		}
		recovered = append(recovered, entry.ID)
	}
	return recovered, nil
}

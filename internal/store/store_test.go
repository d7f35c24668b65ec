package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"symposium/internal/domain"
	"symposium/internal/domain/discussion"
	"symposium/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func sampleDiscussion(id string) *discussion.Discussion {
	return &discussion.Discussion{
		ID:           id,
		Topic:        "test topic",
		Models:       []string{"local/llama3", "remote/claude-haiku-4-5"},
		SummaryModel: "local/llama3",
		MaxRounds:    3,
		Status:       discussion.StatusCreated,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	d := sampleDiscussion("disc-1")

	if err := s.SaveStrict(d); err != nil {
		t.Fatalf("SaveStrict: %v", err)
	}

	loaded, err := s.Load("disc-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Topic != d.Topic || loaded.Status != d.Status {
		t.Errorf("loaded = %+v, want topic/status matching %+v", loaded, d)
	}
	if loaded.Messages == nil {
		t.Error("expected Messages to default to empty slice, got nil")
	}
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("does-not-exist")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Load missing id: got %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesFromIndexAndDisk(t *testing.T) {
	s := newTestStore(t)
	d := sampleDiscussion("disc-del")
	if err := s.SaveStrict(d); err != nil {
		t.Fatalf("SaveStrict: %v", err)
	}

	if err := s.Delete("disc-del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load("disc-del"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Load after Delete: got %v, want ErrNotFound", err)
	}
}

func TestListReflectsSavedDiscussions(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := s.SaveStrict(sampleDiscussion(id)); err != nil {
			t.Fatalf("SaveStrict(%s): %v", id, err)
		}
	}
	entries := s.List()
	if len(entries) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(entries))
	}
}

func TestBackupCreatesSnapshotAndPrunes(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveStrict(sampleDiscussion("disc-1")); err != nil {
		t.Fatalf("SaveStrict: %v", err)
	}

	for i := 0; i < store.DefaultBackupRetention+3; i++ {
		if err := s.Backup(); err != nil {
			t.Fatalf("Backup: %v", err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "backups", "backup-*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) > store.DefaultBackupRetention {
		t.Errorf("found %d backups, want at most %d", len(matches), store.DefaultBackupRetention)
	}
}

func TestCleanupRemovesOrphanFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveStrict(sampleDiscussion("kept")); err != nil {
		t.Fatalf("SaveStrict: %v", err)
	}

	orphanPath := filepath.Join(dir, "discussions", "orphan.json")
	if err := os.WriteFile(orphanPath, []byte(`{"id":"orphan"}`), 0o644); err != nil {
		t.Fatalf("write orphan file: %v", err)
	}

	removed, err := s.Cleanup()
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(removed) != 1 || removed[0] != "orphan" {
		t.Fatalf("removed = %v, want [orphan]", removed)
	}
	if _, err := s.Load("kept"); err != nil {
		t.Errorf("Cleanup should not remove indexed discussions, Load(kept): %v", err)
	}
}

func TestRecoverFromCrashStopsActiveDiscussions(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	running := sampleDiscussion("running-1")
	running.Status = discussion.StatusRunning
	if err := s.SaveStrict(running); err != nil {
		t.Fatalf("SaveStrict: %v", err)
	}

	recovered, err := s.RecoverFromCrash()
	if err != nil {
		t.Fatalf("RecoverFromCrash: %v", err)
	}
	if len(recovered) != 1 || recovered[0] != "running-1" {
		t.Fatalf("recovered = %v, want [running-1]", recovered)
	}

	reloaded, err := s.Load("running-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Status != discussion.StatusStopped {
		t.Errorf("status after recovery = %s, want stopped", reloaded.Status)
	}
}

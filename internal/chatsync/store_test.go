package chatsync_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/boddenberg/bazchat-go/internal/chatsync"
)

func exerciseStore(t *testing.T, s chatsync.KeyValueStore) {
	t.Helper()
	if _, ok, err := s.Get("missing"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := s.Set("a", "1"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := s.Get("a"); !ok || v != "1" {
		t.Errorf("expected a=1, got %q %v", v, ok)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get("a"); ok {
		t.Error("expected a deleted")
	}
	if err := s.Delete("never-set"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, chatsync.NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "bazchat.json")
	s, err := chatsync.OpenFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, s)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bazchat.json")
	s, _ := chatsync.OpenFileStore(path)
	s.Set("chat_session_p1", "sess_1")

	reopened, err := chatsync.OpenFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := reopened.Get("chat_session_p1"); !ok || v != "sess_1" {
		t.Errorf("expected value to survive reopen, got %q %v", v, ok)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bazchat.json")
	os.WriteFile(path, []byte("{not json"), 0o600)

	if _, err := chatsync.OpenFileStore(path); err == nil {
		t.Fatal("expected decode error")
	}
}

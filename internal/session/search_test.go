package session

import (
	"path/filepath"
	"testing"

	"chatshell/internal/kv"
)

func TestSearchIndex(t *testing.T) {
	idx, err := OpenSearchIndex(filepath.Join(t.TempDir(), "transcripts.bleve"))
	if err != nil {
		t.Fatalf("OpenSearchIndex failed: %v", err)
	}
	defer idx.Close()

	store := NewStore(kv.NewMemory(), idx, nil)

	if err := store.Save("session-100-aaa", Update{Messages: []Message{
		{ID: "m1", Role: RoleUser, Content: "how do I deploy kubernetes", Timestamp: 1},
	}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("session-200-bbb", Update{Messages: []Message{
		{ID: "m2", Role: RoleUser, Content: "tell me a joke about cats", Timestamp: 2},
	}}); err != nil {
		t.Fatal(err)
	}

	hits, err := store.Search("kubernetes", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].SessionID != "session-100-aaa" {
		t.Errorf("hit = %s, want session-100-aaa", hits[0].SessionID)
	}

	// Deleting the session removes it from the index
	if err := store.Delete("session-100-aaa"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	hits, err = store.Search("kubernetes", 5)
	if err != nil {
		t.Fatalf("Search after delete failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits after delete, got %d", len(hits))
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	store := NewStore(kv.NewMemory(), nil, nil)
	hits, err := store.Search("anything", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if hits != nil {
		t.Errorf("expected nil hits without an index, got %v", hits)
	}
}

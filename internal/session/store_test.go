package session

import (
	"errors"
	"testing"

	"chatshell/internal/kv"
)

func testStore(t *testing.T) (*Store, kv.Store) {
	t.Helper()
	backend := kv.NewMemory()
	return NewStore(backend, nil, nil), backend
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	store, _ := testStore(t)

	initial := []Message{
		{ID: NewMessageID(), Role: RoleUser, Content: "Hello", Timestamp: 100},
		{ID: NewMessageID(), Role: RoleAssistant, Content: "Hi there", Timestamp: 200},
	}
	sess := store.Create(initial)
	if sess.ID == "" {
		t.Fatal("Create returned a session without an id")
	}
	if !IsSessionKey(sess.ID) {
		t.Errorf("session id %q does not carry the session prefix", sess.ID)
	}

	loaded, err := store.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded.Messages))
	}
	for i, msg := range loaded.Messages {
		if msg != initial[i] {
			t.Errorf("message %d = %+v, want %+v", i, msg, initial[i])
		}
	}
	if loaded.CreatedAt != sess.CreatedAt {
		t.Errorf("CreatedAt = %d, want %d", loaded.CreatedAt, sess.CreatedAt)
	}
}

func TestLoadNotFound(t *testing.T) {
	store, _ := testStore(t)
	if _, err := store.Load("session-123-zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadCorruptRecord(t *testing.T) {
	store, backend := testStore(t)

	// Unparsable JSON
	if err := backend.Set("session-100-aaa", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("session-100-aaa"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unparsable record: expected ErrNotFound, got %v", err)
	}

	// Parsable but wrong shape
	if err := backend.Set("session-200-bbb", `{"messages": "oops"}`); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("session-200-bbb"); !errors.Is(err, ErrNotFound) {
		t.Errorf("malformed record: expected ErrNotFound, got %v", err)
	}
}

func TestSaveMergesUpdate(t *testing.T) {
	store, _ := testStore(t)

	sess := store.Create([]Message{
		{ID: "msg-1-a", Role: RoleUser, Content: "Hello", Timestamp: 1},
	})

	updated := append(sess.Messages, Message{
		ID: "msg-2-b", Role: RoleAssistant, Content: "Hi", Timestamp: 2,
	})
	if err := store.Save(sess.ID, Update{Messages: updated, UpdatedAt: 42}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 messages after save, got %d", len(loaded.Messages))
	}
	if loaded.UpdatedAt != 42 {
		t.Errorf("UpdatedAt = %d, want 42", loaded.UpdatedAt)
	}
	if loaded.CreatedAt != sess.CreatedAt {
		t.Errorf("CreatedAt changed on save: %d != %d", loaded.CreatedAt, sess.CreatedAt)
	}
}

func TestListRecentOrdering(t *testing.T) {
	store, backend := testStore(t)

	// Keys embed the sort component directly so ordering is deterministic.
	if err := store.Save("session-100-old", Update{Messages: []Message{
		{ID: "m1", Role: RoleUser, Content: "first conversation", Timestamp: 100},
	}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("session-300-new", Update{Messages: []Message{
		{ID: "m2", Role: RoleUser, Content: "third conversation", Timestamp: 300},
	}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("session-200-mid", Update{Messages: []Message{
		{ID: "m3", Role: RoleUser, Content: "second conversation", Timestamp: 200},
	}}); err != nil {
		t.Fatal(err)
	}

	// Corrupt records and foreign keys are skipped, not fatal.
	if err := backend.Set("session-400-bad", "{broken"); err != nil {
		t.Fatal(err)
	}
	if err := backend.Set("config-blob", "{}"); err != nil {
		t.Fatal(err)
	}

	entries := store.ListRecent()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantOrder := []string{"session-300-new", "session-200-mid", "session-100-old"}
	for i, want := range wantOrder {
		if entries[i].ID != want {
			t.Errorf("entries[%d].ID = %s, want %s", i, entries[i].ID, want)
		}
	}
	if entries[0].LastMessage != "third conversation" {
		t.Errorf("entries[0].LastMessage = %q", entries[0].LastMessage)
	}
	if entries[0].TimestampKey != 300 {
		t.Errorf("entries[0].TimestampKey = %d, want 300", entries[0].TimestampKey)
	}
}

func TestListRecentEmptySession(t *testing.T) {
	store, _ := testStore(t)
	if err := store.Save("session-100-aaa", Update{Messages: []Message{}}); err != nil {
		t.Fatal(err)
	}
	entries := store.ListRecent()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].LastMessage != "" {
		t.Errorf("LastMessage = %q, want empty", entries[0].LastMessage)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, _ := testStore(t)
	sess := store.Create(nil)

	if err := store.Delete(sess.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Load(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(sess.ID); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestUnavailableBackendDegrades(t *testing.T) {
	store := NewStore(kv.Unavailable{}, nil, nil)

	sess := store.Create([]Message{
		{ID: "m1", Role: RoleUser, Content: "hello", Timestamp: 1},
	})
	if sess == nil || sess.ID == "" {
		t.Fatal("Create must still return a usable in-memory session")
	}

	if err := store.Save(sess.ID, Update{UpdatedAt: 1}); err != nil {
		t.Errorf("Save must be a silent no-op, got %v", err)
	}
	if _, err := store.Load(sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load: expected ErrNotFound, got %v", err)
	}
	if entries := store.ListRecent(); len(entries) != 0 {
		t.Errorf("ListRecent: expected empty list, got %v", entries)
	}
	if err := store.Delete(sess.ID); err != nil {
		t.Errorf("Delete must be a silent no-op, got %v", err)
	}
}

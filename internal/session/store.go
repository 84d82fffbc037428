package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"chatshell/internal/kv"
)

// ErrNotFound is returned by Load when the id has no usable record.
// Corrupt records are reported identically: callers treat both as
// "start fresh", never as fatal.
var ErrNotFound = errors.New("session: not found")

// recordSchema describes the persisted record value. Records that fail
// validation are treated as corrupt and skipped.
const recordSchema = `{
	"type": "object",
	"required": ["messages"],
	"properties": {
		"messages": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "role", "content", "timestamp"],
				"properties": {
					"id":        {"type": "string"},
					"role":      {"type": "string", "enum": ["user", "assistant"]},
					"content":   {"type": "string"},
					"timestamp": {"type": "number"}
				}
			}
		},
		"createdAt": {"type": "number"},
		"updatedAt": {"type": "number"}
	}
}`

// Store handles persistence of sessions on top of a key-value collaborator.
// All operations are best-effort: an unavailable collaborator degrades the
// store to a no-op rather than failing the conversation.
type Store struct {
	kv     kv.Store
	search *SearchIndex // optional, nil disables transcript search
	logger *slog.Logger
	schema *gojsonschema.Schema
}

// NewStore creates a session store over the given key-value backend.
// search may be nil.
func NewStore(backend kv.Store, search *SearchIndex, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordSchema))
	if err != nil {
		// The schema is a compile-time constant; failing to parse it is a bug.
		panic(fmt.Sprintf("session: invalid record schema: %v", err))
	}
	return &Store{kv: backend, search: search, logger: logger, schema: schema}
}

// Create builds a new session around the initial messages, persists it
// best-effort, and returns it. The generated id embeds the creation time.
func (s *Store) Create(initial []Message) *Session {
	now := nowMillis()
	sess := &Session{
		ID:        NewSessionID(),
		Messages:  append([]Message(nil), initial...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.write(sess); err != nil && !errors.Is(err, kv.ErrUnavailable) {
		s.logger.Warn("failed to persist new session", "id", sess.ID, "error", err)
	}
	return sess
}

// Save merges the update into the stored record for id. A missing record is
// created. An unavailable collaborator makes Save a silent no-op.
func (s *Store) Save(id string, up Update) error {
	if id == "" {
		return nil
	}
	sess, err := s.Load(id)
	if err != nil {
		sess = &Session{ID: id, CreatedAt: TimestampKey(id)}
	}
	if up.Messages != nil {
		sess.Messages = up.Messages
	}
	if up.UpdatedAt != 0 {
		sess.UpdatedAt = up.UpdatedAt
	} else {
		sess.UpdatedAt = nowMillis()
	}

	err = s.write(sess)
	if errors.Is(err, kv.ErrUnavailable) {
		return nil
	}
	return err
}

func (s *Store) write(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.kv.Set(sess.ID, string(data)); err != nil {
		return err
	}
	if s.search != nil {
		if err := s.search.Index(sess); err != nil {
			s.logger.Warn("failed to index session", "id", sess.ID, "error", err)
		}
	}
	return nil
}

// Load retrieves the session stored under id. Missing, corrupt, and
// unavailable records all surface as ErrNotFound.
func (s *Store) Load(id string) (*Session, error) {
	raw, err := s.kv.Get(id)
	if err != nil {
		return nil, ErrNotFound
	}

	result, err := s.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil || !result.Valid() {
		s.logger.Warn("skipping corrupt session record", "id", id)
		return nil, ErrNotFound
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.logger.Warn("skipping unparsable session record", "id", id)
		return nil, ErrNotFound
	}
	sess.ID = id
	return &sess, nil
}

// ListRecent scans every stored session key and returns index entries sorted
// by the id's embedded timestamp, most recent first. Keys that fail to load
// or parse are skipped; an unavailable collaborator yields an empty list.
func (s *Store) ListRecent() []RecentEntry {
	keys, err := s.kv.Keys()
	if err != nil {
		if !errors.Is(err, kv.ErrUnavailable) {
			s.logger.Warn("failed to scan session keys", "error", err)
		}
		return []RecentEntry{}
	}

	entries := make([]RecentEntry, 0, len(keys))
	for _, key := range keys {
		if !IsSessionKey(key) {
			continue
		}
		sess, err := s.Load(key)
		if err != nil {
			continue // Skip corrupt or vanished records
		}
		entries = append(entries, RecentEntry{
			ID:           key,
			LastMessage:  sess.LastMessage(),
			TimestampKey: TimestampKey(key),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TimestampKey > entries[j].TimestampKey
	})
	return entries
}

// Delete removes the record for id. Deleting an unknown id is not an error.
func (s *Store) Delete(id string) error {
	err := s.kv.Delete(id)
	if errors.Is(err, kv.ErrUnavailable) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.search != nil {
		if err := s.search.Remove(id); err != nil {
			s.logger.Warn("failed to drop session from search index", "id", id, "error", err)
		}
	}
	return nil
}

// Search queries the transcript index. Without an index it returns no hits.
func (s *Store) Search(query string, limit int) ([]SearchHit, error) {
	if s.search == nil {
		return nil, nil
	}
	return s.search.Search(query, limit)
}

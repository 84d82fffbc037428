package session

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// SessionPrefix marks a storage key as holding a session record.
const SessionPrefix = "session-"

// NewSessionID generates an opaque session identifier. The embedded unix
// millisecond component doubles as the recency sort key; the suffix keeps
// ids unique when two sessions start in the same millisecond.
func NewSessionID() string {
	return SessionPrefix + strconv.FormatInt(nowMillis(), 10) + "-" + shortSuffix()
}

// NewMessageID generates an opaque message identifier.
func NewMessageID() string {
	return "msg-" + strconv.FormatInt(nowMillis(), 10) + "-" + shortSuffix()
}

func shortSuffix() string {
	id := uuid.NewString()
	return strings.ReplaceAll(id, "-", "")[:7]
}

// IsSessionKey reports whether key is recognized as a session storage key.
func IsSessionKey(key string) bool {
	return strings.HasPrefix(key, SessionPrefix)
}

// TimestampKey extracts the numeric component embedded in a session id.
// Ids without a parsable component sort as 0 (oldest).
func TimestampKey(id string) int64 {
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return 0
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

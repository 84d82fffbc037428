package session

import (
	"fmt"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry.
// Timestamps are unix milliseconds, matching the persisted record format.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Validate checks the message for a known role and a usable id.
func (m Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant:
		// Valid roles
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	if m.ID == "" {
		return fmt.Errorf("message has no id")
	}
	return nil
}

// Session is a single persisted conversation. The ID is the storage key and
// is not serialized inside the record value.
type Session struct {
	ID        string    `json:"-"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
}

// LastMessage returns the content of the final message, or "" when empty.
func (s *Session) LastMessage() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[len(s.Messages)-1].Content
}

// Append adds a message to the sequence, clamping its timestamp so creation
// times never decrease within a session.
func (s *Session) Append(msg Message) {
	if n := len(s.Messages); n > 0 && msg.Timestamp < s.Messages[n-1].Timestamp {
		msg.Timestamp = s.Messages[n-1].Timestamp
	}
	s.Messages = append(s.Messages, msg)
}

// RecentEntry is one row of the derived recent-conversations index.
// TimestampKey is the numeric component embedded in the session id and is
// used purely for sorting.
type RecentEntry struct {
	ID           string `json:"id"`
	LastMessage  string `json:"lastMessage"`
	TimestampKey int64  `json:"timestampKey"`
}

// Update is a partial update merged into a stored record by Store.Save.
// A nil Messages slice leaves the stored messages untouched.
type Update struct {
	Messages  []Message
	UpdatedAt int64
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Package chat owns the in-memory state of the active conversation: the
// append/edit/truncate operations, the generation phase, and the single-slot
// cancellable response task.
package chat

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"chatshell/internal/generator"
	"chatshell/internal/session"
)

// Phase is the machine's current conversation phase.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseAwaitingReply Phase = "awaiting_reply"
	PhaseEditing       Phase = "editing"
)

var (
	// ErrBusy rejects a fresh send while a reply is still being generated.
	ErrBusy = errors.New("chat: a reply is being generated")
	// ErrEmptyMessage rejects sends whose text trims to nothing.
	ErrEmptyMessage = errors.New("chat: message is empty")
	// ErrInvalidEdit reports an edit targeting a missing or non-user message.
	ErrInvalidEdit = errors.New("chat: message not found or not editable")
	// ErrNotGenerating reports a stop request with no task in flight.
	ErrNotGenerating = errors.New("chat: no generation in progress")
)

// Machine applies conversation operations to the active session. It is the
// sole writer to that session's record; a mutex guards state because task
// completion arrives on the task goroutine.
type Machine struct {
	store    *session.Store
	gen      generator.Generator
	notifier *Notifier
	logger   *slog.Logger

	mu         sync.Mutex
	sess       *session.Session
	phase      Phase
	editingID  string
	editBuffer string
	task       *task
	epoch      uint64
	lastErr    error

	// onChange is invoked (without the lock held) whenever the transcript
	// changes asynchronously: reply appended, generation failed or stopped.
	onChange func()
}

// NewMachine creates a machine holding an empty, unpersisted session.
func NewMachine(store *session.Store, gen generator.Generator, notifier *Notifier, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &Machine{
		store:    store,
		gen:      gen,
		notifier: notifier,
		logger:   logger,
		sess:     &session.Session{},
		phase:    PhaseIdle,
	}
}

// OnChange registers a callback fired after asynchronous transcript changes.
func (m *Machine) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Open points the machine at a conversation. A resolvable sessionID loads
// that session verbatim and enters Idle. Otherwise a non-empty seed creates
// a new session around a single user message and immediately starts
// generation. With neither, the machine holds an empty unpersisted session.
func (m *Machine) Open(sessionID, seed string) error {
	m.mu.Lock()

	m.cancelTaskLocked()
	m.phase = PhaseIdle
	m.editingID = ""
	m.editBuffer = ""
	m.lastErr = nil

	if sessionID != "" {
		if sess, err := m.store.Load(sessionID); err == nil {
			m.sess = sess
			m.mu.Unlock()
			return nil
		}
		// NotFound means start fresh, never fatal
	}

	seed = strings.TrimSpace(seed)
	if seed == "" {
		m.sess = &session.Session{}
		m.mu.Unlock()
		return nil
	}

	msg := session.Message{
		ID:        session.NewMessageID(),
		Role:      session.RoleUser,
		Content:   seed,
		Timestamp: nowMillis(),
	}
	m.sess = m.store.Create([]session.Message{msg})
	m.startGenerationLocked(seed)
	m.mu.Unlock()

	m.notifier.Notify()
	return nil
}

// SendUserMessage appends a user message and starts generating the reply.
// While Editing it is redirected to ApplyEdit.
func (m *Machine) SendUserMessage(text string) error {
	m.mu.Lock()

	if m.phase == PhaseEditing {
		m.mu.Unlock()
		return m.ApplyEdit(text)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		m.mu.Unlock()
		return ErrEmptyMessage
	}
	if m.phase == PhaseAwaitingReply {
		m.mu.Unlock()
		return ErrBusy
	}

	m.lastErr = nil
	msg := session.Message{
		ID:      session.NewMessageID(),
		Role:    session.RoleUser,
		Content: text,
	}
	msg.Timestamp = nowMillis()

	if m.sess.ID == "" {
		m.sess = m.store.Create([]session.Message{msg})
	} else {
		m.sess.Append(msg)
		m.persistLocked()
	}
	m.startGenerationLocked(text)
	m.mu.Unlock()

	m.notifier.Notify()
	return nil
}

// BeginEdit selects an existing user message for revision and returns its
// current content as the pending edit buffer. Targeting a missing or
// assistant message leaves the state unchanged. Entering an edit while a
// reply is in flight stops that generation first.
func (m *Machine) BeginEdit(messageID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var target *session.Message
	for i := range m.sess.Messages {
		if m.sess.Messages[i].ID == messageID {
			target = &m.sess.Messages[i]
			break
		}
	}
	if target == nil || target.Role != session.RoleUser {
		return "", ErrInvalidEdit
	}

	if m.phase == PhaseAwaitingReply {
		m.cancelTaskLocked()
	}
	m.phase = PhaseEditing
	m.editingID = messageID
	m.editBuffer = target.Content
	return target.Content, nil
}

// ApplyEdit commits the pending edit. Blank text abandons the edit and
// returns to Idle with the session untouched. Otherwise the edited message's
// content is replaced and the first assistant message after it, plus
// everything following, is discarded: an edited question invalidates every
// downstream answer. A new generation starts from the edited text.
func (m *Machine) ApplyEdit(newText string) error {
	m.mu.Lock()

	if m.phase != PhaseEditing {
		m.mu.Unlock()
		return ErrInvalidEdit
	}

	editingID := m.editingID
	m.phase = PhaseIdle
	m.editingID = ""
	m.editBuffer = ""

	newText = strings.TrimSpace(newText)
	if newText == "" {
		m.mu.Unlock()
		return nil // editing to blank is abandonment, not deletion
	}

	pos := -1
	for i := range m.sess.Messages {
		if m.sess.Messages[i].ID == editingID {
			pos = i
			break
		}
	}
	if pos == -1 {
		m.mu.Unlock()
		return ErrInvalidEdit
	}

	m.sess.Messages[pos].Content = newText

	for i := pos + 1; i < len(m.sess.Messages); i++ {
		if m.sess.Messages[i].Role == session.RoleAssistant {
			m.sess.Messages = m.sess.Messages[:i]
			break
		}
	}

	m.lastErr = nil
	m.persistLocked()
	m.startGenerationLocked(newText)
	m.mu.Unlock()

	m.notifier.Notify()
	return nil
}

// CancelEdit discards the pending edit buffer and returns to Idle.
func (m *Machine) CancelEdit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseEditing {
		return
	}
	m.phase = PhaseIdle
	m.editingID = ""
	m.editBuffer = ""
}

// StopGeneration cancels the in-flight task without appending a reply.
func (m *Machine) StopGeneration() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseAwaitingReply {
		return ErrNotGenerating
	}
	m.cancelTaskLocked()
	m.phase = PhaseIdle
	return nil
}

// Phase returns the current conversation phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// SessionID returns the active session's id ("" while unpersisted).
func (m *Machine) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.ID
}

// PendingEdit returns the id and buffer of the message being edited.
func (m *Machine) PendingEdit() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editingID, m.editBuffer
}

// LastError returns the most recent generation failure, if any. It is
// cleared by the next successful send or edit.
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Snapshot returns a defensive copy of the live transcript.
func (m *Machine) Snapshot() []session.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]session.Message(nil), m.sess.Messages...)
}

// persistLocked saves the session best-effort. Store failures degrade
// persistence, never the conversation.
func (m *Machine) persistLocked() {
	if m.sess.ID == "" {
		return
	}
	update := session.Update{
		Messages:  append([]session.Message(nil), m.sess.Messages...),
		UpdatedAt: nowMillis(),
	}
	if err := m.store.Save(m.sess.ID, update); err != nil {
		m.logger.Warn("failed to persist session", "id", m.sess.ID, "error", err)
	}
}

func (m *Machine) fireOnChange() {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

package chat

import (
	"context"
	"time"

	"chatshell/internal/session"
)

// task is the single-slot cancellable generation unit. At most one task is
// outstanding per machine; starting a new one cancels the previous one
// first, so no two assistant messages can be appended for the same turn.
type task struct {
	cancel context.CancelFunc
	epoch  uint64
}

// startGenerationLocked arms a new generation task for prompt. The caller
// must hold m.mu. The epoch counter guarantees that a task which lost its
// slot can never append a stale reply after a newer prompt was committed.
func (m *Machine) startGenerationLocked(prompt string) {
	m.cancelTaskLocked()

	ctx, cancel := context.WithCancel(context.Background())
	m.epoch++
	m.task = &task{cancel: cancel, epoch: m.epoch}
	m.phase = PhaseAwaitingReply

	go m.runTask(ctx, m.epoch, prompt)
}

// cancelTaskLocked cancels the outstanding task, if any. The caller must
// hold m.mu. The cancelled task sees a dead context and appends nothing.
func (m *Machine) cancelTaskLocked() {
	if m.task != nil {
		m.task.cancel()
		m.task = nil
	}
}

func (m *Machine) runTask(ctx context.Context, epoch uint64, prompt string) {
	reply, err := m.gen.Generate(ctx, prompt)

	m.mu.Lock()
	// A stale task lost its slot to cancellation or a newer prompt: the
	// conversation must remain exactly as it was.
	if m.task == nil || m.task.epoch != epoch || ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.task.cancel()
	m.task = nil
	m.phase = PhaseIdle

	if err != nil {
		m.lastErr = err
		m.logger.Warn("generation failed", "session", m.sess.ID, "error", err)
		m.mu.Unlock()
		m.fireOnChange()
		return
	}

	m.sess.Append(session.Message{
		ID:        session.NewMessageID(),
		Role:      session.RoleAssistant,
		Content:   reply,
		Timestamp: nowMillis(),
	})
	m.persistLocked()
	m.mu.Unlock()

	m.notifier.Notify()
	m.fireOnChange()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

package chat

import "sync"

// Notifier is a single-slot publish hook: the engine signals "recent
// sessions changed" without knowing who is listening. At most one listener
// is expected (the one listing surface), so registering replaces any prior
// callback.
type Notifier struct {
	mu sync.Mutex
	fn func()
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Register installs the callback, replacing any previous one.
func (n *Notifier) Register(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fn = fn
}

// Unregister clears the callback.
func (n *Notifier) Unregister() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fn = nil
}

// Notify invokes the current callback if one is registered.
func (n *Notifier) Notify() {
	n.mu.Lock()
	fn := n.fn
	n.mu.Unlock()
	if fn != nil {
		fn()
	}
}

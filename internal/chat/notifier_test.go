package chat

import "testing"

func TestNotifierSingleSlot(t *testing.T) {
	n := NewNotifier()

	// Notify with no listener is a no-op
	n.Notify()

	var first, second int
	n.Register(func() { first++ })
	n.Notify()
	if first != 1 {
		t.Errorf("first listener called %d times, want 1", first)
	}

	// Registering replaces the prior callback
	n.Register(func() { second++ })
	n.Notify()
	if first != 1 {
		t.Errorf("replaced listener still invoked: %d calls", first)
	}
	if second != 1 {
		t.Errorf("second listener called %d times, want 1", second)
	}

	n.Unregister()
	n.Notify()
	if second != 1 {
		t.Errorf("unregistered listener invoked: %d calls", second)
	}
}

func TestMachineNotifiesListing(t *testing.T) {
	gen := &scriptedGenerator{gate: make(chan struct{})}
	m, _, changed := newTestMachine(t, gen)

	var notifications int
	m.notifier.Register(func() { notifications++ })

	if err := m.SendUserMessage("hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if notifications != 1 {
		t.Errorf("expected 1 notification after the user message, got %d", notifications)
	}

	close(gen.gate)
	waitChange(t, changed)
	if notifications != 2 {
		t.Errorf("expected a second notification after the reply, got %d", notifications)
	}
}

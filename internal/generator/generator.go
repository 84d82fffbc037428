// Package generator provides the response generator collaborator: given a
// prompt, eventually produce a reply. Implementations must honor context
// cancellation mid-flight.
package generator

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Generator produces an assistant reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DefaultDelay is the simulated thinking time of the canned generator.
const DefaultDelay = 1500 * time.Millisecond

var cannedReplies = []string{
	"Thanks for your message. Could you tell me a bit more about what you're trying to do?",
	"That's a good question. Here's how I would approach it: start small, verify each step, then iterate.",
	"I can help with that. Do you want a quick summary or a detailed walkthrough?",
	"Based on what you've described, there are a couple of options worth considering. Which constraint matters most to you?",
	"Understood. Let me break that down into the key points so it's easier to act on.",
}

// Canned is the shipped mock generator: it waits a fixed delay and returns
// a pseudo-random reply from a fixed pool. It cannot fail, but it can be
// cancelled during the delay.
type Canned struct {
	Delay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCanned creates a canned generator with the default delay.
func NewCanned() *Canned {
	return &Canned{
		Delay: DefaultDelay,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate waits for the configured delay, then returns a canned reply.
// Cancellation during the delay returns ctx.Err().
func (c *Canned) Generate(ctx context.Context, prompt string) (string, error) {
	timer := time.NewTimer(c.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return cannedReplies[c.rng.Intn(len(cannedReplies))], nil
}

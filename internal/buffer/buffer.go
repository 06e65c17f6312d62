// Package buffer holds conversation buffers: one per channel or query
// target, plus the session-wide pseudo-buffer "*".
package buffer

import (
	"strings"
	"sync"

	"ircsess/internal/protocol"
)

// MainPattern is the pattern of the session-wide buffer.
const MainPattern = "*"

// DefaultHistory is the number of messages a Base buffer retains.
const DefaultHistory = 500

// Owner is what a buffer talks back to, normally the session.
type Owner interface {
	SendMessage(m protocol.Message) error
}

// Buffer is a conversation target.
type Buffer interface {
	// Pattern returns the target as given when the buffer was created.
	Pattern() string
	Owner() Owner
	// Receive delivers an inbound message routed to this buffer.
	Receive(m protocol.Message)
}

// Factory constructs a buffer for pattern. Embedders supply their own
// to substitute buffer behaviour.
type Factory func(pattern string, owner Owner) Buffer

// Key normalises a target to its lookup key.
func Key(pattern string) string { return strings.ToLower(pattern) }

// Base is the default buffer. It keeps a bounded history and notifies
// its own listeners of each received message.
type Base struct {
	pattern string
	owner   Owner
	limit   int

	mu        sync.Mutex
	history   []protocol.Message
	listeners []func(protocol.Message)
}

// New is the default Factory.
func New(pattern string, owner Owner) Buffer {
	return NewBase(pattern, owner, DefaultHistory)
}

// NewBase returns a Base retaining at most limit messages.
func NewBase(pattern string, owner Owner, limit int) *Base {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Base{pattern: pattern, owner: owner, limit: limit}
}

func (b *Base) Pattern() string { return b.pattern }
func (b *Base) Owner() Owner    { return b.owner }

// Receive appends m to the history and calls the listeners.
func (b *Base) Receive(m protocol.Message) {
	b.mu.Lock()
	b.history = append(b.history, m)
	if over := len(b.history) - b.limit; over > 0 {
		b.history = append(b.history[:0], b.history[over:]...)
	}
	listeners := b.listeners
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(m)
	}
}

// OnMessage registers fn to be called for every received message.
func (b *Base) OnMessage(fn func(protocol.Message)) {
	b.mu.Lock()
	b.listeners = append(b.listeners[:len(b.listeners):len(b.listeners)], fn)
	b.mu.Unlock()
}

// History returns a copy of the retained messages, oldest first.
func (b *Base) History() []protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.Message(nil), b.history...)
}

// Send delivers a PRIVMSG to this buffer's target through the owner.
func (b *Base) Send(text string) error {
	return b.owner.SendMessage(protocol.Privmsg(b.pattern, text))
}

package session

import (
	"sync"

	"ircsess/internal/buffer"
	"ircsess/internal/protocol"
)

// signal is a list of listeners for one kind of notification.
// Listeners run on the session goroutine, in registration order.
type signal[T any] struct {
	mu    sync.Mutex
	slots []func(T)
}

func (s *signal[T]) connect(fn func(T)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.slots = append(s.slots, fn)
	s.mu.Unlock()
}

func (s *signal[T]) emit(v T) {
	s.mu.Lock()
	slots := s.slots
	s.mu.Unlock()
	for _, fn := range slots {
		fn(v)
	}
}

func thunk(fn func()) func(struct{}) {
	if fn == nil {
		return nil
	}
	return func(struct{}) { fn() }
}

// OnMessage registers fn for every typed inbound message.
func (s *Session) OnMessage(fn func(protocol.Message)) { s.message.connect(fn) }

// OnConnecting registers fn for the start of registration.
func (s *Session) OnConnecting(fn func()) { s.connecting.connect(thunk(fn)) }

// OnConnected registers fn for RPL_WELCOME.
func (s *Session) OnConnected(fn func()) { s.connected.connect(thunk(fn)) }

// OnDisconnected registers fn for loss of the transport connection.
func (s *Session) OnDisconnected(fn func()) { s.disconnected.connect(thunk(fn)) }

// OnError registers fn for transport failures. A failed dial is
// reported only here; a failure on an established connection is
// followed by a disconnect notification.
func (s *Session) OnError(fn func(error)) { s.failure.connect(fn) }

// OnPassword registers fn to supply the server password. It is called
// once per connection with a pointer to fill; leaving it empty skips
// PASS.
func (s *Session) OnPassword(fn func(password *string)) { s.password.connect(fn) }

// OnBufferAdded registers fn for buffers entering the registry.
func (s *Session) OnBufferAdded(fn func(buffer.Buffer)) { s.bufferAdded.connect(fn) }

// OnBufferRemoved registers fn for buffers leaving the registry.
func (s *Session) OnBufferRemoved(fn func(buffer.Buffer)) { s.bufferRemoved.connect(fn) }

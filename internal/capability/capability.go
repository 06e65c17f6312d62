// Package capability defines what the client does with a live
// session: drive it from an interactive console or bridge it to a bot
// program. Capabilities talk to the session through its listeners and
// Do, never by touching its state from their own goroutines.
package capability

import (
	"context"

	ircerr "ircsess/internal/errors"
	"ircsess/internal/session"
)

// ErrQuit is returned by Handle when the user asked to leave. The
// caller should not reconnect.
var ErrQuit = ircerr.New("quit requested")

// Capability drives one session.
type Capability interface {
	// Attach registers listeners. It is called once, before the
	// session starts running.
	Attach(s *session.Session)

	// Handle blocks until the input source is exhausted, the user
	// quits, or ctx is cancelled.
	Handle(ctx context.Context, s *session.Session) error
}

// send writes m from the session goroutine.
func send(ctx context.Context, s *session.Session, fn func() error) error {
	var err error
	if derr := s.Do(ctx, func() { err = fn() }); derr != nil {
		return derr
	}
	return err
}

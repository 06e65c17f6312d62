// Package transport carries the session's byte stream. A Dialer opens
// the underlying connection (plain TCP or through an SSH tunnel); a
// Transport owns one connection at a time and reports what happens to
// it as a stream of Events.
package transport

import (
	"context"
	"fmt"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH client). Stateless dialers return nil.
	Close() error
}

// Transport is the byte-stream handle a session drives.
//
// ConnectToHost returns immediately; the outcome is reported on
// Events. Disconnect drops the current connection but leaves the
// transport reusable, while Close releases it for good.
type Transport interface {
	ConnectToHost(host string, port int)
	Disconnect()
	Write(p []byte) error
	Events() <-chan Event
	State() State
	Close() error
}

// SecureStarter is implemented by transports that can switch the
// connection being established into TLS.
type SecureStarter interface {
	StartSecure() error
}

// State is the connection state of a Transport.
type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind identifies an Event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventError
	EventStateChanged
	EventData
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	case EventStateChanged:
		return "state-changed"
	case EventData:
		return "data"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a notification from a Transport. Only the field matching
// Kind is set.
type Event struct {
	Kind  EventKind
	Data  []byte // EventData; owned by the receiver
	Err   error  // EventError
	State State  // EventStateChanged
}

func (e Event) String() string {
	switch e.Kind {
	case EventData:
		return fmt.Sprintf("data(%d bytes)", len(e.Data))
	case EventError:
		return fmt.Sprintf("error(%v)", e.Err)
	case EventStateChanged:
		return fmt.Sprintf("state(%s)", e.State)
	default:
		return e.Kind.String()
	}
}

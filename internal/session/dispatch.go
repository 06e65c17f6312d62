package session

import (
	"fmt"
	"strings"

	"ircsess/internal/buffer"
	ircerr "ircsess/internal/errors"
	"ircsess/internal/protocol"
	"ircsess/internal/transport"
)

// HandleEvent applies one transport notification.
func (s *Session) HandleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnected:
		s.onTransportConnected()
	case transport.EventDisconnected:
		s.onTransportDisconnected()
	case transport.EventData:
		s.onData(ev.Data)
	case transport.EventError:
		s.metrics.RecordError(ev.Err.Error())
		s.logger.Warn("transport error: %v", ev.Err)
		s.failure.emit(ev.Err)
	case transport.EventStateChanged:
		s.logger.Verbose("transport %s", ev.State)
	}
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.logger.Verbose("%s -> %s", s.state, st)
	s.state = st
}

// onTransportConnected runs the registration handshake.
func (s *Session) onTransportConnected() {
	s.framer.Reset()
	s.setState(StateConnecting)
	s.connecting.emit(struct{}{})

	var password string
	s.password.emit(&password)
	if password != "" {
		s.send(protocol.Pass(password))
	}
	s.send(protocol.Nick(s.nickName))
	s.send(protocol.User(s.userName, s.realName))

	s.main = s.registry.Create(buffer.MainPattern)
}

func (s *Session) onTransportDisconnected() {
	s.setState(StateDisconnected)
	s.disconnected.emit(struct{}{})
}

func (s *Session) onData(p []byte) {
	err := s.framer.Feed(p, s.processLine)
	if ircerr.Is(err, ircerr.ErrFrameOverflow) {
		s.metrics.FrameOverflow()
		s.logger.Warn("discarded %d+ bytes without a line terminator", s.framer.Max)
	}
}

// processLine handles one framed inbound line.
func (s *Session) processLine(raw []byte) {
	line := s.codec.Decode(raw)
	s.trace(line)
	s.metrics.LineReceived()

	p := protocol.Parse(line)
	if p.Command == protocol.CmdPing {
		s.send(protocol.Pong(p.Params.Get(1)))
		return
	}

	m := protocol.Decode(p)
	if m == nil {
		s.metrics.LineDropped()
		s.logger.Debug("unhandled %q", p.Command)
		return
	}

	if n, ok := m.(*protocol.NumericMessage); ok && n.Code == protocol.RplWelcome {
		s.setState(StateRegistered)
		s.metrics.Registered()
		s.connected.emit(struct{}{})
	}

	s.message.emit(m)
	s.metrics.MessageDispatched()
	s.route(m)
}

// route hands m to the buffer it belongs to. Buffers are only looked
// up here, never created; anything without a registered target goes to
// the main buffer.
func (s *Session) route(m protocol.Message) {
	if target, ok := protocol.TargetOf(m); ok {
		// a private message to us belongs to the sender's query
		if strings.EqualFold(target, s.nickName) {
			if nick := m.Sender().Nick(); nick != "" {
				target = nick
			}
		}
		if b, ok := s.registry.Lookup(target); ok {
			b.Receive(m)
			return
		}
	}
	if s.main != nil {
		s.main.Receive(m)
	}
}

// SendMessage serialises m and writes it to the transport. A message
// whose parameters cannot form a single line is refused unsent.
func (s *Session) SendMessage(m protocol.Message) error {
	if err := protocol.CheckParams(m.Params()); err != nil {
		return fmt.Errorf("%s: %w", m.Command(), err)
	}
	return s.Raw(m.String())
}

// Raw writes a pre-formatted line. The terminator is appended; a line
// already holding CR, LF or NUL is refused.
func (s *Session) Raw(line string) error {
	if err := protocol.CheckLine(line); err != nil {
		return err
	}
	if s.transport == nil {
		return ircerr.ErrNoTransport
	}
	s.logger.Debug(">> %s", line)
	if err := s.transport.Write(s.codec.Encode(line + "\r\n")); err != nil {
		s.metrics.RecordError(err.Error())
		return err
	}
	s.metrics.LineSent()
	return nil
}

// send is SendMessage for the session's own traffic, where a failure
// is only worth a log line.
func (s *Session) send(m protocol.Message) {
	if err := s.SendMessage(m); err != nil {
		s.logger.Warn("send %s: %v", m.Command(), err)
	}
}

// ── buffers ──────────────────────────────────────────────────────────

// AddBuffer returns the buffer for target, creating it on first use.
func (s *Session) AddBuffer(target string) buffer.Buffer { return s.registry.Add(target) }

// RemoveBuffer unregisters b if it is the live buffer for its target.
func (s *Session) RemoveBuffer(b buffer.Buffer) bool { return s.registry.Remove(b) }

// Buffer returns the registered buffer for target.
func (s *Session) Buffer(target string) (buffer.Buffer, bool) { return s.registry.Lookup(target) }

// Buffers returns all registered buffers.
func (s *Session) Buffers() []buffer.Buffer { return s.registry.Buffers() }

// MainBuffer returns the session-wide buffer of the current
// connection, or nil before the first connection.
func (s *Session) MainBuffer() buffer.Buffer { return s.main }

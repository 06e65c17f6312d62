// Package session drives one IRC connection: it feeds transport bytes
// through the framer and parser, runs the registration handshake,
// tracks registration state and conversation buffers, and notifies
// listeners of what arrives.
//
// A Session is an actor. Run is the only goroutine that touches its
// state; other goroutines hand it work with Do. Before Run starts, or
// in tests, the methods may be called directly from one goroutine and
// transport events fed in with HandleEvent.
package session

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/google/uuid"

	"ircsess/internal/buffer"
	ircerr "ircsess/internal/errors"
	"ircsess/internal/metrics"
	"ircsess/internal/protocol"
	"ircsess/internal/transport"
	"ircsess/util"
)

// DefaultPort is the port used when none has been set.
const DefaultPort = 6667

// Options configures a Session. The zero value is usable.
type Options struct {
	// Encoding names the wire charset; empty selects auto-detection.
	Encoding string

	// MaxFrame caps the undelimited remainder kept between reads.
	// Zero means protocol.DefaultMaxFrame; negative disables the cap.
	MaxFrame int

	// Factory builds conversation buffers. Nil means buffer.New.
	Factory buffer.Factory

	// Trace receives every inbound line before it is classified.
	// Nil logs the line at debug level.
	Trace func(line string)

	// Dialer and TLS shape the transport the session creates for
	// itself. A nil Dialer dials plain TCP; a non-nil TLS makes the
	// transport secure-capable.
	Dialer      transport.Dialer
	TLS         *tls.Config
	DialTimeout time.Duration

	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Session is one IRC client connection.
type Session struct {
	id string

	host     string
	port     int
	userName string
	nickName string
	realName string

	codec   *protocol.Codec
	framer  *protocol.Framer
	trace   func(string)
	logger  *util.Logger
	metrics *metrics.Collector

	transport transport.Transport
	owned     bool

	state    State
	registry *buffer.Registry
	main     buffer.Buffer

	calls chan func()
	down  bool

	message       signal[protocol.Message]
	connecting    signal[struct{}]
	connected     signal[struct{}]
	disconnected  signal[struct{}]
	failure       signal[error]
	password      signal[*string]
	bufferAdded   signal[buffer.Buffer]
	bufferRemoved signal[buffer.Buffer]
}

// New returns an idle session with a transport of its own.
func New(opts Options) (*Session, error) {
	codec, err := protocol.NewCodec(opts.Encoding)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(int(util.LogNormal))
	}

	max := opts.MaxFrame
	switch {
	case max == 0:
		max = protocol.DefaultMaxFrame
	case max < 0:
		max = 0
	}

	id := uuid.NewString()
	s := &Session{
		id:      id,
		port:    DefaultPort,
		codec:   codec,
		framer:  protocol.NewFramer(max),
		trace:   opts.Trace,
		logger:  logger.Named("session " + id[:8]),
		metrics: opts.Metrics,
		calls:   make(chan func()),
	}
	if s.trace == nil {
		s.trace = func(line string) { s.logger.Debug("<< %s", line) }
	}

	s.registry = buffer.NewRegistry(opts.Factory, s)
	s.registry.Added = s.bufferAdded.emit
	s.registry.Removed = s.bufferRemoved.emit

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &transport.TCPDialer{Timeout: opts.DialTimeout}
	}
	if opts.TLS != nil {
		s.transport = transport.NewSecureConn(dialer, opts.DialTimeout, opts.TLS, logger, opts.Metrics)
	} else {
		s.transport = transport.NewConn(dialer, opts.DialTimeout, logger, opts.Metrics)
	}
	s.owned = true
	return s, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// State returns the registration state.
func (s *Session) State() State { return s.state }

// Transport returns the attached transport, or nil.
func (s *Session) Transport() transport.Transport { return s.transport }

// SetTransport attaches t. A transport the session created itself is
// closed; one supplied by the caller is only detached.
func (s *Session) SetTransport(t transport.Transport) {
	if t == s.transport {
		return
	}
	if old := s.transport; old != nil {
		if s.owned {
			if err := old.Close(); err != nil {
				s.logger.Warn("closing previous transport: %v", err)
			}
		}
	}
	s.transport = t
	s.owned = false
	s.framer.Reset()
}

// ── identity and connection parameters ───────────────────────────────

func (s *Session) Host() string     { return s.host }
func (s *Session) Port() int        { return s.port }
func (s *Session) UserName() string { return s.userName }
func (s *Session) NickName() string { return s.nickName }
func (s *Session) RealName() string { return s.realName }

// Encoding returns the codec's charset name, "" for auto-detection.
func (s *Session) Encoding() string { return s.codec.Name() }

func (s *Session) SetHost(host string) {
	s.warnIfConnected("SetHost")
	s.host = host
}

func (s *Session) SetPort(port int) {
	s.warnIfConnected("SetPort")
	s.port = port
}

func (s *Session) SetUserName(name string) {
	s.warnIfConnected("SetUserName")
	s.userName = name
}

func (s *Session) SetNickName(name string) {
	s.warnIfConnected("SetNickName")
	s.nickName = name
}

func (s *Session) SetRealName(name string) {
	s.warnIfConnected("SetRealName")
	s.realName = name
}

// SetEncoding switches the wire charset. It takes effect on the next
// line read or written.
func (s *Session) SetEncoding(name string) error {
	c, err := protocol.NewCodec(name)
	if err != nil {
		return err
	}
	s.codec = c
	return nil
}

func (s *Session) warnIfConnected(op string) {
	if s.isConnected() {
		s.logger.Warn("%s has no effect until re-connect", op)
	}
}

func (s *Session) isConnected() bool {
	if s.transport == nil {
		return false
	}
	st := s.transport.State()
	return st == transport.StateConnecting || st == transport.StateConnected
}

// ── lifecycle ────────────────────────────────────────────────────────

// Open connects to the configured host. User, nick and real name must
// all be set; otherwise Open returns a *errors.PreconditionError and
// does nothing.
func (s *Session) Open() error {
	for _, f := range []struct{ name, value string }{
		{"userName", s.userName},
		{"nickName", s.nickName},
		{"realName", s.realName},
	} {
		if f.value == "" {
			err := ircerr.Precondition("open", f.name)
			s.logger.Error("%v", err)
			return err
		}
	}
	return s.connect()
}

// Reconnect reissues the connection to the configured host.
func (s *Session) Reconnect() error {
	s.metrics.Reconnect()
	return s.connect()
}

func (s *Session) connect() error {
	if s.down {
		return ircerr.ErrSessionShutdown
	}
	if s.transport == nil {
		return ircerr.ErrNoTransport
	}
	s.logger.Verbose("connecting to %s", util.FormatAddr(s.host, s.port))
	s.transport.ConnectToHost(s.host, s.port)
	if ss, ok := s.transport.(transport.SecureStarter); ok {
		if err := ss.StartSecure(); err != nil {
			s.logger.Warn("start secure: %v", err)
		}
	}
	return nil
}

// Close disconnects from the host. The session can be opened again.
func (s *Session) Close() {
	if s.transport != nil {
		s.transport.Disconnect()
	}
}

// Shutdown disconnects and releases an owned transport. The session
// cannot be reopened.
func (s *Session) Shutdown() error {
	if s.down {
		return nil
	}
	s.down = true
	t := s.transport
	s.transport = nil
	if t == nil {
		return nil
	}
	if s.owned {
		return t.Close()
	}
	t.Disconnect()
	return nil
}

// ── actor plumbing ───────────────────────────────────────────────────

// Run processes transport events and calls submitted with Do until ctx
// is done.
func (s *Session) Run(ctx context.Context) error {
	for {
		var events <-chan transport.Event
		if s.transport != nil {
			events = s.transport.Events()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.calls:
			fn()
		case ev := <-events:
			s.HandleEvent(ev)
		}
	}
}

// Do runs fn on the session goroutine and waits for it. It must not be
// called from a listener, which already runs there.
func (s *Session) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case s.calls <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package transport

import (
	"context"
	"net"
	"sync"
	"time"

	ircerr "ircsess/internal/errors"
	"ircsess/internal/metrics"
	"ircsess/util"
)

// DefaultEventBuffer is the capacity of a Conn's event channel.
const DefaultEventBuffer = 64

// Conn is a Transport over any Dialer.
//
// Events are queued and forwarded to the channel by a single pump
// goroutine, so emitting never blocks the caller and the order in which
// events were queued is the order in which they are received. Events
// belonging to a superseded connection attempt are discarded.
type Conn struct {
	dialer  Dialer
	logger  *util.Logger
	metrics *metrics.Collector
	timeout time.Duration

	// upgrade, when set, runs on the freshly dialled connection before
	// Connected is reported. SecureConn uses it for the TLS handshake.
	upgrade func(ctx context.Context, a *attempt, raw net.Conn) (net.Conn, error)

	events chan Event
	wake   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	queue   []Event
	state   State
	current *attempt
	closed  bool
}

// attempt is one ConnectToHost call and the connection it produced.
type attempt struct {
	host   string
	port   int
	ctx    context.Context
	cancel context.CancelFunc
	conn   net.Conn

	secure chan struct{} // closed by StartSecure
	once   sync.Once
}

func (a *attempt) addr() string { return util.FormatAddr(a.host, a.port) }

// NewConn returns an unconnected transport dialling through d.
func NewConn(d Dialer, timeout time.Duration, logger *util.Logger, m *metrics.Collector) *Conn {
	c := &Conn{
		dialer:  d,
		logger:  logger,
		metrics: m,
		timeout: timeout,
		events:  make(chan Event, DefaultEventBuffer),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go c.pump()
	return c
}

// Events returns the notification channel. It is never closed.
func (c *Conn) Events() <-chan Event { return c.events }

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectToHost starts connecting to host:port. A current connection
// is dropped first and its Disconnected reported immediately.
func (c *Conn) ConnectToHost(host string, port int) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{host: host, port: port, ctx: ctx, cancel: cancel, secure: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return
	}
	old := c.current
	if old != nil && c.state == StateConnected {
		c.pushLocked(Event{Kind: EventDisconnected})
	}
	c.current = a
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	if old != nil {
		c.release(old)
	}
	go c.run(a)
}

// Disconnect closes the current connection, if any. Disconnected is
// reported once the read loop has stopped.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	a := c.current
	if a == nil {
		c.mu.Unlock()
		return
	}
	if c.state == StateConnecting {
		// nothing was reported as connected; forget the attempt
		c.current = nil
		c.setStateLocked(StateUnconnected)
	} else {
		c.setStateLocked(StateClosing)
	}
	c.mu.Unlock()
	c.release(a)
}

func (c *Conn) release(a *attempt) {
	a.cancel()
	c.mu.Lock()
	conn := a.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close() //nolint:errcheck
	}
}

// Write sends p on the current connection.
func (c *Conn) Write(p []byte) error {
	c.mu.Lock()
	var conn net.Conn
	var addr string
	if c.current != nil && c.state == StateConnected {
		conn = c.current.conn
		addr = c.current.addr()
	}
	c.mu.Unlock()

	if conn == nil {
		return ircerr.ErrNotConnected
	}
	n, err := conn.Write(p)
	c.metrics.BytesSent(int64(n))
	if err != nil {
		return ircerr.Wrap("write", addr, err)
	}
	return nil
}

// Close drops the connection and releases the dialer. The Conn cannot
// be reused afterwards.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	a := c.current
	c.current = nil
	c.state = StateUnconnected
	c.mu.Unlock()

	if a != nil {
		c.release(a)
	}
	close(c.done)
	return c.dialer.Close()
}

func (c *Conn) run(a *attempt) {
	addr := a.addr()
	c.logger.Verbose("connecting to %s", addr)

	dialCtx, cancel := a.ctx, context.CancelFunc(func() {})
	if c.timeout > 0 {
		dialCtx, cancel = context.WithTimeout(a.ctx, c.timeout)
	}
	conn, err := c.dialer.Dial(dialCtx, "tcp", addr)
	if err == nil && c.upgrade != nil {
		conn, err = c.upgrade(dialCtx, a, conn)
	}
	cancel()

	if err != nil {
		if a.ctx.Err() == nil {
			c.metrics.RecordError(err.Error())
			c.emit(a, Event{Kind: EventError, Err: ircerr.Wrap("dial", addr, err)})
		}
		c.finish(a, false)
		return
	}

	c.mu.Lock()
	if c.current != a {
		c.mu.Unlock()
		conn.Close() //nolint:errcheck
		return
	}
	a.conn = conn
	c.setStateLocked(StateConnected)
	c.pushLocked(Event{Kind: EventConnected})
	c.mu.Unlock()

	c.metrics.ConnectionOpened()
	c.logger.Verbose("connected to %s", addr)

	c.readLoop(a, conn)

	conn.Close() //nolint:errcheck
	c.metrics.ConnectionClosed()
	c.finish(a, true)
}

// finish moves a still-current attempt to Unconnected.
func (c *Conn) finish(a *attempt, wasConnected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != a {
		return
	}
	c.setStateLocked(StateUnconnected)
	if wasConnected {
		c.pushLocked(Event{Kind: EventDisconnected})
	}
}

func (c *Conn) readLoop(a *attempt, conn net.Conn) {
	bp := util.GetBuf()
	defer util.PutBuf(bp)
	buf := *bp

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.metrics.BytesReceived(int64(n))
			data := make([]byte, n)
			copy(data, buf[:n])
			c.emit(a, Event{Kind: EventData, Data: data})
		}
		if err != nil {
			if !util.IsHarmless(err) && a.ctx.Err() == nil {
				c.metrics.RecordError(err.Error())
				c.emit(a, Event{Kind: EventError, Err: ircerr.Wrap("read", a.addr(), err)})
			}
			return
		}
	}
}

// emit queues ev if a is still the current attempt.
func (c *Conn) emit(a *attempt, ev Event) {
	c.mu.Lock()
	if c.current == a {
		c.pushLocked(ev)
	}
	c.mu.Unlock()
}

func (c *Conn) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.pushLocked(Event{Kind: EventStateChanged, State: s})
}

func (c *Conn) pushLocked(ev Event) {
	if c.closed {
		return
	}
	c.queue = append(c.queue, ev)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pump forwards queued events to the channel until Close.
func (c *Conn) pump() {
	for {
		select {
		case <-c.wake:
		case <-c.done:
			return
		}
		c.mu.Lock()
		batch := c.queue
		c.queue = nil
		c.mu.Unlock()

		for _, ev := range batch {
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		}
	}
}

package core

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ircsess/config"
	"ircsess/internal/capability"
	ircerr "ircsess/internal/errors"
	"ircsess/internal/metrics"
	"ircsess/internal/retry"
	"ircsess/internal/session"
	"ircsess/internal/transport"
	"ircsess/util"
)

// ── fake server ──────────────────────────────────────────────────────

type ircd struct {
	ln    net.Listener
	lines chan string
	conns atomic.Int32
}

type serverConn struct {
	net.Conn
	r     *bufio.Reader
	lines chan<- string
}

func (c *serverConn) readLine() (string, bool) {
	l, err := c.r.ReadString('\n')
	if err != nil {
		return "", false
	}
	l = strings.TrimRight(l, "\r\n")
	c.lines <- l
	return l, true
}

func (c *serverConn) send(line string) {
	io.WriteString(c, line+"\r\n") //nolint:errcheck
}

// register answers the client's USER with RPL_WELCOME.
func (c *serverConn) register() bool {
	for {
		l, ok := c.readLine()
		if !ok {
			return false
		}
		if strings.HasPrefix(l, "USER ") {
			c.send(":irc.test 001 gopher :Welcome to the test network")
			return true
		}
	}
}

// untilQuit reads until the client says QUIT or hangs up.
func (c *serverConn) untilQuit() {
	for {
		l, ok := c.readLine()
		if !ok || strings.HasPrefix(l, "QUIT") {
			return
		}
	}
}

// startIRCd serves each accepted connection with handle; n counts
// connections from 1. The connection is closed when handle returns.
func startIRCd(t *testing.T, handle func(n int, c *serverConn)) *ircd {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	d := &ircd{ln: ln, lines: make(chan string, 256)}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			n := int(d.conns.Add(1))
			go func() {
				defer conn.Close()
				handle(n, &serverConn{Conn: conn, r: bufio.NewReader(conn), lines: d.lines})
			}()
		}
	}()
	return d
}

func (d *ircd) port() int {
	_, p, _ := net.SplitHostPort(d.ln.Addr().String())
	port, _ := strconv.Atoi(p)
	return port
}

// expect waits for a line from the client starting with prefix.
func (d *ircd) expect(t *testing.T, prefix string) string {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case l := <-d.lines:
			if strings.HasPrefix(l, prefix) {
				return l
			}
		case <-timeout:
			t.Fatalf("server never saw %q", prefix)
			return ""
		}
	}
}

// ── client harness ───────────────────────────────────────────────────

// holdCap keeps the client running until release delivers its result
// or the context is cancelled.
type holdCap struct {
	release    chan error
	registered chan struct{}
}

func newHoldCap() *holdCap {
	return &holdCap{release: make(chan error, 1), registered: make(chan struct{}, 4)}
}

func (h *holdCap) Attach(s *session.Session) {
	s.OnConnected(func() { h.registered <- struct{}{} })
}

func (h *holdCap) Handle(ctx context.Context, _ *session.Session) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-h.release:
		return err
	}
}

func newClient(port int, c capability.Capability) *ClientMode {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.Nick = "gopher"
	cfg.User = "gopher"
	cfg.RealName = "Go Pher"
	cfg.Timeout = 2 * time.Second
	return &ClientMode{
		Config:     cfg,
		Dialer:     &transport.TCPDialer{Timeout: 2 * time.Second},
		Capability: c,
		Metrics:    metrics.New(),
		Logger:     util.NewLogger(0),
		Grace:      time.Second,
	}
}

func fastBackoff(attempts int) *retry.Backoff {
	return &retry.Backoff{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		MaxAttempts:  attempts,
	}
}

func runClient(ctx context.Context, m *ClientMode) <-chan error {
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

// ── tests ────────────────────────────────────────────────────────────

func TestClient_RegistersJoinsAndQuits(t *testing.T) {
	d := startIRCd(t, func(_ int, c *serverConn) {
		if c.register() {
			c.untilQuit()
		}
	})
	hold := newHoldCap()
	m := newClient(d.port(), hold)
	m.Config.Join = []string{"#go", "#ircsess"}
	m.QuitMessage = "bye"

	done := runClient(context.Background(), m)

	if got := d.expect(t, "NICK"); got != "NICK gopher" {
		t.Errorf("nick line = %q", got)
	}
	if got := d.expect(t, "USER"); !strings.HasSuffix(got, ":Go Pher") {
		t.Errorf("user line = %q", got)
	}
	d.expect(t, "JOIN #go")
	d.expect(t, "JOIN #ircsess")

	hold.release <- capability.ErrQuit
	if got := d.expect(t, "QUIT"); got != "QUIT bye" {
		t.Errorf("quit line = %q", got)
	}
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run = %v", err)
	}
	if m.Metrics.Snapshot().RegisteredAt == "" {
		t.Errorf("metrics = %s", m.Metrics.JSON())
	}
}

func TestClient_SendsPassword(t *testing.T) {
	d := startIRCd(t, func(_ int, c *serverConn) {
		if c.register() {
			c.untilQuit()
		}
	})
	hold := newHoldCap()
	m := newClient(d.port(), hold)
	m.Config.Password = "s3cret"

	done := runClient(context.Background(), m)
	if got := d.expect(t, "PASS"); got != "PASS s3cret" {
		t.Errorf("pass line = %q", got)
	}
	d.expect(t, "NICK")
	hold.release <- nil
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run = %v", err)
	}
}

func TestClient_CancelSendsQuit(t *testing.T) {
	d := startIRCd(t, func(_ int, c *serverConn) {
		if c.register() {
			c.untilQuit()
		}
	})
	hold := newHoldCap()
	m := newClient(d.port(), hold)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runClient(ctx, m)

	select {
	case <-hold.registered:
	case <-time.After(5 * time.Second):
		t.Fatal("never registered")
	}
	cancel()

	d.expect(t, "QUIT")
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run = %v", err)
	}
}

func TestClient_PasswordRejectedIsFatal(t *testing.T) {
	d := startIRCd(t, func(_ int, c *serverConn) {
		for {
			l, ok := c.readLine()
			if !ok {
				return
			}
			if strings.HasPrefix(l, "USER ") {
				c.send(":irc.test 464 * :Password incorrect")
				c.send("ERROR :Closing link")
				return
			}
		}
	})
	m := newClient(d.port(), newHoldCap())
	m.Config.Password = "wrong"
	m.Backoff = fastBackoff(5)

	err := waitRun(t, runClient(context.Background(), m))
	if !ircerr.Is(err, ircerr.ErrAuthFailed) {
		t.Fatalf("Run = %v, want ErrAuthFailed", err)
	}
	if n := d.conns.Load(); n != 1 {
		t.Errorf("connections = %d, want 1", n)
	}
}

func TestClient_NickInUseIsFatal(t *testing.T) {
	d := startIRCd(t, func(_ int, c *serverConn) {
		for {
			l, ok := c.readLine()
			if !ok {
				return
			}
			if strings.HasPrefix(l, "USER ") {
				c.send(":irc.test 433 * gopher :Nickname is already in use")
				c.untilQuit()
				return
			}
		}
	})
	m := newClient(d.port(), newHoldCap())
	m.Backoff = fastBackoff(5)

	err := waitRun(t, runClient(context.Background(), m))
	if !ircerr.Is(err, ircerr.ErrNickInUse) {
		t.Fatalf("Run = %v, want ErrNickInUse", err)
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	d := startIRCd(t, func(n int, c *serverConn) {
		if !c.register() {
			return
		}
		if n == 1 {
			// netsplit once the client has joined
			for {
				l, ok := c.readLine()
				if !ok || strings.HasPrefix(l, "JOIN") {
					return
				}
			}
		}
		c.untilQuit()
	})
	hold := newHoldCap()
	m := newClient(d.port(), hold)
	m.Config.Join = []string{"#go"}
	m.Backoff = fastBackoff(2)
	m.Breaker = retry.NewCircuitBreaker(nil)

	done := runClient(context.Background(), m)

	for i := 0; i < 2; i++ {
		select {
		case <-hold.registered:
		case <-time.After(5 * time.Second):
			t.Fatalf("registration %d never happened", i+1)
		}
	}
	d.expect(t, "JOIN #go")
	d.expect(t, "JOIN #go")

	hold.release <- nil
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run = %v", err)
	}
	if got := m.Metrics.Reconnects(); got != 1 {
		t.Errorf("reconnects = %d, want 1", got)
	}
	if m.Breaker.CurrentState() != retry.StateClosed {
		t.Errorf("breaker = %s", m.Breaker.CurrentState())
	}
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	d := startIRCd(t, func(int, *serverConn) {})
	m := newClient(d.port(), newHoldCap())
	m.Backoff = fastBackoff(2)

	err := waitRun(t, runClient(context.Background(), m))
	if err == nil {
		t.Fatal("Run succeeded against a server that hangs up")
	}
	if !strings.Contains(err.Error(), "max retries (2)") {
		t.Errorf("Run = %v", err)
	}
	if n := d.conns.Load(); n != 2 {
		t.Errorf("connections = %d, want 2", n)
	}
}

func TestClient_RegistrationTimeout(t *testing.T) {
	d := startIRCd(t, func(_ int, c *serverConn) {
		c.untilQuit() // never welcomes
	})
	m := newClient(d.port(), newHoldCap())
	m.RegisterTimeout = 100 * time.Millisecond

	err := waitRun(t, runClient(context.Background(), m))
	if !ircerr.Is(err, ircerr.ErrTimeout) {
		t.Fatalf("Run = %v, want ErrTimeout", err)
	}
}

func TestClient_DialFailureWithoutReconnect(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	m := newClient(port, newHoldCap())

	err = waitRun(t, runClient(context.Background(), m))
	var ne *ircerr.NetworkError
	if !ircerr.As(err, &ne) {
		t.Fatalf("Run = %v, want a network error", err)
	}
}

func TestClient_CapabilityErrorReturned(t *testing.T) {
	d := startIRCd(t, func(_ int, c *serverConn) {
		if c.register() {
			c.untilQuit()
		}
	})
	hold := newHoldCap()
	m := newClient(d.port(), hold)

	done := runClient(context.Background(), m)
	<-hold.registered
	boom := ircerr.New("bot crashed")
	hold.release <- boom

	if err := waitRun(t, done); !ircerr.Is(err, boom) {
		t.Errorf("Run = %v, want %v", err, boom)
	}
}

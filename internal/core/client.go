package core

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"ircsess/config"
	"ircsess/internal/capability"
	ircerr "ircsess/internal/errors"
	"ircsess/internal/metrics"
	"ircsess/internal/protocol"
	"ircsess/internal/retry"
	"ircsess/internal/session"
	"ircsess/internal/transport"
	"ircsess/util"
)

// errFinished reports that the capability returned without an error,
// e.g. on end of input.
var errFinished = errors.New("input finished")

// ClientMode connects a session to one IRC server and hands it to a
// capability until the capability finishes or ctx is cancelled.
type ClientMode struct {
	Config     *config.Config
	Dialer     transport.Dialer
	TLS        *tls.Config
	Capability capability.Capability

	// Backoff paces reconnects; nil makes a single attempt.
	Backoff *retry.Backoff
	// Breaker, if set, stops reconnecting to a server that keeps
	// failing before registration.
	Breaker *retry.CircuitBreaker

	Metrics *metrics.Collector
	Logger  *util.Logger

	// RegisterTimeout bounds the wait for RPL_WELCOME on each
	// connection.
	RegisterTimeout time.Duration

	// Grace bounds how long shutdown waits for the server to close the
	// connection after QUIT.
	Grace time.Duration
	// QuitMessage is the reason sent with QUIT.
	QuitMessage string
}

// signals carries session notifications to the connect loop. Sends
// never block the session goroutine.
type signals struct {
	registered chan struct{}
	lost       chan struct{}
	failed     chan error
}

func newSignals() *signals {
	return &signals{
		registered: make(chan struct{}, 1),
		lost:       make(chan struct{}, 1),
		failed:     make(chan error, 1),
	}
}

func (sig *signals) drain() {
	for {
		select {
		case <-sig.registered:
		case <-sig.lost:
		case <-sig.failed:
		default:
			return
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func report(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// capResult holds the capability's outcome; err is valid once done is
// closed.
type capResult struct {
	done chan struct{}
	err  error
}

// Run connects, keeps the connection up as configured, and tears it
// down with QUIT when the capability finishes or ctx is cancelled.
func (m *ClientMode) Run(ctx context.Context) error {
	cfg := m.Config
	s, err := session.New(session.Options{
		Encoding:    cfg.Encoding,
		MaxFrame:    cfg.MaxFrame,
		Dialer:      m.Dialer,
		TLS:         m.TLS,
		DialTimeout: cfg.Timeout,
		Logger:      m.Logger,
		Metrics:     m.Metrics,
	})
	if err != nil {
		return err
	}
	s.SetHost(cfg.Host)
	s.SetPort(cfg.Port)
	s.SetUserName(cfg.User)
	s.SetNickName(cfg.Nick)
	s.SetRealName(cfg.RealName)

	sig := newSignals()
	m.watch(s, sig)
	m.Capability.Attach(s)

	// The session outlives ctx long enough to send QUIT.
	sessCtx, stopSession := context.WithCancel(context.Background())
	defer stopSession()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		s.Run(sessCtx) //nolint:errcheck
	}()

	capCtx, stopCap := context.WithCancel(ctx)
	defer stopCap()
	res := &capResult{done: make(chan struct{})}
	go func() {
		defer close(res.done)
		res.err = m.Capability.Handle(capCtx, s)
	}()

	err = m.connectLoop(ctx, s, sig, res)

	stopCap()
	m.shutdown(s, sig)
	select {
	case <-res.done:
	case <-time.After(m.grace()):
		// a console blocked reading the terminal never returns
	}
	stopSession()
	<-runDone

	if m.Logger.Enabled(util.LogVerbose) {
		m.Logger.Verbose("metrics: %s", m.Metrics.JSON())
	}

	switch {
	case err == nil, ircerr.Is(err, errFinished), ircerr.Is(err, capability.ErrQuit):
		return nil
	case ctx.Err() != nil:
		return nil
	}
	return err
}

// watch registers the listeners the connect loop depends on. They run
// on the session goroutine.
func (m *ClientMode) watch(s *session.Session, sig *signals) {
	cfg := m.Config
	up := false

	s.OnPassword(func(p *string) { *p = cfg.Password })
	s.OnConnecting(func() { up = true })
	s.OnConnected(func() {
		notify(sig.registered)
		for _, ch := range cfg.Join {
			if err := s.SendMessage(protocol.Join(ch)); err != nil {
				m.Logger.Warn("join %s: %v", ch, err)
			}
		}
	})
	s.OnDisconnected(func() {
		up = false
		notify(sig.lost)
	})
	s.OnError(func(err error) {
		// established connections report loss through OnDisconnected
		if !up {
			report(sig.failed, err)
		}
	})
	s.OnMessage(func(msg protocol.Message) {
		n, ok := msg.(*protocol.NumericMessage)
		if !ok || s.State() == session.StateRegistered {
			return
		}
		var text string
		if len(n.Args) > 0 {
			text = n.Args[len(n.Args)-1]
		}
		if err := ircerr.Fatal(n.Code, text); err != nil {
			report(sig.failed, retry.Permanent(err))
		}
	})
}

// connectLoop makes the first attempt and, with a Backoff, reconnects
// until something permanent happens.
func (m *ClientMode) connectLoop(ctx context.Context, s *session.Session, sig *signals, res *capResult) error {
	tries := 0
	attempt := func(int) error {
		tries++
		var err error
		gerr := m.guard(func() error {
			err = m.connectOnce(ctx, s, sig, res, tries == 1)
			var progress *retry.ProgressError
			if err == nil || retry.IsPermanent(err) || ircerr.As(err, &progress) {
				return nil
			}
			return err
		})
		if ircerr.Is(gerr, ircerr.ErrCircuitOpen) {
			return gerr
		}
		return err
	}

	if m.Backoff == nil {
		err := attempt(1)
		var pe *retry.PermanentError
		if ircerr.As(err, &pe) {
			return pe.Err
		}
		if ircerr.IsRetryable(err) {
			return fmt.Errorf("%w (temporary; --reconnect retries)", err)
		}
		return err
	}
	return m.Backoff.Do(ctx, attempt)
}

func (m *ClientMode) guard(fn func() error) error {
	if m.Breaker == nil {
		return fn()
	}
	return m.Breaker.Execute(fn)
}

// connectOnce opens the connection and blocks until it is lost, fails,
// or the client is done with it.
func (m *ClientMode) connectOnce(ctx context.Context, s *session.Session, sig *signals, res *capResult, first bool) error {
	sig.drain()
	addr := util.FormatAddr(m.Config.Host, m.Config.Port)

	var openErr error
	err := s.Do(ctx, func() {
		if first {
			openErr = s.Open()
		} else {
			openErr = s.Reconnect()
		}
	})
	if err != nil {
		return retry.Permanent(err)
	}
	if openErr != nil {
		if ircerr.IsPrecondition(openErr) {
			return retry.Permanent(fmt.Errorf("cannot connect: %w", openErr))
		}
		return retry.Permanent(openErr)
	}

	wait := m.registerTimeout()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	deadline := timer.C

	registered := false
	for {
		select {
		case <-sig.registered:
			registered = true
			timer.Stop()
			deadline = nil
			m.Logger.Verbose("registered with %s", addr)

		case <-deadline:
			if err := s.Do(ctx, s.Close); err != nil {
				return retry.Permanent(err)
			}
			return fmt.Errorf("%w: %s sent no welcome within %s", ircerr.ErrTimeout, addr, wait)

		case <-sig.lost:
			// a fatal numeric arrives before the server hangs up
			select {
			case err := <-sig.failed:
				return err
			default:
			}
			if registered {
				return retry.Progressed(fmt.Errorf("connection to %s lost", addr))
			}
			return fmt.Errorf("connection to %s closed before registration", addr)

		case err := <-sig.failed:
			return err

		case <-res.done:
			if res.err == nil {
				return retry.Permanent(errFinished)
			}
			return retry.Permanent(res.err)

		case <-ctx.Done():
			return retry.Permanent(ctx.Err())
		}
	}
}

// shutdown says QUIT to a registered server, waits briefly for it to
// hang up, and releases the transport.
func (m *ClientMode) shutdown(s *session.Session, sig *signals) {
	ctx, cancel := context.WithTimeout(context.Background(), m.grace())
	defer cancel()

	quit := false
	err := s.Do(ctx, func() {
		if s.State() != session.StateRegistered {
			return
		}
		if err := s.SendMessage(protocol.Quit(m.QuitMessage)); err != nil {
			m.Logger.Debug("quit: %v", err)
			return
		}
		quit = true
	})
	if err == nil && quit {
		select {
		case <-sig.lost:
		case <-ctx.Done():
			m.Logger.Debug("server did not close the connection after QUIT")
		}
	}

	err = s.Do(context.Background(), func() {
		if err := s.Shutdown(); err != nil {
			m.Logger.Debug("shutdown: %v", err)
		}
	})
	if err != nil {
		m.Logger.Debug("shutdown: %v", err)
	}
}

func (m *ClientMode) registerTimeout() time.Duration {
	if m.RegisterTimeout > 0 {
		return m.RegisterTimeout
	}
	return config.DefaultRegisterTimeout
}

func (m *ClientMode) grace() time.Duration {
	if m.Grace > 0 {
		return m.Grace
	}
	return config.DefaultGracePeriod
}

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	ircerr "ircsess/internal/errors"
	"ircsess/internal/metrics"
	"ircsess/util"
)

// SecureConn is a Conn that can run a TLS client handshake on the
// connection being established. The session calls StartSecure right
// after ConnectToHost; the handshake completes before Connected is
// reported.
type SecureConn struct {
	*Conn
	config *tls.Config

	// Wait bounds how long a dialled connection waits for StartSecure.
	// The attempt fails with ErrTimeout when it runs out; it never
	// falls back to plain text.
	Wait time.Duration
}

// NewSecureConn returns a TLS-capable transport. A nil config uses the
// system roots and the dialled host name.
func NewSecureConn(d Dialer, timeout time.Duration, config *tls.Config, logger *util.Logger, m *metrics.Collector) *SecureConn {
	s := &SecureConn{Conn: NewConn(d, timeout, logger, m), config: config, Wait: 5 * time.Second}
	s.upgrade = s.handshake
	return s
}

// StartSecure switches the attempt in progress to TLS.
func (s *SecureConn) StartSecure() error {
	s.mu.Lock()
	a := s.current
	connecting := s.state == StateConnecting
	s.mu.Unlock()

	if a == nil || !connecting {
		return ircerr.ErrNotConnected
	}
	a.once.Do(func() { close(a.secure) })
	return nil
}

func (s *SecureConn) handshake(ctx context.Context, a *attempt, raw net.Conn) (net.Conn, error) {
	select {
	case <-a.secure:
	case <-time.After(s.Wait):
		raw.Close() //nolint:errcheck
		return nil, fmt.Errorf("%w: secure mode not requested within %s", ircerr.ErrTimeout, s.Wait)
	case <-ctx.Done():
		raw.Close() //nolint:errcheck
		return nil, ctx.Err()
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if s.config != nil {
		cfg = s.config.Clone()
	}
	if cfg.ServerName == "" && !cfg.InsecureSkipVerify {
		cfg.ServerName = a.host
	}

	tc := tls.Client(raw, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		raw.Close() //nolint:errcheck
		return nil, err
	}
	s.logger.Verbose("tls established with %s (%s)", a.addr(), tls.VersionName(tc.ConnectionState().Version))
	return tc, nil
}

package config

import (
	"time"

	"ircsess/internal/protocol"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, profile files, and environment variable loading.

const (
	// DefaultPort is the plain-text IRC port.
	DefaultPort = 6667

	// DefaultTLSPort is the conventional port for IRC over TLS.
	DefaultTLSPort = 6697

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultRealName is sent in USER when nothing else is configured.
	DefaultRealName = "ircsess"

	// DefaultMaxFrame caps the unterminated input kept between reads.
	DefaultMaxFrame = protocol.DefaultMaxFrame

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultMaxReconnectAttempts is how many times to retry after the
	// server drops the connection.
	DefaultMaxReconnectAttempts = 10

	// DefaultMaxReconnectBackoff caps the exponential backoff between
	// reconnection attempts.
	DefaultMaxReconnectBackoff = 60 * time.Second

	// DefaultSSHKeepAlive is the interval between keepalives sent to
	// an SSH gateway.
	DefaultSSHKeepAlive = 30 * time.Second

	// DefaultRegisterTimeout bounds the wait for RPL_WELCOME after the
	// connection is up.
	DefaultRegisterTimeout = 60 * time.Second

	// DefaultGracePeriod is how long shutdown waits for QUIT to flush.
	DefaultGracePeriod = 2 * time.Second
)

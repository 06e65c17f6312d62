// Package errors defines the failures an IRC session can report.
//
// Transport trouble is a *NetworkError, which also says whether a
// reconnect might help. Servers refusing a registration produce a
// *ServerError matching ErrNickInUse, ErrAuthFailed or ErrBanned, and
// calls refused because the session is not ready produce a
// *PreconditionError.
package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNotConnected    = errors.New("not connected")
	ErrNoTransport     = errors.New("no transport attached")
	ErrFrameOverflow   = errors.New("line exceeds frame limit")
	ErrUnknownEncoding = errors.New("unknown encoding")
	ErrTunnelClosed    = errors.New("tunnel is closed")
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTimeout         = errors.New("operation timed out")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrHostKeyMismatch = errors.New("host key mismatch")
	ErrEmptyIdentity   = errors.New("identity field is empty")
	ErrSessionShutdown = errors.New("session is shut down")
	ErrNickInUse       = errors.New("nickname is already in use")
	ErrBanned          = errors.New("banned from the server")
	ErrInvalidLine     = errors.New("not a valid protocol line")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError is a failed dial, TLS handshake, read or write against
// the IRC server.
type NetworkError struct {
	Op        string // "dial", "handshake", "write", "read"
	Addr      string // host:port of the server
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError is a failure on the SSH gateway rather than the IRC server.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "forward"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ServerError is an error numeric that ends registration, such as
// ERR_PASSWDMISMATCH. It matches the sentinel for its code, if any.
type ServerError struct {
	Code int
	Text string // the trailing human-readable part of the reply
}

// fatalNumerics maps registration-ending numerics to sentinels.
var fatalNumerics = map[int]error{
	433: ErrNickInUse,
	464: ErrAuthFailed,
	465: ErrBanned,
}

// Fatal returns a ServerError when code ends registration, or nil.
func Fatal(code int, text string) *ServerError {
	if _, ok := fatalNumerics[code]; !ok {
		return nil
	}
	return &ServerError{Code: code, Text: text}
}

func (e *ServerError) Error() string {
	msg := fmt.Sprintf("server replied %03d", e.Code)
	if s, ok := fatalNumerics[e.Code]; ok {
		msg += " (" + s.Error() + ")"
	}
	if e.Text != "" {
		msg += ": " + e.Text
	}
	return msg
}

func (e *ServerError) Unwrap() error { return fatalNumerics[e.Code] }

// ConfigError names the flag whose value cannot be used.
type ConfigError struct {
	Field   string      // flag name without dashes
	Value   interface{} // nil when the value is missing
	Message string
	Hint    string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// PreconditionError reports an operation that was refused because the
// session was not in a usable state. Nothing was changed.
type PreconditionError struct {
	Op    string // "open", "reconnect"
	Field string // offending attribute, e.g. "nickName"
	Err   error
}

func (e *PreconditionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Field, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError and classifies err as retryable or not.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Precondition creates a PreconditionError for an empty identity field.
func Precondition(op, field string) *PreconditionError {
	return &PreconditionError{Op: op, Field: field, Err: ErrEmptyIdentity}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether a reconnect could get past err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsPrecondition reports whether err is a refused-operation error.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// classifyRetryable decides whether a reconnect could succeed where
// this attempt failed. Refused, reset and timed out connections are
// worth another try; unknown hosts and TLS failures are not.
func classifyRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, os.ErrDeadlineExceeded):
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ── Standard library shims ───────────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }
